package chikka

import (
	"crypto/rand"
)

// messageIDLength is the provider-required message identity length.
const messageIDLength = 32

// messageIDPool is the alphanumeric pool message identities draw from.
const messageIDPool = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewMessageID generates a 32-character alphanumeric message identity
// for reply acknowledgements, matching the provider's expected format.
func NewMessageID() string {
	buf := make([]byte, messageIDLength)
	//nolint:errcheck // crypto/rand.Read always returns len(buf) on supported platforms
	rand.Read(buf)

	for i, b := range buf {
		buf[i] = messageIDPool[int(b)%len(messageIDPool)]
	}
	return string(buf)
}
