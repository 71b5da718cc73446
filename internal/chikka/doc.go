// Package chikka implements the outbound delivery client for the
// Chikka SMS provider API.
//
// Two operations exist: SendReply acknowledges an inbound message back
// to its sender, SendCommand pushes a command text to a device. Both
// perform exactly one POST of an urlencoded form and map the result to
// a two-class error taxonomy: ErrTransport when no response arrived,
// ErrProviderRejected when the provider answered but refused.
//
// The provider embeds its real status inside 200-level HTTP responses;
// only an embedded status of 200 — sent as a number or a numeral
// string, both occur in the wild — counts as success.
package chikka
