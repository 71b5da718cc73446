package mqtt

import "fmt"

// Topic prefixes for the gateway's bus surface.
//
// All topics live under the flat scheme: chikka/{category}/{name...}
const (
	// TopicPrefix is the base for all gateway topics.
	TopicPrefix = "chikka"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "chikka/system"
)

// Topics provides builders for gateway MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	pipeTopic := topics.Pipe("messages")
//	// Returns: "chikka/pipe/messages"
type Topics struct{}

// Pipe returns the output topic for normalized accepted messages.
//
// Example: chikka/pipe/messages
func (Topics) Pipe(name string) string {
	return fmt.Sprintf("%s/pipe/%s", TopicPrefix, name)
}

// Relay returns the inbound topic carrying command instructions.
//
// Example: chikka/relay/commands
func (Topics) Relay(name string) string {
	return fmt.Sprintf("%s/relay/%s", TopicPrefix, name)
}

// RelayResponse returns the topic for correlated command delivery results.
//
// Example: chikka/response/commands
func (Topics) RelayResponse(name string) string {
	return fmt.Sprintf("%s/response/%s", TopicPrefix, name)
}

// Dispatch returns the topic announcing a per-device command dispatch.
//
// Example: chikka/dispatch/639178888888
func (Topics) Dispatch(deviceID string) string {
	return fmt.Sprintf("%s/dispatch/%s", TopicPrefix, deviceID)
}

// DeviceAdd returns the topic carrying device registration events.
func (Topics) DeviceAdd() string {
	return TopicPrefix + "/devices/add"
}

// DeviceRemove returns the topic carrying device removal events.
func (Topics) DeviceRemove() string {
	return TopicPrefix + "/devices/remove"
}

// DeviceInfoRequest returns the topic for correlated device-info lookups.
func (Topics) DeviceInfoRequest() string {
	return TopicPrefix + "/deviceinfo/request"
}

// DeviceInfoResponse returns the reply topic for a correlated lookup.
//
// The gateway itself only subscribes to the wildcard form (see
// AllDeviceInfoResponses); this builder is the contract for external
// responders, which must answer a request on the response topic
// suffixed with the request's key.
//
// Example: chikka/deviceinfo/response/7f3c9b2a-...
func (Topics) DeviceInfoResponse(key string) string {
	return fmt.Sprintf("%s/deviceinfo/response/%s", TopicPrefix, key)
}

// AllDeviceInfoResponses returns the wildcard pattern matching every
// correlated lookup reply.
func (Topics) AllDeviceInfoResponses() string {
	return TopicPrefix + "/deviceinfo/response/+"
}

// SystemStatus returns the gateway's online/offline status topic (LWT).
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
