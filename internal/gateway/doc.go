// Package gateway bridges the Chikka SMS aggregator to the MQTT message
// bus. It contains the inbound webhook server and admission pipeline,
// the outbound command dispatcher, the device authorization resolvers,
// and the registry event subscriber.
//
// Message flow:
//
//	inbound:  aggregator HTTP POST -> admission -> pipe topics (MQTT)
//	outbound: relay topics (MQTT) -> dispatcher -> aggregator send API
//
// The dispatcher correlates each outbound command with the aggregator's
// asynchronous delivery outcome and publishes a per-device response on
// the relay's response topic.
package gateway
