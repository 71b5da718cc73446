// Package mqtt provides MQTT client connectivity for the Chikka gateway.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// MQTT is the gateway's internal message bus. Accepted webhook messages
// flow out on pipe topics, command instructions arrive on relay topics,
// and correlated request/reply exchanges (device-info lookups, command
// delivery results) ride dedicated request/response topics.
//
//	SMS aggregator ↔ Chikka Gateway ↔ MQTT Broker ↔ Platform services
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	err = client.Subscribe(topics.Relay("commands"), 1,
//	    func(topic string, payload []byte) error {
//	        return dispatcher.Handle(payload)
//	    })
package mqtt
