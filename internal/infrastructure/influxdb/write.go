package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteAdmission records an admission decision for an inbound webhook call.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: The mobile number the webhook named (may be empty on parse failures)
//   - outcome: One of "accepted", "rejected", "unauthorized"
//   - reason: Short reason tag (e.g., "shortcode_mismatch"), empty when accepted
func (c *Client) WriteAdmission(deviceID, outcome, reason string) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"outcome": outcome,
	}
	if reason != "" {
		tags["reason"] = reason
	}

	point := write.NewPoint(
		"admission",
		tags,
		map[string]interface{}{
			"device_id": deviceID,
			"count":     1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDelivery records the outcome of an outbound provider call.
//
// Parameters:
//   - deviceID: Target mobile number
//   - messageType: "SEND" or "REPLY"
//   - outcome: "ok", "transport_error", or "provider_rejected"
//   - elapsed: Wall time of the provider HTTP call
func (c *Client) WriteDelivery(deviceID, messageType, outcome string, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"delivery",
		map[string]string{
			"message_type": messageType,
			"outcome":      outcome,
		},
		map[string]interface{}{
			"device_id":  deviceID,
			"elapsed_ms": elapsed.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCorrelation records a correlated request/reply outcome.
//
// Parameters:
//   - kind: "deviceinfo" or "command"
//   - outcome: "resolved" or "timeout"
//   - elapsed: Time between issue and resolution
func (c *Client) WriteCorrelation(kind, outcome string, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"correlation",
		map[string]string{
			"kind":    kind,
			"outcome": outcome,
		},
		map[string]interface{}{
			"elapsed_ms": elapsed.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
