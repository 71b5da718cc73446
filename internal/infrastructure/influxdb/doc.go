// Package influxdb provides the optional time-series metrics sink for
// the Chikka gateway.
//
// When enabled, the gateway records admission decisions, provider
// delivery outcomes, and correlation latencies as InfluxDB points.
// Writes are batched and non-blocking; the gateway runs unchanged when
// the sink is disabled or unreachable.
//
// # Usage
//
//	metrics, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    metrics = nil // gateway components treat a nil sink as a no-op
//	}
package influxdb
