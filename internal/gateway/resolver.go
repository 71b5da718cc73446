package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/edgracilla/chikka-gateway/internal/correlator"
	"github.com/edgracilla/chikka-gateway/internal/infrastructure/mqtt"
	"github.com/edgracilla/chikka-gateway/internal/registry"
)

// AuthResolver decides whether a device may push data through the gateway.
//
// Implementations must be safe for concurrent use: the admission pipeline
// calls Authorized from HTTP handler goroutines.
type AuthResolver interface {
	// Authorized reports whether the device identified by deviceID is
	// registered. Resolution failures (timeouts, malformed responses)
	// are treated as not authorized.
	Authorized(ctx context.Context, deviceID string) bool
}

// RegistryResolver answers authorization checks from the local in-memory
// registry. It is the default resolver and never blocks.
type RegistryResolver struct {
	reg *registry.Registry
}

// NewRegistryResolver creates a resolver backed by the local registry.
func NewRegistryResolver(reg *registry.Registry) *RegistryResolver {
	return &RegistryResolver{reg: reg}
}

// Authorized reports whether the device is present in the registry.
func (r *RegistryResolver) Authorized(_ context.Context, deviceID string) bool {
	return r.reg.IsAuthorized(deviceID)
}

// CorrelatedResolver answers authorization checks by publishing a lookup
// request on the bus and waiting for a correlated response from the
// platform. A lookup that times out denies the device.
//
// Responders must publish the device record (or an empty object for
// unknown devices) on the topic mqtt.Topics.DeviceInfoResponse builds
// from the request's key.
//
// Start must be called before Authorized; it subscribes to the shared
// response topic and routes each response to its pending lookup by the
// key carried in the topic suffix.
type CorrelatedResolver struct {
	bus     Bus
	corr    *correlator.Correlator
	timeout time.Duration
	qos     byte
	logger  Logger

	topics mqtt.Topics
}

// NewCorrelatedResolver creates a bus-backed resolver.
//
// Parameters:
//   - bus: Message bus used for the request/response exchange
//   - corr: Correlator that pairs lookups with their responses
//   - timeout: Per-lookup deadline; expiry denies the device
//   - qos: QoS level for the lookup request publication
//   - logger: Structured logger (must not be nil)
func NewCorrelatedResolver(bus Bus, corr *correlator.Correlator, timeout time.Duration, qos byte, logger Logger) *CorrelatedResolver {
	return &CorrelatedResolver{
		bus:     bus,
		corr:    corr,
		timeout: timeout,
		qos:     qos,
		logger:  logger,
	}
}

// Start subscribes to the device info response topic.
func (r *CorrelatedResolver) Start() error {
	return r.bus.Subscribe(r.topics.AllDeviceInfoResponses(), r.qos, r.handleResponse)
}

// handleResponse routes a device info response to its pending lookup.
// The correlation key is the final topic segment; responses for keys
// that already settled are dropped by the correlator.
func (r *CorrelatedResolver) handleResponse(topic string, payload []byte) error {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		r.logger.Warn("device info response on malformed topic", "topic", topic)
		return nil
	}
	r.corr.Resolve(topic[idx+1:], payload)
	return nil
}

// Authorized publishes a device info request and waits for the response.
//
// The device is authorized when the platform answers with a non-empty
// JSON object before the deadline. Timeouts, publish failures, and empty
// or malformed responses all deny.
func (r *CorrelatedResolver) Authorized(ctx context.Context, deviceID string) bool {
	key := r.corr.Issue(r.timeout)
	ch := r.corr.Await(key)

	req, err := json.Marshal(DeviceInfoRequest{Key: key, DeviceID: deviceID})
	if err != nil {
		r.corr.Resolve(key, nil)
		<-ch
		return false
	}

	if err := r.bus.Publish(r.topics.DeviceInfoRequest(), req, r.qos, false); err != nil {
		r.logger.Warn("device info request publish failed", "device_id", deviceID, "error", err)
		r.corr.Resolve(key, nil)
		<-ch
		return false
	}

	select {
	case reply := <-ch:
		if reply.Err != nil {
			r.logger.Warn("device info lookup timed out", "device_id", deviceID, "key", key)
			return false
		}
		return hasDeviceInfo(reply.Payload)
	case <-ctx.Done():
		return false
	}
}

// hasDeviceInfo reports whether a lookup response payload carries a
// device record. Empty bodies, JSON null, and empty objects mean the
// platform has no record for the device.
func hasDeviceInfo(payload []byte) bool {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false
	}

	var record map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &record); err != nil {
		return false
	}
	return len(record) > 0
}
