package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/edgracilla/chikka-gateway/internal/correlator"
	"github.com/edgracilla/chikka-gateway/internal/infrastructure/mqtt"
	"github.com/edgracilla/chikka-gateway/internal/registry"
)

func TestRegistryResolver(t *testing.T) {
	reg := registry.New()
	if err := reg.Add(registry.Record{DeviceID: "639170000001", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("seeding registry: %v", err)
	}

	resolver := NewRegistryResolver(reg)

	if !resolver.Authorized(context.Background(), "639170000001") {
		t.Error("registered device should be authorized")
	}
	if resolver.Authorized(context.Background(), "639170000002") {
		t.Error("unregistered device should not be authorized")
	}
}

// newTestCorrelatedResolver starts a resolver whose lookups answer from
// the fake bus.
func newTestCorrelatedResolver(t *testing.T, timeout time.Duration) (*CorrelatedResolver, *fakeBus, *correlator.Correlator) {
	t.Helper()

	bus := newFakeBus()
	corr := correlator.New()
	t.Cleanup(corr.Close)

	resolver := NewCorrelatedResolver(bus, corr, timeout, 1, &testLogger{})
	if err := resolver.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	return resolver, bus, corr
}

// answerLookups responds to every device info request published on the
// fake bus with the given payload.
func answerLookups(t *testing.T, bus *fakeBus, payload []byte) {
	t.Helper()
	topics := mqtt.Topics{}

	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			for _, pub := range bus.publications(topics.DeviceInfoRequest()) {
				var req DeviceInfoRequest
				if err := json.Unmarshal(pub.payload, &req); err != nil {
					continue
				}
				_ = bus.deliver(topics.AllDeviceInfoResponses(), topics.DeviceInfoResponse(req.Key), payload)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()
}

func TestCorrelatedResolverAuthorizedDevice(t *testing.T) {
	resolver, bus, _ := newTestCorrelatedResolver(t, time.Second)

	record, _ := json.Marshal(registry.Record{DeviceID: "639170000001"})
	answerLookups(t, bus, record)

	if !resolver.Authorized(context.Background(), "639170000001") {
		t.Error("device with a platform record should be authorized")
	}
}

func TestCorrelatedResolverEmptyRecordDenies(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty object", []byte(`{}`)},
		{"null", []byte(`null`)},
		{"empty body", []byte(``)},
		{"not json", []byte(`nope`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver, bus, _ := newTestCorrelatedResolver(t, time.Second)
			answerLookups(t, bus, tt.payload)

			if resolver.Authorized(context.Background(), "639170000001") {
				t.Error("device without a platform record should be denied")
			}
		})
	}
}

func TestCorrelatedResolverTimeoutDenies(t *testing.T) {
	resolver, _, _ := newTestCorrelatedResolver(t, 50*time.Millisecond)

	start := time.Now()
	if resolver.Authorized(context.Background(), "639170000001") {
		t.Error("unanswered lookup should deny the device")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("lookup took %v, expected it bounded by the 50ms deadline", elapsed)
	}
}

func TestCorrelatedResolverLeavesNoPendingLookups(t *testing.T) {
	resolver, bus, corr := newTestCorrelatedResolver(t, time.Second)

	record, _ := json.Marshal(registry.Record{DeviceID: "639170000001"})
	answerLookups(t, bus, record)

	resolver.Authorized(context.Background(), "639170000001")

	if pending := corr.Pending(); pending != 0 {
		t.Errorf("Pending() = %d after lookup settled, want 0", pending)
	}
}

func TestHasDeviceInfo(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{"record", `{"device_id":"639170000001","name":"pump"}`, true},
		{"whitespace padded record", `  {"device_id":"x"} `, true},
		{"empty object", `{}`, false},
		{"null", `null`, false},
		{"empty", ``, false},
		{"array", `[1,2]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasDeviceInfo([]byte(tt.payload)); got != tt.want {
				t.Errorf("hasDeviceInfo(%q) = %v, want %v", tt.payload, got, tt.want)
			}
		})
	}
}
