package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/edgracilla/chikka-gateway/internal/infrastructure/mqtt"
	"github.com/edgracilla/chikka-gateway/internal/registry"
)

// fakeSnapshotRepo records snapshot writes for assertions.
type fakeSnapshotRepo struct {
	mu       sync.Mutex
	upserted []registry.Record
	deleted  []string
}

func (r *fakeSnapshotRepo) List(context.Context) ([]registry.Record, error) {
	return nil, nil
}

func (r *fakeSnapshotRepo) Upsert(_ context.Context, rec registry.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserted = append(r.upserted, rec)
	return nil
}

func (r *fakeSnapshotRepo) Delete(_ context.Context, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, deviceID)
	return nil
}

func newTestDeviceEvents(t *testing.T, repo registry.SnapshotRepository) (*DeviceEvents, *fakeBus, *registry.Registry) {
	t.Helper()

	bus := newFakeBus()
	reg := registry.New()

	events, err := NewDeviceEvents(bus, reg, repo, 1, &testLogger{})
	if err != nil {
		t.Fatalf("NewDeviceEvents() error = %v", err)
	}
	if err := events.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	return events, bus, reg
}

func TestDeviceEventsAddAndRemove(t *testing.T) {
	repo := &fakeSnapshotRepo{}
	_, bus, reg := newTestDeviceEvents(t, repo)
	topics := mqtt.Topics{}

	added, _ := json.Marshal(registry.Record{
		DeviceID: "639170000001",
		Name:     "pump-1",
		Group:    "pumps",
	})
	if err := bus.deliver(topics.DeviceAdd(), topics.DeviceAdd(), added); err != nil {
		t.Fatalf("deliver(add) error = %v", err)
	}

	if !reg.IsAuthorized("639170000001") {
		t.Fatal("added device should be authorized")
	}
	rec, ok := reg.Get("639170000001")
	if !ok {
		t.Fatal("added device not found in registry")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("added device should get a creation timestamp")
	}
	if len(repo.upserted) != 1 {
		t.Errorf("expected 1 snapshot upsert, got %d", len(repo.upserted))
	}

	removal, _ := json.Marshal(deviceRemoval{DeviceID: "639170000001"})
	if err := bus.deliver(topics.DeviceRemove(), topics.DeviceRemove(), removal); err != nil {
		t.Fatalf("deliver(remove) error = %v", err)
	}

	if reg.IsAuthorized("639170000001") {
		t.Error("removed device should not be authorized")
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "639170000001" {
		t.Errorf("expected snapshot delete for 639170000001, got %v", repo.deleted)
	}
}

func TestDeviceEventsLastWriteWins(t *testing.T) {
	_, bus, reg := newTestDeviceEvents(t, nil)
	topics := mqtt.Topics{}

	first, _ := json.Marshal(registry.Record{DeviceID: "639170000001", Name: "old", CreatedAt: time.Now()})
	second, _ := json.Marshal(registry.Record{DeviceID: "639170000001", Name: "new", CreatedAt: time.Now()})

	for _, payload := range [][]byte{first, second} {
		if err := bus.deliver(topics.DeviceAdd(), topics.DeviceAdd(), payload); err != nil {
			t.Fatalf("deliver(add) error = %v", err)
		}
	}

	rec, ok := reg.Get("639170000001")
	if !ok {
		t.Fatal("device not found in registry")
	}
	if rec.Name != "new" {
		t.Errorf("record name = %q, want %q (latest event wins)", rec.Name, "new")
	}
}

func TestDeviceEventsDropsBadPayloads(t *testing.T) {
	_, bus, reg := newTestDeviceEvents(t, nil)
	topics := mqtt.Topics{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
	}{
		{"add not json", topics.DeviceAdd(), []byte("not json")},
		{"add without id", topics.DeviceAdd(), []byte(`{"name":"orphan"}`)},
		{"remove not json", topics.DeviceRemove(), []byte("not json")},
		{"remove without id", topics.DeviceRemove(), []byte(`{}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := bus.deliver(tt.topic, tt.topic, tt.payload); err != nil {
				t.Fatalf("deliver() error = %v", err)
			}
		})
	}

	if reg.Count() != 0 {
		t.Errorf("registry count = %d after bad payloads, want 0", reg.Count())
	}
}

func TestDeviceEventsRemoveUnknownIsNoop(t *testing.T) {
	repo := &fakeSnapshotRepo{}
	_, bus, _ := newTestDeviceEvents(t, repo)
	topics := mqtt.Topics{}

	removal, _ := json.Marshal(deviceRemoval{DeviceID: "639170000404"})
	if err := bus.deliver(topics.DeviceRemove(), topics.DeviceRemove(), removal); err != nil {
		t.Fatalf("deliver(remove) error = %v", err)
	}
	// The snapshot delete still runs so store and registry stay aligned.
	if len(repo.deleted) != 1 {
		t.Errorf("expected 1 snapshot delete, got %d", len(repo.deleted))
	}
}

func TestNewDeviceEventsValidatesDependencies(t *testing.T) {
	_, err := NewDeviceEvents(nil, nil, nil, 1, nil)
	if !errors.Is(err, ErrMissingDependency) {
		t.Fatalf("NewDeviceEvents() error = %v, want ErrMissingDependency", err)
	}
}
