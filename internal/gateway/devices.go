package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edgracilla/chikka-gateway/internal/infrastructure/mqtt"
	"github.com/edgracilla/chikka-gateway/internal/registry"
)

// snapshotTimeout bounds each snapshot store write triggered by a
// registry event.
const snapshotTimeout = 5 * time.Second

// DeviceEvents applies registration changes arriving on the bus to the
// in-memory registry, and mirrors them into the snapshot store so the
// registry can be rebuilt on restart.
//
// Events apply in arrival order; for the same device the latest event
// wins.
type DeviceEvents struct {
	qos byte

	bus    Bus
	reg    *registry.Registry
	repo   registry.SnapshotRepository
	logger Logger

	topics mqtt.Topics
}

// NewDeviceEvents creates the registry event subscriber.
//
// repo may be nil, in which case events mutate the in-memory registry
// only and are lost on restart.
func NewDeviceEvents(bus Bus, reg *registry.Registry, repo registry.SnapshotRepository, qos byte, logger Logger) (*DeviceEvents, error) {
	switch {
	case bus == nil:
		return nil, fmt.Errorf("%w: bus", ErrMissingDependency)
	case reg == nil:
		return nil, fmt.Errorf("%w: registry", ErrMissingDependency)
	case logger == nil:
		return nil, fmt.Errorf("%w: logger", ErrMissingDependency)
	}

	return &DeviceEvents{
		qos:    qos,
		bus:    bus,
		reg:    reg,
		repo:   repo,
		logger: logger,
	}, nil
}

// Start subscribes to the device addition and removal topics.
func (e *DeviceEvents) Start() error {
	if err := e.bus.Subscribe(e.topics.DeviceAdd(), e.qos, e.handleAdd); err != nil {
		return fmt.Errorf("subscribing to device additions: %w", err)
	}
	if err := e.bus.Subscribe(e.topics.DeviceRemove(), e.qos, e.handleRemove); err != nil {
		return fmt.Errorf("subscribing to device removals: %w", err)
	}
	return nil
}

// handleAdd registers or re-registers a device.
func (e *DeviceEvents) handleAdd(_ string, payload []byte) error {
	var rec registry.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		e.logger.Warn("undecodable device addition dropped", "error", err)
		return nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if err := e.reg.Add(rec); err != nil {
		e.logger.Warn("device addition rejected", "device_id", rec.DeviceID, "error", err)
		return nil
	}

	if e.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()
		if err := e.repo.Upsert(ctx, rec); err != nil {
			e.logger.Error("device snapshot upsert failed", "device_id", rec.DeviceID, "error", err)
		}
	}

	return nil
}

// handleRemove deregisters a device. Removing an unknown device is a
// no-op.
func (e *DeviceEvents) handleRemove(_ string, payload []byte) error {
	var removal deviceRemoval
	if err := json.Unmarshal(payload, &removal); err != nil {
		e.logger.Warn("undecodable device removal dropped", "error", err)
		return nil
	}
	if removal.DeviceID == "" {
		e.logger.Warn("device removal without device_id dropped")
		return nil
	}

	e.reg.Remove(removal.DeviceID)

	if e.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()
		if err := e.repo.Delete(ctx, removal.DeviceID); err != nil {
			e.logger.Error("device snapshot delete failed", "device_id", removal.DeviceID, "error", err)
		}
	}

	return nil
}
