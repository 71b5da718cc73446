package registry

import (
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the in-memory device authorization registry.
//
// It maps device identity (mobile number) to an authorization record.
// The full set is replaced wholesale at startup from the snapshot store
// and mutated incrementally by add/remove events; the map is the sole
// authority while the process runs.
//
// Mutations are applied in the order their events arrive. A lookup
// issued after a mutation returns observes that mutation's effect.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	records map[string]Record
	logger  Logger
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		records: make(map[string]Record),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger used for audit events.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Add inserts or overwrites a record keyed by its device identity.
// Last add wins. Returns ErrInvalidRecord if the identity is empty.
// Each successful add emits an audit log event naming the identity.
func (r *Registry) Add(rec Record) error {
	if rec.DeviceID == "" {
		return ErrInvalidRecord
	}

	r.mu.Lock()
	r.records[rec.DeviceID] = rec.Clone()
	r.mu.Unlock()

	r.logger.Info("device authorized", "device_id", rec.DeviceID, "group", rec.Group)
	return nil
}

// Remove deletes the record for the given identity.
// Removing an unknown identity is a no-op.
func (r *Registry) Remove(deviceID string) {
	r.mu.Lock()
	_, existed := r.records[deviceID]
	delete(r.records, deviceID)
	r.mu.Unlock()

	if existed {
		r.logger.Info("device authorization revoked", "device_id", deviceID)
	}
}

// IsAuthorized reports whether the identity has a current record.
func (r *Registry) IsAuthorized(deviceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[deviceID]
	return ok
}

// Get returns the record for the identity, if present.
// The returned record is a copy; callers can safely modify it.
func (r *Registry) Get(deviceID string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[deviceID]
	if !ok {
		return Record{}, false
	}
	return rec.Clone(), true
}

// ReplaceAll performs a wholesale atomic swap of the registry contents.
// Used once at startup to rehydrate from the snapshot store.
// Records with an empty identity are skipped.
func (r *Registry) ReplaceAll(recs []Record) {
	next := make(map[string]Record, len(recs))
	for _, rec := range recs {
		if rec.DeviceID == "" {
			continue
		}
		next[rec.DeviceID] = rec.Clone()
	}

	r.mu.Lock()
	r.records = next
	r.mu.Unlock()

	r.logger.Info("registry snapshot loaded", "count", len(next))
}

// ListByGroup returns copies of all records carrying the given group label.
// Used by the command dispatcher to expand device-group references.
func (r *Registry) ListByGroup(group string) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Record
	for _, rec := range r.records {
		if rec.Group == group {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// Count returns the number of registered identities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
