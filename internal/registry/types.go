package registry

import "time"

// Record is a device authorization record.
//
// DeviceID is the mobile number identifying the registered endpoint and
// is the primary key everywhere in the gateway.
type Record struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name,omitempty"`

	// Group is a free-form label used for device-group command fan-out.
	Group string `json:"group,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Clone returns an independent copy of the record.
// The metadata map is copied so callers can safely modify the result.
func (r Record) Clone() Record {
	cpy := r
	if r.Metadata != nil {
		cpy.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			cpy.Metadata[k] = v
		}
	}
	return cpy
}
