// Package registry maintains the device authorization registry.
//
// The registry is an in-memory map of device identity (mobile number)
// to authorization record. It is rehydrated wholesale from the SQLite
// snapshot store at startup, then mutated incrementally by add/remove
// events arriving on the bus. It is not authoritative across restarts;
// only its boot snapshot is.
//
// Invariants:
//   - At most one record per device identity; last add/remove wins.
//   - Mutations are applied in event arrival order; a read issued after
//     a mutation observes its effect.
//
// The admission pipeline consults IsAuthorized; the command dispatcher
// expands device groups with ListByGroup.
package registry
