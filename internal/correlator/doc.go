// Package correlator implements the gateway's request/reply matcher.
//
// A correlated exchange starts with Issue, which allocates a unique key
// and a one-shot waiter with a deadline. The reply — arriving later on
// a different goroutine, typically a bus-message handler — is matched
// back by Resolve(key, payload). Await hands the caller a channel that
// yields exactly one outcome: the payload, or a timeout failure.
//
// The waiter table replaces the one-shot "event name per request"
// pattern with explicit insert/resolve/expire operations, so abandoned
// requests are garbage-collected by their own deadline timers and late
// replies are dropped instead of leaking listeners.
//
// The gateway uses one Correlator instance for two flows: device-info
// lookups during admission, and per-device command delivery results.
// Keys never cross-resolve; a reply tagged with one key can only ever
// settle that key's waiter.
package correlator
