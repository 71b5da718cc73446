package correlator

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger defines the logging interface used by the Correlator.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Reply is the outcome delivered to a waiter.
//
// Exactly one Reply is delivered per issued key: either the payload a
// resolver supplied, or Err set to ErrTimeout when the deadline passed
// first.
type Reply struct {
	Payload []byte
	Err     error
}

// waiter is a one-shot pending request.
// Exactly one of resolve or the deadline timer removes it from the table.
type waiter struct {
	ch        chan Reply
	timer     *time.Timer
	createdAt time.Time
}

// Correlator matches asynchronous replies to the requests that asked
// for them.
//
// Issue allocates a fresh correlation key and registers a one-shot
// waiter with a deadline. Resolve, typically invoked from a bus-message
// handler on a different goroutine than the issuer, fulfills the
// matching waiter; a late or duplicate resolve for an already-settled
// key is dropped silently. Expired waiters are removed by their own
// timers, so nothing stays pending past its deadline.
//
// At most one waiter exists per key. At most one of {resolve, timeout}
// settles a waiter; the loser's effect is discarded.
//
// All methods are safe for concurrent use.
type Correlator struct {
	mu      sync.Mutex
	waiters map[string]*waiter
	closed  bool

	logger Logger

	// onSettle is an optional hook observing settled waiters
	// (metrics). Called outside the lock.
	onSettle func(outcome string, elapsed time.Duration)
}

// New creates an empty Correlator.
func New() *Correlator {
	return &Correlator{
		waiters: make(map[string]*waiter),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for anomaly reporting.
func (c *Correlator) SetLogger(logger Logger) {
	c.logger = logger
}

// SetOnSettle registers a hook invoked after each waiter settles.
// The outcome is "resolved" or "timeout".
func (c *Correlator) SetOnSettle(hook func(outcome string, elapsed time.Duration)) {
	c.mu.Lock()
	c.onSettle = hook
	c.mu.Unlock()
}

// Issue allocates a fresh, globally-unique correlation key and
// registers a waiter that settles within the given timeout.
//
// UUIDv4 keys make collision with any pending key negligible over the
// process lifetime; as defense the draw is retried on the off chance a
// pending key matches.
//
// Parameters:
//   - timeout: Deadline for the waiter; on expiry Await yields ErrTimeout
//
// Returns:
//   - string: The correlation key, also usable as a command identity
func (c *Correlator) Issue(timeout time.Duration) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := uuid.NewString()
	for _, exists := c.waiters[key]; exists; _, exists = c.waiters[key] {
		key = uuid.NewString()
	}

	w := &waiter{
		ch:        make(chan Reply, 1),
		createdAt: time.Now(),
	}
	k := key
	w.timer = time.AfterFunc(timeout, func() {
		c.expire(k)
	})
	c.waiters[key] = w

	return key
}

// Await returns the one-shot channel carrying the waiter's outcome.
//
// The channel yields exactly one Reply: the resolved payload, or a
// Reply with Err == ErrTimeout. Awaiting a key that was never issued,
// or whose waiter already settled and was awaited, yields ErrUnknownKey
// immediately.
func (c *Correlator) Await(key string) <-chan Reply {
	c.mu.Lock()
	w, ok := c.waiters[key]
	c.mu.Unlock()

	if !ok {
		ch := make(chan Reply, 1)
		ch <- Reply{Err: ErrUnknownKey}
		return ch
	}
	return w.ch
}

// Resolve fulfills the waiter registered for key with the payload.
//
// If no waiter is pending — the key was never issued, already resolved,
// or timed out — the reply is dropped silently and logged as an
// anomaly at debug level. Double resolution is therefore a no-op.
func (c *Correlator) Resolve(key string, payload []byte) {
	c.mu.Lock()
	w, ok := c.waiters[key]
	if ok {
		delete(c.waiters, key)
	}
	hook := c.onSettle
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("dropping reply for unknown or settled correlation key", "key", key)
		return
	}

	w.timer.Stop()
	if hook != nil {
		hook("resolved", time.Since(w.createdAt))
	}
	w.ch <- Reply{Payload: payload}
}

// expire settles a waiter whose deadline passed before any resolve.
// If the waiter already settled, the expiry is a no-op.
func (c *Correlator) expire(key string) {
	c.mu.Lock()
	w, ok := c.waiters[key]
	if ok {
		delete(c.waiters, key)
	}
	hook := c.onSettle
	c.mu.Unlock()

	if !ok {
		return
	}

	if hook != nil {
		hook("timeout", time.Since(w.createdAt))
	}
	w.ch <- Reply{Err: ErrTimeout}
}

// Pending returns the number of unsettled waiters.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Close settles every pending waiter with ErrClosed and stops their
// timers. Subsequent Issue calls still work, but Close is intended for
// process shutdown.
func (c *Correlator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	drained := c.waiters
	c.waiters = make(map[string]*waiter)
	c.mu.Unlock()

	for _, w := range drained {
		w.timer.Stop()
		w.ch <- Reply{Err: ErrClosed}
	}
}
