package gateway

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/edgracilla/chikka-gateway/internal/infrastructure/config"
	"github.com/edgracilla/chikka-gateway/internal/infrastructure/mqtt"
)

// publication records one fakeBus.Publish call.
type publication struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// fakeBus is an in-memory Bus for tests. Publishes are recorded and
// subscriptions captured so tests can inject bus messages by hand.
type fakeBus struct {
	mu         sync.Mutex
	published  []publication
	handlers   map[string]mqtt.MessageHandler
	publishErr error
	connected  bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		handlers:  make(map[string]mqtt.MessageHandler),
		connected: true,
	}
}

func (b *fakeBus) Publish(topic string, payload []byte, qos byte, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	b.published = append(b.published, publication{topic: topic, payload: cp, qos: qos, retained: retained})
	return nil
}

func (b *fakeBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBus) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// deliver invokes the handler registered for an exact topic filter.
func (b *fakeBus) deliver(filter, topic string, payload []byte) error {
	b.mu.Lock()
	handler, ok := b.handlers[filter]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("no handler subscribed on %s", filter)
	}
	return handler(topic, payload)
}

// publications returns the recorded publishes on one topic.
func (b *fakeBus) publications(topic string) []publication {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publication
	for _, p := range b.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// waitForPublication polls until a publish lands on the topic or the
// deadline passes.
func (b *fakeBus) waitForPublication(t *testing.T, topic string, timeout time.Duration) publication {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if pubs := b.publications(topic); len(pubs) > 0 {
			return pubs[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no publication on %s within %v", topic, timeout)
	return publication{}
}

// replyCall records one fakeDeliverer.SendReply call.
type replyCall struct {
	mobileNumber string
	requestID    string
	messageID    string
}

// commandCall records one fakeDeliverer.SendCommand call.
type commandCall struct {
	mobileNumber string
	commandID    string
	commandText  string
}

// fakeDeliverer is an in-memory Deliverer for tests.
type fakeDeliverer struct {
	mu         sync.Mutex
	replies    []replyCall
	commands   []commandCall
	replyErr   error
	commandErr error

	// commandDelay makes SendCommand block, honoring ctx cancellation,
	// to exercise delivery deadlines.
	commandDelay time.Duration
}

func (d *fakeDeliverer) SendReply(_ context.Context, mobileNumber, requestID, messageID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.replies = append(d.replies, replyCall{mobileNumber, requestID, messageID})
	return d.replyErr
}

func (d *fakeDeliverer) SendCommand(ctx context.Context, mobileNumber, commandID, commandText string) error {
	d.mu.Lock()
	delay := d.commandDelay
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, commandCall{mobileNumber, commandID, commandText})
	return d.commandErr
}

func (d *fakeDeliverer) replyCalls() []replyCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]replyCall(nil), d.replies...)
}

func (d *fakeDeliverer) commandCalls() []commandCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]commandCall(nil), d.commands...)
}

// waitForReply polls until SendReply has been called or the deadline
// passes.
func (d *fakeDeliverer) waitForReply(t *testing.T, timeout time.Duration) replyCall {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if calls := d.replyCalls(); len(calls) > 0 {
			return calls[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no reply acknowledgement within %v", timeout)
	return replyCall{}
}

// testLogger records log calls so tests can assert on exceptions.
type testLogger struct {
	mu         sync.Mutex
	exceptions []error
	errored    []string
}

func (l *testLogger) Debug(string, ...any) {}
func (l *testLogger) Info(string, ...any)  {}
func (l *testLogger) Warn(string, ...any)  {}

func (l *testLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errored = append(l.errored, msg)
}

func (l *testLogger) Exception(err error, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exceptions = append(l.exceptions, err)
}

func (l *testLogger) exceptionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.exceptions)
}

// testConfig builds a minimal gateway configuration for tests.
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host: "127.0.0.1",
			Port: 0,
			Path: "/chikka",
		},
		Chikka: config.ChikkaConfig{
			ShortCode: "29290639",
			ClientID:  "client",
			SecretKey: "secret",
			Timeout:   5,
		},
		Auth: config.AuthConfig{
			Mode:          "local",
			LookupTimeout: 1,
		},
		MQTT: config.MQTTConfig{
			QoS: 1,
		},
		Pipes:  []string{"messages"},
		Relays: []string{"commands"},
	}
}
