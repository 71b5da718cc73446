package correlator

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestResolveRoundTrip(t *testing.T) {
	c := New()
	defer c.Close()

	key := c.Issue(time.Second)
	ch := c.Await(key)

	go c.Resolve(key, []byte(`{"device":"639178888888"}`))

	select {
	case reply := <-ch:
		if reply.Err != nil {
			t.Fatalf("Await() Err = %v, want nil", reply.Err)
		}
		if !bytes.Contains(reply.Payload, []byte("639178888888")) {
			t.Errorf("Await() payload = %s, want the resolved payload", reply.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("Await() did not settle after Resolve")
	}

	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after resolution, want 0", c.Pending())
	}
}

func TestTimeout(t *testing.T) {
	c := New()
	defer c.Close()

	const timeout = 100 * time.Millisecond
	start := time.Now()
	key := c.Issue(timeout)

	reply := <-c.Await(key)
	elapsed := time.Since(start)

	if !errors.Is(reply.Err, ErrTimeout) {
		t.Fatalf("Await() Err = %v, want ErrTimeout", reply.Err)
	}
	if elapsed < timeout {
		t.Errorf("waiter settled after %v, before the %v deadline", elapsed, timeout)
	}
	// Allow generous scheduling slop, but not "indefinitely after".
	if elapsed > timeout+500*time.Millisecond {
		t.Errorf("waiter settled after %v, too long past the %v deadline", elapsed, timeout)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after timeout, want 0", c.Pending())
	}
}

func TestLateResolveIsDropped(t *testing.T) {
	c := New()
	defer c.Close()

	key := c.Issue(20 * time.Millisecond)

	reply := <-c.Await(key)
	if !errors.Is(reply.Err, ErrTimeout) {
		t.Fatalf("Await() Err = %v, want ErrTimeout", reply.Err)
	}

	// The reply arrives after the deadline already settled the waiter.
	// It must be discarded without panic or double delivery.
	c.Resolve(key, []byte("late"))
	c.Resolve(key, []byte("duplicate"))

	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}

func TestResolveUnknownKeyIsNoop(t *testing.T) {
	c := New()
	defer c.Close()

	c.Resolve("never-issued", []byte("payload"))

	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}

func TestAwaitUnknownKey(t *testing.T) {
	c := New()
	defer c.Close()

	reply := <-c.Await("never-issued")
	if !errors.Is(reply.Err, ErrUnknownKey) {
		t.Errorf("Await() Err = %v, want ErrUnknownKey", reply.Err)
	}
}

func TestConcurrentKeysNeverCrossResolve(t *testing.T) {
	c := New()
	defer c.Close()

	k1 := c.Issue(time.Second)
	k2 := c.Issue(time.Second)

	if k1 == k2 {
		t.Fatal("Issue() returned duplicate keys")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.Resolve(k1, []byte("one"))
	}()
	go func() {
		defer wg.Done()
		c.Resolve(k2, []byte("two"))
	}()
	wg.Wait()

	r1 := <-c.Await(k1)
	r2 := <-c.Await(k2)

	if string(r1.Payload) != "one" {
		t.Errorf("k1 payload = %q, want %q", r1.Payload, "one")
	}
	if string(r2.Payload) != "two" {
		t.Errorf("k2 payload = %q, want %q", r2.Payload, "two")
	}
}

func TestExactlyOneOfResolveOrTimeout(t *testing.T) {
	c := New()
	defer c.Close()

	// Race a resolve against a short deadline many times; the waiter
	// must settle exactly once either way, and always clear the table.
	for i := 0; i < 100; i++ {
		key := c.Issue(time.Millisecond)
		ch := c.Await(key)
		go c.Resolve(key, []byte("payload"))

		reply := <-ch
		if reply.Err != nil && !errors.Is(reply.Err, ErrTimeout) {
			t.Fatalf("iteration %d: unexpected Err = %v", i, reply.Err)
		}

		// The channel is one-shot: no second value may ever arrive.
		select {
		case extra := <-ch:
			t.Fatalf("iteration %d: second outcome delivered: %+v", i, extra)
		case <-time.After(5 * time.Millisecond):
		}
	}

	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after settle storm, want 0", c.Pending())
	}
}

func TestOnSettleHook(t *testing.T) {
	c := New()
	defer c.Close()

	var mu sync.Mutex
	outcomes := map[string]int{}
	c.SetOnSettle(func(outcome string, _ time.Duration) {
		mu.Lock()
		outcomes[outcome]++
		mu.Unlock()
	})

	resolved := c.Issue(time.Second)
	resolvedCh := c.Await(resolved)
	c.Resolve(resolved, nil)
	<-resolvedCh

	timedOut := c.Issue(10 * time.Millisecond)
	<-c.Await(timedOut)

	mu.Lock()
	defer mu.Unlock()
	if outcomes["resolved"] != 1 || outcomes["timeout"] != 1 {
		t.Errorf("settle outcomes = %v, want one resolved and one timeout", outcomes)
	}
}

func TestClose_SettlesPendingWaiters(t *testing.T) {
	c := New()

	key := c.Issue(time.Hour)
	ch := c.Await(key)

	c.Close()

	select {
	case reply := <-ch:
		if !errors.Is(reply.Err, ErrClosed) {
			t.Errorf("Err = %v, want ErrClosed", reply.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not settled by Close")
	}
}
