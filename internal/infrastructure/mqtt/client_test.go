package mqtt

import (
	"errors"
	"testing"
)

// Validation paths run before any broker interaction, so they are
// testable on a zero-value client.

func TestPublishEmptyTopic(t *testing.T) {
	c := &Client{}

	err := c.Publish("", []byte("payload"), 1, false)
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish() error = %v, want ErrInvalidTopic", err)
	}
}

func TestPublishInvalidQoS(t *testing.T) {
	c := &Client{}

	err := c.Publish("chikka/pipe/messages", []byte("payload"), 3, false)
	if !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish() error = %v, want ErrInvalidQoS", err)
	}
}

func TestPublishOversizedPayload(t *testing.T) {
	c := &Client{}

	err := c.Publish("chikka/pipe/messages", make([]byte, maxPayloadSize+1), 1, false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribeEmptyTopic(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	err := c.Subscribe("", 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe() error = %v, want ErrInvalidTopic", err)
	}
}

func TestSubscribeNilHandler(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	err := c.Subscribe("chikka/relay/commands", 1, nil)
	if !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe() error = %v, want ErrSubscribeFailed", err)
	}
}

func TestSubscriptionCount_Empty(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if got := c.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", got)
	}
	if c.HasSubscription("chikka/relay/commands") {
		t.Error("HasSubscription() = true for empty client")
	}
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"pipe", topics.Pipe("messages"), "chikka/pipe/messages"},
		{"relay", topics.Relay("commands"), "chikka/relay/commands"},
		{"relay response", topics.RelayResponse("commands"), "chikka/response/commands"},
		{"dispatch", topics.Dispatch("639178888888"), "chikka/dispatch/639178888888"},
		{"device add", topics.DeviceAdd(), "chikka/devices/add"},
		{"device remove", topics.DeviceRemove(), "chikka/devices/remove"},
		{"deviceinfo request", topics.DeviceInfoRequest(), "chikka/deviceinfo/request"},
		{"deviceinfo response", topics.DeviceInfoResponse("k1"), "chikka/deviceinfo/response/k1"},
		{"deviceinfo wildcard", topics.AllDeviceInfoResponses(), "chikka/deviceinfo/response/+"},
		{"system status", topics.SystemStatus(), "chikka/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
