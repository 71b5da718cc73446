package gateway

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/edgracilla/chikka-gateway/internal/infrastructure/mqtt"
)

// Bus is the interface for message bus operations.
// This allows mocking in tests and flexibility in implementation.
// It is satisfied by *mqtt.Client.
type Bus interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Deliverer sends messages to the SMS aggregator.
// It is satisfied by *chikka.Client.
type Deliverer interface {
	// SendReply acknowledges an inbound message over the free reply channel.
	SendReply(ctx context.Context, mobileNumber, requestID, messageID string) error

	// SendCommand delivers a billable command text to a device.
	SendCommand(ctx context.Context, mobileNumber, commandID, commandText string) error
}

// Logger is the interface for structured logging within the gateway.
// It is satisfied by *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Exception(err error, args ...any)
}

// InboundMessage is a device-originated SMS after field extraction.
type InboundMessage struct {
	MobileNumber string `json:"mobile_number"`
	ShortCode    string `json:"shortcode"`
	RequestID    string `json:"request_id"`
	Message      string `json:"message"`
	Topic        string `json:"topic,omitempty"`

	// Command carries the command text of a webhook command
	// submission (topic=command). Telemetry posts leave it empty.
	Command string `json:"command,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// topicCommand marks an inbound webhook post as a command submission
// rather than device telemetry.
const topicCommand = "command"

// IsCommand reports whether the message is an inbound command submission
// destined for the dispatcher rather than the admission pipeline.
func (m *InboundMessage) IsCommand() bool {
	return strings.EqualFold(m.Topic, topicCommand)
}

// CommandText returns the text a command submission asks to deliver,
// preferring the dedicated command field over the message body.
func (m *InboundMessage) CommandText() string {
	if m.Command != "" {
		return m.Command
	}
	return m.Message
}

// parseInbound extracts an InboundMessage from decoded form values.
// Unknown fields are ignored; missing fields decode to empty strings
// and are validated downstream.
func parseInbound(form url.Values) InboundMessage {
	return InboundMessage{
		MobileNumber: strings.TrimSpace(form.Get("mobile_number")),
		ShortCode:    strings.TrimSpace(form.Get("shortcode")),
		RequestID:    strings.TrimSpace(form.Get("request_id")),
		Message:      form.Get("message"),
		Topic:        strings.TrimSpace(form.Get("topic")),
		Command:      form.Get("command"),
		ReceivedAt:   time.Now().UTC(),
	}
}

// CommandInstruction is a bus-originated request to deliver a command
// to one or more devices.
type CommandInstruction struct {
	// SequenceID is the caller's identifier, echoed back on every
	// per-device response so callers can match fan-out results.
	SequenceID string `json:"sequenceId"`

	// Command is the text delivered to each target device.
	Command string `json:"command"`

	// Devices lists explicit target device IDs.
	Devices []string `json:"devices,omitempty"`

	// DeviceGroup expands to every registered device in the group.
	DeviceGroup string `json:"deviceGroup,omitempty"`
}

// CommandResponse is the per-device outcome published on a relay's
// response topic once delivery settles.
type CommandResponse struct {
	SequenceID string `json:"sequenceId"`
	CommandID  string `json:"commandId"`
	Device     string `json:"device,omitempty"`
	Status     string `json:"status"`
}

// DispatchEvent is published on a device's dispatch topic when a command
// is handed to the delivery client, before the outcome is known.
type DispatchEvent struct {
	SequenceID string `json:"sequenceId"`
	CommandID  string `json:"commandId"`
	Device     string `json:"device"`
	Command    string `json:"command"`
}

// DeviceInfoRequest asks the platform for a device's registration record.
// The Key doubles as the correlation key: responders publish the record
// on the response topic suffixed with this key.
type DeviceInfoRequest struct {
	Key      string `json:"key"`
	DeviceID string `json:"device_id"`
}

// deviceRemoval is the payload accepted on the device removal topic.
type deviceRemoval struct {
	DeviceID string `json:"device_id"`
}
