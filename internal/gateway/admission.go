package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edgracilla/chikka-gateway/internal/chikka"
	"github.com/edgracilla/chikka-gateway/internal/infrastructure/config"
	"github.com/edgracilla/chikka-gateway/internal/infrastructure/influxdb"
	"github.com/edgracilla/chikka-gateway/internal/infrastructure/mqtt"
)

// AdmissionOutcome classifies an inbound message decision.
type AdmissionOutcome int

// Admission outcomes.
const (
	// Accepted means the message passed all gates and was published.
	Accepted AdmissionOutcome = iota

	// Rejected means the message failed a structural gate (wrong
	// shortcode, missing fields). The caller still acknowledges the
	// aggregator so it does not retry.
	Rejected

	// Unauthorized means the sending device is not registered.
	Unauthorized
)

// String returns the outcome label used in logs and metrics.
func (o AdmissionOutcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Unauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// AdmissionResult describes what the pipeline decided for one message.
type AdmissionResult struct {
	Outcome AdmissionOutcome

	// Reason is a short tag explaining non-accepted outcomes.
	Reason string
}

// replyAckTimeout bounds the provider acknowledgement call so a slow
// aggregator cannot hold admission goroutines indefinitely.
const replyAckTimeout = 10 * time.Second

// Admission validates inbound messages and publishes accepted ones to
// the configured pipe topics.
//
// Gates are applied in order: shortcode match, mandatory fields, then
// device authorization. Accepted messages are acknowledged back to the
// device over the aggregator's free reply channel and fanned out to
// every pipe.
//
// Thread Safety: safe for concurrent use.
type Admission struct {
	shortCode string
	pipes     []string
	qos       byte

	bus      Bus
	resolver AuthResolver
	delivery Deliverer
	logger   Logger
	metrics  *influxdb.Client

	topics mqtt.Topics
}

// AdmissionDeps bundles the admission pipeline's dependencies.
type AdmissionDeps struct {
	Config   *config.Config
	Bus      Bus
	Resolver AuthResolver
	Delivery Deliverer
	Logger   Logger

	// Metrics is optional; nil disables admission metrics.
	Metrics *influxdb.Client
}

// NewAdmission creates the admission pipeline.
func NewAdmission(deps AdmissionDeps) (*Admission, error) {
	switch {
	case deps.Config == nil:
		return nil, fmt.Errorf("%w: config", ErrMissingDependency)
	case deps.Bus == nil:
		return nil, fmt.Errorf("%w: bus", ErrMissingDependency)
	case deps.Resolver == nil:
		return nil, fmt.Errorf("%w: resolver", ErrMissingDependency)
	case deps.Delivery == nil:
		return nil, fmt.Errorf("%w: delivery", ErrMissingDependency)
	case deps.Logger == nil:
		return nil, fmt.Errorf("%w: logger", ErrMissingDependency)
	}

	return &Admission{
		shortCode: deps.Config.Chikka.ShortCode,
		pipes:     deps.Config.Pipes,
		qos:       byte(deps.Config.MQTT.QoS),
		bus:       deps.Bus,
		resolver:  deps.Resolver,
		delivery:  deps.Delivery,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
	}, nil
}

// Admit runs one inbound message through the admission gates.
//
// Rejections and authorization failures return without publishing; the
// HTTP layer decides how to answer the aggregator. Accepted messages
// are published to the pipes and acknowledged asynchronously so the
// webhook response is not held behind the provider call.
func (a *Admission) Admit(ctx context.Context, msg InboundMessage) AdmissionResult {
	if msg.ShortCode != a.shortCode {
		a.logger.Exception(fmt.Errorf("message shortcode %q does not match configured shortcode %q", msg.ShortCode, a.shortCode),
			"device_id", msg.MobileNumber,
			"request_id", msg.RequestID,
		)
		a.record(msg.MobileNumber, Rejected, "shortcode_mismatch")
		return AdmissionResult{Outcome: Rejected, Reason: "shortcode_mismatch"}
	}

	if msg.MobileNumber == "" {
		a.logger.Exception(fmt.Errorf("inbound message has no mobile_number"),
			"request_id", msg.RequestID,
		)
		a.record("", Rejected, "missing_mobile_number")
		return AdmissionResult{Outcome: Rejected, Reason: "missing_mobile_number"}
	}

	if !a.resolver.Authorized(ctx, msg.MobileNumber) {
		a.logger.Exception(fmt.Errorf("device %s is not authorized", msg.MobileNumber),
			"request_id", msg.RequestID,
		)
		a.record(msg.MobileNumber, Unauthorized, "unregistered_device")
		return AdmissionResult{Outcome: Unauthorized, Reason: "unregistered_device"}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		// Only reachable if the message type gains an unmarshalable field.
		a.logger.Error("failed to encode inbound message", "error", err, "device_id", msg.MobileNumber)
		a.record(msg.MobileNumber, Rejected, "encode_failure")
		return AdmissionResult{Outcome: Rejected, Reason: "encode_failure"}
	}

	// Neither the pipe fan-out nor the provider ack holds up the
	// webhook response.
	go a.publish(msg, payload)
	go a.acknowledge(msg)

	a.record(msg.MobileNumber, Accepted, "")
	return AdmissionResult{Outcome: Accepted}
}

// publish fans the encoded message out to every configured pipe topic.
// Individual publish failures are logged and do not affect the others.
func (a *Admission) publish(msg InboundMessage, payload []byte) {
	for _, pipe := range a.pipes {
		topic := a.topics.Pipe(pipe)
		if err := a.bus.Publish(topic, payload, a.qos, false); err != nil {
			a.logger.Error("pipe publish failed",
				"topic", topic,
				"device_id", msg.MobileNumber,
				"error", err,
			)
			continue
		}
		a.logger.Debug("inbound message published",
			"topic", topic,
			"device_id", msg.MobileNumber,
			"request_id", msg.RequestID,
		)
	}
}

// acknowledge sends the free-channel reply that confirms receipt to the
// device. Failures are logged; the message is already on the bus.
func (a *Admission) acknowledge(msg InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), replyAckTimeout)
	defer cancel()

	start := time.Now()
	err := a.delivery.SendReply(ctx, msg.MobileNumber, msg.RequestID, chikka.NewMessageID())
	if err != nil {
		a.logger.Error("reply acknowledgement failed",
			"device_id", msg.MobileNumber,
			"request_id", msg.RequestID,
			"error", err,
		)
		if a.metrics != nil {
			a.metrics.WriteDelivery(msg.MobileNumber, "REPLY", deliveryOutcome(err), time.Since(start))
		}
		return
	}

	if a.metrics != nil {
		a.metrics.WriteDelivery(msg.MobileNumber, "REPLY", "ok", time.Since(start))
	}
}

// record writes an admission metric when metrics are enabled.
func (a *Admission) record(deviceID string, outcome AdmissionOutcome, reason string) {
	if a.metrics == nil {
		return
	}
	a.metrics.WriteAdmission(deviceID, outcome.String(), reason)
}
