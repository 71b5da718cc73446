package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/edgracilla/chikka-gateway/internal/chikka"
	"github.com/edgracilla/chikka-gateway/internal/correlator"
	"github.com/edgracilla/chikka-gateway/internal/infrastructure/config"
	"github.com/edgracilla/chikka-gateway/internal/infrastructure/influxdb"
	"github.com/edgracilla/chikka-gateway/internal/infrastructure/mqtt"
	"github.com/edgracilla/chikka-gateway/internal/registry"
)

// Delivery status strings published on relay response topics.
const (
	statusSent      = "Message Sent Successfully"
	statusNoDevices = "No devices matched"
)

// commandTimeout is the deadline for one command delivery: the provider
// call plus correlation settle must finish inside it.
const commandTimeout = 5 * time.Second

// webhookRelay is the response channel name for commands submitted over
// the inbound webhook rather than a configured relay.
const webhookRelay = "webhook"

// Dispatcher consumes command instructions from the relay topics, fans
// them out per device, delivers each command through the aggregator,
// and publishes a correlated per-device response.
//
// Each delivery is issued a fresh correlation key which doubles as the
// command ID on the wire, so responders and dashboards can join the
// dispatch event, the provider call, and the final response.
//
// Thread Safety: All methods are safe for concurrent use.
type Dispatcher struct {
	relays  []string
	qos     byte
	timeout time.Duration

	bus      Bus
	corr     *correlator.Correlator
	reg      *registry.Registry
	delivery Deliverer
	logger   Logger
	metrics  *influxdb.Client

	topics mqtt.Topics

	// Shutdown coordination
	ctx       context.Context
	ctxCancel context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// DispatcherDeps bundles the dispatcher's dependencies.
type DispatcherDeps struct {
	Config   *config.Config
	Bus      Bus
	Corr     *correlator.Correlator
	Registry *registry.Registry
	Delivery Deliverer
	Logger   Logger

	// Metrics is optional; nil disables delivery metrics.
	Metrics *influxdb.Client
}

// NewDispatcher creates the command dispatcher.
func NewDispatcher(deps DispatcherDeps) (*Dispatcher, error) {
	switch {
	case deps.Config == nil:
		return nil, fmt.Errorf("%w: config", ErrMissingDependency)
	case deps.Bus == nil:
		return nil, fmt.Errorf("%w: bus", ErrMissingDependency)
	case deps.Corr == nil:
		return nil, fmt.Errorf("%w: correlator", ErrMissingDependency)
	case deps.Registry == nil:
		return nil, fmt.Errorf("%w: registry", ErrMissingDependency)
	case deps.Delivery == nil:
		return nil, fmt.Errorf("%w: delivery", ErrMissingDependency)
	case deps.Logger == nil:
		return nil, fmt.Errorf("%w: logger", ErrMissingDependency)
	}

	return &Dispatcher{
		relays:   deps.Config.Relays,
		qos:      byte(deps.Config.MQTT.QoS),
		timeout:  commandTimeout,
		bus:      deps.Bus,
		corr:     deps.Corr,
		reg:      deps.Registry,
		delivery: deps.Delivery,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
	}, nil
}

// Start subscribes to every configured relay topic.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.ctx, d.ctxCancel = context.WithCancel(ctx)

	for _, relay := range d.relays {
		name := relay
		topic := d.topics.Relay(name)
		handler := func(_ string, payload []byte) error {
			return d.handleInstruction(name, payload)
		}
		if err := d.bus.Subscribe(topic, d.qos, handler); err != nil {
			return fmt.Errorf("subscribing to relay %s: %w", name, err)
		}
		d.logger.Info("relay subscribed", "relay", name, "topic", topic)
	}

	return nil
}

// Stop cancels in-flight deliveries and waits for them to settle.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		if d.ctxCancel != nil {
			d.ctxCancel()
		}
		d.wg.Wait()
	})
}

// Submit runs a command instruction through the dispatcher on behalf of
// the inbound webhook. Responses are published on the webhook relay's
// response topic.
func (d *Dispatcher) Submit(instr CommandInstruction) {
	d.dispatch(webhookRelay, instr)
}

// handleInstruction decodes one relay message and dispatches it.
func (d *Dispatcher) handleInstruction(relay string, payload []byte) error {
	var instr CommandInstruction
	if err := json.Unmarshal(payload, &instr); err != nil {
		d.logger.Exception(fmt.Errorf("relay %s carried an undecodable instruction: %w", relay, err))
		return nil
	}

	d.dispatch(relay, instr)
	return nil
}

// dispatch expands the instruction's targets and launches one delivery
// per device. Group targets expand through the registry; explicit
// device IDs are taken as-is.
func (d *Dispatcher) dispatch(relay string, instr CommandInstruction) {
	devices := d.expandTargets(instr)
	if len(devices) == 0 {
		d.logger.Warn("instruction matched no devices",
			"relay", relay,
			"sequence_id", instr.SequenceID,
			"group", instr.DeviceGroup,
		)
		d.publishResponse(relay, CommandResponse{
			SequenceID: instr.SequenceID,
			Status:     statusNoDevices,
		})
		return
	}

	for _, device := range devices {
		d.deliverTo(relay, instr, device)
	}
}

// expandTargets resolves the instruction's device list, folding in the
// members of the named device group. Duplicates deliver once.
func (d *Dispatcher) expandTargets(instr CommandInstruction) []string {
	seen := make(map[string]bool, len(instr.Devices))
	devices := make([]string, 0, len(instr.Devices))

	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		devices = append(devices, id)
	}

	for _, id := range instr.Devices {
		add(id)
	}
	if instr.DeviceGroup != "" {
		for _, rec := range d.reg.ListByGroup(instr.DeviceGroup) {
			add(rec.DeviceID)
		}
	}

	return devices
}

// deliverTo issues a correlation key for one device, announces the
// dispatch, performs the provider call in the background, and publishes
// the settled outcome on the relay's response topic.
func (d *Dispatcher) deliverTo(relay string, instr CommandInstruction, device string) {
	commandID := d.corr.Issue(d.timeout)
	settled := d.corr.Await(commandID)

	d.announceDispatch(instr, device, commandID)

	d.wg.Add(2)

	// Provider call resolves the correlation with the outcome text.
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(d.baseContext(), d.timeout)
		defer cancel()

		start := time.Now()
		err := d.delivery.SendCommand(ctx, device, commandID, instr.Command)
		if d.metrics != nil {
			d.metrics.WriteDelivery(device, "SEND", deliveryOutcome(err), time.Since(start))
		}
		d.corr.Resolve(commandID, []byte(deliveryStatus(err)))
	}()

	// Collector waits for the correlation to settle, by resolution or
	// by deadline, and publishes the per-device response.
	go func() {
		defer d.wg.Done()

		reply := <-settled
		status := string(reply.Payload)
		if reply.Err != nil {
			status = fmt.Sprintf("Error sending message. Error: %v", reply.Err)
		}

		d.publishResponse(relay, CommandResponse{
			SequenceID: instr.SequenceID,
			CommandID:  commandID,
			Device:     device,
			Status:     status,
		})
	}()
}

// baseContext returns the dispatcher's lifecycle context, falling back
// to the background context when deliveries run before Start.
func (d *Dispatcher) baseContext() context.Context {
	if d.ctx != nil {
		return d.ctx
	}
	return context.Background()
}

// announceDispatch publishes the dispatch event on the device's topic so
// per-device consumers see the command before its outcome is known.
func (d *Dispatcher) announceDispatch(instr CommandInstruction, device, commandID string) {
	event := DispatchEvent{
		SequenceID: instr.SequenceID,
		CommandID:  commandID,
		Device:     device,
		Command:    instr.Command,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to encode dispatch event", "device_id", device, "error", err)
		return
	}

	topic := d.topics.Dispatch(device)
	if err := d.bus.Publish(topic, payload, d.qos, false); err != nil {
		d.logger.Error("dispatch event publish failed", "topic", topic, "error", err)
	}
}

// publishResponse publishes a settled per-device outcome.
func (d *Dispatcher) publishResponse(relay string, resp CommandResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		d.logger.Error("failed to encode command response", "error", err)
		return
	}

	topic := d.topics.RelayResponse(relay)
	if err := d.bus.Publish(topic, payload, d.qos, false); err != nil {
		d.logger.Error("command response publish failed", "topic", topic, "error", err)
		return
	}

	d.logger.Debug("command response published",
		"topic", topic,
		"command_id", resp.CommandID,
		"device_id", resp.Device,
		"status", resp.Status,
	)
}

// deliveryStatus maps a provider call result to the status text carried
// on the response topic.
func deliveryStatus(err error) string {
	switch {
	case err == nil:
		return statusSent
	case errors.Is(err, chikka.ErrProviderRejected):
		return fmt.Sprintf("Error sending message. %v", err)
	default:
		return fmt.Sprintf("Error sending message. Error: %v", err)
	}
}

// deliveryOutcome maps a provider call result to a metrics tag.
func deliveryOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, chikka.ErrProviderRejected):
		return "provider_rejected"
	default:
		return "transport_error"
	}
}
