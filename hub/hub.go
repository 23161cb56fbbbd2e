// Package hub implements the per-hub protocol runtime: a state machine that
// selects a wire protocol from the discovered services, bootstraps
// notification subscriptions, projects inbound frames into a queryable
// snapshot and translates semantic commands into outbound frames.
//
// A runtime is logically single-threaded: every transport event and command
// is serialized through one event loop goroutine, so decoding and model
// mutation never race. The snapshot is guarded by a mutex and produced by
// copy-on-read, so readers never hold the lock across user code.
package hub

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"

	"github.com/srg/hublink/internal/bytesx"
	"github.com/srg/hublink/internal/ringchan"
	"github.com/srg/hublink/jsonline"
	"github.com/srg/hublink/lwp3"
	"github.com/srg/hublink/spike"
)

// ConnectionError reports an operation attempted in the wrong state.
type ConnectionError struct {
	Op    string
	State State
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s is not valid while %s", e.Op, e.State)
}

// ErrConnectTimeout is the disconnect reason when the connect deadline
// elapses before the transport reports services.
var ErrConnectTimeout = fmt.Errorf("connect deadline elapsed")

// Options configures a hub runtime. Zero values take the defaults from the
// struct tags.
type Options struct {
	// ConnectTimeout bounds the time between Connect and the transport
	// reporting connected with discovered services.
	ConnectTimeout time.Duration `default:"10s"`
	// RSSIPollInterval is the signal-strength polling period while
	// connected.
	RSSIPollInterval time.Duration `default:"5s"`
	// BatteryEventInterval is the dampening window for battery-changed
	// events on an unchanged value.
	BatteryEventInterval time.Duration `default:"120s"`
	// NotificationIntervalMS is the telemetry interval requested from
	// SPIKE binary hubs.
	NotificationIntervalMS uint16 `default:"5000"`
	// EventBufferSize is the per-subscriber event buffer. Slow
	// subscribers lose oldest events past this depth.
	EventBufferSize int `default:"64"`
}

// Hub is one hub runtime bound to one transport.
type Hub struct {
	logger     *logrus.Logger
	opts       Options
	identifier string
	transport  Transport

	events   chan TransportEvent
	commands chan Command
	ctl      chan ctlRequest
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	state    State
	protocol Protocol
	name     string
	rssi     int16
	lastSeen time.Time
	model    *model
	subs     map[*Subscription]struct{}

	// Loop-owned fields, touched only by run().
	writeTag   string
	notifyTag  string
	lineTag    string
	maxPacket  int
	spikeBuf   []byte
	battLast   int
	battEmit   time.Time
	battSeen   bool
	deadline   <-chan time.Time
	rssiTicker *time.Ticker
	rssiCh     <-chan time.Time
}

type ctlOp int

const (
	ctlConnect ctlOp = iota
	ctlDisconnect
)

type ctlRequest struct {
	op    ctlOp
	reply chan error
}

// Subscription is one registered event listener.
type Subscription struct {
	hub  *Hub
	ring *ringchan.Ring[Event]
}

// C returns the event channel. It is closed when the subscription or the
// hub closes.
func (s *Subscription) C() <-chan Event { return s.ring.C() }

// Close unregisters the subscription.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s)
	s.hub.mu.Unlock()
	s.ring.Close()
}

// New creates a hub runtime for an already-paired transport and starts its
// event loop. identifier is the stable hub identity (BLE address or
// accessory path).
func New(identifier string, transport Transport, opts *Options, logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = &Options{}
	}
	defaults.SetDefaults(opts)

	h := &Hub{
		logger:     logger,
		opts:       *opts,
		identifier: identifier,
		transport:  transport,
		events:     make(chan TransportEvent, 1024),
		commands:   make(chan Command, 64),
		ctl:        make(chan ctlRequest),
		done:       make(chan struct{}),
		model:      newModel(),
		subs:       make(map[*Subscription]struct{}),
	}
	go h.run()
	return h
}

// Identifier returns the stable hub identity.
func (h *Hub) Identifier() string { return h.identifier }

// Name returns the last known hub name.
func (h *Hub) Name() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.name
}

// SetObservedName records a name learned outside the protocol, e.g. from an
// advertisement.
func (h *Hub) SetObservedName(name string) {
	h.mu.Lock()
	changed := name != "" && name != h.name
	if changed {
		h.name = name
	}
	h.mu.Unlock()
	if changed {
		h.publish(Event{Type: EventName, Name: name})
	}
}

// State returns the connection state.
func (h *Hub) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Protocol returns the protocol selected after service discovery.
func (h *Hub) Protocol() Protocol {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.protocol
}

// LastSeen returns the time of the last advertisement or RSSI observation.
func (h *Hub) LastSeen() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSeen
}

// Touch updates the last-seen time and RSSI from an external observation.
func (h *Hub) Touch(rssi int16, at time.Time) {
	h.mu.Lock()
	h.lastSeen = at
	changed := rssi != 0 && rssi != h.rssi
	if changed {
		h.rssi = rssi
	}
	h.mu.Unlock()
	if changed {
		h.publish(Event{Type: EventRSSI, RSSI: rssi})
	}
}

// Connect asks the transport to establish the connection. Valid only while
// disconnected or disconnecting.
func (h *Hub) Connect() error {
	return h.control(ctlConnect)
}

// Disconnect asks the transport to close. Valid while connected or
// connecting; a no-op while already disconnected.
func (h *Hub) Disconnect() error {
	return h.control(ctlDisconnect)
}

func (h *Hub) control(op ctlOp) error {
	req := ctlRequest{op: op, reply: make(chan error, 1)}
	select {
	case h.ctl <- req:
		return <-req.reply
	case <-h.done:
		return fmt.Errorf("hub %s is closed", h.identifier)
	}
}

// OnTransportEvent delivers one upward transport event. Events are
// processed in arrival order; under sustained overload the newest events
// are dropped with a log message rather than blocking the transport.
func (h *Hub) OnTransportEvent(evt TransportEvent) {
	select {
	case h.events <- evt:
	case <-h.done:
	default:
		h.logger.WithField("hub", h.identifier).Warn("Transport event queue full, dropping event")
	}
}

// Send enqueues a semantic command. Commands are encoded and written in
// order with respect to each other.
func (h *Hub) Send(cmd Command) error {
	select {
	case h.commands <- cmd:
		return nil
	case <-h.done:
		return fmt.Errorf("hub %s is closed", h.identifier)
	}
}

// Snapshot returns a consistent copy of the device model.
func (h *Hub) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.model.snapshot()
	s.State = h.state
	s.Name = h.name
	s.Identifier = h.identifier
	s.RSSI = h.rssi
	s.LastSeen = h.lastSeen
	return s
}

// Subscribe registers an event listener.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{hub: h, ring: ringchan.New[Event](h.opts.EventBufferSize)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Close stops the runtime and closes the transport. It is idempotent.
func (h *Hub) Close() {
	h.stopOnce.Do(func() {
		close(h.done)
		_ = h.transport.Close()
	})
}

func (h *Hub) publish(evt Event) {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()
	for _, s := range subs {
		s.ring.Send(evt)
	}
}

func (h *Hub) setState(s State) {
	h.mu.Lock()
	if h.state == s {
		h.mu.Unlock()
		return
	}
	h.state = s
	h.mu.Unlock()
	h.logger.WithFields(logrus.Fields{"hub": h.identifier, "state": s}).Debug("Hub state changed")
	h.publish(Event{Type: EventState, State: s})
}

// run is the single event loop owning all protocol state.
func (h *Hub) run() {
	defer func() {
		if h.rssiTicker != nil {
			h.rssiTicker.Stop()
		}
		h.mu.Lock()
		subs := h.subs
		h.subs = make(map[*Subscription]struct{})
		h.mu.Unlock()
		for s := range subs {
			s.ring.Close()
		}
	}()

	for {
		select {
		case <-h.done:
			return
		case req := <-h.ctl:
			req.reply <- h.handleControl(req.op)
		case evt := <-h.events:
			h.handleTransportEvent(evt)
		case cmd := <-h.commands:
			h.handleCommand(cmd)
		case <-h.deadline:
			h.handleDeadline()
		case <-h.rssiCh:
			_ = h.transport.ReadRSSI()
		}
	}
}

func (h *Hub) handleControl(op ctlOp) error {
	state := h.State()
	switch op {
	case ctlConnect:
		if state != Disconnected && state != Disconnecting {
			return &ConnectionError{Op: "connect", State: state}
		}
		h.setState(Connecting)
		h.deadline = time.After(h.opts.ConnectTimeout)
		if err := h.transport.Open(); err != nil {
			h.deadline = nil
			h.setState(Disconnected)
			return fmt.Errorf("transport open: %w", err)
		}
		return nil
	case ctlDisconnect:
		if state == Disconnected {
			return nil
		}
		h.setState(Disconnecting)
		return h.transport.Close()
	default:
		return fmt.Errorf("unknown control op %d", op)
	}
}

func (h *Hub) handleDeadline() {
	h.deadline = nil
	if h.State() != Connecting {
		return
	}
	h.logger.WithField("hub", h.identifier).Warn("Connect deadline elapsed, closing transport")
	h.publish(Event{Type: EventDiagnostic, Err: ErrConnectTimeout, Text: ErrConnectTimeout.Error()})
	h.setState(Disconnecting)
	_ = h.transport.Close()
}

func (h *Hub) handleTransportEvent(evt TransportEvent) {
	switch e := evt.(type) {
	case ConnectedEvent:
		h.logger.WithField("hub", h.identifier).Debug("Transport link up")
	case DisconnectedEvent:
		h.handleDisconnected(e)
	case ServicesDiscoveredEvent:
		h.handleServices(e.Services)
	case FrameReceivedEvent:
		h.handleFrame(e)
	case LineReceivedEvent:
		h.handleLine(e.Data)
	case RSSIEvent:
		h.Touch(e.RSSI, time.Now())
	}
}

func (h *Hub) handleDisconnected(e DisconnectedEvent) {
	h.deadline = nil
	h.stopRSSIPolling()
	h.spikeBuf = nil
	h.battSeen = false

	h.mu.Lock()
	h.protocol = ProtocolNone
	h.model.reset()
	h.mu.Unlock()

	if e.Reason != nil {
		h.logger.WithFields(logrus.Fields{"hub": h.identifier, "reason": e.Reason}).Info("Hub disconnected")
		h.publish(Event{Type: EventDiagnostic, Err: e.Reason, Text: e.Reason.Error()})
	}
	h.setState(Disconnected)
	h.publish(Event{Type: EventAttachedDevices})
	h.publish(Event{Type: EventDeviceData})
}

// handleServices selects the protocol: the SPIKE service wins over LWP3, a
// line-hinted characteristic marks the accessory stream, and a catalog with
// neither yields a no-usable-protocol event for the manager to act on.
func (h *Hub) handleServices(services []ServiceInfo) {
	if h.State() != Connecting && h.State() != Connected {
		return
	}
	h.deadline = nil

	protocol := ProtocolNone
	for _, svc := range services {
		if NormalizeUUID(svc.UUID) != NormalizeUUID(SpikeServiceUUID) {
			continue
		}
		protocol = ProtocolSpikeBinary
		for _, c := range svc.Characteristics {
			switch {
			case NormalizeUUID(c.ID) == NormalizeUUID(SpikeRXCharacteristicUUID) || (c.Write && !c.Notify):
				h.writeTag = c.ID
			case NormalizeUUID(c.ID) == NormalizeUUID(SpikeTXCharacteristicUUID) || c.Notify:
				h.notifyTag = c.ID
			}
		}
		break
	}
	if protocol == ProtocolNone {
		for _, svc := range services {
			if NormalizeUUID(svc.UUID) != NormalizeUUID(LWP3ServiceUUID) {
				continue
			}
			protocol = ProtocolLWP3BLE
			for _, c := range svc.Characteristics {
				if NormalizeUUID(c.ID) == NormalizeUUID(LWP3CharacteristicUUID) || c.Write || c.Notify {
					h.writeTag = c.ID
					h.notifyTag = c.ID
					break
				}
			}
			break
		}
	}
	if protocol == ProtocolNone {
		for _, svc := range services {
			for _, c := range svc.Characteristics {
				if c.Line {
					protocol = ProtocolSpikeJSON
					h.lineTag = c.ID
					break
				}
			}
		}
	}

	h.mu.Lock()
	h.protocol = protocol
	h.mu.Unlock()

	if protocol == ProtocolNone {
		h.logger.WithField("hub", h.identifier).Warn("No usable protocol among discovered services")
		h.setState(Connected)
		h.publish(Event{Type: EventNoUsableProtocol})
		return
	}

	h.logger.WithFields(logrus.Fields{"hub": h.identifier, "protocol": protocol}).Info("Protocol selected")
	h.setState(Connected)
	h.startRSSIPolling()
	h.bootstrap(protocol)
}

func (h *Hub) bootstrap(protocol Protocol) {
	switch protocol {
	case ProtocolLWP3BLE:
		_ = h.transport.Subscribe(h.notifyTag)
		h.writeLWP3(lwp3.HubPropertyRequest(lwp3.PropBatteryVoltage))
		h.writeLWP3(lwp3.HubPropertyEnableUpdates(lwp3.PropBatteryVoltage))
	case ProtocolSpikeBinary:
		_ = h.transport.Subscribe(h.notifyTag)
		h.writeSpike(spike.InfoRequest())
	case ProtocolSpikeJSON:
		// The accessory stream sends unsolicited telemetry.
	}
}

func (h *Hub) startRSSIPolling() {
	if h.rssiTicker != nil {
		return
	}
	h.rssiTicker = time.NewTicker(h.opts.RSSIPollInterval)
	h.rssiCh = h.rssiTicker.C
}

func (h *Hub) stopRSSIPolling() {
	if h.rssiTicker != nil {
		h.rssiTicker.Stop()
		h.rssiTicker = nil
		h.rssiCh = nil
	}
}

func (h *Hub) handleFrame(e FrameReceivedEvent) {
	switch h.Protocol() {
	case ProtocolLWP3BLE:
		h.handleLWP3Frame(e.Data)
	case ProtocolSpikeBinary:
		// Frames may arrive split across notifications; reassemble up to
		// each delimiter.
		h.spikeBuf = append(h.spikeBuf, e.Data...)
		for {
			idx := bytes.IndexByte(h.spikeBuf, spike.Delimiter)
			if idx < 0 {
				return
			}
			frame := h.spikeBuf[:idx+1]
			h.spikeBuf = h.spikeBuf[idx+1:]
			if msg := spike.Unpack(frame); len(msg) > 0 {
				h.handleSpikeMessage(msg)
			}
		}
	}
}

func (h *Hub) handleLWP3Frame(frame []byte) {
	msg, err := lwp3.Decode(frame)
	if err != nil {
		h.logger.WithFields(logrus.Fields{"hub": h.identifier, "frame": bytesx.Hex(frame)}).Debug("Dropping malformed frame")
		return
	}

	switch m := msg.(type) {
	case lwp3.AttachedIOMessage:
		h.handleAttachedIO(m)
	case lwp3.PortValueSingleMessage:
		h.mu.Lock()
		h.model.rawValues[m.Port] = m.Value
		h.mu.Unlock()
		h.publish(Event{Type: EventDeviceData})
	case lwp3.HubPropertyMessage:
		h.handleHubProperty(m)
	case lwp3.GenericErrorMessage:
		h.publish(Event{
			Type: EventDiagnostic,
			Text: fmt.Sprintf("hub rejected %s (code 0x%02X)", m.CommandType, m.Code),
		})
	case lwp3.UnknownMessage:
		h.publish(Event{
			Type: EventDiagnostic,
			Text: fmt.Sprintf("unknown message %s: %s", m.RawType, bytesx.Hex(m.Payload)),
		})
	}
}

func (h *Hub) handleAttachedIO(m lwp3.AttachedIOMessage) {
	h.mu.Lock()
	switch m.Event {
	case lwp3.IODetached:
		h.model.detach(m.Port)
	case lwp3.IOAttached:
		h.model.attach(m.Port, AttachedDevice{
			Device:   m.Device,
			Category: m.Device.Category(),
			Label:    m.Device.String(),
		})
	case lwp3.IOAttachedVirtual:
		h.model.attach(m.Port, AttachedDevice{
			Device:   m.Device,
			Category: m.Device.Category(),
			Label:    m.Device.String(),
			Virtual:  true,
			PortA:    m.PortA,
			PortB:    m.PortB,
		})
	}
	h.mu.Unlock()
	h.publish(Event{Type: EventAttachedDevices})

	// External ports get mode-0 notifications enabled on attach.
	if m.Event == lwp3.IOAttached && m.Port < lwp3.VirtualPortBase {
		h.writeLWP3(lwp3.PortInputFormatSetup(m.Port, 0, 1, true))
	}
}

func (h *Hub) handleHubProperty(m lwp3.HubPropertyMessage) {
	if m.Operation != lwp3.OpUpdate {
		return
	}
	switch m.Property {
	case lwp3.PropBatteryVoltage:
		if len(m.Payload) < 1 {
			return
		}
		h.updateBattery(int(m.Payload[0]))
	case lwp3.PropAdvertisingName:
		h.SetObservedName(string(m.Payload))
	case lwp3.PropRSSI:
		if len(m.Payload) >= 1 {
			h.Touch(int16(int8(m.Payload[0])), time.Now())
		}
	}
}

// updateBattery stores the reading and applies event dampening: the first
// nonzero reading emits immediately, afterwards a change or an elapsed
// dampening window does.
func (h *Hub) updateBattery(level int) {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	h.mu.Lock()
	h.model.battery = &level
	h.mu.Unlock()

	now := time.Now()
	switch {
	case !h.battSeen && level == 0:
		return
	case !h.battSeen, level != h.battLast, now.Sub(h.battEmit) >= h.opts.BatteryEventInterval:
		h.battSeen = true
		h.battLast = level
		h.battEmit = now
		h.publish(Event{Type: EventBattery, Battery: level})
	}
}

func (h *Hub) handleSpikeMessage(msg []byte) {
	switch msg[0] {
	case spike.TagInfoResponse:
		info, err := spike.ParseInfoResponse(msg)
		if err != nil {
			h.logger.WithField("hub", h.identifier).WithError(err).Debug("Bad InfoResponse")
			return
		}
		h.maxPacket = int(info.MaxPacketSize)
		h.logger.WithFields(logrus.Fields{
			"hub":       h.identifier,
			"firmware":  fmt.Sprintf("%d.%d.%d", info.FirmwareMajor, info.FirmwareMinor, info.FirmwareBuild),
			"maxPacket": info.MaxPacketSize,
		}).Info("SPIKE hub info")
		h.writeSpike(spike.DeviceNotificationRequest(h.opts.NotificationIntervalMS))
	case spike.TagDeviceNotification:
		n, err := spike.ParseDeviceNotification(msg)
		if err != nil {
			return
		}
		h.applyTelemetry(n.Records, nil)
	case spike.TagConsoleNotification:
		if text, ok := spike.ConsoleText(msg); ok {
			h.publish(Event{Type: EventConsole, Text: text})
		}
	default:
		h.publish(Event{
			Type: EventDiagnostic,
			Text: fmt.Sprintf("unknown SPIKE message 0x%02X: %s", msg[0], bytesx.Hex(msg)),
		})
	}
}

// applyTelemetry replaces the typed per-port maps with the records of one
// notification. Each notification is a complete snapshot of the hub's
// current port state, so absent ports drop out.
func (h *Hub) applyTelemetry(records []spike.Record, attached map[byte]lwp3.DeviceType) {
	var battery *int

	h.mu.Lock()
	prevAttached := len(h.model.attached)
	h.model.replaceTelemetry(records)
	for port, dev := range attached {
		h.model.ensureAttached(port, dev)
	}
	attachedChanged := len(h.model.attached) != prevAttached
	if h.model.battery != nil {
		b := *h.model.battery
		battery = &b
	}
	h.mu.Unlock()

	if battery != nil {
		h.updateBattery(*battery)
	}
	if attachedChanged {
		h.publish(Event{Type: EventAttachedDevices})
	}
	h.publish(Event{Type: EventDeviceData})
}

func (h *Hub) handleLine(line []byte) {
	msg, err := jsonline.Decode(line)
	if err != nil {
		h.logger.WithField("hub", h.identifier).WithError(err).Debug("Dropping malformed telemetry line")
		return
	}
	switch m := msg.(type) {
	case jsonline.TelemetryMessage:
		h.applyTelemetry(m.Records, m.Attached)
	case jsonline.BatteryMessage:
		h.updateBattery(int(m.Level))
	case jsonline.GestureMessage:
		h.mu.Lock()
		h.model.gesture = m.Name
		h.mu.Unlock()
		h.publish(Event{Type: EventDeviceData})
	}
}

func (h *Hub) handleCommand(cmd Command) {
	if h.State() != Connected {
		h.publish(Event{Type: EventDiagnostic, Text: "command dropped: hub not connected"})
		return
	}
	switch h.Protocol() {
	case ProtocolLWP3BLE:
		h.sendLWP3Command(cmd)
	case ProtocolSpikeBinary:
		h.sendSpikeCommand(cmd)
	case ProtocolSpikeJSON:
		h.sendJSONCommand(cmd)
	default:
		h.unsupported(cmd)
	}
}

func (h *Hub) sendLWP3Command(cmd Command) {
	switch c := cmd.(type) {
	case PortOutputCommand:
		h.writeLWP3(lwp3.PortOutput(c.Port, c.Sub, c.Payload))
	case SetLEDColorCommand:
		h.writeLWP3(lwp3.SetLEDColor(c.Port, c.Color))
	case SetLEDRGBCommand:
		h.writeLWP3(lwp3.SetLEDRGB(c.Port, c.R, c.G, c.B))
	case SetNameCommand:
		h.writeLWP3(lwp3.SetAdvertisingName(c.Name))
		h.SetObservedName(c.Name)
	case HubActionCommand:
		h.writeLWP3(lwp3.HubActionCommand(c.Action))
	case VirtualPortCommand:
		if c.Connect {
			h.writeLWP3(lwp3.CreateVirtualPort(c.PortA, c.PortB))
		} else {
			h.writeLWP3(lwp3.DisconnectVirtualPort(c.PortA))
		}
	case RawFrameCommand:
		h.writeLWP3(c.Frame)
	default:
		h.unsupported(cmd)
	}
}

func (h *Hub) sendSpikeCommand(cmd Command) {
	switch c := cmd.(type) {
	case SetNameCommand:
		h.writeSpike(spike.SetHubName(c.Name))
		h.SetObservedName(c.Name)
	case ProgramFlowCommand:
		h.writeSpike(spike.ProgramFlowRequest(c.Stop, c.Slot))
	case RawFrameCommand:
		h.writeSpike(c.Frame)
	default:
		h.unsupported(cmd)
	}
}

func (h *Hub) sendJSONCommand(cmd Command) {
	switch c := cmd.(type) {
	case PortOutputCommand:
		line, err := jsonline.TranslateOutput(c.Port, c.Sub, c.Payload)
		if err != nil {
			h.publish(Event{Type: EventDiagnostic, Err: err, Text: err.Error()})
			return
		}
		if err := h.transport.Write(line, h.lineTag, WriteWithoutResponse); err != nil {
			h.writeFailed(err)
		}
	default:
		h.unsupported(cmd)
	}
}

func (h *Hub) unsupported(cmd Command) {
	text := fmt.Sprintf("command %T is not supported on %s", cmd, h.Protocol())
	h.logger.WithField("hub", h.identifier).Debug(text)
	h.publish(Event{Type: EventDiagnostic, Text: text})
}

func (h *Hub) writeLWP3(frame []byte) {
	if err := h.transport.Write(frame, h.writeTag, WriteWithoutResponse); err != nil {
		h.writeFailed(err)
	}
}

// writeSpike packs a message and writes it in chunks no larger than the
// negotiated packet size.
func (h *Hub) writeSpike(msg []byte) {
	frame := spike.Pack(msg, false)
	for _, chunk := range spike.Chunks(frame, h.maxPacket) {
		if err := h.transport.Write(chunk, h.writeTag, WriteWithoutResponse); err != nil {
			h.writeFailed(err)
			return
		}
	}
}

// writeFailed treats an I/O failure as a transport error: close and let the
// disconnect event drive the state machine.
func (h *Hub) writeFailed(err error) {
	h.logger.WithField("hub", h.identifier).WithError(err).Warn("Transport write failed, closing")
	h.publish(Event{Type: EventDiagnostic, Err: err, Text: err.Error()})
	h.setState(Disconnecting)
	_ = h.transport.Close()
}
