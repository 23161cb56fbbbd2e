package hub_test

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	suitelib "github.com/stretchr/testify/suite"

	"github.com/srg/hublink/hub"
	"github.com/srg/hublink/internal/bytesx"
	"github.com/srg/hublink/lwp3"
	"github.com/srg/hublink/spike"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// fakeTransport records downward calls and lets the test drive upward
// events through the hub under test.
type fakeTransport struct {
	mu         sync.Mutex
	hub        *hub.Hub
	opened     int
	closed     int
	writes     []fakeWrite
	subscribed []string

	// autoDisconnect posts the disconnected event when Close is called,
	// the way a live transport would.
	autoDisconnect bool
}

type fakeWrite struct {
	data []byte
	tag  string
}

func (f *fakeTransport) Open() error {
	f.mu.Lock()
	f.opened++
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed++
	auto := f.autoDisconnect
	h := f.hub
	f.mu.Unlock()
	if auto && h != nil {
		go h.OnTransportEvent(hub.DisconnectedEvent{})
	}
	return nil
}

func (f *fakeTransport) Write(data []byte, tag string, _ hub.WriteMode) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	f.mu.Lock()
	f.writes = append(f.writes, fakeWrite{data: buf, tag: tag})
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Subscribe(tag string) error {
	f.mu.Lock()
	f.subscribed = append(f.subscribed, tag)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) ReadRSSI() error { return nil }

func (f *fakeTransport) writeLog() []fakeWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fakeWrite, len(f.writes))
	copy(out, f.writes)
	return out
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func lwp3Services() []hub.ServiceInfo {
	return []hub.ServiceInfo{{
		UUID: hub.LWP3ServiceUUID,
		Characteristics: []hub.CharacteristicTag{
			{ID: hub.LWP3CharacteristicUUID, Write: true, Notify: true},
		},
	}}
}

func spikeServices() []hub.ServiceInfo {
	return []hub.ServiceInfo{{
		UUID: hub.SpikeServiceUUID,
		Characteristics: []hub.CharacteristicTag{
			{ID: hub.SpikeRXCharacteristicUUID, Write: true},
			{ID: hub.SpikeTXCharacteristicUUID, Notify: true},
		},
	}}
}

type HubTestSuite struct {
	suitelib.Suite

	transport *fakeTransport
	hub       *hub.Hub
	events    *hub.Subscription
}

func (s *HubTestSuite) SetupTest() {
	s.transport = &fakeTransport{autoDisconnect: true}
	s.hub = hub.New("90:84:2B:00:00:01", s.transport, &hub.Options{
		ConnectTimeout: 200 * time.Millisecond,
	}, quietLogger())
	s.transport.hub = s.hub
	s.events = s.hub.Subscribe()
}

func (s *HubTestSuite) TearDownTest() {
	s.events.Close()
	s.hub.Close()
}

func (s *HubTestSuite) waitState(want hub.State) {
	s.Require().Eventually(func() bool {
		return s.hub.State() == want
	}, waitFor, tick, "waiting for state %s", want)
}

// connect drives the transport through a successful handshake.
func (s *HubTestSuite) connect(services []hub.ServiceInfo) {
	s.Require().NoError(s.hub.Connect())
	s.hub.OnTransportEvent(hub.ConnectedEvent{})
	s.hub.OnTransportEvent(hub.ServicesDiscoveredEvent{Services: services})
	s.waitState(hub.Connected)
}

func (s *HubTestSuite) TestConnectStateValidation() {
	s.Require().NoError(s.hub.Connect())
	s.Error(s.hub.Connect(), "connect is invalid while connecting")

	s.hub.OnTransportEvent(hub.ConnectedEvent{})
	s.hub.OnTransportEvent(hub.ServicesDiscoveredEvent{Services: lwp3Services()})
	s.waitState(hub.Connected)
	s.Error(s.hub.Connect(), "connect is invalid while connected")

	s.Require().NoError(s.hub.Disconnect())
	s.waitState(hub.Disconnected)
	s.NoError(s.hub.Disconnect(), "disconnect is idempotent")
}

func (s *HubTestSuite) TestSelectsLWP3AndBootstraps() {
	s.connect(lwp3Services())
	s.Equal(hub.ProtocolLWP3BLE, s.hub.Protocol())

	s.Require().Eventually(func() bool {
		return len(s.transport.writeLog()) >= 2
	}, waitFor, tick)

	writes := s.transport.writeLog()
	s.Equal(lwp3.HubPropertyRequest(lwp3.PropBatteryVoltage), writes[0].data)
	s.Equal(lwp3.HubPropertyEnableUpdates(lwp3.PropBatteryVoltage), writes[1].data)
}

func (s *HubTestSuite) TestSpikeServiceWinsOverLWP3() {
	both := append(spikeServices(), lwp3Services()...)
	s.connect(both)
	s.Equal(hub.ProtocolSpikeBinary, s.hub.Protocol())

	// Bootstrap sends a packed InfoRequest on the RX characteristic.
	s.Require().Eventually(func() bool {
		return len(s.transport.writeLog()) >= 1
	}, waitFor, tick)
	writes := s.transport.writeLog()
	s.Equal(spike.Pack(spike.InfoRequest(), false), writes[0].data)
	s.Equal(hub.SpikeRXCharacteristicUUID, writes[0].tag)
}

func (s *HubTestSuite) TestNoUsableProtocol() {
	s.Require().NoError(s.hub.Connect())
	s.hub.OnTransportEvent(hub.ConnectedEvent{})
	s.hub.OnTransportEvent(hub.ServicesDiscoveredEvent{Services: []hub.ServiceInfo{
		{UUID: "0000180f-0000-1000-8000-00805f9b34fb"},
	}})

	s.Require().Eventually(func() bool {
		select {
		case evt := <-s.events.C():
			return evt.Type == hub.EventNoUsableProtocol
		default:
			return false
		}
	}, waitFor, tick)
	s.Equal(hub.ProtocolNone, s.hub.Protocol())
}

func (s *HubTestSuite) TestConnectTimeout() {
	s.Require().NoError(s.hub.Connect())
	// No transport events arrive: the deadline closes the transport and the
	// (auto) disconnect completes the cycle.
	s.waitState(hub.Disconnected)
	s.Require().GreaterOrEqual(s.transport.closeCount(), 1)
}

func (s *HubTestSuite) TestBatteryFromLWP3Property() {
	s.connect(lwp3Services())

	s.hub.OnTransportEvent(hub.FrameReceivedEvent{
		Data: []byte{0x06, 0x00, 0x01, 0x06, 0x06, 0x64},
		Tag:  hub.LWP3CharacteristicUUID,
	})

	s.Require().Eventually(func() bool {
		snap := s.hub.Snapshot()
		return snap.Battery != nil && *snap.Battery == 100
	}, waitFor, tick)
}

func (s *HubTestSuite) TestAttachDetachLifecycle() {
	s.connect(lwp3Services())

	attach := []byte{0x0F, 0x00, 0x04, 0x00, 0x01, 0x31, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x10}
	s.hub.OnTransportEvent(hub.FrameReceivedEvent{Data: attach, Tag: hub.LWP3CharacteristicUUID})

	s.Require().Eventually(func() bool {
		snap := s.hub.Snapshot()
		dev, ok := snap.Attached[0]
		return ok && dev.Device == lwp3.DeviceLargeAngularMotor
	}, waitFor, tick)

	// The attach triggers a port input format setup for the external port.
	s.Require().Eventually(func() bool {
		for _, w := range s.transport.writeLog() {
			if len(w.data) > 2 && w.data[2] == byte(lwp3.MsgPortInputFormatSetup) {
				return true
			}
		}
		return false
	}, waitFor, tick)

	// A value update lands in the raw cache.
	s.hub.OnTransportEvent(hub.FrameReceivedEvent{
		Data: []byte{0x06, 0x00, 0x45, 0x00, 0x2A, 0x00},
		Tag:  hub.LWP3CharacteristicUUID,
	})
	s.Require().Eventually(func() bool {
		return len(s.hub.Snapshot().RawValues[0]) == 2
	}, waitFor, tick)

	// Detach removes the port from every map at once.
	s.hub.OnTransportEvent(hub.FrameReceivedEvent{
		Data: []byte{0x05, 0x00, 0x04, 0x00, 0x00},
		Tag:  hub.LWP3CharacteristicUUID,
	})
	s.Require().Eventually(func() bool {
		snap := s.hub.Snapshot()
		_, attached := snap.Attached[0]
		_, raw := snap.RawValues[0]
		_, motor := snap.Motors[0]
		return !attached && !raw && !motor
	}, waitFor, tick)
}

// buildNotification packs a DeviceNotification the way the hub sends it.
func buildNotification(body []byte) []byte {
	msg := []byte{spike.TagDeviceNotification}
	msg = bytesx.AppendUint16(msg, uint16(len(body)))
	msg = append(msg, body...)
	return spike.Pack(msg, false)
}

func motorSubRecord(port, device byte, power int16, speed int8, position int32) []byte {
	b := []byte{0x0A, port, device}
	b = bytesx.AppendUint16(b, 0)
	b = bytesx.AppendUint16(b, uint16(power))
	b = append(b, byte(speed))
	b = bytesx.AppendUint32(b, uint32(position))
	return b
}

func (s *HubTestSuite) TestSpikeNotificationBuildsSnapshot() {
	s.connect(spikeServices())

	body := append([]byte{0x00, 75}, motorSubRecord(0, 49, 50, 50, 360)...)
	s.hub.OnTransportEvent(hub.FrameReceivedEvent{
		Data: buildNotification(body),
		Tag:  hub.SpikeTXCharacteristicUUID,
	})

	s.Require().Eventually(func() bool {
		snap := s.hub.Snapshot()
		if snap.Battery == nil || *snap.Battery != 75 {
			return false
		}
		motor, ok := snap.Motors[0]
		return ok &&
			motor.Device == lwp3.DeviceLargeAngularMotor &&
			motor.Speed == 50 &&
			motor.Position == 360
	}, waitFor, tick)

	snap := s.hub.Snapshot()
	s.Empty(snap.Distances)
	s.Empty(snap.Colors)
	s.Empty(snap.Forces)
}

// Each notification is a complete port-state snapshot: ports absent from
// the latest one must drop out of every typed map.
func (s *HubTestSuite) TestSpikeNotificationReplacesNotMerges() {
	s.connect(spikeServices())

	first := append(motorSubRecord(0, 49, 0, 10, 0), 0x0D, 1, 0x64, 0x00)
	s.hub.OnTransportEvent(hub.FrameReceivedEvent{
		Data: buildNotification(first),
		Tag:  hub.SpikeTXCharacteristicUUID,
	})
	s.Require().Eventually(func() bool {
		snap := s.hub.Snapshot()
		_, m := snap.Motors[0]
		_, d := snap.Distances[1]
		return m && d
	}, waitFor, tick)

	second := motorSubRecord(0, 49, 0, 20, 90)
	s.hub.OnTransportEvent(hub.FrameReceivedEvent{
		Data: buildNotification(second),
		Tag:  hub.SpikeTXCharacteristicUUID,
	})
	s.Require().Eventually(func() bool {
		snap := s.hub.Snapshot()
		motor, m := snap.Motors[0]
		_, d := snap.Distances[1]
		return m && motor.Speed == 20 && !d
	}, waitFor, tick)
}

func (s *HubTestSuite) TestSpikeInfoResponseTriggersNotificationRequest() {
	s.connect(spikeServices())

	info := []byte{spike.TagInfoResponse, 1, 0}
	info = bytesx.AppendUint16(info, 37)
	info = append(info, 1, 4)
	info = bytesx.AppendUint16(info, 618)
	info = bytesx.AppendUint16(info, 509)   // max packet
	info = bytesx.AppendUint16(info, 32768) // max message
	info = bytesx.AppendUint16(info, 16384) // max chunk
	info = bytesx.AppendUint16(info, 0xFFFF)
	s.hub.OnTransportEvent(hub.FrameReceivedEvent{
		Data: spike.Pack(info, false),
		Tag:  hub.SpikeTXCharacteristicUUID,
	})

	want := spike.Pack(spike.DeviceNotificationRequest(5000), false)
	s.Require().Eventually(func() bool {
		for _, w := range s.transport.writeLog() {
			if string(w.data) == string(want) {
				return true
			}
		}
		return false
	}, waitFor, tick)
}

func (s *HubTestSuite) TestSpikeFrameReassembly() {
	s.connect(spikeServices())

	body := append([]byte{0x00, 60}, motorSubRecord(2, 48, 0, 5, 45)...)
	frame := buildNotification(body)
	// Deliver the frame split across two notifications.
	half := len(frame) / 2
	s.hub.OnTransportEvent(hub.FrameReceivedEvent{Data: frame[:half], Tag: hub.SpikeTXCharacteristicUUID})
	s.hub.OnTransportEvent(hub.FrameReceivedEvent{Data: frame[half:], Tag: hub.SpikeTXCharacteristicUUID})

	s.Require().Eventually(func() bool {
		snap := s.hub.Snapshot()
		_, ok := snap.Motors[2]
		return ok && snap.Battery != nil && *snap.Battery == 60
	}, waitFor, tick)
}

func (s *HubTestSuite) TestConsoleNotification() {
	s.connect(spikeServices())

	msg := append([]byte{spike.TagConsoleNotification}, []byte("hello\x00")...)
	s.hub.OnTransportEvent(hub.FrameReceivedEvent{
		Data: spike.Pack(msg, false),
		Tag:  hub.SpikeTXCharacteristicUUID,
	})

	s.Require().Eventually(func() bool {
		select {
		case evt := <-s.events.C():
			return evt.Type == hub.EventConsole && evt.Text == "hello"
		default:
			return false
		}
	}, waitFor, tick)
}

func (s *HubTestSuite) TestDisconnectClearsSnapshot() {
	s.connect(lwp3Services())

	attach := []byte{0x0F, 0x00, 0x04, 0x00, 0x01, 0x31, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x10}
	s.hub.OnTransportEvent(hub.FrameReceivedEvent{Data: attach, Tag: hub.LWP3CharacteristicUUID})
	s.Require().Eventually(func() bool {
		return len(s.hub.Snapshot().Attached) == 1
	}, waitFor, tick)

	s.Require().NoError(s.hub.Disconnect())
	s.waitState(hub.Disconnected)
	snap := s.hub.Snapshot()
	s.Empty(snap.Attached)
	s.Nil(snap.Battery)
}

func (s *HubTestSuite) TestCommandEncodingLWP3() {
	s.connect(lwp3Services())
	before := len(s.transport.writeLog())

	s.Require().NoError(s.hub.Send(hub.StartSpeed(0, 75, 100)))
	s.Require().NoError(s.hub.Send(hub.SetLEDColorCommand{Port: 50, Color: 3}))

	s.Require().Eventually(func() bool {
		return len(s.transport.writeLog()) >= before+2
	}, waitFor, tick)

	writes := s.transport.writeLog()[before:]
	s.Equal([]byte{0x09, 0x00, 0x81, 0x00, 0x11, 0x07, 0x4B, 0x64, 0x00}, writes[0].data)
	s.Equal(lwp3.SetLEDColor(50, 3), writes[1].data)
}

func (s *HubTestSuite) TestUnsupportedCommandEmitsDiagnostic() {
	s.connect(spikeServices())

	s.Require().NoError(s.hub.Send(hub.StartSpeed(0, 50, 100)))
	s.Require().Eventually(func() bool {
		select {
		case evt := <-s.events.C():
			return evt.Type == hub.EventDiagnostic
		default:
			return false
		}
	}, waitFor, tick)
}

func TestHubTestSuite(t *testing.T) {
	suitelib.Run(t, new(HubTestSuite))
}

// Battery dampening needs its own hub with a short window, outside the
// shared suite fixture.
func TestBatteryEventDampening(t *testing.T) {
	transport := &fakeTransport{autoDisconnect: true}
	h := hub.New("90:84:2B:00:00:02", transport, &hub.Options{
		ConnectTimeout:       time.Second,
		BatteryEventInterval: 250 * time.Millisecond,
	}, quietLogger())
	transport.hub = h
	defer h.Close()

	sub := h.Subscribe()
	defer sub.Close()

	require.NoError(t, h.Connect())
	h.OnTransportEvent(hub.ConnectedEvent{})
	h.OnTransportEvent(hub.ServicesDiscoveredEvent{Services: lwp3Services()})
	require.Eventually(t, func() bool { return h.State() == hub.Connected }, waitFor, tick)

	battery := func(level byte) {
		h.OnTransportEvent(hub.FrameReceivedEvent{
			Data: []byte{0x06, 0x00, 0x01, 0x06, 0x06, level},
			Tag:  hub.LWP3CharacteristicUUID,
		})
	}

	countBattery := func() int {
		n := 0
		for {
			select {
			case evt, ok := <-sub.C():
				if !ok {
					return n
				}
				if evt.Type == hub.EventBattery {
					n++
				}
			case <-time.After(50 * time.Millisecond):
				return n
			}
		}
	}

	// A zero reading before any nonzero one emits nothing.
	battery(0)
	require.Equal(t, 0, countBattery())

	// First nonzero reading emits immediately.
	battery(80)
	require.Eventually(t, func() bool { return countBattery() >= 1 }, waitFor, tick)

	// Unchanged readings inside the window are damped.
	battery(80)
	battery(80)
	require.Equal(t, 0, countBattery())

	// A changed value emits at once.
	battery(79)
	require.Eventually(t, func() bool { return countBattery() >= 1 }, waitFor, tick)

	// An unchanged value emits again once the window has elapsed.
	time.Sleep(300 * time.Millisecond)
	battery(79)
	require.Eventually(t, func() bool { return countBattery() >= 1 }, waitFor, tick)
}
