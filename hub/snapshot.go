package hub

import (
	"time"

	"github.com/srg/hublink/lwp3"
	"github.com/srg/hublink/spike"
)

// AttachedDevice describes one device record of the attached-device map.
type AttachedDevice struct {
	Device   lwp3.DeviceType
	Category lwp3.DeviceCategory
	Label    string

	// Virtual port pairing, set when the device arrived via an
	// attached-virtual event.
	Virtual bool
	PortA   byte
	PortB   byte
}

// MotorState is the decoded state of one motor port.
type MotorState struct {
	Device           lwp3.DeviceType
	Speed            int8
	Power            int16
	Position         int32
	AbsolutePosition int16
}

// ColorState is the decoded state of one color sensor port. Color is -1
// when no catalog color is recognized.
type ColorState struct {
	Color int8
	Red   uint16
	Green uint16
	Blue  uint16
}

// ForceState is the decoded state of one force sensor port.
type ForceState struct {
	Force   byte
	Pressed bool
}

// IMUState is the hub pose from SPIKE telemetry.
type IMUState struct {
	FaceUp      byte
	YawFace     byte
	Accel       [3]int16
	Gyro        [3]int16
	Orientation [3]int16
}

// Snapshot is a point-in-time copy of the hub model. It is produced by
// copy-on-read: the maps belong to the caller and never alias runtime
// state.
//
// For any port at most one typed map has an entry, and the attached-device
// map agrees with the typed maps about the device type on every port.
type Snapshot struct {
	State      State
	Name       string
	Identifier string
	RSSI       int16
	LastSeen   time.Time

	// Battery is the charge percentage, nil until the first reading.
	Battery *int

	Attached  map[byte]AttachedDevice
	Motors    map[byte]MotorState
	Distances map[byte]int16
	Colors    map[byte]ColorState
	Forces    map[byte]ForceState
	Matrices  map[byte][9]byte

	// Hub-level SPIKE telemetry, nil/empty until present.
	IMU     *IMUState
	Display *[25]byte
	Gesture string

	// RawValues caches the latest mode-0 value bytes per port for device
	// types the typed maps do not cover.
	RawValues map[byte][]byte
}

// model is the mutable form of the snapshot owned by the runtime and
// guarded by the hub mutex.
type model struct {
	battery   *int
	attached  map[byte]AttachedDevice
	motors    map[byte]MotorState
	distances map[byte]int16
	colors    map[byte]ColorState
	forces    map[byte]ForceState
	matrices  map[byte][9]byte
	imu       *IMUState
	display   *[25]byte
	gesture   string
	rawValues map[byte][]byte
}

func newModel() *model {
	return &model{
		attached:  make(map[byte]AttachedDevice),
		motors:    make(map[byte]MotorState),
		distances: make(map[byte]int16),
		colors:    make(map[byte]ColorState),
		forces:    make(map[byte]ForceState),
		matrices:  make(map[byte][9]byte),
		rawValues: make(map[byte][]byte),
	}
}

// reset clears everything, used when the transport reports a disconnect.
func (m *model) reset() {
	*m = *newModel()
}

// attach records a device on a port, replacing any previous record and its
// cached values.
func (m *model) attach(port byte, dev AttachedDevice) {
	m.clearPort(port)
	m.attached[port] = dev
}

// detach removes the port from every per-port map simultaneously.
func (m *model) detach(port byte) {
	delete(m.attached, port)
	m.clearPort(port)
}

// clearPort removes the port from all typed maps and the raw cache.
func (m *model) clearPort(port byte) {
	delete(m.motors, port)
	delete(m.distances, port)
	delete(m.colors, port)
	delete(m.forces, port)
	delete(m.matrices, port)
	delete(m.rawValues, port)
}

// applyRecord folds one telemetry record into the typed maps. A later
// record for the same port overwrites the earlier one, keeping the
// one-typed-entry-per-port invariant.
func (m *model) applyRecord(rec spike.Record) {
	switch r := rec.(type) {
	case spike.BatteryRecord:
		level := int(r.Level)
		m.battery = &level
	case spike.IMURecord:
		m.imu = &IMUState{
			FaceUp:      r.FaceUp,
			YawFace:     r.YawFace,
			Accel:       r.Accel,
			Gyro:        r.Gyro,
			Orientation: r.Orientation,
		}
	case spike.DisplayRecord:
		pixels := r.Pixels
		m.display = &pixels
	case spike.MotorRecord:
		m.clearPort(r.Port)
		m.motors[r.Port] = MotorState{
			Device:           lwp3.DeviceType(r.Device),
			Speed:            r.Speed,
			Power:            r.Power,
			Position:         r.Position,
			AbsolutePosition: r.AbsolutePosition,
		}
		m.ensureAttached(r.Port, lwp3.DeviceType(r.Device))
	case spike.ForceRecord:
		m.clearPort(r.Port)
		m.forces[r.Port] = ForceState{Force: r.Force, Pressed: r.Pressed != 0}
		m.ensureAttached(r.Port, lwp3.DeviceForceSensor)
	case spike.ColorRecord:
		m.clearPort(r.Port)
		m.colors[r.Port] = ColorState{Color: r.Color, Red: r.Red, Green: r.Green, Blue: r.Blue}
		m.ensureAttached(r.Port, lwp3.DeviceColorSensor)
	case spike.DistanceRecord:
		m.clearPort(r.Port)
		m.distances[r.Port] = r.Distance
		m.ensureAttached(r.Port, lwp3.DeviceUltrasonicSensor)
	case spike.MatrixRecord:
		m.clearPort(r.Port)
		m.matrices[r.Port] = r.Pixels
		m.ensureAttached(r.Port, lwp3.DeviceColorLightMatrix)
	}
}

// ensureAttached keeps the attached-device map in step with typed updates
// on transports that have no separate attach events.
func (m *model) ensureAttached(port byte, dev lwp3.DeviceType) {
	if cur, ok := m.attached[port]; ok && cur.Device == dev {
		return
	}
	m.attached[port] = AttachedDevice{
		Device:   dev,
		Category: dev.Category(),
		Label:    dev.String(),
	}
}

// replaceTelemetry swaps in a complete port-state snapshot: every typed map
// is rebuilt from the records, and ports absent from the notification lose
// their entries. Hub-level state (battery, IMU, display) updates in place.
func (m *model) replaceTelemetry(records []spike.Record) {
	m.motors = make(map[byte]MotorState)
	m.distances = make(map[byte]int16)
	m.colors = make(map[byte]ColorState)
	m.forces = make(map[byte]ForceState)
	m.matrices = make(map[byte][9]byte)
	m.rawValues = make(map[byte][]byte)
	attached := make(map[byte]AttachedDevice)
	old := m.attached
	m.attached = attached
	for _, rec := range records {
		m.applyRecord(rec)
	}
	// Hub-internal attachments (ports >= VirtualPortBase) arrive from
	// attach events only, so carry them across the rebuild.
	for port, dev := range old {
		if port >= lwp3.VirtualPortBase {
			if _, ok := attached[port]; !ok {
				attached[port] = dev
			}
		}
	}
}

// snapshot deep-copies the model.
func (m *model) snapshot() Snapshot {
	s := Snapshot{
		Attached:  make(map[byte]AttachedDevice, len(m.attached)),
		Motors:    make(map[byte]MotorState, len(m.motors)),
		Distances: make(map[byte]int16, len(m.distances)),
		Colors:    make(map[byte]ColorState, len(m.colors)),
		Forces:    make(map[byte]ForceState, len(m.forces)),
		Matrices:  make(map[byte][9]byte, len(m.matrices)),
		RawValues: make(map[byte][]byte, len(m.rawValues)),
		Gesture:   m.gesture,
	}
	for k, v := range m.attached {
		s.Attached[k] = v
	}
	for k, v := range m.motors {
		s.Motors[k] = v
	}
	for k, v := range m.distances {
		s.Distances[k] = v
	}
	for k, v := range m.colors {
		s.Colors[k] = v
	}
	for k, v := range m.forces {
		s.Forces[k] = v
	}
	for k, v := range m.matrices {
		s.Matrices[k] = v
	}
	for k, v := range m.rawValues {
		val := make([]byte, len(v))
		copy(val, v)
		s.RawValues[k] = val
	}
	if m.battery != nil {
		b := *m.battery
		s.Battery = &b
	}
	if m.imu != nil {
		imu := *m.imu
		s.IMU = &imu
	}
	if m.display != nil {
		d := *m.display
		s.Display = &d
	}
	return s
}
