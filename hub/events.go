package hub

import "fmt"

// State is the hub connection state.
type State int

// Connection states
const (
	Disconnected State = iota
	Connecting
	Connected
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Protocol identifies the wire protocol the runtime bound to after service
// discovery.
type Protocol int

// Protocols
const (
	ProtocolNone Protocol = iota
	ProtocolLWP3BLE
	ProtocolSpikeBinary
	ProtocolSpikeJSON
)

func (p Protocol) String() string {
	switch p {
	case ProtocolLWP3BLE:
		return "lwp3-ble"
	case ProtocolSpikeBinary:
		return "spike-binary"
	case ProtocolSpikeJSON:
		return "spike-json"
	default:
		return "none"
	}
}

// EventType is the subscription topic of a published event.
type EventType int

// Event topics
const (
	EventState EventType = iota
	EventAttachedDevices
	EventDeviceData
	EventBattery
	EventRSSI
	EventName
	EventConsole
	EventNoUsableProtocol
	EventDiagnostic
)

func (t EventType) String() string {
	switch t {
	case EventState:
		return "state-change"
	case EventAttachedDevices:
		return "attached-devices-changed"
	case EventDeviceData:
		return "device-data-changed"
	case EventBattery:
		return "battery-changed"
	case EventRSSI:
		return "rssi-changed"
	case EventName:
		return "name-changed"
	case EventConsole:
		return "console"
	case EventNoUsableProtocol:
		return "no-usable-protocol"
	case EventDiagnostic:
		return "diagnostic"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is one published change notification. Which fields carry data
// depends on Type; subscribers receive immutable copies.
type Event struct {
	Type    EventType
	State   State
	Battery int
	RSSI    int16
	Name    string
	Text    string
	Err     error
}
