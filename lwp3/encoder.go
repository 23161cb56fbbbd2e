package lwp3

import "github.com/srg/hublink/internal/bytesx"

// frame wraps a message type and payload with the LWP3 common header. The
// length field covers the whole frame including itself; frames of 128 bytes
// and up switch to the two-byte length form.
func frame(t MessageType, payload []byte) []byte {
	total := 3 + len(payload)
	if total < 128 {
		buf := make([]byte, 0, total)
		buf = append(buf, byte(total), 0x00, byte(t))
		return append(buf, payload...)
	}
	total = 4 + len(payload)
	buf := make([]byte, 0, total)
	buf = append(buf, byte(total&0x7F)|0x80, byte(total>>7), 0x00, byte(t))
	return append(buf, payload...)
}

// HubPropertyRequest asks the hub to send the current value of a property.
func HubPropertyRequest(prop HubProperty) []byte {
	return frame(MsgHubProperties, []byte{byte(prop), byte(OpRequestUpdate)})
}

// HubPropertyEnableUpdates subscribes to periodic updates of a property.
func HubPropertyEnableUpdates(prop HubProperty) []byte {
	return frame(MsgHubProperties, []byte{byte(prop), byte(OpEnableUpdates)})
}

// HubPropertyDisableUpdates cancels periodic updates of a property.
func HubPropertyDisableUpdates(prop HubProperty) []byte {
	return frame(MsgHubProperties, []byte{byte(prop), byte(OpDisableUpdates)})
}

// HubPropertySet writes a property value, e.g. the advertising name.
func HubPropertySet(prop HubProperty, value []byte) []byte {
	payload := append([]byte{byte(prop), byte(OpSet)}, value...)
	return frame(MsgHubProperties, payload)
}

// SetAdvertisingName renames the hub. The hub persists the name across
// power cycles.
func SetAdvertisingName(name string) []byte {
	return HubPropertySet(PropAdvertisingName, []byte(name))
}

// HubActionCommand issues a hub action such as switch-off or disconnect.
func HubActionCommand(action HubAction) []byte {
	return frame(MsgHubActions, []byte{byte(action)})
}

// HubAlertRequest asks for the current status of an alert condition.
func HubAlertRequest(alert AlertType) []byte {
	return frame(MsgHubAlerts, []byte{byte(alert), 0x03})
}

// PortInformationRequest queries port capabilities (information type 0x01)
// or the possible mode combinations (0x02).
func PortInformationRequest(port, infoType byte) []byte {
	return frame(MsgPortInformationRequest, []byte{port, infoType})
}

// PortModeInformationRequest queries metadata for one mode of a port.
func PortModeInformationRequest(port, mode, infoType byte) []byte {
	return frame(MsgPortModeInformationRequest, []byte{port, mode, infoType})
}

// PortInputFormatSetup selects a mode and delta interval for a port and
// toggles value notifications.
func PortInputFormatSetup(port, mode byte, deltaInterval uint32, notify bool) []byte {
	payload := []byte{port, mode}
	payload = bytesx.AppendUint32(payload, deltaInterval)
	if notify {
		payload = append(payload, 1)
	} else {
		payload = append(payload, 0)
	}
	return frame(MsgPortInputFormatSetup, payload)
}

// PortOutput builds a port output command frame. The startup byte always
// requests immediate execution with feedback.
func PortOutput(port byte, sub OutputCommand, payload []byte) []byte {
	buf := make([]byte, 0, 3+len(payload))
	buf = append(buf, port, StartupExecuteImmediately, byte(sub))
	buf = append(buf, payload...)
	return frame(MsgPortOutputCommand, buf)
}

// StartPower drives a motor with raw power. Power is a signed percentage;
// 127 brakes and 0 floats.
func StartPower(port byte, power int8) []byte {
	return PortOutput(port, OutStartPower, []byte{byte(power)})
}

// Brake actively brakes the motor on the port.
func Brake(port byte) []byte { return StartPower(port, 127) }

// Float cuts power and lets the motor coast.
func Float(port byte) []byte { return StartPower(port, 0) }

// StartSpeed runs a motor at a regulated speed.
func StartSpeed(port byte, speed int8, maxPower byte, useProfile byte) []byte {
	return PortOutput(port, OutStartSpeed, []byte{byte(speed), maxPower, useProfile})
}

// StartSpeedForTime runs a motor for a duration in milliseconds, then
// applies the end state.
func StartSpeedForTime(port byte, timeMS uint16, speed int8, maxPower byte, end EndState, useProfile byte) []byte {
	payload := bytesx.AppendUint16(nil, timeMS)
	payload = append(payload, byte(speed), maxPower, byte(end), useProfile)
	return PortOutput(port, OutStartSpeedForTime, payload)
}

// StartSpeedForDegrees turns a motor through an angle, then applies the end
// state.
func StartSpeedForDegrees(port byte, degrees uint32, speed int8, maxPower byte, end EndState, useProfile byte) []byte {
	payload := bytesx.AppendUint32(nil, degrees)
	payload = append(payload, byte(speed), maxPower, byte(end), useProfile)
	return PortOutput(port, OutStartSpeedForDegrees, payload)
}

// GotoAbsolutePosition moves a motor to an absolute encoder position.
func GotoAbsolutePosition(port byte, position int32, speed int8, maxPower byte, end EndState, useProfile byte) []byte {
	payload := bytesx.AppendUint32(nil, uint32(position))
	payload = append(payload, byte(speed), maxPower, byte(end), useProfile)
	return PortOutput(port, OutGotoAbsolutePosition, payload)
}

// PresetEncoder resets a motor's reported position to the given value.
func PresetEncoder(port byte, position int32) []byte {
	return PortOutput(port, OutPresetEncoder, bytesx.AppendUint32(nil, uint32(position)))
}

// SetLEDColor sets the hub status LED to a catalog color index using mode 0
// of the LED port.
func SetLEDColor(port byte, colorIndex byte) []byte {
	return PortOutput(port, OutWriteDirectModeData, []byte{0x00, colorIndex})
}

// SetLEDRGB sets the hub status LED to an RGB triple using mode 1.
func SetLEDRGB(port byte, r, g, b byte) []byte {
	return PortOutput(port, OutWriteDirectModeData, []byte{0x01, r, g, b})
}

// CreateVirtualPort asks the hub to pair two motor ports into a synchronized
// virtual port. The hub answers with an AttachedVirtual I/O event carrying
// the assigned port ID.
func CreateVirtualPort(portA, portB byte) []byte {
	return frame(MsgVirtualPortSetup, []byte{0x01, portA, portB})
}

// DisconnectVirtualPort tears a virtual port down again.
func DisconnectVirtualPort(port byte) []byte {
	return frame(MsgVirtualPortSetup, []byte{0x00, port})
}
