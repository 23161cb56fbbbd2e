package spike

import "github.com/srg/hublink/internal/bytesx"

// InfoRequest asks the hub for its InfoResponse (versions and transfer
// limits). It is the first message sent after connecting.
func InfoRequest() []byte {
	return []byte{TagInfoRequest}
}

// DeviceNotificationRequest subscribes to periodic DeviceNotification
// telemetry at the given interval.
func DeviceNotificationRequest(intervalMS uint16) []byte {
	return bytesx.AppendUint16([]byte{TagDeviceNotificationRequest}, intervalMS)
}

// ProgramFlowRequest starts (stop=false) or stops (stop=true) the program
// in the given slot.
func ProgramFlowRequest(stop bool, slot byte) []byte {
	b := byte(0)
	if stop {
		b = 1
	}
	return []byte{TagProgramFlowRequest, b, slot}
}

// SetHubName renames the hub. The name travels as NUL-terminated UTF-8.
func SetHubName(name string) []byte {
	msg := append([]byte{TagSetHubNameRequest}, name...)
	return append(msg, 0)
}

// GetHubName asks the hub to report its name.
func GetHubName() []byte {
	return []byte{TagGetHubNameRequest}
}

// ClearSlot erases the program stored in the given slot.
func ClearSlot(slot byte) []byte {
	return []byte{TagClearSlotRequest, slot}
}
