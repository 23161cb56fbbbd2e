package lwp3

import (
	"fmt"

	"github.com/srg/hublink/internal/bytesx"
)

// MalformedFrameError reports a frame that is shorter than its declared
// length or shorter than the minimum header. Malformed frames are dropped by
// callers; the stream itself stays usable.
type MalformedFrameError struct {
	Reason string
	Frame  []byte
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed LWP3 frame (%s): %s", e.Reason, bytesx.Hex(e.Frame))
}

func malformed(reason string, frame []byte) error {
	return &MalformedFrameError{Reason: reason, Frame: frame}
}

// Decode parses one LWP3 frame into its message variant.
//
// Unknown message types are not an error: they decode to UnknownMessage so
// the caller can surface them as diagnostics. Decode fails only when the
// frame is shorter than its header, shorter than the declared length, or
// declares a length smaller than its own header.
func Decode(frame []byte) (Message, error) {
	if len(frame) < 3 {
		return nil, malformed("shorter than minimum header", frame)
	}

	var declared, header int
	if frame[0]&0x80 != 0 {
		// Two-byte length form: low 7 bits in byte 0, upper 7 bits in byte 1.
		declared = int(frame[0]&0x7F) | int(frame[1])<<7
		header = 4
		if len(frame) < header {
			return nil, malformed("two-byte length form without full header", frame)
		}
	} else {
		declared = int(frame[0])
		header = 3
	}
	if declared > len(frame) {
		return nil, malformed("declared length exceeds buffer", frame)
	}
	if declared < header {
		return nil, malformed("declared length shorter than header", frame)
	}

	// Byte after the hub ID is the message type; everything past the header
	// is payload. Trailing bytes beyond the declared length are ignored.
	msgType := MessageType(frame[header-1])
	payload := frame[header:declared]

	switch msgType {
	case MsgHubProperties:
		return decodeHubProperty(msgType, payload)
	case MsgHubActions:
		return decodeHubAction(msgType, payload)
	case MsgHubAlerts:
		return decodeHubAlert(msgType, payload)
	case MsgHubAttachedIO:
		return decodeAttachedIO(msgType, payload)
	case MsgGenericError:
		return decodeGenericError(msgType, payload)
	case MsgPortValueSingle:
		return decodePortValueSingle(msgType, payload)
	case MsgPortValueCombined:
		return decodePortValueCombined(msgType, payload)
	case MsgPortInformation:
		return decodePortInformation(msgType, payload)
	case MsgPortModeInformation:
		return decodePortModeInformation(msgType, payload)
	case MsgPortInputFormatSingle:
		return decodePortInputFormat(msgType, payload)
	case MsgPortOutputFeedback:
		return decodePortOutputFeedback(msgType, payload)
	default:
		return UnknownMessage{RawType: msgType, Payload: clone(payload)}, nil
	}
}

func decodeHubProperty(t MessageType, p []byte) (Message, error) {
	if len(p) < 2 {
		return UnknownMessage{RawType: t, Payload: clone(p)}, nil
	}
	return HubPropertyMessage{
		Property:  HubProperty(p[0]),
		Operation: PropertyOperation(p[1]),
		Payload:   clone(p[2:]),
	}, nil
}

func decodeHubAction(t MessageType, p []byte) (Message, error) {
	if len(p) < 1 || !knownHubAction(p[0]) {
		return UnknownMessage{RawType: t, Payload: clone(p)}, nil
	}
	return HubActionMessage{Action: HubAction(p[0])}, nil
}

func decodeHubAlert(t MessageType, p []byte) (Message, error) {
	if len(p) < 2 {
		return UnknownMessage{RawType: t, Payload: clone(p)}, nil
	}
	return HubAlertMessage{
		Alert:     AlertType(p[0]),
		Operation: p[1],
		Payload:   clone(p[2:]),
	}, nil
}

func decodeAttachedIO(t MessageType, p []byte) (Message, error) {
	if len(p) < 2 {
		return UnknownMessage{RawType: t, Payload: clone(p)}, nil
	}
	msg := AttachedIOMessage{Port: p[0], Event: IOEvent(p[1])}
	switch msg.Event {
	case IODetached:
		return msg, nil
	case IOAttached:
		dev, ok1 := bytesx.Uint16(p, 2)
		hw, ok2 := bytesx.Uint32(p, 4)
		sw, ok3 := bytesx.Uint32(p, 8)
		if !ok1 || !ok2 || !ok3 {
			return UnknownMessage{RawType: t, Payload: clone(p)}, nil
		}
		msg.Device = DeviceType(dev)
		msg.HardwareRev = hw
		msg.SoftwareRev = sw
		return msg, nil
	case IOAttachedVirtual:
		dev, ok1 := bytesx.Uint16(p, 2)
		a, ok2 := bytesx.Byte(p, 4)
		b, ok3 := bytesx.Byte(p, 5)
		if !ok1 || !ok2 || !ok3 {
			return UnknownMessage{RawType: t, Payload: clone(p)}, nil
		}
		msg.Device = DeviceType(dev)
		msg.PortA = a
		msg.PortB = b
		return msg, nil
	default:
		return UnknownMessage{RawType: t, Payload: clone(p)}, nil
	}
}

func decodeGenericError(t MessageType, p []byte) (Message, error) {
	if len(p) < 2 {
		return UnknownMessage{RawType: t, Payload: clone(p)}, nil
	}
	return GenericErrorMessage{CommandType: MessageType(p[0]), Code: p[1]}, nil
}

func decodePortValueSingle(t MessageType, p []byte) (Message, error) {
	if len(p) < 1 {
		return UnknownMessage{RawType: t, Payload: clone(p)}, nil
	}
	return PortValueSingleMessage{Port: p[0], Value: clone(p[1:])}, nil
}

func decodePortValueCombined(t MessageType, p []byte) (Message, error) {
	if len(p) < 3 {
		return UnknownMessage{RawType: t, Payload: clone(p)}, nil
	}
	ptr, _ := bytesx.Uint16(p, 1)
	return PortValueCombinedMessage{Port: p[0], ModePointers: ptr, Value: clone(p[3:])}, nil
}

func decodePortInformation(t MessageType, p []byte) (Message, error) {
	if len(p) < 2 {
		return UnknownMessage{RawType: t, Payload: clone(p)}, nil
	}
	return PortInformationMessage{Port: p[0], InformationType: p[1], Payload: clone(p[2:])}, nil
}

func decodePortModeInformation(t MessageType, p []byte) (Message, error) {
	if len(p) < 3 {
		return UnknownMessage{RawType: t, Payload: clone(p)}, nil
	}
	return PortModeInformationMessage{Port: p[0], Mode: p[1], InformationType: p[2], Payload: clone(p[3:])}, nil
}

func decodePortInputFormat(t MessageType, p []byte) (Message, error) {
	if len(p) < 7 {
		return UnknownMessage{RawType: t, Payload: clone(p)}, nil
	}
	delta, _ := bytesx.Uint32(p, 2)
	return PortInputFormatMessage{
		Port:          p[0],
		Mode:          p[1],
		DeltaInterval: delta,
		Notifications: p[6] != 0,
	}, nil
}

func decodePortOutputFeedback(t MessageType, p []byte) (Message, error) {
	if len(p) < 2 || len(p)%2 != 0 {
		return UnknownMessage{RawType: t, Payload: clone(p)}, nil
	}
	msg := PortOutputFeedbackMessage{Feedback: make([]PortFeedback, 0, len(p)/2)}
	for i := 0; i+1 < len(p); i += 2 {
		msg.Feedback = append(msg.Feedback, PortFeedback{Port: p[i], Flags: p[i+1]})
	}
	return msg, nil
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
