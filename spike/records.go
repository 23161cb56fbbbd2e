package spike

import (
	"fmt"

	"github.com/srg/hublink/internal/bytesx"
)

// Message tags of the SPIKE Prime protocol (first byte after unframing).
const (
	TagInfoRequest               byte = 0x00
	TagInfoResponse              byte = 0x01
	TagSetHubNameRequest         byte = 0x16
	TagGetHubNameRequest         byte = 0x18
	TagProgramFlowRequest        byte = 0x1E
	TagConsoleNotification       byte = 0x21
	TagDeviceNotificationRequest byte = 0x28
	TagDeviceNotification        byte = 0x3C
	TagClearSlotRequest          byte = 0x46
)

// Sub-record tags inside a DeviceNotification.
const (
	recBattery   byte = 0x00
	recIMU       byte = 0x01
	recDisplay   byte = 0x02
	recMotor     byte = 0x0A
	recForce     byte = 0x0B
	recColor     byte = 0x0C
	recDistance  byte = 0x0D
	recMatrix3x3 byte = 0x0E
)

// InfoResponse carries the limits and versions the hub reports after an
// InfoRequest. MaxPacketSize bounds subsequent outbound chunking.
type InfoResponse struct {
	RPCMajor       byte
	RPCMinor       byte
	RPCBuild       uint16
	FirmwareMajor  byte
	FirmwareMinor  byte
	FirmwareBuild  uint16
	MaxPacketSize  uint16
	MaxMessageSize uint16
	MaxChunkSize   uint16
	ProductGroup   uint16
}

const infoResponseSize = 17

// ParseInfoResponse decodes the fixed 17-byte InfoResponse message.
func ParseInfoResponse(msg []byte) (*InfoResponse, error) {
	if len(msg) < infoResponseSize || msg[0] != TagInfoResponse {
		return nil, fmt.Errorf("not an InfoResponse: % X", msg)
	}
	rpcBuild, _ := bytesx.Uint16(msg, 3)
	fwBuild, _ := bytesx.Uint16(msg, 7)
	maxPacket, _ := bytesx.Uint16(msg, 9)
	maxMessage, _ := bytesx.Uint16(msg, 11)
	maxChunk, _ := bytesx.Uint16(msg, 13)
	product, _ := bytesx.Uint16(msg, 15)
	return &InfoResponse{
		RPCMajor:       msg[1],
		RPCMinor:       msg[2],
		RPCBuild:       rpcBuild,
		FirmwareMajor:  msg[5],
		FirmwareMinor:  msg[6],
		FirmwareBuild:  fwBuild,
		MaxPacketSize:  maxPacket,
		MaxMessageSize: maxMessage,
		MaxChunkSize:   maxChunk,
		ProductGroup:   product,
	}, nil
}

// Record is one fixed-size sub-record of a DeviceNotification.
type Record interface {
	recordTag() byte
}

// BatteryRecord reports the battery charge percentage.
type BatteryRecord struct {
	Level byte
}

func (BatteryRecord) recordTag() byte { return recBattery }

// IMURecord reports the hub pose: which face is up and towards yaw, plus
// raw accelerometer, gyroscope and orientation triples.
type IMURecord struct {
	FaceUp      byte
	YawFace     byte
	Accel       [3]int16
	Gyro        [3]int16
	Orientation [3]int16
}

func (IMURecord) recordTag() byte { return recIMU }

// DisplayRecord is the 5x5 hub display, 25 brightness bytes row-major.
type DisplayRecord struct {
	Pixels [25]byte
}

func (DisplayRecord) recordTag() byte { return recDisplay }

// MotorRecord reports one motor's device type and kinematic state.
type MotorRecord struct {
	Port             byte
	Device           byte
	AbsolutePosition int16
	Power            int16
	Speed            int8
	Position         int32
}

func (MotorRecord) recordTag() byte { return recMotor }

// ForceRecord reports a force sensor: force in the 0..100 range and a
// pressed flag.
type ForceRecord struct {
	Port    byte
	Force   byte
	Pressed byte
}

func (ForceRecord) recordTag() byte { return recForce }

// ColorRecord reports a color sensor. Color is the catalog color index, -1
// when no color is recognized.
type ColorRecord struct {
	Port  byte
	Color int8
	Red   uint16
	Green uint16
	Blue  uint16
}

func (ColorRecord) recordTag() byte { return recColor }

// DistanceRecord reports an ultrasonic sensor reading in millimeters.
// -1 means nothing detected.
type DistanceRecord struct {
	Port     byte
	Distance int16
}

func (DistanceRecord) recordTag() byte { return recDistance }

// MatrixRecord is a 3x3 color light matrix, 9 brightness bytes row-major.
type MatrixRecord struct {
	Port   byte
	Pixels [9]byte
}

func (MatrixRecord) recordTag() byte { return recMatrix3x3 }

// recordSize maps a sub-record tag to its total size including the tag.
func recordSize(tag byte) int {
	switch tag {
	case recBattery:
		return 2
	case recIMU:
		return 21
	case recDisplay:
		return 26
	case recMotor:
		return 12
	case recForce:
		return 4
	case recColor:
		return 9
	case recDistance:
		return 4
	case recMatrix3x3:
		return 11
	default:
		return 0
	}
}

// DeviceNotification is one decoded telemetry message. Each notification is
// a complete snapshot of the hub's current port state.
type DeviceNotification struct {
	Records []Record
}

// ParseDeviceNotification walks the sub-records of a DeviceNotification
// message. The walk stops cleanly at the first unknown tag, or when fewer
// bytes remain than the next record demands; records decoded up to that
// point are returned. A partial snapshot beats discarded telemetry.
func ParseDeviceNotification(msg []byte) (*DeviceNotification, error) {
	if len(msg) < 3 || msg[0] != TagDeviceNotification {
		return nil, fmt.Errorf("not a DeviceNotification: % X", msg)
	}
	size, _ := bytesx.Uint16(msg, 1)
	body := msg[3:]
	if int(size) < len(body) {
		body = body[:size]
	}

	n := &DeviceNotification{}
	for len(body) > 0 {
		want := recordSize(body[0])
		if want == 0 || want > len(body) {
			break
		}
		n.Records = append(n.Records, parseRecord(body[0], body[1:want]))
		body = body[want:]
	}
	return n, nil
}

// parseRecord decodes one sub-record body. The caller guarantees the body
// has the fixed size for the tag.
func parseRecord(tag byte, b []byte) Record {
	switch tag {
	case recBattery:
		return BatteryRecord{Level: b[0]}
	case recIMU:
		r := IMURecord{FaceUp: b[0], YawFace: b[1]}
		for i := 0; i < 3; i++ {
			r.Accel[i], _ = bytesx.Int16(b, 2+i*2)
			r.Gyro[i], _ = bytesx.Int16(b, 8+i*2)
			r.Orientation[i], _ = bytesx.Int16(b, 14+i*2)
		}
		return r
	case recDisplay:
		r := DisplayRecord{}
		copy(r.Pixels[:], b)
		return r
	case recMotor:
		abs, _ := bytesx.Int16(b, 2)
		power, _ := bytesx.Int16(b, 4)
		pos, _ := bytesx.Int32(b, 7)
		return MotorRecord{
			Port:             b[0],
			Device:           b[1],
			AbsolutePosition: abs,
			Power:            power,
			Speed:            int8(b[6]),
			Position:         pos,
		}
	case recForce:
		return ForceRecord{Port: b[0], Force: b[1], Pressed: b[2]}
	case recColor:
		red, _ := bytesx.Uint16(b, 2)
		green, _ := bytesx.Uint16(b, 4)
		blue, _ := bytesx.Uint16(b, 6)
		return ColorRecord{Port: b[0], Color: int8(b[1]), Red: red, Green: green, Blue: blue}
	case recDistance:
		d, _ := bytesx.Int16(b, 1)
		return DistanceRecord{Port: b[0], Distance: d}
	case recMatrix3x3:
		r := MatrixRecord{Port: b[0]}
		copy(r.Pixels[:], b[1:])
		return r
	default:
		return nil
	}
}

// ConsoleText extracts the text of a ConsoleNotification message, trimming
// the trailing NUL if present.
func ConsoleText(msg []byte) (string, bool) {
	if len(msg) < 1 || msg[0] != TagConsoleNotification {
		return "", false
	}
	text := msg[1:]
	for len(text) > 0 && text[len(text)-1] == 0 {
		text = text[:len(text)-1]
	}
	return string(text), true
}
