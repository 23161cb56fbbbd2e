// Package jsonline decodes the accessory-stream telemetry of SPIKE Prime
// hubs: one UTF-8 JSON object per line, dispatched on the integer method
// field "m". Decoded telemetry reuses the spike record types so the hub
// runtime applies both transports through one path.
package jsonline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/srg/hublink/lwp3"
	"github.com/srg/hublink/spike"
)

// Methods of interest. Everything else is ignored.
const (
	methodTelemetry = 0
	methodBattery   = 2
	methodGesture   = 4
)

// Message is a decoded line. Variants: TelemetryMessage, BatteryMessage,
// GestureMessage.
type Message interface {
	jsonMessage()
}

// TelemetryMessage carries the per-port device state of one telemetry line.
// Attached maps external port IDs to their device types; Records carries the
// readings in the binary path's record types.
type TelemetryMessage struct {
	Attached map[byte]lwp3.DeviceType
	Records  []spike.Record
}

func (TelemetryMessage) jsonMessage() {}

// BatteryMessage carries the battery charge percentage.
type BatteryMessage struct {
	Level byte
}

func (BatteryMessage) jsonMessage() {}

// GestureMessage carries a hub gesture name such as "tapped" or "shake".
type GestureMessage struct {
	Name string
}

func (GestureMessage) jsonMessage() {}

// Decode parses one line. Lines with methods outside the catalog decode to
// (nil, nil); malformed JSON or a missing method field is an error.
func Decode(line []byte) (Message, error) {
	line = trimLine(line)
	if len(line) == 0 {
		return nil, nil
	}
	m, err := jsonparser.GetInt(line, "m")
	if err != nil {
		return nil, fmt.Errorf("telemetry line without method field: %w", err)
	}
	switch m {
	case methodTelemetry:
		return decodeTelemetry(line)
	case methodBattery:
		return decodeBattery(line)
	case methodGesture:
		return decodeGesture(line)
	default:
		return nil, nil
	}
}

func trimLine(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\r' || line[len(line)-1] == '\n') {
		line = line[:len(line)-1]
	}
	return line
}

// number converts a JSON value to float64, accepting integers, doubles and
// numeric strings. The hub firmware emits all three depending on version.
func number(value []byte, dt jsonparser.ValueType) (float64, bool) {
	switch dt {
	case jsonparser.Number:
		f, err := strconv.ParseFloat(string(value), 64)
		return f, err == nil
	case jsonparser.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(value)), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func decodeBattery(line []byte) (Message, error) {
	var (
		idx   int
		level float64
		found bool
	)
	if _, err := jsonparser.ArrayEach(line, func(value []byte, dt jsonparser.ValueType, _ int, _ error) {
		if idx == 1 {
			level, found = number(value, dt)
		}
		idx++
	}, "p"); err != nil {
		return nil, fmt.Errorf("battery line without params: %w", err)
	}
	if !found {
		return nil, nil
	}
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	return BatteryMessage{Level: byte(level)}, nil
}

func decodeGesture(line []byte) (Message, error) {
	name, err := jsonparser.GetString(line, "p")
	if err != nil {
		return nil, nil
	}
	return GestureMessage{Name: name}, nil
}

// portReading is one element of the telemetry params array: the device type
// followed by its value array.
type portReading struct {
	device lwp3.DeviceType
	values []float64
	nulls  []bool
}

func decodeTelemetry(line []byte) (Message, error) {
	msg := TelemetryMessage{Attached: make(map[byte]lwp3.DeviceType)}

	port := byte(0)
	if _, err := jsonparser.ArrayEach(line, func(value []byte, dt jsonparser.ValueType, _ int, _ error) {
		p := port
		port++
		if p > 5 || dt != jsonparser.Array {
			// Only the six external port slots carry device tuples.
			return
		}
		reading, ok := parsePortReading(value)
		if !ok || reading.device == 0 {
			return
		}
		msg.Attached[p] = reading.device
		msg.Records = append(msg.Records, reading.records(p)...)
	}, "p"); err != nil {
		return nil, fmt.Errorf("telemetry line without params: %w", err)
	}
	return msg, nil
}

func parsePortReading(tuple []byte) (portReading, bool) {
	var r portReading
	idx := 0
	if _, err := jsonparser.ArrayEach(tuple, func(value []byte, dt jsonparser.ValueType, _ int, _ error) {
		switch idx {
		case 0:
			if f, ok := number(value, dt); ok {
				r.device = lwp3.DeviceType(f)
			}
		case 1:
			if dt == jsonparser.Array {
				_, _ = jsonparser.ArrayEach(value, func(v []byte, vdt jsonparser.ValueType, _ int, _ error) {
					f, ok := number(v, vdt)
					r.values = append(r.values, f)
					r.nulls = append(r.nulls, !ok)
				})
			}
		}
		idx++
	}); err != nil {
		return r, false
	}
	return r, true
}

func (r portReading) value(i int) (float64, bool) {
	if i >= len(r.values) || r.nulls[i] {
		return 0, false
	}
	return r.values[i], true
}

// records maps one port tuple into binary-path record types using the fixed
// device-type lookup. Combo sensor 37 emits both a distance and a color
// record from one tuple.
func (r portReading) records(port byte) []spike.Record {
	switch r.device {
	case lwp3.DeviceSimpleMediumMotor, lwp3.DeviceTrainMotor:
		// Simple motors report speed only.
		rec := spike.MotorRecord{Port: port, Device: byte(r.device)}
		if speed, ok := r.value(0); ok {
			rec.Speed = clampInt8(speed)
		}
		return []spike.Record{rec}
	case lwp3.DeviceMediumAngularMotor, lwp3.DeviceLargeAngularMotor,
		lwp3.DeviceSmallAngularMotor, lwp3.DeviceMediumAngularMotorV2,
		lwp3.DeviceLargeAngularMotorV2:
		rec := spike.MotorRecord{Port: port, Device: byte(r.device)}
		if speed, ok := r.value(0); ok {
			rec.Speed = clampInt8(speed)
		}
		if pos, ok := r.value(2); ok {
			rec.Position = int32(pos)
		}
		return []spike.Record{rec}
	case lwp3.DeviceUltrasonicSensor:
		return []spike.Record{spike.DistanceRecord{Port: port, Distance: distanceMM(r, 0)}}
	case lwp3.DeviceColorSensor:
		rec := spike.ColorRecord{Port: port, Color: -1}
		if reflected, ok := r.value(0); ok {
			rec.Red = uint16(reflected)
		}
		if id, ok := r.value(1); ok {
			rec.Color = int8(id)
		}
		if red, ok := r.value(2); ok {
			rec.Red = uint16(red)
		}
		if green, ok := r.value(3); ok {
			rec.Green = uint16(green)
		}
		if blue, ok := r.value(4); ok {
			rec.Blue = uint16(blue)
		}
		return []spike.Record{rec}
	case lwp3.DeviceColorDistanceSensor:
		// The combo sensor folds reflected and ambient light into the red
		// and green channels. Not gamma-correct RGB.
		color := spike.ColorRecord{Port: port, Color: -1}
		if id, ok := r.value(0); ok {
			color.Color = int8(id)
		}
		if reflected, ok := r.value(2); ok {
			color.Red = uint16(reflected)
		}
		if ambient, ok := r.value(3); ok {
			color.Green = uint16(ambient)
		}
		return []spike.Record{
			spike.DistanceRecord{Port: port, Distance: distanceMM(r, 1)},
			color,
		}
	case lwp3.DeviceForceSensor:
		rec := spike.ForceRecord{Port: port}
		if force, ok := r.value(0); ok {
			rec.Force = byte(force)
		}
		if pressed, ok := r.value(1); ok && pressed != 0 {
			rec.Pressed = 1
		}
		return []spike.Record{rec}
	case lwp3.DeviceColorLightMatrix:
		rec := spike.MatrixRecord{Port: port}
		for i := 0; i < 9; i++ {
			if v, ok := r.value(i); ok {
				rec.Pixels[i] = byte(v)
			}
		}
		return []spike.Record{rec}
	case lwp3.DeviceLight:
		// Simple lights attach but report no values.
		return nil
	default:
		return nil
	}
}

// distanceMM converts a centimeter reading at values[i] to millimeters.
// Null or negative readings mean nothing detected and map to -1, matching
// the binary path.
func distanceMM(r portReading, i int) int16 {
	cm, ok := r.value(i)
	if !ok || cm < 0 {
		return -1
	}
	return int16(cm * 10)
}

func clampInt8(v float64) int8 {
	if v > 127 {
		return 127
	}
	if v < -128 {
		return -128
	}
	return int8(v)
}
