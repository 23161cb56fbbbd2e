package lwp3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHubPropertyBatteryUpdate(t *testing.T) {
	msg, err := Decode([]byte{0x06, 0x00, 0x01, 0x06, 0x06, 0x64})
	require.NoError(t, err)

	prop, ok := msg.(HubPropertyMessage)
	require.True(t, ok, "expected HubPropertyMessage, got %T", msg)
	assert.Equal(t, PropBatteryVoltage, prop.Property)
	assert.Equal(t, OpUpdate, prop.Operation)
	assert.Equal(t, []byte{0x64}, prop.Payload)
}

func TestDecodeAttachedIO(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  AttachedIOMessage
	}{
		{
			name:  "attached with revisions",
			frame: []byte{0x0F, 0x00, 0x04, 0x00, 0x01, 0x31, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x10},
			want: AttachedIOMessage{
				Port:        0,
				Event:       IOAttached,
				Device:      DeviceLargeAngularMotor,
				HardwareRev: 0x00000001,
				SoftwareRev: 0x10000002,
			},
		},
		{
			name:  "detached",
			frame: []byte{0x05, 0x00, 0x04, 0x01, 0x00},
			want:  AttachedIOMessage{Port: 1, Event: IODetached},
		},
		{
			name:  "attached virtual",
			frame: []byte{0x09, 0x00, 0x04, 0x10, 0x02, 0x2E, 0x00, 0x00, 0x01},
			want: AttachedIOMessage{
				Port:   0x10,
				Event:  IOAttachedVirtual,
				Device: DeviceTechnicLargeMotor,
				PortA:  0,
				PortB:  1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(tt.frame)
			require.NoError(t, err)
			require.IsType(t, AttachedIOMessage{}, msg)
			assert.Equal(t, tt.want, msg.(AttachedIOMessage))
		})
	}
}

func TestDecodePortValueSingle(t *testing.T) {
	msg, err := Decode([]byte{0x06, 0x00, 0x45, 0x02, 0x7B, 0x00})
	require.NoError(t, err)

	val, ok := msg.(PortValueSingleMessage)
	require.True(t, ok)
	assert.Equal(t, byte(2), val.Port)
	assert.Equal(t, []byte{0x7B, 0x00}, val.Value)
}

func TestDecodePortValueCombined(t *testing.T) {
	msg, err := Decode([]byte{0x08, 0x00, 0x46, 0x00, 0x03, 0x00, 0x11, 0x22})
	require.NoError(t, err)

	val, ok := msg.(PortValueCombinedMessage)
	require.True(t, ok)
	assert.Equal(t, byte(0), val.Port)
	assert.Equal(t, uint16(3), val.ModePointers)
	assert.Equal(t, []byte{0x11, 0x22}, val.Value)
}

func TestDecodeHubAlert(t *testing.T) {
	msg, err := Decode([]byte{0x06, 0x00, 0x03, 0x01, 0x04, 0x01})
	require.NoError(t, err)

	alert, ok := msg.(HubAlertMessage)
	require.True(t, ok)
	assert.Equal(t, AlertLowVoltage, alert.Alert)
	assert.Equal(t, byte(0x04), alert.Operation)
	assert.Equal(t, []byte{0x01}, alert.Payload)
}

func TestDecodeHubAction(t *testing.T) {
	msg, err := Decode([]byte{0x04, 0x00, 0x02, 0x02})
	require.NoError(t, err)
	action, ok := msg.(HubActionMessage)
	require.True(t, ok)
	assert.Equal(t, ActionDisconnect, action.Action)

	// Unknown action bytes fall back to the unknown variant.
	msg, err = Decode([]byte{0x04, 0x00, 0x02, 0x77})
	require.NoError(t, err)
	unknown, ok := msg.(UnknownMessage)
	require.True(t, ok)
	assert.Equal(t, MsgHubActions, unknown.RawType)
	assert.Equal(t, []byte{0x77}, unknown.Payload)
}

func TestDecodeGenericError(t *testing.T) {
	msg, err := Decode([]byte{0x05, 0x00, 0x05, 0x81, 0x06})
	require.NoError(t, err)
	gerr, ok := msg.(GenericErrorMessage)
	require.True(t, ok)
	assert.Equal(t, MsgPortOutputCommand, gerr.CommandType)
	assert.Equal(t, byte(0x06), gerr.Code)
}

func TestDecodeUnknownMessageType(t *testing.T) {
	msg, err := Decode([]byte{0x05, 0x00, 0x7F, 0xAA, 0xBB})
	require.NoError(t, err)

	unknown, ok := msg.(UnknownMessage)
	require.True(t, ok)
	assert.Equal(t, MessageType(0x7F), unknown.RawType)
	assert.Equal(t, []byte{0xAA, 0xBB}, unknown.Payload)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"empty", nil},
		{"one byte", []byte{0x01}},
		{"two bytes", []byte{0x03, 0x00}},
		{"declared length exceeds buffer", []byte{0x10, 0x00, 0x01, 0x06}},
		{"declared length below header", []byte{0x02, 0x00, 0x01, 0x06}},
		{"two-byte form truncated", []byte{0x81, 0x01, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(tt.frame)
			require.Error(t, err)
			assert.Nil(t, msg)
			var mf *MalformedFrameError
			assert.ErrorAs(t, err, &mf)
		})
	}
}

// TestDecodeLengthBound verifies the decoded length never exceeds the
// input for a two-byte length form frame: the full 300-byte frame decodes,
// and the same frame cut to 299 bytes is rejected.
func TestDecodeLengthBound(t *testing.T) {
	frame := make([]byte, 300)
	frame[0] = 0xAC // two-byte form, low 7 bits = 44
	frame[1] = 0x02 // upper bits = 2, total 44 + 2*128 = 300
	frame[2] = 0x00
	frame[3] = 0x01
	frame[4] = 0x06
	frame[5] = 0x06

	msg, err := Decode(frame)
	require.NoError(t, err)
	require.IsType(t, HubPropertyMessage{}, msg)

	_, err = Decode(frame[:299])
	require.Error(t, err)
}

func TestPortName(t *testing.T) {
	assert.Equal(t, "A", PortName(0))
	assert.Equal(t, "F", PortName(5))
	assert.Equal(t, "Z", PortName(25))
	assert.Equal(t, "Port(26)", PortName(26))
	assert.Equal(t, "Port(50)", PortName(50))
}

func TestDeviceCatalog(t *testing.T) {
	assert.Equal(t, CategoryMotor, DeviceLargeAngularMotor.Category())
	assert.Equal(t, CategorySensor, DeviceUltrasonicSensor.Category())
	assert.Equal(t, CategoryLight, DeviceColorLightMatrix.Category())
	assert.Equal(t, CategoryHubInternal, DeviceHubLED.Category())
	assert.Equal(t, CategoryUnknown, DeviceType(0xBEEF).Category())
	assert.Equal(t, "Device(0xBEEF)", DeviceType(0xBEEF).String())
	assert.True(t, DeviceTrainMotor.IsMotor())
	assert.False(t, DeviceColorSensor.IsMotor())
}
