package lwp3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSpeedWireFormat(t *testing.T) {
	frame := StartSpeed(0, 75, 100, 0)
	assert.Equal(t, []byte{0x09, 0x00, 0x81, 0x00, 0x11, 0x07, 0x4B, 0x64, 0x00}, frame)
}

func TestStartSpeedForTimeWireFormat(t *testing.T) {
	frame := StartSpeedForTime(0, 1000, 50, 100, EndStateBrake, 0)
	assert.Equal(t, []byte{0x0C, 0x00, 0x81, 0x00, 0x11, 0x09, 0xE8, 0x03, 0x32, 0x64, 0x7F, 0x00}, frame)
}

func TestCreateVirtualPortWireFormat(t *testing.T) {
	frame := CreateVirtualPort(0, 1)
	assert.Equal(t, []byte{0x06, 0x00, 0x61, 0x01, 0x00, 0x01}, frame)
}

func TestDisconnectVirtualPortWireFormat(t *testing.T) {
	frame := DisconnectVirtualPort(0x10)
	assert.Equal(t, []byte{0x05, 0x00, 0x61, 0x00, 0x10}, frame)
}

func TestBrakeAndFloat(t *testing.T) {
	assert.Equal(t, StartPower(2, 127), Brake(2))
	assert.Equal(t, StartPower(2, 0), Float(2))
	// Negative power encodes two's complement.
	frame := StartPower(0, -50)
	assert.Equal(t, byte(0xCE), frame[len(frame)-1])
}

func TestLEDCommands(t *testing.T) {
	color := SetLEDColor(50, 9)
	assert.Equal(t, []byte{0x08, 0x00, 0x81, 0x32, 0x11, 0x51, 0x00, 0x09}, color)

	rgb := SetLEDRGB(50, 0x10, 0x20, 0x30)
	assert.Equal(t, []byte{0x0A, 0x00, 0x81, 0x32, 0x11, 0x51, 0x01, 0x10, 0x20, 0x30}, rgb)
}

func TestHubPropertyEncoders(t *testing.T) {
	assert.Equal(t, []byte{0x05, 0x00, 0x01, 0x06, 0x05}, HubPropertyRequest(PropBatteryVoltage))
	assert.Equal(t, []byte{0x05, 0x00, 0x01, 0x06, 0x02}, HubPropertyEnableUpdates(PropBatteryVoltage))
	assert.Equal(t, []byte{0x05, 0x00, 0x01, 0x06, 0x03}, HubPropertyDisableUpdates(PropBatteryVoltage))
	assert.Equal(t, []byte{0x08, 0x00, 0x01, 0x01, 0x01, 'B', 'o', 'b'}, SetAdvertisingName("Bob"))
}

func TestHubActionEncoder(t *testing.T) {
	assert.Equal(t, []byte{0x04, 0x00, 0x02, 0x01}, HubActionCommand(ActionSwitchOff))
}

func TestPortInputFormatSetup(t *testing.T) {
	frame := PortInputFormatSetup(3, 0, 1, true)
	assert.Equal(t, []byte{0x0A, 0x00, 0x41, 0x03, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01}, frame)
}

// TestLengthEncodingBoundary checks the switch to the two-byte length form
// at exactly 128 total bytes.
func TestLengthEncodingBoundary(t *testing.T) {
	// 124 payload bytes -> 3 + 124 = 127 total, one-byte form.
	frame := HubPropertySet(PropAdvertisingName, make([]byte, 122))
	require.Len(t, frame, 127)
	assert.Equal(t, byte(127), frame[0])
	assert.Equal(t, byte(0x00), frame[1])
	assert.Equal(t, byte(0x01), frame[2])

	// One more payload byte tips the total past 127: the frame re-counts
	// its own extra length byte, so the total becomes 129.
	frame = HubPropertySet(PropAdvertisingName, make([]byte, 123))
	require.Len(t, frame, 129)
	assert.Equal(t, byte(0x81), frame[0], "low 7 bits of 129 with marker")
	assert.Equal(t, byte(0x01), frame[1], "upper 7 bits of 129")
	assert.Equal(t, byte(0x00), frame[2])
	assert.Equal(t, byte(0x01), frame[3])
}

// TestEncodeDecodeRoundTrip runs a selection of hub-level constructors,
// including one two-byte length form frame, through the decoder and checks
// the variant fields and length bookkeeping.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		check func(t *testing.T, msg Message)
	}{
		{
			name:  "battery request",
			frame: HubPropertyRequest(PropBatteryVoltage),
			check: func(t *testing.T, msg Message) {
				m := msg.(HubPropertyMessage)
				assert.Equal(t, PropBatteryVoltage, m.Property)
				assert.Equal(t, OpRequestUpdate, m.Operation)
			},
		},
		{
			name:  "set name",
			frame: SetAdvertisingName("Vernie"),
			check: func(t *testing.T, msg Message) {
				m := msg.(HubPropertyMessage)
				assert.Equal(t, PropAdvertisingName, m.Property)
				assert.Equal(t, OpSet, m.Operation)
				assert.Equal(t, []byte("Vernie"), m.Payload)
			},
		},
		{
			name:  "hub action",
			frame: HubActionCommand(ActionShutdown),
			check: func(t *testing.T, msg Message) {
				assert.Equal(t, ActionShutdown, msg.(HubActionMessage).Action)
			},
		},
		{
			name:  "large frame uses two-byte form",
			frame: HubPropertySet(PropAdvertisingName, make([]byte, 200)),
			check: func(t *testing.T, msg Message) {
				m := msg.(HubPropertyMessage)
				assert.Equal(t, PropAdvertisingName, m.Property)
				assert.Len(t, m.Payload, 200)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(tt.frame)
			require.NoError(t, err)
			tt.check(t, msg)
		})
	}
}

// Port output commands decode generically (the decoder has no outbound
// sub-command parser), so verify the frame shape directly.
func TestPortOutputFrameShape(t *testing.T) {
	frame := PortOutput(4, OutGotoAbsolutePosition, []byte{0x68, 0x01, 0x00, 0x00, 0x32, 0x64, 0x7E, 0x00})
	require.GreaterOrEqual(t, len(frame), 6)
	assert.Equal(t, byte(len(frame)), frame[0], "length byte covers the whole frame")
	assert.Equal(t, byte(0x00), frame[1], "hub ID is always zero")
	assert.Equal(t, byte(0x81), frame[2])
	assert.Equal(t, byte(4), frame[3])
	assert.Equal(t, StartupExecuteImmediately, frame[4])
	assert.Equal(t, byte(OutGotoAbsolutePosition), frame[5])
}
