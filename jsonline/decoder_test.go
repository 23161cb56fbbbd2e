package jsonline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/hublink/lwp3"
	"github.com/srg/hublink/spike"
)

func decodeTelemetryLine(t *testing.T, line string) TelemetryMessage {
	t.Helper()
	msg, err := Decode([]byte(line))
	require.NoError(t, err)
	tm, ok := msg.(TelemetryMessage)
	require.True(t, ok, "expected TelemetryMessage, got %T", msg)
	return tm
}

func TestDecodeMotorTelemetry(t *testing.T) {
	tm := decodeTelemetryLine(t,
		`{"m":0,"p":[[49,[30,0,360,175]],[0,[]],[0,[]],[0,[]],[0,[]],[0,[]]]}`+"\r")

	assert.Equal(t, lwp3.DeviceLargeAngularMotor, tm.Attached[0])
	require.Len(t, tm.Records, 1)
	motor := tm.Records[0].(spike.MotorRecord)
	assert.Equal(t, byte(0), motor.Port)
	assert.Equal(t, int8(30), motor.Speed)
	assert.Equal(t, int32(360), motor.Position)
}

func TestDecodeSimpleMotorOmitsPosition(t *testing.T) {
	tm := decodeTelemetryLine(t,
		`{"m":0,"p":[[0,[]],[1,[55,0,9999]],[0,[]],[0,[]],[0,[]],[0,[]]]}`)

	require.Len(t, tm.Records, 1)
	motor := tm.Records[0].(spike.MotorRecord)
	assert.Equal(t, byte(1), motor.Port)
	assert.Equal(t, int8(55), motor.Speed)
	assert.Equal(t, int32(0), motor.Position, "simple motors report no position")
}

// Integer fields arrive as integers, doubles or numeric strings depending
// on firmware; all three must parse.
func TestDecodeNumericTolerance(t *testing.T) {
	lines := []string{
		`{"m":0,"p":[[62,[12]],[0,[]],[0,[]],[0,[]],[0,[]],[0,[]]]}`,
		`{"m":0,"p":[[62.0,[12.0]],[0,[]],[0,[]],[0,[]],[0,[]],[0,[]]]}`,
		`{"m":0,"p":[["62",["12"]],[0,[]],[0,[]],[0,[]],[0,[]],[0,[]]]}`,
	}
	for _, line := range lines {
		tm := decodeTelemetryLine(t, line)
		require.Len(t, tm.Records, 1, "line %s", line)
		dist := tm.Records[0].(spike.DistanceRecord)
		assert.Equal(t, int16(120), dist.Distance, "cm scale to mm")
	}
}

func TestDecodeDistanceNone(t *testing.T) {
	for _, line := range []string{
		`{"m":0,"p":[[62,[null]],[0,[]],[0,[]],[0,[]],[0,[]],[0,[]]]}`,
		`{"m":0,"p":[[62,[-1]],[0,[]],[0,[]],[0,[]],[0,[]],[0,[]]]}`,
	} {
		tm := decodeTelemetryLine(t, line)
		require.Len(t, tm.Records, 1)
		dist := tm.Records[0].(spike.DistanceRecord)
		assert.Equal(t, int16(-1), dist.Distance)
	}
}

func TestDecodeColorSensor(t *testing.T) {
	tm := decodeTelemetryLine(t,
		`{"m":0,"p":[[0,[]],[0,[]],[61,[50,9,1023,512,256]],[0,[]],[0,[]],[0,[]]]}`)

	require.Len(t, tm.Records, 1)
	c := tm.Records[0].(spike.ColorRecord)
	assert.Equal(t, byte(2), c.Port)
	assert.Equal(t, int8(9), c.Color)
	assert.Equal(t, uint16(1023), c.Red)
	assert.Equal(t, uint16(512), c.Green)
	assert.Equal(t, uint16(256), c.Blue)
}

// The color & distance combo emits both a distance and a color record from
// one tuple, with reflected/ambient folded into red/green.
func TestDecodeColorDistanceCombo(t *testing.T) {
	tm := decodeTelemetryLine(t,
		`{"m":0,"p":[[37,[5,7,80,20]],[0,[]],[0,[]],[0,[]],[0,[]],[0,[]]]}`)

	require.Len(t, tm.Records, 2)
	dist := tm.Records[0].(spike.DistanceRecord)
	assert.Equal(t, int16(70), dist.Distance, "proximity cm scale to mm")
	c := tm.Records[1].(spike.ColorRecord)
	assert.Equal(t, int8(5), c.Color)
	assert.Equal(t, uint16(80), c.Red, "reflected light")
	assert.Equal(t, uint16(20), c.Green, "ambient light")
}

func TestDecodeForceSensor(t *testing.T) {
	tm := decodeTelemetryLine(t,
		`{"m":0,"p":[[0,[]],[0,[]],[0,[]],[63,[42,1]],[0,[]],[0,[]]]}`)

	require.Len(t, tm.Records, 1)
	f := tm.Records[0].(spike.ForceRecord)
	assert.Equal(t, byte(3), f.Port)
	assert.Equal(t, byte(42), f.Force)
	assert.Equal(t, byte(1), f.Pressed)
}

func TestDecodeEmptyPortsAttachNothing(t *testing.T) {
	tm := decodeTelemetryLine(t,
		`{"m":0,"p":[[0,[]],[0,[]],[0,[]],[0,[]],[0,[]],[0,[]]]}`)
	assert.Empty(t, tm.Attached)
	assert.Empty(t, tm.Records)
}

func TestDecodeBattery(t *testing.T) {
	msg, err := Decode([]byte(`{"m":2,"p":[8.3,78]}` + "\n"))
	require.NoError(t, err)
	batt, ok := msg.(BatteryMessage)
	require.True(t, ok)
	assert.Equal(t, byte(78), batt.Level)

	// Percentage arrives as string on some firmware builds.
	msg, err = Decode([]byte(`{"m":2,"p":[8.3,"64"]}`))
	require.NoError(t, err)
	assert.Equal(t, byte(64), msg.(BatteryMessage).Level)
}

func TestDecodeGesture(t *testing.T) {
	msg, err := Decode([]byte(`{"m":4,"p":"tapped"}`))
	require.NoError(t, err)
	assert.Equal(t, GestureMessage{Name: "tapped"}, msg)
}

func TestDecodeIgnoredMethod(t *testing.T) {
	msg, err := Decode([]byte(`{"m":99,"p":[]}`))
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"p":[]}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)

	msg, err := Decode([]byte("\r\n"))
	require.NoError(t, err)
	assert.Nil(t, msg)
}
