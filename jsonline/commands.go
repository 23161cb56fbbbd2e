package jsonline

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/srg/hublink/lwp3"
)

// UnsupportedCommandError reports an LWP3 port output sub-command the line
// transport cannot express. The command is dropped; the caller surfaces a
// diagnostic event.
type UnsupportedCommandError struct {
	Command lwp3.OutputCommand
}

func (e *UnsupportedCommandError) Error() string {
	return fmt.Sprintf("command %s is not supported on the line transport", e.Command)
}

// request is the outbound JSON object shape: method, params and a fresh
// message ID per command.
type request struct {
	I string `json:"i"`
	M string `json:"m"`
	P any    `json:"p"`
}

func marshal(method string, params any) []byte {
	b, err := json.Marshal(request{I: uuid.NewString(), M: method, P: params})
	if err != nil {
		// The param structs below marshal unconditionally.
		panic(err)
	}
	return append(b, '\r')
}

type motorStartParams struct {
	Port  string `json:"port"`
	Speed int    `json:"speed"`
	Stall bool   `json:"stall"`
}

type motorPWMParams struct {
	Port  string `json:"port"`
	Power int    `json:"power"`
	Stall bool   `json:"stall"`
}

type motorStopParams struct {
	Port string `json:"port"`
	Stop int    `json:"stop"`
}

// MotorStart builds a scratch.motor_start command running a regulated speed.
// Speed 0 becomes a stop command.
func MotorStart(port byte, speed int) []byte {
	if speed == 0 {
		return MotorStop(port)
	}
	return marshal("scratch.motor_start", motorStartParams{
		Port:  lwp3.PortName(port),
		Speed: clamp100(speed),
		Stall: true,
	})
}

// MotorPWM builds a scratch.motor_pwm command driving raw power. Power 0
// becomes a stop command.
func MotorPWM(port byte, power int) []byte {
	if power == 0 {
		return MotorStop(port)
	}
	return marshal("scratch.motor_pwm", motorPWMParams{
		Port:  lwp3.PortName(port),
		Power: clamp100(power),
		Stall: false,
	})
}

// MotorStop builds a scratch.motor_stop command.
func MotorStop(port byte) []byte {
	return marshal("scratch.motor_stop", motorStopParams{Port: lwp3.PortName(port), Stop: 1})
}

// TranslateOutput maps an LWP3 port output sub-command onto the scratch
// command set. Only raw power and regulated speed have line equivalents;
// everything else returns an UnsupportedCommandError.
func TranslateOutput(port byte, sub lwp3.OutputCommand, payload []byte) ([]byte, error) {
	switch sub {
	case lwp3.OutStartPower:
		if len(payload) < 1 {
			return nil, &UnsupportedCommandError{Command: sub}
		}
		return MotorPWM(port, int(int8(payload[0]))), nil
	case lwp3.OutStartSpeed:
		if len(payload) < 1 {
			return nil, &UnsupportedCommandError{Command: sub}
		}
		return MotorStart(port, int(int8(payload[0]))), nil
	default:
		return nil, &UnsupportedCommandError{Command: sub}
	}
}

func clamp100(v int) int {
	if v > 100 {
		return 100
	}
	if v < -100 {
		return -100
	}
	return v
}
