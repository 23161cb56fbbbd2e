package hub

import "github.com/srg/hublink/lwp3"

// Command is a semantic outbound command. The runtime encodes it for the
// active protocol; commands the protocol cannot express are dropped with a
// diagnostic event. Variants: PortOutputCommand, SetLEDColorCommand,
// SetLEDRGBCommand, SetNameCommand, HubActionCommand, VirtualPortCommand,
// ProgramFlowCommand, RawFrameCommand.
type Command interface {
	command()
}

// PortOutputCommand is an LWP3 port output sub-command with its raw
// payload. Convenience builders below cover the common motor cases.
type PortOutputCommand struct {
	Port    byte
	Sub     lwp3.OutputCommand
	Payload []byte
}

func (PortOutputCommand) command() {}

// StartPower builds a raw power command. Power 127 brakes, 0 floats.
func StartPower(port byte, power int8) PortOutputCommand {
	return PortOutputCommand{Port: port, Sub: lwp3.OutStartPower, Payload: []byte{byte(power)}}
}

// StartSpeed builds a regulated speed command.
func StartSpeed(port byte, speed int8, maxPower byte) PortOutputCommand {
	return PortOutputCommand{Port: port, Sub: lwp3.OutStartSpeed, Payload: []byte{byte(speed), maxPower, 0}}
}

// SetLEDColorCommand sets the hub LED to a catalog color index.
type SetLEDColorCommand struct {
	Port  byte
	Color byte
}

func (SetLEDColorCommand) command() {}

// SetLEDRGBCommand sets the hub LED to an RGB triple.
type SetLEDRGBCommand struct {
	Port    byte
	R, G, B byte
}

func (SetLEDRGBCommand) command() {}

// SetNameCommand renames the hub on whichever protocol is active.
type SetNameCommand struct {
	Name string
}

func (SetNameCommand) command() {}

// HubActionCommand issues an LWP3 hub action (switch off, disconnect, ...).
type HubActionCommand struct {
	Action lwp3.HubAction
}

func (HubActionCommand) command() {}

// VirtualPortCommand pairs two ports (Connect) or dissolves a virtual port
// (Connect false, PortA holding the virtual port ID).
type VirtualPortCommand struct {
	Connect bool
	PortA   byte
	PortB   byte
}

func (VirtualPortCommand) command() {}

// ProgramFlowCommand starts or stops a SPIKE program slot.
type ProgramFlowCommand struct {
	Stop bool
	Slot byte
}

func (ProgramFlowCommand) command() {}

// RawFrameCommand writes pre-encoded protocol bytes unchanged. The frame
// must already match the active protocol's message format; the runtime only
// applies framing (SPIKE pack/chunking) and transport routing.
type RawFrameCommand struct {
	Frame []byte
}

func (RawFrameCommand) command() {}
