// Package lwp3 implements the LEGO Wireless Protocol v3 wire codec used by
// Powered Up, BOOST, Technic and City hubs. It provides the message type
// catalog, a tolerant decoder producing tagged-union messages, and semantic
// encoders whose length fields are correct by construction.
//
// All multi-byte integers on the wire are little-endian. The hub ID byte is
// always zero outbound and ignored inbound.
package lwp3

import "fmt"

// MessageType identifies an LWP3 message (the byte following the hub ID).
type MessageType byte

// Message types
const (
	MsgHubProperties              MessageType = 0x01
	MsgHubActions                 MessageType = 0x02
	MsgHubAlerts                  MessageType = 0x03
	MsgHubAttachedIO              MessageType = 0x04
	MsgGenericError               MessageType = 0x05
	MsgPortInformationRequest     MessageType = 0x21
	MsgPortModeInformationRequest MessageType = 0x22
	MsgPortInputFormatSetup       MessageType = 0x41
	MsgPortInputFormatSetupCombi  MessageType = 0x42
	MsgPortInformation            MessageType = 0x43
	MsgPortModeInformation        MessageType = 0x44
	MsgPortValueSingle            MessageType = 0x45
	MsgPortValueCombined          MessageType = 0x46
	MsgPortInputFormatSingle      MessageType = 0x47
	MsgPortInputFormatCombined    MessageType = 0x48
	MsgVirtualPortSetup           MessageType = 0x61
	MsgPortOutputCommand          MessageType = 0x81
	MsgPortOutputFeedback         MessageType = 0x82
)

func (t MessageType) String() string {
	switch t {
	case MsgHubProperties:
		return "HubProperties"
	case MsgHubActions:
		return "HubActions"
	case MsgHubAlerts:
		return "HubAlerts"
	case MsgHubAttachedIO:
		return "HubAttachedIO"
	case MsgGenericError:
		return "GenericError"
	case MsgPortInformationRequest:
		return "PortInformationRequest"
	case MsgPortModeInformationRequest:
		return "PortModeInformationRequest"
	case MsgPortInputFormatSetup:
		return "PortInputFormatSetup"
	case MsgPortInputFormatSetupCombi:
		return "PortInputFormatSetupCombined"
	case MsgPortInformation:
		return "PortInformation"
	case MsgPortModeInformation:
		return "PortModeInformation"
	case MsgPortValueSingle:
		return "PortValueSingle"
	case MsgPortValueCombined:
		return "PortValueCombined"
	case MsgPortInputFormatSingle:
		return "PortInputFormatSingle"
	case MsgPortInputFormatCombined:
		return "PortInputFormatCombined"
	case MsgVirtualPortSetup:
		return "VirtualPortSetup"
	case MsgPortOutputCommand:
		return "PortOutputCommand"
	case MsgPortOutputFeedback:
		return "PortOutputFeedback"
	default:
		return fmt.Sprintf("MessageType(0x%02X)", byte(t))
	}
}

// HubProperty identifies a hub property in HubProperties messages.
// Unknown values pass through decoding unchanged.
type HubProperty byte

// Hub properties
const (
	PropAdvertisingName  HubProperty = 0x01
	PropButton           HubProperty = 0x02
	PropFirmwareVersion  HubProperty = 0x03
	PropHardwareVersion  HubProperty = 0x04
	PropRSSI             HubProperty = 0x05
	PropBatteryVoltage   HubProperty = 0x06
	PropBatteryType      HubProperty = 0x07
	PropManufacturerName HubProperty = 0x08
	PropRadioFirmware    HubProperty = 0x09
	PropProtocolVersion  HubProperty = 0x0A
	PropSystemTypeID     HubProperty = 0x0B
	PropHWNetworkID      HubProperty = 0x0C
	PropPrimaryMAC       HubProperty = 0x0D
	PropSecondaryMAC     HubProperty = 0x0E
	PropHWNetworkFamily  HubProperty = 0x0F
)

func (p HubProperty) String() string {
	switch p {
	case PropAdvertisingName:
		return "AdvertisingName"
	case PropButton:
		return "Button"
	case PropFirmwareVersion:
		return "FirmwareVersion"
	case PropHardwareVersion:
		return "HardwareVersion"
	case PropRSSI:
		return "RSSI"
	case PropBatteryVoltage:
		return "BatteryVoltage"
	case PropBatteryType:
		return "BatteryType"
	case PropManufacturerName:
		return "ManufacturerName"
	case PropRadioFirmware:
		return "RadioFirmwareVersion"
	case PropProtocolVersion:
		return "ProtocolVersion"
	case PropSystemTypeID:
		return "SystemTypeID"
	case PropHWNetworkID:
		return "HWNetworkID"
	case PropPrimaryMAC:
		return "PrimaryMAC"
	case PropSecondaryMAC:
		return "SecondaryMAC"
	case PropHWNetworkFamily:
		return "HWNetworkFamily"
	default:
		return fmt.Sprintf("HubProperty(0x%02X)", byte(p))
	}
}

// PropertyOperation is the second byte of a HubProperties message.
type PropertyOperation byte

// Property operations
const (
	OpSet            PropertyOperation = 0x01
	OpEnableUpdates  PropertyOperation = 0x02
	OpDisableUpdates PropertyOperation = 0x03
	OpReset          PropertyOperation = 0x04
	OpRequestUpdate  PropertyOperation = 0x05
	OpUpdate         PropertyOperation = 0x06
)

func (o PropertyOperation) String() string {
	switch o {
	case OpSet:
		return "Set"
	case OpEnableUpdates:
		return "EnableUpdates"
	case OpDisableUpdates:
		return "DisableUpdates"
	case OpReset:
		return "Reset"
	case OpRequestUpdate:
		return "RequestUpdate"
	case OpUpdate:
		return "Update"
	default:
		return fmt.Sprintf("PropertyOperation(0x%02X)", byte(o))
	}
}

// HubAction is the single payload byte of a HubActions message.
type HubAction byte

// Hub actions
const (
	ActionSwitchOff           HubAction = 0x01
	ActionDisconnect          HubAction = 0x02
	ActionVCCPortOn           HubAction = 0x03
	ActionVCCPortOff          HubAction = 0x04
	ActionActivateBusy        HubAction = 0x05
	ActionResetBusy           HubAction = 0x06
	ActionShutdown            HubAction = 0x2F
	ActionHubWillSwitchOff    HubAction = 0x30
	ActionHubWillDisconnect   HubAction = 0x31
	ActionHubWillGoToBootMode HubAction = 0x32
)

// knownHubAction reports whether b maps to a catalogued action.
func knownHubAction(b byte) bool {
	switch HubAction(b) {
	case ActionSwitchOff, ActionDisconnect, ActionVCCPortOn, ActionVCCPortOff,
		ActionActivateBusy, ActionResetBusy, ActionShutdown,
		ActionHubWillSwitchOff, ActionHubWillDisconnect, ActionHubWillGoToBootMode:
		return true
	}
	return false
}

func (a HubAction) String() string {
	switch a {
	case ActionSwitchOff:
		return "SwitchOff"
	case ActionDisconnect:
		return "Disconnect"
	case ActionVCCPortOn:
		return "VCCPortOn"
	case ActionVCCPortOff:
		return "VCCPortOff"
	case ActionActivateBusy:
		return "ActivateBusyIndication"
	case ActionResetBusy:
		return "ResetBusyIndication"
	case ActionShutdown:
		return "Shutdown"
	case ActionHubWillSwitchOff:
		return "HubWillSwitchOff"
	case ActionHubWillDisconnect:
		return "HubWillDisconnect"
	case ActionHubWillGoToBootMode:
		return "HubWillGoToBootMode"
	default:
		return fmt.Sprintf("HubAction(0x%02X)", byte(a))
	}
}

// AlertType identifies a hub alert condition.
type AlertType byte

// Hub alerts
const (
	AlertLowVoltage        AlertType = 0x01
	AlertHighCurrent       AlertType = 0x02
	AlertLowSignalStrength AlertType = 0x03
	AlertOverPower         AlertType = 0x04
)

func (a AlertType) String() string {
	switch a {
	case AlertLowVoltage:
		return "LowVoltage"
	case AlertHighCurrent:
		return "HighCurrent"
	case AlertLowSignalStrength:
		return "LowSignalStrength"
	case AlertOverPower:
		return "OverPowerCondition"
	default:
		return fmt.Sprintf("AlertType(0x%02X)", byte(a))
	}
}

// IOEvent is the event byte of a HubAttachedIO message.
type IOEvent byte

// Attached I/O events
const (
	IODetached        IOEvent = 0x00
	IOAttached        IOEvent = 0x01
	IOAttachedVirtual IOEvent = 0x02
)

func (e IOEvent) String() string {
	switch e {
	case IODetached:
		return "Detached"
	case IOAttached:
		return "Attached"
	case IOAttachedVirtual:
		return "AttachedVirtual"
	default:
		return fmt.Sprintf("IOEvent(0x%02X)", byte(e))
	}
}

// OutputCommand is a port output sub-command carried in MsgPortOutputCommand.
type OutputCommand byte

// Port output sub-commands
const (
	OutStartPower            OutputCommand = 0x01
	OutStartPowerDual        OutputCommand = 0x02
	OutSetAccelerationTime   OutputCommand = 0x05
	OutSetDecelerationTime   OutputCommand = 0x06
	OutStartSpeed            OutputCommand = 0x07
	OutStartSpeedDual        OutputCommand = 0x08
	OutStartSpeedForTime     OutputCommand = 0x09
	OutStartSpeedForTimeDual OutputCommand = 0x0A
	OutStartSpeedForDegrees  OutputCommand = 0x0B
	OutStartSpeedForDegsDual OutputCommand = 0x0C
	OutGotoAbsolutePosition  OutputCommand = 0x0D
	OutGotoAbsolutePosDual   OutputCommand = 0x0E
	OutPresetEncoder         OutputCommand = 0x14
	OutWriteDirect           OutputCommand = 0x50
	OutWriteDirectModeData   OutputCommand = 0x51
)

func (c OutputCommand) String() string {
	switch c {
	case OutStartPower:
		return "StartPower"
	case OutStartPowerDual:
		return "StartPowerDual"
	case OutSetAccelerationTime:
		return "SetAccelerationTime"
	case OutSetDecelerationTime:
		return "SetDecelerationTime"
	case OutStartSpeed:
		return "StartSpeed"
	case OutStartSpeedDual:
		return "StartSpeedDual"
	case OutStartSpeedForTime:
		return "StartSpeedForTime"
	case OutStartSpeedForTimeDual:
		return "StartSpeedForTimeDual"
	case OutStartSpeedForDegrees:
		return "StartSpeedForDegrees"
	case OutStartSpeedForDegsDual:
		return "StartSpeedForDegreesDual"
	case OutGotoAbsolutePosition:
		return "GotoAbsolutePosition"
	case OutGotoAbsolutePosDual:
		return "GotoAbsolutePositionDual"
	case OutPresetEncoder:
		return "PresetEncoder"
	case OutWriteDirect:
		return "WriteDirect"
	case OutWriteDirectModeData:
		return "WriteDirectModeData"
	default:
		return fmt.Sprintf("OutputCommand(0x%02X)", byte(c))
	}
}

// EndState selects the motor behavior after a timed or positioned run ends.
type EndState byte

// Motor end states
const (
	EndStateFloat EndState = 0
	EndStateHold  EndState = 126
	EndStateBrake EndState = 127
)

func (s EndState) String() string {
	switch s {
	case EndStateFloat:
		return "Float"
	case EndStateHold:
		return "Hold"
	case EndStateBrake:
		return "Brake"
	default:
		return fmt.Sprintf("EndState(%d)", byte(s))
	}
}

// Feedback flags reported in MsgPortOutputFeedback.
const (
	FeedbackInProgress        byte = 0x01
	FeedbackCompleted         byte = 0x02
	FeedbackCommandsDiscarded byte = 0x04
	FeedbackIdle              byte = 0x08
	FeedbackBusyFull          byte = 0x10
)

// StartupExecuteImmediately requests immediate execution with command
// feedback. Every port output command this package emits uses it.
const StartupExecuteImmediately byte = 0x11

// VirtualPortBase is the first port ID the hubs use for internal virtual
// ports (LED, IMU, battery). External ports are below it.
const VirtualPortBase byte = 50

// PortName renders a port ID the way the hubs label them: 0..25 map to the
// letters A..Z, everything else renders as Port(n).
func PortName(port byte) string {
	if port < 26 {
		return string(rune('A' + port))
	}
	return fmt.Sprintf("Port(%d)", port)
}
