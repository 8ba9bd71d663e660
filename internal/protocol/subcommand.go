package protocol

import (
	"encoding/binary"
	"fmt"
)

// SubcommandID identifies a sub-operation multiplexed inside an output
// report of type ReportSubcommand.
type SubcommandID byte

// Subcommand ids from the public reverse-engineering notes. The set below
// is what a console sends during a minimally compliant handshake.
// https://github.com/dekuNukem/Nintendo_Switch_Reverse_Engineering/blob/master/bluetooth_hid_subcommands_notes.md
const (
	SubcommandRequestDeviceInfo         SubcommandID = 0x02
	SubcommandSetInputReportMode        SubcommandID = 0x03
	SubcommandTriggerButtonsElapsedTime SubcommandID = 0x04
	SubcommandSetShipmentLowPowerState  SubcommandID = 0x08
	SubcommandSPIFlashRead              SubcommandID = 0x10
	SubcommandSetPlayerLights           SubcommandID = 0x30
	SubcommandEnableIMU                 SubcommandID = 0x40
	SubcommandEnableVibration           SubcommandID = 0x48
)

func (s SubcommandID) String() string {
	switch s {
	case SubcommandRequestDeviceInfo:
		return "RequestDeviceInfo"
	case SubcommandSetInputReportMode:
		return "SetInputReportMode"
	case SubcommandTriggerButtonsElapsedTime:
		return "TriggerButtonsElapsedTime"
	case SubcommandSetShipmentLowPowerState:
		return "SetShipmentLowPowerState"
	case SubcommandSPIFlashRead:
		return "SPIFlashRead"
	case SubcommandSetPlayerLights:
		return "SetPlayerLights"
	case SubcommandEnableIMU:
		return "EnableIMU"
	case SubcommandEnableVibration:
		return "EnableVibration"
	default:
		return fmt.Sprintf("Subcommand(0x%02X)", byte(s))
	}
}

// Acknowledgement bytes for subcommand replies.
const (
	ackPlain   byte = 0x80 // acknowledged, no data
	ackData    byte = 0x82 // acknowledged, reply data follows
	ackTrigger byte = 0x83 // acknowledged, trigger timing data
	ackFlash   byte = 0x90 // acknowledged, SPI flash data follows
)

// DeviceInfo is the identity the engine reports for subcommand 0x02.
type DeviceInfo struct {
	// Firmware is the reported firmware version, major then minor.
	Firmware [2]byte
	// DeviceID is the controller kind byte (0x01 Joy-Con (L),
	// 0x02 Joy-Con (R), 0x03 Pro Controller).
	DeviceID byte
	// MAC is the adapter's Bluetooth address in big-endian display order.
	MAC [6]byte
}

// State is the per-session mutable record the engine owns. It changes only
// in response to parsed output reports and lives for one paired session.
type State struct {
	// Mode is the input-report mode last set by subcommand 0x03.
	Mode InputReportID
	// VibrationEnabled tracks subcommand 0x48.
	VibrationEnabled bool
	// IMUEnabled tracks subcommand 0x40.
	IMUEnabled bool
	// PlayerLights is the light pattern last set by subcommand 0x30.
	PlayerLights byte
	// LeftRumble and RightRumble hold the most recent rumble payloads.
	// Rumble bytes arrive in every output frame, not just rumble-typed
	// ones, and are applied before subcommand dispatch.
	LeftRumble  RumblePayload
	RightRumble RumblePayload
}

// Engine dispatches subcommand requests to deterministic replies and owns
// the session state plus the simulated flash image.
type Engine struct {
	info  DeviceInfo
	state State
	flash *FlashImage
}

// handlers is the closed dispatch table. Adding a subcommand means adding
// an entry here, nothing else.
var handlers = map[SubcommandID]func(*Engine, []byte, *InputReport) error{
	SubcommandRequestDeviceInfo:         (*Engine).replyDeviceInfo,
	SubcommandSetInputReportMode:        (*Engine).replySetInputReportMode,
	SubcommandTriggerButtonsElapsedTime: (*Engine).replyTriggerButtonsElapsedTime,
	SubcommandSetShipmentLowPowerState:  (*Engine).replySetShipmentLowPowerState,
	SubcommandSPIFlashRead:              (*Engine).replySPIFlashRead,
	SubcommandSetPlayerLights:           (*Engine).replySetPlayerLights,
	SubcommandEnableIMU:                 (*Engine).replyEnableIMU,
	SubcommandEnableVibration:           (*Engine).replyEnableVibration,
}

// NewEngine creates an engine for one paired session.
func NewEngine(info DeviceInfo) *Engine {
	return &Engine{
		info: info,
		state: State{
			Mode:         InputButtonAction,
			LeftRumble:   RumbleNeutral,
			RightRumble:  RumbleNeutral,
			PlayerLights: 0x00,
		},
		flash: NewFlashImage(),
	}
}

// State returns a snapshot of the session state.
func (e *Engine) State() State {
	return e.state
}

// Flash exposes the simulated non-volatile image.
func (e *Engine) Flash() *FlashImage {
	return e.flash
}

// HandleOutput applies a decoded output report to the session state and
// returns the reply to write back, if the report calls for one.
//
// The rumble payloads of every frame are stored before dispatch. Rumble-only
// and IR/NFC/MCU request frames produce no reply; a subcommand frame with an
// id missing from the dispatch table fails with ErrUnknownSubcommand, never
// a silent no-op. The console retries unanswered subcommands indefinitely,
// so swallowing the error would desynchronize the handshake.
func (e *Engine) HandleOutput(out *OutputReport) (*InputReport, error) {
	e.state.LeftRumble = out.LeftRumble
	e.state.RightRumble = out.RightRumble

	if out.Type != ReportSubcommand {
		return nil, nil
	}

	handler, ok := handlers[out.Subcommand]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubcommand, out.Subcommand)
	}

	reply := NewInputReport(InputSubcommandReply)
	reply.SetTimer(out.Timer)
	if err := handler(e, out.Payload, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (e *Engine) replyDeviceInfo(_ []byte, reply *InputReport) error {
	data := []byte{
		e.info.Firmware[0], e.info.Firmware[1],
		e.info.DeviceID,
		0x02, // always 2
	}
	data = append(data, e.info.MAC[:]...)
	data = append(data,
		0x01, // always 1
		0x01, // colors come from SPI flash
	)
	reply.SetReply(ackData, SubcommandRequestDeviceInfo, data)
	return nil
}

func (e *Engine) replySetInputReportMode(payload []byte, reply *InputReport) error {
	if len(payload) < 1 {
		return fmt.Errorf("%w: set input report mode without payload", ErrShortReport)
	}
	e.state.Mode = InputReportID(payload[0])
	reply.SetReply(ackPlain, SubcommandSetInputReportMode, nil)
	return nil
}

func (e *Engine) replyTriggerButtonsElapsedTime(_ []byte, reply *InputReport) error {
	reply.SetReply(ackTrigger, SubcommandTriggerButtonsElapsedTime, nil)
	return nil
}

func (e *Engine) replySetShipmentLowPowerState(_ []byte, reply *InputReport) error {
	reply.SetReply(ackPlain, SubcommandSetShipmentLowPowerState, nil)
	return nil
}

func (e *Engine) replySPIFlashRead(payload []byte, reply *InputReport) error {
	if len(payload) < 5 {
		return fmt.Errorf("%w: spi flash read request truncated", ErrShortReport)
	}
	offset := binary.LittleEndian.Uint32(payload[0:4])
	length := payload[4]

	data, err := e.flash.Read(offset, length)
	if err != nil {
		return err
	}

	echo := make([]byte, 5, 5+len(data))
	binary.LittleEndian.PutUint32(echo[0:4], offset)
	echo[4] = length
	reply.SetReply(ackFlash, SubcommandSPIFlashRead, append(echo, data...))
	return nil
}

func (e *Engine) replySetPlayerLights(payload []byte, reply *InputReport) error {
	if len(payload) < 1 {
		return fmt.Errorf("%w: set player lights without payload", ErrShortReport)
	}
	e.state.PlayerLights = payload[0]
	reply.SetReply(ackPlain, SubcommandSetPlayerLights, nil)
	return nil
}

func (e *Engine) replyEnableIMU(payload []byte, reply *InputReport) error {
	if len(payload) < 1 {
		return fmt.Errorf("%w: enable imu without payload", ErrShortReport)
	}
	e.state.IMUEnabled = payload[0]&0x01 != 0
	reply.SetReply(ackPlain, SubcommandEnableIMU, nil)
	return nil
}

func (e *Engine) replyEnableVibration(payload []byte, reply *InputReport) error {
	if len(payload) < 1 {
		return fmt.Errorf("%w: enable vibration without payload", ErrShortReport)
	}
	e.state.VibrationEnabled = payload[0]&0x01 != 0
	reply.SetReply(ackData, SubcommandEnableVibration, nil)
	return nil
}
