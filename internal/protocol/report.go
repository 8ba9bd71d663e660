// Package protocol implements the Nintendo Switch controller HID report
// protocol spoken over the paired L2CAP channels.
//
// Two frame directions exist on the wire:
//   - Output reports travel from the console (host) to the controller and
//     carry a direction tag of 0xA1. Every output frame interleaves an
//     8-byte rumble payload; frames of type Subcommand additionally carry a
//     subcommand id and its request payload.
//   - Input reports travel from the controller to the console and carry a
//     direction tag of 0xA2. They hold button/stick/battery state and,
//     when answering a subcommand, an acknowledgement plus reply payload.
//
// The codec here is stateless and does no I/O; the Engine in subcommand.go
// holds the per-session mutable state.
//
// Field layout follows the public reverse-engineering notes:
// https://github.com/dekuNukem/Nintendo_Switch_Reverse_Engineering/blob/master/bluetooth_hid_notes.md
package protocol

import (
	"fmt"

	"github.com/zhxie/playwith"
)

const (
	// DirectionOutput tags frames authored by the console.
	DirectionOutput byte = 0xA1
	// DirectionInput tags frames authored by the emulated controller.
	DirectionInput byte = 0xA2

	// OutputReportMinLength is the shortest valid output frame: direction,
	// type, timer, and the two 4-byte rumble payloads plus one trailing byte.
	OutputReportMinLength = 12

	// InputReportLength is the fixed size of every encoded input report.
	InputReportLength = 50
)

// ReportType identifies the kind of an output report.
type ReportType byte

const (
	// ReportSubcommand carries rumble data plus a subcommand request.
	ReportSubcommand ReportType = 0x01
	// ReportRumble carries rumble data only.
	ReportRumble ReportType = 0x10
	// ReportRequestIrNfcMcu carries rumble data plus an IR/NFC/MCU request.
	ReportRequestIrNfcMcu ReportType = 0x11
)

func (t ReportType) String() string {
	switch t {
	case ReportSubcommand:
		return "Subcommand"
	case ReportRumble:
		return "Rumble"
	case ReportRequestIrNfcMcu:
		return "RequestIrNfcMcu"
	default:
		return fmt.Sprintf("ReportType(0x%02X)", byte(t))
	}
}

// Sentinel decode errors. All of them classify as protocol errors.
var (
	ErrShortReport       = playwith.NewError(playwith.KindProtocol, "output report too short")
	ErrBadDirection      = playwith.NewError(playwith.KindProtocol, "invalid output direction")
	ErrUnknownReportType = playwith.NewError(playwith.KindProtocol, "unknown output report type")
	ErrUnknownSubcommand = playwith.NewError(playwith.KindProtocol, "unknown subcommand")
)

// RumblePayload is one side's fixed-format vibration encoding.
type RumblePayload [4]byte

// RumbleNeutral is the encoding for a motor at rest.
var RumbleNeutral = RumblePayload{0x00, 0x01, 0x40, 0x40}

// OutputReport is a decoded host→controller frame.
//
// Subcommand and Payload are meaningful only when Type is ReportSubcommand;
// for ReportRequestIrNfcMcu the trailing bytes (including the would-be
// subcommand byte) land in Payload instead.
type OutputReport struct {
	Type        ReportType
	Timer       byte
	LeftRumble  RumblePayload
	RightRumble RumblePayload
	Subcommand  SubcommandID
	Payload     []byte
}

// DecodeOutput parses a raw frame read from the interrupt channel.
//
// It fails when the frame is shorter than OutputReportMinLength, when the
// direction tag is not DirectionOutput, or when the type byte names no known
// report type. Validation is strict: a frame that fails here aborts the
// session, since the protocol has no resynchronization primitive.
func DecodeOutput(frame []byte) (*OutputReport, error) {
	if len(frame) < OutputReportMinLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortReport, len(frame))
	}
	if frame[0] != DirectionOutput {
		return nil, fmt.Errorf("%w: 0x%02X", ErrBadDirection, frame[0])
	}

	t := ReportType(frame[1])
	switch t {
	case ReportSubcommand, ReportRumble, ReportRequestIrNfcMcu:
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownReportType, frame[1])
	}

	r := &OutputReport{
		Type:  t,
		Timer: frame[2],
	}
	copy(r.LeftRumble[:], frame[3:7])
	copy(r.RightRumble[:], frame[7:11])

	switch t {
	case ReportSubcommand:
		r.Subcommand = SubcommandID(frame[11])
		if len(frame) > 12 {
			r.Payload = append([]byte(nil), frame[12:]...)
		}
	case ReportRequestIrNfcMcu:
		r.Payload = append([]byte(nil), frame[11:]...)
	}
	return r, nil
}

// Encode serializes the report back into wire form. The emulator never
// re-encodes host frames itself; this exists for host-side tooling and for
// exercising DecodeOutput against authored frames.
func (r *OutputReport) Encode() []byte {
	frame := make([]byte, 0, OutputReportMinLength+len(r.Payload))
	frame = append(frame, DirectionOutput, byte(r.Type), r.Timer)
	frame = append(frame, r.LeftRumble[:]...)
	frame = append(frame, r.RightRumble[:]...)
	switch r.Type {
	case ReportSubcommand:
		frame = append(frame, byte(r.Subcommand))
		frame = append(frame, r.Payload...)
	case ReportRequestIrNfcMcu:
		frame = append(frame, r.Payload...)
		for len(frame) < OutputReportMinLength {
			frame = append(frame, 0x00)
		}
	default:
		frame = append(frame, 0x00)
	}
	return frame
}

// InputReportID identifies the kind of an input report.
type InputReportID byte

const (
	// InputSubcommandReply answers a subcommand request.
	InputSubcommandReply InputReportID = 0x21
	// InputStandardFull is the steady-state 60Hz full report.
	InputStandardFull InputReportID = 0x30
	// InputNFC is the full report with NFC/IR MCU data appended.
	InputNFC InputReportID = 0x31
	// InputButtonAction is the simple HID mode used before the console
	// switches the controller into full mode.
	InputButtonAction InputReportID = 0x3F
)

// InputReport builds a controller→host frame.
type InputReport struct {
	data [InputReportLength]byte
}

// NewInputReport starts a frame of the given report id with centered sticks,
// full battery, and the vibrator byte the console expects.
func NewInputReport(id InputReportID) *InputReport {
	r := &InputReport{}
	r.data[0] = DirectionInput
	r.data[1] = byte(id)

	r.data[3] = 0x90 // battery level | connection info

	// Centered stick encodings from the factory calibration the flash
	// image serves; the console cross-checks the two.
	copy(r.data[7:10], []byte{0x6F, 0xC8, 0x77})
	copy(r.data[10:13], []byte{0x16, 0xD8, 0x7D})

	r.data[13] = 0x80 // vibrator report
	return r
}

// SetTimer sets the timer byte echoed back to the host.
func (r *InputReport) SetTimer(timer byte) {
	r.data[2] = timer
}

// SetButtons sets the 3-byte button state.
func (r *InputReport) SetButtons(buttons [3]byte) {
	copy(r.data[4:7], buttons[:])
}

// SetReply fills in the subcommand acknowledgement: the ack byte, the id of
// the subcommand being answered, and up to 34 bytes of reply data.
func (r *InputReport) SetReply(ack byte, id SubcommandID, data []byte) {
	r.data[14] = ack
	r.data[15] = byte(id)
	copy(r.data[16:], data)
}

// ReplyTo reports which subcommand this frame acknowledges.
func (r *InputReport) ReplyTo() SubcommandID {
	return SubcommandID(r.data[15])
}

// Ack returns the acknowledgement byte.
func (r *InputReport) Ack() byte {
	return r.data[14]
}

// ReplyData returns the subcommand reply payload.
func (r *InputReport) ReplyData() []byte {
	return r.data[16:]
}

// ID returns the report id.
func (r *InputReport) ID() InputReportID {
	return InputReportID(r.data[1])
}

// Timer returns the timer byte.
func (r *InputReport) Timer() byte {
	return r.data[2]
}

// Encode returns the wire form of the report. The first byte is always
// DirectionInput, so an encoded input report can never pass DecodeOutput's
// direction check.
func (r *InputReport) Encode() []byte {
	frame := make([]byte, InputReportLength)
	copy(frame, r.data[:])
	return frame
}
