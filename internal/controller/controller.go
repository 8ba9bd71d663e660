// Package controller defines the emulated controller models and the static
// SDP service record advertised while pairing.
package controller

import (
	"fmt"
)

// HIDServiceUUID is the Bluetooth HID service class the record advertises.
// The console's driver matches on this UUID to recognize a gamepad.
const HIDServiceUUID = "00001124-0000-1000-8000-00805f9b34fb"

// Type selects which controller model a session emulates. It is chosen at
// session creation and immutable afterwards.
type Type int

const (
	JoyConL Type = iota
	JoyConR
	ProController
)

// ParseType maps the CLI spelling of a controller model to its Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "JOY_CON_L":
		return JoyConL, nil
	case "JOY_CON_R":
		return JoyConR, nil
	case "PRO_CONTROLLER":
		return ProController, nil
	default:
		return 0, fmt.Errorf("unknown controller type %q", s)
	}
}

// String returns the display name advertised as the adapter alias. The
// console shows this name on the pairing screen.
func (t Type) String() string {
	switch t {
	case JoyConL:
		return "Joy-Con (L)"
	case JoyConR:
		return "Joy-Con (R)"
	case ProController:
		return "Pro Controller"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// DeviceID returns the controller kind byte reported by the device-info
// subcommand.
func (t Type) DeviceID() byte {
	switch t {
	case JoyConL:
		return 0x01
	case JoyConR:
		return 0x02
	default:
		return 0x03
	}
}

// Firmware returns the firmware version reported by the device-info
// subcommand, major then minor.
func (t Type) Firmware() [2]byte {
	return [2]byte{0x03, 0x8B}
}

// ServiceRecord returns the SDP record registered for the pairing attempt.
// The record shape is fixed: the console matches on it byte for byte, so it
// is identical across controller models; only the adapter alias differs.
func (t Type) ServiceRecord() string {
	return serviceRecord
}
