package controller

import (
	"strings"
	"testing"
)

func TestParseType(t *testing.T) {
	cases := []struct {
		in   string
		want Type
	}{
		{"JOY_CON_L", JoyConL},
		{"JOY_CON_R", JoyConR},
		{"PRO_CONTROLLER", ProController},
	}
	for _, c := range cases {
		got, err := ParseType(c.in)
		if err != nil {
			t.Errorf("%s: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("%s: got %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := ParseType("GAMECUBE"); err == nil {
		t.Error("unknown type should fail to parse")
	}
}

func TestDisplayNames(t *testing.T) {
	cases := map[Type]string{
		JoyConL:       "Joy-Con (L)",
		JoyConR:       "Joy-Con (R)",
		ProController: "Pro Controller",
	}
	for typ, want := range cases {
		if typ.String() != want {
			t.Errorf("got %q, want %q", typ.String(), want)
		}
	}
}

func TestDeviceIDs(t *testing.T) {
	if JoyConL.DeviceID() != 0x01 || JoyConR.DeviceID() != 0x02 || ProController.DeviceID() != 0x03 {
		t.Errorf("device ids: got 0x%02X 0x%02X 0x%02X",
			JoyConL.DeviceID(), JoyConR.DeviceID(), ProController.DeviceID())
	}
}

func TestServiceRecord(t *testing.T) {
	record := ProController.ServiceRecord()

	// The console matches on the record shape; spot-check the attributes
	// it cares about.
	for _, fragment := range []string{
		`<uuid value="0x1124" />`,       // HID service class
		`<uint16 value="0x0011" />`,     // control PSM 17
		`<uint16 value="0x0013" />`,     // interrupt PSM 19
		`"Wireless Gamepad"`,            // service name
		`"Nintendo"`,                    // provider
		`<uint8 value="0x08" />`,        // subclass: gamepad
		`encoding="hex"`,                // HID descriptor
		`<uint16 value="0x0c80" />`,     // supervision timeout
	} {
		if !strings.Contains(record, fragment) {
			t.Errorf("record is missing %s", fragment)
		}
	}

	// The record is fixed across models; only the alias differs.
	if JoyConL.ServiceRecord() != record || JoyConR.ServiceRecord() != record {
		t.Error("service record should be identical across controller models")
	}
}

func TestHIDServiceUUID(t *testing.T) {
	if HIDServiceUUID != "00001124-0000-1000-8000-00805f9b34fb" {
		t.Errorf("unexpected service uuid %s", HIDServiceUUID)
	}
}
