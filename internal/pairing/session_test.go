package pairing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/zhxie/playwith"
	"github.com/zhxie/playwith/internal/controller"
	"github.com/zhxie/playwith/internal/protocol"
)

// subcommandFrame authors a minimal console frame requesting a subcommand.
func subcommandFrame(timer byte, id protocol.SubcommandID, payload ...byte) []byte {
	frame := []byte{0xA1, 0x01, timer,
		0x00, 0x01, 0x40, 0x40,
		0x00, 0x01, 0x40, 0x40,
		byte(id)}
	return append(frame, payload...)
}

func pairedSession(t *testing.T, stack *fakeStack) *Session {
	t.Helper()
	s, err := NewSession(stack.capabilities(), controller.ProController, testLogger())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := s.Pair(context.Background()); err != nil {
		t.Fatalf("pair failed: %v", err)
	}
	return s
}

func TestRunAnswersDeviceInfo(t *testing.T) {
	stack := newFakeStack(testRemote)
	s := pairedSession(t, stack)
	defer s.Close()

	in := stack.interruptConn()
	in.frames <- subcommandFrame(0x1C, protocol.SubcommandRequestDeviceInfo)
	close(in.frames)

	err := s.Run(context.Background())
	if err == nil || errors.Is(err, context.Canceled) {
		t.Fatalf("run should end with the peer reset, got %v", err)
	}

	writes := in.written()
	if len(writes) != 1 {
		t.Fatalf("written frames: got %d, want 1", len(writes))
	}
	reply := writes[0]
	if len(reply) != protocol.InputReportLength {
		t.Fatalf("reply length: got %d", len(reply))
	}
	if reply[0] != protocol.DirectionInput {
		t.Errorf("direction: got 0x%02X", reply[0])
	}
	if reply[1] != byte(protocol.InputSubcommandReply) {
		t.Errorf("report id: got 0x%02X", reply[1])
	}
	if reply[2] != 0x1C {
		t.Errorf("timer echo: got 0x%02X", reply[2])
	}
	if reply[14] != 0x82 {
		t.Errorf("ack: got 0x%02X", reply[14])
	}
	if reply[15] != byte(protocol.SubcommandRequestDeviceInfo) {
		t.Errorf("replied subcommand: got 0x%02X", reply[15])
	}
	// Identity block: firmware, model id, and the adapter's address.
	want := []byte{0x03, 0x8B, 0x03, 0x02, 0xDC, 0x68, 0xEB, 0x15, 0x9A, 0x62, 0x01, 0x01}
	if !bytes.Equal(reply[16:16+len(want)], want) {
		t.Errorf("device info: got % X, want % X", reply[16:16+len(want)], want)
	}
}

func TestRunIgnoresRumbleOnlyFrames(t *testing.T) {
	stack := newFakeStack(testRemote)
	s := pairedSession(t, stack)
	defer s.Close()

	in := stack.interruptConn()
	in.frames <- []byte{0xA1, 0x10, 0x05,
		0x00, 0x01, 0x40, 0x40,
		0x00, 0x01, 0x40, 0x40,
		0x00}
	close(in.frames)

	if err := s.Run(context.Background()); err == nil {
		t.Fatal("run should end with the peer reset")
	}
	if got := len(stack.interruptConn().written()); got != 0 {
		t.Errorf("rumble-only frames must not be answered, wrote %d", got)
	}
}

func TestRunAbortsOnMalformedFrame(t *testing.T) {
	stack := newFakeStack(testRemote)
	s := pairedSession(t, stack)
	defer s.Close()

	in := stack.interruptConn()
	in.frames <- []byte{0xFF, 0x01, 0x00,
		0x00, 0x01, 0x40, 0x40,
		0x00, 0x01, 0x40, 0x40,
		0x02}

	err := s.Run(context.Background())
	if !playwith.IsKind(err, playwith.KindProtocol) {
		t.Fatalf("expected a protocol error, got %v", err)
	}
}

func TestRunAbortsOnUnknownSubcommand(t *testing.T) {
	stack := newFakeStack(testRemote)
	s := pairedSession(t, stack)
	defer s.Close()

	in := stack.interruptConn()
	in.frames <- subcommandFrame(0x00, protocol.SubcommandID(0x77))

	err := s.Run(context.Background())
	if !errors.Is(err, protocol.ErrUnknownSubcommand) {
		t.Fatalf("expected ErrUnknownSubcommand, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	stack := newFakeStack(testRemote)
	s := pairedSession(t, stack)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if stack.interruptConn().closes == 0 {
		t.Error("interrupt channel left open after cancellation")
	}
	if stack.controlConn().closes == 0 {
		t.Error("control channel left open after cancellation")
	}
}

func TestRunRequiresPairedSession(t *testing.T) {
	stack := newFakeStack(testRemote)
	s, err := NewSession(stack.capabilities(), controller.ProController, testLogger())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.Run(context.Background()); !playwith.IsKind(err, playwith.KindBluetooth) {
		t.Fatalf("expected a bluetooth error, got %v", err)
	}
}

func TestRunTracksEngineState(t *testing.T) {
	stack := newFakeStack(testRemote)
	s := pairedSession(t, stack)
	defer s.Close()

	in := stack.interruptConn()
	in.frames <- subcommandFrame(0x01, protocol.SubcommandSetPlayerLights, 0x01)
	in.frames <- subcommandFrame(0x02, protocol.SubcommandEnableVibration, 0x01)
	close(in.frames)

	if err := s.Run(context.Background()); err == nil {
		t.Fatal("run should end with the peer reset")
	}

	state := s.Engine().State()
	if state.PlayerLights != 0x01 {
		t.Errorf("player lights: got 0x%02X", state.PlayerLights)
	}
	if !state.VibrationEnabled {
		t.Error("vibration should be enabled")
	}
}
