package pairing

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/zhxie/playwith"
	"github.com/zhxie/playwith/internal/controller"
	"github.com/zhxie/playwith/internal/protocol"
)

// Session composes the pairing orchestrator with the subcommand engine for
// one emulated controller. One session, one adapter, one console.
type Session struct {
	orch   *Orchestrator
	engine *protocol.Engine
	log    zerolog.Logger
}

// NewSession builds a session for the given controller model. The adapter
// address seeds the device-info identity the engine reports.
func NewSession(caps Capabilities, ctype controller.Type, log zerolog.Logger) (*Session, error) {
	addr, err := caps.Adapter.Address()
	if err != nil {
		return nil, err
	}
	mac, err := parseAddress(addr)
	if err != nil {
		return nil, err
	}

	return &Session{
		orch: NewOrchestrator(caps, ctype, log),
		engine: protocol.NewEngine(protocol.DeviceInfo{
			Firmware: ctype.Firmware(),
			DeviceID: ctype.DeviceID(),
			MAC:      mac,
		}),
		log: log,
	}, nil
}

// Pair runs the pairing handshake and returns the console's address.
func (s *Session) Pair(ctx context.Context) (string, error) {
	return s.orch.Pair(ctx)
}

// State returns the orchestrator's lifecycle state.
func (s *Session) State() State {
	return s.orch.State()
}

// Engine exposes the subcommand engine, mainly for inspection.
func (s *Session) Engine() *protocol.Engine {
	return s.engine
}

// Run serves the paired console until the link drops, a frame fails to
// decode, or ctx is cancelled. Frames are processed strictly in arrival
// order on a single goroutine, which is what preserves the timer-byte echo
// the console depends on; the second goroutine only exists to unblock the
// read when ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	control, interrupt := s.orch.Channels()
	if interrupt == nil {
		return playwith.NewError(playwith.KindBluetooth, "session is not paired")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		if control != nil {
			_ = control.Close()
		}
		_ = interrupt.Close()
		return nil
	})
	g.Go(func() error {
		return s.serve(gctx, interrupt)
	})
	return g.Wait()
}

func (s *Session) serve(ctx context.Context, interrupt Conn) error {
	buf := make([]byte, 512)
	for {
		n, err := interrupt.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		out, err := protocol.DecodeOutput(buf[:n])
		if err != nil {
			// No resynchronization primitive exists; a malformed
			// frame ends the session.
			s.log.Error().Err(err).Msg("Malformed output report")
			return err
		}
		s.log.Trace().
			Stringer("type", out.Type).
			Uint8("timer", out.Timer).
			Msg("Output report")

		reply, err := s.engine.HandleOutput(out)
		if err != nil {
			s.log.Error().Err(err).Stringer("subcommand", out.Subcommand).
				Msg("Subcommand dispatch failed")
			return err
		}
		if reply == nil {
			continue
		}

		if _, err := interrupt.Write(reply.Encode()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.log.Trace().
			Stringer("reply", reply.ReplyTo()).
			Uint8("timer", reply.Timer()).
			Msg("Input report sent")
	}
}

// Close tears the session down. Idempotent; safe on every exit path,
// including cancellation mid-accept.
func (s *Session) Close() {
	s.orch.Close()
}

// parseAddress converts a display-order Bluetooth address into the 6-byte
// form the device-info reply carries.
func parseAddress(addr string) ([6]byte, error) {
	var mac [6]byte
	hw, err := net.ParseMAC(addr)
	if err != nil || len(hw) != 6 {
		return mac, playwith.NewError(playwith.KindBluetooth, fmt.Sprintf("bad adapter address %q", addr))
	}
	copy(mac[:], hw)
	return mac, nil
}
