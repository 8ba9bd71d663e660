package pairing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/zhxie/playwith"
	"github.com/zhxie/playwith/internal/controller"
	"github.com/zhxie/playwith/internal/l2cap"
)

const (
	// targetDeviceName is what a previously paired console shows up as;
	// stale bonds under this name are removed before each attempt.
	targetDeviceName = "Nintendo Switch"

	// classGamepad is the gamepad/joystick class-of-device.
	classGamepad uint32 = 0x002508

	// uuidClutterThreshold is how many advertised service UUIDs an
	// adapter carries before it looks cluttered from prior runs.
	uuidClutterThreshold = 3
)

// ErrRemoteMismatch reports that the control and interrupt channels were
// connected by two different remotes, which means two devices raced for the
// pairing window. Not a retryable condition.
var ErrRemoteMismatch = playwith.NewError(playwith.KindProtocol,
	"control and interrupt channels connected from different remotes")

// State is the orchestrator's position in the pairing lifecycle.
type State int

const (
	StateIdle State = iota
	StateConfiguring
	StateAdvertising
	StateAwaitingConnections
	StatePaired
	StateClosed
	// StateFailed is absorbing: a failed orchestrator is torn down and
	// the caller decides whether to build a new one and retry.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConfiguring:
		return "Configuring"
	case StateAdvertising:
		return "Advertising"
	case StateAwaitingConnections:
		return "AwaitingConnections"
	case StatePaired:
		return "Paired"
	case StateClosed:
		return "Closed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Orchestrator owns the adapter for one pairing attempt and, once paired,
// the two live channels. All methods are meant for a single goroutine; the
// session serializes access.
type Orchestrator struct {
	caps  Capabilities
	ctype controller.Type
	log   zerolog.Logger

	state   State
	profile ProfileHandle

	controlListener   Listener
	interruptListener Listener
	control           Conn
	interrupt         Conn
	remote            string
}

// NewOrchestrator creates an orchestrator in StateIdle.
func NewOrchestrator(caps Capabilities, ctype controller.Type, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		caps:  caps,
		ctype: ctype,
		log:   log,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return o.state
}

// Remote returns the paired console's address, empty before StatePaired.
func (o *Orchestrator) Remote() string {
	return o.remote
}

// Channels returns the control and interrupt connections, nil before
// StatePaired.
func (o *Orchestrator) Channels() (control, interrupt Conn) {
	return o.control, o.interrupt
}

// Pair runs the pairing handshake to completion: stale-bond cleanup,
// listener binding, adapter configuration, service advertisement, and the
// dual accept. It blocks until the console connects or ctx is cancelled.
// Any failure tears down partial state and leaves the orchestrator in
// StateFailed; there is no automatic retry.
func (o *Orchestrator) Pair(ctx context.Context) (string, error) {
	if o.state != StateIdle {
		return "", playwith.NewError(playwith.KindBluetooth,
			fmt.Sprintf("pair called in state %s", o.state))
	}

	o.state = StateConfiguring
	adapter := o.caps.Adapter

	if err := o.removeStaleBonds(adapter); err != nil {
		return "", o.fail(err)
	}

	uuids, err := adapter.AdvertisedUUIDs()
	if err != nil {
		return "", o.fail(err)
	}
	if len(uuids) > uuidClutterThreshold {
		o.log.Warn().
			Int("count", len(uuids)).
			Msg("Adapter advertises many service UUIDs, may be cluttered from prior runs")
	}

	addr, err := adapter.Address()
	if err != nil {
		return "", o.fail(err)
	}

	// Both listeners go up before the adapter turns discoverable, so the
	// console can never race a connection against an unbound PSM.
	if o.controlListener, err = o.caps.Listen(addr, l2cap.PSMControl); err != nil {
		return "", o.fail(err)
	}
	if o.interruptListener, err = o.caps.Listen(addr, l2cap.PSMInterrupt); err != nil {
		return "", o.fail(err)
	}

	if err := adapter.SetPowered(true); err != nil {
		return "", o.fail(err)
	}
	if err := adapter.SetPairable(true); err != nil {
		return "", o.fail(err)
	}
	if err := adapter.SetAlias(o.ctype.String()); err != nil {
		return "", o.fail(err)
	}
	if o.profile, err = o.caps.RegisterProfile(controller.HIDServiceUUID, o.ctype.ServiceRecord()); err != nil {
		return "", o.fail(err)
	}

	o.state = StateAdvertising
	if err := adapter.SetDiscoverable(true); err != nil {
		return "", o.fail(err)
	}
	if err := o.setDeviceClass(adapter); err != nil {
		return "", o.fail(err)
	}

	o.state = StateAwaitingConnections
	o.log.Info().
		Str("adapter", adapter.Name()).
		Str("alias", o.ctype.String()).
		Msg("Advertising, waiting for the console to connect")

	// Console convention: the control channel connects first.
	if o.control, err = o.controlListener.Accept(ctx); err != nil {
		return "", o.fail(err)
	}
	o.log.Debug().Str("remote", o.control.RemoteAddr()).Msg("Control channel connected")
	if o.interrupt, err = o.interruptListener.Accept(ctx); err != nil {
		return "", o.fail(err)
	}
	o.log.Debug().Str("remote", o.interrupt.RemoteAddr()).Msg("Interrupt channel connected")

	if o.control.RemoteAddr() != o.interrupt.RemoteAddr() {
		return "", o.fail(fmt.Errorf("%w: %s vs %s",
			ErrRemoteMismatch, o.control.RemoteAddr(), o.interrupt.RemoteAddr()))
	}
	o.remote = o.control.RemoteAddr()

	// Narrow the pairing window right away so a second device cannot
	// slip in behind the console.
	if err := adapter.SetDiscoverable(false); err != nil {
		return "", o.fail(err)
	}
	if err := adapter.SetPairable(false); err != nil {
		return "", o.fail(err)
	}

	o.closeListeners()
	o.state = StatePaired
	return o.remote, nil
}

// removeStaleBonds forcibly unpairs any known device named like the target
// console. A console that remembers a previous emulation session would
// otherwise reconnect instead of pairing fresh.
func (o *Orchestrator) removeStaleBonds(adapter Adapter) error {
	devices, err := adapter.Devices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		if d.Name != targetDeviceName {
			continue
		}
		if err := adapter.RemoveDevice(d.ID); err != nil {
			return err
		}
		o.log.Info().Str("device", d.ID).Msg("Removed stale console pairing")
	}
	return nil
}

// setDeviceClass writes the gamepad class and re-reads it to confirm. The
// underlying configuration command has no verified synchronous completion,
// so the re-read is the only way to know it took effect.
func (o *Orchestrator) setDeviceClass(adapter Adapter) error {
	if err := adapter.SetClass(classGamepad); err != nil {
		return err
	}
	class, err := adapter.Class()
	if err != nil {
		return err
	}
	if class != classGamepad {
		return playwith.NewError(playwith.KindBluetooth,
			fmt.Sprintf("device class is 0x%06X after setting 0x%06X", class, classGamepad))
	}
	return nil
}

func (o *Orchestrator) fail(err error) error {
	o.teardown()
	o.state = StateFailed
	return fmt.Errorf("pairing failed: %w", err)
}

// Close releases everything the orchestrator holds: both channels, both
// listeners, and the profile handle. Teardown errors are logged, never
// propagated; teardown must always complete. Closing twice is a no-op.
func (o *Orchestrator) Close() {
	if o.state == StateClosed {
		return
	}
	o.teardown()
	o.state = StateClosed
}

func (o *Orchestrator) teardown() {
	if o.control != nil {
		if err := o.control.Close(); err != nil {
			o.log.Warn().Err(err).Msg("Control channel shutdown failed")
		}
		o.control = nil
	}
	if o.interrupt != nil {
		if err := o.interrupt.Close(); err != nil {
			o.log.Warn().Err(err).Msg("Interrupt channel shutdown failed")
		}
		o.interrupt = nil
	}
	o.closeListeners()
	if o.profile != nil {
		if err := o.profile.Close(); err != nil {
			o.log.Warn().Err(err).Msg("Profile release failed")
		}
		o.profile = nil
	}
}

func (o *Orchestrator) closeListeners() {
	if o.controlListener != nil {
		if err := o.controlListener.Close(); err != nil {
			o.log.Warn().Err(err).Msg("Control listener close failed")
		}
		o.controlListener = nil
	}
	if o.interruptListener != nil {
		if err := o.interruptListener.Close(); err != nil {
			o.log.Warn().Err(err).Msg("Interrupt listener close failed")
		}
		o.interruptListener = nil
	}
}
