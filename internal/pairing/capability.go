// Package pairing drives the handshake that turns a configured adapter into
// a paired controller: adapter configuration, service advertisement,
// dual-channel accept, and the steady-state report loop.
//
// The Bluetooth stack is consumed through the narrow capability interfaces
// below so the state machine can be exercised against fakes; the System*
// constructors wire the real BlueZ and L2CAP implementations in.
package pairing

import (
	"context"
	"io"

	"github.com/zhxie/playwith/internal/bluez"
	"github.com/zhxie/playwith/internal/l2cap"
)

// Device is one remote device known to the adapter.
type Device struct {
	// ID is the opaque handle RemoveDevice expects.
	ID string
	// Name is the remote's display name.
	Name string
	// Paired reports whether a bond exists.
	Paired bool
}

// Adapter is the radio-configuration surface the orchestrator consumes.
type Adapter interface {
	Name() string
	Address() (string, error)
	SetAlias(alias string) error
	SetPowered(powered bool) error
	SetPairable(pairable bool) error
	SetDiscoverable(discoverable bool) error
	Class() (uint32, error)
	SetClass(class uint32) error
	AdvertisedUUIDs() ([]string, error)
	Devices() ([]Device, error)
	RemoveDevice(id string) error
}

// ProfileHandle keeps a registered service record advertised. Close
// unregisters it and must be idempotent.
type ProfileHandle interface {
	UUID() string
	Close() error
}

// Conn is one accepted sequential-packet channel.
type Conn interface {
	io.ReadWriteCloser
	RemoteAddr() string
}

// Listener is a bound sequential-packet listener.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Close() error
}

// Capabilities bundles the operations the orchestrator needs from the
// Bluetooth stack.
type Capabilities struct {
	Adapter         Adapter
	RegisterProfile func(serviceUUID, record string) (ProfileHandle, error)
	Listen          func(addr string, psm uint16) (Listener, error)
}

// SystemCapabilities wires the BlueZ session and adapter plus kernel L2CAP
// sockets into a capability set.
func SystemCapabilities(session *bluez.Session, adapter *bluez.Adapter) Capabilities {
	return Capabilities{
		Adapter: systemAdapter{adapter},
		RegisterProfile: func(serviceUUID, record string) (ProfileHandle, error) {
			handle, err := session.RegisterProfile(serviceUUID, record)
			if err != nil {
				return nil, err
			}
			return handle, nil
		},
		Listen: func(addr string, psm uint16) (Listener, error) {
			ln, err := l2cap.Listen(addr, psm)
			if err != nil {
				return nil, err
			}
			return systemListener{ln}, nil
		},
	}
}

type systemAdapter struct {
	*bluez.Adapter
}

func (a systemAdapter) Devices() ([]Device, error) {
	known, err := a.Adapter.Devices()
	if err != nil {
		return nil, err
	}
	devices := make([]Device, 0, len(known))
	for _, d := range known {
		devices = append(devices, Device{ID: d.Path, Name: d.Name, Paired: d.Paired})
	}
	return devices, nil
}

type systemListener struct {
	*l2cap.Listener
}

func (l systemListener) Accept(ctx context.Context) (Conn, error) {
	conn, err := l.Listener.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
