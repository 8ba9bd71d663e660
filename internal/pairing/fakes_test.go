package pairing

import (
	"context"
	"errors"
	"net"
	"sync"
)

// fakeAdapter implements Adapter in memory and records every mutation so
// tests can assert the configuration sequence.
type fakeAdapter struct {
	name    string
	address string

	alias        string
	powered      bool
	pairable     bool
	discoverable bool
	class        uint32
	uuids        []string
	devices      []Device

	removed    []string
	classesSet []uint32

	// classStuck keeps Class() at its old value after SetClass, simulating
	// an hciconfig write that never took effect.
	classStuck bool

	devicesErr error
	addressErr error
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{name: "hci0", address: "DC:68:EB:15:9A:62"}
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Address() (string, error) {
	if a.addressErr != nil {
		return "", a.addressErr
	}
	return a.address, nil
}

func (a *fakeAdapter) SetAlias(alias string) error       { a.alias = alias; return nil }
func (a *fakeAdapter) SetPowered(p bool) error           { a.powered = p; return nil }
func (a *fakeAdapter) SetPairable(p bool) error          { a.pairable = p; return nil }
func (a *fakeAdapter) SetDiscoverable(d bool) error      { a.discoverable = d; return nil }
func (a *fakeAdapter) AdvertisedUUIDs() ([]string, error) { return a.uuids, nil }

func (a *fakeAdapter) Class() (uint32, error) { return a.class, nil }

func (a *fakeAdapter) SetClass(class uint32) error {
	a.classesSet = append(a.classesSet, class)
	if !a.classStuck {
		a.class = class
	}
	return nil
}

func (a *fakeAdapter) Devices() ([]Device, error) {
	if a.devicesErr != nil {
		return nil, a.devicesErr
	}
	return a.devices, nil
}

func (a *fakeAdapter) RemoveDevice(id string) error {
	a.removed = append(a.removed, id)
	return nil
}

// fakeProfile implements ProfileHandle.
type fakeProfile struct {
	uuid   string
	record string
	closes int
}

func (p *fakeProfile) UUID() string { return p.uuid }
func (p *fakeProfile) Close() error { p.closes++; return nil }

// fakeConn implements Conn with a scripted frame queue. Reads block until a
// frame arrives, the script channel is closed (end of input), or the
// connection is closed.
type fakeConn struct {
	remote string
	frames chan []byte

	mu     sync.Mutex
	writes [][]byte
	closes int
	closed chan struct{}
}

func newFakeConn(remote string) *fakeConn {
	return &fakeConn{
		remote: remote,
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) RemoteAddr() string { return c.remote }

func (c *fakeConn) Read(p []byte) (int, error) {
	select {
	case frame, ok := <-c.frames:
		if !ok {
			return 0, errors.New("connection reset by peer")
		}
		return copy(p, frame), nil
	case <-c.closed:
		return 0, net.ErrClosed
	}
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closes == 0 {
		close(c.closed)
	}
	c.closes++
	return nil
}

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

// fakeListener hands out one preset connection.
type fakeListener struct {
	psm       uint16
	conn      *fakeConn
	acceptErr error
	closes    int
}

func (l *fakeListener) Accept(ctx context.Context) (Conn, error) {
	if l.acceptErr != nil {
		return nil, l.acceptErr
	}
	if l.conn == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return l.conn, nil
}

func (l *fakeListener) Close() error {
	l.closes++
	return nil
}

// fakeStack bundles the fakes behind a Capabilities value.
type fakeStack struct {
	adapter   *fakeAdapter
	listeners map[uint16]*fakeListener
	profile   *fakeProfile

	listenErr map[uint16]error
	regErr    error
}

func newFakeStack(remote string) *fakeStack {
	return &fakeStack{
		adapter: newFakeAdapter(),
		listeners: map[uint16]*fakeListener{
			17: {psm: 17, conn: newFakeConn(remote)},
			19: {psm: 19, conn: newFakeConn(remote)},
		},
	}
}

func (s *fakeStack) capabilities() Capabilities {
	return Capabilities{
		Adapter: s.adapter,
		RegisterProfile: func(serviceUUID, record string) (ProfileHandle, error) {
			if s.regErr != nil {
				return nil, s.regErr
			}
			s.profile = &fakeProfile{uuid: serviceUUID, record: record}
			return s.profile, nil
		},
		Listen: func(addr string, psm uint16) (Listener, error) {
			if err := s.listenErr[psm]; err != nil {
				return nil, err
			}
			ln, ok := s.listeners[psm]
			if !ok {
				return nil, errors.New("unexpected psm")
			}
			return ln, nil
		},
	}
}

func (s *fakeStack) controlConn() *fakeConn   { return s.listeners[17].conn }
func (s *fakeStack) interruptConn() *fakeConn { return s.listeners[19].conn }
