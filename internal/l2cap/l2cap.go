// Package l2cap provides sequential-packet L2CAP sockets for the HID
// control and interrupt channels.
//
// HID over Bluetooth uses two parallel connections, both SOCK_SEQPACKET
// over BTPROTO_L2CAP: the control channel on PSM 17 and the interrupt
// channel on PSM 19. A peripheral binds listeners for both at its adapter
// address and waits for the host to connect, control first.
package l2cap

import (
	"context"
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/zhxie/playwith"
)

// Fixed PSMs of the HID transport.
const (
	// PSMControl is the HID control channel (configuration, subcommands).
	PSMControl uint16 = 17
	// PSMInterrupt is the HID interrupt channel (steady-state reports).
	PSMInterrupt uint16 = 19
)

// Listener is a sequential-packet listener bound to a local address + PSM.
type Listener struct {
	fd   int
	psm  uint16
	addr string

	mu     sync.Mutex
	closed bool
}

// Listen binds a SEQPACKET listener at the adapter address addr (display
// order, "XX:XX:XX:XX:XX:XX") on the given PSM.
func Listen(addr string, psm uint16) (*Listener, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_SEQPACKET, unix.BTPROTO_L2CAP)
	if err != nil {
		return nil, playwith.WrapError(playwith.KindBluetooth, fmt.Errorf("l2cap socket: %w", err))
	}

	bdaddr, err := parseBDAddr(addr)
	if err != nil {
		_ = unix.Close(fd)
		return nil, playwith.WrapError(playwith.KindBluetooth, err)
	}

	sa := &unix.SockaddrL2{
		PSM:      psm,
		Addr:     bdaddr,
		AddrType: unix.BDADDR_BREDR,
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, playwith.WrapError(playwith.KindBluetooth, fmt.Errorf("bind psm %d: %w", psm, err))
	}
	if err := unix.Listen(fd, 1); err != nil {
		_ = unix.Close(fd)
		return nil, playwith.WrapError(playwith.KindBluetooth, fmt.Errorf("listen psm %d: %w", psm, err))
	}

	return &Listener{fd: fd, psm: psm, addr: addr}, nil
}

// PSM returns the PSM the listener is bound on.
func (l *Listener) PSM() uint16 {
	return l.psm
}

// Accept waits for one connection and returns it together with the remote
// address. The wait has no deadline; cancelling ctx closes the listener,
// which is what unblocks the pending accept.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	type accepted struct {
		fd  int
		sa  unix.Sockaddr
		err error
	}
	ch := make(chan accepted, 1)
	go func() {
		nfd, sa, err := unix.Accept(l.fd)
		ch <- accepted{fd: nfd, sa: sa, err: err}
	}()

	select {
	case <-ctx.Done():
		_ = l.Close()
		// The accept goroutine returns once the fd is closed; reap any
		// connection that raced in.
		go func() {
			if a := <-ch; a.err == nil {
				_ = unix.Close(a.fd)
			}
		}()
		return nil, ctx.Err()
	case a := <-ch:
		if a.err != nil {
			return nil, playwith.WrapError(playwith.KindBluetooth, fmt.Errorf("accept psm %d: %w", l.psm, a.err))
		}
		sa, ok := a.sa.(*unix.SockaddrL2)
		if !ok {
			_ = unix.Close(a.fd)
			return nil, playwith.NewError(playwith.KindBluetooth, "accept returned a non-L2CAP peer")
		}
		return &Conn{fd: a.fd, remote: formatBDAddr(sa.Addr), psm: l.psm}, nil
	}
}

// Close releases the listener. Closing twice is a no-op.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := unix.Close(l.fd); err != nil {
		return playwith.WrapError(playwith.KindBluetooth, fmt.Errorf("close listener psm %d: %w", l.psm, err))
	}
	return nil
}

// Conn is an accepted sequential-packet connection. Reads and writes move
// whole frames; a short read is a short frame, not a partial one.
type Conn struct {
	fd     int
	remote string
	psm    uint16

	mu     sync.Mutex
	closed bool
}

// RemoteAddr returns the peer's Bluetooth address in display order.
func (c *Conn) RemoteAddr() string {
	return c.remote
}

// Read reads one frame into p.
func (c *Conn) Read(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err != nil {
		return 0, playwith.WrapError(playwith.KindIO, fmt.Errorf("read psm %d: %w", c.psm, err))
	}
	return n, nil
}

// Write writes p as one frame.
func (c *Conn) Write(p []byte) (int, error) {
	n, err := unix.Write(c.fd, p)
	if err != nil {
		return n, playwith.WrapError(playwith.KindIO, fmt.Errorf("write psm %d: %w", c.psm, err))
	}
	if n != len(p) {
		return n, playwith.WrapError(playwith.KindIO, fmt.Errorf("short write psm %d: %d/%d bytes", c.psm, n, len(p)))
	}
	return n, nil
}

// Close shuts the socket down in both directions and releases it. Closing
// twice is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	// Shutdown can fail when the peer already dropped the link; the close
	// still has to happen, so the shutdown error is secondary.
	errShutdown := unix.Shutdown(c.fd, unix.SHUT_RDWR)
	if err := unix.Close(c.fd); err != nil {
		return playwith.WrapError(playwith.KindIO, fmt.Errorf("close psm %d: %w", c.psm, err))
	}
	if errShutdown != nil {
		return playwith.WrapError(playwith.KindIO, fmt.Errorf("shutdown psm %d: %w", c.psm, errShutdown))
	}
	return nil
}

// parseBDAddr converts a display-order address string to the byte order the
// kernel expects. Bluetooth socket addresses are little-endian, so the
// bytes come out reversed.
func parseBDAddr(addr string) ([6]byte, error) {
	var bdaddr [6]byte
	hw, err := net.ParseMAC(addr)
	if err != nil || len(hw) != 6 {
		return bdaddr, fmt.Errorf("bad bluetooth address %q", addr)
	}
	for i := 0; i < 6; i++ {
		bdaddr[i] = hw[5-i]
	}
	return bdaddr, nil
}

// formatBDAddr is the inverse of parseBDAddr.
func formatBDAddr(bdaddr [6]byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		bdaddr[5], bdaddr[4], bdaddr[3], bdaddr[2], bdaddr[1], bdaddr[0])
}
