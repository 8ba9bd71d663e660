// Package bluez implements the Bluetooth capability layer over the BlueZ
// D-Bus API.
//
// # D-Bus Connection Architecture
//
// A Session holds one persistent system-bus connection for its whole
// lifetime. Every operation derived from the session (adapter property
// access, known-device enumeration, profile registration) MUST go through
// this same connection: BlueZ associates registered profile objects with
// the connection that exported them, and dropping the connection
// unregisters them.
//
// The package exposes exactly what the pairing orchestrator consumes:
// adapter discovery and configuration, service-record registration, and
// stale-device removal. Everything else BlueZ offers is out of scope.
package bluez

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/zhxie/playwith"
)

const (
	bluezService     = "org.bluez"
	adapterIface     = "org.bluez.Adapter1"
	deviceIface      = "org.bluez.Device1"
	profileMgrIface  = "org.bluez.ProfileManager1"
	profileIface     = "org.bluez.Profile1"
	objectManagerIfc = "org.freedesktop.DBus.ObjectManager"
)

// Session is one connection to the BlueZ daemon.
type Session struct {
	conn *dbus.Conn
}

// NewSession connects to the system bus.
func NewSession() (*Session, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, playwith.WrapError(playwith.KindBluetooth, fmt.Errorf("connect system bus: %w", err))
	}
	return &Session{conn: conn}, nil
}

// Close drops the bus connection, which also unregisters any profile still
// exported on it.
func (s *Session) Close() error {
	return s.conn.Close()
}

// managedObjects calls org.freedesktop.DBus.ObjectManager.GetManagedObjects
// on the BlueZ root.
func (s *Session) managedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	obj := s.conn.Object(bluezService, "/")
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := obj.Call(objectManagerIfc+".GetManagedObjects", 0).Store(&objects)
	if err != nil {
		return nil, playwith.WrapError(playwith.KindBluetooth, fmt.Errorf("get managed objects: %w", err))
	}
	return objects, nil
}

// AdapterNames enumerates the local radios, returned as their BlueZ names
// (hci0, hci1, ...).
func (s *Session) AdapterNames() ([]string, error) {
	objects, err := s.managedObjects()
	if err != nil {
		return nil, err
	}
	var names []string
	for path, ifaces := range objects {
		if _, ok := ifaces[adapterIface]; !ok {
			continue
		}
		idx := strings.LastIndex(string(path), "/")
		if idx >= 0 {
			names = append(names, string(path)[idx+1:])
		}
	}
	return names, nil
}

// Adapter obtains a handle to the named radio. The handle is only valid
// while the session is open.
func (s *Session) Adapter(name string) (*Adapter, error) {
	path := dbus.ObjectPath("/org/bluez/" + name)
	objects, err := s.managedObjects()
	if err != nil {
		return nil, err
	}
	if _, ok := objects[path][adapterIface]; !ok {
		return nil, playwith.NewError(playwith.KindBluetooth, fmt.Sprintf("adapter %s not found", name))
	}
	return &Adapter{
		session: s,
		name:    name,
		path:    path,
		obj:     s.conn.Object(bluezService, path),
	}, nil
}
