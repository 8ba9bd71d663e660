package bluez

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/google/uuid"

	"github.com/zhxie/playwith"
)

const profilePathBase = "/com/github/zhxie/playwith/profile"

// profileIntrospect describes the org.bluez.Profile1 object BlueZ calls
// back into. Without the introspection export some BlueZ versions refuse
// the registration.
const profileIntrospect = `
<!DOCTYPE node PUBLIC "-//freedesktop//DTD D-BUS Object Introspection 1.0//EN"
"http://www.freedesktop.org/standards/dbus/1.0/introspect.dtd">
<node>
	<interface name="org.bluez.Profile1">
		<method name="Release" />
		<method name="NewConnection">
			<arg name="device" type="o" direction="in"/>
			<arg name="fd" type="h" direction="in"/>
			<arg name="fd_properties" type="a{sv}" direction="in"/>
		</method>
		<method name="RequestDisconnection">
			<arg name="device" type="o" direction="in"/>
		</method>
	</interface>
</node>`

// profileObject answers BlueZ's Profile1 callbacks. The HID channels are
// accepted on our own L2CAP listeners rather than handed over by BlueZ, so
// every callback is a no-op acknowledgement.
type profileObject struct{}

func (profileObject) Release() *dbus.Error {
	return nil
}

func (profileObject) NewConnection(device dbus.ObjectPath, fd dbus.UnixFD, properties map[string]dbus.Variant) *dbus.Error {
	return nil
}

func (profileObject) RequestDisconnection(device dbus.ObjectPath) *dbus.Error {
	return nil
}

// ProfileHandle is a registered service record. The advertisement lives
// exactly as long as the handle: Close unregisters the record.
type ProfileHandle struct {
	session *Session
	path    dbus.ObjectPath
	uuid    string
	closed  bool
}

// RegisterProfile registers a service record under the given service UUID
// and returns the handle keeping it advertised. Each registration gets a
// fresh object path so repeated pairing attempts never collide.
func (s *Session) RegisterProfile(serviceUUID, record string) (*ProfileHandle, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "_")
	path := dbus.ObjectPath(fmt.Sprintf("%s/%s", profilePathBase, id))

	if err := s.conn.Export(profileObject{}, path, profileIface); err != nil {
		return nil, playwith.WrapError(playwith.KindBluetooth, fmt.Errorf("export profile object: %w", err))
	}
	if err := s.conn.Export(introspect.Introspectable(profileIntrospect), path,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, playwith.WrapError(playwith.KindBluetooth, fmt.Errorf("export profile introspection: %w", err))
	}

	options := map[string]dbus.Variant{
		"ServiceRecord":         dbus.MakeVariant(record),
		"Role":                  dbus.MakeVariant("server"),
		"RequireAuthentication": dbus.MakeVariant(true),
		"RequireAuthorization":  dbus.MakeVariant(true),
		"AutoConnect":           dbus.MakeVariant(false),
	}
	obj := s.conn.Object(bluezService, "/org/bluez")
	call := obj.Call(profileMgrIface+".RegisterProfile", 0, path, serviceUUID, options)
	if call.Err != nil {
		s.unexportProfile(path)
		return nil, playwith.WrapError(playwith.KindBluetooth, fmt.Errorf("register profile: %w", call.Err))
	}

	return &ProfileHandle{session: s, path: path, uuid: serviceUUID}, nil
}

// UUID returns the advertised service UUID.
func (h *ProfileHandle) UUID() string {
	return h.uuid
}

// Close unregisters the service record. Closing twice is a no-op.
func (h *ProfileHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true

	obj := h.session.conn.Object(bluezService, "/org/bluez")
	call := obj.Call(profileMgrIface+".UnregisterProfile", 0, h.path)
	h.session.unexportProfile(h.path)
	if call.Err != nil {
		return playwith.WrapError(playwith.KindBluetooth, fmt.Errorf("unregister profile: %w", call.Err))
	}
	return nil
}

func (s *Session) unexportProfile(path dbus.ObjectPath) {
	_ = s.conn.Export(nil, path, profileIface)
	_ = s.conn.Export(nil, path, "org.freedesktop.DBus.Introspectable")
}
