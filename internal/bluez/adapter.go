package bluez

import (
	"fmt"
	"os/exec"

	"github.com/godbus/dbus/v5"

	"github.com/zhxie/playwith"
)

// Adapter is a handle to one local radio. It is exclusively owned by one
// pairing orchestrator for the session's lifetime; adapter configuration
// (alias, class, discoverable) is a global property of the radio, so two
// sessions must never share a handle.
type Adapter struct {
	session *Session
	name    string
	path    dbus.ObjectPath
	obj     dbus.BusObject
}

// Name returns the BlueZ adapter name (hci0, ...).
func (a *Adapter) Name() string {
	return a.name
}

func (a *Adapter) getProperty(name string, out interface{}) error {
	v, err := a.obj.GetProperty(adapterIface + "." + name)
	if err != nil {
		return playwith.WrapError(playwith.KindBluetooth, fmt.Errorf("get %s.%s: %w", a.name, name, err))
	}
	if err := v.Store(out); err != nil {
		return playwith.WrapError(playwith.KindBluetooth, fmt.Errorf("read %s.%s: %w", a.name, name, err))
	}
	return nil
}

func (a *Adapter) setProperty(name string, value interface{}) error {
	err := a.obj.SetProperty(adapterIface+"."+name, dbus.MakeVariant(value))
	if err != nil {
		return playwith.WrapError(playwith.KindBluetooth, fmt.Errorf("set %s.%s: %w", a.name, name, err))
	}
	return nil
}

// Address returns the adapter's Bluetooth address in display order.
func (a *Adapter) Address() (string, error) {
	var addr string
	err := a.getProperty("Address", &addr)
	return addr, err
}

// Alias returns the adapter's alias.
func (a *Adapter) Alias() (string, error) {
	var alias string
	err := a.getProperty("Alias", &alias)
	return alias, err
}

// SetAlias sets the name the adapter advertises while discoverable.
func (a *Adapter) SetAlias(alias string) error {
	return a.setProperty("Alias", alias)
}

// SetPowered powers the radio on or off.
func (a *Adapter) SetPowered(powered bool) error {
	return a.setProperty("Powered", powered)
}

// SetPairable controls whether the adapter accepts pairing.
func (a *Adapter) SetPairable(pairable bool) error {
	return a.setProperty("Pairable", pairable)
}

// SetDiscoverable controls whether the adapter answers inquiry scans.
func (a *Adapter) SetDiscoverable(discoverable bool) error {
	return a.setProperty("Discoverable", discoverable)
}

// Class returns the current class-of-device.
func (a *Adapter) Class() (uint32, error) {
	var class uint32
	err := a.getProperty("Class", &class)
	return class, err
}

// SetClass writes the class-of-device. BlueZ exposes Class read-only over
// D-Bus, so the write goes through hciconfig; the command reports no
// synchronous completion, which is why callers re-read Class to confirm.
func (a *Adapter) SetClass(class uint32) error {
	cmd := exec.Command("hciconfig", a.name, "class", fmt.Sprintf("0x%06x", class))
	if out, err := cmd.CombinedOutput(); err != nil {
		return playwith.WrapError(playwith.KindBluetooth,
			fmt.Errorf("hciconfig %s class: %w (%s)", a.name, err, string(out)))
	}
	return nil
}

// AdvertisedUUIDs returns the service UUIDs the adapter currently
// advertises.
func (a *Adapter) AdvertisedUUIDs() ([]string, error) {
	var uuids []string
	err := a.getProperty("UUIDs", &uuids)
	return uuids, err
}

// Device is one remote device known to the adapter.
type Device struct {
	// Path is the BlueZ object path; it doubles as the removal handle.
	Path string
	// Name is the remote's display name, empty when BlueZ has none.
	Name string
	// Paired reports whether a bond exists.
	Paired bool
}

// Devices enumerates the remote devices known to this adapter.
func (a *Adapter) Devices() ([]Device, error) {
	objects, err := a.session.managedObjects()
	if err != nil {
		return nil, err
	}

	var devices []Device
	prefix := string(a.path) + "/"
	for path, ifaces := range objects {
		props, ok := ifaces[deviceIface]
		if !ok || len(string(path)) <= len(prefix) || string(path)[:len(prefix)] != prefix {
			continue
		}
		d := Device{Path: string(path)}
		if v, ok := props["Name"]; ok {
			_ = v.Store(&d.Name)
		} else if v, ok := props["Alias"]; ok {
			_ = v.Store(&d.Name)
		}
		if v, ok := props["Paired"]; ok {
			_ = v.Store(&d.Paired)
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// RemoveDevice unpairs and forgets the device at the given object path.
func (a *Adapter) RemoveDevice(path string) error {
	call := a.obj.Call(adapterIface+".RemoveDevice", 0, dbus.ObjectPath(path))
	if call.Err != nil {
		return playwith.WrapError(playwith.KindBluetooth, fmt.Errorf("remove device %s: %w", path, call.Err))
	}
	return nil
}
