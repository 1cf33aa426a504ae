package ble

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"tinygo.org/x/bluetooth"
)

const (
	bluezService      = "org.bluez"
	bluezDevice       = "org.bluez.Device1"
	propertiesChanged = "org.freedesktop.DBus.Properties"
	servicesResolved  = "ServicesResolved"
)

// devicePath is the BlueZ object path of a device on the first adapter,
// e.g. "D4:E9:F4:E2:B5:8A" becomes "/org/bluez/hci0/dev_D4_E9_F4_E2_B5_8A".
func devicePath(mac string) dbus.ObjectPath {
	id := strings.ReplaceAll(strings.ToUpper(mac), ":", "_")
	return dbus.ObjectPath("/org/bluez/hci0/dev_" + id)
}

// waitForServicesResolved blocks until BlueZ reports ServicesResolved for
// the device, or until the timeout expires. Service discovery before that
// returns an empty profile.
func waitForServicesResolved(addr bluetooth.Address, timeout time.Duration) error {
	path := devicePath(addr.String())

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("dbus: %w", err)
	}
	defer conn.Close()

	obj := conn.Object(bluezService, path)
	if v, err := obj.GetProperty(bluezDevice + "." + servicesResolved); err == nil {
		if resolved, ok := v.Value().(bool); ok && resolved {
			return nil
		}
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(propertiesChanged),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(path),
	); err != nil {
		return fmt.Errorf("dbus match: %w", err)
	}

	ch := make(chan *dbus.Signal, 16)
	conn.Signal(ch)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case sig, ok := <-ch:
			if !ok {
				return errors.New("dbus signal channel closed")
			}
			if resolvedSignal(sig) {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for %s", servicesResolved)
		}
	}
}

// resolvedSignal reports whether sig sets ServicesResolved to true.
func resolvedSignal(sig *dbus.Signal) bool {
	if len(sig.Body) < 2 {
		return false
	}
	if iface, ok := sig.Body[0].(string); !ok || iface != bluezDevice {
		return false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return false
	}
	v, ok := changed[servicesResolved]
	if !ok {
		return false
	}
	resolved, ok := v.Value().(bool)
	return ok && resolved
}
