//go:build !linux

package ble

import (
	"time"

	"tinygo.org/x/bluetooth"
)

// waitForServicesResolved is a no-op outside BlueZ: the platform stacks
// resolve the profile before Connect returns.
func waitForServicesResolved(bluetooth.Address, time.Duration) error { return nil }
