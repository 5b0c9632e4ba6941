//go:build linux

package platform

import (
	"github.com/bluetuith-org/serial-link/api/bluetooth"
	"github.com/bluetuith-org/serial-link/linux"
)

// Transport returns the platform-specific Bluetooth transport.
func Transport() (bluetooth.Transport, PlatformInfo) {
	return linux.NewTransport(), NewPlatformInfo(BluezStack)
}
