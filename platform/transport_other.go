//go:build !linux

package platform

import (
	"runtime"

	"github.com/bluetuith-org/serial-link/api/bluetooth"
	"github.com/bluetuith-org/serial-link/loopback"
)

// Transport returns the platform-specific Bluetooth transport.
// Without a native stack, a loopback transport with no adapter is returned,
// so every operation reports a missing adapter.
func Transport() (bluetooth.Transport, PlatformInfo) {
	t := loopback.NewNetwork().NewTransport("00:00:00:00:00:00", runtime.GOOS)
	t.SetPresent(false)

	return t, NewPlatformInfo(LoopbackStack)
}
