//go:build linux

package linux

import (
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/bluetuith-org/serial-link/api/bluetooth"
	dbus "github.com/godbus/dbus/v5"
)

// profile implements org.bluez.Profile1 and forwards the first
// NewConnection to the waiting caller.
type profile struct {
	conns    chan profileConn
	accepted atomic.Bool
}

type profileConn struct {
	file   *os.File
	remote bluetooth.MacAddress
}

func newProfile() *profile {
	return &profile{conns: make(chan profileConn, 1)}
}

// Release is called by BlueZ when the profile is unregistered.
func (p *profile) Release() *dbus.Error { return nil }

// Cancel is called when a request is canceled.
func (p *profile) Cancel() *dbus.Error { return nil }

// RequestDisconnection is ignored; the socket owner closes the connection.
func (p *profile) RequestDisconnection(_ dbus.ObjectPath) *dbus.Error { return nil }

// NewConnection delivers the RFCOMM socket of a new connection. Only one
// connection is delivered per profile; later ones are closed and rejected.
func (p *profile) NewConnection(dev dbus.ObjectPath, fd dbus.UnixFD, _ map[string]dbus.Variant) *dbus.Error {
	// A non-blocking fd makes the File pollable, so Close unblocks a pending Read.
	syscall.SetNonblock(int(fd), true)
	file := os.NewFile(uintptr(fd), "rfcomm")

	if p.accepted.Swap(true) {
		file.Close()
		return &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []interface{}{"already connected"}}
	}

	select {
	case p.conns <- profileConn{file: file, remote: macFromPath(dev)}:
		return nil

	default:
		file.Close()
		return &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []interface{}{"no receiver"}}
	}
}

// registration is an exported and registered profile object.
type registration struct {
	bus  *dbus.Conn
	path dbus.ObjectPath
	prof *profile

	once sync.Once
}

// unregister unregisters the profile from BlueZ and unexports it. It is
// safe to call more than once.
func (r *registration) unregister() error {
	var err error

	r.once.Do(func() {
		pm := r.bus.Object(bluezService, bluezRoot)
		err = pm.Call(profileManagerIface+".UnregisterProfile", 0, r.path).Err
		r.bus.Export(nil, r.path, profileIface)
	})

	return err
}

// rfcommConn is the RFCOMM socket of a connection. Closing it also
// unregisters the profile it was received on, if any.
type rfcommConn struct {
	*os.File
	reg *registration
}

func (c *rfcommConn) Close() error {
	err := c.File.Close()
	if c.reg != nil {
		c.reg.unregister()
	}

	return err
}
