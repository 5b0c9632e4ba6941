//go:build linux

// Package linux provides a Bluetooth transport backed by BlueZ over D-Bus.
// RFCOMM sockets are obtained by registering org.bluez.Profile1 objects and
// waiting for BlueZ to hand over the connection file descriptor.
package linux

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/serial-link/api/bluetooth"
	"github.com/bluetuith-org/serial-link/api/errorkinds"
	dbus "github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

const (
	bluezService        = "org.bluez"
	bluezRoot           = dbus.ObjectPath("/org/bluez")
	profileIface        = "org.bluez.Profile1"
	profileManagerIface = "org.bluez.ProfileManager1"
	deviceIface         = "org.bluez.Device1"
	adapterIface        = "org.bluez.Adapter1"
	objManagerIface     = "org.freedesktop.DBus.ObjectManager"

	// ServerChannel is the fixed RFCOMM channel of the server profile.
	ServerChannel uint16 = 22

	profilePathPrefix = "/org/bluetuith/seriallink/"
)

var pathCounter atomic.Uint64

type managedObjects = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// BluezTransport is a Bluetooth transport using the system BlueZ daemon.
type BluezTransport struct {
	bus *dbus.Conn

	sync.Mutex
}

// NewTransport returns a BlueZ transport. The system bus is connected on first use.
func NewTransport() *BluezTransport {
	return &BluezTransport{}
}

// Close disconnects from the system bus.
func (b *BluezTransport) Close() error {
	b.Lock()
	defer b.Unlock()

	if b.bus == nil {
		return nil
	}

	err := b.bus.Close()
	b.bus = nil

	return err
}

// Adapter returns the first adapter known to BlueZ.
func (b *BluezTransport) Adapter() (bluetooth.AdapterData, bool, error) {
	objects, err := b.managedObjects()
	if err != nil {
		return bluetooth.AdapterData{}, false, err
	}

	_, adapter, ok := firstAdapter(objects)
	return adapter, ok, nil
}

// PairedPeers returns the devices paired with the first adapter.
func (b *BluezTransport) PairedPeers() ([]bluetooth.PeerData, error) {
	objects, err := b.managedObjects()
	if err != nil {
		return nil, err
	}

	adapterPath, _, ok := firstAdapter(objects)
	if !ok {
		return nil, fault.Wrap(errorkinds.ErrNoAdapter,
			fctx.With(context.Background(), "error_at", "paired-peers"),
			ftag.With(ftag.NotFound),
		)
	}

	return pairedPeers(objects, adapterPath), nil
}

// Dial registers a client profile for the service, and asks BlueZ to connect it to peer.
func (b *BluezTransport) Dial(ctx context.Context, peer bluetooth.PeerData, profile uuid.UUID) (bluetooth.Socket, error) {
	bus, err := b.conn()
	if err != nil {
		return nil, err
	}

	devPath := dbus.ObjectPath(peer.Path)
	if !devPath.IsValid() {
		return nil, fault.Wrap(errorkinds.ErrNoPeerFound,
			fctx.With(ctx, "error_at", "dial", "address", peer.Address.String()),
			ftag.With(ftag.InvalidArgument),
			fmsg.With("The device has no BlueZ object path"),
		)
	}

	reg, err := register(bus, "client", profile, map[string]dbus.Variant{
		"Role": dbus.MakeVariant("client"),
	})
	if err != nil {
		return nil, err
	}

	call := bus.Object(bluezService, devPath).CallWithContext(ctx, deviceIface+".ConnectProfile", 0, profile.String())
	if call.Err != nil {
		reg.unregister()

		return nil, fault.Wrap(call.Err,
			fctx.With(ctx, "error_at", "connect-profile", "address", peer.Address.String()),
			ftag.With(ftag.Internal),
			fmsg.With("BlueZ could not connect the profile"),
		)
	}

	select {
	case <-ctx.Done():
		reg.unregister()

		return nil, fault.Wrap(ctx.Err(),
			fctx.With(ctx, "error_at", "connect-profile"),
			ftag.With(ftag.Cancelled),
		)

	case c := <-reg.prof.conns:
		return bluetooth.NewStreamSocket(&rfcommConn{File: c.file, reg: reg}, peer.Address), nil
	}
}

// Listen registers a server profile for the service on ServerChannel.
func (b *BluezTransport) Listen(serviceName string, profile uuid.UUID) (bluetooth.Listener, error) {
	bus, err := b.conn()
	if err != nil {
		return nil, err
	}

	reg, err := register(bus, "server", profile, map[string]dbus.Variant{
		"Name":    dbus.MakeVariant(serviceName),
		"Role":    dbus.MakeVariant("server"),
		"Channel": dbus.MakeVariant(ServerChannel),
	})
	if err != nil {
		return nil, err
	}

	return &bluezListener{reg: reg, closed: make(chan struct{})}, nil
}

func (b *BluezTransport) conn() (*dbus.Conn, error) {
	b.Lock()
	defer b.Unlock()

	if b.bus != nil {
		return b.bus, nil
	}

	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "system-bus"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot connect to the system bus"),
		)
	}

	b.bus = bus
	return bus, nil
}

func (b *BluezTransport) managedObjects() (managedObjects, error) {
	bus, err := b.conn()
	if err != nil {
		return nil, err
	}

	var objects managedObjects
	if err := bus.Object(bluezService, "/").Call(objManagerIface+".GetManagedObjects", 0).Store(&objects); err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "managed-objects"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot list BlueZ objects"),
		)
	}

	return objects, nil
}

// bluezListener waits for the first connection of a server profile.
type bluezListener struct {
	reg *registration

	closeOnce sync.Once
	closed    chan struct{}
}

// Accept blocks until a device connects to the profile, or the listener is closed.
func (l *bluezListener) Accept() (bluetooth.Socket, error) {
	select {
	case c := <-l.reg.prof.conns:
		return bluetooth.NewStreamSocket(&rfcommConn{File: c.file}, c.remote), nil

	case <-l.closed:
		return nil, errorkinds.ErrListenerClosed
	}
}

// Close unregisters the profile and unblocks Accept.
func (l *bluezListener) Close() error {
	var err error

	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.reg.unregister()

		select {
		case c := <-l.reg.prof.conns:
			c.file.Close()
		default:
		}
	})

	return err
}

func register(bus *dbus.Conn, role string, profile uuid.UUID, opts map[string]dbus.Variant) (*registration, error) {
	id := pathCounter.Add(1)
	reg := &registration{
		bus:  bus,
		path: dbus.ObjectPath(profilePathPrefix + role + "/p" + strconv.FormatUint(id, 10)),
		prof: newProfile(),
	}

	if err := bus.Export(reg.prof, reg.path, profileIface); err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "export-profile", "role", role),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot export the profile object"),
		)
	}

	pm := bus.Object(bluezService, bluezRoot)
	if call := pm.Call(profileManagerIface+".RegisterProfile", 0, reg.path, profile.String(), opts); call.Err != nil {
		bus.Export(nil, reg.path, profileIface)

		return nil, fault.Wrap(call.Err,
			fctx.With(context.Background(), "error_at", "register-profile", "role", role),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot register the profile with BlueZ"),
		)
	}

	return reg, nil
}

// firstAdapter returns the adapter with the lowest object path.
func firstAdapter(objects managedObjects) (dbus.ObjectPath, bluetooth.AdapterData, bool) {
	var paths []dbus.ObjectPath
	for path, ifaces := range objects {
		if _, ok := ifaces[adapterIface]; ok {
			paths = append(paths, path)
		}
	}

	if len(paths) == 0 {
		return "", bluetooth.AdapterData{}, false
	}

	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

	props := objects[paths[0]][adapterIface]
	return paths[0], bluetooth.AdapterData{
		Address: bluetooth.MacAddress(stringProp(props, "Address")),
		Name:    stringProp(props, "Name"),
		Powered: boolProp(props, "Powered"),
	}, true
}

// pairedPeers returns the paired devices that belong to the adapter.
func pairedPeers(objects managedObjects, adapterPath dbus.ObjectPath) []bluetooth.PeerData {
	var peers []bluetooth.PeerData

	for path, ifaces := range objects {
		props, ok := ifaces[deviceIface]
		if !ok || !boolProp(props, "Paired") {
			continue
		}

		if adapter, ok := props["Adapter"].Value().(dbus.ObjectPath); ok && adapter != adapterPath {
			continue
		}

		name := stringProp(props, "Name")
		if name == "" {
			name = stringProp(props, "Alias")
		}

		address := stringProp(props, "Address")
		if address == "" {
			address = string(macFromPath(path))
		}

		peers = append(peers, bluetooth.PeerData{
			Name:    name,
			Address: bluetooth.MacAddress(address),
			Path:    string(path),
		})
	}

	return peers
}

func stringProp(props map[string]dbus.Variant, name string) string {
	v, ok := props[name]
	if !ok {
		return ""
	}

	s, _ := v.Value().(string)
	return s
}

func boolProp(props map[string]dbus.Variant, name string) bool {
	v, ok := props[name]
	if !ok {
		return false
	}

	b, _ := v.Value().(bool)
	return b
}

// macFromPath extracts the address from a device path of the form .../dev_XX_XX_XX_XX_XX_XX.
func macFromPath(p dbus.ObjectPath) bluetooth.MacAddress {
	s := string(p)

	idx := strings.LastIndex(s, "/dev_")
	if idx < 0 {
		return ""
	}

	return bluetooth.MacAddress(strings.ReplaceAll(s[idx+5:], "_", ":"))
}
