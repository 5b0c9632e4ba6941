// Package loopback provides an in-process Bluetooth transport. Transports
// created on the same Network can pair with each other and exchange data
// over in-memory pipes, which stands in for a native stack on hosts without
// one, and in tests.
package loopback

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/serial-link/api/bluetooth"
	"github.com/bluetuith-org/serial-link/api/errorkinds"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	// ErrUnreachable is returned by Dial when no endpoint listens for the profile on the peer.
	ErrUnreachable = errors.New("loopback: host is unreachable")

	// ErrAddressInUse is returned by Listen when the profile is already bound on the adapter.
	ErrAddressInUse = errors.New("loopback: profile already bound")

	// ErrRejected is returned by Dial when the listener already accepted a connection.
	ErrRejected = errors.New("loopback: connection rejected")
)

// Network is the shared medium of a set of loopback transports.
type Network struct {
	listeners *xsync.MapOf[string, *listener]
}

// NewNetwork returns an empty network.
func NewNetwork() *Network {
	return &Network{
		listeners: xsync.NewMapOf[string, *listener](),
	}
}

// Transport is a loopback Bluetooth adapter attached to a Network.
type Transport struct {
	network *Network
	adapter bluetooth.AdapterData

	present atomic.Bool
	powered atomic.Bool

	peers *xsync.MapOf[bluetooth.MacAddress, bluetooth.PeerData]
	dials *xsync.Counter
}

// NewTransport attaches a powered adapter with the given address and name to the network.
func (n *Network) NewTransport(address bluetooth.MacAddress, name string) *Transport {
	t := &Transport{
		network: n,
		adapter: bluetooth.AdapterData{Address: address, Name: name},
		peers:   xsync.NewMapOf[bluetooth.MacAddress, bluetooth.PeerData](),
		dials:   xsync.NewCounter(),
	}
	t.present.Store(true)
	t.powered.Store(true)

	return t
}

// SetPresent simulates adding or removing the adapter hardware.
func (t *Transport) SetPresent(present bool) {
	t.present.Store(present)
}

// SetPowered simulates powering the adapter on or off.
func (t *Transport) SetPowered(powered bool) {
	t.powered.Store(powered)
}

// Pair bonds the adapter with other, in both directions.
func (t *Transport) Pair(other *Transport) {
	t.AddPeer(other.peerData())
	other.AddPeer(t.peerData())
}

// AddPeer adds a paired device. The device is reachable only if a transport
// with the same address listens on the network.
func (t *Transport) AddPeer(peer bluetooth.PeerData) {
	t.peers.Store(peer.Address, peer)
}

// RemovePeer removes a paired device.
func (t *Transport) RemovePeer(address bluetooth.MacAddress) {
	t.peers.Delete(address)
}

// DialCount returns the number of connection attempts made by the adapter.
func (t *Transport) DialCount() int64 {
	return t.dials.Value()
}

// Adapter returns the adapter, if present.
func (t *Transport) Adapter() (bluetooth.AdapterData, bool, error) {
	adapter := t.adapter
	adapter.Powered = t.powered.Load()

	return adapter, t.present.Load(), nil
}

// PairedPeers returns the paired devices, in no particular order.
func (t *Transport) PairedPeers() ([]bluetooth.PeerData, error) {
	if err := t.check("paired-peers"); err != nil {
		return nil, err
	}

	peers := make([]bluetooth.PeerData, 0, t.peers.Size())
	t.peers.Range(func(_ bluetooth.MacAddress, peer bluetooth.PeerData) bool {
		peers = append(peers, peer)
		return true
	})

	return peers, nil
}

// Dial connects to the endpoint listening for profile on peer.
func (t *Transport) Dial(ctx context.Context, peer bluetooth.PeerData, profile uuid.UUID) (bluetooth.Socket, error) {
	t.dials.Inc()

	if err := t.check("dial"); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fault.Wrap(err,
			fctx.With(ctx, "error_at", "dial"),
			ftag.With(ftag.Cancelled),
		)
	}

	ln, ok := t.network.listeners.Load(endpointKey(peer.Address, profile))
	if !ok {
		return nil, fault.Wrap(ErrUnreachable,
			fctx.With(ctx, "error_at", "dial", "address", peer.Address.String()),
			ftag.With(ftag.NotFound),
			fmsg.With("No endpoint is listening on the device"),
		)
	}

	local, remote := net.Pipe()
	if err := ln.offer(bluetooth.NewStreamSocket(remote, t.adapter.Address)); err != nil {
		local.Close()
		remote.Close()

		return nil, fault.Wrap(err,
			fctx.With(ctx, "error_at", "dial", "address", peer.Address.String()),
			ftag.With(ftag.PermissionDenied),
		)
	}

	return bluetooth.NewStreamSocket(local, peer.Address), nil
}

// Listen binds profile on the adapter.
func (t *Transport) Listen(serviceName string, profile uuid.UUID) (bluetooth.Listener, error) {
	if err := t.check("listen"); err != nil {
		return nil, err
	}

	key := endpointKey(t.adapter.Address, profile)
	ln := &listener{
		network:     t.network,
		key:         key,
		serviceName: serviceName,
		conns:       make(chan bluetooth.Socket, 1),
		closed:      make(chan struct{}),
	}

	if _, loaded := t.network.listeners.LoadOrStore(key, ln); loaded {
		return nil, fault.Wrap(ErrAddressInUse,
			fctx.With(context.Background(), "error_at", "listen", "service", serviceName),
			ftag.With(ftag.AlreadyExists),
			fmsg.With("The service is already registered on this adapter"),
		)
	}

	return ln, nil
}

func (t *Transport) check(at string) error {
	var err error

	switch {
	case !t.present.Load():
		err = errorkinds.ErrNoAdapter

	case !t.powered.Load():
		err = errorkinds.ErrAdapterDisabled

	default:
		return nil
	}

	return fault.Wrap(err,
		fctx.With(context.Background(), "error_at", at),
		ftag.With(ftag.InvalidArgument),
	)
}

func (t *Transport) peerData() bluetooth.PeerData {
	return bluetooth.PeerData{
		Name:    t.adapter.Name,
		Address: t.adapter.Address,
		Path:    "loopback/" + t.adapter.Address.String(),
	}
}

func endpointKey(address bluetooth.MacAddress, profile uuid.UUID) string {
	return address.String() + "/" + profile.String()
}

// listener accepts a single connection.
type listener struct {
	network     *Network
	key         string
	serviceName string

	conns    chan bluetooth.Socket
	accepted atomic.Bool

	closeOnce sync.Once
	closed    chan struct{}
}

func (l *listener) offer(socket bluetooth.Socket) error {
	if l.accepted.Swap(true) {
		return ErrRejected
	}

	select {
	case <-l.closed:
		return ErrUnreachable

	case l.conns <- socket:
		return nil
	}
}

// Accept waits for the connection.
func (l *listener) Accept() (bluetooth.Socket, error) {
	select {
	case socket := <-l.conns:
		return socket, nil

	case <-l.closed:
		return nil, errorkinds.ErrListenerClosed
	}
}

// Close unbinds the listener and unblocks Accept. Connections that were
// offered but not accepted are closed.
func (l *listener) Close() error {
	l.closeOnce.Do(func() {
		l.network.listeners.Compute(l.key, func(current *listener, loaded bool) (*listener, bool) {
			return current, !loaded || current == l
		})
		close(l.closed)

		select {
		case socket := <-l.conns:
			socket.Close()
		default:
		}
	})

	return nil
}
