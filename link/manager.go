// Package link manages a single logical serial link over a Bluetooth RFCOMM
// transport, either as a client connected to a paired device, or as a server
// reading from the one device that connects to it.
//
// A Manager is not safe for concurrent use: callers must serialize
// ConnectToPeer, SendData, CreateServer and Close. Received data is
// delivered on a goroutine owned by the Manager.
package link

import (
	"errors"
	"time"

	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/serial-link/api/bluetooth"
	"github.com/bluetuith-org/serial-link/api/config"
	"github.com/bluetuith-org/serial-link/api/errorkinds"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Manager handles a Bluetooth serial link.
type Manager struct {
	transport bluetooth.Transport
	cfg       config.Configuration
	log       *zap.Logger

	state connectionState
}

// errWorkerTimeout is reported by Close when the server worker is still
// running after StopTimeout.
var errWorkerTimeout = errors.New("server worker did not stop")

// claimed tracks the transports that are owned by a Manager.
var claimed = xsync.NewMapOf[bluetooth.Transport, struct{}]()

// New returns a Manager that owns transport until Release is called.
// Transport implementations must be comparable, such as pointer types.
// It returns errorkinds.ErrInvalidState if another Manager owns transport.
func New(transport bluetooth.Transport, cfg config.Configuration) (*Manager, error) {
	if transport == nil {
		return nil, wrapKind(errorkinds.ErrNoAdapter, nil,
			"new-manager", ftag.InvalidArgument, "No Bluetooth transport is available",
		)
	}

	if _, loaded := claimed.LoadOrStore(transport, struct{}{}); loaded {
		return nil, wrapKind(errorkinds.ErrInvalidState, nil,
			"new-manager", ftag.AlreadyExists, "The Bluetooth transport is already in use",
		)
	}

	cfg = cfg.WithDefaults()

	return &Manager{
		transport: transport,
		cfg:       cfg,
		log:       cfg.Logger,
	}, nil
}

// State returns the current state of the link.
func (m *Manager) State() bluetooth.LinkState {
	switch m.state.role {
	case roleClient:
		return bluetooth.LinkClientConnected

	case roleServer:
		return m.state.server.currentPhase()
	}

	return bluetooth.LinkIdle
}

// Peer returns the device selected by SelectPeer, if any.
func (m *Manager) Peer() (bluetooth.PeerData, bool) {
	if m.state.peer == nil {
		return bluetooth.PeerData{}, false
	}

	return *m.state.peer, true
}

// ServerDone returns a channel that is closed when the server worker exits.
// It returns nil if no server was created.
func (m *Manager) ServerDone() <-chan struct{} {
	if m.state.server == nil {
		return nil
	}

	return m.state.server.done
}

// Close closes the current connection, either as a server or a client.
// Every resource is closed even if closing another one fails; the failures
// are returned together as errorkinds.ErrCloseFailed. Closing an idle
// Manager returns nil.
func (m *Manager) Close() error {
	var errs error

	if ep := m.state.server; ep != nil {
		ep.stop.Store(true)
		close(ep.quit)

		errs = multierr.Append(errs, ep.listener.Close())
		errs = multierr.Append(errs, ep.closeAccepted())

		select {
		case <-ep.done:
		case <-time.After(m.cfg.StopTimeout):
			m.log.Warn("link: server worker did not stop", zap.Duration("timeout", m.cfg.StopTimeout))
			errs = multierr.Append(errs, errWorkerTimeout)
		}

		m.state.server = nil
	}

	if link := m.state.link; link != nil {
		errs = multierr.Append(errs, link.output.Close())
		errs = multierr.Append(errs, link.input.Close())
		errs = multierr.Append(errs, link.socket.Close())

		m.state.link = nil
	}

	wasActive := m.state.role != roleIdle

	m.state.role = roleIdle
	m.state.peer = nil

	if wasActive {
		m.publish(bluetooth.LinkIdle, bluetooth.PeerData{}, errs)
	}

	if errs != nil {
		m.log.Warn("link: closing connection failed", zap.Error(errs))
		return wrapKind(errorkinds.ErrCloseFailed, errs,
			"close", ftag.Internal, "Closing the Bluetooth connection failed",
		)
	}

	if wasActive {
		m.log.Info("link: connection closed")
	}

	return nil
}

// Release closes the link and gives up ownership of the transport.
func (m *Manager) Release() error {
	err := m.Close()
	claimed.Delete(m.transport)

	return err
}

func (m *Manager) requireIdle(at string) error {
	if m.state.role == roleIdle {
		return nil
	}

	return wrapKind(errorkinds.ErrInvalidState, nil,
		at, ftag.AlreadyExists, "A connection is already open, close it first",
	)
}

func (m *Manager) publish(state bluetooth.LinkState, peer bluetooth.PeerData, err error) {
	data := bluetooth.LinkEventData{State: state, Peer: peer}
	if err != nil {
		data.Error = err.Error()
	}

	m.cfg.Events.Publish(bluetooth.EventLinkState, data)
}
