package link

import (
	"context"

	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/serial-link/api/bluetooth"
	"github.com/bluetuith-org/serial-link/api/errorkinds"
	"go.uber.org/zap"
)

// ConnectToPeer checks the adapter, selects the paired device named name
// (or the first paired device if name is empty) and opens a socket to it.
// The first failing step's error is returned unchanged. On success the link
// is ready for SendData.
func (m *Manager) ConnectToPeer(ctx context.Context, name string) error {
	if err := m.requireIdle("connect"); err != nil {
		return err
	}

	if err := m.CheckAdapter(); err != nil {
		return err
	}

	if _, err := m.SelectPeer(name); err != nil {
		return err
	}

	return m.OpenSocket(ctx)
}

// OpenSocket opens a connection to the device selected by SelectPeer, using
// the Serial Port Profile. It blocks until the transport completes the
// handshake, fails, or ctx is done.
func (m *Manager) OpenSocket(ctx context.Context) error {
	if err := m.requireIdle("open-socket"); err != nil {
		return err
	}

	if m.state.peer == nil {
		return wrapKind(errorkinds.ErrNoPeerFound, nil,
			"open-socket", ftag.NotFound, "No Bluetooth device was selected",
		)
	}

	peer := *m.state.peer
	m.publish(bluetooth.LinkConnecting, peer, nil)

	socket, err := m.transport.Dial(ctx, peer, bluetooth.SerialPortProfile)
	if err != nil {
		m.log.Warn("link: connect failed",
			zap.String("name", peer.Name),
			zap.Stringer("address", peer.Address),
			zap.Error(err),
		)
		m.publish(bluetooth.LinkIdle, peer, err)

		return wrapKind(errorkinds.ErrConnectFailed, err,
			"open-socket", ftag.Internal, "Cannot connect to '"+peer.Name+"'",
		)
	}

	m.state.link = &activeLink{
		socket: socket,
		input:  socket.InputStream(),
		output: socket.OutputStream(),
	}
	m.state.role = roleClient

	m.log.Info("link: socket connected", zap.String("name", peer.Name))
	m.publish(bluetooth.LinkClientConnected, peer, nil)

	return nil
}

// SendData writes payload to the connected device. It requires an open link,
// an enabled adapter and a selected device. The write is not framed or
// acknowledged; it may block until the transport accepts the bytes.
func (m *Manager) SendData(payload []byte) error {
	if m.state.link == nil || m.state.peer == nil {
		return wrapKind(errorkinds.ErrSendFailed, nil,
			"send-data", ftag.InvalidArgument, "No connection is open",
		)
	}

	if _, err := m.adapter(); err != nil {
		return wrapKind(errorkinds.ErrSendFailed, err,
			"send-data", ftag.InvalidArgument, "The Bluetooth adapter is not usable",
		)
	}

	if _, err := m.state.link.output.Write(payload); err != nil {
		m.log.Warn("link: write failed", zap.Int("size", len(payload)), zap.Error(err))
		return wrapKind(errorkinds.ErrSendFailed, err,
			"send-data", ftag.Internal, "Cannot send data",
		)
	}

	m.log.Debug("link: sent data", zap.Int("size", len(payload)))

	return nil
}

// SendString is like SendData, with the bytes of msg.
func (m *Manager) SendString(msg string) error {
	return m.SendData([]byte(msg))
}
