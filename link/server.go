package link

import (
	"unicode/utf8"

	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/serial-link/api/bluetooth"
	"github.com/bluetuith-org/serial-link/api/errorkinds"
	"go.uber.org/zap"
)

// ChunkHandler receives the data read by a server started with CreateServer.
// Its methods are called from a single delivery goroutine, never from the
// reader itself.
type ChunkHandler interface {
	// OnChunk is called once per read, with the bytes decoded as ASCII text.
	OnChunk(text string)

	// OnStopped is called once after the server stops reading. err is nil
	// if the server was stopped by Close.
	OnStopped(err error)
}

// ChunkHandlerFunc adapts a function to a ChunkHandler that ignores stop
// notifications.
type ChunkHandlerFunc func(text string)

// OnChunk calls f(text).
func (f ChunkHandlerFunc) OnChunk(text string) {
	f(text)
}

// OnStopped does nothing.
func (f ChunkHandlerFunc) OnStopped(error) {}

// CreateServer creates a listening endpoint bound to the Serial Port Profile
// and starts reading from the first device that connects to it. Received
// data is passed to handler until Close is called or a read fails.
func (m *Manager) CreateServer(handler ChunkHandler) error {
	if handler == nil {
		return wrapKind(errorkinds.ErrServerBindFailed, nil,
			"create-server", ftag.InvalidArgument, "A chunk handler is required",
		)
	}

	if err := m.requireIdle("create-server"); err != nil {
		return err
	}

	if err := m.CheckAdapter(); err != nil {
		return err
	}

	listener, err := m.transport.Listen(m.cfg.ServiceName, bluetooth.SerialPortProfile)
	if err != nil {
		m.log.Warn("link: listen failed", zap.String("service", m.cfg.ServiceName), zap.Error(err))
		return wrapKind(errorkinds.ErrServerBindFailed, err,
			"create-server", ftag.Internal, "Cannot create the server socket",
		)
	}

	m.startListening(listener, handler)

	return nil
}

// startListening spawns the worker that accepts a single connection on
// listener and reads from it, and the goroutine that delivers what it reads.
func (m *Manager) startListening(listener bluetooth.Listener, handler ChunkHandler) {
	ep := newServerEndpoint(listener, m.cfg.ChunkQueueSize)

	m.state.server = ep
	m.state.role = roleServer

	m.log.Info("link: server listening", zap.String("service", m.cfg.ServiceName))
	m.publish(bluetooth.LinkServerListening, bluetooth.PeerData{}, nil)

	go m.deliver(ep, handler)
	go m.serve(ep)
}

func (m *Manager) serve(ep *serverEndpoint) {
	var (
		err  error
		peer bluetooth.PeerData
	)

	defer func() {
		ep.err = err
		ep.setPhase(bluetooth.LinkServerStopped)

		close(ep.chunks)

		m.log.Info("link: server stopped", zap.Error(err))
		m.publish(bluetooth.LinkServerStopped, peer, err)

		close(ep.done)
	}()

	socket, acceptErr := ep.listener.Accept()
	if acceptErr != nil {
		if !ep.stopped() {
			m.log.Warn("link: accept failed", zap.Error(acceptErr))
			err = acceptErr
		}

		return
	}

	if !ep.setAccepted(socket) {
		socket.Close()
		return
	}
	defer socket.Close()

	peer.Address = socket.RemoteAddress()

	ep.setPhase(bluetooth.LinkServerReading)
	m.log.Info("link: peer connected", zap.Stringer("address", peer.Address))
	m.publish(bluetooth.LinkServerReading, peer, nil)

	input := socket.InputStream()
	buf := make([]byte, m.cfg.ReadBufferSize)

	for !ep.stopped() {
		n, readErr := input.Read(buf)
		if n > 0 && !ep.stopped() {
			data := decodeASCII(buf[:n])
			m.log.Debug("link: read data", zap.String("data", data))

			select {
			case ep.chunks <- data:
			case <-ep.quit:
				return
			}
		}

		if readErr != nil {
			if !ep.stopped() {
				m.log.Warn("link: read failed", zap.Error(readErr))
				err = readErr
			}

			return
		}
	}
}

func (m *Manager) deliver(ep *serverEndpoint, handler ChunkHandler) {
	for data := range ep.chunks {
		if ep.stopped() {
			continue
		}

		handler.OnChunk(data)
	}

	handler.OnStopped(ep.err)
}

// decodeASCII decodes b as US-ASCII. Bytes outside the ASCII range are
// replaced with utf8.RuneError.
func decodeASCII(b []byte) string {
	ascii := true
	for _, c := range b {
		if c >= utf8.RuneSelf {
			ascii = false
			break
		}
	}

	if ascii {
		return string(b)
	}

	runes := make([]rune, len(b))
	for i, c := range b {
		if c >= utf8.RuneSelf {
			runes[i] = utf8.RuneError
			continue
		}

		runes[i] = rune(c)
	}

	return string(runes)
}
