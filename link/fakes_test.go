package link

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/bluetuith-org/serial-link/api/bluetooth"
	"github.com/bluetuith-org/serial-link/api/config"
)

type fakeTransport struct {
	present    bool
	powered    bool
	adapterErr error

	peers []bluetooth.PeerData

	dialErr     error
	dialed      []bluetooth.PeerData
	dialProfile uuid.UUID
	socket      *fakeSocket

	listenErr     error
	listenName    string
	listenProfile uuid.UUID
	listener      *fakeListener
}

func newFakeTransport(peers ...string) *fakeTransport {
	t := &fakeTransport{
		present:  true,
		powered:  true,
		socket:   &fakeSocket{},
		listener: newFakeListener(),
	}

	for i, name := range peers {
		t.peers = append(t.peers, bluetooth.PeerData{
			Name:    name,
			Address: bluetooth.MacAddress("00:00:00:00:00:0" + string(rune('0'+i))),
		})
	}

	return t
}

func (t *fakeTransport) Adapter() (bluetooth.AdapterData, bool, error) {
	return bluetooth.AdapterData{Address: "AA:BB:CC:DD:EE:FF", Powered: t.powered}, t.present, t.adapterErr
}

func (t *fakeTransport) PairedPeers() ([]bluetooth.PeerData, error) {
	return t.peers, nil
}

func (t *fakeTransport) Dial(_ context.Context, peer bluetooth.PeerData, profile uuid.UUID) (bluetooth.Socket, error) {
	t.dialed = append(t.dialed, peer)
	t.dialProfile = profile

	if t.dialErr != nil {
		return nil, t.dialErr
	}

	t.socket.remote = peer.Address
	return t.socket, nil
}

func (t *fakeTransport) Listen(serviceName string, profile uuid.UUID) (bluetooth.Listener, error) {
	t.listenName = serviceName
	t.listenProfile = profile

	if t.listenErr != nil {
		return nil, t.listenErr
	}

	return t.listener, nil
}

// fakeSocket captures written bytes.
type fakeSocket struct {
	remote bluetooth.MacAddress

	written  bytes.Buffer
	writeErr error

	input  fakeStream
	output fakeStream

	closeErr error
	closed   int
}

type fakeStream struct {
	socket   *fakeSocket
	closeErr error
	closed   int
}

func (s *fakeSocket) InputStream() io.ReadCloser {
	s.input.socket = s
	return &s.input
}

func (s *fakeSocket) OutputStream() io.WriteCloser {
	s.output.socket = s
	return &s.output
}

func (s *fakeSocket) RemoteAddress() bluetooth.MacAddress {
	return s.remote
}

func (s *fakeSocket) Close() error {
	s.closed++
	return s.closeErr
}

func (f *fakeStream) Read([]byte) (int, error) {
	return 0, nil
}

func (f *fakeStream) Write(p []byte) (int, error) {
	if f.socket.writeErr != nil {
		return 0, f.socket.writeErr
	}

	return f.socket.written.Write(p)
}

func (f *fakeStream) Close() error {
	f.closed++
	return f.closeErr
}

// fakeListener hands out the sockets queued with connect.
type fakeListener struct {
	conns chan bluetooth.Socket

	// stuck makes Close leave a pending Accept blocked until unblock.
	stuck bool

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeListener() *fakeListener {
	return &fakeListener{
		conns:  make(chan bluetooth.Socket, 1),
		closed: make(chan struct{}),
	}
}

// connect simulates an incoming connection, and returns the remote end of it.
func (l *fakeListener) connect() net.Conn {
	local, remote := net.Pipe()
	l.conns <- bluetooth.NewStreamSocket(local, "11:22:33:44:55:66")

	return remote
}

func (l *fakeListener) Accept() (bluetooth.Socket, error) {
	select {
	case socket := <-l.conns:
		return socket, nil

	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *fakeListener) Close() error {
	if !l.stuck {
		l.unblock()
	}

	return nil
}

func (l *fakeListener) unblock() {
	l.closeOnce.Do(func() { close(l.closed) })
}

// chunkRecorder records the calls made to a ChunkHandler.
type chunkRecorder struct {
	mu      sync.Mutex
	chunks  []string
	stops   int
	stopErr error
}

func (r *chunkRecorder) OnChunk(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chunks = append(r.chunks, text)
}

func (r *chunkRecorder) OnStopped(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stops++
	r.stopErr = err
}

func (r *chunkRecorder) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.chunks...)
}

func (r *chunkRecorder) stopCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stops
}

func (r *chunkRecorder) stoppedWith() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stopErr
}

func newTestManager(t testing.TB, transport bluetooth.Transport, cfg config.Configuration) *Manager {
	t.Helper()

	m, err := New(transport, cfg)
	if err != nil {
		t.Fatalf("New failed: %s", err)
	}

	t.Cleanup(func() { m.Release() })

	return m
}
