package link

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/bluetuith-org/serial-link/api/bluetooth"
)

type role int

const (
	roleIdle role = iota
	roleClient
	roleServer
)

// connectionState holds everything a Manager owns. Only the server
// endpoint's stop flag and accepted socket are shared with the worker.
type connectionState struct {
	role role

	peer *bluetooth.PeerData
	link *activeLink

	server *serverEndpoint
}

// activeLink is the live client connection.
type activeLink struct {
	socket bluetooth.Socket
	input  io.ReadCloser
	output io.WriteCloser
}

// serverEndpoint is the listening socket and the state needed to stop its worker.
type serverEndpoint struct {
	listener bluetooth.Listener

	stop  atomic.Bool
	phase atomic.Value // bluetooth.LinkState

	mu       sync.Mutex
	accepted bluetooth.Socket

	chunks chan string
	quit   chan struct{}
	done   chan struct{}

	// err is written by the worker before chunks is closed.
	err error
}

func newServerEndpoint(listener bluetooth.Listener, queueSize int) *serverEndpoint {
	ep := &serverEndpoint{
		listener: listener,
		chunks:   make(chan string, queueSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	ep.phase.Store(bluetooth.LinkServerListening)

	return ep
}

func (ep *serverEndpoint) stopped() bool {
	return ep.stop.Load()
}

func (ep *serverEndpoint) setPhase(state bluetooth.LinkState) {
	ep.phase.Store(state)
}

func (ep *serverEndpoint) currentPhase() bluetooth.LinkState {
	return ep.phase.Load().(bluetooth.LinkState)
}

// setAccepted records the accepted socket, unless the endpoint was stopped
// in the meantime.
func (ep *serverEndpoint) setAccepted(socket bluetooth.Socket) bool {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.stopped() {
		return false
	}

	ep.accepted = socket
	return true
}

func (ep *serverEndpoint) closeAccepted() error {
	ep.mu.Lock()
	socket := ep.accepted
	ep.mu.Unlock()

	if socket == nil {
		return nil
	}

	return socket.Close()
}
