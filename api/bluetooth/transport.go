package bluetooth

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Transport describes the primitives a platform Bluetooth stack provides to
// the link manager. Pairing and RF link establishment happen below this
// interface.
type Transport interface {
	// Adapter returns the local adapter, if present. The adapter state must be
	// queried anew on every call.
	Adapter() (adapter AdapterData, present bool, err error)

	// PairedPeers returns a snapshot of the devices bonded with the local adapter,
	// in platform order.
	PairedPeers() ([]PeerData, error)

	// Dial opens a byte-stream socket to the peer for the given service profile.
	// It blocks until the transport completes the handshake, fails, or ctx is done.
	Dial(ctx context.Context, peer PeerData, profile uuid.UUID) (Socket, error)

	// Listen binds a listening endpoint for the given service profile, and
	// advertises it as serviceName.
	Listen(serviceName string, profile uuid.UUID) (Listener, error)
}

// Socket describes an open byte-stream connection to a peer.
type Socket interface {
	// InputStream returns the stream of bytes received from the peer.
	InputStream() io.ReadCloser

	// OutputStream returns the stream of bytes sent to the peer.
	OutputStream() io.WriteCloser

	// RemoteAddress returns the address of the peer, if known.
	RemoteAddress() MacAddress

	// Close closes the socket. Pending reads and writes are unblocked.
	Close() error
}

// Listener describes a single-connection listening endpoint.
type Listener interface {
	// Accept blocks until a peer connects or the listener is closed.
	Accept() (Socket, error)

	// Close closes the listener, unblocking any pending Accept.
	Close() error
}
