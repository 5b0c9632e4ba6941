package bluetooth

import (
	"io"
	"sync"
	"sync/atomic"
)

// streamSocket adapts a full-duplex connection into a Socket whose
// streams can be closed independently of the connection itself.
type streamSocket struct {
	rwc    io.ReadWriteCloser
	remote MacAddress

	input  inputStream
	output outputStream

	once sync.Once
	err  error
}

type inputStream struct {
	r      io.Reader
	closed atomic.Bool
}

type outputStream struct {
	w      io.Writer
	closed atomic.Bool
}

// NewStreamSocket returns a Socket backed by rwc, which is typically an
// RFCOMM file descriptor or one end of an in-memory pipe.
func NewStreamSocket(rwc io.ReadWriteCloser, remote MacAddress) Socket {
	s := &streamSocket{rwc: rwc, remote: remote}
	s.input.r = rwc
	s.output.w = rwc

	return s
}

// InputStream returns the receiving half of the socket.
func (s *streamSocket) InputStream() io.ReadCloser {
	return &s.input
}

// OutputStream returns the sending half of the socket.
func (s *streamSocket) OutputStream() io.WriteCloser {
	return &s.output
}

// RemoteAddress returns the peer address.
func (s *streamSocket) RemoteAddress() MacAddress {
	return s.remote
}

// Close closes the underlying connection. Repeated calls return the result
// of the first one.
func (s *streamSocket) Close() error {
	s.once.Do(func() {
		s.input.closed.Store(true)
		s.output.closed.Store(true)
		s.err = s.rwc.Close()
	})

	return s.err
}

func (i *inputStream) Read(p []byte) (int, error) {
	if i.closed.Load() {
		return 0, io.ErrClosedPipe
	}

	return i.r.Read(p)
}

func (i *inputStream) Close() error {
	i.closed.Store(true)
	return nil
}

func (o *outputStream) Write(p []byte) (int, error) {
	if o.closed.Load() {
		return 0, io.ErrClosedPipe
	}

	return o.w.Write(p)
}

func (o *outputStream) Close() error {
	o.closed.Store(true)
	return nil
}
