// Package errorkinds lists the error kinds returned by the serial link manager
// and the platform transports. Use errors.Is to match them; call sites wrap
// them with additional context.
package errorkinds

import "errors"

var (
	// ErrNoAdapter is returned when the platform reports no Bluetooth adapter.
	ErrNoAdapter = errors.New("no bluetooth adapter found")

	// ErrAdapterDisabled is returned when an adapter exists but is powered off.
	ErrAdapterDisabled = errors.New("bluetooth adapter is disabled")

	// ErrNoPeerFound is returned when there are no paired peers, or none match the requested name.
	ErrNoPeerFound = errors.New("no bluetooth device found")

	// ErrConnectFailed is returned when the transport could not open a socket to the peer.
	ErrConnectFailed = errors.New("connection to device failed")

	// ErrSendFailed is returned when data could not be sent on the active link.
	ErrSendFailed = errors.New("data sending failed")

	// ErrServerBindFailed is returned when a listening endpoint could not be created.
	ErrServerBindFailed = errors.New("server socket could not be created")

	// ErrInvalidState is returned when an operation conflicts with the role already in use.
	ErrInvalidState = errors.New("operation not allowed in the current link state")

	// ErrCloseFailed is returned when one or more resources failed to close.
	ErrCloseFailed = errors.New("closing bluetooth connection failed")

	// ErrTransport is returned when the platform transport cannot be queried.
	ErrTransport = errors.New("bluetooth transport error")

	// ErrListenerClosed is returned by Accept after the listener was closed.
	ErrListenerClosed = errors.New("listener closed")
)
