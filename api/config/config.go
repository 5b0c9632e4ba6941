package config

import (
	"time"

	"github.com/bluetuith-org/serial-link/api/eventbus"
	"go.uber.org/zap"
)

const (
	// DefaultServiceName is the name advertised by the listening endpoint.
	DefaultServiceName = "Serial Link"

	// DefaultReadBufferSize is the maximum number of bytes read per chunk.
	DefaultReadBufferSize = 100

	// DefaultChunkQueueSize is the number of received chunks buffered before
	// the reader waits for the handler.
	DefaultChunkQueueSize = 16

	// The default duration Close waits for the server worker to exit.
	DefaultStopTimeout = 2 * time.Second
)

// Configuration describes the link manager configuration.
type Configuration struct {
	// ServiceName is advertised for the server endpoint.
	ServiceName string

	// ReadBufferSize holds the maximum size of a received chunk.
	ReadBufferSize int

	// ChunkQueueSize holds the capacity of the received chunk queue.
	ChunkQueueSize int

	// StopTimeout bounds how long Close waits for the server worker.
	StopTimeout time.Duration

	// Logger receives diagnostic logs. A nil Logger disables logging.
	Logger *zap.Logger

	// Events receives link state events. A nil bus disables events.
	Events *eventbus.Bus
}

// New returns a new configuration with the default values.
func New() Configuration {
	return Configuration{
		ServiceName:    DefaultServiceName,
		ReadBufferSize: DefaultReadBufferSize,
		ChunkQueueSize: DefaultChunkQueueSize,
		StopTimeout:    DefaultStopTimeout,
		Logger:         zap.NewNop(),
	}
}

// WithDefaults fills unset fields with their default values.
func (c Configuration) WithDefaults() Configuration {
	d := New()

	if c.ServiceName == "" {
		c.ServiceName = d.ServiceName
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	if c.ChunkQueueSize <= 0 {
		c.ChunkQueueSize = d.ChunkQueueSize
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = d.StopTimeout
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}

	return c
}
