package eventbus

import (
	"sync"

	"github.com/cskr/pubsub/v2"
)

// DefaultCapacity is the number of events buffered per subscriber.
const DefaultCapacity = 10

// EventID describes an event identifier that can be published on a Bus.
type EventID interface {
	Value() uint
	String() string
}

// Bus publishes events to its subscribers. A nil Bus is a disabled bus.
type Bus struct {
	ps *pubsub.PubSub[uint, any]

	closed bool
	mu     sync.RWMutex
}

// New returns a new event bus that buffers up to capacity events per subscriber.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Bus{ps: pubsub.New[uint, any](capacity)}
}

// Publish publishes an event to the subscribers of id.
// Subscribers with full buffers miss the event.
func (b *Bus) Publish(id EventID, data any) {
	if b == nil || id == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	b.ps.TryPub(data, id.Value())
}

// Subscribe subscribes to events published with id.
func (b *Bus) Subscribe(id EventID) SubscriberID {
	if b == nil || id == nil {
		return closedSubscriber()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return closedSubscriber()
	}

	ch := b.ps.Sub(id.Value())
	return SubscriberID{
		C:      ch,
		active: true,
		unsub: func() {
			b.mu.RLock()
			defer b.mu.RUnlock()

			if !b.closed {
				go b.ps.Unsub(ch, id.Value())
			}
		},
	}
}

// Shutdown closes all subscriber channels. Further publishes are dropped.
func (b *Bus) Shutdown() {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	b.ps.Shutdown()
}

func closedSubscriber() SubscriberID {
	ch := make(chan any)
	close(ch)

	return SubscriberID{C: ch}
}
