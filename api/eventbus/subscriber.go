package eventbus

// SubscriberID holds the event channel of a subscription.
type SubscriberID struct {
	C <-chan any

	active bool
	unsub  func()
}

// IsActive reports whether the subscription is receiving events.
func (s SubscriberID) IsActive() bool {
	return s.active
}

// Unsubscribe ends the subscription. The channel is closed asynchronously.
func (s *SubscriberID) Unsubscribe() {
	if !s.active || s.unsub == nil {
		return
	}

	s.active = false
	s.unsub()
}
