package bluetooth

// EventID describes the ID of a link event.
type EventID uint

const (
	EventNone EventID = iota
	EventLinkState
)

// Value returns the numeric value of the event ID.
func (e EventID) Value() uint {
	return uint(e)
}

// String converts an EventID to a string.
func (e EventID) String() string {
	switch e {
	case EventLinkState:
		return "link_state"
	}

	return "none"
}

// LinkState describes the state of the link manager.
type LinkState string

const (
	LinkIdle            LinkState = "idle"
	LinkConnecting      LinkState = "connecting"
	LinkClientConnected LinkState = "client-connected"
	LinkServerListening LinkState = "server-listening"
	LinkServerReading   LinkState = "server-reading"
	LinkServerStopped   LinkState = "server-stopped"
)

// String converts a LinkState to a string.
func (l LinkState) String() string {
	return string(l)
}

// LinkEventData describes a link state change.
type LinkEventData struct {
	State LinkState `json:"state"`
	Peer  PeerData  `json:"peer,omitempty"`
	Error string    `json:"error,omitempty"`
}
