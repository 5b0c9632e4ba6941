package link

import (
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/serial-link/api/bluetooth"
	"github.com/bluetuith-org/serial-link/api/errorkinds"
	"go.uber.org/zap"
)

// SelectPeer selects a paired device by its exact, case-sensitive name, and
// keeps it for later use by OpenSocket. If name is empty, the first paired
// device reported by the platform is selected.
//
// The adapter is checked first; a failed selection leaves any earlier
// selection in place.
func (m *Manager) SelectPeer(name string) (bluetooth.PeerData, error) {
	if _, err := m.adapter(); err != nil {
		return bluetooth.PeerData{}, err
	}

	peers, err := m.transport.PairedPeers()
	if err != nil {
		return bluetooth.PeerData{}, wrapKind(errorkinds.ErrTransport, err,
			"select-peer", ftag.Internal, "Cannot list paired Bluetooth devices",
		)
	}

	m.log.Debug("link: paired devices", zap.Int("count", len(peers)))

	peer, ok := matchPeer(peers, name)
	if !ok {
		m.log.Debug("link: no paired device found", zap.String("name", name))

		msg := "No paired Bluetooth device was found"
		if name != "" {
			msg = "No paired Bluetooth device named '" + name + "' was found"
		}

		return bluetooth.PeerData{}, wrapKind(errorkinds.ErrNoPeerFound, nil,
			"select-peer", ftag.NotFound, msg,
		)
	}

	m.log.Info("link: using device",
		zap.String("name", peer.Name),
		zap.Stringer("address", peer.Address),
	)
	m.state.peer = &peer

	return peer, nil
}

func matchPeer(peers []bluetooth.PeerData, name string) (bluetooth.PeerData, bool) {
	for _, peer := range peers {
		if name == "" || peer.Name == name {
			return peer, true
		}
	}

	return bluetooth.PeerData{}, false
}
