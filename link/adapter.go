package link

import (
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/serial-link/api/bluetooth"
	"github.com/bluetuith-org/serial-link/api/errorkinds"
	"go.uber.org/zap"
)

// CheckAdapter checks whether there is a Bluetooth adapter on the host and
// whether it is enabled. It returns errorkinds.ErrNoAdapter or
// errorkinds.ErrAdapterDisabled respectively, and has no side effects.
func (m *Manager) CheckAdapter() error {
	_, err := m.adapter()
	return err
}

func (m *Manager) adapter() (bluetooth.AdapterData, error) {
	adapter, present, err := m.transport.Adapter()
	if err != nil {
		return adapter, wrapKind(errorkinds.ErrTransport, err,
			"check-adapter", ftag.Internal, "Cannot query the Bluetooth adapter",
		)
	}

	if !present {
		return adapter, wrapKind(errorkinds.ErrNoAdapter, nil,
			"check-adapter", ftag.NotFound, "No Bluetooth adapter was found on this device",
		)
	}

	if !adapter.Powered {
		m.log.Debug("link: adapter is powered off", zap.Stringer("address", adapter.Address))
		return adapter, wrapKind(errorkinds.ErrAdapterDisabled, nil,
			"check-adapter", ftag.InvalidArgument, "Bluetooth is disabled, enable it and try again",
		)
	}

	return adapter, nil
}
