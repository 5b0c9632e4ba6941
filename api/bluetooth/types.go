package bluetooth

import "strings"

// MacAddress holds the Bluetooth address of an adapter or device.
type MacAddress string

// String converts a MacAddress to its canonical (upper-case) string form.
func (m MacAddress) String() string {
	return strings.ToUpper(string(m))
}

// AdapterData describes the local Bluetooth adapter.
type AdapterData struct {
	Address MacAddress `json:"address,omitempty"`
	Name    string     `json:"name,omitempty"`
	Powered bool       `json:"powered"`
}

// PeerData describes a device that is already paired with the local adapter.
type PeerData struct {
	Name    string     `json:"name,omitempty"`
	Address MacAddress `json:"address,omitempty"`

	// Path is the platform-specific handle of the device, for example the
	// BlueZ object path. It may be empty.
	Path string `json:"path,omitempty"`
}
