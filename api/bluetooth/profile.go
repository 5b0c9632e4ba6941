package bluetooth

import "github.com/google/uuid"

// SerialPortProfileUUID is the standard Bluetooth Serial Port Profile service ID.
const SerialPortProfileUUID = "00001101-0000-1000-8000-00805f9b34fb"

// SerialPortProfile is the parsed form of SerialPortProfileUUID. Both link
// ends rendezvous on this identifier.
var SerialPortProfile = uuid.MustParse(SerialPortProfileUUID)
