package link

import (
	"fmt"
	"strconv"
	"strings"
)

// SerialPortProfile is the well-known service UUID of the Bluetooth serial port profile.
const SerialPortProfile = "00001101-0000-1000-8000-00805F9B34FB"

// Peer identifies the remote serial device. It is fixed for the lifetime of a Link.
type Peer struct {
	Name        string // human-readable device name, e.g. HC05
	Address     string // Bluetooth address, AA:BB:CC:DD:EE:FF
	Channel     uint8  // RFCOMM channel
	ServiceUUID string
	Device      string // serial device path for the serial transport, e.g. /dev/rfcomm0
}

func (p Peer) String() string {
	switch {
	case p.Address != "" && p.Name != "":
		return fmt.Sprintf("%s (%s)", p.Name, p.Address)
	case p.Address != "":
		return p.Address
	case p.Device != "":
		return p.Device
	}
	return p.Name
}

// ParseAddress converts a colon separated Bluetooth address into the
// little-endian byte order used by the kernel's bdaddr_t.
func ParseAddress(s string) ([6]byte, error) {
	var addr [6]byte
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 6 {
		return addr, fmt.Errorf("invalid bluetooth address %q", s)
	}
	for i, part := range parts {
		if len(part) != 2 {
			return addr, fmt.Errorf("invalid bluetooth address %q", s)
		}
		b, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return addr, fmt.Errorf("invalid bluetooth address %q: %w", s, err)
		}
		addr[5-i] = byte(b)
	}
	return addr, nil
}
