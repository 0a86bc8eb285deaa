package serial

import (
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo holds details about a serial port.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
}

// Bluetooth reports whether the port is an RFCOMM binding rather than a wired adapter.
func (p PortInfo) Bluetooth() bool {
	return strings.Contains(p.Name, "rfcomm") || strings.Contains(strings.ToLower(p.Name), "bluetooth")
}

// ListPorts returns available serial ports, Bluetooth bindings first.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	var result []PortInfo
	for _, p := range ports {
		result = append(result, PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
		})
	}
	SortPorts(result)
	return result, nil
}

// SortPorts orders ports with Bluetooth bindings first, then by name.
func SortPorts(ports []PortInfo) {
	sort.SliceStable(ports, func(i, j int) bool {
		bi, bj := ports[i].Bluetooth(), ports[j].Bluetooth()
		if bi != bj {
			return bi
		}
		return ports[i].Name < ports[j].Name
	})
}
