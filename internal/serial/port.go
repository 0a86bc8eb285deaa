package serial

import (
	"go.bug.st/serial"
)

// DefaultBaudRate matches the factory setting of HC-05 style modules.
const DefaultBaudRate = 9600

// Open opens a serial device in 8N1 mode. The returned port carries raw
// command bytes; the lock controller never answers, so nothing reads it.
func Open(portName string, baudRate int) (serial.Port, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return serial.Open(portName, mode)
}
