//go:build ignore
// +build ignore

// Quick check of serial port discovery
package main

import (
	"fmt"
	"os"

	"github.com/buckleypaul/doorlink/internal/serial"
)

func main() {
	ports, err := serial.ListPorts()
	if err != nil {
		fmt.Printf("❌ Port scan failed: %v\n", err)
		os.Exit(1)
	}
	if len(ports) == 0 {
		fmt.Println("❌ No serial ports found")
		os.Exit(1)
	}

	for _, p := range ports {
		kind := "serial"
		switch {
		case p.Bluetooth():
			kind = "bluetooth"
		case p.IsUSB:
			kind = fmt.Sprintf("usb %s:%s", p.VID, p.PID)
		}
		fmt.Printf("   %-24s %s\n", p.Name, kind)
	}
}
