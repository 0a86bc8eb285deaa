package lock

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is a single-byte instruction understood by the lock controller.
// It is written raw to the serial stream with no framing.
type Command byte

const (
	Open  Command = 49 // '1'
	Close Command = 50 // '2'
)

func (c Command) String() string {
	switch c {
	case Open:
		return "open"
	case Close:
		return "close"
	}
	return fmt.Sprintf("command(%d)", byte(c))
}

// Byte returns the wire form of the command.
func (c Command) Byte() byte { return byte(c) }

// ParseCommand accepts a command name ("open", "close") or a decimal byte value.
func ParseCommand(s string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return Open, nil
	case "close":
		return Close, nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown command %q", s)
	}
	return Command(n), nil
}

// MarshalText encodes known commands by name and others by value.
func (c Command) MarshalText() ([]byte, error) {
	if c == Open || c == Close {
		return []byte(c.String()), nil
	}
	return []byte(strconv.Itoa(int(c))), nil
}

func (c *Command) UnmarshalText(b []byte) error {
	parsed, err := ParseCommand(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
