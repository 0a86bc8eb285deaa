package link

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/buckleypaul/doorlink/internal/serial"
)

// ErrNotSupported is returned by dialers that cannot run on this platform.
var ErrNotSupported = errors.New("transport not supported on this platform")

const (
	TransportRFCOMM = "rfcomm"
	TransportSerial = "serial"
)

// Dialer opens the byte stream to a peer. Dial should honor ctx; the link
// bounds the attempt with its connect timeout either way.
type Dialer interface {
	Dial(ctx context.Context, peer Peer) (io.ReadWriteCloser, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, peer Peer) (io.ReadWriteCloser, error)

func (f DialerFunc) Dial(ctx context.Context, peer Peer) (io.ReadWriteCloser, error) {
	return f(ctx, peer)
}

// SerialDialer opens a serial device that is already bound to the peer,
// such as /dev/rfcomm0 created by `rfcomm bind` or a USB serial adapter.
type SerialDialer struct {
	BaudRate int
}

func (d SerialDialer) Dial(ctx context.Context, peer Peer) (io.ReadWriteCloser, error) {
	if peer.Device == "" {
		return nil, fmt.Errorf("serial transport: no device configured for %s", peer)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	port, err := serial.Open(peer.Device, d.BaudRate)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", peer.Device, err)
	}
	return port, nil
}

// NewDialer returns the dialer for a transport name.
func NewDialer(transport string, baudRate int) (Dialer, error) {
	switch transport {
	case TransportRFCOMM, "":
		return RFCOMMDialer{}, nil
	case TransportSerial:
		return SerialDialer{BaudRate: baudRate}, nil
	}
	return nil, fmt.Errorf("unknown transport %q", transport)
}
