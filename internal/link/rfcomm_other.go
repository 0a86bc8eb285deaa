//go:build !linux

package link

import (
	"context"
	"io"
)

// RFCOMMDialer needs BlueZ sockets; use the serial transport elsewhere.
type RFCOMMDialer struct{}

func (RFCOMMDialer) Dial(ctx context.Context, peer Peer) (io.ReadWriteCloser, error) {
	return nil, ErrNotSupported
}
