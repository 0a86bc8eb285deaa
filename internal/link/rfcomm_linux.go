//go:build linux

package link

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// RFCOMMDialer connects directly to the peer over a BlueZ RFCOMM socket.
// The peer must already be paired; the channel comes from the peer record.
type RFCOMMDialer struct{}

func (RFCOMMDialer) Dial(ctx context.Context, peer Peer) (io.ReadWriteCloser, error) {
	addr, err := ParseAddress(peer.Address)
	if err != nil {
		return nil, err
	}
	channel := peer.Channel
	if channel == 0 {
		channel = 1
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, fmt.Errorf("rfcomm socket: %w", err)
	}

	err = unix.Connect(fd, &unix.SockaddrRFCOMM{Addr: addr, Channel: channel})
	if err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return nil, fmt.Errorf("rfcomm connect %s: %w", peer, err)
	}
	if err == unix.EINPROGRESS {
		if err := waitConnected(ctx, fd); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("rfcomm connect %s: %w", peer, err)
		}
	}

	// The fd is non-blocking, so the returned file is driven by the runtime poller.
	return os.NewFile(uintptr(fd), "rfcomm:"+peer.Address), nil
}

func waitConnected(ctx context.Context, fd int) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		n, err := unix.Poll(fds, 100)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			return err
		}
		if soerr != 0 {
			return unix.Errno(soerr)
		}
		return nil
	}
}
