package link

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// fakeConn records written bytes. Writes fail once failAfter bytes have been
// written (when failAfter >= 0), and block while blockWrites is set.
type fakeConn struct {
	mu          sync.Mutex
	buf         bytes.Buffer
	writes      int
	failAfter   int
	blockWrites bool
	closed      bool
	closeCh     chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{failAfter: -1, closeCh: make(chan struct{})}
}

func (c *fakeConn) Read(p []byte) (int, error) { return 0, io.EOF }

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	block := c.blockWrites
	c.mu.Unlock()
	if block {
		<-c.closeCh
		return 0, errors.New("use of closed connection")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, errors.New("use of closed connection")
	}
	if c.failAfter >= 0 && c.writes >= c.failAfter {
		return 0, errors.New("broken pipe")
	}
	c.writes++
	return c.buf.Write(p)
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closeCh)
	}
	return nil
}

func (c *fakeConn) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.buf.Bytes()...)
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeDialer struct {
	mu    sync.Mutex
	conn  *fakeConn
	err   error
	hang  bool // ignore ctx and never return
	wait  bool // block until ctx is done
	dials int
}

func (d *fakeDialer) Dial(ctx context.Context, peer Peer) (io.ReadWriteCloser, error) {
	d.mu.Lock()
	d.dials++
	hang, wait, conn, err := d.hang, d.wait, d.conn, d.err
	d.mu.Unlock()

	switch {
	case hang:
		select {}
	case wait:
		<-ctx.Done()
		return nil, ctx.Err()
	case err != nil:
		return nil, err
	}
	return conn, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
