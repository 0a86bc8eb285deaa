package link

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/buckleypaul/doorlink/internal/lock"
)

var testPeer = Peer{Name: "HC05", Address: "98:D3:31:F5:12:34", Channel: 1, ServiceUUID: SerialPortProfile}

func recv(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
		return nil
	}
}

func waitDone(t *testing.T, l *Link) {
	t.Helper()
	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker to exit")
	}
}

func assertNoValue(t *testing.T, ch <-chan error) {
	t.Helper()
	select {
	case err := <-ch:
		t.Fatalf("expected exactly one result, got a second: %v", err)
	default:
	}
}

func TestLinkSendsCommandAndStops(t *testing.T) {
	conn := newFakeConn()
	l := New(testPeer, &fakeDialer{conn: conn}, Options{})

	if l.State() != Idle {
		t.Fatalf("expected idle, got %s", l.State())
	}
	start := l.Start()
	if err := recv(t, start); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	assertNoValue(t, start)
	if l.State() != Connected {
		t.Fatalf("expected connected, got %s", l.State())
	}

	sent := l.Send(lock.Open)
	if err := recv(t, sent); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	assertNoValue(t, sent)

	l.Stop()
	waitDone(t, l)

	if got := conn.Bytes(); len(got) != 1 || got[0] != 0x31 {
		t.Fatalf("expected transport to receive 0x31, got %x", got)
	}
	if !conn.Closed() {
		t.Fatal("expected connection to be closed after stop")
	}
	if l.State() != Closed {
		t.Fatalf("expected closed, got %s", l.State())
	}
}

func TestLinkPreservesSubmissionOrder(t *testing.T) {
	conn := newFakeConn()
	l := New(testPeer, &fakeDialer{conn: conn}, Options{QueueSize: 64})
	if err := recv(t, l.Start()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var want []byte
	var results []<-chan error
	for i := 0; i < 40; i++ {
		code := lock.Open
		if i%3 == 0 {
			code = lock.Close
		}
		want = append(want, code.Byte())
		results = append(results, l.Send(code))
	}
	l.Stop()

	for i, ch := range results {
		if err := recv(t, ch); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		assertNoValue(t, ch)
	}
	waitDone(t, l)

	got := conn.Bytes()
	if string(got) != string(want) {
		t.Fatalf("bytes out of order:\n got  %x\n want %x", got, want)
	}
}

func TestLinkConcurrentSendersEachGetOneResult(t *testing.T) {
	conn := newFakeConn()
	l := New(testPeer, &fakeDialer{conn: conn}, Options{QueueSize: 128})
	if err := recv(t, l.Start()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	okCount := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if err := <-l.Send(lock.Close); err == nil {
					mu.Lock()
					okCount++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	l.Stop()
	waitDone(t, l)

	if okCount != 80 {
		t.Fatalf("expected 80 successful sends, got %d", okCount)
	}
	if n := len(conn.Bytes()); n != 80 {
		t.Fatalf("expected 80 bytes on the wire, got %d", n)
	}
}

func TestLinkStopIsIdempotent(t *testing.T) {
	never := New(testPeer, &fakeDialer{conn: newFakeConn()}, Options{})
	never.Stop()
	never.Stop()
	if never.State() != Idle {
		t.Fatalf("expected stop before start to be a no-op, got %s", never.State())
	}

	conn := newFakeConn()
	l := New(testPeer, &fakeDialer{conn: conn}, Options{})
	if err := recv(t, l.Start()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	l.Stop()
	l.Stop()
	waitDone(t, l)
	l.Stop()

	if l.State() != Closed {
		t.Fatalf("expected closed, got %s", l.State())
	}
}

func TestLinkStopWhileConnectingCancelsDial(t *testing.T) {
	d := &fakeDialer{wait: true}
	l := New(testPeer, d, Options{ConnectTimeout: time.Minute})

	start := l.Start()
	for d.Dials() == 0 {
		time.Sleep(time.Millisecond)
	}
	l.Stop()
	l.Stop()

	if err := recv(t, start); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	assertNoValue(t, start)
	waitDone(t, l)
	if l.State() != Closed {
		t.Fatalf("expected closed, got %s", l.State())
	}
}

func TestLinkStartTwiceIsRejected(t *testing.T) {
	d := &fakeDialer{conn: newFakeConn()}
	l := New(testPeer, d, Options{})
	if err := recv(t, l.Start()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := recv(t, l.Start()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
	if d.Dials() != 1 {
		t.Fatalf("expected a single dial, got %d", d.Dials())
	}
	l.Stop()
	waitDone(t, l)
}

func TestLinkConnectFailureIsFailClosed(t *testing.T) {
	d := &fakeDialer{err: errors.New("host is down")}
	l := New(testPeer, d, Options{})

	start := l.Start()
	if err := recv(t, start); err == nil {
		t.Fatal("expected connect failure")
	}
	assertNoValue(t, start)
	waitDone(t, l)

	if l.State() != Failed {
		t.Fatalf("expected failed, got %s", l.State())
	}
	if err := recv(t, l.Send(lock.Open)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	l.Stop()
	if l.State() != Failed {
		t.Fatalf("expected stop on failed link to be a no-op, got %s", l.State())
	}
}

func TestLinkConnectTimeout(t *testing.T) {
	l := New(testPeer, &fakeDialer{hang: true}, Options{ConnectTimeout: 20 * time.Millisecond})

	if err := recv(t, l.Start()); !errors.Is(err, ErrConnectTimeout) {
		t.Fatalf("expected ErrConnectTimeout, got %v", err)
	}
	waitDone(t, l)
	if l.State() != Failed {
		t.Fatalf("expected failed, got %s", l.State())
	}
}

func TestLinkSendBeforeConnectedFails(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{wait: true}
	l := New(testPeer, d, Options{ConnectTimeout: time.Minute})

	if err := recv(t, l.Send(lock.Open)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected before start, got %v", err)
	}

	start := l.Start()
	if err := recv(t, l.Send(lock.Open)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected while connecting, got %v", err)
	}
	l.Stop()
	recv(t, start)
	waitDone(t, l)

	if len(conn.Bytes()) != 0 {
		t.Fatal("expected transport to be untouched")
	}
}

func TestLinkWriteFailureFailsLink(t *testing.T) {
	conn := newFakeConn()
	conn.failAfter = 1
	l := New(testPeer, &fakeDialer{conn: conn}, Options{})
	if err := recv(t, l.Start()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	first := l.Send(lock.Open)
	second := l.Send(lock.Close)
	third := l.Send(lock.Open)

	if err := recv(t, first); err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if err := recv(t, second); err == nil {
		t.Fatal("expected second send to fail")
	}
	if err := recv(t, third); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected queued send after failure to be rejected, got %v", err)
	}
	waitDone(t, l)

	if l.State() != Failed {
		t.Fatalf("expected failed, got %s", l.State())
	}
	if !conn.Closed() {
		t.Fatal("expected connection closed after write failure")
	}
	if err := recv(t, l.Send(lock.Open)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if got := conn.Bytes(); len(got) != 1 {
		t.Fatalf("expected only the first byte on the wire, got %x", got)
	}
}

func TestLinkWriteTimeout(t *testing.T) {
	conn := newFakeConn()
	conn.blockWrites = true
	l := New(testPeer, &fakeDialer{conn: conn}, Options{WriteTimeout: 20 * time.Millisecond})
	if err := recv(t, l.Start()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := recv(t, l.Send(lock.Open)); !errors.Is(err, ErrWriteTimeout) {
		t.Fatalf("expected ErrWriteTimeout, got %v", err)
	}
	waitDone(t, l)
	if l.State() != Failed {
		t.Fatalf("expected failed, got %s", l.State())
	}
}

func TestLinkQueueFull(t *testing.T) {
	conn := newFakeConn()
	conn.blockWrites = true
	l := New(testPeer, &fakeDialer{conn: conn}, Options{QueueSize: 1, WriteTimeout: time.Minute})
	if err := recv(t, l.Start()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	inflight := l.Send(lock.Open)
	// Wait until the worker has taken the first request off the mailbox.
	deadline := time.Now().Add(2 * time.Second)
	for len(l.mailbox) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	queued := l.Send(lock.Close)
	if err := recv(t, l.Send(lock.Close)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	l.Stop()
	conn.Close()
	recv(t, inflight)
	recv(t, queued)
	waitDone(t, l)
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{Idle, Connecting, Connected, Closing} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []State{Closed, Failed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("98:D3:31:F5:12:34")
	if err != nil {
		t.Fatalf("ParseAddress failed: %v", err)
	}
	want := [6]byte{0x34, 0x12, 0xF5, 0x31, 0xD3, 0x98}
	if addr != want {
		t.Fatalf("expected little-endian %x, got %x", want, addr)
	}

	for _, bad := range []string{"", "98:D3:31:F5:12", "98:D3:31:F5:12:3G", "98D331F51234"} {
		if _, err := ParseAddress(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
