package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/buckleypaul/doorlink/internal/lock"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultWriteTimeout   = 2 * time.Second
	DefaultQueueSize      = 16
)

var (
	ErrAlreadyStarted = errors.New("link already started")
	ErrNotConnected   = errors.New("link not connected")
	ErrQueueFull      = errors.New("command queue full")
	ErrStopped        = errors.New("link stopped")
	ErrConnectTimeout = errors.New("connect timed out")
	ErrWriteTimeout   = errors.New("write timed out")
)

// Options tunes a Link. Zero values select the defaults.
type Options struct {
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	QueueSize      int
	Logger         *zerolog.Logger
}

type request struct {
	code   lock.Command
	result chan error
}

// Link owns a single outbound serial connection to one peer.
//
// All socket I/O happens on one worker goroutine created by Start. Commands
// submitted with Send are queued in a mailbox and written in submission
// order; Stop closes the mailbox so the disconnect is processed after every
// command already queued. Every request resolves exactly once through the
// channel it returns. Failures are never retried: once a link is Failed or
// Closed it stays that way and the caller builds a new one.
type Link struct {
	peer   Peer
	dialer Dialer
	opts   Options
	log    zerolog.Logger

	mu      sync.Mutex
	state   State
	started bool
	stopped bool
	cancel  context.CancelFunc
	mailbox chan request
	done    chan struct{}
}

// New creates an idle link to peer. Nothing is dialed until Start.
func New(peer Peer, dialer Dialer, opts Options) *Link {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Link{
		peer:    peer,
		dialer:  dialer,
		opts:    opts,
		log:     logger.With().Str("peer", peer.String()).Logger(),
		mailbox: make(chan request, opts.QueueSize),
		done:    make(chan struct{}),
	}
}

// Peer returns the peer this link was built for.
func (l *Link) Peer() Peer { return l.peer }

// State returns the current lifecycle state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Done is closed once the worker has exited and the connection is released.
// It never closes for a link that was not started.
func (l *Link) Done() <-chan struct{} { return l.done }

// Start begins connecting in the background. The returned channel yields
// exactly one value: nil once connected, or the reason the connect failed.
func (l *Link) Start() <-chan error {
	result := make(chan error, 1)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		result <- ErrAlreadyStarted
		return result
	}
	l.started = true
	l.setStateLocked(Connecting)

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	go l.run(ctx, result)
	return result
}

// Send queues code for transmission. The returned channel yields exactly one
// value: nil once the byte is written, otherwise the failure. Requests made
// while the link is not connected fail immediately without touching the
// transport.
func (l *Link) Send(code lock.Command) <-chan error {
	result := make(chan error, 1)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Connected {
		l.log.Warn().Stringer("code", code).Stringer("state", l.state).Msg("send rejected")
		result <- fmt.Errorf("%w (state %s)", ErrNotConnected, l.state)
		return result
	}
	select {
	case l.mailbox <- request{code: code, result: result}:
	default:
		result <- ErrQueueFull
	}
	return result
}

// Stop requests a graceful disconnect. Commands queued before Stop are still
// written and resolved. Stop is safe to call any number of times and before
// Start; extra calls do nothing.
func (l *Link) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case Connecting:
		if !l.stopped {
			l.stopped = true
			l.cancel()
		}
	case Connected:
		l.stopped = true
		l.setStateLocked(Closing)
		close(l.mailbox)
	}
}

func (l *Link) run(ctx context.Context, started chan<- error) {
	defer close(l.done)
	defer l.cancel()

	conn, err := l.dial(ctx)

	l.mu.Lock()
	if l.stopped {
		l.setStateLocked(Closed)
		l.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		started <- ErrStopped
		return
	}
	if err != nil {
		l.setStateLocked(Failed)
		l.mu.Unlock()
		l.log.Error().Err(err).Msg("connect failed")
		started <- err
		return
	}
	l.setStateLocked(Connected)
	l.mu.Unlock()
	l.log.Info().Msg("connected")
	started <- nil

	var cause error
	for req := range l.mailbox {
		if cause != nil {
			req.result <- fmt.Errorf("%w: %v", ErrNotConnected, cause)
			continue
		}
		err := l.write(conn, req.code)
		if err != nil {
			cause = err
			l.log.Error().Err(err).Stringer("code", req.code).Msg("write failed")
			conn.Close()
			l.fail()
		} else {
			l.log.Debug().Stringer("code", req.code).Msg("command written")
		}
		req.result <- err
	}

	if cause == nil {
		if err := conn.Close(); err != nil {
			l.log.Warn().Err(err).Msg("close failed")
		}
	}
	l.mu.Lock()
	if l.state == Closing {
		l.setStateLocked(Closed)
	}
	l.mu.Unlock()
	l.log.Info().Msg("disconnected")
}

// fail moves a connected link to Failed and closes the mailbox so the worker
// drains what is left. A link already closing keeps heading for Closed.
func (l *Link) fail() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Connected {
		l.setStateLocked(Failed)
		close(l.mailbox)
	}
}

func (l *Link) dial(ctx context.Context) (io.ReadWriteCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.ConnectTimeout)
	defer cancel()

	type dialResult struct {
		conn io.ReadWriteCloser
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := l.dialer.Dial(ctx, l.peer)
		ch <- dialResult{conn, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return nil, ErrConnectTimeout
			}
			return nil, r.err
		}
		return r.conn, nil
	case <-ctx.Done():
		// A dialer that ignores ctx may still hand back a connection later.
		go func() {
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrConnectTimeout
		}
		return nil, ctx.Err()
	}
}

func (l *Link) write(w io.Writer, code lock.Command) error {
	errc := make(chan error, 1)
	go func() {
		n, err := w.Write([]byte{code.Byte()})
		if err == nil && n != 1 {
			err = io.ErrShortWrite
		}
		errc <- err
	}()

	timer := time.NewTimer(l.opts.WriteTimeout)
	defer timer.Stop()

	select {
	case err := <-errc:
		return err
	case <-timer.C:
		return ErrWriteTimeout
	}
}

func (l *Link) setStateLocked(s State) {
	if l.state == s {
		return
	}
	l.log.Debug().Stringer("from", l.state).Stringer("to", s).Msg("link state changed")
	l.state = s
}
