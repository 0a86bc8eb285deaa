package link

import (
	"sync"

	"github.com/buckleypaul/doorlink/internal/lock"
)

// Listener receives link outcomes. Calls are made through the Notifier's
// executor, never from the link's worker goroutine.
type Listener interface {
	OnConnected()
	OnConnectFailed(err error)
	OnCommandResult(code lock.Command, err error)
}

// Executor runs fn on the caller's context, for example by posting it to a
// UI event loop.
type Executor func(fn func())

// Notifier turns a Link's result channels into Listener callbacks. Callbacks
// are delivered one at a time in the order the requests were made.
type Notifier struct {
	link     *Link
	listener Listener
	post     Executor

	mu   sync.Mutex
	last chan struct{}
}

// NewNotifier wires listener to l. A nil executor runs callbacks on an
// internal goroutine.
func NewNotifier(l *Link, listener Listener, post Executor) *Notifier {
	if post == nil {
		post = func(fn func()) { fn() }
	}
	return &Notifier{link: l, listener: listener, post: post}
}

// Start starts the link; OnConnected or OnConnectFailed follows exactly once.
func (n *Notifier) Start() {
	result := n.link.Start()
	n.deliver(result, func(err error) {
		if err != nil {
			n.listener.OnConnectFailed(err)
			return
		}
		n.listener.OnConnected()
	})
}

// Send queues code; OnCommandResult follows exactly once.
func (n *Notifier) Send(code lock.Command) {
	result := n.link.Send(code)
	n.deliver(result, func(err error) {
		n.listener.OnCommandResult(code, err)
	})
}

// Stop stops the link. It produces no callback.
func (n *Notifier) Stop() { n.link.Stop() }

func (n *Notifier) deliver(result <-chan error, call func(error)) {
	n.mu.Lock()
	prev := n.last
	next := make(chan struct{})
	n.last = next
	n.mu.Unlock()

	go func() {
		defer close(next)
		err := <-result
		if prev != nil {
			<-prev
		}
		delivered := make(chan struct{})
		n.post(func() {
			defer close(delivered)
			call(err)
		})
		<-delivered
	}()
}
