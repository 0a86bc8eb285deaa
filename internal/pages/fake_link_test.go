package pages

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/doorlink/internal/link"
	"github.com/buckleypaul/doorlink/internal/lock"
)

// fakeLink resolves Start and Send with canned results and records what
// was sent.
type fakeLink struct {
	mu        sync.Mutex
	startErr  error
	sendErr   error
	state     link.State
	sent      []lock.Command
	stopCalls int
	done      chan struct{}
}

func newFakeLink() *fakeLink {
	return &fakeLink{done: make(chan struct{})}
}

func (f *fakeLink) Start() <-chan error {
	ch := make(chan error, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		f.state = link.Failed
		close(f.done)
	} else {
		f.state = link.Connected
	}
	ch <- f.startErr
	return ch
}

func (f *fakeLink) Send(code lock.Command) <-chan error {
	ch := make(chan error, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != link.Connected {
		ch <- link.ErrNotConnected
		return ch
	}
	f.sent = append(f.sent, code)
	if f.sendErr != nil {
		f.state = link.Failed
		close(f.done)
	}
	ch <- f.sendErr
	return ch
}

func (f *fakeLink) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	if f.state == link.Connected {
		f.state = link.Closed
		close(f.done)
	}
}

func (f *fakeLink) State() link.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeLink) Done() <-chan struct{} { return f.done }

func (f *fakeLink) Sent() []lock.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]lock.Command(nil), f.sent...)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
)
