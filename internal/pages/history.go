package pages

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wrap"

	"github.com/buckleypaul/doorlink/internal/app"
	"github.com/buckleypaul/doorlink/internal/store"
	"github.com/buckleypaul/doorlink/internal/ui"
)

type historyView int

const (
	viewCommands historyView = iota
	viewSessions
	viewRejected
	viewCount
)

func (v historyView) String() string {
	switch v {
	case viewCommands:
		return "Commands"
	case viewSessions:
		return "Sessions"
	case viewRejected:
		return "Rejected"
	}
	return "?"
}

type historyLoadedMsg struct {
	commands []store.CommandRecord
	sessions []store.SessionRecord
	rejected []store.RejectedRecord
	err      error
}

type HistoryPage struct {
	store    *store.Store
	view     historyView
	commands []store.CommandRecord
	sessions []store.SessionRecord
	rejected []store.RejectedRecord
	err      error
	viewport viewport.Model

	width, height int
}

func NewHistoryPage(s *store.Store) *HistoryPage {
	return &HistoryPage{
		store:    s,
		viewport: viewport.New(0, 0),
	}
}

func (p *HistoryPage) Init() tea.Cmd { return p.load }

func (p *HistoryPage) load() tea.Msg {
	var msg historyLoadedMsg
	if p.store == nil {
		return msg
	}
	if msg.commands, msg.err = p.store.Commands(); msg.err != nil {
		return msg
	}
	if msg.sessions, msg.err = p.store.Sessions(); msg.err != nil {
		return msg
	}
	msg.rejected, msg.err = p.store.Rejected()
	return msg
}

func (p *HistoryPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.HistoryChangedMsg:
		return p, p.load

	case historyLoadedMsg:
		p.err = msg.err
		if msg.err == nil {
			p.commands = msg.commands
			p.sessions = msg.sessions
			p.rejected = msg.rejected
		}
		p.updateViewportContent()
		return p, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "t":
			p.view = (p.view + 1) % viewCount
			p.updateViewportContent()
			p.viewport.GotoTop()
			return p, nil
		case "r":
			return p, p.load
		}
		var cmd tea.Cmd
		p.viewport, cmd = p.viewport.Update(msg)
		return p, cmd
	}
	return p, nil
}

func (p *HistoryPage) render() string {
	var b strings.Builder
	if p.err != nil {
		return ui.Toast(fmt.Sprintf("Error loading history: %v", p.err), true)
	}

	// Newest first.
	switch p.view {
	case viewCommands:
		if len(p.commands) == 0 {
			return ui.DimStyle.Render("No commands sent yet")
		}
		for i := len(p.commands) - 1; i >= 0; i-- {
			r := p.commands[i]
			status := ui.Toast("ok", false)
			if !r.Success {
				status = ui.Toast("failed", true)
			}
			fmt.Fprintf(&b, "%s  %-6s 0x%02x  %s  %s  %s\n",
				r.Timestamp.Format("2006-01-02 15:04:05"), r.Command, r.Code, status, r.Duration, r.Peer)
			if r.Error != "" {
				b.WriteString(ui.DimStyle.Render("    " + r.Error))
				b.WriteString("\n")
			}
		}
	case viewSessions:
		if len(p.sessions) == 0 {
			return ui.DimStyle.Render("No connection attempts yet")
		}
		for i := len(p.sessions) - 1; i >= 0; i-- {
			r := p.sessions[i]
			status := ui.Toast("connected", false)
			if !r.Connected {
				status = ui.Toast("failed", true)
			}
			fmt.Fprintf(&b, "%s  %-7s %s  %s  %s\n",
				r.Timestamp.Format("2006-01-02 15:04:05"), r.Transport, status, r.Duration, r.Peer)
			if r.Error != "" {
				b.WriteString(ui.DimStyle.Render("    " + r.Error))
				b.WriteString("\n")
			}
		}
	case viewRejected:
		if len(p.rejected) == 0 {
			return ui.DimStyle.Render("No rejected attempts")
		}
		for i := len(p.rejected) - 1; i >= 0; i-- {
			r := p.rejected[i]
			fmt.Fprintf(&b, "%s  %-14s %q\n",
				r.Timestamp.Format("2006-01-02 15:04:05"), r.Reason, r.Phrase)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *HistoryPage) updateViewportContent() {
	content := p.render()
	if p.viewport.Width <= 0 {
		p.viewport.SetContent(content)
		return
	}
	wrapped := wrap.String(content, p.viewport.Width)
	lines := strings.Split(wrapped, "\n")
	for i, line := range lines {
		if ansi.PrintableRuneWidth(line) > p.viewport.Width {
			lines[i] = truncate.String(line, uint(p.viewport.Width))
		}
	}
	p.viewport.SetContent(strings.Join(lines, "\n"))
}

func (p *HistoryPage) View() string {
	var tabs []string
	for v := historyView(0); v < viewCount; v++ {
		if v == p.view {
			tabs = append(tabs, ui.BoldStyle.Render("["+v.String()+"]"))
		} else {
			tabs = append(tabs, ui.DimStyle.Render(" "+v.String()+" "))
		}
	}
	body := strings.Join(tabs, " ") + "\n\n" + p.viewport.View()
	return ui.Panel("History", body, p.width, 0, false)
}

func (p *HistoryPage) Name() string { return "History" }

func (p *HistoryPage) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "switch view")),
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "scroll")),
	}
}

func (p *HistoryPage) SetSize(w, h int) {
	p.width = w
	p.height = h
	p.viewport.Width = w - 4
	p.viewport.Height = h - 5
	if p.viewport.Height < 1 {
		p.viewport.Height = 1
	}
	p.updateViewportContent()
}
