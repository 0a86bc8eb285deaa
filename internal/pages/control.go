package pages

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/buckleypaul/doorlink/internal/app"
	"github.com/buckleypaul/doorlink/internal/auth"
	"github.com/buckleypaul/doorlink/internal/config"
	"github.com/buckleypaul/doorlink/internal/keypad"
	"github.com/buckleypaul/doorlink/internal/link"
	"github.com/buckleypaul/doorlink/internal/lock"
	"github.com/buckleypaul/doorlink/internal/store"
	"github.com/buckleypaul/doorlink/internal/ui"
)

// Link is the part of *link.Link the control page drives.
type Link interface {
	Start() <-chan error
	Send(code lock.Command) <-chan error
	Stop()
	State() link.State
	Done() <-chan struct{}
}

// LinkFactory builds a fresh link from the current config. A link is never
// restarted, so every connect asks for a new one.
type LinkFactory func() (Link, error)

type connectResultMsg struct {
	gen int
	err error
}

type commandResultMsg struct {
	gen  int
	code lock.Command
	err  error
	took time.Duration
}

type linkClosedMsg struct {
	gen   int
	state link.State
}

const maxActivity = 8

type ControlPage struct {
	cfg     *config.Config
	store   *store.Store
	newLink LinkFactory
	logger  zerolog.Logger

	policy    *auth.Policy
	policyErr error

	link         Link
	gen          int
	state        link.State
	connectStart time.Time

	phrase  textinput.Model
	keypad  *keypad.Model
	pending lock.Command
	said    string
	sending bool
	sentAt  time.Time

	activity []string
	message  string
	isErr    bool

	width, height int
}

func NewControlPage(cfg *config.Config, s *store.Store, newLink LinkFactory, logger zerolog.Logger) *ControlPage {
	ti := textinput.New()
	ti.Placeholder = "say \"open door\" or \"close door\""
	ti.CharLimit = 64
	ti.Prompt = "phrase> "

	p := &ControlPage{
		cfg:     cfg,
		store:   s,
		newLink: newLink,
		logger:  logger.With().Str("component", "control").Logger(),
		phrase:  ti,
		keypad:  keypad.New(len(cfg.PIN)),
	}
	p.loadPolicy()
	return p
}

func (p *ControlPage) loadPolicy() {
	p.policy, p.policyErr = p.cfg.Policy()
	if p.policy != nil {
		p.keypad.SetLength(p.policy.PINLength())
	}
}

func (p *ControlPage) Init() tea.Cmd { return nil }

func (p *ControlPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.ConfigChangedMsg:
		p.loadPolicy()
		if p.policyErr != nil {
			p.setMessage(fmt.Sprintf("Config error: %v", p.policyErr), true)
		}
		return p, nil

	case connectResultMsg:
		if msg.gen != p.gen {
			return p, nil
		}
		return p, p.handleConnectResult(msg)

	case commandResultMsg:
		if msg.gen != p.gen {
			return p, nil
		}
		return p, p.handleCommandResult(msg)

	case linkClosedMsg:
		if msg.gen != p.gen {
			return p, nil
		}
		p.state = msg.state
		p.link = nil
		p.addActivity(fmt.Sprintf("link %s", msg.state))
		return p, nil

	case keypad.PINEnteredMsg:
		return p, p.handlePIN(msg.PIN)

	case keypad.PINCancelledMsg:
		p.setMessage("PIN entry cancelled", false)
		return p, nil

	case tea.KeyMsg:
		return p.handleKey(msg)
	}

	if p.phrase.Focused() {
		var cmd tea.Cmd
		p.phrase, cmd = p.phrase.Update(msg)
		return p, cmd
	}
	return p, nil
}

func (p *ControlPage) handleKey(msg tea.KeyMsg) (app.Page, tea.Cmd) {
	if p.keypad.Active() {
		var cmd tea.Cmd
		p.keypad, cmd = p.keypad.Update(msg)
		return p, cmd
	}

	if p.phrase.Focused() {
		switch msg.String() {
		case "enter":
			said := strings.TrimSpace(p.phrase.Value())
			p.phrase.SetValue("")
			p.phrase.Blur()
			if said == "" {
				return p, nil
			}
			return p, p.handlePhrase(said)
		case "esc":
			p.phrase.Blur()
			return p, nil
		}
		var cmd tea.Cmd
		p.phrase, cmd = p.phrase.Update(msg)
		return p, cmd
	}

	switch msg.String() {
	case "c":
		return p, p.connect()
	case "d":
		return p, p.disconnect()
	case "enter", "i":
		if p.state != link.Connected {
			p.setMessage("Not connected: press c to connect", true)
			return p, nil
		}
		return p, p.phrase.Focus()
	}
	return p, nil
}

func (p *ControlPage) connect() tea.Cmd {
	if p.link != nil && !p.link.State().Terminal() {
		p.setMessage("Already connected", false)
		return nil
	}
	if err := p.cfg.Validate(); err != nil {
		p.setMessage(fmt.Sprintf("Config error: %v", err), true)
		return nil
	}
	l, err := p.newLink()
	if err != nil {
		p.setMessage(fmt.Sprintf("Cannot create link: %v", err), true)
		return nil
	}

	p.gen++
	p.link = l
	p.state = link.Connecting
	p.connectStart = time.Now()
	p.setMessage("Connecting to "+p.target()+"...", false)
	p.logger.Info().Str("peer", p.target()).Msg("connect requested")

	gen := p.gen
	result := l.Start()
	return func() tea.Msg {
		return connectResultMsg{gen: gen, err: <-result}
	}
}

func (p *ControlPage) disconnect() tea.Cmd {
	if p.link == nil {
		return nil
	}
	p.link.Stop()
	p.state = link.Closing
	p.setMessage("Disconnecting...", false)
	return p.waitClosed()
}

func (p *ControlPage) waitClosed() tea.Cmd {
	l, gen := p.link, p.gen
	return func() tea.Msg {
		<-l.Done()
		return linkClosedMsg{gen: gen, state: l.State()}
	}
}

func (p *ControlPage) handleConnectResult(msg connectResultMsg) tea.Cmd {
	took := time.Since(p.connectStart)
	rec := store.SessionRecord{
		Peer:      p.target(),
		Transport: p.cfg.Transport,
		Timestamp: p.connectStart,
		Connected: msg.err == nil,
		Duration:  took.Round(time.Millisecond).String(),
	}

	if msg.err != nil {
		rec.Error = msg.err.Error()
		p.recordSession(rec)
		p.logger.Warn().Err(msg.err).Msg("connect failed")
		if errors.Is(msg.err, link.ErrStopped) {
			// disconnect is already waiting for the worker.
			p.setMessage("Connect cancelled", false)
			return historyChanged
		}
		p.setMessage(fmt.Sprintf("Connect failed: %v", msg.err), true)
		p.addActivity("connect failed")
		return tea.Batch(p.waitClosed(), historyChanged)
	}

	p.recordSession(rec)
	p.state = link.Connected
	p.setMessage("Connected to "+p.target(), false)
	p.addActivity("connected")
	return tea.Batch(p.phrase.Focus(), historyChanged)
}

func (p *ControlPage) handlePhrase(said string) tea.Cmd {
	if p.policy == nil {
		p.setMessage(fmt.Sprintf("Config error: %v", p.policyErr), true)
		return nil
	}
	code, err := p.policy.Match(said)
	if err != nil {
		p.reject(said, err)
		return historyChanged
	}
	p.pending = code
	p.said = said
	p.keypad.Open()
	p.setMessage(fmt.Sprintf("Enter PIN to %s", code), false)
	return nil
}

func (p *ControlPage) handlePIN(pin string) tea.Cmd {
	if p.policy == nil {
		return nil
	}
	if err := p.policy.VerifyPIN(pin); err != nil {
		p.reject(p.said, err)
		return historyChanged
	}
	if p.link == nil || p.state != link.Connected {
		p.setMessage("Not connected: press c to connect", true)
		return nil
	}

	code, gen := p.pending, p.gen
	p.sending = true
	p.sentAt = time.Now()
	p.setMessage(fmt.Sprintf("Sending %s...", code), false)
	p.logger.Info().Stringer("command", code).Msg("command authorized")

	result := p.link.Send(code)
	start := p.sentAt
	return func() tea.Msg {
		err := <-result
		return commandResultMsg{gen: gen, code: code, err: err, took: time.Since(start)}
	}
}

func (p *ControlPage) handleCommandResult(msg commandResultMsg) tea.Cmd {
	p.sending = false
	rec := store.CommandRecord{
		Command:   msg.code.String(),
		Code:      msg.code.Byte(),
		Peer:      p.target(),
		Timestamp: p.sentAt,
		Success:   msg.err == nil,
		Duration:  msg.took.Round(time.Millisecond).String(),
	}
	if msg.err == nil {
		p.recordCommand(rec)
		p.setMessage(fmt.Sprintf("Door command %q sent", msg.code), false)
		p.addActivity(fmt.Sprintf("sent %s (0x%02x)", msg.code, msg.code.Byte()))
		return tea.Batch(p.phrase.Focus(), historyChanged)
	}

	rec.Error = msg.err.Error()
	p.recordCommand(rec)
	p.logger.Error().Err(msg.err).Stringer("command", msg.code).Msg("send failed")
	p.setMessage(fmt.Sprintf("Send failed: %v. Reconnect with c", msg.err), true)
	p.addActivity(fmt.Sprintf("%s failed", msg.code))

	// The link does not recover from a failed write.
	if p.link == nil {
		return historyChanged
	}
	p.link.Stop()
	return tea.Batch(p.waitClosed(), historyChanged)
}

func (p *ControlPage) reject(said string, err error) {
	reason := "Unknown command"
	if errors.Is(err, auth.ErrIncorrectPIN) {
		reason = "Incorrect PIN"
	}
	p.setMessage(reason, true)
	p.addActivity(strings.ToLower(reason))
	p.logger.Warn().Str("phrase", said).Str("reason", reason).Msg("authorization refused")
	if p.store != nil {
		if err := p.store.AddRejected(store.RejectedRecord{
			Phrase:    said,
			Reason:    reason,
			Timestamp: time.Now(),
		}); err != nil {
			p.logger.Error().Err(err).Msg("record rejection")
		}
	}
}

func (p *ControlPage) recordSession(r store.SessionRecord) {
	if p.store == nil {
		return
	}
	if err := p.store.AddSession(r); err != nil {
		p.logger.Error().Err(err).Msg("record session")
	}
}

func (p *ControlPage) recordCommand(r store.CommandRecord) {
	if p.store == nil {
		return
	}
	if err := p.store.AddCommand(r); err != nil {
		p.logger.Error().Err(err).Msg("record command")
	}
}

func historyChanged() tea.Msg { return app.HistoryChangedMsg{} }

func (p *ControlPage) setMessage(s string, isErr bool) {
	p.message = s
	p.isErr = isErr
}

func (p *ControlPage) addActivity(s string) {
	line := time.Now().Format("15:04:05") + "  " + s
	p.activity = append(p.activity, line)
	if len(p.activity) > maxActivity {
		p.activity = p.activity[len(p.activity)-maxActivity:]
	}
}

func (p *ControlPage) target() string {
	if p.cfg.Transport == link.TransportSerial {
		return p.cfg.SerialPort
	}
	if p.cfg.DeviceName != "" {
		return fmt.Sprintf("%s (%s)", p.cfg.DeviceName, p.cfg.PeerAddress)
	}
	return p.cfg.PeerAddress
}

func stateBadge(s link.State) string {
	switch s {
	case link.Connected:
		return ui.Badge(s.String(), ui.Success)
	case link.Connecting, link.Closing:
		return ui.Badge(s.String(), ui.Warning)
	case link.Failed:
		return ui.Badge(s.String(), ui.Error)
	default:
		return ui.Badge(s.String(), ui.Subtle)
	}
}

func (p *ControlPage) View() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%-10s %s\n", "Link", stateBadge(p.state)))
	b.WriteString(fmt.Sprintf("%-10s %s\n", "Peer", p.target()))
	b.WriteString(fmt.Sprintf("%-10s %s\n\n", "Transport", p.cfg.Transport))

	if p.keypad.Active() {
		b.WriteString(ui.AccentStyle.Render(fmt.Sprintf("Confirm %q", p.said)))
		b.WriteString("\n\n")
		b.WriteString(p.keypad.View())
		b.WriteString("\n")
	} else {
		b.WriteString(p.phrase.View())
		b.WriteString("\n")
	}

	if p.message != "" {
		b.WriteString("\n")
		b.WriteString(ui.Toast(p.message, p.isErr))
		b.WriteString("\n")
	}

	if len(p.activity) > 0 {
		b.WriteString("\n")
		b.WriteString(ui.DimStyle.Render(strings.Join(p.activity, "\n")))
	}

	return ui.Panel("Door", b.String(), p.width, 0, p.InputCaptured())
}

func (p *ControlPage) Name() string { return "Control" }

func (p *ControlPage) ShortHelp() []key.Binding {
	if p.keypad.Active() {
		return []key.Binding{keypad.Keys.Delete, keypad.Keys.Cancel}
	}
	if p.phrase.Focused() {
		return []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
			key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "done")),
		}
	}
	return []key.Binding{
		key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "connect")),
		key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "disconnect")),
		key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "phrase")),
	}
}

// InputCaptured reports whether the phrase input or the keypad owns the keyboard.
func (p *ControlPage) InputCaptured() bool {
	return p.phrase.Focused() || p.keypad.Active()
}

func (p *ControlPage) SetSize(w, h int) {
	p.width = w
	p.height = h
	p.phrase.Width = w - 14
}

// Close stops any live link. Called once the program exits.
func (p *ControlPage) Close() {
	if p.link != nil {
		p.link.Stop()
	}
}
