// Package keypad is a fixed-length PIN entry component.
package keypad

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/doorlink/internal/ui"
)

// PINEnteredMsg is sent once the configured number of digits has been typed.
type PINEnteredMsg struct {
	PIN string
}

// PINCancelledMsg is sent when the user leaves the keypad without finishing.
type PINCancelledMsg struct{}

type KeyMap struct {
	Delete key.Binding
	Cancel key.Binding
}

var Keys = KeyMap{
	Delete: key.NewBinding(
		key.WithKeys("backspace", "delete"),
		key.WithHelp("⌫", "delete"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
}

// Model collects digits until Length is reached.
type Model struct {
	length int
	digits []byte
	active bool
}

func New(length int) *Model {
	return &Model{length: length}
}

// Open shows the keypad with an empty entry.
func (m *Model) Open() {
	m.digits = m.digits[:0]
	m.active = true
}

// Close hides the keypad and forgets any partial entry.
func (m *Model) Close() {
	m.digits = m.digits[:0]
	m.active = false
}

func (m *Model) Active() bool { return m.active }

// SetLength changes the PIN length for the next entry.
func (m *Model) SetLength(n int) { m.length = n }

// Entered returns the number of digits typed so far.
func (m *Model) Entered() int { return len(m.digits) }

func (m *Model) Update(msg tea.Msg) (*Model, tea.Cmd) {
	if !m.active {
		return m, nil
	}
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, Keys.Cancel):
		m.Close()
		return m, func() tea.Msg { return PINCancelledMsg{} }
	case key.Matches(keyMsg, Keys.Delete):
		if len(m.digits) > 0 {
			m.digits = m.digits[:len(m.digits)-1]
		}
		return m, nil
	}

	if keyMsg.Type != tea.KeyRunes {
		return m, nil
	}
	for _, r := range keyMsg.Runes {
		if r < '0' || r > '9' {
			continue
		}
		m.digits = append(m.digits, byte(r))
		if len(m.digits) == m.length {
			pin := string(m.digits)
			m.Close()
			return m, func() tea.Msg { return PINEnteredMsg{PIN: pin} }
		}
	}
	return m, nil
}

var padRows = [][]string{
	{"1", "2", "3"},
	{"4", "5", "6"},
	{"7", "8", "9"},
	{" ", "0", "⌫"},
}

func (m *Model) View() string {
	if !m.active {
		return ""
	}

	slots := make([]string, m.length)
	for i := range slots {
		if i < len(m.digits) {
			slots[i] = "•"
		} else {
			slots[i] = "_"
		}
	}

	var b strings.Builder
	b.WriteString(ui.BoldStyle.Render(strings.Join(slots, "  ")))
	b.WriteString("\n\n")
	for _, row := range padRows {
		var cells []string
		for _, c := range row {
			cells = append(cells, ui.KeyCapStyle.Render(c))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(ui.DimStyle.Render("type digits · backspace deletes · esc cancels"))

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ui.Primary).
		Padding(1, 2).
		Render(b.String())
}
