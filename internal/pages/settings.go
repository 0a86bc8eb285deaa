package pages

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/doorlink/internal/app"
	"github.com/buckleypaul/doorlink/internal/config"
	"github.com/buckleypaul/doorlink/internal/ui"
)

type settingField struct {
	label string
	key   string
}

var settingFields = []settingField{
	{"Device Name", "device_name"},
	{"Peer Address", "peer_address"},
	{"RFCOMM Channel", "rfcomm_channel"},
	{"Transport", "transport"},
	{"Serial Port", "serial_port"},
	{"Serial Baud Rate", "serial_baud_rate"},
	{"Connect Timeout", "connect_timeout"},
	{"Write Timeout", "write_timeout"},
	{"Queue Size", "queue_size"},
	{"PIN", "pin"},
	{"Log Level", "log_level"},
}

type SettingsPage struct {
	cfg           *config.Config
	root          string
	cursor        int
	editing       bool
	input         textinput.Model
	width, height int
	message       string
	isErr         bool
}

func NewSettingsPage(cfg *config.Config, root string) *SettingsPage {
	ti := textinput.New()
	ti.CharLimit = 128
	return &SettingsPage{
		cfg:   cfg,
		root:  root,
		input: ti,
	}
}

func (p *SettingsPage) Init() tea.Cmd { return nil }

func (p *SettingsPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.PortSelectedMsg:
		p.message = "Serial port set to " + msg.Port
		p.isErr = false
		return p, nil

	case tea.KeyMsg:
		if p.editing {
			switch msg.String() {
			case "enter":
				p.applyValue(p.input.Value())
				p.stopEditing()
				return p, nil
			case "esc":
				p.stopEditing()
				return p, nil
			}
			var cmd tea.Cmd
			p.input, cmd = p.input.Update(msg)
			return p, cmd
		}

		switch msg.String() {
		case "down":
			if p.cursor < len(settingFields)-1 {
				p.cursor++
			}
		case "up":
			if p.cursor > 0 {
				p.cursor--
			}
		case "enter", "e":
			p.editing = true
			if settingFields[p.cursor].key == "pin" {
				p.input.EchoMode = textinput.EchoPassword
				p.input.SetValue("")
			} else {
				p.input.SetValue(p.getValue(p.cursor))
			}
			return p, p.input.Focus()
		case "s":
			return p, p.save()
		}
	}
	return p, nil
}

func (p *SettingsPage) stopEditing() {
	p.editing = false
	p.input.Blur()
	p.input.EchoMode = textinput.EchoNormal
}

func (p *SettingsPage) save() tea.Cmd {
	if err := p.cfg.Validate(); err != nil {
		p.message = fmt.Sprintf("Not saved: %v", err)
		p.isErr = true
		return nil
	}
	if err := config.Save(*p.cfg, p.root, false); err != nil {
		p.message = fmt.Sprintf("Error saving: %v", err)
		p.isErr = true
		return nil
	}
	p.message = "Settings saved"
	p.isErr = false
	return func() tea.Msg { return app.ConfigChangedMsg{} }
}

func (p *SettingsPage) View() string {
	var inner strings.Builder

	for i, f := range settingFields {
		cursor := "  "
		if i == p.cursor {
			cursor = ui.BoldStyle.Render("> ")
		}

		val := p.getValue(i)
		if val == "" {
			val = ui.DimStyle.Render("(not set)")
		}

		inner.WriteString(fmt.Sprintf("%s%-20s %s\n", cursor, f.label, val))
	}

	if p.editing {
		inner.WriteString("\n")
		inner.WriteString(fmt.Sprintf("  Edit %s:\n", settingFields[p.cursor].label))
		inner.WriteString("  " + p.input.View())
		inner.WriteString("\n")
	}

	if p.message != "" {
		inner.WriteString("\n  " + ui.Toast(p.message, p.isErr))
	}

	return ui.Panel("Settings", inner.String(), p.width, 0, false)
}

func (p *SettingsPage) Name() string { return "Settings" }

func (p *SettingsPage) ShortHelp() []key.Binding {
	if p.editing {
		return []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
			key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		}
	}
	return []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "edit")),
		key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save to disk")),
	}
}

func (p *SettingsPage) InputCaptured() bool {
	return p.editing
}

func (p *SettingsPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}

func (p *SettingsPage) getValue(idx int) string {
	switch settingFields[idx].key {
	case "device_name":
		return p.cfg.DeviceName
	case "peer_address":
		return p.cfg.PeerAddress
	case "rfcomm_channel":
		return strconv.Itoa(p.cfg.Channel)
	case "transport":
		return p.cfg.Transport
	case "serial_port":
		return p.cfg.SerialPort
	case "serial_baud_rate":
		return strconv.Itoa(p.cfg.SerialBaudRate)
	case "connect_timeout":
		return time.Duration(p.cfg.ConnectTimeout).String()
	case "write_timeout":
		return time.Duration(p.cfg.WriteTimeout).String()
	case "queue_size":
		return strconv.Itoa(p.cfg.QueueSize)
	case "pin":
		return strings.Repeat("•", len(p.cfg.PIN))
	case "log_level":
		return p.cfg.LogLevel
	}
	return ""
}

func (p *SettingsPage) applyValue(val string) {
	val = strings.TrimSpace(val)
	f := settingFields[p.cursor]
	var err error

	switch f.key {
	case "device_name":
		p.cfg.DeviceName = val
	case "peer_address":
		p.cfg.PeerAddress = strings.ToUpper(val)
	case "rfcomm_channel":
		err = setInt(&p.cfg.Channel, val)
	case "transport":
		p.cfg.Transport = strings.ToLower(val)
	case "serial_port":
		p.cfg.SerialPort = val
	case "serial_baud_rate":
		err = setInt(&p.cfg.SerialBaudRate, val)
	case "connect_timeout":
		err = setDuration(&p.cfg.ConnectTimeout, val)
	case "write_timeout":
		err = setDuration(&p.cfg.WriteTimeout, val)
	case "queue_size":
		err = setInt(&p.cfg.QueueSize, val)
	case "pin":
		if val == "" {
			return
		}
		p.cfg.PIN = val
	case "log_level":
		p.cfg.LogLevel = strings.ToLower(val)
	}

	if err != nil {
		p.message = fmt.Sprintf("%s: %v", f.label, err)
		p.isErr = true
		return
	}
	p.message = fmt.Sprintf("%s updated", f.label)
	p.isErr = false
}

func setInt(dst *int, val string) error {
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return fmt.Errorf("%q is not a positive number", val)
	}
	*dst = n
	return nil
}

func setDuration(dst *config.Duration, val string) error {
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return fmt.Errorf("%q is not a duration like 5s", val)
	}
	*dst = config.Duration(d)
	return nil
}
