package pages

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/doorlink/internal/app"
	"github.com/buckleypaul/doorlink/internal/config"
)

func moveTo(t *testing.T, p *SettingsPage, field string) {
	t.Helper()
	for p.cursor < len(settingFields)-1 && settingFields[p.cursor].key != field {
		p.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	if settingFields[p.cursor].key != field {
		t.Fatalf("field %s not found", field)
	}
}

func editField(t *testing.T, p *SettingsPage, field, value string) {
	t.Helper()
	moveTo(t, p, field)
	p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	p.input.SetValue(value)
	p.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

func TestSettingsArrowKeyNavigation(t *testing.T) {
	cfg := config.Defaults()
	p := NewSettingsPage(&cfg, t.TempDir())

	if p.cursor != 0 {
		t.Fatalf("expected cursor=0, got %d", p.cursor)
	}

	p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	p.Update(tea.KeyMsg{Type: tea.KeyDown})
	if p.cursor != 1 {
		t.Fatalf("expected cursor=1 after down, got %d", p.cursor)
	}

	for i := 0; i < len(settingFields); i++ {
		p.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	if p.cursor != len(settingFields)-1 {
		t.Fatalf("expected cursor to clamp at %d, got %d", len(settingFields)-1, p.cursor)
	}

	p.cursor = 0
	p.Update(tea.KeyMsg{Type: tea.KeyUp})
	if p.cursor != 0 {
		t.Fatalf("expected cursor to clamp at 0, got %d", p.cursor)
	}
}

func TestSettingsEnterEditMode(t *testing.T) {
	cfg := config.Defaults()
	p := NewSettingsPage(&cfg, t.TempDir())

	p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !p.editing || !p.InputCaptured() {
		t.Fatal("expected editing after Enter")
	}

	p.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if p.editing {
		t.Fatal("expected editing=false after Esc")
	}
}

func TestSettingsApplyValues(t *testing.T) {
	cfg := config.Defaults()
	p := NewSettingsPage(&cfg, t.TempDir())

	editField(t, p, "peer_address", "98:d3:31:f5:12:34")
	editField(t, p, "rfcomm_channel", "3")
	editField(t, p, "connect_timeout", "4s")

	if cfg.PeerAddress != "98:D3:31:F5:12:34" {
		t.Errorf("expected upper-cased address, got %q", cfg.PeerAddress)
	}
	if cfg.Channel != 3 {
		t.Errorf("expected channel 3, got %d", cfg.Channel)
	}
	if time.Duration(cfg.ConnectTimeout) != 4*time.Second {
		t.Errorf("expected 4s connect timeout, got %s", time.Duration(cfg.ConnectTimeout))
	}
}

func TestSettingsInvalidValuesAreRejected(t *testing.T) {
	cfg := config.Defaults()
	p := NewSettingsPage(&cfg, t.TempDir())

	editField(t, p, "serial_baud_rate", "not-a-number")
	if cfg.SerialBaudRate != config.DefaultBaudRate {
		t.Fatalf("expected baud rate to remain %d, got %d", config.DefaultBaudRate, cfg.SerialBaudRate)
	}
	if !p.isErr || p.editing {
		t.Fatalf("expected error message and editing closed, got %q", p.message)
	}

	editField(t, p, "write_timeout", "soon")
	if time.Duration(cfg.WriteTimeout) != config.DefaultWriteTimeout {
		t.Fatalf("expected write timeout unchanged, got %s", time.Duration(cfg.WriteTimeout))
	}
}

func TestSettingsPINIsMasked(t *testing.T) {
	cfg := config.Defaults()
	p := NewSettingsPage(&cfg, t.TempDir())

	if strings.Contains(p.View(), cfg.PIN) {
		t.Fatal("expected PIN to be masked in view")
	}

	moveTo(t, p, "pin")
	p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if p.input.Value() != "" {
		t.Fatal("expected PIN editor to start empty")
	}
	p.input.SetValue("135790")
	p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cfg.PIN != "135790" {
		t.Fatalf("expected new PIN, got %q", cfg.PIN)
	}

	// An empty entry keeps the current PIN.
	p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cfg.PIN != "135790" {
		t.Fatalf("expected PIN to be kept, got %q", cfg.PIN)
	}
}

func TestSettingsSaveUpdatesConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	root := t.TempDir()
	cfg := config.Defaults()
	cfg.PeerAddress = "98:D3:31:F5:12:34"
	cfg.DeviceName = "FrontDoor"
	p := NewSettingsPage(&cfg, root)

	_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	if p.isErr {
		t.Fatalf("unexpected save error: %s", p.message)
	}
	if cmd == nil {
		t.Fatal("expected config change broadcast")
	}
	if _, ok := cmd().(app.ConfigChangedMsg); !ok {
		t.Fatal("expected ConfigChangedMsg")
	}

	configPath := filepath.Join(root, ".doorlink", "config.json")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatalf("expected config file at %s, not found", configPath)
	}

	loaded := config.Load(root)
	if loaded.DeviceName != "FrontDoor" {
		t.Fatalf("expected DeviceName=FrontDoor, got %q", loaded.DeviceName)
	}
}

func TestSettingsSaveRejectsInvalidConfig(t *testing.T) {
	root := t.TempDir()
	cfg := config.Defaults()
	p := NewSettingsPage(&cfg, root)

	_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	if cmd != nil || !p.isErr {
		t.Fatal("expected save to be refused without a peer address")
	}
	if _, err := os.Stat(filepath.Join(root, ".doorlink", "config.json")); err == nil {
		t.Fatal("expected no config file")
	}
}
