package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// PageID identifies each page in the application.
type PageID int

const (
	ControlPage PageID = iota
	HistoryPage
	SettingsPage
)

var PageOrder = []PageID{
	ControlPage,
	HistoryPage,
	SettingsPage,
}

// Page is the interface every page in the application implements.
type Page interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Page, tea.Cmd)
	View() string
	Name() string
	ShortHelp() []key.Binding
	SetSize(width, height int)
}

// InputCapturer is an optional interface for pages with text inputs.
// When InputCaptured returns true, the app forwards all keys directly
// to the page instead of processing shortcuts like q, ?, left, etc.
type InputCapturer interface {
	InputCaptured() bool
}

// ConfigChangedMsg is broadcast after settings are edited so pages rebuild
// anything derived from the config.
type ConfigChangedMsg struct{}

// PortSelectedMsg is broadcast when a serial port is picked.
type PortSelectedMsg struct {
	Port string
}

// HistoryChangedMsg is broadcast after a record is added to the store.
type HistoryChangedMsg struct{}
