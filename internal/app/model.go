package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/doorlink/internal/config"
	"github.com/buckleypaul/doorlink/internal/serial"
	"github.com/buckleypaul/doorlink/internal/ui"
)

type FocusArea int

const (
	FocusSidebar FocusArea = iota
	FocusContent
)

// PortsLoadedMsg carries the result of a serial port scan.
type PortsLoadedMsg struct {
	Ports []serial.PortInfo
	Err   error
}

// ListPorts scans for serial ports without blocking the UI.
func ListPorts() tea.Msg {
	ports, err := serial.ListPorts()
	return PortsLoadedMsg{Ports: ports, Err: err}
}

type Model struct {
	pages      map[PageID]Page
	activePage PageID
	focus      FocusArea
	width      int
	height     int
	showHelp   bool
	picker     *Picker
	cfg        *config.Config
	root       string
	scanPorts  tea.Cmd
}

func New(pages map[PageID]Page, cfg *config.Config, root string) Model {
	return Model{
		pages:     pages,
		cfg:       cfg,
		root:      root,
		scanPorts: ListPorts,
	}
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	for _, p := range m.pages {
		if cmd := p.Init(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		contentWidth := m.width - sidebarWidth
		contentHeight := m.height - 2 - 1 // status bar + device bar
		for _, p := range m.pages {
			p.SetSize(contentWidth, contentHeight)
		}
		return m, nil

	case PortsLoadedMsg:
		if msg.Err != nil || m.picker == nil {
			return m, nil
		}
		var items []PickerItem
		for _, p := range msg.Ports {
			desc := ""
			switch {
			case p.Bluetooth():
				desc = "bluetooth"
			case p.IsUSB:
				desc = "usb " + p.VID + ":" + p.PID
			}
			items = append(items, PickerItem{
				Label: p.Name,
				Value: p.Name,
				Desc:  desc,
			})
		}
		m.picker.SetItems(items)
		return m, nil

	case PickerSelectedMsg:
		m.picker = nil
		m.cfg.SerialPort = msg.Value
		config.Save(*m.cfg, m.root, false)
		port := msg.Value
		return m, tea.Batch(
			func() tea.Msg { return PortSelectedMsg{Port: port} },
			func() tea.Msg { return ConfigChangedMsg{} },
		)

	case PickerClosedMsg:
		m.picker = nil
		return m, nil

	case tea.KeyMsg:
		if m.picker != nil {
			var cmd tea.Cmd
			m.picker, cmd = m.picker.Update(msg)
			return m, cmd
		}

		// When a page has an active text input or keypad, forward all keys
		// directly to the page. Only ctrl+c still quits.
		if m.focus == FocusContent {
			if ic, ok := m.pages[m.activePage].(InputCapturer); ok && ic.InputCaptured() {
				if msg.String() == "ctrl+c" {
					return m, tea.Quit
				}
				page := m.pages[m.activePage]
				newPage, cmd := page.Update(msg)
				m.pages[m.activePage] = newPage
				return m, cmd
			}
		}

		switch {
		case key.Matches(msg, GlobalKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, GlobalKeys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, GlobalKeys.ToggleFocus):
			if m.focus == FocusSidebar {
				m.focus = FocusContent
				return m, nil
			}
			// When content focused, fall through to page handler
		}

		if m.focus == FocusSidebar {
			if key.Matches(msg, GlobalKeys.PortPicker) {
				m.picker = NewPicker("Select Serial Port")
				m.picker.SetSize(m.width-sidebarWidth, m.height-2-1)
				return m, m.scanPorts
			}
			switch msg.String() {
			case "up":
				m.prevPage()
				return m, nil
			case "down":
				m.nextPage()
				return m, nil
			case "enter", "right":
				m.focus = FocusContent
				return m, nil
			}
			return m, nil
		}

		if msg.String() == "left" {
			m.focus = FocusSidebar
			return m, nil
		}
		page := m.pages[m.activePage]
		newPage, cmd := page.Update(msg)
		m.pages[m.activePage] = newPage
		return m, cmd
	}

	// Non-key messages (link results, config changes, etc.) go to every
	// page so responses reach the page that started the work.
	var cmds []tea.Cmd
	for id, page := range m.pages {
		newPage, cmd := page.Update(msg)
		m.pages[id] = newPage
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	contentWidth := m.width - sidebarWidth
	contentHeight := m.height - 2 - 1

	page := m.pages[m.activePage]

	deviceBar := renderDeviceBar(m.cfg, m.width, m.focus == FocusSidebar)
	sidebar := renderSidebar(PageOrder, m.activePage, m.pages, contentHeight, m.focus == FocusSidebar)

	body := page.View()
	if m.showHelp {
		body = renderHelp(page.ShortHelp(), contentWidth)
	}
	content := ui.ContentStyle.
		Width(contentWidth).
		Height(contentHeight).
		Render(body)

	if m.picker != nil {
		m.picker.SetSize(contentWidth, contentHeight)
		content = lipgloss.Place(
			contentWidth, contentHeight,
			lipgloss.Center, lipgloss.Center,
			m.picker.View(),
		)
	}

	statusBar := renderStatusBar(page.ShortHelp(), m.width, m.focus)

	return renderLayout(deviceBar, sidebar, content, statusBar)
}

func (m *Model) nextPage() {
	for i, id := range PageOrder {
		if id == m.activePage {
			m.activePage = PageOrder[(i+1)%len(PageOrder)]
			return
		}
	}
}

func (m *Model) prevPage() {
	for i, id := range PageOrder {
		if id == m.activePage {
			m.activePage = PageOrder[(i-1+len(PageOrder))%len(PageOrder)]
			return
		}
	}
}
