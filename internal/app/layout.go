package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/doorlink/internal/config"
	"github.com/buckleypaul/doorlink/internal/link"
	"github.com/buckleypaul/doorlink/internal/ui"
)

const sidebarWidth = 20 // 18 content + 2 border/padding

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func renderDeviceBar(cfg *config.Config, width int, sidebarFocused bool) string {
	target := cfg.PeerAddress
	if cfg.Transport == link.TransportSerial {
		target = cfg.SerialPort
	}
	content := fmt.Sprintf("Device: %s  Target: %s  Transport: %s",
		orNone(cfg.DeviceName), orNone(target), cfg.Transport)
	hint := ""
	if sidebarFocused {
		hint = ui.DimStyle.Render("  [p] port")
	}
	return ui.StatusBarStyle.Width(width).Render(content + hint)
}

func renderSidebar(pages []PageID, active PageID, pageMap map[PageID]Page, height int, focused bool) string {
	var b strings.Builder
	if focused {
		b.WriteString(ui.BoldStyle.Render("doorlink ●"))
	} else {
		b.WriteString(ui.TitleStyle.Render("doorlink"))
	}
	b.WriteString("\n\n")

	for _, id := range pages {
		p := pageMap[id]
		if id == active {
			b.WriteString(ui.SidebarActiveStyle.Render("▸ " + p.Name()))
		} else {
			b.WriteString(ui.SidebarItemStyle.Render("  " + p.Name()))
		}
		b.WriteString("\n")
	}

	style := ui.SidebarStyle.Height(height)
	if focused {
		style = style.BorderForeground(ui.Primary)
	}
	return style.Render(b.String())
}

func renderStatusBar(pageHelp []key.Binding, width int, focus FocusArea) string {
	var parts []string

	if focus == FocusSidebar {
		parts = append(parts,
			ui.StatusKey("↑/↓", "navigate"),
			ui.StatusKey("enter", "select"),
			ui.StatusKey("p", "port"),
		)
	} else {
		for _, kb := range pageHelp {
			if kb.Enabled() {
				parts = append(parts, ui.StatusKey(kb.Help().Key, kb.Help().Desc))
			}
		}
	}

	parts = append(parts,
		ui.StatusKey("tab", "focus"),
		ui.StatusKey("?", "help"),
		ui.StatusKey("q", "quit"),
	)

	return ui.StatusBarStyle.Width(width).Render(strings.Join(parts, "  "))
}

func renderHelp(pageHelp []key.Binding, width int) string {
	var b strings.Builder
	bindings := append([]key.Binding{}, pageHelp...)
	bindings = append(bindings, GlobalKeys.ToggleFocus, GlobalKeys.PortPicker, GlobalKeys.Help, GlobalKeys.Quit)
	for _, kb := range bindings {
		fmt.Fprintf(&b, "%-8s %s\n", kb.Help().Key, kb.Help().Desc)
	}
	return ui.Panel("Keys", b.String(), width, 0, true)
}

func renderLayout(deviceBar, sidebar, content, statusBar string) string {
	main := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, content)
	return lipgloss.JoinVertical(lipgloss.Left, deviceBar, main, statusBar)
}
