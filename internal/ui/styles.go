package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	Primary = lipgloss.Color("63")  // Purple/blue
	Accent  = lipgloss.Color("205") // Pink
	Success = lipgloss.Color("78")  // Green
	Warning = lipgloss.Color("214") // Orange
	Error   = lipgloss.Color("196") // Red
	Subtle  = lipgloss.Color("241") // Gray
	Surface = lipgloss.Color("236") // Dark gray
	Text    = lipgloss.Color("252") // Light gray
	TextDim = lipgloss.Color("245") // Dimmer text

	SidebarStyle = lipgloss.NewStyle().
			Width(18).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderRight(true).
			BorderTop(false).
			BorderBottom(false).
			BorderLeft(false).
			BorderForeground(Surface).
			Padding(1, 1)

	SidebarItemStyle = lipgloss.NewStyle().
				Foreground(TextDim).
				PaddingLeft(1)

	SidebarActiveStyle = lipgloss.NewStyle().
				Foreground(Primary).
				Bold(true).
				PaddingLeft(1)

	ContentStyle = lipgloss.NewStyle().
			Padding(1, 2)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextDim).
			Background(Surface).
			Padding(0, 1)

	StatusBarKeyStyle = lipgloss.NewStyle().
				Foreground(Text).
				Background(Surface).
				Bold(true)

	TitleStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			MarginBottom(1)

	// Keypad buttons
	KeyCapStyle = lipgloss.NewStyle().
			Width(5).
			Align(lipgloss.Center).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(Subtle)

	BoldStyle   = lipgloss.NewStyle().Bold(true)
	DimStyle    = lipgloss.NewStyle().Foreground(TextDim)
	AccentStyle = lipgloss.NewStyle().Foreground(Accent)
)
