package ui

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	ColorAccent  = lipgloss.Color("#2563EB")
	ColorOK      = lipgloss.Color("#22C55E")
	ColorFail    = lipgloss.Color("#F43F5E")
	ColorPending = lipgloss.Color("#EAB308")
	ColorChain   = lipgloss.Color("#60A5FA")
	ColorMuted   = lipgloss.Color("#71717A")
	ColorBorder  = lipgloss.Color("#3F3F46")
)

var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).Padding(0, 1)

	// TitleStyle renders the banner at the top of the dashboard.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F8FAFC")).
			Background(ColorAccent).
			Padding(0, 2)

	LogoStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	StepHeader  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F8FAFC"))
	BlockStyle  = lipgloss.NewStyle().Foreground(ColorChain)
	MutedValue  = lipgloss.NewStyle().Foreground(ColorMuted)
	OKValue     = lipgloss.NewStyle().Foreground(ColorOK)
	PendingText = lipgloss.NewStyle().Foreground(ColorPending)
	ErrorText   = lipgloss.NewStyle().Foreground(ColorFail)
	ErrorHeader = lipgloss.NewStyle().Bold(true).Foreground(ColorFail)
	PausedBadge = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#18181B")).Background(ColorPending).Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().Foreground(ColorMuted).Padding(0, 1)
)
