package ui

import "github.com/charmbracelet/lipgloss"

// Some predefined colors

var (
	ColorRed         = lipgloss.Color("1")
	ColorGreen       = lipgloss.Color("2")
	ColorWhite       = lipgloss.Color("7")
	ColorBrightBlue  = lipgloss.Color("33")
	ColorLightGray   = lipgloss.Color("243")
	ColorGray        = lipgloss.Color("238")
	ColorMutedPurple = lipgloss.Color("92")
	ColorOrange      = lipgloss.Color("214")
)

type Theme struct {
	ListTargetTextStyle       lipgloss.Style
	ListActivityTextStyle     lipgloss.Style
	ListRevisionTextStyle     lipgloss.Style
	ListCurrentArrowTextStyle lipgloss.Style

	AddedTextStyle   lipgloss.Style
	RemovedTextStyle lipgloss.Style
	ChangedTextStyle lipgloss.Style

	BorderActiveContainerStyle lipgloss.Style
	BorderIdleContainerStyle   lipgloss.Style

	MutedTextStyle   lipgloss.Style
	ErrorTextStyle   lipgloss.Style
	PrimaryTextStyle lipgloss.Style

	StatusBarStyle lipgloss.Style
}

var DarkTheme = Theme{
	ListTargetTextStyle: lipgloss.NewStyle().
		Bold(true),
	ListActivityTextStyle: lipgloss.NewStyle().
		Foreground(ColorOrange).
		Bold(true),
	ListRevisionTextStyle: lipgloss.NewStyle().
		Foreground(ColorMutedPurple),
	ListCurrentArrowTextStyle: lipgloss.NewStyle().
		Foreground(ColorBrightBlue),

	AddedTextStyle: lipgloss.NewStyle().
		Foreground(ColorGreen),
	RemovedTextStyle: lipgloss.NewStyle().
		Foreground(ColorRed),
	ChangedTextStyle: lipgloss.NewStyle().
		Foreground(ColorOrange),

	BorderActiveContainerStyle: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBrightBlue),
	BorderIdleContainerStyle: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorGray),

	MutedTextStyle: lipgloss.NewStyle().
		Foreground(ColorLightGray),
	ErrorTextStyle: lipgloss.NewStyle().
		Foreground(ColorRed).
		Bold(true),
	PrimaryTextStyle: lipgloss.NewStyle().
		Foreground(ColorBrightBlue),

	StatusBarStyle: lipgloss.NewStyle().
		Padding(0, 1).
		Background(ColorBrightBlue).
		Foreground(ColorWhite),
}
