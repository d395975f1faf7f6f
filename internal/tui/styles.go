package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	colorRed     = lipgloss.Color("#ff5555")
	colorGreen   = lipgloss.Color("#50fa7b")
	colorYellow  = lipgloss.Color("#f1fa8c")
	colorBlue    = lipgloss.Color("#8be9fd")
	colorPurple  = lipgloss.Color("#bd93f9")
	colorDim     = lipgloss.Color("#6272a4")
	colorBg      = lipgloss.Color("#282a36")
	colorBgLight = lipgloss.Color("#343746")
	colorFg      = lipgloss.Color("#f8f8f2")
	colorBorder  = lipgloss.Color("#44475a")

	// Region cells use the heatmap's fill hues.
	colorAICell   = lipgloss.Color("#ff6464")
	colorRealCell = lipgloss.Color("#32c864")
)

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorPurple).
			Bold(true)

	tabStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Padding(0, 1)

	tabActiveStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			Background(colorBorder).
			Bold(true).
			Padding(0, 1)

	// Panels
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorBlue).
				Bold(true).
				Padding(1, 0, 0, 0)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Width(22)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorFg)

	// Verdict
	verdictAIStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	verdictRealStyle = lipgloss.NewStyle().
				Foreground(colorGreen).
				Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorPurple)

	// Region grid
	aiCellStyle = lipgloss.NewStyle().
			Foreground(colorBg).
			Background(colorAICell).
			Width(6).
			Align(lipgloss.Center)

	realCellStyle = lipgloss.NewStyle().
			Foreground(colorBg).
			Background(colorRealCell).
			Width(6).
			Align(lipgloss.Center)

	// Status bar
	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			Background(colorBgLight).
			Padding(0, 1)

	statusMsgStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Background(colorBgLight)

	// Help bar
	helpBarStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow)
)
