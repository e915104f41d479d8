package styles

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	ColorPrimary    = lipgloss.Color("#5DADE2")
	ColorSecondary  = lipgloss.Color("#82E0AA")
	ColorWarning    = lipgloss.Color("#F4D03F")
	ColorError      = lipgloss.Color("#E74C3C")
	ColorMuted      = lipgloss.Color("#7F8C8D")
	ColorForeground = lipgloss.Color("#ECF0F1")
	ColorLive       = lipgloss.Color("#2ECC71")
	ColorRetrying   = lipgloss.Color("#F39C12")
	ColorDown       = lipgloss.Color("#E74C3C")
	ColorDarkBg     = lipgloss.Color("#2C3E50")
)

// Text Styles
var (
	Muted   = lipgloss.NewStyle().Foreground(ColorMuted)
	Primary = lipgloss.NewStyle().Foreground(ColorPrimary)
)

// Pane styles
var (
	PaneBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted)

	FocusedPaneBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorPrimary)

	// Insert mode hands the keyboard to the remote shell
	InsertPaneBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorWarning)
)

// Title styles
var (
	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		Padding(0, 1)
)

// Tab styles
var (
	ActiveTab = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Background(ColorDarkBg).
			Padding(0, 2)

	InactiveTab = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Padding(0, 2)
)

// App and deployment status styles
var (
	StatusOK = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorLive)

	StatusDegraded = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorRetrying)

	StatusDown = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorDown)
)

// Bottom bar styles
var (
	BottomBar = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Background(ColorDarkBg).
			Padding(0, 1)

	HintKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary)

	HintDesc = lipgloss.NewStyle().
			Foreground(ColorMuted)
)

// Log line styles
var (
	LogDebug    = lipgloss.NewStyle().Foreground(ColorMuted)
	LogInfo     = lipgloss.NewStyle().Foreground(ColorForeground)
	LogWarn     = lipgloss.NewStyle().Foreground(ColorWarning)
	LogError    = lipgloss.NewStyle().Foreground(ColorError)
	LogInfoLine = lipgloss.NewStyle().Foreground(ColorSecondary).Italic(true)
)

// Input styles
var (
	InputPrompt = lipgloss.NewStyle().Foreground(ColorPrimary)
)

// Help overlay styles
var (
	HelpOverlay = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(ColorPrimary).
			Padding(1, 2)

	HelpTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	HelpSection = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSecondary)
)

// App list styles
var (
	SelectedItem = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Background(ColorDarkBg)

	UnselectedItem = lipgloss.NewStyle().
			Foreground(ColorForeground)
)

// Connection badge styles
var (
	BadgeOK = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(ColorLive).
		Padding(0, 1)

	BadgeWarning = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#000000")).
			Background(ColorRetrying).
			Padding(0, 1)

	BadgeError = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(ColorDown).
			Padding(0, 1)

	BadgeMuted = lipgloss.NewStyle().
			Foreground(ColorForeground).
			Background(ColorMuted).
			Padding(0, 1)

	BadgeInsert = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#000000")).
			Background(ColorWarning).
			Padding(0, 1)
)

// Label styles
var (
	LabelKey = lipgloss.NewStyle().
			Foreground(ColorMuted)

	LabelValue = lipgloss.NewStyle().
			Foreground(ColorForeground)
)
