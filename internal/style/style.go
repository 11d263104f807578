package style

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/rescp17/transferkit/pkg/transfer"
)

// --- Reusable Colors ---
var (
	colorPink      = lipgloss.Color("205")
	colorDarkGray  = lipgloss.Color("240")
	colorLightGray = lipgloss.Color("229")
	colorBlue      = lipgloss.Color("57")
	colorCyan      = lipgloss.Color("212")
	colorPurple    = lipgloss.Color("99")
	colorRed       = lipgloss.Color("196")
	colorGreen     = lipgloss.Color("42")
	colorYellow    = lipgloss.Color("214")
)

// --- General Purpose Styles ---
var (
	ErrorStyle   = lipgloss.NewStyle().Foreground(colorRed)
	SuccessStyle = lipgloss.NewStyle().Foreground(colorGreen)
	HelpStyle    = lipgloss.NewStyle().Faint(true)
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPink)
)

// --- Transfer List Styles ---
var (
	BaseStyle          = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(colorDarkGray)
	HighlightFontStyle = lipgloss.NewStyle().Foreground(colorCyan)
	ActiveTabStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorLightGray).Background(colorBlue).Padding(0, 1)
	InactiveTabStyle   = lipgloss.NewStyle().Foreground(colorDarkGray).Padding(0, 1)
	FooterStyle        = lipgloss.NewStyle().Foreground(colorPurple).Padding(0, 1)
)

// StateStyle colors a transfer state the same way everywhere it is printed
func StateStyle(s transfer.State) lipgloss.Style {
	switch {
	case s == transfer.StateComplete:
		return SuccessStyle
	case s == transfer.StateError:
		return ErrorStyle
	case s == transfer.StateCanceled, s == transfer.StatePaused:
		return HelpStyle
	case s.IsPostProcessing():
		return lipgloss.NewStyle().Foreground(colorYellow)
	default:
		return HighlightFontStyle
	}
}

// --- Common Components ---

// NewSpinner creates a spinner with a consistent style.
func NewSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPink)
	return s
}

// NewTableStyles returns the default styles for tables, with our custom selection style.
func NewTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Selected = styles.Selected.Foreground(colorLightGray).Background(colorBlue).Bold(false)
	return styles
}

// NewProgress creates the progress bar shown for the selected transfer
func NewProgress() progress.Model {
	return progress.New(progress.WithGradient(string(colorPurple), string(colorPink)))
}
