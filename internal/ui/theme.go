package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/loog-project/cattree/pkg/diffpreview"
)

var (
	ColorRed         = lipgloss.Color("1")
	ColorBlack       = lipgloss.Color("0")
	ColorWhite       = lipgloss.Color("7")
	ColorBrightBlue  = lipgloss.Color("33")
	ColorLightGray   = lipgloss.Color("243")
	ColorGray        = lipgloss.Color("238")
	ColorMutedPurple = lipgloss.Color("92")
	ColorOrange      = lipgloss.Color("214")
)

// palette is the handful of colors a Theme is derived from.
type palette struct {
	accent, muted, border lipgloss.TerminalColor
	snapshot, revision    lipgloss.TerminalColor
	danger, warn          lipgloss.TerminalColor
	onAccent, onWarn      lipgloss.TerminalColor
}

type Theme struct {
	ListObjectTextStyle       lipgloss.Style
	ListSnapshotTextStyle     lipgloss.Style
	ListRevisionTextStyle     lipgloss.Style
	ListCurrentArrowTextStyle lipgloss.Style

	AlertDialogContainerStyle  lipgloss.Style
	BorderActiveContainerStyle lipgloss.Style
	BorderIdleContainerStyle   lipgloss.Style

	MutedTextStyle   lipgloss.Style
	ErrorTextStyle   lipgloss.Style
	PrimaryTextStyle lipgloss.Style

	BreadcrumbBarStyle lipgloss.Style
	HelpBarStyle       lipgloss.Style
	LoggerBarStyle     lipgloss.Style

	// Preview styles trees and diffs in the revision view.
	Preview diffpreview.Theme
}

func newTheme(p palette, preview diffpreview.Theme) Theme {
	fg := func(c lipgloss.TerminalColor) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c)
	}
	bordered := func(b lipgloss.Border, c lipgloss.TerminalColor) lipgloss.Style {
		return lipgloss.NewStyle().Border(b).BorderForeground(c)
	}
	bar := lipgloss.NewStyle().Padding(0, 1)

	return Theme{
		ListObjectTextStyle:       lipgloss.NewStyle().Bold(true),
		ListSnapshotTextStyle:     fg(p.snapshot),
		ListRevisionTextStyle:     fg(p.revision),
		ListCurrentArrowTextStyle: fg(p.accent),

		AlertDialogContainerStyle:  bordered(lipgloss.DoubleBorder(), p.danger).Padding(2, 4),
		BorderActiveContainerStyle: bordered(lipgloss.RoundedBorder(), p.accent),
		BorderIdleContainerStyle:   bordered(lipgloss.RoundedBorder(), p.border),

		MutedTextStyle:   fg(p.muted),
		ErrorTextStyle:   fg(p.danger).Bold(true),
		PrimaryTextStyle: fg(p.accent),

		BreadcrumbBarStyle: bar.Background(p.accent).Foreground(p.onAccent),
		HelpBarStyle:       bar,
		LoggerBarStyle:     bar.Background(p.warn).Foreground(p.onWarn),

		Preview: preview,
	}
}

var DarkTheme = newTheme(palette{
	accent:   ColorBrightBlue,
	muted:    ColorLightGray,
	border:   ColorGray,
	snapshot: ColorOrange,
	revision: ColorMutedPurple,
	danger:   ColorRed,
	warn:     ColorOrange,
	onAccent: ColorWhite,
	onWarn:   ColorBlack,
}, diffpreview.DarkTheme)

// NoColorTheme keeps borders and layout but sets no colors.
var NoColorTheme = newTheme(palette{
	accent:   lipgloss.NoColor{},
	muted:    lipgloss.NoColor{},
	border:   lipgloss.NoColor{},
	snapshot: lipgloss.NoColor{},
	revision: lipgloss.NoColor{},
	danger:   lipgloss.NoColor{},
	warn:     lipgloss.NoColor{},
	onAccent: lipgloss.NoColor{},
	onWarn:   lipgloss.NoColor{},
}, diffpreview.PlainTheme)
