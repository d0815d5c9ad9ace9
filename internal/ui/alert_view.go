package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// AlertView shows an error on top of the view that caused it. Wrapped errors
// are split at ": " and rendered as an indented cause chain.
type AlertView struct {
	Base

	Title string
	Err   error
}

var _ View = (*AlertView)(nil)

func (av *AlertView) causes() string {
	parts := strings.Split(av.Err.Error(), ": ")
	for i := range parts {
		parts[i] = strings.Repeat("  ", i) + parts[i]
	}
	return strings.Join(parts, "\n")
}

func (av *AlertView) View() string {
	width := min(max(av.Width-16, 20), 100)
	body := lipgloss.JoinVertical(lipgloss.Left,
		av.Theme.MutedTextStyle.Render("AN ERROR OCCURRED "+strings.ToUpper(av.Title)),
		"",
		av.Theme.ErrorTextStyle.Width(width).Render(av.causes()),
	)
	return lipgloss.Place(av.Width, av.Height, lipgloss.Center, lipgloss.Center,
		av.Theme.AlertDialogContainerStyle.Render(body))
}

func (av *AlertView) KeyMap() string {
	return NewShortcuts(keyClose).Render(av.Theme)
}

func (av *AlertView) Breadcrumb() string {
	return "Error (" + av.Title + ")"
}

func (av *AlertView) Update(msg tea.Msg) (View, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && key.Matches(k, keyClose) {
		return av, ChangeView(Pop, nil)
	}
	return av, nil
}
