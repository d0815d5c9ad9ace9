package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var logLevelStyles = map[LogLevel]lipgloss.Style{
	LogLevelInfo: lipgloss.NewStyle().
		Foreground(ColorBrightBlue).
		Padding(0, 1),
	LogLevelWarning: lipgloss.NewStyle().
		Background(ColorOrange).
		Foreground(ColorBlack).
		Padding(0, 1),
	LogLevelError: lipgloss.NewStyle().
		Background(ColorRed).
		Foreground(ColorWhite).
		Bold(true).
		Padding(0, 1),
}

// LogView lists the lines collected by a UILogger, newest last.
type LogView struct {
	Base

	viewport viewport.Model
	logger   *UILogger

	autoscroll bool
	minLevel   LogLevel
	shown      int
}

var _ View = (*LogView)(nil)

func NewLogView(logger *UILogger) *LogView {
	l := &LogView{
		logger:     logger,
		viewport:   viewport.New(10, 10),
		autoscroll: true,
	}
	l.refresh()
	return l
}

func (lv *LogView) SetSize(width int, height int) {
	lv.Base.SetSize(width, height)
	lv.viewport.Width = width - 2
	lv.viewport.Height = height - 4
}

func (lv *LogView) Breadcrumb() string {
	return "Log"
}

// refresh re-renders the lines at or above minLevel and marks everything read.
func (lv *LogView) refresh() {
	var lines []string
	for _, msg := range lv.logger.snapshot() {
		if msg.Level < lv.minLevel {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %-7s %s %s",
			lv.Theme.MutedTextStyle.Render(msg.Time.Format("15:04:05")),
			logLevelStyles[msg.Level].Render(msg.Level.String()),
			lv.Theme.PrimaryTextStyle.Render(msg.Source),
			msg.Text))
	}
	lv.shown = len(lines)
	lv.viewport.SetContent(strings.Join(lines, "\n"))
	lv.logger.unread(true)
	if lv.autoscroll {
		lv.viewport.GotoBottom()
	}
}

func (lv *LogView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch v := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(v, keyBack):
			return lv, ChangeView(Pop, nil)
		case key.Matches(v, keyAutoscroll):
			lv.autoscroll = !lv.autoscroll
			lv.refresh()
		case key.Matches(v, keyMinLevel):
			lv.minLevel = (lv.minLevel + 1) % (LogLevelError + 1)
			lv.refresh()
		default:
			return lv, ScrollViewport(v, &lv.viewport)
		}
	case LogMsg:
		lv.refresh()
	}
	return lv, nil
}

func (lv *LogView) View() string {
	return fmt.Sprintf("Log (%d shown, %s and above) [autoscroll %s]\n\n%s",
		lv.shown,
		lv.minLevel,
		ternary(lv.autoscroll, "on", "off"),
		lv.Theme.BorderIdleContainerStyle.Render(lv.viewport.View()))
}

func (lv *LogView) KeyMap() string {
	return NewShortcuts(
		keyBack,
		described(keyAutoscroll, "autoscroll "+ternary(lv.autoscroll, "off", "on")),
		keyMinLevel,
	).Render(lv.Theme)
}
