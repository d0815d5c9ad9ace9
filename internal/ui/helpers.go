package ui

import (
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/loog-project/cattree/internal/util"
)

// Base carries the size and theme every view needs.
type Base struct {
	Width  int
	Height int
	Theme  Theme
}

func (b *Base) SetSize(width, height int) {
	b.Width = width
	b.Height = height
}

func (b *Base) SetTheme(theme Theme) {
	b.Theme = theme
}

type stackOp uint

const (
	Push stackOp = iota
	Pop
	Replace
)

type stackMsg struct {
	op   stackOp
	view View
}

type tickMsg time.Time

type alertMsg struct {
	Title string
	Err   error
}

// revisionsMsg carries revisions read from the store, in store order.
type revisionsMsg struct {
	entries []util.RevisionEntry
}

// ChangeView pushes, replaces or pops (view is ignored) the top view.
func ChangeView(op stackOp, view View) tea.Cmd {
	return func() tea.Msg {
		return stackMsg{op: op, view: view}
	}
}

func NewAlert(title string, err error) tea.Msg {
	return alertMsg{Title: title, Err: err}
}

func PushAlert(title string, err error) tea.Cmd {
	return func() tea.Msg {
		return NewAlert(title, err)
	}
}

// NewRevisionsMsg hands revisions to the root and the revision view.
func NewRevisionsMsg(entries []util.RevisionEntry) tea.Msg {
	return revisionsMsg{entries: entries}
}

// ScrollViewport moves vp for the scroll keys and ignores everything else.
func ScrollViewport(k tea.KeyMsg, vp *viewport.Model) tea.Cmd {
	switch {
	case key.Matches(k, keyUp):
		vp.ScrollUp(1)
	case key.Matches(k, keyDown):
		vp.ScrollDown(1)
	case key.Matches(k, keyPageUp):
		vp.PageUp()
	case key.Matches(k, keyPageDown):
		vp.PageDown()
	case key.Matches(k, keyLeft):
		vp.ScrollLeft(1)
	case key.Matches(k, keyRight):
		vp.ScrollRight(1)
	}
	return nil
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	ks := make([]K, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	slices.Sort(ks)
	return ks
}

// ternary is for rendering only.
func ternary[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}
