package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/loog-project/cattree/internal/util"
)

type Baser interface {
	SetSize(width, height int)
	SetTheme(theme Theme)
}

// View is a screen on the view stack.
type View interface {
	Baser

	Update(tea.Msg) (View, tea.Cmd)
	View() string
	KeyMap() string
	Breadcrumb() string
}

// Root owns the view stack and the status bar. Only the top view receives
// messages; size changes reach every view.
type Root struct {
	Width, Height int
	Theme         Theme

	ViewStack    []View
	ShuttingDown bool

	Logger *UILogger
	// Title is shown in the status bar, usually the store path.
	Title string

	initial   []util.RevisionEntry
	objects   map[string]struct{}
	revisions int
	loadedAt  time.Time
	now       time.Time
}

type RootOption func(*Root)

// WithLogger enables the log view (L) and the unread counters.
func WithLogger(l *UILogger) RootOption {
	return func(r *Root) { r.Logger = l }
}

func WithTitle(title string) RootOption {
	return func(r *Root) { r.Title = title }
}

// WithRevisions delivers entries to the root and the first view on start.
func WithRevisions(entries []util.RevisionEntry) RootOption {
	return func(r *Root) { r.initial = entries }
}

func NewRoot(theme Theme, first View, opts ...RootOption) *Root {
	r := &Root{
		Theme:   theme,
		objects: make(map[string]struct{}),
		now:     time.Now(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ViewStack = []View{r.prepare(first)}
	return r
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (r Root) Init() tea.Cmd {
	if r.initial == nil {
		return tick()
	}
	entries := r.initial
	return tea.Batch(tick(), func() tea.Msg {
		return NewRevisionsMsg(entries)
	})
}

func (r Root) prepare(v View) View {
	v.SetSize(r.Width, r.Height)
	v.SetTheme(r.Theme)
	return v
}

func (r Root) top() View {
	return r.ViewStack[len(r.ViewStack)-1]
}

// isViewOpen reports whether the top view is of type T.
func isViewOpen[T View](r Root) bool {
	if len(r.ViewStack) == 0 {
		return false
	}
	_, isOpen := r.top().(T)
	return isOpen
}

func (r Root) applyStackOp(m stackMsg) Root {
	switch m.op {
	case Push:
		r.ViewStack = append(r.ViewStack, r.prepare(m.view))
	case Replace:
		r.ViewStack[len(r.ViewStack)-1] = r.prepare(m.view)
	case Pop:
		// the first view stays
		if len(r.ViewStack) > 1 {
			r.ViewStack = r.ViewStack[:len(r.ViewStack)-1]
		}
	}
	return r
}

func (r Root) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch v := msg.(type) {
	case stackMsg:
		return r.applyStackOp(v), nil

	case alertMsg:
		op := ternary(isViewOpen[*AlertView](r), Replace, Push)
		return r, ChangeView(op, &AlertView{Title: v.Title, Err: v.Err})

	case revisionsMsg:
		for _, e := range v.entries {
			r.objects[e.ObjectID] = struct{}{}
		}
		r.revisions += len(v.entries)
		r.loadedAt = time.Now()

	case tickMsg:
		r.now = time.Time(v)
		cmds = append(cmds, tick())

	case tea.WindowSizeMsg:
		r.Width = v.Width
		r.Height = v.Height - 1 // status bar
		for _, view := range r.ViewStack {
			view.SetSize(r.Width, r.Height)
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(v, keyForceQuit):
			r.ShuttingDown = true
			return r, tea.Quit
		case key.Matches(v, keyLogs) && r.Logger != nil:
			if isViewOpen[*LogView](r) {
				return r, ChangeView(Pop, nil)
			}
			return r, ChangeView(Push, NewLogView(r.Logger))
		}
	}

	var cmd tea.Cmd
	r.ViewStack[len(r.ViewStack)-1], cmd = r.top().Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}
	return r, tea.Batch(cmds...)
}

// status summarizes what was loaded from the store.
func (r Root) status() string {
	if r.loadedAt.IsZero() {
		return ""
	}
	parts := []string{
		humanize.Comma(int64(len(r.objects))) + " objects",
		humanize.Comma(int64(r.revisions)) + " revisions",
		"loaded " + humanize.RelTime(r.loadedAt, r.now, "ago", "from now"),
	}
	if r.Title != "" {
		parts = append([]string{r.Title}, parts...)
	}
	return strings.Join(parts, " · ")
}

func (r Root) renderBar(breadcrumbs, help string) string {
	segments := []string{r.Theme.BreadcrumbBarStyle.Render(breadcrumbs)}

	if s := r.status(); s != "" {
		segments = append(segments, r.Theme.MutedTextStyle.Padding(0, 1).Render(s))
	}
	if r.Logger != nil {
		if info, warn, errs := r.Logger.unread(false); info+warn+errs > 0 {
			segments = append(segments, r.Theme.LoggerBarStyle.Render(
				fmt.Sprintf("L: %d info, %d warn, %d error", info, warn, errs)))
		}
	}

	used := 0
	for _, s := range segments {
		used += lipgloss.Width(s)
	}
	helpRender := r.Theme.HelpBarStyle.
		MaxHeight(1).
		Width(max(r.Width-used, 0)).
		Render(help)
	return lipgloss.JoinHorizontal(lipgloss.Top, append([]string{helpRender}, segments...)...)
}

func (r Root) View() string {
	if r.Height == 0 && r.Width == 0 {
		return "" // no size yet
	}
	if r.ShuttingDown {
		// leaves only this line in the terminal after quitting
		return r.Theme.MutedTextStyle.Render("Bye!")
	}

	crumbs := make([]string, len(r.ViewStack))
	for i, view := range r.ViewStack {
		crumbs[i] = view.Breadcrumb()
	}
	return r.top().View() + "\n" + r.renderBar(strings.Join(crumbs, " ⟩ "), r.top().KeyMap())
}
