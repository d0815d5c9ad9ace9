package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/loog-project/cattree/internal/service"
	"github.com/loog-project/cattree/internal/store"
	"github.com/loog-project/cattree/internal/util"
	"github.com/loog-project/cattree/pkg/diffpreview"
	"github.com/loog-project/cattree/pkg/tree"
)

const (
	arrowDown  = "▾"
	arrowRight = "▸"

	pageScrollSkip = 5
	sizeSkip       = 2

	whereRevisionBanner = `
         .-"-.
       _/_-.-_\_   WHERE
      / __} {__ \     REVISION
     / //  "  \\ \      ???
    / / \'---'/ \ \`

	cannotShowRevisionBanner = `
        .-"-.
      _/.-.-.\_
     ( ( o o ) )   CANNOT
      |/  "  \|       DISPLAY
       \ .-. /
      /       \`
)

type renderMode uint

const (
	modeShowDiffPretty renderMode = iota
	modeShowTreePretty
	modeShowTreeYAML
	modeShowTreeDump
	modeShowDiffDump

	_modeMax // only a helper to get the number of modes
)

func (r renderMode) String() string {
	switch r {
	case modeShowDiffPretty:
		return "diff (pretty)"
	case modeShowTreePretty:
		return "tree (pretty)"
	case modeShowTreeYAML:
		return "tree (yaml)"
	case modeShowTreeDump:
		return "tree (dump)"
	case modeShowDiffDump:
		return "diff (dump)"
	default:
		return "unknown"
	}
}

type objectEntry struct {
	lastSeen time.Time
	revs     []util.RevisionEntry
	open     bool
}

// renderKey identifies what the right pane currently shows.
type renderKey struct {
	object    string
	rev       store.RevisionID
	mode      renderMode
	highlight bool
	hide      bool
}

// RevisionView lists the stored objects with their revisions on the left and
// renders the selected revision on the right.
type RevisionView struct {
	Base

	trackerService *service.TrackerService

	left, right viewport.Model
	leftExtra   int

	// tree data
	objects map[string]*objectEntry
	order   []string

	// ui state
	cursor        int
	focusRight    bool
	renderMode    renderMode
	fullscreen    bool
	highlight     bool
	hideUnchanged bool
	rendered      *renderKey
}

var _ View = (*RevisionView)(nil)

func NewRevisionView(trackerService *service.TrackerService) *RevisionView {
	return &RevisionView{
		trackerService: trackerService,

		left:  viewport.New(5, 5), // will be overwritten by SetSize
		right: viewport.New(5, 5), // will be overwritten by SetSize

		objects:   make(map[string]*objectEntry),
		highlight: true,
	}
}

func (rv *RevisionView) Breadcrumb() string {
	return "revisions"
}

func (rv *RevisionView) calculateViewportSizes() {
	if rv.fullscreen {
		rv.right.Width = rv.Width
		rv.right.Height = rv.Height
	} else {
		leftWidth := (rv.Width/2 + rv.leftExtra) - 2           // 2 for border right and left
		rv.left.Width, rv.left.Height = leftWidth, rv.Height-2 // -2 for viewport border

		rightWidth := rv.Width - leftWidth - 4                    // 4 for border right and left
		rv.right.Width, rv.right.Height = rightWidth, rv.Height-2 // -2 for viewport border
	}
}

// SetSize sets the size of the left and right panes
// based on the current mode (fullscreen or not).
func (rv *RevisionView) SetSize(width, height int) {
	rv.Base.SetSize(width, height)
	rv.calculateViewportSizes()
}

func (rv *RevisionView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch v := msg.(type) {
	case revisionsMsg:
		for _, e := range v.entries {
			rv.ingest(e)
		}

	case tea.KeyMsg:
		if cmd := rv.handleKey(v); cmd != nil {
			return rv, cmd
		}
	}

	rv.renderLeft()
	if cmd := rv.renderRight(); cmd != nil {
		return rv, cmd
	}
	return rv, nil
}

func (rv *RevisionView) View() string {
	if rv.fullscreen {
		return rv.right.View()
	}
	leftBox := ternary(rv.focusRight, rv.Theme.BorderIdleContainerStyle, rv.Theme.BorderActiveContainerStyle).
		Render(rv.left.View())
	rightBox := ternary(rv.focusRight, rv.Theme.BorderActiveContainerStyle, rv.Theme.BorderIdleContainerStyle).
		Render(rv.right.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, leftBox, rightBox)
}

func (rv *RevisionView) KeyMap() string {
	return fmt.Sprintf("[mode: %s] %s",
		rv.Theme.PrimaryTextStyle.Render(rv.renderMode.String()),
		NewShortcuts(
			keyQuit,
			keyFocus,
			keyMode,
			described(keyHighlight, "highlight "+ternary(rv.highlight, "off", "on")),
			described(keyUnchanged, ternary(rv.hideUnchanged, "show", "hide")+" unchanged"),
		).
			AddIf(!rv.focusRight, keyUp).
			AddIf(!rv.focusRight, keyExpand).
			AddIf(!rv.focusRight, keyGrow).
			AddIf(rv.focusRight, keyLeft).
			AddIf(rv.focusRight, keyFullscreen).
			Render(rv.Theme))
}

func (rv *RevisionView) handleKey(k tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(k, keyQuit):
		return tea.Quit
	case key.Matches(k, keyFocus):
		rv.focusRight = !rv.focusRight
	case key.Matches(k, keyMode):
		rv.renderMode = (rv.renderMode + 1) % _modeMax
	case key.Matches(k, keyHighlight):
		rv.highlight = !rv.highlight
	case key.Matches(k, keyUnchanged):
		rv.hideUnchanged = !rv.hideUnchanged
	case key.Matches(k, keyFullscreen):
		rv.fullscreen = !rv.fullscreen
		rv.calculateViewportSizes()
	case key.Matches(k, keyGrow):
		maxExtra := (rv.Width / 2) - 8
		rv.leftExtra = util.Clamp(rv.leftExtra+sizeSkip, rv.leftExtra, max(maxExtra, rv.leftExtra))
		rv.calculateViewportSizes()
	case key.Matches(k, keyShrink):
		minExtra := -(rv.Width / 2) + 8
		rv.leftExtra = util.Clamp(rv.leftExtra-sizeSkip, min(minExtra, rv.leftExtra), rv.leftExtra)
		rv.calculateViewportSizes()
	case rv.focusRight:
		return ScrollViewport(k, &rv.right)
	default:
		return rv.navigateLeft(k)
	}
	return nil
}

func (rv *RevisionView) navigateLeft(k tea.KeyMsg) tea.Cmd {
	last := rv.totalLines() - 1
	switch {
	case key.Matches(k, keyUp):
		rv.cursor = util.Clamp(rv.cursor-1, 0, max(last, 0))
	case key.Matches(k, keyDown):
		rv.cursor = util.Clamp(rv.cursor+1, 0, max(last, 0))
	case key.Matches(k, keyPageUp):
		rv.cursor = util.Clamp(rv.cursor-pageScrollSkip, 0, max(last, 0))
	case key.Matches(k, keyPageDown):
		rv.cursor = util.Clamp(rv.cursor+pageScrollSkip, 0, max(last, 0))
	case key.Matches(k, keyCollapse):
		rv.toggle(false)
	case key.Matches(k, keyExpand):
		rv.toggle(true)
	}
	rv.keepVisible()
	return nil
}

func (rv *RevisionView) keepVisible() {
	if rv.cursor < rv.left.YOffset {
		rv.left.YOffset = rv.cursor
	}
	if rv.cursor >= rv.left.YOffset+rv.left.Height {
		rv.left.YOffset = rv.cursor - rv.left.Height + 1
	}
}

func (rv *RevisionView) ingest(e util.RevisionEntry) {
	oe := rv.objects[e.ObjectID]
	if oe == nil {
		oe = &objectEntry{}
		rv.objects[e.ObjectID] = oe
		rv.order = sortedKeys(rv.objects)
	}
	oe.revs = append(oe.revs, e)
	if e.Time.After(oe.lastSeen) {
		oe.lastSeen = e.Time
	}
}

func (rv *RevisionView) toggle(open bool) {
	line := 0
	for _, obj := range rv.order {
		oe := rv.objects[obj]
		if line == rv.cursor {
			oe.open = ternary(open, !oe.open, false)
			return
		}
		line++
		if oe.open {
			line += len(oe.revs)
		}
	}
}

func (rv *RevisionView) totalLines() int {
	n := 0
	for _, obj := range rv.order {
		n++
		if oe := rv.objects[obj]; oe.open {
			n += len(oe.revs)
		}
	}
	return n
}

func (rv *RevisionView) renderLeft() {
	var b strings.Builder
	line := 0

	for _, obj := range rv.order {
		oe := rv.objects[obj]
		isSelected := rv.cursor == line

		info := fmt.Sprintf("%s revs | %s",
			rv.Theme.ListRevisionTextStyle.Render(strconv.Itoa(len(oe.revs))),
			rv.Theme.MutedTextStyle.Render(humanize.Time(oe.lastSeen)))
		_, _ = fmt.Fprintf(&b, "%s %s %-32s %s\n",
			ternary(isSelected, rv.Theme.ListCurrentArrowTextStyle.Render(arrowRight), " "),
			ternary(oe.open, arrowDown, arrowRight),
			rv.Theme.ListObjectTextStyle.Render(obj),
			info)
		line++

		if !oe.open {
			continue
		}
		for i, e := range oe.revs {
			isSelected := rv.cursor == line

			revKind := ternary(e.Snapshot != nil,
				rv.Theme.ListSnapshotTextStyle.Render("snapshot"),
				rv.Theme.MutedTextStyle.Render("patch"))

			relTimeStr := ""
			if i > 0 {
				sub := e.Time.Sub(oe.revs[i-1].Time).Truncate(time.Second)
				relTimeStr = fmt.Sprintf(" +%s", sub)
			}

			_, _ = fmt.Fprintf(&b, "     • %s: %s%s%s [%s] %s (%s%s)\n",
				rv.Theme.MutedTextStyle.Render(e.Time.Format("02.01.2006 15:04:05")),
				ternary(isSelected, rv.Theme.ListCurrentArrowTextStyle.Render("["), " "),
				ternary(isSelected, rv.Theme.ListCurrentArrowTextStyle, rv.Theme.ListRevisionTextStyle).
					Render(e.RevisionID.String()),
				ternary(isSelected, rv.Theme.ListCurrentArrowTextStyle.Render("]"), " "),
				revKind,
				rv.Theme.MutedTextStyle.Render(humanize.Bytes(uint64(e.Size))),
				humanize.Time(e.Time),
				rv.Theme.MutedTextStyle.Render(relTimeStr),
			)
			line++
		}
	}
	rv.left.SetContent(b.String())
}

func (rv *RevisionView) renderRight() tea.Cmd {
	sel := rv.currentSelection()
	if sel == nil {
		rv.rendered = nil
		rv.right.SetContent(rv.Theme.MutedTextStyle.Render(whereRevisionBanner))
		return nil
	}

	rk := renderKey{
		object:    sel.ObjectID,
		rev:       sel.RevisionID,
		mode:      rv.renderMode,
		highlight: rv.highlight,
		hide:      rv.hideUnchanged,
	}
	if rv.rendered != nil && *rv.rendered == rk {
		return nil
	}

	content, err := rv.render(sel)
	if err != nil {
		rv.rendered = nil
		rv.right.SetContent(cannotShowRevisionBanner + "\n\n" +
			rv.Theme.ErrorTextStyle.Render(err.Error()))
		return PushAlert("when rendering "+sel.ObjectID+"@"+sel.RevisionID.String(), err)
	}
	rv.rendered = &rk
	rv.right.SetContent(content)
	rv.right.GotoTop()
	return nil
}

func (rv *RevisionView) render(sel *util.RevisionEntry) (string, error) {
	ctx := context.Background()
	opts := diffpreview.RenderOptions{
		IndentSize:                2,
		EnableBackgroundHighlight: rv.highlight,
		HideUnchanged:             rv.hideUnchanged,
	}

	switch rv.renderMode {
	case modeShowDiffDump:
		if sel.Patch != nil {
			return sel.Patch.Diff.String(), nil
		}
		return rv.Theme.MutedTextStyle.Render("snapshot, no stored diff"), nil
	case modeShowDiffPretty:
		return rv.renderDiff(ctx, sel, opts)
	}

	cur, err := rv.trackerService.Restore(ctx, sel.ObjectID, sel.RevisionID)
	if err != nil {
		return "", err
	}
	switch rv.renderMode {
	case modeShowTreeYAML:
		out, err := cur.YAML()
		return string(out), err
	case modeShowTreeDump:
		return cur.String(), nil
	default:
		return diffpreview.RenderYAML(diffpreview.Annotate(cur, diffpreview.Unchanged), rv.Theme.Preview, opts), nil
	}
}

// renderDiff shows the selected revision against the one it follows.
func (rv *RevisionView) renderDiff(ctx context.Context, sel *util.RevisionEntry, opts diffpreview.RenderOptions) (string, error) {
	cur, err := rv.trackerService.Restore(ctx, sel.ObjectID, sel.RevisionID)
	if err != nil {
		return "", err
	}

	var prev *tree.Node
	switch {
	case sel.Patch != nil:
		prev, err = rv.trackerService.Restore(ctx, sel.ObjectID, sel.Patch.PreviousID)
	case sel.RevisionID > 0:
		prev, err = rv.trackerService.Restore(ctx, sel.ObjectID, sel.Snapshot.PreviousID)
	}
	if err != nil {
		return "", err
	}

	if prev == nil || prev.Label != cur.Label {
		return diffpreview.RenderYAML(diffpreview.Annotate(cur, diffpreview.Added), rv.Theme.Preview, opts), nil
	}
	node, err := diffpreview.Compare(prev, cur)
	if err != nil {
		return "", err
	}
	if node.Change == diffpreview.Unchanged {
		return rv.Theme.MutedTextStyle.Render("no difference between versions"), nil
	}
	return diffpreview.RenderYAML(node, rv.Theme.Preview, opts), nil
}

func (rv *RevisionView) currentSelection() *util.RevisionEntry {
	line := 0
	for _, obj := range rv.order {
		if line == rv.cursor {
			return nil
		}
		line++
		oe := rv.objects[obj]
		if !oe.open {
			continue
		}
		for i := range oe.revs {
			if line == rv.cursor {
				return &oe.revs[i]
			}
			line++
		}
	}
	return nil
}
