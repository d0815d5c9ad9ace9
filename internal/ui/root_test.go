package ui

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/loog-project/cattree/internal/store"
	"github.com/loog-project/cattree/internal/util"
	"github.com/loog-project/cattree/pkg/treediff"
)

// run feeds msg to the model and every message its commands produce.
func run(t *testing.T, m tea.Model, msg tea.Msg) tea.Model {
	t.Helper()
	m, cmd := m.Update(msg)
	if cmd == nil {
		return m
	}
	if next := cmd(); next != nil {
		if _, batch := next.(tea.BatchMsg); !batch {
			m = run(t, m, next)
		}
	}
	return m
}

func TestRootViewStack(t *testing.T) {
	view := NewRevisionView(nil)
	var m tea.Model = NewRoot(DarkTheme, view, WithLogger(NewUILogger()))
	m = run(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	m = run(t, m, NewAlert("load", errors.New("boom")))
	r := m.(Root)
	if len(r.ViewStack) != 2 || !isViewOpen[*AlertView](r) {
		t.Fatalf("alert not pushed: %d views", len(r.ViewStack))
	}
	if !strings.Contains(r.View(), "boom") {
		t.Fatal("alert text not rendered")
	}

	// a second alert replaces the first
	m = run(t, m, NewAlert("load", errors.New("again")))
	if len(m.(Root).ViewStack) != 2 {
		t.Fatal("second alert should replace the first")
	}

	m = run(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if len(m.(Root).ViewStack) != 1 {
		t.Fatal("esc should pop the alert")
	}

	// the root view cannot be popped
	m = run(t, m, stackMsg{op: Pop})
	if len(m.(Root).ViewStack) != 1 {
		t.Fatal("root view popped")
	}
}

func TestRootCountsRevisions(t *testing.T) {
	now := time.Now()
	root := NewRoot(DarkTheme, NewRevisionView(nil), WithTitle("catalog.cattree"), WithRevisions([]util.RevisionEntry{
		{ObjectID: "shop", RevisionID: 0, Time: now, Snapshot: &store.Snapshot{}},
		{ObjectID: "shop", RevisionID: 1, Time: now, Patch: &store.Patch{ID: 1, Diff: &treediff.Diff{Label: "shop"}}},
		{ObjectID: "hr", RevisionID: 0, Time: now, Snapshot: &store.Snapshot{}},
	}))
	if root.status() != "" {
		t.Fatal("status before anything was loaded")
	}

	// Init batches the tick with the initial revisions
	batch, ok := root.Init()().(tea.BatchMsg)
	if !ok || len(batch) != 2 {
		t.Fatalf("unexpected init message %T", batch)
	}
	var m tea.Model = *root
	m = run(t, m, batch[1]())

	r := m.(Root)
	if len(r.objects) != 2 || r.revisions != 3 {
		t.Fatalf("counted %d objects, %d revisions", len(r.objects), r.revisions)
	}
	if s := r.status(); !strings.HasPrefix(s, "catalog.cattree · 2 objects · 3 revisions") {
		t.Fatalf("unexpected status %q", s)
	}
	if rv := r.ViewStack[0].(*RevisionView); rv.totalLines() != 2 {
		t.Fatalf("revision view got %d lines", rv.totalLines())
	}
}

func TestRevisionViewNavigation(t *testing.T) {
	now := time.Now()
	view := NewRevisionView(nil)
	view.SetTheme(DarkTheme)
	view.SetSize(120, 40)
	view.Update(NewRevisionsMsg([]util.RevisionEntry{
		{ObjectID: "b", RevisionID: 0, Time: now, Snapshot: &store.Snapshot{}},
		{ObjectID: "a", RevisionID: 0, Time: now, Snapshot: &store.Snapshot{}},
		{ObjectID: "a", RevisionID: 1, Time: now.Add(time.Second), Patch: &store.Patch{ID: 1, Diff: &treediff.Diff{Label: "a"}}},
	}))

	if view.totalLines() != 2 || view.order[0] != "a" {
		t.Fatalf("objects not sorted or not collapsed: %v", view.order)
	}
	view.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if view.totalLines() != 4 {
		t.Fatalf("want 4 lines after expanding, got %d", view.totalLines())
	}

	// the modes that work without the tracker
	view.renderMode = modeShowDiffDump
	view.Update(tea.KeyMsg{Type: tea.KeyDown})
	view.Update(tea.KeyMsg{Type: tea.KeyDown})
	sel := view.currentSelection()
	if sel == nil || sel.ObjectID != "a" || sel.RevisionID != 1 {
		t.Fatalf("unexpected selection %+v", sel)
	}

	for i := 0; i < 10; i++ {
		view.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	if view.cursor != 3 {
		t.Fatalf("cursor should stop at the last line, is at %d", view.cursor)
	}
}

func TestUILoggerLevels(t *testing.T) {
	l := NewUILogger()
	logger := zerolog.New(l)
	logger.Debug().Msg("hidden")
	logger.Info().Str("object", "shop").Msg("committed")
	logger.Error().Err(errors.New("bad")).Msg("restore failed")

	msgs := l.snapshot()
	if len(msgs) != 2 {
		t.Fatalf("want 2 messages, got %d", len(msgs))
	}
	if msgs[0].Source != "shop" || msgs[1].Text != "restore failed: bad" || msgs[1].Level != LogLevelError {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if info, _, errs := l.unread(true); info != 1 || errs != 1 {
		t.Fatalf("unread counters %d/%d", info, errs)
	}
	if info, _, _ := l.unread(false); info != 0 {
		t.Fatal("counters not reset")
	}
}

func TestLogViewLevelFilter(t *testing.T) {
	l := NewUILogger()
	logger := zerolog.New(l)
	logger.Info().Msg("one")
	logger.Warn().Msg("two")
	logger.Error().Msg("three")

	var m tea.Model = NewRoot(DarkTheme, NewRevisionView(nil), WithLogger(l))
	m = run(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = run(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("L")})

	r := m.(Root)
	lv, ok := r.ViewStack[len(r.ViewStack)-1].(*LogView)
	if !ok {
		t.Fatal("L did not open the log view")
	}
	if info, warn, errs := l.unread(false); info+warn+errs != 0 {
		t.Fatal("opening the log view should mark everything read")
	}

	for _, want := range []int{2, 1, 3} {
		m = run(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("w")})
		if lv.shown != want {
			t.Fatalf("level %s: want %d lines, got %d", lv.minLevel, want, lv.shown)
		}
	}

	m = run(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("L")})
	if len(m.(Root).ViewStack) != 1 {
		t.Fatal("L should close the log view again")
	}
}

func TestUILoggerKeepsNewestLines(t *testing.T) {
	l := NewUILogger()
	for i := 0; i < maxLogLines+5; i++ {
		l.send(LogLevelInfo, "test", strconv.Itoa(i))
	}

	msgs := l.snapshot()
	if len(msgs) != maxLogLines {
		t.Fatalf("want %d lines, got %d", maxLogLines, len(msgs))
	}
	if msgs[0].Text != "5" || msgs[len(msgs)-1].Text != strconv.Itoa(maxLogLines+4) {
		t.Fatalf("ring out of order: first %q, last %q", msgs[0].Text, msgs[len(msgs)-1].Text)
	}
	if info, _, _ := l.unread(false); info != maxLogLines+5 {
		t.Fatalf("unread counts every line, got %d", info)
	}
}
