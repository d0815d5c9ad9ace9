package util

import (
	"slices"
	"time"

	"github.com/loog-project/cattree/internal/store"
	"github.com/loog-project/cattree/pkg/tree"
	"github.com/loog-project/cattree/pkg/treediff"
)

// RevisionEntry is a stored revision as listed by the CLI and the browser.
type RevisionEntry struct {
	ObjectID   string
	RevisionID store.RevisionID
	Time       time.Time
	Size       int // encoded size in bytes

	Snapshot *store.Snapshot
	Patch    *store.Patch
}

// RevisionEnv is the environment of filter expressions. Exactly one of snap
// and patch is set.
type RevisionEnv struct {
	ID  string
	Rev uint64

	snap  *store.Snapshot
	patch *store.Patch
}

func NewRevisionEnv(e RevisionEntry) RevisionEnv {
	return RevisionEnv{
		ID:    e.ObjectID,
		Rev:   uint64(e.RevisionID),
		snap:  e.Snapshot,
		patch: e.Patch,
	}
}

func (e RevisionEnv) All() bool {
	return true
}

func (e RevisionEnv) None() bool {
	return false
}

func (e RevisionEnv) Snapshot() bool {
	return e.snap != nil
}

func (e RevisionEnv) Patch() bool {
	return e.patch != nil
}

func (e RevisionEnv) Object(ids ...string) bool {
	if len(ids) == 0 {
		return true
	}
	return slices.Contains(ids, e.ID)
}

func (e RevisionEnv) diff() *treediff.Diff {
	if e.patch == nil {
		return nil
	}
	return e.patch.Diff
}

// Changed reports whether the patch edits a node with one of the labels at
// any depth. Without labels it reports whether the patch edits anything.
func (e RevisionEnv) Changed(labels ...string) bool {
	d := e.diff()
	if d == nil {
		return false
	}
	if len(labels) == 0 {
		return !d.IsEmpty()
	}
	return walkDiff(d, func(d *treediff.Diff) bool {
		if !slices.Contains(labels, d.Label) {
			return false
		}
		return len(d.AddedAttributes) > 0 || len(d.RemovedAttributes) > 0 ||
			len(d.ChangedAttributes) > 0 || len(d.Order) > 0 ||
			len(d.AddedChildren) > 0 || len(d.RemovedChildren) > 0 || len(d.ChangedChildren) > 0
	})
}

// Added reports whether the patch adds a child with one of the labels.
func (e RevisionEnv) Added(labels ...string) bool {
	return e.childEdit(labels, func(d *treediff.Diff) []*tree.Node { return d.AddedChildren })
}

// Removed reports whether the patch removes a child with one of the labels.
func (e RevisionEnv) Removed(labels ...string) bool {
	return e.childEdit(labels, func(d *treediff.Diff) []*tree.Node { return d.RemovedChildren })
}

func (e RevisionEnv) childEdit(labels []string, children func(*treediff.Diff) []*tree.Node) bool {
	d := e.diff()
	if d == nil {
		return false
	}
	return walkDiff(d, func(d *treediff.Diff) bool {
		for _, c := range children(d) {
			if len(labels) == 0 || slices.Contains(labels, c.Label) {
				return true
			}
		}
		return false
	})
}

// HasAttr reports whether a snapshot carries the attribute on any node, or
// whether a patch adds, changes or removes it on any node.
func (e RevisionEnv) HasAttr(name string) bool {
	if e.snap != nil {
		return e.snap.Tree != nil && walkTree(e.snap.Tree, func(n *tree.Node) bool {
			_, ok := n.Attributes[name]
			return ok
		})
	}
	d := e.diff()
	if d == nil {
		return false
	}
	return walkDiff(d, func(d *treediff.Diff) bool {
		_, added := d.AddedAttributes[name]
		_, changed := d.ChangedAttributes[name]
		return added || changed || slices.Contains(d.RemovedAttributes, name)
	})
}

// walkDiff reports whether fn holds for d or any nested diff.
func walkDiff(d *treediff.Diff, fn func(*treediff.Diff) bool) bool {
	if fn(d) {
		return true
	}
	for _, c := range d.ChangedChildren {
		if walkDiff(c, fn) {
			return true
		}
	}
	return false
}

func walkTree(n *tree.Node, fn func(*tree.Node) bool) bool {
	if fn(n) {
		return true
	}
	for _, c := range n.Children {
		if walkTree(c, fn) {
			return true
		}
	}
	return false
}
