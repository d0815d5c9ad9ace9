package treediff

import (
	"fmt"
	"maps"
	"slices"

	"github.com/loog-project/cattree/pkg/tree"
)

// Apply mutates target so that, after the call, it equals the tree the diff
// was computed towards. target must be in the state the diff was computed
// from and must not be used by anyone else during the call.
//
// The whole diff is checked against target first: on error target is left
// untouched. Applying the same diff twice fails with [ErrMissingChild] or
// [ErrDuplicateLabel] if it edits children, and is a no-op if it only edits
// attributes.
func Apply(target *tree.Node, d *Diff) error {
	if d == nil {
		return fmt.Errorf("%w: nil diff for %q", ErrMalformedDiff, target.Label)
	}
	if target.Label != d.Label {
		return fmt.Errorf("%w: diff for %q applied to %q", ErrLabelMismatch, d.Label, target.Label)
	}
	if err := check(target, d, target.Label); err != nil {
		return err
	}
	apply(target, d)
	return nil
}

// Patch applies d to a copy of old and returns the copy.
func Patch(old *tree.Node, d *Diff) (*tree.Node, error) {
	dup := old.Duplicate()
	if err := Apply(dup, d); err != nil {
		return nil, err
	}
	return dup, nil
}

// check verifies that every child edit in d can be carried out on t.
func check(t *tree.Node, d *Diff, path string) error {
	present := make(map[string]bool, len(t.Children))
	for _, c := range t.Children {
		if present[c.Label] {
			return fmt.Errorf("%w: %q at %s", ErrDuplicateLabel, c.Label, path)
		}
		present[c.Label] = true
	}
	removed := make(map[string]bool, len(d.RemovedChildren))
	for _, c := range d.RemovedChildren {
		if c == nil {
			return fmt.Errorf("%w: nil removed child at %s", ErrMalformedDiff, path)
		}
		if !present[c.Label] || removed[c.Label] {
			return fmt.Errorf("%w: cannot remove %q at %s", ErrMissingChild, c.Label, path)
		}
		removed[c.Label] = true
	}
	result := len(t.Children) - len(removed)
	for _, c := range d.AddedChildren {
		if c == nil || c.Label == "" {
			return fmt.Errorf("%w: nil or unlabeled added child at %s", ErrMalformedDiff, path)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: added child %q at %s: %w", ErrMalformedDiff, c.Label, path, err)
		}
		if present[c.Label] && !removed[c.Label] {
			return fmt.Errorf("%w: cannot add %q at %s", ErrDuplicateLabel, c.Label, path)
		}
		present[c.Label] = true
		removed[c.Label] = false
		result++
	}
	if len(d.Order) > 0 {
		if len(d.Order) != result {
			return fmt.Errorf("%w: child order of %s lists %d of %d children",
				ErrMissingChild, path, len(d.Order), result)
		}
		ordered := make(map[string]bool, len(d.Order))
		for _, l := range d.Order {
			if !present[l] || removed[l] || ordered[l] {
				return fmt.Errorf("%w: cannot order %q at %s", ErrMissingChild, l, path)
			}
			ordered[l] = true
		}
	}
	for _, l := range slices.Sorted(maps.Keys(d.ChangedChildren)) {
		sub := d.ChangedChildren[l]
		if sub == nil {
			return fmt.Errorf("%w: nil diff for %q at %s", ErrMalformedDiff, l, path)
		}
		child := t.FindChild(l)
		if child == nil || removed[l] {
			return fmt.Errorf("%w: cannot change %q at %s", ErrMissingChild, l, path)
		}
		if sub.Label != l {
			return fmt.Errorf("%w: diff for %q stored under %q at %s", ErrLabelMismatch, sub.Label, l, path)
		}
		if err := check(child, sub, path+"/"+l); err != nil {
			return err
		}
	}
	return nil
}

func apply(t *tree.Node, d *Diff) {
	for k, v := range d.AddedAttributes {
		t.WithAttribute(k, v)
	}
	for _, k := range d.RemovedAttributes {
		t.RemoveAttribute(k)
	}
	for k, v := range d.ChangedAttributes {
		t.WithAttribute(k, v)
	}

	for _, c := range d.RemovedChildren {
		t.RemoveChild(c.Label)
	}
	for _, c := range d.AddedChildren {
		// copied so that the diff can be applied again elsewhere
		t.Children = append(t.Children, c.Duplicate())
	}
	if len(d.Order) > 0 {
		byLabel := make(map[string]*tree.Node, len(t.Children))
		for _, c := range t.Children {
			byLabel[c.Label] = c
		}
		for i, l := range d.Order {
			t.Children[i] = byLabel[l]
		}
	}

	for _, l := range slices.Sorted(maps.Keys(d.ChangedChildren)) {
		apply(t.FindChild(l), d.ChangedChildren[l])
	}
}
