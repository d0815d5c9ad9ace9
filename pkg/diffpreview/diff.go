package diffpreview

import (
	"fmt"
	"slices"

	"github.com/loog-project/cattree/pkg/tree"
	"github.com/loog-project/cattree/pkg/treediff"
)

// ChangeType indicates the kind of change at a node
type ChangeType int

const (
	Unchanged ChangeType = iota
	Added
	Removed
	Modified
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	default:
		return "unchanged"
	}
}

// AnnotatedAttribute is one attribute of an AnnotatedNode. Old is only set
// for Modified attributes.
type AnnotatedAttribute struct {
	Name   string
	Value  string
	Old    string
	Change ChangeType
}

// AnnotatedNode represents a node in the annotated tree
type AnnotatedNode struct {
	Label      string
	Change     ChangeType
	Reordered  bool
	Attributes []AnnotatedAttribute
	Children   []*AnnotatedNode
}

// Compare diffs a against b and annotates the result.
func Compare(a, b *tree.Node) (*AnnotatedNode, error) {
	d, err := treediff.Compute(a, b)
	if err != nil {
		return nil, err
	}
	return Build(a, d)
}

// Build annotates old with the edits of d. A nil d marks everything
// Unchanged. Neither argument is modified.
func Build(old *tree.Node, d *treediff.Diff) (*AnnotatedNode, error) {
	if d == nil {
		return whole(old, Unchanged), nil
	}
	if old.Label != d.Label {
		return nil, fmt.Errorf("%w: %q vs %q", treediff.ErrLabelMismatch, old.Label, d.Label)
	}
	return build(old, d, old.Label)
}

func build(old *tree.Node, d *treediff.Diff, path string) (*AnnotatedNode, error) {
	node := &AnnotatedNode{Label: old.Label, Reordered: len(d.Order) > 0}

	names := old.AttributeNames()
	for name := range d.AddedAttributes {
		if _, ok := old.Attributes[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	for _, name := range names {
		attr := AnnotatedAttribute{Name: name, Value: old.Attributes[name]}
		if v, ok := d.AddedAttributes[name]; ok {
			attr.Value, attr.Change = v, Added
		} else if slices.Contains(d.RemovedAttributes, name) {
			attr.Change = Removed
		} else if v, ok := d.ChangedAttributes[name]; ok {
			attr.Old, attr.Value, attr.Change = attr.Value, v, Modified
		}
		node.Attributes = append(node.Attributes, attr)
	}

	removed := make(map[string]bool, len(d.RemovedChildren))
	for _, c := range d.RemovedChildren {
		removed[c.Label] = true
	}

	kept := make(map[string]*AnnotatedNode, len(old.Children))
	var gone []*AnnotatedNode
	var order []*AnnotatedNode
	for _, c := range old.Children {
		if removed[c.Label] {
			a := whole(c, Removed)
			gone = append(gone, a)
			order = append(order, a)
			continue
		}
		var a *AnnotatedNode
		if cd, ok := d.ChangedChildren[c.Label]; ok {
			var err error
			if a, err = build(c, cd, path+"/"+c.Label); err != nil {
				return nil, err
			}
		} else {
			a = whole(c, Unchanged)
		}
		kept[c.Label] = a
		order = append(order, a)
	}
	for label := range d.ChangedChildren {
		if _, ok := kept[label]; !ok {
			return nil, fmt.Errorf("%w: %q at %s", treediff.ErrMissingChild, label, path)
		}
	}
	for _, c := range d.AddedChildren {
		a := whole(c, Added)
		kept[c.Label] = a
		order = append(order, a)
	}

	// with an explicit order, removed children trail the new sequence
	if node.Reordered {
		order = order[:0]
		for _, label := range d.Order {
			a, ok := kept[label]
			if !ok {
				return nil, fmt.Errorf("%w: %q in order at %s", treediff.ErrMissingChild, label, path)
			}
			order = append(order, a)
		}
		order = append(order, gone...)
	}
	node.Children = order

	if node.Reordered || len(d.AddedAttributes)+len(d.RemovedAttributes)+len(d.ChangedAttributes) > 0 ||
		len(d.AddedChildren)+len(d.RemovedChildren)+len(d.ChangedChildren) > 0 {
		node.Change = Modified
	}
	return node, nil
}

// Annotate marks n and everything below it with the same change, e.g. Added
// for the first revision of an object.
func Annotate(n *tree.Node, change ChangeType) *AnnotatedNode {
	return whole(n, change)
}

func whole(n *tree.Node, change ChangeType) *AnnotatedNode {
	node := &AnnotatedNode{Label: n.Label, Change: change}
	for _, name := range n.AttributeNames() {
		node.Attributes = append(node.Attributes, AnnotatedAttribute{
			Name:   name,
			Value:  n.Attributes[name],
			Change: change,
		})
	}
	for _, c := range n.Children {
		node.Children = append(node.Children, whole(c, change))
	}
	return node
}
