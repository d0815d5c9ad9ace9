package treediff

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/loog-project/cattree/pkg/tree"
)

var (
	// ErrLabelMismatch is returned when two trees (or a tree and a diff)
	// describe different entities.
	ErrLabelMismatch = errors.New("labels do not match")
	// ErrMissingChild is returned when a diff refers to a child the target
	// does not have, i.e. the target is not in the state the diff was
	// computed from.
	ErrMissingChild = errors.New("missing child")
	// ErrMalformedDiff is returned by [Apply] for a diff that [Compute] cannot
	// produce, such as one decoded from a damaged message with nil entries.
	ErrMalformedDiff = errors.New("malformed diff")
	// ErrDuplicateLabel is [tree.ErrDuplicateLabel].
	ErrDuplicateLabel = tree.ErrDuplicateLabel
)

// Diff holds the edits that turn one node into another node with the same
// label. Nested diffs describe children present on both sides.
//
// A Diff owns copies of every subtree it carries and is never mutated after
// [Compute] returns it, so it may be applied to any number of trees.
type Diff struct {
	Label string `msgpack:"l"`

	AddedAttributes   map[string]string `msgpack:"aa,omitempty"`
	RemovedAttributes []string          `msgpack:"ra,omitempty"` // sorted
	ChangedAttributes map[string]string `msgpack:"ca,omitempty"`

	AddedChildren   []*tree.Node     `msgpack:"ac,omitempty"`
	RemovedChildren []*tree.Node     `msgpack:"rc,omitempty"`
	ChangedChildren map[string]*Diff `msgpack:"cc,omitempty"`

	// Order is the final child label order. It is only set when removing
	// children and appending the added ones would not reproduce it.
	Order []string `msgpack:"o,omitempty"`
}

// Compute returns the diff that turns old into new. Both trees must carry the
// same label and unique child labels at every level; neither is modified.
func Compute(old, new *tree.Node) (*Diff, error) {
	if old.Label != new.Label {
		return nil, fmt.Errorf("%w: %q and %q", ErrLabelMismatch, old.Label, new.Label)
	}
	if err := old.Validate(); err != nil {
		return nil, fmt.Errorf("old tree: %w", err)
	}
	if err := new.Validate(); err != nil {
		return nil, fmt.Errorf("new tree: %w", err)
	}
	return compute(old, new), nil
}

func compute(a, b *tree.Node) *Diff {
	d := &Diff{Label: a.Label}

	// removed and changed attributes walking a's keys, added walking b's
	for _, k := range a.AttributeNames() {
		bv, ok := b.Attributes[k]
		switch {
		case !ok:
			d.RemovedAttributes = append(d.RemovedAttributes, k)
		case bv != a.Attributes[k]:
			d.ChangedAttributes = put(d.ChangedAttributes, k, bv)
		}
	}
	for _, k := range b.AttributeNames() {
		if _, ok := a.Attributes[k]; !ok {
			d.AddedAttributes = put(d.AddedAttributes, k, b.Attributes[k])
		}
	}

	inA := labelIndex(a)
	inB := labelIndex(b)
	for _, c := range a.Children {
		if _, ok := inB[c.Label]; !ok {
			d.RemovedChildren = append(d.RemovedChildren, c.Duplicate())
		}
	}
	for _, c := range b.Children {
		i, ok := inA[c.Label]
		if !ok {
			d.AddedChildren = append(d.AddedChildren, c.Duplicate())
			continue
		}
		if sub := compute(a.Children[i], c); !sub.IsEmpty() {
			if d.ChangedChildren == nil {
				d.ChangedChildren = make(map[string]*Diff)
			}
			d.ChangedChildren[c.Label] = sub
		}
	}
	if !appendReproducesOrder(a, b, inA, inB) {
		d.Order = labels(b)
	}
	return d
}

// appendReproducesOrder reports whether removing a's children that b lacks
// and appending b's new children yields b's child order.
func appendReproducesOrder(a, b *tree.Node, inA, inB map[string]int) bool {
	i := 0
	for _, c := range a.Children {
		if _, ok := inB[c.Label]; !ok {
			continue
		}
		if b.Children[i].Label != c.Label {
			return false
		}
		i++
	}
	for ; i < len(b.Children); i++ {
		if _, ok := inA[b.Children[i].Label]; ok {
			return false
		}
	}
	return true
}

func labelIndex(n *tree.Node) map[string]int {
	idx := make(map[string]int, len(n.Children))
	for i, c := range n.Children {
		if _, ok := idx[c.Label]; !ok {
			idx[c.Label] = i
		}
	}
	return idx
}

func labels(n *tree.Node) []string {
	out := make([]string, len(n.Children))
	for i, c := range n.Children {
		out[i] = c.Label
	}
	return out
}

func put(m map[string]string, k, v string) map[string]string {
	if m == nil {
		m = make(map[string]string)
	}
	m[k] = v
	return m
}

// IsEmpty reports whether the diff changes nothing.
func (d *Diff) IsEmpty() bool {
	return len(d.AddedAttributes) == 0 &&
		len(d.RemovedAttributes) == 0 &&
		len(d.ChangedAttributes) == 0 &&
		len(d.AddedChildren) == 0 &&
		len(d.RemovedChildren) == 0 &&
		len(d.ChangedChildren) == 0 &&
		len(d.Order) == 0
}

// Stats counts the edits of a diff including its nested diffs.
type Stats struct {
	AddedAttributes   int
	RemovedAttributes int
	ChangedAttributes int
	AddedChildren     int
	RemovedChildren   int
	ChangedChildren   int
	Reordered         int
}

// Edits is the total number of recorded edits.
func (s Stats) Edits() int {
	return s.AddedAttributes + s.RemovedAttributes + s.ChangedAttributes +
		s.AddedChildren + s.RemovedChildren + s.Reordered
}

func (d *Diff) Stats() Stats {
	s := Stats{
		AddedAttributes:   len(d.AddedAttributes),
		RemovedAttributes: len(d.RemovedAttributes),
		ChangedAttributes: len(d.ChangedAttributes),
		AddedChildren:     len(d.AddedChildren),
		RemovedChildren:   len(d.RemovedChildren),
		ChangedChildren:   len(d.ChangedChildren),
	}
	if len(d.Order) > 0 {
		s.Reordered = 1
	}
	for _, sub := range d.ChangedChildren {
		ss := sub.Stats()
		s.AddedAttributes += ss.AddedAttributes
		s.RemovedAttributes += ss.RemovedAttributes
		s.ChangedAttributes += ss.ChangedAttributes
		s.AddedChildren += ss.AddedChildren
		s.RemovedChildren += ss.RemovedChildren
		s.ChangedChildren += ss.ChangedChildren
		s.Reordered += ss.Reordered
	}
	return s
}

func (d *Diff) String() string {
	var sb strings.Builder
	d.dump(&sb, "")
	return sb.String()
}

func (d *Diff) dump(sb *strings.Builder, indent string) {
	fmt.Fprintf(sb, "%sNAME: %s\n", indent, d.Label)
	fmt.Fprintf(sb, "%sADDED: %s\n", indent, formatAttrs(d.AddedAttributes))
	fmt.Fprintf(sb, "%sREMOVED: [%s]\n", indent, strings.Join(d.RemovedAttributes, ", "))
	fmt.Fprintf(sb, "%sCHANGED: %s\n", indent, formatAttrs(d.ChangedAttributes))
	if len(d.Order) > 0 {
		fmt.Fprintf(sb, "%sORDER: [%s]\n", indent, strings.Join(d.Order, ", "))
	}
	sb.WriteString(indent + "NEW CHILDREN:\n")
	for _, c := range d.AddedChildren {
		sb.WriteString(indentLines(c.String(), indent+"   "))
	}
	sb.WriteString(indent + "DEAD CHILDREN:\n")
	for _, c := range d.RemovedChildren {
		sb.WriteString(indentLines(c.String(), indent+"   "))
	}
	sb.WriteString(indent + "CHANGED CHILDREN:\n")
	for _, k := range slices.Sorted(maps.Keys(d.ChangedChildren)) {
		d.ChangedChildren[k].dump(sb, indent+"   ")
	}
}

func formatAttrs(m map[string]string) string {
	parts := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		parts = append(parts, k+"="+m[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func indentLines(s, indent string) string {
	lines := strings.SplitAfter(s, "\n")
	var sb strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		sb.WriteString(indent + l)
	}
	return sb.String()
}
