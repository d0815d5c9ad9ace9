// Package tree models catalog elements and plan nodes as labeled trees with
// string attributes and ordered, uniquely labeled children.
package tree

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrDuplicateLabel is returned when two children of the same node would
// share a label. Children are addressed by label, so the condition is
// rejected instead of resolved by position.
var ErrDuplicateLabel = errors.New("duplicate child label")

// ErrInvalidChild is returned for a nil child or a child without a label,
// as decoded from an incomplete file or message.
var ErrInvalidChild = errors.New("invalid child")

// Node is one catalog element or plan node.
//
// Attributes are iterated in sorted key order (see [Node.AttributeNames]).
// Children keep their insertion order and each child label is unique among
// its siblings.
type Node struct {
	Label      string            `msgpack:"l" yaml:"label"`
	Attributes map[string]string `msgpack:"a,omitempty" yaml:"attributes,omitempty"`
	Children   []*Node           `msgpack:"c,omitempty" yaml:"children,omitempty"`
}

// New returns a node without attributes and children.
func New(label string) *Node {
	return &Node{Label: label}
}

// WithAttribute sets (or overwrites) an attribute and returns the node.
func (n *Node) WithAttribute(name, value string) *Node {
	if n.Attributes == nil {
		n.Attributes = make(map[string]string)
	}
	n.Attributes[name] = value
	return n
}

// Attribute returns the value of an attribute and whether it is set.
func (n *Node) Attribute(name string) (string, bool) {
	v, ok := n.Attributes[name]
	return v, ok
}

// RemoveAttribute deletes an attribute; a missing one is ignored.
func (n *Node) RemoveAttribute(name string) {
	delete(n.Attributes, name)
}

// AttributeNames returns the attribute keys in lexicographic order.
func (n *Node) AttributeNames() []string {
	return slices.Sorted(maps.Keys(n.Attributes))
}

// Name returns the conventional "name" attribute of catalog elements.
func (n *Node) Name() string {
	return n.Attributes["name"]
}

// IndexOf returns the index of the first child with the given label, or -1.
func (n *Node) IndexOf(label string) int {
	for i, c := range n.Children {
		if c.Label == label {
			return i
		}
	}
	return -1
}

// FindChild returns the first child with the given label, or nil.
func (n *Node) FindChild(label string) *Node {
	if i := n.IndexOf(label); i >= 0 {
		return n.Children[i]
	}
	return nil
}

// AddChild appends child. It fails with [ErrDuplicateLabel] if a child with
// the same label already exists.
func (n *Node) AddChild(child *Node) error {
	if n.IndexOf(child.Label) >= 0 {
		return fmt.Errorf("%w: %q under %q", ErrDuplicateLabel, child.Label, n.Label)
	}
	n.Children = append(n.Children, child)
	return nil
}

// WithChildren appends the children and returns the node. It is meant for
// building trees in code and panics on a duplicate label.
func (n *Node) WithChildren(children ...*Node) *Node {
	for _, c := range children {
		if err := n.AddChild(c); err != nil {
			panic(err)
		}
	}
	return n
}

// RemoveChild detaches the first child with the given label.
func (n *Node) RemoveChild(label string) (*Node, bool) {
	i := n.IndexOf(label)
	if i < 0 {
		return nil, false
	}
	child := n.Children[i]
	n.Children = slices.Delete(n.Children, i, i+1)
	return child, true
}

// Duplicate returns a deep copy of the subtree rooted at n.
func (n *Node) Duplicate() *Node {
	dup := &Node{Label: n.Label}
	if len(n.Attributes) > 0 {
		dup.Attributes = maps.Clone(n.Attributes)
	}
	if len(n.Children) > 0 {
		dup.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			dup.Children[i] = c.Duplicate()
		}
	}
	return dup
}

// Validate checks that every child in the subtree is present and labeled and
// that no node has two children with the same label.
func (n *Node) Validate() error {
	return n.validate(n.Label)
}

func (n *Node) validate(path string) error {
	seen := make(map[string]struct{}, len(n.Children))
	for i, c := range n.Children {
		switch {
		case c == nil:
			return fmt.Errorf("%w: nil child #%d at %s", ErrInvalidChild, i, path)
		case c.Label == "":
			return fmt.Errorf("%w: child #%d at %s has no label", ErrInvalidChild, i, path)
		}
		if _, dup := seen[c.Label]; dup {
			return fmt.Errorf("%w: %q at %s", ErrDuplicateLabel, c.Label, path)
		}
		seen[c.Label] = struct{}{}
		if err := c.validate(path + "/" + c.Label); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports whether a and b have the same label, the same attributes and
// equal children in the same order. A nil and an empty attribute map are
// equal.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Label != b.Label || len(a.Attributes) != len(b.Attributes) || len(a.Children) != len(b.Children) {
		return false
	}
	if !maps.Equal(a.Attributes, b.Attributes) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// String renders an indented dump of the subtree for diagnostics.
func (n *Node) String() string {
	var sb strings.Builder
	n.dump(&sb, "")
	return sb.String()
}

func (n *Node) dump(sb *strings.Builder, indent string) {
	sb.WriteString(indent + "ELEMENT: " + n.Label + "\n")
	for _, k := range n.AttributeNames() {
		sb.WriteString(indent + " " + k + " = " + n.Attributes[k] + "\n")
	}
	if len(n.Children) == 0 {
		return
	}
	sb.WriteString(indent + "[\n")
	for _, c := range n.Children {
		c.dump(sb, indent+"   ")
	}
}
