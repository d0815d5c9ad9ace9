package tree_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/loog-project/cattree/pkg/tree"
)

func table() *tree.Node {
	return tree.New("table").
		WithAttribute("name", "T1").
		WithChildren(
			tree.New("a").WithAttribute("type", "int"),
			tree.New("b").WithAttribute("type", "varchar"),
		)
}

func TestWithAttributeOverwrites(t *testing.T) {
	n := tree.New("column").WithAttribute("name", "a").WithAttribute("name", "b")
	if got, ok := n.Attribute("name"); !ok || got != "b" {
		t.Fatalf("want name=b, got %q (present=%v)", got, ok)
	}
	if n.Name() != "b" {
		t.Fatalf("Name() want b, got %q", n.Name())
	}
	n.RemoveAttribute("name")
	if _, ok := n.Attribute("name"); ok {
		t.Fatal("attribute should be gone")
	}
}

func TestAttributeNamesSorted(t *testing.T) {
	n := tree.New("x").WithAttribute("z", "1").WithAttribute("a", "2").WithAttribute("m", "3")
	if got := strings.Join(n.AttributeNames(), ","); got != "a,m,z" {
		t.Fatalf("want a,m,z, got %s", got)
	}
}

func TestChildren(t *testing.T) {
	n := table()
	if c := n.FindChild("b"); c == nil || c.Attributes["type"] != "varchar" {
		t.Fatalf("FindChild(b) returned %v", c)
	}
	if n.FindChild("nope") != nil {
		t.Fatal("FindChild should return nil for unknown labels")
	}
	if i := n.IndexOf("b"); i != 1 {
		t.Fatalf("IndexOf(b) want 1, got %d", i)
	}

	err := n.AddChild(tree.New("a"))
	if !errors.Is(err, tree.ErrDuplicateLabel) {
		t.Fatalf("want ErrDuplicateLabel, got %v", err)
	}
	if len(n.Children) != 2 {
		t.Fatalf("rejected child must not be appended, have %d children", len(n.Children))
	}

	removed, ok := n.RemoveChild("a")
	if !ok || removed.Label != "a" {
		t.Fatalf("RemoveChild(a) = %v, %v", removed, ok)
	}
	if len(n.Children) != 1 || n.Children[0].Label != "b" {
		t.Fatalf("unexpected children after removal: %v", n.Children)
	}
	if _, ok := n.RemoveChild("a"); ok {
		t.Fatal("second removal should report false")
	}
}

func TestWithChildrenPanicsOnDuplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	tree.New("table").WithChildren(tree.New("a"), tree.New("a"))
}

func TestDuplicateIsDeep(t *testing.T) {
	orig := table()
	dup := orig.Duplicate()
	if !tree.Equal(orig, dup) {
		t.Fatal("duplicate should equal original")
	}

	dup.WithAttribute("name", "T2")
	dup.Children[0].WithAttribute("type", "bigint")
	dup.WithChildren(tree.New("c"))

	if orig.Name() != "T1" || orig.Children[0].Attributes["type"] != "int" || len(orig.Children) != 2 {
		t.Fatalf("original changed through its duplicate:\n%s", orig)
	}
}

func TestEqual(t *testing.T) {
	a := tree.New("x")
	b := &tree.Node{Label: "x", Attributes: map[string]string{}}
	if !tree.Equal(a, b) {
		t.Fatal("nil and empty attributes should be equal")
	}
	if tree.Equal(a, nil) || !tree.Equal(nil, nil) {
		t.Fatal("nil handling is wrong")
	}
	c1 := tree.New("p").WithChildren(tree.New("a"), tree.New("b"))
	c2 := tree.New("p").WithChildren(tree.New("b"), tree.New("a"))
	if tree.Equal(c1, c2) {
		t.Fatal("child order must matter")
	}
}

func TestValidate(t *testing.T) {
	n := &tree.Node{Label: "db", Children: []*tree.Node{
		{Label: "table", Children: []*tree.Node{{Label: "c"}, {Label: "c"}}},
	}}
	err := n.Validate()
	if !errors.Is(err, tree.ErrDuplicateLabel) {
		t.Fatalf("want ErrDuplicateLabel, got %v", err)
	}
	if !strings.Contains(err.Error(), "db/table") {
		t.Fatalf("error should carry the path, got %v", err)
	}
	if err := table().Validate(); err != nil {
		t.Fatalf("valid tree rejected: %v", err)
	}
}

func TestString(t *testing.T) {
	want := "ELEMENT: table\n" +
		" name = T1\n" +
		"[\n" +
		"   ELEMENT: a\n" +
		"    type = int\n" +
		"   ELEMENT: b\n" +
		"    type = varchar\n"
	if got := table().String(); got != want {
		t.Fatalf("want\n%s\ngot\n%s", want, got)
	}
}
