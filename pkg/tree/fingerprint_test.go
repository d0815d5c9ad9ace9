package tree_test

import (
	"testing"

	"github.com/loog-project/cattree/pkg/tree"
)

func TestFingerprintFormat(t *testing.T) {
	n := tree.New("t").
		WithAttribute("b", "2").
		WithAttribute("a", "1").
		WithChildren(tree.New("c"))

	want := "\tEt\t\ta\t1\tb\t2\t[\tEc\t\t["
	if got := n.Fingerprint(); got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestFingerprintStability(t *testing.T) {
	a := tree.New("index").WithAttribute("unique", "true").WithAttribute("name", "pk")
	b := tree.New("index").WithAttribute("name", "pk").WithAttribute("unique", "true")
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("attribute construction order must not change the fingerprint")
	}
	if a.FragmentID() != b.FragmentID() {
		t.Fatal("fragment ids differ for equal trees")
	}

	c1 := tree.New("table").WithChildren(tree.New("x"), tree.New("y"))
	c2 := tree.New("table").WithChildren(tree.New("y"), tree.New("x"))
	if c1.Fingerprint() == c2.Fingerprint() {
		t.Fatal("child order must change the fingerprint")
	}
}

func TestFragmentID(t *testing.T) {
	id := table().FragmentID()
	if len(id) != 40 {
		t.Fatalf("want 40 hex chars, got %q", id)
	}
	if id != table().Duplicate().FragmentID() {
		t.Fatal("fragment id is not stable across copies")
	}
}

func BenchmarkFingerprint(b *testing.B) {
	n := tree.New("database")
	for i := 0; i < 50; i++ {
		tbl := tree.New("table" + string(rune('A'+i%26)) + string(rune('a'+i/26))).WithAttribute("name", "t")
		for j := 0; j < 10; j++ {
			tbl.WithChildren(tree.New("column" + string(rune('a'+j))).WithAttribute("type", "int"))
		}
		n.WithChildren(tbl)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = n.Fingerprint()
	}
}
