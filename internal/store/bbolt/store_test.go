package bbolt

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loog-project/cattree/internal/store"
	"github.com/loog-project/cattree/pkg/tree"
	"github.com/loog-project/cattree/pkg/treediff"
)

// handy constants -----------------------------------------------------------

var (
	ctx = context.Background()
	id  = "database:shop"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "db.bb"), nil, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestNewAndBuckets checks that the DB opens and buckets exist.
func TestNewAndBuckets(t *testing.T) {
	s := open(t)

	info, err := os.Stat(s.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("DB file should not be empty")
	}
}

// TestSnapshotPatchRoundtrip covers:
//   - claimNextRevision
//   - SetSnapshot / SetPatch
//   - Get / GetLatestRevision
func TestSnapshotPatchRoundtrip(t *testing.T) {
	s := open(t)

	v1 := tree.New("database").WithChildren(tree.New("table:orders").WithAttribute("name", "orders"))
	v2 := v1.Duplicate()
	v2.FindChild("table:orders").WithAttribute("partitioned", "true")

	// -------- 1st snapshot -----------------------------------------------
	snap := &store.Snapshot{Time: time.Now(), Fingerprint: v1.FragmentID(), Tree: v1}
	if err := s.SetSnapshot(ctx, id, snap); err != nil {
		t.Fatalf("set snapshot: %v", err)
	}
	if snap.ID != 0 {
		t.Fatalf("first snapshot should have ID 0, got %d", snap.ID)
	}
	if latest, err := s.GetLatestRevision(ctx, id); err != nil || latest != 0 {
		t.Fatalf("latest want 0, got %d (%v)", latest, err)
	}

	// -------- patch #1 ----------------------------------------------------
	d, err := treediff.Compute(v1, v2)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	patch1 := &store.Patch{PreviousID: snap.ID, Fingerprint: v2.FragmentID(), Diff: d}
	if err := s.SetPatch(ctx, id, patch1); err != nil {
		t.Fatalf("set patch1: %v", err)
	}
	if patch1.ID != 1 {
		t.Fatalf("patch1 should receive ID 1, got %d", patch1.ID)
	}

	// -------- patch #2 (empty diff is still storable) ----------------------
	patch2 := &store.Patch{PreviousID: patch1.ID, Diff: &treediff.Diff{Label: "database"}}
	_ = s.SetPatch(ctx, id, patch2)
	if latest, _ := s.GetLatestRevision(ctx, id); latest != 2 {
		t.Fatalf("latest want 2, got %d", latest)
	}

	// -------- gets --------------------------------------------------------
	sn0, p0, err := s.Get(ctx, id, 0)
	if err != nil || p0 != nil || sn0 == nil {
		t.Fatalf("rev0: want snapshot, got %+v / %+v / err=%v", sn0, p0, err)
	}
	if !tree.Equal(sn0.Tree, v1) {
		t.Fatalf("rev0 tree differs:\n%s", sn0.Tree)
	}

	sn1, p1, err := s.Get(ctx, id, 1)
	if err != nil || sn1 != nil || p1 == nil || p1.ID != 1 {
		t.Fatalf("rev1 not patch1: %+v / %+v / %v", sn1, p1, err)
	}
	patched, err := treediff.Patch(sn0.Tree, p1.Diff)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if patched.FragmentID() != p1.Fingerprint {
		t.Fatalf("decoded diff does not reproduce v2:\n%s", patched)
	}

	if _, p2, _ := s.Get(ctx, id, 2); p2 == nil || p2.ID != 2 || p2.PreviousID != 1 {
		t.Fatalf("rev2 not patch2: %+v", p2)
	}
}

func TestNotFound(t *testing.T) {
	s := open(t)
	if _, _, err := s.Get(ctx, id, 0); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get: want ErrNotFound, got %v", err)
	}
	if _, err := s.GetLatestRevision(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("latest: want ErrNotFound, got %v", err)
	}
}

func TestFirstRevisionMustBeSnapshot(t *testing.T) {
	s := open(t)
	err := s.SetPatch(ctx, id, &store.Patch{Diff: &treediff.Diff{Label: "database"}})
	if !errors.Is(err, store.ErrInvalidRevision) {
		t.Fatalf("want ErrInvalidRevision, got %v", err)
	}
	// the failed transaction must not consume the revision
	if _, err := s.GetLatestRevision(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want ErrNotFound after rollback, got %v", err)
	}
}

// TestChunkBoundary writes more patches than fit into a single chunk.
func TestChunkBoundary(t *testing.T) {
	s := open(t)
	_ = s.SetSnapshot(ctx, id, &store.Snapshot{Tree: tree.New("database")})
	for i := 1; i <= chunkSize+3; i++ {
		p := &store.Patch{PreviousID: store.RevisionID(i - 1), Diff: &treediff.Diff{
			Label:             "database",
			ChangedAttributes: map[string]string{"version": string(rune('a' + i%26))},
		}}
		if err := s.SetPatch(ctx, id, p); err != nil {
			t.Fatalf("patch %d: %v", i, err)
		}
	}
	for _, rev := range []store.RevisionID{1, chunkSize - 1, chunkSize, chunkSize + 3} {
		_, p, err := s.Get(ctx, id, rev)
		if err != nil || p == nil || p.ID != rev {
			t.Fatalf("rev %d: %+v (%v)", rev, p, err)
		}
	}
}

// TestConcurrentClaims ensures claimNextRevision is atomic.
func TestConcurrentClaims(t *testing.T) {
	s := open(t)

	// race 20 goroutines
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() {
			errs <- s.SetSnapshot(ctx, id, &store.Snapshot{Tree: tree.New("database").WithAttribute("i", string(rune('a'+i)))})
		}()
	}
	for i := 0; i < 20; i++ {
		if e := <-errs; e != nil {
			t.Fatalf("concurrent SetSnapshot failed: %v", e)
		}
	}

	if latest, _ := s.GetLatestRevision(ctx, id); latest != 19 {
		t.Fatalf("after 20 writes, latest should be 19, got %d", latest)
	}
}

func TestObjectsAndWalk(t *testing.T) {
	s := open(t)
	for _, obj := range []string{"b", "a|b", "a"} {
		_ = s.SetSnapshot(ctx, obj, &store.Snapshot{Tree: tree.New(obj)})
		_ = s.SetPatch(ctx, obj, &store.Patch{Diff: &treediff.Diff{Label: obj}})
	}

	objects, err := s.Objects(ctx)
	if err != nil {
		t.Fatalf("objects: %v", err)
	}
	if len(objects) != 3 || objects[0] != "a" || objects[1] != "a|b" || objects[2] != "b" {
		t.Fatalf("unexpected objects %v", objects)
	}

	seen := map[string][]store.RevisionID{}
	err = s.WalkObjectRevisions(func(obj string, rev store.RevisionID, snap *store.Snapshot, p *store.Patch) bool {
		if (snap == nil) == (p == nil) {
			t.Errorf("%s@%s: exactly one of snapshot and patch must be set", obj, rev)
		}
		if snap != nil && snap.Tree.Label != obj {
			t.Errorf("%s@%s: wrong snapshot %s", obj, rev, snap.Tree.Label)
		}
		seen[obj] = append(seen[obj], rev)
		return true
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	for _, obj := range objects {
		if revs := seen[obj]; len(revs) != 2 || revs[0] != 0 || revs[1] != 1 {
			t.Fatalf("%s: unexpected revisions %v", obj, revs)
		}
	}

	// stop early
	calls := 0
	_ = s.WalkObjectRevisions(func(string, store.RevisionID, *store.Snapshot, *store.Patch) bool {
		calls++
		return false
	})
	if calls != 1 {
		t.Fatalf("walk did not stop, %d calls", calls)
	}
}

// TestPersistedValues verifies that bytes written are real MessagePack.
func TestPersistedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.bb")
	s, err := New(path, nil, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = s.SetSnapshot(ctx, id, &store.Snapshot{Tree: tree.New("database")})
	_ = s.Close()

	// reopen raw file and search for the encoded label
	blob, _ := os.ReadFile(path)
	if !bytes.Contains(blob, append([]byte{0xa1, 'l', 0xa8}, "database"...)) {
		t.Fatalf("file does not appear to contain the msgpack encoded tree")
	}

	// counters survive a reopen
	s, err = New(path, nil, true)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if latest, err := s.GetLatestRevision(ctx, id); err != nil || latest != 0 {
		t.Fatalf("latest after reopen: %d (%v)", latest, err)
	}
}
