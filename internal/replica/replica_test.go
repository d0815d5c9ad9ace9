package replica_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/loog-project/cattree/internal/replica"
	"github.com/loog-project/cattree/internal/service"
	"github.com/loog-project/cattree/internal/store"
	bboltStore "github.com/loog-project/cattree/internal/store/bbolt"
	"github.com/loog-project/cattree/pkg/tree"
	"github.com/loog-project/cattree/pkg/treediff"
)

const objectID = "database:shop"

func version(i int) *tree.Node {
	db := tree.New("database").WithAttribute("version", strconv.Itoa(i))
	for t := 0; t <= i%4; t++ {
		db.WithChildren(tree.New("table:t"+strconv.Itoa(t)).WithAttribute("rows", strconv.Itoa(i*t)))
	}
	return db
}

// history commits n versions and returns the encoded feed.
func history(t *testing.T, n int, snapshotEvery uint64) (store.RevisionStore, [][]byte) {
	t.Helper()
	rs, err := bboltStore.New(filepath.Join(t.TempDir(), "catalog.cattree"), nil, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = rs.Close() })

	svc := service.NewTrackerService(rs, snapshotEvery)
	t.Cleanup(svc.Close)
	for i := 0; i < n; i++ {
		if _, err := svc.Commit(context.Background(), objectID, version(i)); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}

	msgs, err := replica.Feed(context.Background(), rs, objectID, replica.FromStart)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(msgs) != n {
		t.Fatalf("want %d messages, got %d", n, len(msgs))
	}
	payloads := make([][]byte, len(msgs))
	for i, m := range msgs {
		if payloads[i], err = replica.Encode(nil, m); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	return rs, payloads
}

func TestBroadcastConverges(t *testing.T) {
	_, payloads := history(t, 25, 8)

	replicas := make([]*replica.Replica, 8)
	for i := range replicas {
		replicas[i] = replica.New("r"+strconv.Itoa(i), nil)
	}
	if err := replica.Broadcast(context.Background(), replicas, payloads); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	want := version(24).FragmentID()
	for _, r := range replicas {
		got, rev, ok := r.Tree(objectID)
		if !ok || rev != 24 {
			t.Fatalf("%s: at revision %s (%v)", r.Name(), rev, ok)
		}
		if got.FragmentID() != want {
			t.Fatalf("%s diverged:\n%s", r.Name(), got)
		}
	}
}

func TestFeedAfter(t *testing.T) {
	rs, payloads := history(t, 6, 3)

	r := replica.New("late", nil)
	for _, p := range payloads[:3] {
		if err := r.Receive(p); err != nil {
			t.Fatalf("receive: %v", err)
		}
	}
	_, rev, _ := r.Tree(objectID)
	rest, err := replica.Feed(context.Background(), rs, objectID, rev)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(rest) != 3 {
		t.Fatalf("want 3 remaining messages, got %d", len(rest))
	}
	for _, m := range rest {
		if err := r.Apply(m); err != nil {
			t.Fatalf("apply %s: %v", m.Revision, err)
		}
	}
	if fp, _ := r.Fingerprint(objectID); fp != version(5).FragmentID() {
		t.Fatal("late replica did not catch up")
	}

	if none, err := replica.Feed(context.Background(), rs, objectID, 5); err != nil || len(none) != 0 {
		t.Fatalf("feed after head: %v %v", none, err)
	}
}

func TestOutOfOrder(t *testing.T) {
	_, payloads := history(t, 4, 10)

	r := replica.New("r", nil)
	if err := r.Receive(payloads[1]); !errors.Is(err, replica.ErrOutOfOrder) {
		t.Fatalf("diff before snapshot: want ErrOutOfOrder, got %v", err)
	}
	_ = r.Receive(payloads[0])
	if err := r.Receive(payloads[2]); !errors.Is(err, replica.ErrOutOfOrder) {
		t.Fatalf("skipped revision: want ErrOutOfOrder, got %v", err)
	}
	_ = r.Receive(payloads[1])
	if err := r.Receive(payloads[1]); !errors.Is(err, replica.ErrOutOfOrder) {
		t.Fatalf("replayed revision: want ErrOutOfOrder, got %v", err)
	}
	if err := r.Receive(payloads[0]); !errors.Is(err, replica.ErrOutOfOrder) {
		t.Fatalf("stale snapshot: want ErrOutOfOrder, got %v", err)
	}
	if _, rev, _ := r.Tree(objectID); rev != 1 {
		t.Fatalf("replica should still be at 1, is at %s", rev)
	}
}

func TestDiverged(t *testing.T) {
	r := replica.New("r", nil)
	base := version(0)
	if err := r.Apply(&replica.Message{Object: objectID, Snapshot: base, Fingerprint: base.FragmentID()}); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	d, _ := treediff.Compute(base, version(1))
	err := r.Apply(&replica.Message{
		Object:      objectID,
		Revision:    1,
		Diff:        d,
		Fingerprint: version(2).FragmentID(),
	})
	if !errors.Is(err, replica.ErrDiverged) {
		t.Fatalf("want ErrDiverged, got %v", err)
	}
	got, rev, _ := r.Tree(objectID)
	if rev != 0 || !tree.Equal(got, base) {
		t.Fatalf("diverged message changed the replica: rev %s\n%s", rev, got)
	}
}

func TestReplicaOwnsItsTrees(t *testing.T) {
	snapshot := version(1)
	r := replica.New("r", nil)
	_ = r.Apply(&replica.Message{Object: objectID, Snapshot: snapshot})
	snapshot.WithAttribute("version", "changed")

	got, _, _ := r.Tree(objectID)
	if !tree.Equal(got, version(1)) {
		t.Fatal("replica aliases the message tree")
	}
	got.WithAttribute("version", "changed")
	if fp, _ := r.Fingerprint(objectID); fp != version(1).FragmentID() {
		t.Fatal("Tree returned the replica's own copy")
	}
}

func TestEmptyMessage(t *testing.T) {
	r := replica.New("r", nil)
	if err := r.Apply(&replica.Message{Object: objectID}); !errors.Is(err, replica.ErrEmptyMessage) {
		t.Fatalf("want ErrEmptyMessage, got %v", err)
	}
	if err := r.Receive([]byte{0xc1}); err == nil {
		t.Fatal("garbage payload decoded")
	}
}

func TestMalformedMessages(t *testing.T) {
	r := replica.New("r", nil)
	base := tree.New("db").WithChildren(tree.New("table:a"))
	if err := r.Apply(&replica.Message{Object: objectID, Snapshot: base}); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	diffs := map[string]*treediff.Diff{
		"nil added child":   {Label: "db", AddedChildren: []*tree.Node{nil}},
		"nil removed child": {Label: "db", RemovedChildren: []*tree.Node{nil}},
		"nil nested diff":   {Label: "db", ChangedChildren: map[string]*treediff.Diff{"table:a": nil}},
		"added child with nil grandchild": {Label: "db", AddedChildren: []*tree.Node{
			{Label: "table:b", Children: []*tree.Node{nil}},
		}},
	}
	for name, d := range diffs {
		t.Run(name, func(t *testing.T) {
			payload, err := replica.Encode(nil, &replica.Message{Object: objectID, Revision: 1, PreviousID: 0, Diff: d})
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if err := r.Receive(payload); !errors.Is(err, treediff.ErrMalformedDiff) {
				t.Fatalf("want ErrMalformedDiff, got %v", err)
			}
			got, rev, _ := r.Tree(objectID)
			if rev != 0 || !tree.Equal(got, base) {
				t.Fatalf("replica moved to %s:\n%s", rev, got)
			}
		})
	}

	snap := &tree.Node{Label: "db", Children: []*tree.Node{nil}}
	payload, err := replica.Encode(nil, &replica.Message{Object: "other", Snapshot: snap})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := r.Receive(payload); !errors.Is(err, tree.ErrInvalidChild) {
		t.Fatalf("want ErrInvalidChild for the snapshot, got %v", err)
	}
	if _, _, ok := r.Tree("other"); ok {
		t.Fatal("invalid snapshot was stored")
	}
}

func TestBroadcastStopsOnError(t *testing.T) {
	_, payloads := history(t, 3, 10)
	// drop the snapshot, so every replica fails on the first message
	broken := payloads[1:]

	replicas := []*replica.Replica{replica.New("a", nil), replica.New("b", nil)}
	err := replica.Broadcast(context.Background(), replicas, broken)
	if !errors.Is(err, replica.ErrOutOfOrder) {
		t.Fatalf("want ErrOutOfOrder, got %v", err)
	}
}

func BenchmarkBroadcast(b *testing.B) {
	base := tree.New("database")
	for i := 0; i < 200; i++ {
		base.WithChildren(tree.New(fmt.Sprintf("table:t%03d", i)).WithAttribute("rows", "0"))
	}
	msgs := []*replica.Message{{Object: objectID, Snapshot: base}}
	prev := base
	for rev := 1; rev < 50; rev++ {
		next := prev.Duplicate()
		next.Children[rev].WithAttribute("rows", strconv.Itoa(rev))
		d, _ := treediff.Compute(prev, next)
		msgs = append(msgs, &replica.Message{
			Object:      objectID,
			Revision:    store.RevisionID(rev),
			PreviousID:  store.RevisionID(rev - 1),
			Diff:        d,
			Fingerprint: next.FragmentID(),
		})
		prev = next
	}
	payloads := make([][]byte, len(msgs))
	for i, m := range msgs {
		payloads[i], _ = replica.Encode(nil, m)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		replicas := []*replica.Replica{replica.New("a", nil), replica.New("b", nil), replica.New("c", nil)}
		if err := replica.Broadcast(context.Background(), replicas, payloads); err != nil {
			b.Fatal(err)
		}
	}
}
