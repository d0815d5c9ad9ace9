package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/loog-project/cattree/internal/store"
	"github.com/loog-project/cattree/pkg/tree"
	"github.com/loog-project/cattree/pkg/treediff"
)

// TrackerService tracks changes to catalog trees.
// It stores the changes in a revision store and allows restoring
// the full tree at a specific revision.
type TrackerService struct {
	rs            store.RevisionStore
	snapshotEvery uint64 // create full snapshot after this many patches
	cache         *stateCache

	// commits of one process are serialized, so revisions and diffs agree
	commitMu sync.Mutex
}

// NewTrackerService creates a new TrackerService instance.
func NewTrackerService(rs store.RevisionStore, snapshotEvery uint64) *TrackerService {
	if snapshotEvery == 0 {
		snapshotEvery = 10
	}
	return &TrackerService{
		rs:            rs,
		snapshotEvery: snapshotEvery,
		cache:         newStateCache(defaultCachePolicy),
	}
}

// Commit persists obj and returns the new revision ID.
// If obj equals the latest revision nothing is written and a *NoChangeError
// is returned.
func (t *TrackerService) Commit(
	ctx context.Context,
	objectID string,
	obj *tree.Node,
) (store.RevisionID, error) {
	if err := obj.Validate(); err != nil {
		return 0, err
	}

	t.commitMu.Lock()
	defer t.commitMu.Unlock()

	head, err := t.head(ctx, objectID)
	if err != nil {
		return 0, err
	}

	owned := obj.Duplicate()
	fingerprint := owned.FragmentID()
	now := time.Now()

	if head == nil {
		snapshot := store.Snapshot{Time: now, Fingerprint: fingerprint, Tree: owned}
		if err := t.rs.SetSnapshot(ctx, objectID, &snapshot); err != nil {
			return 0, err
		}
		t.cache.set(objectID, &trackerState{tree: owned, rev: snapshot.ID})
		log.Debug().Str("object", objectID).Stringer("rev", snapshot.ID).Msg("committed first snapshot")
		return snapshot.ID, nil
	}

	// a renamed root cannot be expressed as a diff
	var d *treediff.Diff
	if head.tree.Label == owned.Label {
		if d, err = treediff.Compute(head.tree, owned); err != nil {
			return 0, err
		}
		if d.IsEmpty() {
			return 0, &NoChangeError{Revision: head.rev}
		}
	}

	// check if it's time for a full snapshot
	if d == nil || uint64(head.chain) >= t.snapshotEvery-1 {
		snapshot := store.Snapshot{
			PreviousID:  head.rev,
			Time:        now,
			Fingerprint: fingerprint,
			Tree:        owned,
		}
		if err := t.rs.SetSnapshot(ctx, objectID, &snapshot); err != nil {
			return 0, err
		}
		t.cache.set(objectID, &trackerState{tree: owned, rev: snapshot.ID})
		log.Debug().Str("object", objectID).Stringer("rev", snapshot.ID).Int("chain", head.chain).
			Msg("committed snapshot")
		return snapshot.ID, nil
	}

	p := &store.Patch{
		PreviousID:  head.rev,
		Time:        now,
		Fingerprint: fingerprint,
		Diff:        d,
	}
	if err := t.rs.SetPatch(ctx, objectID, p); err != nil {
		return 0, err
	}
	t.cache.set(objectID, &trackerState{tree: owned, rev: p.ID, chain: head.chain + 1})
	log.Debug().Str("object", objectID).Stringer("rev", p.ID).Int("edits", d.Stats().Edits()).
		Msg("committed patch")
	return p.ID, nil
}

// head returns the latest state of objectID, or nil if nothing was committed.
func (t *TrackerService) head(ctx context.Context, objectID string) (*trackerState, error) {
	latest, err := t.rs.GetLatestRevision(ctx, objectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if entry := t.cache.get(objectID); entry != nil && entry.rev == latest {
		return entry, nil
	}

	log.Debug().Str("object", objectID).Stringer("rev", latest).Msg("state cache miss")
	state, chain, err := t.restore(ctx, objectID, latest)
	if err != nil {
		return nil, err
	}
	entry := &trackerState{tree: state, rev: latest, chain: chain}
	t.cache.set(objectID, entry)
	return entry, nil
}

// Latest returns the newest revision of objectID.
func (t *TrackerService) Latest(ctx context.Context, objectID string) (store.RevisionID, error) {
	return t.rs.GetLatestRevision(ctx, objectID)
}

// Restore brings back the tree at rev. The caller owns the returned tree.
func (t *TrackerService) Restore(ctx context.Context, objectID string, rev store.RevisionID) (*tree.Node, error) {
	if entry := t.cache.get(objectID); entry != nil && entry.rev == rev {
		return entry.tree.Duplicate(), nil
	}
	state, _, err := t.restore(ctx, objectID, rev)
	return state, err
}

// restore walks back to the nearest snapshot and replays the patches after
// it. It also returns the number of replayed patches.
func (t *TrackerService) restore(ctx context.Context, objectID string, rev store.RevisionID) (*tree.Node, int, error) {
	var chain []*store.Patch
	cur := rev
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		snap, p, err := t.rs.Get(ctx, objectID, cur)
		if err != nil {
			if len(chain) > 0 {
				return nil, 0, fmt.Errorf("broken chain at %s: %w", cur, err)
			}
			return nil, 0, err
		}
		if snap != nil {
			// we have now found the base snapshot
			state := snap.Tree
			if state == nil {
				return nil, 0, fmt.Errorf("%w: snapshot %s has no tree", store.ErrInvalidRevision, cur)
			}
			if err := verify(state, snap.Fingerprint, cur); err != nil {
				return nil, 0, err
			}
			for i := len(chain) - 1; i >= 0; i-- {
				if err := treediff.Apply(state, chain[i].Diff); err != nil {
					return nil, 0, fmt.Errorf("failed to apply revision %s: %w", chain[i].ID, err)
				}
				if err := verify(state, chain[i].Fingerprint, chain[i].ID); err != nil {
					return nil, 0, err
				}
			}
			return state, len(chain), nil
		}
		if p.PreviousID >= cur || p.Diff == nil {
			return nil, 0, fmt.Errorf("%w: patch %s points to %s", store.ErrInvalidRevision, cur, p.PreviousID)
		}
		chain = append(chain, p)
		cur = p.PreviousID
	}
}

func verify(state *tree.Node, fingerprint string, rev store.RevisionID) error {
	if fingerprint == "" {
		return nil
	}
	if got := state.FragmentID(); got != fingerprint {
		return fmt.Errorf("%w: revision %s is %s, recorded %s", ErrFingerprintMismatch, rev, got, fingerprint)
	}
	return nil
}

// Diff computes the diff that turns revision from into revision to.
func (t *TrackerService) Diff(
	ctx context.Context,
	objectID string,
	from, to store.RevisionID,
) (*treediff.Diff, error) {
	a, err := t.Restore(ctx, objectID, from)
	if err != nil {
		return nil, err
	}
	b, err := t.Restore(ctx, objectID, to)
	if err != nil {
		return nil, err
	}
	return treediff.Compute(a, b)
}

// WarmCache restores the latest tree of every stored object into the cache.
func (t *TrackerService) WarmCache(ctx context.Context) error {
	objects, err := t.rs.Objects(ctx)
	if err != nil {
		return err
	}
	for _, objectID := range objects {
		if _, err := t.head(ctx, objectID); err != nil {
			return fmt.Errorf("warm %s: %w", objectID, err)
		}
	}
	stats := t.cache.stats()
	log.Debug().
		Int("objects", len(objects)).
		Uint64("misses", stats.Misses).
		Msg("state cache warmed")
	return nil
}

// CacheStats reports how often commits and restores found the head in memory.
func (t *TrackerService) CacheStats() CacheStats {
	return t.cache.stats()
}

// Close stops the cache janitor. The revision store stays open.
func (t *TrackerService) Close() {
	t.cache.close()
}
