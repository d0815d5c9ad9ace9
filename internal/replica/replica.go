// Package replica keeps private copies of catalog trees in sync by applying
// revision messages produced from a revision store.
package replica

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/loog-project/cattree/internal/store"
	"github.com/loog-project/cattree/pkg/tree"
	"github.com/loog-project/cattree/pkg/treediff"
)

var (
	// ErrOutOfOrder is returned for a message that does not continue the
	// replica's current revision of the object.
	ErrOutOfOrder = errors.New("message out of order")
	// ErrDiverged is returned when the patched tree does not match the
	// fingerprint carried by the message.
	ErrDiverged = errors.New("replica diverged")
	// ErrEmptyMessage is returned for a message carrying neither a snapshot
	// nor a diff.
	ErrEmptyMessage = errors.New("empty message")
)

type object struct {
	tree *tree.Node
	rev  store.RevisionID
}

// Replica holds its own copy of every object it received. Replicas never
// share trees with each other or with the messages they apply.
type Replica struct {
	name  string
	codec store.Codec

	mu      sync.RWMutex
	objects map[string]*object
}

// New returns an empty replica. A nil codec means [store.DefaultCodec].
func New(name string, codec store.Codec) *Replica {
	return &Replica{
		name:    name,
		codec:   codec,
		objects: make(map[string]*object),
	}
}

func (r *Replica) Name() string {
	return r.name
}

// Receive decodes payload and applies it.
func (r *Replica) Receive(payload []byte) error {
	m, err := Decode(r.codec, payload)
	if err != nil {
		return err
	}
	return r.Apply(m)
}

// Apply applies m to the replica's copy of m.Object. On error the copy is
// left at its previous revision.
func (r *Replica) Apply(m *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.objects[m.Object]
	switch {
	case m.Snapshot != nil:
		if cur != nil && m.Revision <= cur.rev {
			return fmt.Errorf("%w: snapshot %s of %s, replica is at %s", ErrOutOfOrder, m.Revision, m.Object, cur.rev)
		}
		if err := m.Snapshot.Validate(); err != nil {
			return fmt.Errorf("snapshot %s@%s: %w", m.Object, m.Revision, err)
		}
		next := m.Snapshot.Duplicate()
		if err := r.verify(m, next); err != nil {
			return err
		}
		r.objects[m.Object] = &object{tree: next, rev: m.Revision}
		return nil

	case m.Diff != nil:
		if cur == nil {
			return fmt.Errorf("%w: diff %s of %s before any snapshot", ErrOutOfOrder, m.Revision, m.Object)
		}
		if m.PreviousID != cur.rev {
			return fmt.Errorf("%w: diff %s of %s continues %s, replica is at %s",
				ErrOutOfOrder, m.Revision, m.Object, m.PreviousID, cur.rev)
		}
		next, err := treediff.Patch(cur.tree, m.Diff)
		if err != nil {
			return fmt.Errorf("apply %s@%s: %w", m.Object, m.Revision, err)
		}
		if err := r.verify(m, next); err != nil {
			return err
		}
		r.objects[m.Object] = &object{tree: next, rev: m.Revision}
		return nil
	}
	return fmt.Errorf("%w: %s@%s", ErrEmptyMessage, m.Object, m.Revision)
}

func (r *Replica) verify(m *Message, next *tree.Node) error {
	if m.Fingerprint == "" {
		return nil
	}
	if got := next.FragmentID(); got != m.Fingerprint {
		log.Debug().Str("replica", r.name).Str("object", m.Object).Stringer("rev", m.Revision).
			Str("want", m.Fingerprint).Str("got", got).Msg("fingerprint mismatch")
		return fmt.Errorf("%w: %s@%s on %s", ErrDiverged, m.Object, m.Revision, r.name)
	}
	return nil
}

// Tree returns a copy of the replica's tree of objectID and its revision.
func (r *Replica) Tree(objectID string) (*tree.Node, store.RevisionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.objects[objectID]
	if !ok {
		return nil, 0, false
	}
	return o.tree.Duplicate(), o.rev, true
}

// Fingerprint returns the FragmentID of the replica's tree of objectID.
func (r *Replica) Fingerprint(objectID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.objects[objectID]
	if !ok {
		return "", false
	}
	return o.tree.FragmentID(), true
}

// Broadcast delivers payloads in order to every replica. Each replica runs in
// its own goroutine; the first error cancels the others.
func Broadcast(ctx context.Context, replicas []*Replica, payloads [][]byte) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for _, r := range replicas {
		eg.Go(func() error {
			for i, payload := range payloads {
				if err := egCtx.Err(); err != nil {
					return err
				}
				if err := r.Receive(payload); err != nil {
					return fmt.Errorf("replica %s, message %d: %w", r.name, i, err)
				}
			}
			return nil
		})
	}
	return eg.Wait()
}
