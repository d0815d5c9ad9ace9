package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidRevision = errors.New("invalid revision")
)

// WalkFunc is called once per stored revision. Exactly one of snapshot and
// patch is set. Returning false stops the walk.
type WalkFunc func(objectID string, revisionID RevisionID, snapshot *Snapshot, patch *Patch) bool

// RevisionStore persists the revisions of catalog objects. Revision IDs are
// assigned by the store, per object, starting at 0.
type RevisionStore interface {
	// Get returns either the snapshot or the patch stored for the revision.
	Get(ctx context.Context, objectID string, revID RevisionID) (*Snapshot, *Patch, error)

	SetSnapshot(ctx context.Context, objectID string, snap *Snapshot) error
	SetPatch(ctx context.Context, objectID string, p *Patch) error

	GetLatestRevision(ctx context.Context, objectID string) (RevisionID, error)
	Objects(ctx context.Context) ([]string, error)

	// WalkObjectRevisions visits the revisions of every object in ascending
	// revision order per object.
	WalkObjectRevisions(fn WalkFunc) error
	Close() error
}
