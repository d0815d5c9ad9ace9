package store

import (
	"fmt"
	"time"

	"github.com/loog-project/cattree/pkg/tree"
	"github.com/loog-project/cattree/pkg/treediff"
)

type RevisionID uint64

func (id RevisionID) String() string {
	return fmt.Sprintf("%08x", uint64(id))
}

type Patch struct {
	/// Revision Metadata
	// ID of the revision
	ID RevisionID `msgpack:"i"`
	// PreviousID is the ID of the previous revision.
	// This should always be set since a patch cannot exist without a previous snapshot.
	PreviousID RevisionID `msgpack:"<,omitempty"`
	// Time is when the revision was committed.
	Time time.Time `msgpack:"t"`
	// Fingerprint is the fragment ID of the tree after the diff was applied.
	Fingerprint string `msgpack:"f"`

	/// Patch Metadata
	// Diff turns the tree of PreviousID into the tree of this revision.
	// see [treediff.Compute] for more details.
	Diff *treediff.Diff `msgpack:"d"`
}

type Snapshot struct {
	/// Revision Metadata
	// ID of the revision
	ID RevisionID `msgpack:"i"`
	// PreviousID is the ID of the previous revision. This can be empty if this is the first revision.
	PreviousID RevisionID `msgpack:"<,omitempty"`
	// Time is when the revision was committed.
	Time time.Time `msgpack:"t"`
	// Fingerprint is the fragment ID of Tree.
	Fingerprint string `msgpack:"f"`

	/// Snapshot Metadata
	// Tree is the full catalog object at this revision.
	Tree *tree.Node `msgpack:"o"`
}
