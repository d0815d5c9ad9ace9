package replica

import (
	"context"
	"errors"
	"fmt"

	"github.com/loog-project/cattree/internal/store"
	"github.com/loog-project/cattree/pkg/tree"
	"github.com/loog-project/cattree/pkg/treediff"
)

// FromStart makes Feed return every stored revision.
const FromStart = ^store.RevisionID(0)

// Message carries one revision of one object. Exactly one of Snapshot and
// Diff is set.
type Message struct {
	Object      string           `msgpack:"o"`
	Revision    store.RevisionID `msgpack:"r"`
	PreviousID  store.RevisionID `msgpack:"p"`
	Snapshot    *tree.Node       `msgpack:"s,omitempty"`
	Diff        *treediff.Diff   `msgpack:"d,omitempty"`
	Fingerprint string           `msgpack:"f"`
}

// Encode serializes m with codec. A nil codec means [store.DefaultCodec].
func Encode(codec store.Codec, m *Message) ([]byte, error) {
	if codec == nil {
		codec = store.DefaultCodec
	}
	return codec.Marshal(m)
}

// Decode is the inverse of Encode.
func Decode(codec store.Codec, payload []byte) (*Message, error) {
	if codec == nil {
		codec = store.DefaultCodec
	}
	var m Message
	if err := codec.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &m, nil
}

// Feed builds the messages for every stored revision of objectID after the
// given one, in revision order. Pass FromStart for a replica that has nothing.
func Feed(ctx context.Context, rs store.RevisionStore, objectID string, after store.RevisionID) ([]*Message, error) {
	latest, err := rs.GetLatestRevision(ctx, objectID)
	if err != nil {
		return nil, err
	}
	first := after + 1 // FromStart wraps to 0
	if first > latest && after != FromStart {
		return nil, nil
	}

	msgs := make([]*Message, 0, latest-first+1)
	for rev := first; rev <= latest; rev++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, p, err := rs.Get(ctx, objectID, rev)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("gap in revisions of %s at %s: %w", objectID, rev, err)
		}
		if err != nil {
			return nil, err
		}
		if snap != nil {
			msgs = append(msgs, &Message{
				Object:      objectID,
				Revision:    snap.ID,
				PreviousID:  snap.PreviousID,
				Snapshot:    snap.Tree,
				Fingerprint: snap.Fingerprint,
			})
			continue
		}
		msgs = append(msgs, &Message{
			Object:      objectID,
			Revision:    p.ID,
			PreviousID:  p.PreviousID,
			Diff:        p.Diff,
			Fingerprint: p.Fingerprint,
		})
	}
	return msgs, nil
}
