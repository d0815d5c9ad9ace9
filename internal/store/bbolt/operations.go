package bbolt

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/loog-project/cattree/internal/store"
)

// SetSnapshot stores a full snapshot and bumps the counter.
// The assigned revision is written back to snapshot.ID.
func (s *Store) SetSnapshot(
	_ context.Context,
	objectID string,
	snapshot *store.Snapshot,
) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		revNum, err := s.claimNextRevision(tx, objectID)
		if err != nil {
			return err
		}
		snapshot.ID = revNum

		// save the payload
		key := keyObjectRevision(objectID, revNum)
		payload, err := s.codec.Marshal(snapshot)
		if err != nil {
			return err
		}
		if err = tx.Bucket(bucketSnapshots).Put(key, payload); err != nil {
			return err
		}

		// update the index
		indexBytes, err := msgpack.Marshal(indexEntry{Snap: true})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketIndex).Put(key, indexBytes)
	})
}

// SetPatch stores a diff and bumps the counter.
// The assigned revision is written back to rec.ID.
func (s *Store) SetPatch(
	_ context.Context,
	objectID string,
	rec *store.Patch,
) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		revNum, err := s.claimNextRevision(tx, objectID)
		if err != nil {
			return err
		}
		if revNum == 0 {
			return fmt.Errorf("%w: the first revision of %q must be a snapshot", store.ErrInvalidRevision, objectID)
		}
		rec.ID = revNum

		chunkID := uint64(revNum) / chunkSize
		offset := uint16(revNum % chunkSize)
		recBytes, err := s.codec.Marshal(rec)
		if err != nil {
			return err
		}
		if err := s.putChunk(tx, objectID, chunkID, offset, recBytes); err != nil {
			return err
		}
		idxBytes, err := msgpack.Marshal(indexEntry{Chunk: chunkID, Offset: offset})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketIndex).Put(keyObjectRevision(objectID, revNum), idxBytes)
	})
}

// Get returns the snapshot or the patch stored for revID; the other one is nil.
func (s *Store) Get(_ context.Context, objectID string, revID store.RevisionID) (*store.Snapshot, *store.Patch, error) {
	var (
		snap *store.Snapshot
		rec  *store.Patch
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := keyObjectRevision(objectID, revID)
		idxBytes := tx.Bucket(bucketIndex).Get(key)
		if idxBytes == nil {
			return fmt.Errorf("%w: %s@%s", store.ErrNotFound, objectID, revID)
		}
		var idx indexEntry
		if err := msgpack.Unmarshal(idxBytes, &idx); err != nil {
			return err
		}
		var err error
		if idx.Snap {
			snap, err = s.readSnapshot(tx, key)
		} else {
			rec, err = s.readPatch(tx, objectID, idx)
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return snap, rec, nil
}

func (s *Store) readSnapshot(tx *bbolt.Tx, key []byte) (*store.Snapshot, error) {
	v := tx.Bucket(bucketSnapshots).Get(key)
	if v == nil {
		return nil, fmt.Errorf("%w: %w", store.ErrNotFound, errIndexEntryMissing)
	}
	var snap store.Snapshot
	if err := s.codec.Unmarshal(v, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) readPatch(tx *bbolt.Tx, objectID string, idx indexEntry) (*store.Patch, error) {
	chunkBytes := tx.Bucket(bucketChunks).Get(keyObjectChunk(objectID, idx.Chunk))
	if chunkBytes == nil {
		return nil, fmt.Errorf("%w: %w", store.ErrNotFound, errPatchChunkMissing)
	}
	var arr []rawPatch
	if err := s.codec.Unmarshal(chunkBytes, &arr); err != nil {
		return nil, err
	}
	if int(idx.Offset) >= len(arr) || arr[idx.Offset].Data == nil {
		return nil, fmt.Errorf("%w: %w", store.ErrNotFound, errPatchChunkMissing)
	}
	var rec store.Patch
	if err := s.codec.Unmarshal(arr[idx.Offset].Data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetLatestRevision returns the highest committed revision for objectID.
func (s *Store) GetLatestRevision(
	_ context.Context,
	objectID string,
) (store.RevisionID, error) {
	// check cache first
	s.nextRevisionCounterMutex.RLock()
	if next, ok := s.nextRevisionCounter[objectID]; ok {
		s.nextRevisionCounterMutex.RUnlock()
		return store.RevisionID(next - 1), nil
	}
	s.nextRevisionCounterMutex.RUnlock()

	var next uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketLatest).Get([]byte(objectID))
		if v == nil {
			return fmt.Errorf("%w: object %q", store.ErrNotFound, objectID)
		}
		next = binary.BigEndian.Uint64(v)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.nextRevisionCounterMutex.Lock()
	if next > s.nextRevisionCounter[objectID] {
		s.nextRevisionCounter[objectID] = next
	}
	s.nextRevisionCounterMutex.Unlock()
	return store.RevisionID(next - 1), nil
}

// Objects lists every object with at least one revision, in key order.
func (s *Store) Objects(ctx context.Context) ([]string, error) {
	var objects []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLatest).ForEach(func(k, _ []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			objects = append(objects, string(k))
			return nil
		})
	})
	return objects, err
}

// WalkObjectRevisions visits all revisions in index order, which is object
// ID first and ascending revision second.
func (s *Store) WalkObjectRevisions(fn store.WalkFunc) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketIndex).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			objectID, revID, ok := splitObjectRevision(k)
			if !ok {
				return fmt.Errorf("malformed index key %x", k)
			}
			var idx indexEntry
			if err := msgpack.Unmarshal(v, &idx); err != nil {
				return err
			}

			var (
				snap *store.Snapshot
				rec  *store.Patch
				err  error
			)
			if idx.Snap {
				snap, err = s.readSnapshot(tx, k)
			} else {
				rec, err = s.readPatch(tx, objectID, idx)
			}
			if err != nil {
				return fmt.Errorf("%s@%s: %w", objectID, revID, err)
			}
			if !fn(objectID, revID, snap, rec) {
				return nil
			}
		}
		return nil
	})
}
