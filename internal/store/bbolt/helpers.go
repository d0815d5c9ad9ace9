package bbolt

import (
	"encoding/binary"

	"go.etcd.io/bbolt"

	"github.com/loog-project/cattree/internal/store"
)

func keyObjectRevision(objectID string, id store.RevisionID) []byte {
	return keyObjectNumber(objectID, uint64(id))
}

func keyObjectChunk(objectID string, chunkID uint64) []byte {
	return keyObjectNumber(objectID, chunkID)
}

func keyObjectNumber(objectID string, n uint64) []byte {
	buf := make([]byte, len(objectID)+1+8)
	copy(buf, objectID)
	buf[len(objectID)] = '|'
	binary.BigEndian.PutUint64(buf[len(objectID)+1:], n)
	return buf
}

// splitObjectRevision is the inverse of keyObjectRevision. The revision is
// read from the end, so object IDs may contain '|'.
func splitObjectRevision(key []byte) (string, store.RevisionID, bool) {
	if len(key) < 9 || key[len(key)-9] != '|' {
		return "", 0, false
	}
	rev := binary.BigEndian.Uint64(key[len(key)-8:])
	return string(key[:len(key)-9]), store.RevisionID(rev), true
}

// claimNextRevision atomically increments the nextRevisionCounter in bucketLatest *and*
// updates the in-memory cache. It returns the newly assigned revision number.
func (s *Store) claimNextRevision(tx *bbolt.Tx, objectID string) (store.RevisionID, error) {
	latest := tx.Bucket(bucketLatest)

	var next uint64
	if raw := latest.Get([]byte(objectID)); raw != nil {
		next = binary.BigEndian.Uint64(raw)
	}
	revisionNumber := store.RevisionID(next)
	next++

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := latest.Put([]byte(objectID), buf); err != nil {
		return 0, err
	}

	// the cache is only updated once the transaction commits
	tx.OnCommit(func() {
		s.nextRevisionCounterMutex.Lock()
		if next > s.nextRevisionCounter[objectID] {
			s.nextRevisionCounter[objectID] = next
		}
		s.nextRevisionCounterMutex.Unlock()
	})

	return revisionNumber, nil
}

// putChunk stores an encoded patch at offset within its chunk value.
func (s *Store) putChunk(tx *bbolt.Tx, objectID string, chunkID uint64, offset uint16, payload []byte) error {
	bucket := tx.Bucket(bucketChunks)
	key := keyObjectChunk(objectID, chunkID)

	var chunk []rawPatch
	if v := bucket.Get(key); v != nil {
		if err := s.codec.Unmarshal(v, &chunk); err != nil {
			return err
		}
	}
	if len(chunk) < chunkSize {
		grown := make([]rawPatch, chunkSize)
		copy(grown, chunk)
		chunk = grown
	}
	chunk[offset] = rawPatch{Data: payload}

	encoded, err := s.codec.Marshal(chunk)
	if err != nil {
		return err
	}
	return bucket.Put(key, encoded)
}
