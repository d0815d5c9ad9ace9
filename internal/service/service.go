// Package service tracks the versions of catalog objects on top of a
// [store.RevisionStore].
package service

import (
	"errors"
	"fmt"

	"github.com/loog-project/cattree/internal/store"
)

// ErrFingerprintMismatch is returned by Restore when a replayed tree does not
// hash to the fingerprint recorded with its revision.
var ErrFingerprintMismatch = errors.New("fingerprint mismatch")

// NoChangeError is returned by Commit when the committed tree equals the
// latest stored revision. Nothing is written.
type NoChangeError struct {
	Revision store.RevisionID
}

func (e *NoChangeError) Error() string {
	return fmt.Sprintf("no change since revision %s", e.Revision)
}
