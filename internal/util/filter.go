package util

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/loog-project/cattree/internal/store"
)

// CompileFilter compiles a boolean filter expression against RevisionEnv.
// An empty expression selects every revision.
func CompileFilter(src string) (*vm.Program, error) {
	if src == "" {
		src = "All()"
	}
	prog, err := expr.Compile(src, expr.Env(RevisionEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	return prog, nil
}

// Match runs prog for the revision.
func Match(prog *vm.Program, e RevisionEntry) (bool, error) {
	out, err := expr.Run(prog, NewRevisionEnv(e))
	if err != nil {
		return false, err
	}
	pass, _ := out.(bool)
	return pass, nil
}

// CollectRevisions walks the store and returns the revisions prog accepts.
// A nil prog accepts everything. Size is the encoded size of each record.
func CollectRevisions(rs store.RevisionStore, codec store.Codec, prog *vm.Program) ([]RevisionEntry, error) {
	if codec == nil {
		codec = store.DefaultCodec
	}
	var (
		entries []RevisionEntry
		walkErr error
	)
	err := rs.WalkObjectRevisions(func(objectID string, rev store.RevisionID, snap *store.Snapshot, p *store.Patch) bool {
		e := RevisionEntry{ObjectID: objectID, RevisionID: rev, Snapshot: snap, Patch: p}
		var record any = p
		if snap != nil {
			e.Time, record = snap.Time, snap
		} else {
			e.Time = p.Time
		}
		if prog != nil {
			pass, err := Match(prog, e)
			if err != nil {
				walkErr = fmt.Errorf("filter %s@%s: %w", objectID, rev, err)
				return false
			}
			if !pass {
				return true
			}
		}
		encoded, err := codec.Marshal(record)
		if err != nil {
			walkErr = err
			return false
		}
		e.Size = len(encoded)
		entries = append(entries, e)
		return true
	})
	if err != nil {
		return nil, err
	}
	return entries, walkErr
}
