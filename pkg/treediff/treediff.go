// Package treediff computes the structural difference between two versions of
// a [tree.Node] and applies it to other copies of the old version.
//
// Children are matched by label. A [Diff] lists attributes that were added,
// removed or changed, children that only exist on one side and, per shared
// label, a nested Diff. Empty nested diffs are pruned.
//
//	d, _ := treediff.Compute(oldTable, newTable)
//	if !d.IsEmpty() {
//		_ = treediff.Apply(replicaCopy, d) // replicaCopy now equals newTable
//	}
package treediff
