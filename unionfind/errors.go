// Package unionfind provides IterableUnionFind, a disjoint-set data
// structure over dense integer indices with O(class_size) enumeration via an
// internal circular list, used by crdgraph to maintain field equivalence
// classes.
//
// Complexity: find/unite are near O(1) amortized (inverse-Ackermann) thanks
// to union-by-rank and two-pass path compression. Enumeration of a class is
// O(class_size), not O(n), which is what makes crdgraph.LinkFields's
// cross-class constraint checks tractable.
package unionfind

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is the sentinel wrapped by out-of-range index errors.
// Check with errors.Is; use the returned error's message for the offending
// index and the valid range.
var ErrIndexOutOfRange = errors.New("unionfind: index out of range")

// ErrOverflow is returned by MakeSet when the index type I cannot represent
// one more element (e.g. int8 already holds 128 elements, indices 0..127).
var ErrOverflow = errors.New("unionfind: class-index type exhausted")

// indexOutOfRange builds a descriptive ErrIndexOutOfRange, naming the
// offending index and the currently valid range [0, n).
func indexOutOfRange(idx int, n int) error {
	return fmt.Errorf("%w: index %d not in [0, %d)", ErrIndexOutOfRange, idx, n)
}
