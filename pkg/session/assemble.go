package session

import "github.com/BillGrim/pdftk-ext/pkg/pagerange"

// PageRef is one page of the output: a source page, its rotation and the
// document instance that supplies it
type PageRef struct {
	Doc      int // index into the input documents
	Page     int // 1-based page number
	Rotation pagerange.Rotation
	Instance InstanceID
}

// Sequence holds the expanded page ranges in command-line order
type Sequence [][]PageRef

// Cat flattens the ranges, keeping range order and then page order
func (seq Sequence) Cat() []PageRef {
	n := 0
	for _, r := range seq {
		n += len(r)
	}
	out := make([]PageRef, 0, n)
	for _, r := range seq {
		out = append(out, r...)
	}
	return out
}

// Shuffle interleaves the ranges round-robin. Shorter ranges stop
// contributing once exhausted.
func (seq Sequence) Shuffle() []PageRef {
	longest, n := 0, 0
	for _, r := range seq {
		longest = max(longest, len(r))
		n += len(r)
	}
	out := make([]PageRef, 0, n)
	for i := 0; i < longest; i++ {
		for _, r := range seq {
			if i < len(r) {
				out = append(out, r[i])
			}
		}
	}
	return out
}

// Assemble returns the output page order for op. The position of a page in
// the result is its 0-based output page index.
func Assemble(op Operation, seq Sequence) []PageRef {
	if op == OpShuffle {
		return seq.Shuffle()
	}
	return seq.Cat()
}
