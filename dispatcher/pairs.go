// Package dispatcher generates candidate pairs from a signature table and
// scores them on a bounded pool of workers.
package dispatcher

import (
	"duplicateimagefinder/types"
)

// Mode selects which pairs are candidates
type Mode int

const (
	// ModeSelf pairs every image of the table with every other one
	ModeSelf Mode = iota
	// ModeCross pairs each primary image with each compare image
	ModeCross
)

func (m Mode) String() string {
	switch m {
	case ModeSelf:
		return "self"
	case ModeCross:
		return "cross"
	default:
		return "unknown"
	}
}

// Pair is one candidate comparison
type Pair struct {
	A types.Signature
	B types.Signature
}

// PairIterator yields candidate pairs lazily. Reset rewinds it so the same
// sequence can be produced again.
type PairIterator interface {
	Next() (Pair, bool)
	Reset()
	Len() int64
}

// selfPairs yields (i, j) with i < j over one slice
type selfPairs struct {
	sigs []types.Signature
	i, j int
}

// NewSelfPairs iterates every unordered pair of distinct signatures once
func NewSelfPairs(sigs []types.Signature) PairIterator {
	it := &selfPairs{sigs: sigs}
	it.Reset()
	return it
}

func (it *selfPairs) Reset() {
	it.i, it.j = 0, 1
}

func (it *selfPairs) Next() (Pair, bool) {
	for it.i < len(it.sigs)-1 {
		if it.j < len(it.sigs) {
			p := Pair{A: it.sigs[it.i], B: it.sigs[it.j]}
			it.j++
			return p, true
		}
		it.i++
		it.j = it.i + 1
	}
	return Pair{}, false
}

func (it *selfPairs) Len() int64 {
	n := int64(len(it.sigs))
	return n * (n - 1) / 2
}

// crossPairs yields the cartesian product primary x compare
type crossPairs struct {
	primary []types.Signature
	compare []types.Signature
	i, j    int
}

// NewCrossPairs iterates every (primary, compare) combination once
func NewCrossPairs(primary, compare []types.Signature) PairIterator {
	return &crossPairs{primary: primary, compare: compare}
}

func (it *crossPairs) Reset() {
	it.i, it.j = 0, 0
}

func (it *crossPairs) Next() (Pair, bool) {
	if len(it.compare) == 0 {
		return Pair{}, false
	}
	if it.j == len(it.compare) {
		it.i++
		it.j = 0
	}
	if it.i >= len(it.primary) {
		return Pair{}, false
	}
	p := Pair{A: it.primary[it.i], B: it.compare[it.j]}
	it.j++
	return p, true
}

func (it *crossPairs) Len() int64 {
	return int64(len(it.primary)) * int64(len(it.compare))
}
