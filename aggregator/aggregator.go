// Package aggregator filters scored pairs against the confidence threshold
// and merges the survivors into duplicate groups.
package aggregator

import (
	"errors"
	"sort"

	"duplicateimagefinder/types"

	"github.com/samber/lo"
)

// ErrFinalized is returned when results arrive after Finalize
var ErrFinalized = errors.New("aggregator already finalized")

// Aggregator is a union-find over image refs fed with retained pairs.
// It is not safe for concurrent use.
type Aggregator struct {
	threshold int
	inverse   bool
	finalized bool

	index    map[string]int
	refs     []types.ImageRef
	parent   []int
	size     []int
	retained []types.PairResult
	failures []*types.ComparisonFailure
}

// New creates an aggregator. Pairs are retained when their confidence is
// at least threshold, or below it when inverse is set.
func New(threshold int, inverse bool) *Aggregator {
	return &Aggregator{
		threshold: threshold,
		inverse:   inverse,
		index:     make(map[string]int),
	}
}

// Retains reports whether a pair with the given confidence would be kept
func (a *Aggregator) Retains(confidence int) bool {
	if a.inverse {
		return confidence < a.threshold
	}
	return confidence >= a.threshold
}

// Accept considers one scored pair
func (a *Aggregator) Accept(res types.PairResult) error {
	if a.finalized {
		return ErrFinalized
	}
	if !a.Retains(res.Confidence) {
		return nil
	}

	a.retained = append(a.retained, res)
	a.union(a.node(res.A), a.node(res.B))
	return nil
}

// Fail records a pair whose comparison failed
func (a *Aggregator) Fail(f *types.ComparisonFailure) error {
	if a.finalized {
		return ErrFinalized
	}
	a.failures = append(a.failures, f)
	return nil
}

// Result implements dispatcher.Sink
func (a *Aggregator) Result(res types.PairResult) { _ = a.Accept(res) }

// Failure implements dispatcher.Sink
func (a *Aggregator) Failure(f *types.ComparisonFailure) { _ = a.Fail(f) }

// Retained returns the number of pairs kept so far
func (a *Aggregator) Retained() int {
	return len(a.retained)
}

// Failures returns the recorded comparison failures ordered by paths
func (a *Aggregator) Failures() []*types.ComparisonFailure {
	out := append([]*types.ComparisonFailure(nil), a.failures...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A.Less(out[j].A)
		}
		return out[i].B.Less(out[j].B)
	})
	return out
}

func (a *Aggregator) node(ref types.ImageRef) int {
	if i, ok := a.index[ref.Key()]; ok {
		return i
	}
	i := len(a.refs)
	a.index[ref.Key()] = i
	a.refs = append(a.refs, ref)
	a.parent = append(a.parent, i)
	a.size = append(a.size, 1)
	return i
}

func (a *Aggregator) find(i int) int {
	for a.parent[i] != i {
		a.parent[i] = a.parent[a.parent[i]]
		i = a.parent[i]
	}
	return i
}

func (a *Aggregator) union(x, y int) {
	rx, ry := a.find(x), a.find(y)
	if rx == ry {
		return
	}
	if a.size[rx] < a.size[ry] {
		rx, ry = ry, rx
	}
	a.parent[ry] = rx
	a.size[rx] += a.size[ry]
}

// Finalize emits the duplicate groups in their final order and closes the
// aggregator. Members are ordered by path, pairs by descending confidence,
// and groups by descending best confidence, then size, then first path.
func (a *Aggregator) Finalize() ([]types.DuplicateGroup, error) {
	if a.finalized {
		return nil, ErrFinalized
	}
	a.finalized = true

	members := make(map[int][]types.ImageRef)
	for i, ref := range a.refs {
		root := a.find(i)
		members[root] = append(members[root], ref)
	}
	pairs := lo.GroupBy(a.retained, func(p types.PairResult) int {
		return a.find(a.index[p.A.Key()])
	})

	groups := make([]types.DuplicateGroup, 0, len(members))
	for root, refs := range members {
		if len(refs) < 2 {
			continue
		}
		sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })

		gp := lo.Map(pairs[root], func(p types.PairResult, _ int) types.PairResult {
			return canonical(p)
		})
		sort.Slice(gp, func(i, j int) bool { return pairLess(gp[i], gp[j]) })

		groups = append(groups, types.DuplicateGroup{
			Members:       refs,
			Pairs:         gp,
			MaxConfidence: lo.MaxBy(gp, func(x, best types.PairResult) bool { return x.Confidence > best.Confidence }).Confidence,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		gi, gj := groups[i], groups[j]
		if gi.MaxConfidence != gj.MaxConfidence {
			return gi.MaxConfidence > gj.MaxConfidence
		}
		if len(gi.Members) != len(gj.Members) {
			return len(gi.Members) > len(gj.Members)
		}
		return gi.Members[0].Less(gj.Members[0])
	})
	for i := range groups {
		groups[i].Index = i + 1
	}
	return groups, nil
}

// canonical puts the primary endpoint first, or the smaller path when both
// share an origin
func canonical(p types.PairResult) types.PairResult {
	if p.A.Origin != p.B.Origin {
		if p.B.Origin == types.OriginPrimary {
			p.A, p.B = p.B, p.A
		}
		return p
	}
	if p.B.Less(p.A) {
		p.A, p.B = p.B, p.A
	}
	return p
}

func pairLess(x, y types.PairResult) bool {
	if x.Confidence != y.Confidence {
		return x.Confidence > y.Confidence
	}
	if x.A != y.A {
		return x.A.Less(y.A)
	}
	return x.B.Less(y.B)
}
