package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"duplicateimagefinder/logging"
	"duplicateimagefinder/similarity"
	"duplicateimagefinder/types"

	"golang.org/x/sync/errgroup"
)

// ScoreFunc compares two signatures
type ScoreFunc func(a, b types.Signature) (types.PairResult, error)

// Sink receives every outcome. Calls are serialized, so implementations
// need no locking of their own.
type Sink interface {
	Result(types.PairResult)
	Failure(*types.ComparisonFailure)
}

// Progress is advanced once per scored pair
type Progress interface {
	Increment()
}

// Dispatcher scores pairs on a fixed number of workers
type Dispatcher struct {
	Workers  int
	Score    ScoreFunc
	Progress Progress
}

// New creates a dispatcher using the Hamming scorer
func New(workers int) *Dispatcher {
	return &Dispatcher{Workers: workers, Score: similarity.Score}
}

// Run drains it through the worker pool and hands each outcome to sink.
// A failing or panicking comparison is reported as a ComparisonFailure and
// does not stop the others. Run returns the number of pairs compared, or
// the context error when cancelled.
func (d *Dispatcher) Run(ctx context.Context, it PairIterator, sink Sink) (int64, error) {
	workers := d.Workers
	if workers < 1 {
		workers = 1
	}
	score := d.Score
	if score == nil {
		score = similarity.Score
	}

	queue := make(chan Pair, workers*4)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)
		for {
			p, ok := it.Next()
			if !ok {
				return nil
			}
			select {
			case queue <- p:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var (
		mu       sync.Mutex
		compared int64
	)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for p := range queue {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := safeScore(score, p)

				mu.Lock()
				compared++
				if err != nil {
					failure := &types.ComparisonFailure{A: p.A.Ref, B: p.B.Ref, Err: err}
					logging.LogWarning("%v", failure)
					sink.Failure(failure)
				} else {
					sink.Result(res)
				}
				if d.Progress != nil {
					d.Progress.Increment()
				}
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return compared, err
	}
	return compared, ctx.Err()
}

func safeScore(score ScoreFunc, p Pair) (res types.PairResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while scoring: %v", r)
		}
	}()
	return score(p.A, p.B)
}
