package oracle

import (
	"context"
	"fmt"
	"image"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Aggregator implements the composite "all" strategy on top of an Oracle.
type Aggregator struct {
	oracle Oracle
}

func NewAggregator(oracle Oracle) *Aggregator {
	return &Aggregator{oracle: oracle}
}

// EstimateAll runs the plausible and top strategies on img and merges them.
// Both calls run concurrently; if either fails the whole estimation fails.
func (a *Aggregator) EstimateAll(ctx context.Context, img image.Image) (Result, error) {
	var plausible, top Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := a.oracle.Estimate(gctx, img, StrategyPlausible)
		if err != nil {
			return fmt.Errorf("%s estimation failed: %w", StrategyPlausible, err)
		}
		plausible = res
		return nil
	})
	g.Go(func() error {
		res, err := a.oracle.Estimate(gctx, img, StrategyTop)
		if err != nil {
			return fmt.Errorf("%s estimation failed: %w", StrategyTop, err)
		}
		top = res
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Merge(plausible, top), nil
}

// EstimateMode runs strategy on img. The base strategies go to the oracle
// as they are, StrategyAll runs both and merges them.
func (a *Aggregator) EstimateMode(ctx context.Context, img image.Image, strategy Strategy) (Result, error) {
	if strategy == StrategyAll {
		return a.EstimateAll(ctx, img)
	}

	base, err := ParseStrategy(string(strategy))
	if err != nil {
		return nil, err
	}
	return a.oracle.Estimate(ctx, img, base)
}

// Merge combines two results category by category. A tag found in one
// source keeps its score, a tag found in both gets the mean of the two.
// The result does not depend on argument order. Categories missing from
// both sources are omitted. A tag listed twice in one source counts with
// its highest score.
func Merge(a, b Result) Result {
	merged := make(Result)

	for category := range a {
		merged[category] = nil
	}
	for category := range b {
		merged[category] = nil
	}

	for category := range merged {
		left := collapse(a[category])
		right := collapse(b[category])

		scores := make([]Score, 0, len(left)+len(right))
		for tag, l := range left {
			if r, ok := right[tag]; ok {
				scores = append(scores, Score{Tag: tag, Confidence: (l + r) / 2})
			} else {
				scores = append(scores, Score{Tag: tag, Confidence: l})
			}
		}
		for tag, r := range right {
			if _, ok := left[tag]; !ok {
				scores = append(scores, Score{Tag: tag, Confidence: r})
			}
		}

		SortScores(scores)
		merged[category] = scores
	}

	return merged
}

func collapse(scores []Score) map[string]float64 {
	m := make(map[string]float64, len(scores))
	for _, s := range scores {
		if current, ok := m[s.Tag]; !ok || s.Confidence > current {
			m[s.Tag] = s.Confidence
		}
	}
	return m
}

// SortScores orders by confidence, highest first, then by tag.
func SortScores(scores []Score) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Confidence != scores[j].Confidence {
			return scores[i].Confidence > scores[j].Confidence
		}
		return scores[i].Tag < scores[j].Tag
	})
}
