package oracle

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoreMap(scores []Score) map[string]float64 {
	m := make(map[string]float64, len(scores))
	for _, s := range scores {
		m[s.Tag] = s.Confidence
	}
	return m
}

func TestMerge_MeanForSharedPassThroughForUnique(t *testing.T) {
	plausible := Result{"general": {{"cat", 0.8}}}
	top := Result{"general": {{"cat", 0.6}, {"dog", 0.9}}}

	merged := Merge(plausible, top)

	require.Len(t, merged, 1)
	general := scoreMap(merged["general"])
	require.Len(t, general, 2)
	assert.InDelta(t, 0.7, general["cat"], 1e-9)
	assert.InDelta(t, 0.9, general["dog"], 1e-9)

	// Highest confidence first.
	assert.Equal(t, "dog", merged["general"][0].Tag)
}

func TestMerge_Symmetric(t *testing.T) {
	a := Result{
		"general":   {{"solo", 0.87}, {"long hair", 0.83}},
		"rating":    {{"safe", 0.99}, {"questionable", 0.003}},
		"character": {},
	}
	b := Result{
		"general":   {{"solo", 0.5}, {"blue eyes", 0.93}},
		"rating":    {{"safe", 0.97}, {"explicit", 0.0004}},
		"copyright": {{"vocaloid", 0.4}},
	}

	assert.Equal(t, Merge(a, b), Merge(b, a))
}

func TestMerge_CategoriesAndEmptyInputs(t *testing.T) {
	merged := Merge(Result{"rating": {{"safe", 1}}}, Result{"copyright": {{"touhou", 0.3}}})
	assert.Len(t, merged, 2)
	assert.Contains(t, merged, "rating")
	assert.Contains(t, merged, "copyright")
	assert.NotContains(t, merged, "general")

	assert.Empty(t, Merge(nil, nil))
	assert.Equal(t, 0, Merge(Result{}, nil).Len())
}

func TestMerge_DuplicateWithinSource(t *testing.T) {
	merged := Merge(Result{"general": {{"cat", 0.2}, {"cat", 0.6}}}, nil)
	require.Len(t, merged["general"], 1)
	assert.InDelta(t, 0.6, merged["general"][0].Confidence, 1e-9)
}

func TestAggregator_EstimateAll(t *testing.T) {
	var calls atomic.Int32
	fake := Func(func(_ context.Context, _ image.Image, strategy Strategy) (Result, error) {
		calls.Add(1)
		switch strategy {
		case StrategyPlausible:
			return Result{"general": {{"cat", 0.8}}}, nil
		case StrategyTop:
			return Result{"general": {{"cat", 0.6}, {"dog", 0.9}}}, nil
		}
		return nil, errors.New("unexpected strategy")
	})

	res, err := NewAggregator(fake).EstimateAll(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	general := scoreMap(res["general"])
	assert.InDelta(t, 0.7, general["cat"], 1e-9)
	assert.InDelta(t, 0.9, general["dog"], 1e-9)
}

func TestAggregator_EstimateAllFailure(t *testing.T) {
	boom := errors.New("model crashed")
	fake := Func(func(_ context.Context, _ image.Image, strategy Strategy) (Result, error) {
		if strategy == StrategyTop {
			return nil, boom
		}
		return Result{"general": {{"cat", 0.8}}}, nil
	})

	res, err := NewAggregator(fake).EstimateAll(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, res)
}

func TestAggregator_EstimateMode(t *testing.T) {
	var mu sync.Mutex
	var seen []Strategy
	fake := Func(func(_ context.Context, _ image.Image, strategy Strategy) (Result, error) {
		mu.Lock()
		seen = append(seen, strategy)
		mu.Unlock()
		return Result{"general": {{string(strategy), 0.5}}}, nil
	})
	agg := NewAggregator(fake)
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))

	res, err := agg.EstimateMode(context.Background(), img, StrategyTop)
	require.NoError(t, err)
	assert.Equal(t, "top", res["general"][0].Tag)
	assert.Equal(t, []Strategy{StrategyTop}, seen)

	seen = nil
	res, err = agg.EstimateMode(context.Background(), img, StrategyAll)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Strategy{StrategyPlausible, StrategyTop}, seen)
	assert.Len(t, res["general"], 2)

	seen = nil
	_, err = agg.EstimateMode(context.Background(), img, Strategy("best"))
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Empty(t, seen)
}
