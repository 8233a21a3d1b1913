package estimation

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwantia/illustag/internal/metrics"
	itest "github.com/mwantia/illustag/internal/testutil"
	"github.com/mwantia/illustag/pkg/db/models"
	"github.com/mwantia/illustag/pkg/db/store"
	"github.com/mwantia/illustag/pkg/oracle"
)

const fingerprint = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

type loaderFunc func(ctx context.Context, checksum *models.Checksum) (image.Image, error)

func (f loaderFunc) Load(ctx context.Context, checksum *models.Checksum) (image.Image, error) {
	return f(ctx, checksum)
}

func blankLoader() ImageLoader {
	return loaderFunc(func(ctx context.Context, checksum *models.Checksum) (image.Image, error) {
		return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
	})
}

// countingOracle returns fixed results per strategy and counts its calls.
type countingOracle struct {
	calls   atomic.Int32
	delay   time.Duration
	err     error
	results map[oracle.Strategy]oracle.Result
}

func (o *countingOracle) Estimate(ctx context.Context, img image.Image, strategy oracle.Strategy) (oracle.Result, error) {
	o.calls.Add(1)
	if o.delay > 0 {
		time.Sleep(o.delay)
	}
	if o.err != nil {
		return nil, o.err
	}
	return o.results[strategy], nil
}

func newOracle() *countingOracle {
	return &countingOracle{
		results: map[oracle.Strategy]oracle.Result{
			oracle.StrategyPlausible: {
				"general": {{Tag: "cat", Confidence: 0.8}},
				"rating":  {{Tag: "safe", Confidence: 0.95}},
			},
			oracle.StrategyTop: {
				"general": {{Tag: "cat", Confidence: 0.6}, {Tag: "dog", Confidence: 0.9}},
			},
		},
	}
}

type fixture struct {
	store    *store.SQLiteStore
	oracle   *countingOracle
	cache    *Cache
	metrics  *metrics.EstimationMetrics
	checksum *models.Checksum
}

func setup(t *testing.T, o *countingOracle) *fixture {
	t.Helper()

	st := itest.NewStore(t)
	m, err := metrics.NewEstimationMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	checksum, _, err := st.GetOrCreateChecksum(context.Background(), fingerprint)
	require.NoError(t, err)

	return &fixture{
		store:    st,
		oracle:   o,
		cache:    NewCache(st, blankLoader(), o, m, itest.NewLogger(t)),
		metrics:  m,
		checksum: checksum,
	}
}

func TestGetEstimations_MissThenHit(t *testing.T) {
	f := setup(t, newOracle())
	ctx := context.Background()

	first, err := f.cache.GetEstimations(ctx, f.checksum, models.ModePlausible)
	require.NoError(t, err)

	second, err := f.cache.GetEstimations(ctx, f.checksum, models.ModePlausible)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), f.oracle.calls.Load())

	require.Len(t, first["general"], 1)
	assert.Equal(t, "general:cat", first["general"][0].Tag)
	assert.Equal(t, "cat", first["general"][0].Value)
	assert.InDelta(t, 0.8, first["general"][0].Confidence, 1e-9)
	assert.NotZero(t, first["general"][0].TagID)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheMisses.WithLabelValues("plausible")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheHits.WithLabelValues("plausible")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.RowsWritten))
}

func TestGetEstimations_DefaultCategories(t *testing.T) {
	f := setup(t, newOracle())

	est, err := f.cache.GetEstimations(context.Background(), f.checksum, models.ModeTop)
	require.NoError(t, err)

	for _, category := range oracle.Categories {
		assert.Contains(t, est, category)
	}
	assert.Empty(t, est["character"])
	assert.NotNil(t, est["character"])

	require.Len(t, est["general"], 2)
	assert.Equal(t, "general:dog", est["general"][0].Tag)
	assert.Equal(t, "general:cat", est["general"][1].Tag)
}

func TestGetEstimations_AllMode(t *testing.T) {
	f := setup(t, newOracle())

	est, err := f.cache.GetEstimations(context.Background(), f.checksum, models.ModeAll)
	require.NoError(t, err)

	assert.Equal(t, int32(2), f.oracle.calls.Load())

	simple := est.Simple()
	require.Len(t, simple["general"], 2)
	assert.Equal(t, "dog", simple["general"][0].Tag)
	assert.InDelta(t, 0.9, simple["general"][0].Confidence, 1e-9)
	assert.Equal(t, "cat", simple["general"][1].Tag)
	assert.InDelta(t, 0.7, simple["general"][1].Confidence, 1e-9)
	require.Len(t, simple["rating"], 1)
	assert.InDelta(t, 0.95, simple["rating"][0].Confidence, 1e-9)
}

func TestGetEstimations_ModesAreIndependent(t *testing.T) {
	f := setup(t, newOracle())
	ctx := context.Background()

	for _, mode := range models.Modes {
		_, err := f.cache.GetEstimations(ctx, f.checksum, mode)
		require.NoError(t, err)
	}
	for _, mode := range models.Modes {
		_, err := f.cache.GetEstimations(ctx, f.checksum, mode)
		require.NoError(t, err)
	}

	// plausible + top + both strategies for all
	assert.Equal(t, int32(4), f.oracle.calls.Load())

	count, err := f.store.CountEstimations(ctx, f.checksum.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2+2+3), count)

	// The shared tag is stored once.
	tags, err := f.store.ListTags(ctx, "general", 0, 0)
	require.NoError(t, err)
	assert.Len(t, tags, 2)
}

func TestGetEstimations_OracleFailureWritesNothing(t *testing.T) {
	o := newOracle()
	o.err = errors.New("model exploded")
	f := setup(t, o)
	ctx := context.Background()

	_, err := f.cache.GetEstimations(ctx, f.checksum, models.ModeAll)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOracleFailure)
	assert.ErrorIs(t, err, o.err)

	count, err := f.store.CountEstimations(ctx, f.checksum.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OracleErrors.WithLabelValues("all")))
}

func TestGetEstimations_MalformedResultWritesNothing(t *testing.T) {
	o := newOracle()
	o.results[oracle.StrategyTop] = oracle.Result{
		"general": {{Tag: "cat", Confidence: 0.6}, {Tag: "", Confidence: 0.5}},
	}
	f := setup(t, o)
	ctx := context.Background()

	_, err := f.cache.GetEstimations(ctx, f.checksum, models.ModeTop)
	assert.ErrorIs(t, err, ErrOracleFailure)

	count, err := f.store.CountEstimations(ctx, f.checksum.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetEstimations_EmptyResultInvokesAgain(t *testing.T) {
	o := newOracle()
	o.results[oracle.StrategyTop] = oracle.Result{}
	f := setup(t, o)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		est, err := f.cache.GetEstimations(ctx, f.checksum, models.ModeTop)
		require.NoError(t, err)
		assert.True(t, est.Empty())
		assert.Len(t, est, len(oracle.Categories))
	}
	assert.Equal(t, int32(3), o.calls.Load())
}

func TestGetEstimations_ConcurrentMissInvokesOnce(t *testing.T) {
	o := newOracle()
	o.delay = 50 * time.Millisecond
	f := setup(t, o)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]Estimations, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.cache.GetEstimations(context.Background(), f.checksum, models.ModeTop)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, int32(1), o.calls.Load())
}

func TestGetEstimations_InvalidInput(t *testing.T) {
	f := setup(t, newOracle())
	ctx := context.Background()

	_, err := f.cache.GetEstimations(ctx, f.checksum, models.Mode("best"))
	assert.ErrorIs(t, err, ErrInvalidMode)

	_, err = f.cache.GetEstimations(ctx, nil, models.ModeTop)
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	assert.Zero(t, f.oracle.calls.Load())
}

func TestGetEstimations_LoaderFailure(t *testing.T) {
	st := itest.NewStore(t)
	checksum, _, err := st.GetOrCreateChecksum(context.Background(), fingerprint)
	require.NoError(t, err)

	missing := errors.New("no readable image")
	o := newOracle()
	cache := NewCache(st, loaderFunc(func(ctx context.Context, checksum *models.Checksum) (image.Image, error) {
		return nil, missing
	}), o, nil, itest.NewLogger(t))

	_, err = cache.GetEstimations(context.Background(), checksum, models.ModeTop)
	assert.ErrorIs(t, err, missing)
	assert.NotErrorIs(t, err, ErrOracleFailure)
	assert.Zero(t, o.calls.Load())
}
