// Package estimation caches oracle results per content fingerprint and mode.
package estimation

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/mwantia/illustag/internal/keylock"
	"github.com/mwantia/illustag/internal/metrics"
	"github.com/mwantia/illustag/pkg/db/models"
	"github.com/mwantia/illustag/pkg/db/store"
	"github.com/mwantia/illustag/pkg/log"
	"github.com/mwantia/illustag/pkg/oracle"
)

var (
	// ErrOracleFailure wraps every error raised by the oracle or caused by malformed oracle output.
	ErrOracleFailure = errors.New("oracle failure")

	ErrInvalidMode = errors.New("invalid estimation mode")
)

// ImageLoader decodes the content behind a checksum.
type ImageLoader interface {
	Load(ctx context.Context, checksum *models.Checksum) (image.Image, error)
}

type Cache struct {
	store      store.MetadataStore
	loader     ImageLoader
	oracle     oracle.Oracle
	aggregator *oracle.Aggregator
	locks      *keylock.Locker
	metrics    *metrics.EstimationMetrics
	log        log.LoggerService
}

// NewCache creates a cache in front of o. m may be nil.
func NewCache(st store.MetadataStore, loader ImageLoader, o oracle.Oracle, m *metrics.EstimationMetrics, logger log.LoggerService) *Cache {
	return &Cache{
		store:      st,
		loader:     loader,
		oracle:     o,
		aggregator: oracle.NewAggregator(o),
		locks:      keylock.New(),
		metrics:    m,
		log:        logger.Named("estimation"),
	}
}

// GetEstimations returns the estimations of checksum under mode. The oracle is
// only invoked when nothing is stored yet for the pair; concurrent misses for
// the same content wait for the first one instead of invoking it again.
func (c *Cache) GetEstimations(ctx context.Context, checksum *models.Checksum, mode models.Mode) (Estimations, error) {
	if checksum == nil || checksum.ID == 0 {
		return nil, fmt.Errorf("%w: checksum is required", store.ErrInvalidInput)
	}
	if _, err := models.ParseMode(string(mode)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMode, err)
	}

	est, err := c.read(ctx, checksum.ID, mode)
	if err != nil {
		return nil, err
	}
	if !est.Empty() {
		c.metrics.IncrementCacheHits(string(mode))
		return est, nil
	}

	c.locks.Lock(checksum.Value)
	defer c.locks.Unlock(checksum.Value)

	// Another request may have filled the entry while we were waiting.
	if est, err = c.read(ctx, checksum.ID, mode); err != nil {
		return nil, err
	}
	if !est.Empty() {
		c.metrics.IncrementCacheHits(string(mode))
		return est, nil
	}
	c.metrics.IncrementCacheMisses(string(mode))

	img, err := c.loader.Load(ctx, checksum)
	if err != nil {
		return nil, fmt.Errorf("failed to load image for checksum %s: %w", checksum.ShortValue(), err)
	}

	result, err := c.estimate(ctx, img, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOracleFailure, err)
	}
	if err := validate(result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOracleFailure, err)
	}

	if result.Len() == 0 {
		c.log.Warn("Oracle returned no tags for checksum %s in mode '%s'", checksum.ShortValue(), mode)
		return est, nil
	}

	if err := c.write(ctx, checksum.ID, mode, result); err != nil {
		return nil, err
	}
	c.log.Debug("Stored %d estimations for checksum %s in mode '%s'", result.Len(), checksum.ShortValue(), mode)

	return c.read(ctx, checksum.ID, mode)
}

func (c *Cache) read(ctx context.Context, checksumID uint, mode models.Mode) (Estimations, error) {
	rows, err := c.store.ListEstimations(ctx, checksumID, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to read estimations: %w", err)
	}
	return fromRows(rows), nil
}

// estimate runs the strategy named by mode and records the call.
func (c *Cache) estimate(ctx context.Context, img image.Image, mode models.Mode) (oracle.Result, error) {
	start := time.Now()
	result, err := c.aggregator.EstimateMode(ctx, img, oracle.Strategy(mode))
	c.metrics.ObserveOracleCall(string(mode), time.Since(start).Seconds(), err)
	return result, err
}

// write stores result in a single transaction so a failure leaves no partial set.
func (c *Cache) write(ctx context.Context, checksumID uint, mode models.Mode, result oracle.Result) error {
	err := c.store.Transaction(ctx, func(tx store.MetadataStore) error {
		for category, scores := range result {
			for _, score := range scores {
				tag, _, err := tx.GetOrCreateTag(ctx, score.Tag, category)
				if err != nil {
					return fmt.Errorf("failed to resolve tag '%s': %w", models.Fullname(category, score.Tag), err)
				}
				if err := tx.UpsertEstimation(ctx, checksumID, tag.ID, mode, score.Confidence); err != nil {
					return fmt.Errorf("failed to store estimation for '%s': %w", tag.Fullname(), err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist estimations: %w", err)
	}

	c.metrics.AddRowsWritten(result.Len())
	return nil
}

func validate(result oracle.Result) error {
	for category, scores := range result {
		for _, score := range scores {
			if score.Tag == "" {
				return fmt.Errorf("empty tag in category '%s'", category)
			}
			if math.IsNaN(score.Confidence) || math.IsInf(score.Confidence, 0) {
				return fmt.Errorf("confidence of '%s' is not a number", models.Fullname(category, score.Tag))
			}
		}
	}
	return nil
}
