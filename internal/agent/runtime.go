package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mwantia/illustag/internal/curation"
	"github.com/mwantia/illustag/internal/estimation"
	"github.com/mwantia/illustag/internal/library"
	"github.com/mwantia/illustag/internal/metrics"
	"github.com/mwantia/illustag/pkg/db/store"
	"github.com/mwantia/illustag/pkg/log"
	"github.com/mwantia/illustag/pkg/oracle"
	"github.com/mwantia/illustag/pkg/oracle/httporacle"
	"github.com/mwantia/illustag/pkg/oracle/tflite"

	config "github.com/mwantia/illustag/internal/config/server"
)

// Runtime holds the long-lived services shared by the agent and the one-shot
// commands. The oracle is created once and reused for every estimation.
type Runtime struct {
	Store    *store.SQLiteStore
	Oracle   oracle.Oracle
	Library  *library.Library
	Cache    *estimation.Cache
	Ledger   *curation.Ledger
	Registry *prometheus.Registry
}

// NewRuntime opens and migrates the metadata store and builds every service on top of it.
func NewRuntime(ctx context.Context, cfg *config.BaseServerConfig, logger log.LoggerService) (*Runtime, error) {
	st, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Store:    st,
		Registry: prometheus.NewRegistry(),
	}

	if err := rt.setup(cfg, logger); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) setup(cfg *config.BaseServerConfig, logger log.LoggerService) error {
	em, err := metrics.NewEstimationMetrics(rt.Registry)
	if err != nil {
		return err
	}
	lm, err := metrics.NewLibraryMetrics(rt.Registry)
	if err != nil {
		return err
	}

	rt.Oracle, err = NewOracle(cfg.Oracle, logger)
	if err != nil {
		return err
	}

	rt.Library, err = library.New(library.Config{
		Path:          cfg.Storage.Path,
		MaxUploadSize: cfg.Storage.MaxUploadSize,
	}, rt.Store, lm, logger)
	if err != nil {
		return err
	}

	rt.Cache = estimation.NewCache(rt.Store, rt.Library, rt.Oracle, em, logger)
	rt.Ledger = curation.NewLedger(rt.Store, logger)
	return nil
}

// Close releases the oracle and the store.
func (rt *Runtime) Close() error {
	var errs []error
	if closer, ok := rt.Oracle.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if rt.Store != nil {
		errs = append(errs, rt.Store.Close())
	}
	return errors.Join(errs...)
}

// OpenStore connects to the configured metadata store and applies pending migrations.
func OpenStore(ctx context.Context, cfg *config.BaseServerConfig, logger log.LoggerService) (*store.SQLiteStore, error) {
	slow, err := parseDuration(cfg.Metadata.SQLite.SlowThreshold, 200*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid metadata.sqlite.slow_threshold: %w", err)
	}

	st, err := store.NewSQLiteStore(store.SQLiteConfig{
		Path:   cfg.Metadata.SQLite.Path,
		Logger: log.NewGormLogger(logger.Named("store"), slow),
	})
	if err != nil {
		return nil, err
	}

	if err := st.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to metadata store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to migrate metadata store: %w", err)
	}
	return st, nil
}

// NewOracle creates the configured oracle.
func NewOracle(cfg config.OracleServerConfig, logger log.LoggerService) (oracle.Oracle, error) {
	switch cfg.Type {
	case "http":
		timeout, err := parseDuration(cfg.HTTP.Timeout, 0)
		if err != nil {
			return nil, fmt.Errorf("invalid oracle.http.timeout: %w", err)
		}
		client, err := httporacle.NewClient(cfg.HTTP.URL, timeout)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "tflite":
		model, err := tflite.New(tflite.Config{
			ModelPath: cfg.TFLite.ModelPath,
			TagsPath:  cfg.TFLite.TagsPath,
			Threads:   cfg.TFLite.Threads,
			Threshold: cfg.PlausibleThreshold,
			TopCount:  cfg.TopCount,
		}, logger.Named("tflite"))
		if err != nil {
			return nil, err
		}
		return model, nil
	default:
		return nil, fmt.Errorf("unsupported oracle type '%s'", cfg.Type)
	}
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}
