package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mwantia/fabric/pkg/container"

	"github.com/mwantia/illustag/internal/api"
	"github.com/mwantia/illustag/internal/curation"
	"github.com/mwantia/illustag/internal/estimation"
	"github.com/mwantia/illustag/internal/library"
	"github.com/mwantia/illustag/pkg/db/store"
	"github.com/mwantia/illustag/pkg/log"

	config "github.com/mwantia/illustag/internal/config/server"
)

type IllustagAgent struct {
	mutex sync.RWMutex
	wait  sync.WaitGroup

	cfg *config.BaseServerConfig
	sc  *container.ServiceContainer
	rt  *Runtime
	log log.LoggerService
}

func NewAgent(cfg *config.BaseServerConfig) *IllustagAgent {
	return &IllustagAgent{
		cfg: cfg,
		sc:  container.NewServiceContainer(),
		log: log.NewLoggerService(cfg.Log.Name, cfg.Log),
	}
}

func (ia *IllustagAgent) setupServices(ctx context.Context) error {
	rt, err := NewRuntime(ctx, ia.cfg, ia.log)
	if err != nil {
		return err
	}
	ia.rt = rt

	errs := container.Errors{}

	ia.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](ia.sc,
		container.With[log.LoggerService](),
		container.WithInstance(ia.log)))

	ia.log.Debug("Registering 'MetadataStore'...")
	errs.Add(container.Register[store.SQLiteStore](ia.sc,
		container.With[store.MetadataStore](),
		container.WithInstance(rt.Store)))

	ia.log.Debug("Registering 'Library'...")
	errs.Add(container.Register[library.Library](ia.sc,
		container.WithInstance(rt.Library)))

	ia.log.Debug("Registering 'Cache'...")
	errs.Add(container.Register[estimation.Cache](ia.sc,
		container.WithInstance(rt.Cache)))

	ia.log.Debug("Registering 'Ledger'...")
	errs.Add(container.Register[curation.Ledger](ia.sc,
		container.WithInstance(rt.Ledger)))

	return errs.Errors()
}

func (ia *IllustagAgent) newServer(ctx context.Context) (*http.Server, error) {
	logger, err := log.Resolve(ctx, ia.sc, "http")
	if err != nil {
		return nil, err
	}

	interval, err := parseDuration(ia.cfg.HTTP.RateLimit.Interval, time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid http.rate_limit.interval: %w", err)
	}

	cfg := api.Config{
		RateRequests:  ia.cfg.HTTP.RateLimit.Requests,
		RateInterval:  interval,
		MaxUploadSize: ia.cfg.Storage.MaxUploadSize,
		Auth:          api.NewAuthenticator(ia.cfg.HTTP.Auth.Secret),
	}
	if cfg.Auth == nil {
		logger.Warn("No http.auth.secret configured, curation endpoints are open")
	}
	if ia.cfg.Metrics.Enabled {
		cfg.MetricsPath = ia.cfg.Metrics.Path
		cfg.Registry = ia.rt.Registry
	}

	srv := api.NewServer(cfg, ia.rt.Store, ia.rt.Library, ia.rt.Cache, ia.rt.Ledger, logger)
	return &http.Server{
		Addr:              ia.cfg.HTTP.Address,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func (ia *IllustagAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ia.mutex.Lock()

	if err := ia.setupServices(ctx); err != nil {
		ia.mutex.Unlock()
		return err
	}
	defer ia.rt.Close()

	server, err := ia.newServer(ctx)
	if err != nil {
		ia.mutex.Unlock()
		return err
	}

	ia.mutex.Unlock()

	failed := make(chan error, 1)
	ia.wait.Add(1)
	go func() {
		defer ia.wait.Done()

		ia.log.Info("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		ia.log.Info("Shutting down...")
	case serveErr = <-failed:
		ia.log.Error("HTTP server failed: %v", serveErr)
	}

	timeout, err := time.ParseDuration(ia.cfg.ShutdownTimeout)
	if err != nil {
		// Set default of 60 seconds if error
		timeout = 60 * time.Second
	}

	shutdown, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdown); err != nil {
		ia.log.Warn("HTTP server did not shut down cleanly: %v", err)
	}

	if err := ia.sc.Cleanup(shutdown); err != nil {
		return fmt.Errorf("failed to complete service container cleanup: %w", err)
	}

	ia.wait.Wait()
	return serveErr
}
