package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/zoombulk/internal/cache"
	"github.com/teemow/zoombulk/internal/config"
	"github.com/teemow/zoombulk/internal/directory"
	"github.com/teemow/zoombulk/internal/instrumentation"
	"github.com/teemow/zoombulk/internal/logging"
	"github.com/teemow/zoombulk/internal/oauth"
	"github.com/teemow/zoombulk/internal/server"
	"github.com/teemow/zoombulk/internal/zoom"
)

const (
	tokenRequestTimeout = 30 * time.Second
	apiRequestTimeout   = 60 * time.Second
)

// appOptions select which parts of the runtime a command needs.
type appOptions struct {
	// api wires the token manager, API client and user index. It requires
	// credentials.
	api bool
	// metricsAddr starts the metrics server when non-empty.
	metricsAddr string
}

// app holds the components shared by the commands.
type app struct {
	cfg    config.Config
	logger *slog.Logger

	provider      *instrumentation.Provider
	metricsServer *server.MetricsServer
	store         cache.Store

	tokens *oauth.TokenManager
	client *zoom.Client
	index  *directory.Index

	closers []func() error
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, opts appOptions) (_ *app, err error) {
	validate := cfg.ValidateSettings
	if opts.api {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	a.provider, err = instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	a.closers = append(a.closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		return a.provider.Shutdown(shutdownCtx)
	})

	if opts.metricsAddr != "" {
		if err := a.startMetricsServer(opts.metricsAddr); err != nil {
			return nil, err
		}
	}

	if a.store, err = a.newStore(); err != nil {
		return nil, err
	}

	if opts.api {
		a.wireAPI(ctx)
	}
	return a, nil
}

func (a *app) newStore() (cache.Store, error) {
	storeLogger := logging.WithOperation(a.logger, "cache")

	switch a.cfg.CacheBackend {
	case config.BackendRedis:
		client, err := cache.NewRedisClient(a.cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return cache.NewRedisStore(client, "", cache.WithLogger(storeLogger)), nil

	case config.BackendMemory:
		return cache.NewMemoryStore(cache.WithLogger(storeLogger)), nil

	default:
		store, err := cache.NewFileStore(a.cfg.CacheDir, cache.WithLogger(storeLogger))
		if err != nil {
			return nil, err
		}
		a.logger.Debug("using file cache", "dir", store.Dir())
		return store, nil
	}
}

// wireAPI connects token manager, authorized HTTP client, API client and
// user index.
func (a *app) wireAPI(ctx context.Context) {
	metrics := a.provider.Metrics()
	creds := a.cfg.Credentials()

	tokenHTTP := &http.Client{Timeout: tokenRequestTimeout}
	a.tokens = oauth.NewTokenManager(creds,
		oauth.NewAccountCredentialsProvider(a.cfg.TokenURL, tokenHTTP),
		a.store,
		oauth.WithSafetyMargin(a.cfg.TokenSafetyMargin),
		oauth.WithMetrics(metrics),
		oauth.WithLogger(a.logger),
	)

	apiHTTP := oauth2.NewClient(ctx, a.tokens.TokenSource(ctx))
	apiHTTP.Timeout = apiRequestTimeout

	a.client = zoom.NewClient(apiHTTP,
		zoom.WithBaseURL(a.cfg.APIBaseURL),
		zoom.WithMetrics(metrics),
		zoom.WithLogger(a.logger),
	)

	a.index = directory.NewIndex(a.client, a.store, creds.AccountID, creds.ClientID,
		directory.WithTTL(a.cfg.UsersCacheTTL),
		directory.WithMetrics(metrics),
		directory.WithLogger(a.logger),
	)
}

func (a *app) startMetricsServer(addr string) error {
	if !a.provider.Enabled() {
		a.logger.Warn("instrumentation disabled, not starting metrics server")
		return nil
	}

	srv, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: a.provider,
		Logger:                  a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics server: %w", err)
	}
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("metrics server failed to start: %w", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			a.logger.Error("metrics server stopped", logging.Err(err))
		}
	}()

	a.metricsServer = srv
	a.closers = append(a.closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
