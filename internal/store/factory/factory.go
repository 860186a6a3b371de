// Package factory selects the submission store backend once at startup so
// "is the store configured" branches never leak into call sites.
package factory

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/waitlist-service/internal/config"
	"github.com/example/waitlist-service/internal/store"
	"github.com/example/waitlist-service/internal/store/postgrest"
	"github.com/example/waitlist-service/internal/store/stub"
)

// New constructs the submission store for the given configuration. A fully
// configured endpoint yields the remote PostgREST client; anything else
// falls back to the deterministic in-memory stub so local development
// works without credentials.
func New(cfg config.StoreConfig, logger zerolog.Logger) (store.Client, error) {
	if !cfg.Configured() {
		logger.Warn().
			Str("backend", "stub").
			Msg("submission store not configured; falling back to in-memory stub")
		return stub.New(logger), nil
	}

	client, err := postgrest.New(postgrest.Config{
		BaseURL: cfg.URL,
		APIKey:  cfg.Key,
		Table:   cfg.Table,
		Retry: store.RetryConfig{
			MaxAttempts:       cfg.MaxAttempts,
			InitialDelay:      cfg.InitialDelay,
			BackoffMultiplier: cfg.BackoffMultiplier,
		},
		Timeout: cfg.RequestTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("factory: postgrest client init: %w", err)
	}

	logger.Info().
		Str("backend", "postgrest").
		Str("table", cfg.Table).
		Msg("submission store initialised")
	return client, nil
}
