package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mmcdole/lifetrack/internal/config"
	"github.com/mmcdole/lifetrack/internal/domain"
	"github.com/mmcdole/lifetrack/internal/remote/postgres"
	"github.com/mmcdole/lifetrack/internal/remote/postgrest"
	"github.com/mmcdole/lifetrack/internal/remote/sqlite"
)

// Backend is a remote store that holds resources until closed.
type Backend interface {
	domain.RemoteStore
	io.Closer
}

// NewClient creates the remote store selected by the configuration.
// This factory function abstracts away the specific backend implementation.
func NewClient(cfg *config.Config, logger *slog.Logger) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Remote.Type {
	case config.BackendPostgrest:
		if cfg.Remote.URL == "" {
			return nil, fmt.Errorf("remote URL is required")
		}
		if cfg.Remote.APIKey == "" {
			return nil, fmt.Errorf("remote API key is required")
		}
		return postgrest.NewClient(cfg.Remote.URL, cfg.Remote.APIKey, cfg.Remote.AccessToken, cfg.Remote.Timeout, logger), nil

	case config.BackendPostgres:
		if cfg.Remote.DSN == "" {
			return nil, fmt.Errorf("postgres DSN is required")
		}
		timeout := cfg.Remote.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		store, err := postgres.Open(ctx, cfg.Remote.DSN, logger)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendSQLite:
		if cfg.Remote.Path == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		store, err := sqlite.Open(cfg.Remote.Path, logger)
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown remote type: %s", cfg.Remote.Type)
	}
}
