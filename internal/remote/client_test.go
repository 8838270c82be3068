package remote

import (
	"testing"

	"github.com/mmcdole/lifetrack/internal/config"
	"github.com/mmcdole/lifetrack/internal/remote/postgrest"
	"github.com/mmcdole/lifetrack/internal/remote/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewClient(nil, nil)
		assert.Error(t, err)
	})

	t.Run("postgrest requires url and key", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Remote.Type = config.BackendPostgrest
		_, err := NewClient(cfg, nil)
		assert.Error(t, err)

		cfg.Remote.URL = "https://example.supabase.co"
		cfg.Remote.APIKey = "anon"
		c, err := NewClient(cfg, nil)
		require.NoError(t, err)
		assert.IsType(t, &postgrest.Client{}, c)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Remote.Type = config.BackendSQLite
		cfg.Remote.Path = ":memory:"
		c, err := NewClient(cfg, nil)
		require.NoError(t, err)
		defer c.Close()
		assert.IsType(t, &sqlite.Store{}, c)
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Remote.Type = config.BackendPostgres
		_, err := NewClient(cfg, nil)
		assert.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Remote.Type = "firebase"
		_, err := NewClient(cfg, nil)
		assert.Error(t, err)
	})
}
