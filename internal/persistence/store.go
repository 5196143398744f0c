package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/coastline/webextract/internal/config"
	"github.com/coastline/webextract/pkg/models"
)

// New builds the configured PersistenceStore backend.
func New(ctx context.Context, cfg config.PersistenceConfig, dbCfg config.DatabaseConfig) (models.PersistenceStore, error) {
	switch cfg.Backend {
	case "postgres":
		return NewPostgresStore(ctx, dbCfg.DSN())
	case "", "file":
		debounce := time.Duration(cfg.DebounceMs) * time.Millisecond
		if debounce <= 0 {
			debounce = 500 * time.Millisecond
		}
		return NewFileStore(cfg.FilePath, debounce)
	default:
		return nil, fmt.Errorf("persistence: unknown backend %q", cfg.Backend)
	}
}
