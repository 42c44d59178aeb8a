package phpindex

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jward/phpindex/internal/config"
	"github.com/jward/phpindex/internal/graphstore"
	"github.com/jward/phpindex/internal/store"
)

// OpenStorage opens the back-end selected by cfg.Backend at cfg.DSN,
// creating the parent directory of file-based stores.
func OpenStorage(cfg *config.Config, logger *slog.Logger) (store.Storage, error) {
	mkdir := func() error {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		return nil
	}
	sqlOpts := []store.Option{store.WithBatchSize(cfg.BatchSize), store.WithLogger(logger)}

	switch cfg.Backend {
	case config.BackendSQLite, "":
		if err := mkdir(); err != nil {
			return nil, err
		}
		return orNil(store.Open(store.DriverSQLite, cfg.DSN, sqlOpts...))
	case config.BackendSQLitePure:
		if err := mkdir(); err != nil {
			return nil, err
		}
		return orNil(store.Open(store.DriverSQLitePure, cfg.DSN, sqlOpts...))
	case config.BackendPostgres:
		return orNil(store.Open(store.DriverPostgres, cfg.DSN, sqlOpts...))
	case config.BackendGraph:
		if cfg.DSN != "" {
			if err := mkdir(); err != nil {
				return nil, err
			}
		}
		return orNil(graphstore.Open(cfg.DSN, graphstore.WithLogger(logger)))
	case config.BackendDummy:
		return store.NewDummy(), nil
	}
	return nil, fmt.Errorf("open storage: unknown backend %q", cfg.Backend)
}

// orNil keeps a failed open from returning a typed nil Storage.
func orNil[S store.Storage](s S, err error) (store.Storage, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
