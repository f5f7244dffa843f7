package store

import (
	"context"
	"fmt"
)

// Open returns a Storage for the named driver ("sqlite3" or "postgres").
func Open(ctx context.Context, driver, databaseURL string, opts Options) (*SQLStore, error) {
	switch driver {
	case "", "sqlite3", "sqlite":
		return NewSQLiteStore(ctx, databaseURL, opts)
	case "postgres":
		return NewPostgresStore(ctx, databaseURL, opts)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
