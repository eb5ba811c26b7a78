package storage

import (
	"context"
	"errors"
	"strings"

	logx "tgfmt/pkg/logx"
)

// Store persists message references by key.
type Store interface {
	PutRef(ctx context.Context, key string, ref Ref) error
	// GetRef returns ErrNotFound when key has no reference.
	GetRef(ctx context.Context, key string) (Ref, error)
	DeleteRef(ctx context.Context, key string) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
