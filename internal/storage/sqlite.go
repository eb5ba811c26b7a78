package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "tgfmt/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) PutRef(ctx context.Context, key string, ref Ref) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if ref.UpdatedAt.IsZero() {
		ref.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_refs(key, chat_id, thread_id, message_id, updated_at) VALUES(?,?,?,?,?)
		 ON CONFLICT(key) DO UPDATE SET chat_id=excluded.chat_id, thread_id=excluded.thread_id,
		   message_id=excluded.message_id, updated_at=excluded.updated_at`,
		key, ref.ChatID, ref.ThreadID, ref.MessageID, ref.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) GetRef(ctx context.Context, key string) (Ref, error) {
	if s == nil || s.db == nil {
		return Ref{}, ErrDisabled
	}
	var (
		ref Ref
		at  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, thread_id, message_id, updated_at FROM message_refs WHERE key = ?`,
		strings.TrimSpace(key),
	).Scan(&ref.ChatID, &ref.ThreadID, &ref.MessageID, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Ref{}, ErrNotFound
	}
	if err != nil {
		return Ref{}, err
	}
	if t, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
		ref.UpdatedAt = t
	} else {
		s.log.Debug("bad updated_at in message_refs", logx.String("key", key), logx.Err(perr))
	}
	return ref, nil
}

func (s *sqliteStore) DeleteRef(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM message_refs WHERE key = ?`, strings.TrimSpace(key))
	return err
}
