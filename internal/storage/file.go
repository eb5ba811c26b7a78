package storage

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "tgfmt/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// All refs live in one JSON object. Every change writes <path>.tmp and
// renames it over <path>; the in-memory map only takes the change once the
// rename succeeded, so memory and disk never disagree.
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	refs   map[string]Ref
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	refs := map[string]Ref{}
	if err := loadSnapshot(path, refs); err != nil && !errors.Is(err, os.ErrNotExist) {
		// A corrupt snapshot only costs us edits; start fresh instead of failing.
		log.Warn("ref snapshot unreadable; starting empty", logx.String("path", path), logx.Err(err))
		refs = map[string]Ref{}
	}
	return &fileStore{log: log, path: path, refs: refs}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fileStore) PutRef(ctx context.Context, key string, ref Ref) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if ref.UpdatedAt.IsZero() {
		ref.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("file store closed")
	}
	next := maps.Clone(s.refs)
	next[key] = ref
	return s.commitLocked(next)
}

func (s *fileStore) GetRef(ctx context.Context, key string) (Ref, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.refs[strings.TrimSpace(key)]
	if !ok {
		return Ref{}, ErrNotFound
	}
	return ref, nil
}

func (s *fileStore) DeleteRef(ctx context.Context, key string) error {
	_ = ctx
	key = strings.TrimSpace(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("file store closed")
	}
	if _, ok := s.refs[key]; !ok {
		return nil
	}
	next := maps.Clone(s.refs)
	delete(next, key)
	return s.commitLocked(next)
}

// commitLocked writes refs to disk and, on success, makes them current.
func (s *fileStore) commitLocked(refs map[string]Ref) error {
	if err := writeSnapshot(s.path, refs); err != nil {
		return err
	}
	s.refs = refs
	return nil
}

func writeSnapshot(path string, refs map[string]Ref) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(refs); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func loadSnapshot(path string, out map[string]Ref) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]Ref
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}
