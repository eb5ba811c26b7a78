package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "tgfmt/pkg/logx"
)

const (
	reloadDebounce = 250 * time.Millisecond
	watchRetryBase = 250 * time.Millisecond
	watchRetryMax  = 5 * time.Second
)

// Manager owns the config file. Load reads it once; Watch re-reads it on
// change and hands every accepted revision to Reloads.
//
// A revision is accepted only if it decodes strictly, passes Validate
// (which renders every announcement template) and differs from the current
// config in at least one section.
type Manager struct {
	path string
	log  logx.Logger

	mu  sync.RWMutex
	cfg *Config

	reloadMu sync.Mutex
	reloads  chan *Config
}

func NewManager(path string) *Manager {
	return &Manager{path: path, reloads: make(chan *Config, 1)}
}

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

// Load reads and validates the file and makes it the current config.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.read()
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return cfg, nil
}

func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Reloads delivers accepted revisions. Only the latest undelivered revision
// is kept; a slow reader skips intermediate ones.
func (m *Manager) Reloads() <-chan *Config { return m.reloads }

func (m *Manager) read() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(m.path, b)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// reload re-reads the file and publishes it when it is valid and changed.
func (m *Manager) reload() {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	next, err := m.read()
	if err != nil {
		m.log.Warn("config rejected", logx.String("path", m.path), logx.Err(err))
		return
	}
	sections, attrs, _ := SummarizeConfigChange(m.Current(), next)
	if len(sections) == 0 {
		m.log.Debug("config unchanged", logx.String("path", m.path))
		return
	}

	m.mu.Lock()
	m.cfg = next
	m.mu.Unlock()
	m.log.Info("config reloaded", append(attrs, logx.Any("sections", sections))...)

	select {
	case <-m.reloads:
	default:
	}
	m.reloads <- next
}

// Watch reloads the config whenever its file changes, until ctx is done.
// The directory is watched rather than the file so editors that replace the
// file by rename are seen. A broken watcher is recreated with backoff.
func (m *Manager) Watch(ctx context.Context) error {
	dir, file := filepath.Dir(m.path), filepath.Base(m.path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	changed := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, m.reload)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	backoff := watchRetryBase
	for {
		started, err := m.watchDir(ctx, dir, file, changed)
		if ctx.Err() != nil {
			return nil
		}
		if started {
			backoff = watchRetryBase
		}
		m.log.Warn("config watcher stopped; restarting",
			logx.String("dir", dir), logx.Err(err), logx.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, watchRetryMax)
	}
}

// watchDir runs one fsnotify watcher. started reports whether it got as far
// as watching dir.
func (m *Manager) watchDir(ctx context.Context, dir, file string, changed func()) (started bool, err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return false, err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return false, err
	}
	m.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case ev, ok := <-w.Events:
			if !ok {
				return true, errors.New("watcher events closed")
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				changed()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return true, errors.New("watcher errors closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were lost; the file may have changed.
				changed()
				continue
			}
			m.log.Warn("config watch error", logx.String("dir", dir), logx.Err(err))
		}
	}
}
