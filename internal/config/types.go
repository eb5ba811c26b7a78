package config

import (
	"fmt"
	"strings"
	"time"

	"tgfmt/internal/render"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  *StorageConfig `json:"storage,omitempty"`

	// Announcer controls how announcements are scheduled.
	Announcer AnnouncerConfig `json:"announcer"`

	// Announcements are formatted messages posted on a schedule.
	Announcements []AnnouncementConfig `json:"announcements,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// GroupLog is the chat id receiving log records when logging.telegram is enabled.
	GroupLog string `json:"group_log"`
	// RatePerSec caps outgoing Bot API calls (default 20).
	RatePerSec int `json:"rate_per_sec,omitempty"`
	// MentionScheme overrides the URL scheme of user mentions (default "tg").
	MentionScheme string `json:"mention_scheme,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls where message references of announcements are kept,
// so "edit" announcements can update their previous message after a restart.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/tgfmt.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// BusyTimeoutDuration parses BusyTimeout. Empty means zero (driver default).
func (s *StorageConfig) BusyTimeoutDuration() (time.Duration, error) {
	raw := strings.TrimSpace(s.BusyTimeout)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("storage.busy_timeout: invalid duration %q: %w", s.BusyTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("storage.busy_timeout: must be >= 0")
	}
	return d, nil
}

type AnnouncerConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone,omitempty"`
}

// AnnouncementConfig describes one scheduled message.
//
// Schedule accepts cron ("*/5 * * * *", "@hourly", "@every 10m"), a Go
// duration ("10m") or HH:MM ("01:30" = every 90 minutes).
//
// Mode is "send" (default: post a new message every time) or "edit" (update
// the message posted last time, posting a new one if there is none).
type AnnouncementConfig struct {
	Name           string          `json:"name"`
	Schedule       string          `json:"schedule"`
	ChatID         int64           `json:"chat_id"`
	ThreadID       int             `json:"thread_id,omitempty"`
	Mode           string          `json:"mode,omitempty"`
	DisablePreview bool            `json:"disable_preview,omitempty"`
	Silent         bool            `json:"silent,omitempty"`
	Template       render.Template `json:"template"`
}
