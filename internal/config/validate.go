package config

import (
	"fmt"
	"strconv"
	"strings"

	"tgfmt/internal/render"
)

// Validate checks a parsed config. Templates are rendered once so style and
// parameter mistakes surface at load time rather than when a schedule fires.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token: required")
	}
	if _, err := GroupLogChatID(cfg); err != nil {
		return err
	}
	if cfg.Storage != nil {
		if _, err := cfg.Storage.BusyTimeoutDuration(); err != nil {
			return err
		}
	}

	r := render.New(cfg.Telegram.MentionScheme)
	seen := make(map[string]struct{}, len(cfg.Announcements))
	for i, a := range cfg.Announcements {
		path := fmt.Sprintf("announcements[%d]", i)
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return fmt.Errorf("%s.name: required", path)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%s.name: duplicate %q", path, name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(a.Schedule) == "" {
			return fmt.Errorf("%s.schedule: required", path)
		}
		if a.ChatID == 0 {
			return fmt.Errorf("%s.chat_id: required", path)
		}
		switch strings.ToLower(strings.TrimSpace(a.Mode)) {
		case "", "send", "edit":
		default:
			return fmt.Errorf("%s.mode: invalid %q (use send or edit)", path, a.Mode)
		}
		if _, err := r.Render(a.Template); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// GroupLogChatID parses telegram.group_log. Empty means no log chat.
func GroupLogChatID(cfg *Config) (int64, error) {
	s := strings.TrimSpace(cfg.Telegram.GroupLog)
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram.group_log: invalid chat id %q", cfg.Telegram.GroupLog)
	}
	return id, nil
}
