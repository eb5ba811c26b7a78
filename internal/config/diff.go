package config

import (
	"reflect"
	"sort"
	"strings"

	logx "tgfmt/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes secrets like tokens),
// and (3) the names of announcements that were added, removed or changed.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 12)

	// Telegram (never log token)
	if oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		strings.TrimSpace(oldCfg.Telegram.GroupLog) != strings.TrimSpace(newCfg.Telegram.GroupLog) ||
		oldCfg.Telegram.RatePerSec != newCfg.Telegram.RatePerSec ||
		oldCfg.Telegram.MentionScheme != newCfg.Telegram.MentionScheme {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(newCfg.Telegram.GroupLog) != ""),
			logx.Int("telegram.rate_per_sec", newCfg.Telegram.RatePerSec),
			logx.String("telegram.mention_scheme", newCfg.Telegram.MentionScheme),
		)
	}

	// Logging
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	// Storage (requires restart; still surfaced so operators notice)
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		driver := ""
		if newCfg.Storage != nil {
			driver = newCfg.Storage.Driver
		}
		attrs = append(attrs, logx.String("storage.driver", driver))
	}

	if oldCfg.Announcer != newCfg.Announcer {
		changed = append(changed, "announcer")
		attrs = append(attrs,
			logx.Bool("announcer.enabled", newCfg.Announcer.Enabled),
			logx.String("announcer.timezone", newCfg.Announcer.Timezone),
		)
	}

	names := changedAnnouncements(oldCfg.Announcements, newCfg.Announcements)
	if len(names) > 0 {
		changed = append(changed, "announcements")
		attrs = append(attrs,
			logx.Int("announcements.count", len(newCfg.Announcements)),
			logx.String("announcements.changed", strings.Join(names, ",")),
		)
	}

	return changed, attrs, names
}

func changedAnnouncements(oldList, newList []AnnouncementConfig) []string {
	oldByName := make(map[string]AnnouncementConfig, len(oldList))
	for _, a := range oldList {
		oldByName[a.Name] = a
	}
	newByName := make(map[string]AnnouncementConfig, len(newList))
	for _, a := range newList {
		newByName[a.Name] = a
	}

	var out []string
	for name, na := range newByName {
		oa, ok := oldByName[name]
		if !ok || !reflect.DeepEqual(oa, na) {
			out = append(out, name)
		}
	}
	for name := range oldByName {
		if _, ok := newByName[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
