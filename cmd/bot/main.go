package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tgfmt/internal/announcer"
	"tgfmt/internal/config"
	"tgfmt/internal/render"
	"tgfmt/internal/storage"
	"tgfmt/internal/transport/telegram/adapter"
	logx "tgfmt/pkg/logx"
)

func main() {
	var (
		cfgPath string
		preview string
		runOnce string
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config (json or yaml)")
	flag.StringVar(&preview, "preview", "", "print the rendered announcement (text + entities) and exit")
	flag.StringVar(&runOnce, "run", "", "post the named announcement once and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath, preview, runOnce); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath, preview, runOnce string) error {
	cm := config.NewManager(cfgPath)
	cfg, err := cm.Load()
	if err != nil {
		return err
	}

	if preview != "" {
		return printPreview(cfg, preview)
	}

	boot := logx.NewConsole(cfg.Logging.Level)
	tg, err := adapter.New(adapter.Config{
		Token:      cfg.Telegram.Token,
		RatePerSec: cfg.Telegram.RatePerSec,
	}, boot.With(logx.String("comp", "telegram")))
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	logSvc, log := logx.New(logConfig(cfg), tg)
	defer logSvc.Close()
	applyLogTarget(logSvc, cfg)
	cm.SetLogger(log.With(logx.String("comp", "config")))

	var store storage.Store
	if cfg.Storage != nil {
		busy, _ := cfg.Storage.BusyTimeoutDuration()
		store, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}
	if store != nil {
		defer store.Close()
	}

	ann := announcer.New(tg, store, log.With(logx.String("comp", "announcer")))
	if err := applyAnnouncements(ann, cfg); err != nil {
		return err
	}

	if runOnce != "" {
		ref, err := ann.RunNow(ctx, runOnce)
		if err != nil {
			return err
		}
		log.Info("announcement posted", logx.String("name", runOnce), logx.Int("message_id", ref.MessageID))
		return nil
	}

	go func() {
		if err := cm.Watch(ctx); err != nil {
			log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	if cfg.Announcer.Enabled {
		ann.Start()
	}
	log.Info("started", logx.Int("announcements", len(cfg.Announcements)))

	current := cfg
	for {
		select {
		case <-ctx.Done():
			stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			err := stopAnnouncer(stopCtx, ann, log)
			stop()
			log.Info("stopped")
			return err
		case next := <-cm.Reloads():
			logSvc.Apply(logConfig(next))
			applyLogTarget(logSvc, next)
			if err := applyAnnouncements(ann, next); err != nil {
				log.Error("announcements not applied", logx.Err(err))
				continue
			}
			if next.Announcer.Enabled {
				ann.Start()
			} else if current.Announcer.Enabled {
				_ = stopAnnouncer(ctx, ann, log)
			}
			current = next
		}
	}
}

type stopper interface {
	Stop(ctx context.Context) error
}

// stopAnnouncer stops ann and logs a failure. The error is returned for
// callers that exit with it.
func stopAnnouncer(ctx context.Context, ann stopper, log logx.Logger) error {
	if err := ann.Stop(ctx); err != nil {
		log.Warn("announcer stop failed", logx.Err(err))
		return err
	}
	return nil
}

func applyAnnouncements(ann *announcer.Service, cfg *config.Config) error {
	if err := ann.SetTimezone(cfg.Announcer.Timezone); err != nil {
		return err
	}
	defs, err := announcer.Definitions(cfg.Announcements, render.New(cfg.Telegram.MentionScheme))
	if err != nil {
		return err
	}
	return ann.Apply(defs)
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func applyLogTarget(svc *logx.Service, cfg *config.Config) {
	if id, err := config.GroupLogChatID(cfg); err == nil && id != 0 {
		svc.SetTelegramTarget(id, cfg.Logging.Telegram.ThreadID)
	}
}

func printPreview(cfg *config.Config, name string) error {
	defs, err := announcer.Definitions(cfg.Announcements, render.New(cfg.Telegram.MentionScheme))
	if err != nil {
		return err
	}
	for _, d := range defs {
		if d.Name != name {
			continue
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(d.Text.Send())
	}
	return fmt.Errorf("%w: %q", announcer.ErrUnknownAnnouncement, name)
}
