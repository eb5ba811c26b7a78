package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	kit "tgfmt/internal/transport"
	"tgfmt/pkg/tgfmt"
)

const (
	telegramQueueSize = 256

	maxRecordLen  = 3500
	maxMessageLen = 1500
	maxValueLen   = 600
	maxStackLen   = 900
)

type telegramRecord struct {
	to   kit.ChatTarget
	text tgfmt.Text
}

// telegramSink forwards records at or above a minimum level to a chat.
// Records are rate limited and queued; a full queue drops them so logging
// never blocks on the network.
type telegramSink struct {
	sender kit.Sender
	queue  chan telegramRecord

	mu       sync.Mutex
	target   kit.ChatTarget
	minLevel zerolog.Level
	limiter  *rate.Limiter

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func newTelegramSink(sender kit.Sender) *telegramSink {
	return &telegramSink{
		sender:   sender,
		queue:    make(chan telegramRecord, telegramQueueSize),
		minLevel: zerolog.WarnLevel,
		done:     make(chan struct{}),
	}
}

func (t *telegramSink) configure(cfg TelegramConfig) {
	rps := max(1, cfg.RatePerSec)

	t.mu.Lock()
	t.minLevel = parseLevel(cfg.MinLevel, zerolog.WarnLevel)
	t.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	if cfg.ThreadID != 0 {
		t.target.ThreadID = cfg.ThreadID
	}
	t.mu.Unlock()

	t.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		t.cancel = cancel
		go t.run(ctx)
	})
}

func (t *telegramSink) setTarget(chatID int64, threadID int) {
	t.mu.Lock()
	t.target.ChatID = chatID
	if threadID != 0 {
		t.target.ThreadID = threadID
	}
	t.mu.Unlock()
}

func (t *telegramSink) run(ctx context.Context) {
	defer close(t.done)
	opt := &kit.SendOptions{DisablePreview: true, Silent: true}
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-t.queue:
			_, _ = t.sender.SendFormatted(ctx, rec.to, rec.text, opt)
		}
	}
}

func (t *telegramSink) close() {
	t.stopOnce.Do(func() {
		// Prevent a later configure from starting a worker nobody stops.
		t.startOnce.Do(func() { close(t.done) })
		if t.cancel != nil {
			t.cancel()
		}
		<-t.done
	})
}

func (t *telegramSink) Write(p []byte) (int, error) {
	return t.WriteLevel(zerolog.InfoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter, so the level arrives without
// parsing the record.
func (t *telegramSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	t.mu.Lock()
	to, minLevel, lim := t.target, t.minLevel, t.limiter
	t.mu.Unlock()

	if to.ChatID == 0 || lim == nil || level < minLevel || !lim.Allow() {
		return len(p), nil
	}
	text := recordText(p)
	if text.IsZero() {
		return len(p), nil
	}
	select {
	case t.queue <- telegramRecord{to: to, text: text}:
	default:
	}
	return len(p), nil
}

// recordText renders a zerolog JSON record as formatted text: the level in
// bold, the message, one "- key=value" line per field with the key as code,
// and the stack (if any) as a pre block.
func recordText(p []byte) tgfmt.Text {
	p = bytes.TrimSpace(p)
	var rec map[string]any
	if err := json.Unmarshal(p, &rec); err != nil {
		if len(p) == 0 {
			return tgfmt.Text{}
		}
		return tgfmt.New(truncate(string(p), maxRecordLen))
	}

	level, _ := rec[zerolog.LevelFieldName].(string)
	msg, _ := rec[zerolog.MessageFieldName].(string)

	parts := make([]tgfmt.Stringable, 0, len(rec)+2)
	if level != "" {
		tag := tgfmt.Bold(tgfmt.Plain("[" + strings.ToUpper(level) + "]"))
		parts = append(parts, tag, tgfmt.Plain(" "))
	}
	parts = append(parts, tgfmt.Plain(truncate(msg, maxMessageLen)))

	keys := make([]string, 0, len(rec))
	for k := range rec {
		switch k {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName, "stack":
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := truncate(fmt.Sprint(rec[k]), maxValueLen)
		parts = append(parts, tgfmt.Fmt([]string{"\n- ", "=", ""}, tgfmt.Code(tgfmt.Plain(k)), tgfmt.Plain(v)))
	}
	if st, ok := rec["stack"]; ok {
		stack := tgfmt.Pre(tgfmt.Plain(truncate(fmt.Sprint(st), maxStackLen)), "text")
		parts = append(parts, tgfmt.Plain("\n"), stack)
	}

	out := tgfmt.Concat(parts...)
	if out.Len() > maxRecordLen {
		out = out.Slice(0, maxRecordLen)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
