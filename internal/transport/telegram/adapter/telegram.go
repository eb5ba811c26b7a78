package adapter

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
	"golang.org/x/time/rate"

	kit "tgfmt/internal/transport"
	logx "tgfmt/pkg/logx"
	"tgfmt/pkg/tgfmt"
)

// Config configures the Telegram adapter.
type Config struct {
	Token string
	// RatePerSec caps outgoing API calls. Defaults to 20.
	RatePerSec int
	// ChunkLimit is the max message length in UTF-16 units.
	// Defaults to tgfmt.MaxMessageLen.
	ChunkLimit int
	// Offline skips the getMe call on construction (tests, dry runs).
	Offline bool
}

// bot is the part of *tele.Bot the adapter needs.
type bot interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Adapter sends formatted text through the Bot API using message entities,
// so no parse mode or escaping is involved.
type Adapter struct {
	cfg     Config
	log     logx.Logger
	bot     bot
	limiter *rate.Limiter
}

var _ kit.Sender = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: cfg.Offline,
	})
	if err != nil {
		return nil, err
	}
	return newAdapter(cfg, log, b), nil
}

func newAdapter(cfg Config, log logx.Logger, b bot) *Adapter {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 20
	}
	if cfg.ChunkLimit <= 0 {
		cfg.ChunkLimit = tgfmt.MaxMessageLen
	}
	return &Adapter{
		cfg: cfg,
		log: log,
		bot: b,
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

func (a *Adapter) wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return a.limiter.Wait(ctx)
}

func sendOptions(base *tele.SendOptions, threadID int, opt *kit.SendOptions) *tele.SendOptions {
	base.ThreadID = threadID
	if opt != nil {
		base.DisableWebPagePreview = opt.DisablePreview
		base.DisableNotification = opt.Silent
	}
	return base
}

func (a *Adapter) SendFormatted(ctx context.Context, to kit.ChatTarget, text tgfmt.Text, opt *kit.SendOptions) (kit.MessageRef, error) {
	chunks := text.Split(a.cfg.ChunkLimit)
	chat := &tele.Chat{ID: to.ChatID}

	var first kit.MessageRef
	for i, chunk := range chunks {
		if err := a.wait(ctx); err != nil {
			return first, err
		}
		p := chunk.Send()
		msg, err := a.bot.Send(chat, p.Message, sendOptions(p.Options(), to.ThreadID, opt))
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	if len(chunks) > 1 {
		a.log.Debug("message sent in chunks",
			logx.Int64("chat_id", to.ChatID),
			logx.Int("chunks", len(chunks)),
			logx.Int("units", text.Len()),
		)
	}
	return first, nil
}

// EditFormatted replaces the text of ref. Text that does not fit into one
// message continues in new messages after the edited one.
func (a *Adapter) EditFormatted(ctx context.Context, ref kit.MessageRef, text tgfmt.Text, opt *kit.SendOptions) error {
	chunks := text.Split(a.cfg.ChunkLimit)

	if err := a.wait(ctx); err != nil {
		return err
	}
	p := chunks[0].Edit()
	m := &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
	if _, err := a.bot.Edit(m, p.Text, sendOptions(p.Options(), 0, opt)); err != nil {
		return err
	}

	if len(chunks) > 1 {
		chat := &tele.Chat{ID: ref.ChatID}
		for _, chunk := range chunks[1:] {
			if err := a.wait(ctx); err != nil {
				return err
			}
			sp := chunk.Send()
			if _, err := a.bot.Send(chat, sp.Message, sendOptions(sp.Options(), ref.ThreadID, opt)); err != nil {
				return err
			}
		}
	}
	return nil
}
