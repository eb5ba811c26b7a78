// Package announcer posts formatted messages on a schedule.
//
// Each announcement is rendered once when the config is applied and then
// sent by robfig/cron. Announcements in edit mode update the message they
// posted last time instead of posting a new one.
package announcer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tgfmt/internal/config"
	"tgfmt/internal/render"
	"tgfmt/internal/storage"
	kit "tgfmt/internal/transport"
	logx "tgfmt/pkg/logx"
	"tgfmt/pkg/tgfmt"
)

var ErrUnknownAnnouncement = errors.New("announcer: unknown announcement")

const fireTimeout = 30 * time.Second

// Definition is a ready-to-send announcement.
type Definition struct {
	Name     string
	Schedule string
	Target   kit.ChatTarget
	Edit     bool
	Options  kit.SendOptions
	Text     tgfmt.Text
}

// Definitions renders the configured announcements.
func Definitions(list []config.AnnouncementConfig, r render.Renderer) ([]Definition, error) {
	out := make([]Definition, 0, len(list))
	for i, a := range list {
		text, err := r.Render(a.Template)
		if err != nil {
			return nil, fmt.Errorf("announcements[%d] (%s): %w", i, a.Name, err)
		}
		out = append(out, Definition{
			Name:     strings.TrimSpace(a.Name),
			Schedule: a.Schedule,
			Target:   kit.ChatTarget{ChatID: a.ChatID, ThreadID: a.ThreadID},
			Edit:     strings.EqualFold(strings.TrimSpace(a.Mode), "edit"),
			Options:  kit.SendOptions{DisablePreview: a.DisablePreview, Silent: a.Silent},
			Text:     text,
		})
	}
	return out, nil
}

type entry struct {
	def  Definition
	spec string
	id   cron.EntryID
}

// Service owns the cron table of announcements.
type Service struct {
	log    logx.Logger
	sender kit.Sender
	store  storage.Store // optional

	mu      sync.Mutex
	parser  cron.Parser
	loc     *time.Location
	c       *cron.Cron
	entries map[string]*entry
	running bool

	// refs keeps the last message per announcement when no store is configured.
	refMu sync.Mutex
	refs  map[string]kit.MessageRef
}

func New(sender kit.Sender, store storage.Store, log logx.Logger) *Service {
	return &Service{
		log:     log,
		sender:  sender,
		store:   store,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		loc:     time.Local,
		entries: map[string]*entry{},
		refs:    map[string]kit.MessageRef{},
	}
}

// SetTimezone changes the schedule timezone ("" means local time).
// A running service restarts its cron table.
func (s *Service) SetTimezone(tz string) error {
	loc := time.Local
	if tz = strings.TrimSpace(tz); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("announcer.timezone: %w", err)
		}
		loc = l
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc.String() == loc.String() {
		return nil
	}
	s.loc = loc
	if s.running {
		s.restartLocked()
	}
	return nil
}

// Apply replaces the set of announcements. Nothing changes if any schedule
// is invalid.
func (s *Service) Apply(defs []Definition) error {
	next := make(map[string]*entry, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return errors.New("announcement name required")
		}
		if _, dup := next[d.Name]; dup {
			return fmt.Errorf("duplicate announcement %q", d.Name)
		}
		ps, err := ParseSchedule(d.Schedule)
		if err != nil {
			return fmt.Errorf("%s: %w", d.Name, err)
		}
		spec := ps.CronSpec()
		if _, err := s.parser.Parse(spec); err != nil {
			return fmt.Errorf("%s: invalid schedule %q: %w", d.Name, d.Schedule, err)
		}
		next[d.Name] = &entry{def: d, spec: spec}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = next
	if s.running {
		s.restartLocked()
	} else {
		s.log.Debug("announcements applied", logx.Int("count", len(next)))
	}
	return nil
}

// Names returns the configured announcement names, sorted.
func (s *Service) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Next returns the next fire time of an announcement (zero if not running).
func (s *Service) Next(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok || s.c == nil {
		return time.Time{}
	}
	return s.c.Entry(e.id).Next
}

func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.restartLocked()
}

// Stop stops the cron table and waits for running jobs until ctx ends.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.running = false
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) restartLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
	}
	cl := cronLogger{log: s.log}
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		// Skip a tick while the previous run of the same announcement is still posting.
		cron.WithChain(cron.SkipIfStillRunning(cl)),
	)
	for name, e := range s.entries {
		e := e
		id, err := s.c.AddFunc(e.spec, func() { s.runJob(e.def) })
		if err != nil {
			// Specs were parsed in Apply; this only happens on a parser mismatch.
			s.log.Error("schedule rejected", logx.String("name", name), logx.String("spec", e.spec), logx.Err(err))
			continue
		}
		e.id = id
	}
	s.c.Start()
	s.log.Info("announcer started", logx.String("tz", s.loc.String()), logx.Int("announcements", len(s.entries)))
}

func (s *Service) runJob(d Definition) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("announcement panicked", logx.String("name", d.Name), logx.Any("panic", r), logx.CallerStack())
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()
	if _, err := s.Fire(ctx, d); err != nil {
		s.log.Warn("announcement failed", logx.String("name", d.Name), logx.Err(err))
	}
}

// RunNow posts the named announcement immediately.
func (s *Service) RunNow(ctx context.Context, name string) (kit.MessageRef, error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return kit.MessageRef{}, fmt.Errorf("%w: %q", ErrUnknownAnnouncement, name)
	}
	return s.Fire(ctx, e.def)
}

// Fire posts d once. In edit mode the previous message is edited; when there
// is none, it lives in another chat or thread than d.Target, or the edit
// fails, a new message is sent and becomes the one edited next time.
func (s *Service) Fire(ctx context.Context, d Definition) (kit.MessageRef, error) {
	opt := d.Options
	start := time.Now()

	if d.Edit {
		ref, ok := s.lastRef(ctx, d.Name)
		if ok && ref.Target() != d.Target {
			// The announcement moved; the old message stays where it is.
			s.log.Info("announcement target changed; sending new message",
				logx.String("name", d.Name),
				logx.Int64("old_chat_id", ref.ChatID),
				logx.Int64("chat_id", d.Target.ChatID),
			)
			ok = false
		}
		if ok {
			err := s.sender.EditFormatted(ctx, ref, d.Text, &opt)
			if err == nil {
				s.log.Debug("announcement edited",
					logx.String("name", d.Name),
					logx.Int("message_id", ref.MessageID),
					logx.Duration("took", time.Since(start)),
				)
				return ref, nil
			}
			if ctx.Err() != nil {
				return kit.MessageRef{}, err
			}
			s.log.Warn("edit failed; sending new message", logx.String("name", d.Name), logx.Err(err))
		}
	}

	ref, err := s.sender.SendFormatted(ctx, d.Target, d.Text, &opt)
	if err != nil {
		return kit.MessageRef{}, err
	}
	s.saveRef(ctx, d.Name, ref)
	s.log.Debug("announcement sent",
		logx.String("name", d.Name),
		logx.Int64("chat_id", ref.ChatID),
		logx.Int("message_id", ref.MessageID),
		logx.Duration("took", time.Since(start)),
	)
	return ref, nil
}

func (s *Service) lastRef(ctx context.Context, name string) (kit.MessageRef, bool) {
	if s.store != nil {
		r, err := s.store.GetRef(ctx, name)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				s.log.Warn("ref lookup failed", logx.String("name", name), logx.Err(err))
			}
			return kit.MessageRef{}, false
		}
		return kit.MessageRef{ChatID: r.ChatID, ThreadID: r.ThreadID, MessageID: r.MessageID}, true
	}
	s.refMu.Lock()
	defer s.refMu.Unlock()
	r, ok := s.refs[name]
	return r, ok
}

func (s *Service) saveRef(ctx context.Context, name string, ref kit.MessageRef) {
	if ref.IsZero() {
		return
	}
	if s.store != nil {
		err := s.store.PutRef(ctx, name, storage.Ref{ChatID: ref.ChatID, ThreadID: ref.ThreadID, MessageID: ref.MessageID})
		if err != nil {
			s.log.Warn("ref save failed", logx.String("name", name), logx.Err(err))
		}
		return
	}
	s.refMu.Lock()
	s.refs[name] = ref
	s.refMu.Unlock()
}
