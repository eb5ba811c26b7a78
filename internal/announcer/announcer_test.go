package announcer

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tgfmt/internal/config"
	"tgfmt/internal/render"
	"tgfmt/internal/storage"
	kit "tgfmt/internal/transport"
	logx "tgfmt/pkg/logx"
	"tgfmt/pkg/tgfmt"
)

type fakeSender struct {
	mu      sync.Mutex
	nextID  int
	sent    []tgfmt.Text
	targets []kit.ChatTarget
	edited  []kit.MessageRef
	editErr error
	// block, when set, holds every send until it is closed.
	block chan struct{}
}

func (f *fakeSender) SendFormatted(ctx context.Context, to kit.ChatTarget, text tgfmt.Text, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return kit.MessageRef{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, text)
	f.targets = append(f.targets, to)
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: f.nextID}, nil
}

func (f *fakeSender) EditFormatted(ctx context.Context, ref kit.MessageRef, text tgfmt.Text, opt *kit.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edited = append(f.edited, ref)
	return nil
}

func (f *fakeSender) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent), len(f.edited)
}

func statusDef(edit bool) Definition {
	return Definition{
		Name:     "status",
		Schedule: "1h",
		Target:   kit.ChatTarget{ChatID: -5},
		Edit:     edit,
		Text:     tgfmt.Fmt([]string{"all ", ""}, tgfmt.Bold(tgfmt.Plain("green"))),
	}
}

func TestDefinitionsRenderTemplates(t *testing.T) {
	t.Parallel()
	defs, err := Definitions([]config.AnnouncementConfig{{
		Name:     " daily ",
		Schedule: "@daily",
		ChatID:   7,
		ThreadID: 2,
		Mode:     "EDIT",
		Template: render.Template{
			Segments: []string{"hi ", ""},
			Values:   []render.Value{{Text: "Ann", UserID: 1, Styles: []string{"italic"}}},
		},
	}}, render.New(""))
	if err != nil {
		t.Fatalf("Definitions: %v", err)
	}
	d := defs[0]
	if d.Name != "daily" || !d.Edit || d.Target != (kit.ChatTarget{ChatID: 7, ThreadID: 2}) {
		t.Fatalf("definition = %+v", d)
	}
	if d.Text.String() != "hi Ann" || d.Text.NumSpans() != 2 {
		t.Fatalf("text = %q with %d spans", d.Text.String(), d.Text.NumSpans())
	}

	_, err = Definitions([]config.AnnouncementConfig{{
		Name:     "bad",
		Template: render.Template{Segments: []string{"a", "b"}},
	}}, render.New(""))
	if !errors.Is(err, render.ErrInvalidTemplate) {
		t.Fatalf("err = %v, want ErrInvalidTemplate", err)
	}
}

func TestFireSendMode(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	s := New(fs, nil, logx.Nop())
	d := statusDef(false)
	for i := 0; i < 2; i++ {
		if _, err := s.Fire(context.Background(), d); err != nil {
			t.Fatalf("Fire: %v", err)
		}
	}
	if sent, edited := fs.counts(); sent != 2 || edited != 0 {
		t.Fatalf("sent=%d edited=%d, want 2/0", sent, edited)
	}
}

func TestFireEditModeUsesStoredRef(t *testing.T) {
	t.Parallel()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "refs.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer st.Close()

	fs := &fakeSender{}
	s := New(fs, st, logx.Nop())
	d := statusDef(true)

	first, err := s.Fire(context.Background(), d)
	if err != nil {
		t.Fatalf("first Fire: %v", err)
	}
	second, err := s.Fire(context.Background(), d)
	if err != nil {
		t.Fatalf("second Fire: %v", err)
	}
	if second != first {
		t.Fatalf("edit returned %+v, want %+v", second, first)
	}
	if sent, edited := fs.counts(); sent != 1 || edited != 1 {
		t.Fatalf("sent=%d edited=%d, want 1/1", sent, edited)
	}

	// A fresh service with the same store keeps editing the same message.
	s2 := New(fs, st, logx.Nop())
	if _, err := s2.Fire(context.Background(), d); err != nil {
		t.Fatalf("Fire after restart: %v", err)
	}
	if sent, edited := fs.counts(); sent != 1 || edited != 2 {
		t.Fatalf("sent=%d edited=%d, want 1/2", sent, edited)
	}
}

func TestFireEditSendsWhenTargetMoves(t *testing.T) {
	t.Parallel()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "refs.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer st.Close()

	fs := &fakeSender{}
	s := New(fs, st, logx.Nop())
	d := statusDef(true)
	if _, err := s.Fire(context.Background(), d); err != nil {
		t.Fatalf("first Fire: %v", err)
	}

	tests := []kit.ChatTarget{
		{ChatID: -99},
		{ChatID: -99, ThreadID: 3},
	}
	for i, to := range tests {
		d.Target = to
		ref, err := s.Fire(context.Background(), d)
		if err != nil {
			t.Fatalf("Fire to %+v: %v", to, err)
		}
		if ref.Target() != to {
			t.Fatalf("ref = %+v, want a message in %+v", ref, to)
		}
		sent, edited := fs.counts()
		if sent != i+2 || edited != 0 {
			t.Fatalf("after move to %+v: sent=%d edited=%d, want %d/0", to, sent, edited, i+2)
		}
		fs.mu.Lock()
		last := fs.targets[len(fs.targets)-1]
		fs.mu.Unlock()
		if last != to {
			t.Fatalf("sent to %+v, want %+v", last, to)
		}
	}

	// The new message is the one edited from now on.
	ref, err := s.Fire(context.Background(), d)
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if sent, edited := fs.counts(); sent != 3 || edited != 1 {
		t.Fatalf("sent=%d edited=%d, want 3/1", sent, edited)
	}
	if ref.Target() != d.Target {
		t.Fatalf("edited ref = %+v, want target %+v", ref, d.Target)
	}
}

func TestFireEditFallsBackToSend(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{editErr: errors.New("message to edit not found")}
	s := New(fs, nil, logx.Nop())
	d := statusDef(true)

	if _, err := s.Fire(context.Background(), d); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	ref, err := s.Fire(context.Background(), d)
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if ref.MessageID != 2 {
		t.Fatalf("ref = %+v, want the second sent message", ref)
	}
	if sent, _ := fs.counts(); sent != 2 {
		t.Fatalf("sent = %d, want 2", sent)
	}
}

func TestApplyValidatesSchedules(t *testing.T) {
	t.Parallel()
	s := New(&fakeSender{}, nil, logx.Nop())
	if err := s.Apply([]Definition{statusDef(false)}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	bad := statusDef(false)
	bad.Name = "bad"
	bad.Schedule = "61 * * * *"
	if err := s.Apply([]Definition{statusDef(false), bad}); err == nil {
		t.Fatal("expected error for invalid cron")
	}
	if got := s.Names(); len(got) != 1 || got[0] != "status" {
		t.Fatalf("Names = %v, want [status] (failed Apply must not change state)", got)
	}
	if err := s.Apply([]Definition{statusDef(false), statusDef(true)}); err == nil {
		t.Fatal("expected error for duplicate names")
	}
}

func TestRunNow(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	s := New(fs, nil, logx.Nop())
	if err := s.Apply([]Definition{statusDef(false)}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := s.RunNow(context.Background(), "status"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if _, err := s.RunNow(context.Background(), "missing"); !errors.Is(err, ErrUnknownAnnouncement) {
		t.Fatalf("err = %v, want ErrUnknownAnnouncement", err)
	}
}

func TestStartSchedulesAndStop(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	s := New(fs, nil, logx.Nop())
	if err := s.SetTimezone("UTC"); err != nil {
		t.Fatalf("SetTimezone: %v", err)
	}
	d := statusDef(false)
	d.Schedule = "@every 1s"
	if err := s.Apply([]Definition{d}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	s.Start()
	if s.Next("status").IsZero() {
		t.Fatal("expected a next fire time once started")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if sent, _ := fs.counts(); sent > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if sent, _ := fs.counts(); sent == 0 {
		t.Fatal("announcement never fired")
	}
}

func TestScheduledRunsDoNotOverlap(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{block: make(chan struct{})}
	s := New(fs, nil, logx.Nop())
	d := statusDef(true)
	d.Schedule = "@every 1s"
	if err := s.Apply([]Definition{d}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	s.Start()

	// The first run blocks in send across several ticks.
	time.Sleep(3500 * time.Millisecond)
	close(fs.block)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if sent, edited := fs.counts(); sent != 1 {
		t.Fatalf("sent=%d edited=%d, want exactly one send", sent, edited)
	}
}

func TestSetTimezoneInvalid(t *testing.T) {
	t.Parallel()
	s := New(&fakeSender{}, nil, logx.Nop())
	if err := s.SetTimezone("Mars/Olympus"); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
