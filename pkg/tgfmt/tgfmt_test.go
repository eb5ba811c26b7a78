package tgfmt

import (
	"errors"
	"reflect"
	"strconv"
	"testing"

	tele "gopkg.in/telebot.v4"
)

type number int

func (n number) String() string { return strconv.Itoa(int(n)) }

func TestFmtWithoutValues(t *testing.T) {
	t.Parallel()
	got := Fmt([]string{"hello"})
	if got.String() != "hello" {
		t.Fatalf("text = %q, want %q", got.String(), "hello")
	}
	if got.NumSpans() != 0 {
		t.Fatalf("spans = %v, want none", got.Spans())
	}
}

func TestBuildersOnPlainText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		build func(Stringable) Text
		kind  Kind
	}{
		{name: "bold", build: Bold, kind: KindBold},
		{name: "code", build: Code, kind: KindCode},
		{name: "italic", build: Italic, kind: KindItalic},
		{name: "spoiler", build: Spoiler, kind: KindSpoiler},
		{name: "strikethrough", build: Strikethrough, kind: KindStrikethrough},
		{name: "underline", build: Underline, kind: KindUnderline},
		{name: "link", build: func(s Stringable) Text { return Link(s, "https://example.com") }, kind: KindLink},
		{name: "pre", build: func(s Stringable) Text { return Pre(s, "go") }, kind: KindPre},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.build(Plain("text"))
			spans := got.Spans()
			if len(spans) != 1 {
				t.Fatalf("len(spans) = %d, want 1", len(spans))
			}
			if spans[0].Kind != tt.kind || spans[0].Offset != 0 || spans[0].Length != 4 {
				t.Fatalf("span = %+v, want %s at 0 length 4", spans[0], tt.kind)
			}
		})
	}
}

func TestStrikethroughHasOwnKind(t *testing.T) {
	t.Parallel()
	s := Strikethrough(Plain("x")).Spans()[0]
	if s.Kind == KindSpoiler {
		t.Fatal("strikethrough built a spoiler span")
	}
	if e := s.Entity(); e.Type != tele.EntityStrikethrough {
		t.Fatalf("entity type = %q, want %q", e.Type, tele.EntityStrikethrough)
	}
}

func TestNestedBuildersPrependOuterSpan(t *testing.T) {
	t.Parallel()
	got := Bold(Italic(Plain("both")))
	want := []Span{
		{Kind: KindBold, Offset: 0, Length: 4},
		{Kind: KindItalic, Offset: 0, Length: 4},
	}
	if !reflect.DeepEqual(got.Spans(), want) {
		t.Fatalf("spans = %+v, want %+v", got.Spans(), want)
	}
}

func TestFmtShiftsOffsets(t *testing.T) {
	t.Parallel()
	v2 := Bold(Plain("world"))
	got := Fmt([]string{"a: ", " b: ", "."}, Plain("xyz"), v2)

	if got.String() != "a: xyz b: world." {
		t.Fatalf("text = %q", got.String())
	}
	spans := got.Spans()
	if len(spans) != 1 {
		t.Fatalf("len(spans) = %d, want 1", len(spans))
	}
	wantOffset := len("a: ") + len("xyz") + len(" b: ")
	if spans[0].Offset != wantOffset || spans[0].Length != 5 {
		t.Fatalf("span = %+v, want offset %d length 5", spans[0], wantOffset)
	}
}

func TestFmtScenario(t *testing.T) {
	t.Parallel()
	got := Fmt([]string{"say ", "!"}, Bold(Plain("hi")))
	if got.String() != "say hi!" {
		t.Fatalf("text = %q, want %q", got.String(), "say hi!")
	}
	want := []Span{{Kind: KindBold, Offset: 4, Length: 2}}
	if !reflect.DeepEqual(got.Spans(), want) {
		t.Fatalf("spans = %+v, want %+v", got.Spans(), want)
	}
}

func TestFmtKeepsValueOrder(t *testing.T) {
	t.Parallel()
	// v1 spans sit after v2 spans by offset once v1 is nested at the end.
	v1 := Fmt([]string{"..........", ""}, Italic(Plain("late")))
	v2 := Bold(Plain("early"))
	got := Fmt([]string{"", " ", ""}, v1, v2)

	spans := got.Spans()
	if len(spans) != 2 {
		t.Fatalf("len(spans) = %d, want 2", len(spans))
	}
	if spans[0].Kind != KindItalic || spans[1].Kind != KindBold {
		t.Fatalf("span order = %s, %s; want italic, bold", spans[0].Kind, spans[1].Kind)
	}
	if spans[0].Offset != 10 || spans[1].Offset != 15 {
		t.Fatalf("offsets = %d, %d; want 10, 15", spans[0].Offset, spans[1].Offset)
	}
}

func TestFmtNestedComposition(t *testing.T) {
	t.Parallel()
	inner := Fmt([]string{"<", ">"}, Code(Plain("x")))
	outer := Fmt([]string{"ab", "cd"}, Underline(inner))
	want := []Span{
		{Kind: KindUnderline, Offset: 2, Length: 3},
		{Kind: KindCode, Offset: 3, Length: 1},
	}
	if outer.String() != "ab<x>cd" {
		t.Fatalf("text = %q", outer.String())
	}
	if !reflect.DeepEqual(outer.Spans(), want) {
		t.Fatalf("spans = %+v, want %+v", outer.Spans(), want)
	}
	if err := outer.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestFmtDoesNotMutateInputs(t *testing.T) {
	t.Parallel()
	v := Bold(Plain("hi"))
	_ = Fmt([]string{"12345", ""}, v)
	_ = Fmt([]string{"1", ""}, v)
	if s := v.Spans()[0]; s.Offset != 0 {
		t.Fatalf("input span offset = %d after composition, want 0", s.Offset)
	}
	a := Fmt([]string{"x", ""}, v)
	b := Fmt([]string{"yy", ""}, v)
	if a.Spans()[0].Offset != 1 || b.Spans()[0].Offset != 2 {
		t.Fatalf("offsets = %d, %d; want 1, 2", a.Spans()[0].Offset, b.Spans()[0].Offset)
	}
}

func TestFmtRoundTripText(t *testing.T) {
	t.Parallel()
	got := Fmt([]string{"n=", ", s=", ", f=", ""}, number(42), Plain("plain"), Italic(Plain("fmt")))
	if got.String() != "n=42, s=plain, f=fmt" {
		t.Fatalf("text = %q", got.String())
	}
	if got.NumSpans() != 1 {
		t.Fatalf("spans = %d, want 1 (only Text values carry spans)", got.NumSpans())
	}
}

func TestFmtCountsUTF16Units(t *testing.T) {
	t.Parallel()
	// "😀" is one rune, four bytes and two UTF-16 units.
	got := Fmt([]string{"😀é ", ""}, Bold(Plain("a😀")))
	s := got.Spans()[0]
	if s.Offset != 4 || s.Length != 3 {
		t.Fatalf("span = %+v, want offset 4 length 3", s)
	}
	if got.Len() != 7 {
		t.Fatalf("Len = %d, want 7", got.Len())
	}
}

func TestFmtPanicsOnSegmentMismatch(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	_ = Fmt([]string{"a"}, Plain("b"))
}

func TestJoinAndConcat(t *testing.T) {
	t.Parallel()
	j := Join(", ", Bold(Plain("a")), Plain("b"), Italic(Plain("c")))
	if j.String() != "a, b, c" {
		t.Fatalf("Join text = %q", j.String())
	}
	want := []Span{{Kind: KindBold, Offset: 0, Length: 1}, {Kind: KindItalic, Offset: 6, Length: 1}}
	if !reflect.DeepEqual(j.Spans(), want) {
		t.Fatalf("Join spans = %+v, want %+v", j.Spans(), want)
	}

	c := Concat(Plain("x"), Code(Plain("y")))
	if c.String() != "xy" || c.Spans()[0].Offset != 1 {
		t.Fatalf("Concat = %q %+v", c.String(), c.Spans())
	}
	if !Join(", ").IsZero() {
		t.Fatal("Join without values should be empty")
	}
}

func TestMentionUser(t *testing.T) {
	t.Parallel()
	got := MentionUser(Plain("Alice"), 42)
	want := []Span{{Kind: KindLink, Offset: 0, Length: 5, URL: "tg://user?id=42"}}
	if got.String() != "Alice" {
		t.Fatalf("text = %q", got.String())
	}
	if !reflect.DeepEqual(got.Spans(), want) {
		t.Fatalf("spans = %+v, want %+v", got.Spans(), want)
	}

	custom := Mentioner{Scheme: "chat"}.User(Plain("Bob"), 7)
	if u := custom.Spans()[0].URL; u != "chat://user?id=7" {
		t.Fatalf("URL = %q", u)
	}
}

func TestWrapRequiresParams(t *testing.T) {
	t.Parallel()
	if _, err := Wrap(KindLink, Params{}, Plain("x")); !errors.Is(err, ErrMissingParam) {
		t.Fatalf("link without url: err = %v, want ErrMissingParam", err)
	}
	if _, err := Wrap(KindPre, Params{}, Plain("x")); !errors.Is(err, ErrMissingParam) {
		t.Fatalf("pre without language: err = %v, want ErrMissingParam", err)
	}
	if _, err := Wrap(Kind(99), Params{}, Plain("x")); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("unknown kind: err = %v, want ErrUnknownKind", err)
	}

	got, err := Wrap(KindBold, Params{URL: "ignored"}, Plain("x"))
	if err != nil {
		t.Fatalf("Wrap bold: %v", err)
	}
	if s := got.Spans()[0]; s.URL != "" {
		t.Fatalf("bold span carries url %q", s.URL)
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()
	tests := map[string]Kind{
		"bold":          KindBold,
		" Italic ":      KindItalic,
		"strike":        KindStrikethrough,
		"strikethrough": KindStrikethrough,
		"url":           KindLink,
		"code_block":    KindPre,
	}
	for in, want := range tests {
		got, err := ParseKind(in)
		if err != nil {
			t.Fatalf("ParseKind(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseKind(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseKind("blink"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("ParseKind(blink) err = %v", err)
	}
}

func TestProjections(t *testing.T) {
	t.Parallel()
	v := Fmt([]string{"see ", " or ", ""}, Link(Plain("docs"), "https://x.test"), Pre(Plain("ls"), "sh"))

	send := v.Send()
	edit := v.Edit()
	if send.Message != v.String() || edit.Text != v.String() {
		t.Fatalf("projection text = %q / %q", send.Message, edit.Text)
	}
	want := tele.Entities{
		{Type: tele.EntityTextLink, Offset: 4, Length: 4, URL: "https://x.test"},
		{Type: tele.EntityCodeBlock, Offset: 12, Length: 2, Language: "sh"},
	}
	if !reflect.DeepEqual(send.Entities, want) {
		t.Fatalf("send entities = %+v, want %+v", send.Entities, want)
	}
	if !reflect.DeepEqual(edit.Entities, send.Entities) {
		t.Fatalf("edit entities differ from send entities")
	}
	if opt := send.Options(); !reflect.DeepEqual(opt.Entities, want) {
		t.Fatalf("options entities = %+v", opt.Entities)
	}

	send.Entities[0].Offset = 100
	if v.Spans()[0].Offset != 4 {
		t.Fatal("projection aliases the span list")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	if err := New("abc", Span{Kind: KindBold, Offset: 1, Length: 3}).Validate(); err == nil {
		t.Fatal("expected error for span past end of text")
	}
	if err := New("abc", Span{Kind: KindBold, Offset: 1, Length: 2}).Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestUnknownKindIsRejected(t *testing.T) {
	t.Parallel()
	v := New("abc", Span{Kind: Kind(200), Offset: 0, Length: 1})
	if err := v.Validate(); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("Validate err = %v, want ErrUnknownKind", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("Entities on an unknown kind did not panic")
		}
	}()
	_ = v.Entities()
}

func TestNewCopiesSpans(t *testing.T) {
	t.Parallel()
	spans := []Span{{Kind: KindBold, Offset: 0, Length: 1}}
	v := New("a", spans...)
	spans[0].Offset = 9
	if v.Spans()[0].Offset != 0 {
		t.Fatal("New aliases the caller's slice")
	}
}
