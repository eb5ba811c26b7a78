package tgfmt

import (
	"fmt"
	"unicode/utf16"
)

// Stringable is anything that can be placed into a Text.
// Only Text values carry formatting; everything else contributes plain text.
type Stringable = fmt.Stringer

// Plain is a string without formatting.
type Plain string

func (p Plain) String() string { return string(p) }

// Span is one formatting annotation over a range of the owning text.
//
// URL is only meaningful for KindLink, Language only for KindPre.
type Span struct {
	Kind     Kind
	Offset   int
	Length   int
	URL      string
	Language string
}

// End returns the position right after the span.
func (s Span) End() int { return s.Offset + s.Length }

// Text is formatted text: plain text plus an ordered list of spans.
//
// Spans keep insertion order and may overlap; they are not sorted by offset.
// The zero value is an empty Text.
type Text struct {
	text  string
	spans []Span
}

// New builds a Text from text and spans. The span slice is copied.
// Spans that fall outside text or carry an unknown Kind are a caller error;
// Validate reports them, and the entity projections panic on an unknown Kind.
func New(text string, spans ...Span) Text {
	return Text{text: text, spans: cloneSpans(spans)}
}

// Lift returns s as a Text. A Text is returned as is, anything else becomes
// a Text without spans.
func Lift(s Stringable) Text {
	switch v := s.(type) {
	case Text:
		return v
	case *Text:
		if v == nil {
			return Text{}
		}
		return *v
	case nil:
		return Text{}
	default:
		return Text{text: s.String()}
	}
}

func (t Text) String() string { return t.text }

// Spans returns a copy of the spans.
func (t Text) Spans() []Span { return cloneSpans(t.spans) }

// NumSpans returns the number of spans without copying them.
func (t Text) NumSpans() int { return len(t.spans) }

// Len returns the length of the text in UTF-16 code units.
func (t Text) Len() int { return Len(t.text) }

func (t Text) IsZero() bool { return t.text == "" && len(t.spans) == 0 }

// Validate reports the first span that does not fit the text.
func (t Text) Validate() error {
	n := t.Len()
	for i, s := range t.spans {
		if !s.Kind.Valid() {
			return fmt.Errorf("span %d: %w (%d)", i, ErrUnknownKind, s.Kind)
		}
		if s.Offset < 0 || s.Length < 0 || s.End() > n {
			return fmt.Errorf("span %d (%s): range [%d,%d) outside text of length %d", i, s.Kind, s.Offset, s.End(), n)
		}
	}
	return nil
}

// Len returns the length of s in UTF-16 code units.
func Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

func cloneSpans(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}
	out := make([]Span, len(spans))
	copy(out, spans)
	return out
}
