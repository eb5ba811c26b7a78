package tgfmt

import (
	"fmt"
	"strings"
)

// Fmt joins literal segments and values into one Text:
//
//	segments[0] + values[0] + segments[1] + ... + values[n-1] + segments[n]
//
// Spans of Text values are moved by the length of everything placed before
// the value. Other values contribute their text only. Spans keep their order:
// all spans of values[0], then those of values[1], and so on.
//
// Fmt panics unless len(segments) == len(values)+1.
func Fmt(segments []string, values ...Stringable) Text {
	if len(segments) != len(values)+1 {
		panic(fmt.Sprintf("tgfmt: Fmt needs %d segments for %d values, got %d", len(values)+1, len(values), len(segments)))
	}

	var (
		b     strings.Builder
		spans []Span
		pos   int // UTF-16 length of b
	)
	b.WriteString(segments[0])
	pos += Len(segments[0])

	for i, v := range values {
		var s string
		switch fv := v.(type) {
		case Text:
			spans = appendShifted(spans, fv.spans, pos)
			s = fv.text
		case *Text:
			if fv != nil {
				spans = appendShifted(spans, fv.spans, pos)
				s = fv.text
			}
		case nil:
		default:
			s = v.String()
		}
		b.WriteString(s)
		pos += Len(s)

		b.WriteString(segments[i+1])
		pos += Len(segments[i+1])
	}
	return Text{text: b.String(), spans: spans}
}

func appendShifted(dst, src []Span, by int) []Span {
	for _, s := range src {
		s.Offset += by
		dst = append(dst, s)
	}
	return dst
}

// Concat joins values with nothing in between.
func Concat(values ...Stringable) Text {
	return Fmt(make([]string, len(values)+1), values...)
}

// Join joins values with sep between them.
func Join(sep string, values ...Stringable) Text {
	if len(values) == 0 {
		return Text{}
	}
	segments := make([]string, len(values)+1)
	for i := 1; i < len(values); i++ {
		segments[i] = sep
	}
	return Fmt(segments, values...)
}
