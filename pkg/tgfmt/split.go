package tgfmt

import "unicode/utf16"

// MaxMessageLen is the Bot API limit for message text, in UTF-16 code units.
const MaxMessageLen = 4096

// Slice returns the part of t between UTF-16 positions from and to.
// A position inside a surrogate pair moves to the start of the pair.
// Spans are clipped to the range and spans left empty are dropped.
func (t Text) Slice(from, to int) Text {
	n := t.Len()
	from = clamp(from, 0, n)
	to = clamp(to, from, n)
	bFrom, uFrom := byteAt(t.text, from)
	bTo, uTo := byteAt(t.text, to)

	var spans []Span
	for _, s := range t.spans {
		lo := max(s.Offset, uFrom)
		hi := min(s.End(), uTo)
		if hi <= lo {
			continue
		}
		s.Offset = lo - uFrom
		s.Length = hi - lo
		spans = append(spans, s)
	}
	return Text{text: t.text[bFrom:bTo], spans: spans}
}

// Split cuts t into chunks of at most limit UTF-16 code units.
//
// Cuts prefer the last newline that still leaves the chunk at least a third
// of the limit long. Newlines at chunk edges are dropped. Spans crossing a cut
// are split into both chunks.
func (t Text) Split(limit int) []Text {
	if limit <= 0 {
		limit = MaxMessageLen
	}
	if t.Len() <= limit {
		return []Text{t}
	}

	type runePos struct {
		unit int
		r    rune
	}
	runes := make([]runePos, 0, len(t.text))
	total := 0
	for _, r := range t.text {
		runes = append(runes, runePos{unit: total, r: r})
		total += utf16.RuneLen(r)
	}
	at := func(k int) int {
		if k >= len(runes) {
			return total
		}
		return runes[k].unit
	}

	var out []Text
	start := 0
	for start < len(runes) {
		end := start
		for end < len(runes) && at(end+1)-at(start) <= limit {
			end++
		}
		if end == start {
			end = start + 1
		}
		if end < len(runes) {
			for i := end - 1; i > start; i-- {
				if runes[i].r == '\n' && at(i+1)-at(start) >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		cut := end
		for cut > start && runes[cut-1].r == '\n' {
			cut--
		}
		if cut > start {
			out = append(out, t.Slice(at(start), at(cut)))
		}

		start = end
		for start < len(runes) && runes[start].r == '\n' {
			start++
		}
	}
	if len(out) == 0 {
		return []Text{t.Slice(0, limit)}
	}
	return out
}

// byteAt returns the byte index and UTF-16 position of the last rune
// boundary at or before unit.
func byteAt(s string, unit int) (int, int) {
	u := 0
	for i, r := range s {
		l := utf16.RuneLen(r)
		if u+l > unit {
			return i, u
		}
		u += l
	}
	return len(s), u
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
