// Package tgfmt builds Telegram formatted text from nested fragments.
//
// A Text pairs plain text with formatting spans (bold, italic, links, ...).
// Builders wrap a fragment in one more span; Fmt joins literal pieces and
// fragments into one Text while moving every nested span to its final
// position:
//
//	msg := tgfmt.Fmt([]string{"say ", "!"}, tgfmt.Bold(tgfmt.Plain("hi")))
//	// msg.String() == "say hi!", one bold span at offset 4, length 2
//
// Offsets and lengths are counted in UTF-16 code units, which is what the
// Bot API expects for message entities.
//
// Values are immutable once built and safe to share between goroutines.
package tgfmt
