package tgfmt

import (
	"fmt"

	tele "gopkg.in/telebot.v4"
)

// Entity maps the span to its Bot API message entity.
// It panics on a Kind outside the enumeration, which only New can produce.
func (s Span) Entity() tele.MessageEntity {
	e := tele.MessageEntity{Offset: s.Offset, Length: s.Length}
	switch s.Kind {
	case KindBold:
		e.Type = tele.EntityBold
	case KindCode:
		e.Type = tele.EntityCode
	case KindItalic:
		e.Type = tele.EntityItalic
	case KindLink:
		e.Type = tele.EntityTextLink
		e.URL = s.URL
	case KindPre:
		e.Type = tele.EntityCodeBlock
		e.Language = s.Language
	case KindSpoiler:
		e.Type = tele.EntitySpoiler
	case KindStrikethrough:
		e.Type = tele.EntityStrikethrough
	case KindUnderline:
		e.Type = tele.EntityUnderline
	default:
		panic(fmt.Sprintf("tgfmt: span kind %d has no message entity", uint8(s.Kind)))
	}
	return e
}

// Entities returns the spans as Bot API message entities, in span order.
func (t Text) Entities() tele.Entities {
	if len(t.spans) == 0 {
		return nil
	}
	out := make(tele.Entities, 0, len(t.spans))
	for _, s := range t.spans {
		out = append(out, s.Entity())
	}
	return out
}

// SendParams is the payload for sending a new message.
type SendParams struct {
	Message  string
	Entities tele.Entities
}

// Options returns send options carrying the entities.
func (p SendParams) Options() *tele.SendOptions {
	return &tele.SendOptions{Entities: p.Entities}
}

// EditParams is the payload for editing an existing message.
type EditParams struct {
	Text     string
	Entities tele.Entities
}

// Options returns send options carrying the entities.
func (p EditParams) Options() *tele.SendOptions {
	return &tele.SendOptions{Entities: p.Entities}
}

// Send projects t for sending.
func (t Text) Send() SendParams {
	return SendParams{Message: t.text, Entities: t.Entities()}
}

// Edit projects t for editing. The entities are the same as for Send.
func (t Text) Edit() EditParams {
	return EditParams{Text: t.text, Entities: t.Entities()}
}
