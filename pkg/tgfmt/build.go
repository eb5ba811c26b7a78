package tgfmt

import "strconv"

// Params carries the kind-specific span parameters for Wrap.
type Params struct {
	URL      string
	Language string
}

// wrap adds one span covering all of s in front of the spans s already has.
// No concatenation happens, so existing offsets stay valid.
func wrap(kind Kind, p Params, s Stringable) Text {
	in := Lift(s)
	span := Span{Kind: kind, Offset: 0, Length: in.Len()}
	if kind.NeedsURL() {
		span.URL = p.URL
	}
	if kind.NeedsLanguage() {
		span.Language = p.Language
	}
	spans := make([]Span, 0, len(in.spans)+1)
	spans = append(spans, span)
	spans = append(spans, in.spans...)
	return Text{text: in.text, spans: spans}
}

// Wrap is the data-driven form of the builders below. It fails when kind is
// unknown or a required parameter is empty.
func Wrap(kind Kind, p Params, s Stringable) (Text, error) {
	if !kind.Valid() {
		return Text{}, &ParamError{Kind: kind, Err: ErrUnknownKind}
	}
	if kind.NeedsURL() && p.URL == "" {
		return Text{}, &ParamError{Kind: kind, Param: "url", Err: ErrMissingParam}
	}
	if kind.NeedsLanguage() && p.Language == "" {
		return Text{}, &ParamError{Kind: kind, Param: "language", Err: ErrMissingParam}
	}
	return wrap(kind, p, s), nil
}

func Bold(s Stringable) Text          { return wrap(KindBold, Params{}, s) }
func Code(s Stringable) Text          { return wrap(KindCode, Params{}, s) }
func Italic(s Stringable) Text        { return wrap(KindItalic, Params{}, s) }
func Spoiler(s Stringable) Text       { return wrap(KindSpoiler, Params{}, s) }
func Strikethrough(s Stringable) Text { return wrap(KindStrikethrough, Params{}, s) }
func Underline(s Stringable) Text     { return wrap(KindUnderline, Params{}, s) }

// Link turns s into a link to url.
func Link(s Stringable, url string) Text { return wrap(KindLink, Params{URL: url}, s) }

// Pre renders s as a preformatted block highlighted as language.
func Pre(s Stringable, language string) Text {
	return wrap(KindPre, Params{Language: language}, s)
}

// DefaultMentionScheme is the URL scheme Telegram uses for user links.
const DefaultMentionScheme = "tg"

// UserURL returns "<scheme>://user?id=<id>".
func UserURL(scheme string, userID int64) string {
	if scheme == "" {
		scheme = DefaultMentionScheme
	}
	return scheme + "://user?id=" + strconv.FormatInt(userID, 10)
}

// Mentioner builds user mentions for a given URL scheme.
// The zero value uses DefaultMentionScheme.
type Mentioner struct {
	Scheme string
}

// User links s to the user with the given id.
func (m Mentioner) User(s Stringable, userID int64) Text {
	return Link(s, UserURL(m.Scheme, userID))
}

// MentionUser links s to a Telegram user.
func MentionUser(s Stringable, userID int64) Text {
	return Mentioner{}.User(s, userID)
}
