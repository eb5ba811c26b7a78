// Package render turns template data from the config file into formatted
// text.
//
// A template is a list of literal segments with one value between each pair.
// A value is plain text or a nested template, optionally turned into a user
// mention and wrapped in styles:
//
//	segments: ["Deploy ", " finished by ", ""]
//	values:
//	  - {text: "v1.4.2", styles: [code]}
//	  - {text: "Alice", user_id: 42, styles: [bold]}
package render

import (
	"errors"
	"fmt"

	"tgfmt/pkg/tgfmt"
)

var ErrInvalidTemplate = errors.New("render: invalid template")

type Template struct {
	Segments []string `json:"segments"`
	Values   []Value  `json:"values,omitempty"`
}

// Value is one interpolated piece of a Template.
//
// Styles are applied in order, so the first style is the innermost span.
// URL is used by link styles, Language by pre.
type Value struct {
	Text     string    `json:"text,omitempty"`
	Template *Template `json:"template,omitempty"`
	UserID   int64     `json:"user_id,omitempty"`
	Styles   []string  `json:"styles,omitempty"`
	URL      string    `json:"url,omitempty"`
	Language string    `json:"language,omitempty"`
}

// Renderer builds formatted text from templates.
type Renderer struct {
	Mentions tgfmt.Mentioner
}

// New returns a Renderer whose mentions use scheme ("" means "tg").
func New(mentionScheme string) Renderer {
	return Renderer{Mentions: tgfmt.Mentioner{Scheme: mentionScheme}}
}

func (r Renderer) Render(t Template) (tgfmt.Text, error) {
	return r.render(t, "template")
}

func (r Renderer) render(t Template, path string) (tgfmt.Text, error) {
	segments := t.Segments
	if len(segments) == 0 && len(t.Values) == 0 {
		segments = []string{""}
	}
	if len(segments) != len(t.Values)+1 {
		return tgfmt.Text{}, fmt.Errorf("%s: %w: %d values need %d segments, got %d",
			path, ErrInvalidTemplate, len(t.Values), len(t.Values)+1, len(segments))
	}

	values := make([]tgfmt.Stringable, 0, len(t.Values))
	for i, v := range t.Values {
		tv, err := r.value(v, fmt.Sprintf("%s.values[%d]", path, i))
		if err != nil {
			return tgfmt.Text{}, err
		}
		values = append(values, tv)
	}
	return tgfmt.Fmt(segments, values...), nil
}

func (r Renderer) value(v Value, path string) (tgfmt.Text, error) {
	var out tgfmt.Text
	if v.Template != nil {
		if v.Text != "" {
			return tgfmt.Text{}, fmt.Errorf("%s: %w: text and template are mutually exclusive", path, ErrInvalidTemplate)
		}
		nested, err := r.render(*v.Template, path+".template")
		if err != nil {
			return tgfmt.Text{}, err
		}
		out = nested
	} else {
		out = tgfmt.Lift(tgfmt.Plain(v.Text))
	}

	if v.UserID != 0 {
		out = r.Mentions.User(out, v.UserID)
	}

	for i, name := range v.Styles {
		kind, err := tgfmt.ParseKind(name)
		if err != nil {
			return tgfmt.Text{}, fmt.Errorf("%s.styles[%d]: %w", path, i, err)
		}
		out, err = tgfmt.Wrap(kind, tgfmt.Params{URL: v.URL, Language: v.Language}, out)
		if err != nil {
			return tgfmt.Text{}, fmt.Errorf("%s.styles[%d]: %w", path, i, err)
		}
	}
	return out, nil
}
