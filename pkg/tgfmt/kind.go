package tgfmt

import (
	"strconv"
	"strings"
)

// Kind is a formatting style.
type Kind uint8

const (
	KindBold Kind = iota + 1
	KindCode
	KindItalic
	KindLink
	KindPre
	KindSpoiler
	KindStrikethrough
	KindUnderline
)

var kindNames = [...]string{
	KindBold:          "bold",
	KindCode:          "code",
	KindItalic:        "italic",
	KindLink:          "link",
	KindPre:           "pre",
	KindSpoiler:       "spoiler",
	KindStrikethrough: "strikethrough",
	KindUnderline:     "underline",
}

var kindAliases = map[string]Kind{
	"b":          KindBold,
	"strong":     KindBold,
	"i":          KindItalic,
	"em":         KindItalic,
	"u":          KindUnderline,
	"s":          KindStrikethrough,
	"strike":     KindStrikethrough,
	"url":        KindLink,
	"text_link":  KindLink,
	"code_block": KindPre,
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k >= KindBold && k <= KindUnderline
}

func (k Kind) String() string {
	if !k.Valid() {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// NeedsURL reports whether spans of this kind carry a URL.
func (k Kind) NeedsURL() bool { return k == KindLink }

// NeedsLanguage reports whether spans of this kind carry a language.
func (k Kind) NeedsLanguage() bool { return k == KindPre }

// ParseKind maps a style name (case-insensitive) to its Kind.
func ParseKind(name string) (Kind, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	for k := KindBold; k <= KindUnderline; k++ {
		if kindNames[k] == s {
			return k, nil
		}
	}
	if k, ok := kindAliases[s]; ok {
		return k, nil
	}
	return 0, &ParamError{Name: name, Err: ErrUnknownKind}
}
