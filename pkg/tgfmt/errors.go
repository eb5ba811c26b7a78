package tgfmt

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownKind  = errors.New("tgfmt: unknown kind")
	ErrMissingParam = errors.New("tgfmt: missing required parameter")
)

// ParamError reports a style that cannot be built from the supplied data.
type ParamError struct {
	Kind  Kind
	Name  string // style name as supplied, when parsing
	Param string // "url" or "language"
	Err   error
}

func (e *ParamError) Error() string {
	switch {
	case e.Param != "":
		return fmt.Sprintf("%v %q for kind %s", e.Err, e.Param, e.Kind)
	case e.Name != "":
		return fmt.Sprintf("%v %q", e.Err, e.Name)
	default:
		return fmt.Sprintf("%v %s", e.Err, e.Kind)
	}
}

func (e *ParamError) Unwrap() error { return e.Err }
