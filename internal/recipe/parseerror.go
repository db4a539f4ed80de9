package recipe

import (
	"fmt"

	"github.com/hob-build/hob/internal/recipe/doc"
)

// ParseErrorKind categorizes a ParseError for display and programmatic
// handling.
type ParseErrorKind int

const (
	ErrUnknownStage ParseErrorKind = iota
	ErrUnknownAction
	ErrMissingField
	ErrTypeMismatch
	ErrDuplicateSingleton
	ErrMalformedHex
	ErrWrongLengthDigest
	ErrInvalidAction
)

func (k ParseErrorKind) String() string {
	switch k {
	case ErrUnknownStage:
		return "unknown-stage"
	case ErrUnknownAction:
		return "unknown-action"
	case ErrMissingField:
		return "missing-field"
	case ErrTypeMismatch:
		return "type-mismatch"
	case ErrDuplicateSingleton:
		return "duplicate-singleton"
	case ErrMalformedHex:
		return "malformed-hex"
	case ErrWrongLengthDigest:
		return "wrong-length-digest"
	case ErrInvalidAction:
		return "invalid-action"
	default:
		return "unknown"
	}
}

// ParseError is one problem found at a specific position in a recipe
// document. Parsing is additive: ParseDocument collects every ParseError it
// can find and still returns whatever partial Recipe it managed to build.
type ParseError struct {
	Pos  doc.Pos
	Kind ParseErrorKind
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s: %s", e.Pos.Line, e.Pos.Col, e.Kind, e.Msg)
}

// ParseErrors is a collection of ParseError, satisfying error so a strict
// caller can treat any non-empty result as fatal.
type ParseErrors []*ParseError

func (es ParseErrors) Error() string {
	if len(es) == 0 {
		return "no parse errors"
	}
	s := es[0].Error()
	if len(es) > 1 {
		s = fmt.Sprintf("%s (and %d more)", s, len(es)-1)
	}
	return s
}
