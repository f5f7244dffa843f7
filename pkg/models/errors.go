package models

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
)

// Kind classifies an error returned by the store or the ledger.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidState
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindInvalidState:
		return "InvalidState"
	case KindValidation:
		return "ValidationError"
	default:
		return "Internal"
	}
}

// KindOf maps err onto one of the error kinds. Unrecognised errors are Internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindInternal
	}
}
