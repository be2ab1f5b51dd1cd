package broker

import (
	"errors"
	"maps"
)

// Error kinds. Match them with errors.Is.
var (
	ErrInvalidState       = errors.New("invalid state")
	ErrOrderNotFound      = errors.New("order not found")
	ErrSymbolNotFound     = errors.New("symbol not found")
	ErrInvalidDirectives  = errors.New("invalid order directives")
	ErrMarketClosed       = errors.New("market closed")
	ErrInsufficientMargin = errors.New("insufficient margin")
)

// Error carries a kind, a message and optional details about the failing
// operation.
type Error struct {
	Kind       error
	Message    string
	Descriptor map[string]any
}

func NewError(kind error, message string, descriptor map[string]any) error {
	return &Error{Kind: kind, Message: message, Descriptor: maps.Clone(descriptor)}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}
