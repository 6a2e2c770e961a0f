package compiler

import (
	"errors"
	"fmt"
)

// ErrorKind classifies front-end failures by phase.
type ErrorKind int

const (
	SyntaxError ErrorKind = iota
	TabError
	IndentationError
	CompileError
)

func (k ErrorKind) String() string {
	switch k {
	case SyntaxError:
		return "SyntaxError"
	case TabError:
		return "TabError"
	case IndentationError:
		return "IndentationError"
	case CompileError:
		return "CompileError"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a lex, parse or compile error. Every phase stops at its
// first error.
type Error struct {
	Kind    ErrorKind
	Message string
	Span    Span
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s at %s", e.Kind, e.Message, e.Span)
}

func errorAt(kind ErrorKind, span Span, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Span: span}
}

// IsKind reports whether err is a front-end error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
