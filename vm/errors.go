package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/cathon/pkg/bytecode"
)

// ErrorKind classifies runtime errors.
type ErrorKind int

const (
	TypeError ErrorKind = iota
	NameError
	IndexError
	ZeroDivisionError
	NativeError
	UnknownOpcode
	ValueError
	BytecodeError
)

var errorKindNames = [...]string{
	TypeError:         "TypeError",
	NameError:         "NameError",
	IndexError:        "IndexError",
	ZeroDivisionError: "ZeroDivisionError",
	NativeError:       "NativeError",
	UnknownOpcode:     "UnknownOpcode",
	ValueError:        "ValueError",
	BytecodeError:     "BytecodeError",
}

func (k ErrorKind) String() string {
	if k >= 0 && int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// RuntimeError aborts a Run. Code, Line and Opcode locate the failing
// instruction; Line is 0 when the code object has no line table.
type RuntimeError struct {
	Kind    ErrorKind
	Message string
	Code    string
	Line    int
	Opcode  bytecode.Opcode
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d in %s)", e.Kind, e.Message, e.Line, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func runtimeErrorf(kind ErrorKind, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a runtime error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *RuntimeError
	return errors.As(err, &e) && e.Kind == kind
}

func unsupportedOperands(op string, a, b Value) *RuntimeError {
	return runtimeErrorf(TypeError, "unsupported operand type(s) for %s: '%s' and '%s'",
		op, a.TypeName(), b.TypeName())
}
