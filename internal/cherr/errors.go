// Package cherr defines the runtime error taxonomy shared by the
// evaluator and runner (spec §7): UndefinedVariable, MissingField,
// IndexOutOfBounds, InvalidIndexKind, TypeError, AssertionFailed, and
// TransportError, each pinned to a source position.
package cherr

import (
	"fmt"

	"github.com/kyleoneill/chimerascript/internal/token"
)

// Kind identifies one member of the runtime error taxonomy.
type Kind int

const (
	UndefinedVariable Kind = iota
	MissingField
	IndexOutOfBounds
	InvalidIndexKind
	TypeError
	AssertionFailed
	TransportError
)

func (k Kind) String() string {
	switch k {
	case UndefinedVariable:
		return "UndefinedVariable"
	case MissingField:
		return "MissingField"
	case IndexOutOfBounds:
		return "IndexOutOfBounds"
	case InvalidIndexKind:
		return "InvalidIndexKind"
	case TypeError:
		return "TypeError"
	case AssertionFailed:
		return "AssertionFailed"
	case TransportError:
		return "TransportError"
	default:
		return "UnknownError"
	}
}

// RuntimeError is a runtime failure produced while evaluating a case.
// Every runtime error aborts the enclosing case's statement stream (spec
// §7); it never escapes past the case boundary, so the runner classifies
// it into a case outcome rather than propagating it further.
type RuntimeError struct {
	Kind     Kind
	Message  string
	Position token.Position
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s at %s", e.Kind, e.Message, e.Position)
}

func New(kind Kind, pos token.Position, format string, args ...any) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: fmt.Sprintf(format, args...), Position: pos}
}
