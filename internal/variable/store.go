// Package variable implements ChimeraScript's variable store: a single
// flat name-to-value mapping shared by a case and all of its nested
// cases, with "snapshot with write-through for prior names" scoping
// (spec §4.4/§9) implemented as an undo log rather than an actual copy.
package variable

import (
	"github.com/kyleoneill/chimerascript/internal/cherr"
	"github.com/kyleoneill/chimerascript/internal/token"
	"github.com/kyleoneill/chimerascript/internal/value"
)

// Store is the shared mapping backing one top-level case and every case
// nested inside it.
type Store struct {
	values map[string]value.Value
	// frames holds one entry per currently-executing nested case; each
	// entry records the names that were first introduced during that
	// case's execution, so PopFrame can undo exactly those bindings and
	// nothing else. The top-level case never has a frame, so its
	// bindings are never undone.
	frames []map[string]struct{}
}

// New creates an empty Store for a fresh top-level case.
func New() *Store {
	return &Store{values: make(map[string]value.Value)}
}

// PushFrame begins a nested case's scope. Call before executing a nested
// case's block; call PopFrame when that case returns.
func (s *Store) PushFrame() {
	s.frames = append(s.frames, make(map[string]struct{}))
}

// PopFrame discards every binding introduced since the matching
// PushFrame, leaving writes to pre-existing names in place.
func (s *Store) PopFrame() {
	if len(s.frames) == 0 {
		return
	}
	frame := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	for name := range frame {
		delete(s.values, name)
	}
}

// Get returns the value bound to name and whether it is bound.
func (s *Store) Get(name string) (value.Value, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Set binds name to v, overwriting any prior binding (spec §4.5,
// Assign). If name is new and a nested-case frame is active, the
// binding is recorded so it unwinds when that frame pops.
func (s *Store) Set(name string, v value.Value) {
	if _, exists := s.values[name]; !exists && len(s.frames) > 0 {
		s.frames[len(s.frames)-1][name] = struct{}{}
	}
	s.values[name] = v
}

// Resolve looks up a dotted path (spec §4.4): the first component must
// be a bound variable name, and each subsequent component is applied via
// value.Field. pos is used to pin any UndefinedVariable error.
func Resolve(s *Store, path []string, pos token.Position) (value.Value, error) {
	if len(path) == 0 {
		return value.Value{}, cherr.New(cherr.UndefinedVariable, pos, "empty variable reference")
	}
	v, ok := s.Get(path[0])
	if !ok {
		return value.Value{}, cherr.New(cherr.UndefinedVariable, pos, "variable %q is not defined", path[0])
	}
	for _, component := range path[1:] {
		next, err := value.Field(v, component)
		if err != nil {
			return value.Value{}, wrapFieldError(err, pos)
		}
		v = next
	}
	return v, nil
}

// Update resolves path to a leaf value, applies fn to it, and writes the
// result back through every intermediate container so the change is
// visible the next time path is resolved. Used by the LIST
// APPEND/REMOVE/POP operators, which per spec §4.5 mutate "the list
// bound to var" — including when var is a dotted path into a nested
// HttpResponse body rather than a bare top-level name.
func (s *Store) Update(path []string, pos token.Position, fn func(value.Value) (value.Value, error)) error {
	if len(path) == 0 {
		return cherr.New(cherr.UndefinedVariable, pos, "empty variable reference")
	}
	root, ok := s.Get(path[0])
	if !ok {
		return cherr.New(cherr.UndefinedVariable, pos, "variable %q is not defined", path[0])
	}
	newRoot, err := updateAt(root, path[1:], pos, fn)
	if err != nil {
		return err
	}
	s.Set(path[0], newRoot)
	return nil
}

func updateAt(v value.Value, rest []string, pos token.Position, fn func(value.Value) (value.Value, error)) (value.Value, error) {
	if len(rest) == 0 {
		return fn(v)
	}
	child, err := value.Field(v, rest[0])
	if err != nil {
		return value.Value{}, wrapFieldError(err, pos)
	}
	newChild, err := updateAt(child, rest[1:], pos, fn)
	if err != nil {
		return value.Value{}, err
	}
	updated, err := value.WithField(v, rest[0], newChild)
	if err != nil {
		return value.Value{}, wrapFieldError(err, pos)
	}
	return updated, nil
}

func wrapFieldError(err error, pos token.Position) error {
	fe, ok := err.(*value.FieldError)
	if !ok {
		return cherr.New(cherr.TypeError, pos, "%s", err)
	}
	kind := cherr.TypeError
	switch fe.Kind {
	case value.ErrMissingField:
		kind = cherr.MissingField
	case value.ErrIndexOutOfBounds:
		kind = cherr.IndexOutOfBounds
	case value.ErrInvalidIndexKind:
		kind = cherr.InvalidIndexKind
	case value.ErrTypeError:
		kind = cherr.TypeError
	}
	return cherr.New(kind, pos, "%s", fe.Message)
}
