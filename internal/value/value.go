// Package value implements the ChimeraScript dynamic value model: the
// tagged union manipulated by the evaluator at runtime, plus the small
// algebra of field access, length, containment, comparison, and display
// formatting the language defines over it.
package value

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	Null Kind = iota
	Bool
	Int
	Float
	Str
	List
	Object
	HttpResponse
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case Str:
		return "string"
	case List:
		return "list"
	case Object:
		return "object"
	case HttpResponse:
		return "http_response"
	default:
		return "unknown"
	}
}

// Value is the tagged-union dynamic value ChimeraScript programs operate
// on. Exactly one of the payload fields is meaningful, selected by Kind.
type Value struct {
	kind Kind

	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	obj  map[string]Value

	// HttpResponse payload
	status  int
	body    *Value
	headers map[string]Value
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

func NewNull() Value             { return Value{kind: Null} }
func NewBool(b bool) Value       { return Value{kind: Bool, b: b} }
func NewInt(i int64) Value       { return Value{kind: Int, i: i} }
func NewFloat(f float64) Value   { return Value{kind: Float, f: f} }
func NewStr(s string) Value      { return Value{kind: Str, s: s} }

// NewList copies items into a fresh backing array so callers retain their
// own slice's identity.
func NewList(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: List, list: cp}
}

func NewObject(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: Object, obj: cp}
}

func NewHttpResponse(status int, body Value, headers map[string]Value) Value {
	hdr := make(map[string]Value, len(headers))
	for k, v := range headers {
		hdr[k] = v
	}
	return Value{kind: HttpResponse, status: status, body: &body, headers: hdr}
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() (bool, bool)    { return v.b, v.kind == Bool }
func (v Value) AsInt() (int64, bool)    { return v.i, v.kind == Int }
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == Float }
func (v Value) AsStr() (string, bool)   { return v.s, v.kind == Str }

// AsList returns the backing slice directly; callers that mutate it are
// mutating this Value in place. List APPEND/REMOVE/POP do not: they go
// through ListAppend/ListRemove/ListPop, which build a new slice.
func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == List }

func (v Value) AsObject() (map[string]Value, bool) { return v.obj, v.kind == Object }

func (v Value) AsHttpResponse() (status int, body Value, headers map[string]Value, ok bool) {
	if v.kind != HttpResponse {
		return 0, Value{}, nil, false
	}
	return v.status, *v.body, v.headers, true
}

// IsNumeric reports whether v is Int or Float.
func (v Value) IsNumeric() bool { return v.kind == Int || v.kind == Float }

// AsFloat64 converts an Int or Float value to float64. Only valid when
// IsNumeric is true.
func (v Value) AsFloat64() float64 {
	if v.kind == Int {
		return float64(v.i)
	}
	return v.f
}

// ---------------------------------------------------------------------------
// List mutation helpers (ListAppend/ListRemove/ListPop each return a
// fresh Value and leave the input list untouched).
// ---------------------------------------------------------------------------

// ListAppend appends item to a List value and returns the updated Value.
// Returns an error if v is not a List.
func ListAppend(v Value, item Value) (Value, error) {
	if v.kind != List {
		return Value{}, fmt.Errorf("cannot append to a %s", v.kind)
	}
	items := make([]Value, len(v.list)+1)
	copy(items, v.list)
	items[len(v.list)] = item
	return Value{kind: List, list: items}, nil
}

// ListRemove removes and returns the element at index from a List value,
// along with the updated Value.
func ListRemove(v Value, index int64) (removed Value, updated Value, err error) {
	if v.kind != List {
		return Value{}, Value{}, fmt.Errorf("cannot remove from a %s", v.kind)
	}
	if index < 0 || index >= int64(len(v.list)) {
		return Value{}, Value{}, fmt.Errorf("index %d out of bounds for list of length %d", index, len(v.list))
	}
	removed = v.list[index]
	items := make([]Value, 0, len(v.list)-1)
	items = append(items, v.list[:index]...)
	items = append(items, v.list[index+1:]...)
	updated = Value{kind: List, list: items}
	return removed, updated, nil
}

// ListPop removes and returns the last element of a List value, along
// with the updated Value.
func ListPop(v Value) (popped Value, updated Value, err error) {
	if v.kind != List {
		return Value{}, Value{}, fmt.Errorf("cannot pop from a %s", v.kind)
	}
	if len(v.list) == 0 {
		return Value{}, Value{}, fmt.Errorf("cannot pop from an empty list")
	}
	popped = v.list[len(v.list)-1]
	items := make([]Value, len(v.list)-1)
	copy(items, v.list[:len(v.list)-1])
	updated = Value{kind: List, list: items}
	return popped, updated, nil
}

// ---------------------------------------------------------------------------
// Field / index access (§4.3)
// ---------------------------------------------------------------------------

// FieldErrorKind identifies why Field failed.
type FieldErrorKind int

const (
	ErrMissingField FieldErrorKind = iota
	ErrIndexOutOfBounds
	ErrInvalidIndexKind
	ErrTypeError
)

// FieldError is returned by Field when a component cannot be resolved.
type FieldError struct {
	Kind    FieldErrorKind
	Message string
}

func (e *FieldError) Error() string { return e.Message }

// Field resolves a single dotted-path component against v, implementing
// the access rules of §4.3: integer components index into List, identifier
// components look up Object/HttpResponse fields (HttpResponse exposes
// status_code/body/headers, everything else descends into body).
func Field(v Value, component string) (Value, error) {
	if idx, isIdx := parseIndex(component); isIdx {
		if v.kind != List {
			return Value{}, &FieldError{ErrInvalidIndexKind, fmt.Sprintf("cannot index a %s with a numeric component", v.kind)}
		}
		if idx < 0 || idx >= int64(len(v.list)) {
			return Value{}, &FieldError{ErrIndexOutOfBounds, fmt.Sprintf("index %d out of bounds for list of length %d", idx, len(v.list))}
		}
		return v.list[idx], nil
	}

	switch v.kind {
	case List:
		return Value{}, &FieldError{ErrInvalidIndexKind, fmt.Sprintf("list component %q is not a non-negative integer", component)}
	case HttpResponse:
		switch component {
		case "status_code":
			return NewInt(int64(v.status)), nil
		case "body":
			return *v.body, nil
		case "headers":
			return NewObject(v.headers), nil
		default:
			return Field(*v.body, component)
		}
	case Object:
		field, ok := v.obj[component]
		if !ok {
			return Value{}, &FieldError{ErrMissingField, fmt.Sprintf("field %q not found", component)}
		}
		return field, nil
	default:
		return Value{}, &FieldError{ErrTypeError, fmt.Sprintf("cannot access field %q on a %s", component, v.kind)}
	}
}

// parseIndex reports whether component is a non-negative decimal integer
// (a list index), per §3's requirement that the first path component on a
// list be a non-negative integer literal in source.
func parseIndex(component string) (int64, bool) {
	if component == "" {
		return 0, false
	}
	for _, c := range component {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(component, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// WithField returns a copy of v with the component at the given dotted-
// path component replaced by newChild — the mirror image of Field, used
// by the variable store to write back through a nested LIST operation
// target (e.g. `LIST APPEND (res.body.items) x`) without ever mutating a
// Value shared elsewhere.
func WithField(v Value, component string, newChild Value) (Value, error) {
	if idx, isIdx := parseIndex(component); isIdx {
		if v.kind != List {
			return Value{}, &FieldError{ErrInvalidIndexKind, fmt.Sprintf("cannot index a %s with a numeric component", v.kind)}
		}
		if idx < 0 || idx >= int64(len(v.list)) {
			return Value{}, &FieldError{ErrIndexOutOfBounds, fmt.Sprintf("index %d out of bounds for list of length %d", idx, len(v.list))}
		}
		items := make([]Value, len(v.list))
		copy(items, v.list)
		items[idx] = newChild
		return Value{kind: List, list: items}, nil
	}

	switch v.kind {
	case Object:
		if _, ok := v.obj[component]; !ok {
			return Value{}, &FieldError{ErrMissingField, fmt.Sprintf("field %q not found", component)}
		}
		fields := make(map[string]Value, len(v.obj))
		for k, fv := range v.obj {
			fields[k] = fv
		}
		fields[component] = newChild
		return Value{kind: Object, obj: fields}, nil
	case HttpResponse:
		switch component {
		case "body":
			return NewHttpResponse(v.status, newChild, v.headers), nil
		default:
			newBody, err := WithField(*v.body, component, newChild)
			if err != nil {
				return Value{}, err
			}
			return NewHttpResponse(v.status, newBody, v.headers), nil
		}
	default:
		return Value{}, &FieldError{ErrTypeError, fmt.Sprintf("cannot set field %q on a %s", component, v.kind)}
	}
}

// ---------------------------------------------------------------------------
// Length / Contains / Compare / Equal / Display
// ---------------------------------------------------------------------------

// Length implements §4.3's length(value): defined for List and Str.
func Length(v Value) (int64, error) {
	switch v.kind {
	case List:
		return int64(len(v.list)), nil
	case Str:
		return int64(len([]rune(v.s))), nil
	default:
		return 0, fmt.Errorf("cannot take the length of a %s", v.kind)
	}
}

// Contains implements §4.3's contains(haystack, needle).
func Contains(haystack, needle Value) (bool, error) {
	switch haystack.kind {
	case List:
		for _, el := range haystack.list {
			if Equal(el, needle) {
				return true, nil
			}
		}
		return false, nil
	case Object:
		key, ok := needle.AsStr()
		if !ok {
			return false, fmt.Errorf("CONTAINS on an object requires a string needle, got %s", needle.kind)
		}
		_, found := haystack.obj[key]
		return found, nil
	case HttpResponse:
		return Contains(*haystack.body, needle)
	default:
		return false, fmt.Errorf("cannot check containment on a %s", haystack.kind)
	}
}

// Compare returns -1, 0, or 1 comparing a and b. Defined only between
// numeric values; a NaN Float compares unequal (neither < nor >, and the
// caller's Equal check also fails) to everything including itself, and
// for it Compare returns the sentinel 2.
func Compare(a, b Value) (int, error) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return 0, fmt.Errorf("cannot compare %s and %s", a.kind, b.kind)
	}
	fa, fb := a.AsFloat64(), b.AsFloat64()
	if math.IsNaN(fa) || math.IsNaN(fb) {
		return 2, nil // sentinel: caller must treat every ordering predicate as false
	}
	switch {
	case fa < fb:
		return -1, nil
	case fa > fb:
		return 1, nil
	default:
		return 0, nil
	}
}

// Equal implements §3's equality rules: same variant + same payload, with
// Int(n) == Float(n.0), element-wise list equality, key-set+value object
// equality, and Null == Null. NaN is never equal to anything, including
// itself.
func Equal(a, b Value) bool {
	if a.kind == Null && b.kind == Null {
		return true
	}
	if a.IsNumeric() && b.IsNumeric() {
		fa, fb := a.AsFloat64(), b.AsFloat64()
		if math.IsNaN(fa) || math.IsNaN(fb) {
			return false
		}
		return fa == fb
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Bool:
		return a.b == b.b
	case Str:
		return a.s == b.s
	case List:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case HttpResponse:
		return a.status == b.status && Equal(*a.body, *b.body)
	default:
		return false
	}
}

// Display implements §4.3's display(value), used by PRINT and by
// formatted-string interpolation.
func Display(v Value) string {
	switch v.kind {
	case Null:
		return "null"
	case Bool:
		if v.b {
			return "true"
		}
		return "false"
	case Int:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return formatFloat(v.f)
	case Str:
		return v.s
	case List:
		parts := make([]string, len(v.list))
		for i, el := range v.list {
			parts[i] = Display(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Object:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + Display(v.obj[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case HttpResponse:
		return fmt.Sprintf("HttpResponse{status_code: %d, body: %s}", v.status, Display(*v.body))
	default:
		return ""
	}
}

// formatFloat renders a float64 using the canonical decimal
// representation: shortest round-trippable form, always with a decimal
// point so floats are visually distinct from ints.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// CanonicalString renders a Value the way HTTP dispatch does for query
// parameters, headers and interpolated path segments per §4.6 (body
// fields keep their full values): strings verbatim, booleans and
// numbers in canonical textual form.
func CanonicalString(v Value) (string, error) {
	switch v.kind {
	case Str:
		return v.s, nil
	case Bool, Int, Float:
		return Display(v), nil
	default:
		return "", fmt.Errorf("cannot render a %s as an HTTP parameter", v.kind)
	}
}

// TypeName returns the human-readable type name used in error messages.
func TypeName(v Value) string { return v.kind.String() }
