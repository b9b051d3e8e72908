// Package evaluator walks a ChimeraScript AST against a variable.Store,
// evaluating expressions, running assertions, and dispatching HTTP calls
// through an injected WebClient (spec §4.5, §4.6, §9 "HTTP client as a
// capability").
package evaluator

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/kyleoneill/chimerascript/internal/ast"
	"github.com/kyleoneill/chimerascript/internal/cherr"
	"github.com/kyleoneill/chimerascript/internal/token"
	"github.com/kyleoneill/chimerascript/internal/value"
	"github.com/kyleoneill/chimerascript/internal/variable"
)

// NamedString is a resolved, canonicalized name/value pair — the shape
// query parameters and headers take once their source Value has been
// rendered to text (spec §4.6).
type NamedString struct {
	Name  string
	Value string
}

// NamedValue is a resolved name/value pair that keeps its full Value
// type — the shape body fields take, since a body field may itself be an
// Object or List and the concrete client decides how to serialize it.
type NamedValue struct {
	Name  string
	Value value.Value
}

// Request is the fully-resolved HTTP call the evaluator hands to a
// WebClient: method plus a URL with no query string, ordered query
// parameters, body fields, header values, and any recognized option
// values, all resolved from the current store.
type Request struct {
	Method  string
	URL     string
	Query   []NamedString
	Body    []NamedValue
	Headers []NamedString
	Options []NamedValue
}

// WebClient is the injected HTTP capability the evaluator dispatches
// through. A concrete implementation lives in internal/httpclient; tests
// use internal/testing/fakeclient.
type WebClient interface {
	Do(req Request) (value.Value, error)
}

// Evaluator executes statements and expressions against a single store.
type Evaluator struct {
	Store   *variable.Store
	Client  WebClient
	BaseURL string
	Stdout  io.Writer

	// DefaultHeaders are sent on every HTTP dispatch made by this evaluator,
	// before any header the script itself sets. A script header with the
	// same name overrides the default rather than duplicating it.
	DefaultHeaders map[string]string
}

// New creates an Evaluator over a fresh store.
func New(client WebClient, baseURL string) *Evaluator {
	return &Evaluator{Store: variable.New(), Client: client, BaseURL: baseURL, Stdout: os.Stdout}
}

func (e *Evaluator) stdout() io.Writer {
	if e.Stdout == nil {
		return os.Stdout
	}
	return e.Stdout
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ExecStatement runs one statement, returning nil on normal completion or
// a *cherr.RuntimeError otherwise (spec §4.5).
func (e *Evaluator) ExecStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.AssignStmt:
		return e.execAssign(s)
	case *ast.AssertStmt:
		return e.execAssert(s)
	case *ast.PrintStmt:
		return e.execPrint(s)
	case *ast.ExprStmt:
		_, err := e.Eval(s.Value)
		return err
	default:
		return cherr.New(cherr.TypeError, stmt.Pos(), "unhandled statement type %T", stmt)
	}
}

func (e *Evaluator) execAssign(s *ast.AssignStmt) error {
	v, err := e.Eval(s.Value)
	if err != nil {
		return err
	}
	e.Store.Set(s.Name, v)
	return nil
}

func (e *Evaluator) execPrint(s *ast.PrintStmt) error {
	v, err := e.Eval(s.Value)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout(), value.Display(v))
	return nil
}

func (e *Evaluator) execAssert(s *ast.AssertStmt) error {
	lhs, err := e.Eval(s.Lhs)
	if err != nil {
		return err
	}
	rhs, err := e.Eval(s.Rhs)
	if err != nil {
		return err
	}
	ok, err := e.evalAssertOp(s.Op, lhs, rhs, s.Position)
	if err != nil {
		return err
	}
	if s.Negated {
		ok = !ok
	}
	if ok {
		return nil
	}
	message := fmt.Sprintf("assertion %s failed", assertOpVerb(s.Op, s.Negated))
	if s.Message != nil {
		mv, merr := e.Eval(s.Message)
		if merr != nil {
			return merr
		}
		message = value.Display(mv)
	}
	return cherr.New(cherr.AssertionFailed, s.Position, "%s", message)
}

func assertOpVerb(op ast.AssertOp, negated bool) string {
	if negated {
		return "NOT " + op.String()
	}
	return op.String()
}

func (e *Evaluator) evalAssertOp(op ast.AssertOp, lhs, rhs value.Value, pos token.Position) (bool, error) {
	switch op {
	case ast.OpEquals:
		return value.Equal(lhs, rhs), nil
	case ast.OpGT, ast.OpGTE, ast.OpLT, ast.OpLTE:
		cmp, err := value.Compare(lhs, rhs)
		if err != nil {
			return false, cherr.New(cherr.TypeError, pos, "%s", err)
		}
		if cmp == 2 { // NaN sentinel: every ordering predicate is false
			return false, nil
		}
		switch op {
		case ast.OpGT:
			return cmp > 0, nil
		case ast.OpGTE:
			return cmp >= 0, nil
		case ast.OpLT:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	case ast.OpStatus:
		status, _, _, ok := lhs.AsHttpResponse()
		if !ok {
			return false, cherr.New(cherr.TypeError, pos, "STATUS requires an HttpResponse operand, got %s", value.TypeName(lhs))
		}
		rstatus, ok := rhs.AsInt()
		if !ok {
			return false, cherr.New(cherr.TypeError, pos, "STATUS requires an Int operand, got %s", value.TypeName(rhs))
		}
		return int64(status) == rstatus, nil
	case ast.OpLength:
		length, err := value.Length(lhs)
		if err != nil {
			return false, cherr.New(cherr.TypeError, pos, "%s", err)
		}
		rlen, ok := rhs.AsInt()
		if !ok {
			return false, cherr.New(cherr.TypeError, pos, "LENGTH requires an Int operand, got %s", value.TypeName(rhs))
		}
		return length == rlen, nil
	case ast.OpContains:
		contains, err := value.Contains(lhs, rhs)
		if err != nil {
			return false, cherr.New(cherr.TypeError, pos, "%s", err)
		}
		return contains, nil
	default:
		return false, cherr.New(cherr.TypeError, pos, "unknown assertion operator %s", op)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Eval evaluates expr to a Value.
func (e *Evaluator) Eval(expr ast.Expression) (value.Value, error) {
	switch n := expr.(type) {
	case *ast.LiteralExpr:
		return evalLiteral(n), nil
	case *ast.VarRef:
		return variable.Resolve(e.Store, n.Path, n.Position)
	case *ast.FormattedStringExpr:
		return e.evalFormatted(n)
	case *ast.ListOpExpr:
		return e.evalListOp(n)
	case *ast.HttpExpr:
		return e.evalHttp(n)
	default:
		return value.Value{}, cherr.New(cherr.TypeError, expr.Pos(), "unhandled expression type %T", expr)
	}
}

func evalLiteral(l *ast.LiteralExpr) value.Value {
	switch l.Kind {
	case ast.LitNull:
		return value.NewNull()
	case ast.LitBool:
		return value.NewBool(l.Bool)
	case ast.LitInt:
		return value.NewInt(l.Int)
	case ast.LitFloat:
		return value.NewFloat(l.Float)
	case ast.LitStr:
		return value.NewStr(l.Str)
	default:
		return value.NewNull()
	}
}

func (e *Evaluator) evalFormatted(fs *ast.FormattedStringExpr) (value.Value, error) {
	var sb strings.Builder
	for _, part := range fs.Parts {
		if part.Var == nil {
			sb.WriteString(part.Literal)
			continue
		}
		v, err := variable.Resolve(e.Store, part.Var.Path, part.Var.Position)
		if err != nil {
			return value.Value{}, err
		}
		sb.WriteString(value.Display(v))
	}
	return value.NewStr(sb.String()), nil
}

func (e *Evaluator) evalListOp(l *ast.ListOpExpr) (value.Value, error) {
	switch l.Kind {
	case ast.ListNew:
		items := make([]value.Value, 0, len(l.Items))
		for _, itemExpr := range l.Items {
			v, err := e.Eval(itemExpr)
			if err != nil {
				return value.Value{}, err
			}
			items = append(items, v)
		}
		return value.NewList(items), nil

	case ast.ListLength:
		target, err := variable.Resolve(e.Store, l.Target.Path, l.Target.Position)
		if err != nil {
			return value.Value{}, err
		}
		n, err := value.Length(target)
		if err != nil {
			return value.Value{}, cherr.New(cherr.TypeError, l.Position, "%s", err)
		}
		return value.NewInt(n), nil

	case ast.ListAppend:
		item, err := e.Eval(l.Value)
		if err != nil {
			return value.Value{}, err
		}
		err = e.Store.Update(l.Target.Path, l.Target.Position, func(v value.Value) (value.Value, error) {
			updated, appendErr := value.ListAppend(v, item)
			if appendErr != nil {
				return value.Value{}, cherr.New(cherr.TypeError, l.Position, "%s", appendErr)
			}
			return updated, nil
		})
		if err != nil {
			return value.Value{}, err
		}
		return item, nil

	case ast.ListRemove:
		idxVal, err := e.Eval(l.Value)
		if err != nil {
			return value.Value{}, err
		}
		idx, ok := idxVal.AsInt()
		if !ok {
			return value.Value{}, cherr.New(cherr.TypeError, l.Position, "REMOVE index must be an Int, got %s", value.TypeName(idxVal))
		}
		var removed value.Value
		err = e.Store.Update(l.Target.Path, l.Target.Position, func(v value.Value) (value.Value, error) {
			r, updated, removeErr := value.ListRemove(v, idx)
			if removeErr != nil {
				return value.Value{}, cherr.New(cherr.IndexOutOfBounds, l.Position, "%s", removeErr)
			}
			removed = r
			return updated, nil
		})
		if err != nil {
			return value.Value{}, err
		}
		return removed, nil

	case ast.ListPop:
		var popped value.Value
		err := e.Store.Update(l.Target.Path, l.Target.Position, func(v value.Value) (value.Value, error) {
			p, updated, popErr := value.ListPop(v)
			if popErr != nil {
				return value.Value{}, cherr.New(cherr.IndexOutOfBounds, l.Position, "%s", popErr)
			}
			popped = p
			return updated, nil
		})
		if err != nil {
			return value.Value{}, err
		}
		return popped, nil

	default:
		return value.Value{}, cherr.New(cherr.TypeError, l.Position, "unhandled list operation")
	}
}

// ---------------------------------------------------------------------------
// HTTP dispatch (spec §4.6)
// ---------------------------------------------------------------------------

func (e *Evaluator) evalHttp(h *ast.HttpExpr) (value.Value, error) {
	path, err := e.resolvePath(h.Path)
	if err != nil {
		return value.Value{}, err
	}
	fullURL := strings.TrimRight(e.BaseURL, "/") + path

	query, err := e.resolveNamedStrings(h.Query)
	if err != nil {
		return value.Value{}, err
	}
	headers, err := e.resolveNamedStrings(h.Headers)
	if err != nil {
		return value.Value{}, err
	}
	headers = e.withDefaultHeaders(headers)
	body, err := e.resolveNamedValues(h.Body)
	if err != nil {
		return value.Value{}, err
	}
	options, err := e.resolveNamedValues(h.Options)
	if err != nil {
		return value.Value{}, err
	}

	req := Request{
		Method:  h.Verb.String(),
		URL:     fullURL,
		Query:   query,
		Body:    body,
		Headers: headers,
		Options: options,
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return value.Value{}, cherr.New(cherr.TransportError, h.Position, "%s", err)
	}
	return resp, nil
}

// withDefaultHeaders prepends e.DefaultHeaders (sorted by name, for a
// deterministic request) to headers set by the script, skipping any default
// the script already names explicitly.
func (e *Evaluator) withDefaultHeaders(headers []NamedString) []NamedString {
	if len(e.DefaultHeaders) == 0 {
		return headers
	}
	set := make(map[string]bool, len(headers))
	for _, h := range headers {
		set[h.Name] = true
	}
	names := make([]string, 0, len(e.DefaultHeaders))
	for name := range e.DefaultHeaders {
		if !set[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	merged := make([]NamedString, 0, len(names)+len(headers))
	for _, name := range names {
		merged = append(merged, NamedString{Name: name, Value: e.DefaultHeaders[name]})
	}
	return append(merged, headers...)
}

// resolvePath concatenates path components with "/", URL-encoding any
// interpolated segment (spec §4.6).
func (e *Evaluator) resolvePath(components []ast.PathComponent) (string, error) {
	var sb strings.Builder
	for _, comp := range components {
		sb.WriteByte('/')
		for _, seg := range comp.Segments {
			if seg.Var == nil {
				sb.WriteString(seg.Literal)
				continue
			}
			v, err := variable.Resolve(e.Store, seg.Var.Path, seg.Var.Position)
			if err != nil {
				return "", err
			}
			text, err := value.CanonicalString(v)
			if err != nil {
				return "", cherr.New(cherr.TypeError, seg.Var.Position, "%s", err)
			}
			sb.WriteString(url.PathEscape(text))
		}
	}
	return sb.String(), nil
}

func (e *Evaluator) resolveNamedStrings(items []ast.NamedValue) ([]NamedString, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]NamedString, 0, len(items))
	for _, item := range items {
		v, err := e.Eval(item.Value)
		if err != nil {
			return nil, err
		}
		text, err := value.CanonicalString(v)
		if err != nil {
			return nil, cherr.New(cherr.TypeError, item.Value.Pos(), "%s", err)
		}
		out = append(out, NamedString{Name: item.Name, Value: text})
	}
	return out, nil
}

func (e *Evaluator) resolveNamedValues(items []ast.NamedValue) ([]NamedValue, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]NamedValue, 0, len(items))
	for _, item := range items {
		v, err := e.Eval(item.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, NamedValue{Name: item.Name, Value: v})
	}
	return out, nil
}
