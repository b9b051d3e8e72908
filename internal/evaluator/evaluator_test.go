package evaluator_test

import (
	"errors"
	"testing"

	"github.com/kyleoneill/chimerascript/internal/ast"
	"github.com/kyleoneill/chimerascript/internal/cherr"
	. "github.com/kyleoneill/chimerascript/internal/evaluator"
	"github.com/kyleoneill/chimerascript/internal/parser"
	"github.com/kyleoneill/chimerascript/internal/testing/fakeclient"
	"github.com/kyleoneill/chimerascript/internal/value"
)

// execScript parses src, expects exactly one case, and runs its body's
// statements in order against a fresh evaluator backed by a fake client.
func execScript(t *testing.T, src string) (*Evaluator, *fakeclient.Client, error) {
	t.Helper()
	script, errs := parser.ParseFile(src)
	if len(errs) > 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	client := fakeclient.New()
	e := New(client, "http://api.test")
	for _, item := range script.Functions[0].Body.Items {
		stmt := item.(ast.StatementItem).Stmt
		if err := e.ExecStatement(stmt); err != nil {
			return e, client, err
		}
	}
	return e, client, nil
}

func TestExecAssignAndResolve(t *testing.T) {
	e, _, err := execScript(t, `case t() { var x = LITERAL 5; };`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := e.Store.Get("x")
	if !ok {
		t.Fatal("expected x to be bound")
	}
	if n, _ := v.AsInt(); n != 5 {
		t.Errorf("got %d, want 5", n)
	}
}

func TestExecAssertPasses(t *testing.T) {
	_, _, err := execScript(t, `case t() { ASSERT EQUALS 1 1; };`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExecAssertFails(t *testing.T) {
	_, _, err := execScript(t, `case t() { ASSERT EQUALS 1 2; };`)
	rerr, ok := err.(*cherr.RuntimeError)
	if !ok || rerr.Kind != cherr.AssertionFailed {
		t.Fatalf("expected an AssertionFailed error, got %v", err)
	}
}

func TestExecAssertNegated(t *testing.T) {
	_, _, err := execScript(t, `case t() { ASSERT NOT EQUALS 1 2; };`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExecAssertCustomMessage(t *testing.T) {
	_, _, err := execScript(t, `case t() { ASSERT EQUALS 1 2 "custom failure"; };`)
	rerr, ok := err.(*cherr.RuntimeError)
	if !ok {
		t.Fatalf("expected a RuntimeError, got %v", err)
	}
	if rerr.Message != "custom failure" {
		t.Errorf("got message %q, want %q", rerr.Message, "custom failure")
	}
}

func TestExecAssertStatusAgainstHttpResponse(t *testing.T) {
	_, _, err := execScript(t, `
		case t() {
			var res = GET /ping;
			ASSERT STATUS (res) 200;
		};
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExecListAppendThroughStore(t *testing.T) {
	e, _, err := execScript(t, `
		case t() {
			var xs = LIST NEW [1, 2];
			LIST APPEND (xs) 3;
		};
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := e.Store.Get("xs")
	items, _ := got.AsList()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
}

func TestExecListUpdateThroughNestedHttpResponse(t *testing.T) {
	e, _, err := execScript(t, `
		case t() {
			var res = GET /items ?items="unused";
		};
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Build a nested list by hand to exercise Store.Update through an
	// HttpResponse body, mirroring what a real GET would return.
	body := value.NewObject(map[string]value.Value{"items": value.NewList([]value.Value{value.NewInt(1)})})
	e.Store.Set("res", value.NewHttpResponse(200, body, nil))

	appendStmt, errs := parser.ParseFile(`case t() { LIST APPEND (res.body.items) 2; };`)
	if len(errs) > 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	stmt := appendStmt.Functions[0].Body.Items[0].(ast.StatementItem).Stmt
	if err := e.ExecStatement(stmt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	updated, _ := e.Store.Get("res")
	_, updatedBody, _, _ := updated.AsHttpResponse()
	itemsVal, _ := value.Field(updatedBody, "items")
	items, _ := itemsVal.AsList()
	if len(items) != 2 {
		t.Fatalf("expected 2 items after nested append, got %d", len(items))
	}
}

func TestHttpDispatchResolvesPathQueryBodyHeaders(t *testing.T) {
	e, client, err := execScript(t, `
		case t() {
			var id = LITERAL "42";
			var res = POST /users/(id) ?active=true name="bob" auth:"secret";
		};
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.Calls) != 1 {
		t.Fatalf("expected 1 recorded call, got %d", len(client.Calls))
	}
	call := client.Calls[0]
	if call.Method != "POST" {
		t.Errorf("got method %q, want POST", call.Method)
	}
	if call.URL != "http://api.test/users/42" {
		t.Errorf("got URL %q, want %q", call.URL, "http://api.test/users/42")
	}
	if len(call.Query) != 1 || call.Query[0].Name != "active" || call.Query[0].Value != "true" {
		t.Errorf("unexpected query: %+v", call.Query)
	}
	if len(call.Headers) != 1 || call.Headers[0].Name != "auth" || call.Headers[0].Value != "secret" {
		t.Errorf("unexpected headers: %+v", call.Headers)
	}

	res, _ := e.Store.Get("res")
	status, _, _, ok := res.AsHttpResponse()
	if !ok || status != 201 {
		t.Errorf("expected a 201 response, got status=%d ok=%v", status, ok)
	}
}

func TestHttpDispatchTransportErrorBecomesRuntimeError(t *testing.T) {
	script, errs := parser.ParseFile(`case t() { var res = GET /boom; };`)
	if len(errs) > 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	client := fakeclient.New()
	client.SetError("GET", "http://api.test/boom", errors.New("connection refused"))
	e := New(client, "http://api.test")

	stmt := script.Functions[0].Body.Items[0].(ast.StatementItem).Stmt
	err := e.ExecStatement(stmt)
	rerr, ok := err.(*cherr.RuntimeError)
	if !ok || rerr.Kind != cherr.TransportError {
		t.Fatalf("expected a TransportError RuntimeError, got %v", err)
	}
}

func TestFormattedStringInterpolatesVariable(t *testing.T) {
	script, errs := parser.ParseFile(`
		case t() {
			var name = LITERAL "alice";
			var greeting = FORMAT_STR "hello (name)!";
		};
	`)
	if len(errs) > 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	e := New(fakeclient.New(), "http://api.test")
	for _, item := range script.Functions[0].Body.Items {
		stmt := item.(ast.StatementItem).Stmt
		if err := e.ExecStatement(stmt); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	got, _ := e.Store.Get("greeting")
	s, _ := got.AsStr()
	if s != "hello alice!" {
		t.Errorf("got %q, want %q", s, "hello alice!")
	}
}

func TestHttpDispatchAppliesDefaultHeadersUnlessOverridden(t *testing.T) {
	script, errs := parser.ParseFile(`
		case t() {
			var a = GET /ping;
			var b = GET /ping auth:"script-token";
		};
	`)
	if len(errs) > 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	client := fakeclient.New()
	e := New(client, "http://api.test")
	e.DefaultHeaders = map[string]string{"auth": "default-token", "x-env": "test"}
	for _, item := range script.Functions[0].Body.Items {
		stmt := item.(ast.StatementItem).Stmt
		if err := e.ExecStatement(stmt); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(client.Calls) != 2 {
		t.Fatalf("expected 2 recorded calls, got %d", len(client.Calls))
	}
	headerValue := func(headers []NamedString, name string) (string, bool) {
		for _, h := range headers {
			if h.Name == name {
				return h.Value, true
			}
		}
		return "", false
	}
	if v, ok := headerValue(client.Calls[0].Headers, "auth"); !ok || v != "default-token" {
		t.Errorf("expected the default auth header on a call with no script header, got %q ok=%v", v, ok)
	}
	if v, ok := headerValue(client.Calls[0].Headers, "x-env"); !ok || v != "test" {
		t.Errorf("expected the default x-env header, got %q ok=%v", v, ok)
	}
	if v, ok := headerValue(client.Calls[1].Headers, "auth"); !ok || v != "script-token" {
		t.Errorf("expected the script's own auth header to win over the default, got %q ok=%v", v, ok)
	}
}

func TestUndefinedVariablePropagatesAsRuntimeError(t *testing.T) {
	_, _, err := execScript(t, `case t() { PRINT (nope); };`)
	rerr, ok := err.(*cherr.RuntimeError)
	if !ok || rerr.Kind != cherr.UndefinedVariable {
		t.Fatalf("expected an UndefinedVariable RuntimeError, got %v", err)
	}
}
