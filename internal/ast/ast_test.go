package ast

import (
	"testing"

	"github.com/kyleoneill/chimerascript/internal/token"
)

func TestFunctionHasDecorator(t *testing.T) {
	fn := &Function{
		Name:       "my_case",
		Decorators: map[string]string{"test": "", "tag": "smoke"},
	}
	if !fn.HasDecorator("test") {
		t.Error("expected HasDecorator(\"test\") to be true")
	}
	if !fn.HasDecorator("tag") {
		t.Error("expected HasDecorator(\"tag\") to be true")
	}
	if fn.HasDecorator("missing") {
		t.Error("expected HasDecorator(\"missing\") to be false")
	}
}

func TestAssertOpString(t *testing.T) {
	cases := map[AssertOp]string{
		OpEquals:   "EQUALS",
		OpGTE:      "GTE",
		OpGT:       "GT",
		OpLTE:      "LTE",
		OpLT:       "LT",
		OpStatus:   "STATUS",
		OpLength:   "LENGTH",
		OpContains: "CONTAINS",
		AssertOp(99): "UNKNOWN",
	}
	for op, want := range cases {
		if got := op.String(); got != want {
			t.Errorf("AssertOp(%d).String() = %q, want %q", op, got, want)
		}
	}
}

func TestHTTPVerbString(t *testing.T) {
	cases := map[HTTPVerb]string{
		VerbGet:       "GET",
		VerbPut:       "PUT",
		VerbPost:      "POST",
		VerbDelete:    "DELETE",
		HTTPVerb(99):  "UNKNOWN",
	}
	for v, want := range cases {
		if got := v.String(); got != want {
			t.Errorf("HTTPVerb(%d).String() = %q, want %q", v, got, want)
		}
	}
}

func TestNodePositions(t *testing.T) {
	pos := token.Position{Line: 5, Column: 2}
	nodes := []Node{
		&Script{Position: pos},
		&Function{Position: pos},
		&Block{Position: pos},
		&Teardown{Position: pos},
		&AssignStmt{Position: pos},
		&AssertStmt{Position: pos},
		&PrintStmt{Position: pos},
		&ExprStmt{Position: pos},
		&LiteralExpr{Position: pos},
		&VarRef{Position: pos},
		&FormattedStringExpr{Position: pos},
		&ListOpExpr{Position: pos},
		&HttpExpr{Position: pos},
	}
	for _, n := range nodes {
		if n.Pos() != pos {
			t.Errorf("%T.Pos() = %+v, want %+v", n, n.Pos(), pos)
		}
	}
}

func TestBlockItemWrappersDelegatePos(t *testing.T) {
	pos := token.Position{Line: 1, Column: 1}
	stmt := &PrintStmt{Position: pos}
	item := StatementItem{Stmt: stmt}
	if item.Pos() != pos {
		t.Errorf("StatementItem.Pos() = %+v, want %+v", item.Pos(), pos)
	}

	fn := &Function{Position: pos}
	fnItem := FunctionItem{Fn: fn}
	if fnItem.Pos() != pos {
		t.Errorf("FunctionItem.Pos() = %+v, want %+v", fnItem.Pos(), pos)
	}
}
