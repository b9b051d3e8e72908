// Package ast defines the abstract syntax tree node types produced from a
// ChimeraScript parse tree: scripts, cases, statements, and expressions.
package ast

import "github.com/kyleoneill/chimerascript/internal/token"

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// Node is the common interface for every AST node.
type Node interface {
	Pos() token.Position
}

// Statement is a node that represents a statement.
type Statement interface {
	Node
	stmtNode()
}

// Expression is a node that represents an expression.
type Expression interface {
	Node
	exprNode()
}

// BlockItem is one element of a Block: a Statement, a nested Function, or
// a Teardown block.
type BlockItem interface {
	Node
	blockItemNode()
}

// ---------------------------------------------------------------------------
// Script / Function / Block
// ---------------------------------------------------------------------------

// Script is the root node of a parsed .chs file.
type Script struct {
	Functions []*Function
	Position  token.Position
}

func (n *Script) Pos() token.Position { return n.Position }

// Function is a named "case" block, possibly decorated.
type Function struct {
	Name       string
	Decorators map[string]string // decorator name -> value ("" for bare decorators)
	Body       *Block
	Position   token.Position
}

func (n *Function) Pos() token.Position { return n.Position }

// HasDecorator reports whether name was declared on this function,
// ignoring any inherited decorators.
func (n *Function) HasDecorator(name string) bool {
	_, ok := n.Decorators[name]
	return ok
}

// Block is an ordered sequence of statements, nested cases, and teardown
// blocks, as they appeared in source.
type Block struct {
	Items    []BlockItem
	Position token.Position
}

func (n *Block) Pos() token.Position { return n.Position }

// StatementItem wraps a Statement so it can appear in a Block's item list.
type StatementItem struct {
	Stmt Statement
}

func (n StatementItem) Pos() token.Position { return n.Stmt.Pos() }
func (n StatementItem) blockItemNode()      {}

// FunctionItem wraps a nested Function so it can appear in a Block's item
// list.
type FunctionItem struct {
	Fn *Function
}

func (n FunctionItem) Pos() token.Position { return n.Fn.Pos() }
func (n FunctionItem) blockItemNode()      {}

// Teardown is a TEARDOWN { ... } block. Per §3, multiple teardown blocks
// in one case all contribute to the same teardown stack in source order;
// the AST keeps them as separate items so that order is visible to the
// runner, which concatenates their statements.
type Teardown struct {
	Statements []Statement
	Position   token.Position
}

func (n *Teardown) Pos() token.Position { return n.Position }
func (n *Teardown) blockItemNode()      {}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// AssignStmt represents `var name = Expression;`.
type AssignStmt struct {
	Name     string
	Value    Expression
	Position token.Position
}

func (n *AssignStmt) Pos() token.Position { return n.Position }
func (n *AssignStmt) stmtNode()           {}

// AssertOp identifies the assertion predicate.
type AssertOp int

const (
	OpEquals AssertOp = iota
	OpGTE
	OpGT
	OpLTE
	OpLT
	OpStatus
	OpLength
	OpContains
)

func (op AssertOp) String() string {
	switch op {
	case OpEquals:
		return "EQUALS"
	case OpGTE:
		return "GTE"
	case OpGT:
		return "GT"
	case OpLTE:
		return "LTE"
	case OpLT:
		return "LT"
	case OpStatus:
		return "STATUS"
	case OpLength:
		return "LENGTH"
	case OpContains:
		return "CONTAINS"
	default:
		return "UNKNOWN"
	}
}

// AssertStmt represents `ASSERT [NOT] Op lhs rhs [message];`.
type AssertStmt struct {
	Op       AssertOp
	Negated  bool
	Lhs      Expression
	Rhs      Expression
	Message  Expression // may be nil; a QuoteString or FormattedString
	Position token.Position
}

func (n *AssertStmt) Pos() token.Position { return n.Position }
func (n *AssertStmt) stmtNode()           {}

// PrintStmt represents `PRINT Value;`.
type PrintStmt struct {
	Value    Expression
	Position token.Position
}

func (n *PrintStmt) Pos() token.Position { return n.Position }
func (n *PrintStmt) stmtNode()           {}

// ExprStmt is a standalone expression statement whose result is discarded
// (an HTTP call run for its side effects, typically).
type ExprStmt struct {
	Value    Expression
	Position token.Position
}

func (n *ExprStmt) Pos() token.Position { return n.Position }
func (n *ExprStmt) stmtNode()           {}

// ---------------------------------------------------------------------------
// Expressions: literals, variable refs, formatted strings
// ---------------------------------------------------------------------------

// LiteralKind identifies the kind of a LiteralExpr.
type LiteralKind int

const (
	LitNull LiteralKind = iota
	LitBool
	LitInt
	LitFloat
	LitStr
)

// LiteralExpr is a literal value appearing directly in source: a quoted
// string, a number, a boolean, or null.
type LiteralExpr struct {
	Kind     LiteralKind
	Bool     bool
	Int      int64
	Float    float64
	Str      string
	Position token.Position
}

func (n *LiteralExpr) Pos() token.Position { return n.Position }
func (n *LiteralExpr) exprNode()           {}

// VarRef is a non-empty dotted path of identifiers; each component is
// either an identifier (field lookup) or a digit sequence (list index).
type VarRef struct {
	Path     []string
	Position token.Position
}

func (n *VarRef) Pos() token.Position { return n.Position }
func (n *VarRef) exprNode()           {}

// FormatPart is one element of a FormattedStringExpr: either a literal
// text fragment or a variable interpolation.
type FormatPart struct {
	Literal string  // set when Var == nil
	Var     *VarRef // set when this part is a "(name)" interpolation
}

// FormattedStringExpr is a quoted string whose "(name)" occurrences are
// replaced by the display form of the referenced variable at evaluation
// time.
type FormattedStringExpr struct {
	Parts    []FormatPart
	Position token.Position
}

func (n *FormattedStringExpr) Pos() token.Position { return n.Position }
func (n *FormattedStringExpr) exprNode()           {}

// ---------------------------------------------------------------------------
// List operations
// ---------------------------------------------------------------------------

// ListOpKind identifies which list operation a ListOpExpr performs.
type ListOpKind int

const (
	ListNew ListOpKind = iota
	ListLength
	ListAppend
	ListRemove
	ListPop
)

// ListOpExpr represents `LIST NEW [...]` or `LIST (LENGTH|APPEND|REMOVE|POP) (var) [value]`.
type ListOpExpr struct {
	Kind     ListOpKind
	Items    []Expression // NEW only
	Target   *VarRef      // LENGTH/APPEND/REMOVE/POP only
	Value    Expression   // APPEND's item, or REMOVE's index; nil otherwise
	Position token.Position
}

func (n *ListOpExpr) Pos() token.Position { return n.Position }
func (n *ListOpExpr) exprNode()           {}

// ---------------------------------------------------------------------------
// HTTP calls
// ---------------------------------------------------------------------------

// HTTPVerb identifies the HTTP method of an HttpExpr.
type HTTPVerb int

const (
	VerbGet HTTPVerb = iota
	VerbPut
	VerbPost
	VerbDelete
)

func (v HTTPVerb) String() string {
	switch v {
	case VerbGet:
		return "GET"
	case VerbPut:
		return "PUT"
	case VerbPost:
		return "POST"
	case VerbDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// PathSegment is one fragment of a path component: either a literal
// identifier or a variable reference to be interpolated and URL-encoded
// at dispatch time. Consecutive segments within a PathComponent are
// concatenated with no separator (e.g. "res-(id)").
type PathSegment struct {
	Literal string
	Var     *VarRef
}

// PathComponent is one "/"-delimited component of an HTTP path, built
// from one or more concatenated PathSegments.
type PathComponent struct {
	Segments []PathSegment
}

// NamedValue is a `name = Value`, `name : Value`, or `name => Value` pair
// in an HTTP call's query/body/header/option lists.
type NamedValue struct {
	Name  string
	Value Expression
}

// HttpExpr represents a single HTTP call expression.
type HttpExpr struct {
	Verb     HTTPVerb
	Path     []PathComponent
	Query    []NamedValue
	Body     []NamedValue
	Headers  []NamedValue
	Options  []NamedValue
	Position token.Position
}

func (n *HttpExpr) Pos() token.Position { return n.Position }
func (n *HttpExpr) exprNode()           {}
