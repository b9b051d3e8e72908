// Package parser implements a recursive-descent parser for ChimeraScript
// (.chs) source, consuming a token slice produced by internal/lexer and
// building the internal/ast tree.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kyleoneill/chimerascript/internal/ast"
	"github.com/kyleoneill/chimerascript/internal/lexer"
	"github.com/kyleoneill/chimerascript/internal/token"
)

// ParseError records a single error encountered while parsing.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// Parser converts a token stream into a *ast.Script.
type Parser struct {
	tokens []token.Token
	pos    int
	errors []ParseError
}

// New creates a Parser over tokens (must end with a token.EOF token).
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseFile lexes and parses src in one call, merging lexical and
// syntactic errors into a single ordered list.
func ParseFile(src string) (*ast.Script, []error) {
	toks, lexErrs := lexer.New(src).Tokenize()
	var errs []error
	for _, e := range lexErrs {
		errs = append(errs, e)
	}
	script, parseErrs := New(toks).Parse()
	for _, e := range parseErrs {
		errs = append(errs, e)
	}
	return script, errs
}

// Parse runs the parser to completion and returns the script AST along
// with any parse errors. A non-empty error slice means the script is not
// fit to execute, per spec §4.1 ("parse errors are fatal for the whole
// script").
func (p *Parser) Parse() (*ast.Script, []ParseError) {
	script := &ast.Script{}
	if len(p.tokens) > 0 {
		script.Position = p.tokens[0].Pos
	}
	for !p.atEnd() {
		fn := p.parseFunction()
		if fn != nil {
			script.Functions = append(script.Functions, fn)
		} else {
			p.synchronize()
		}
	}
	if len(script.Functions) == 0 {
		p.addError(script.Position, "expected at least one case definition")
	}
	return script, p.errors
}

// ---------------------------------------------------------------------------
// Token navigation
// ---------------------------------------------------------------------------

func (p *Parser) peek() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekType() token.TokenType { return p.peek().Type }

func (p *Parser) peekAt(offset int) token.Token {
	idx := p.pos + offset
	if idx >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[idx]
}

func (p *Parser) advance() token.Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) atEnd() bool { return p.peekType() == token.EOF }

func (p *Parser) match(tt token.TokenType) bool {
	if p.peekType() == tt {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(tt token.TokenType) token.Token {
	tok := p.peek()
	if tok.Type == tt {
		return p.advance()
	}
	p.addError(tok.Pos, fmt.Sprintf("expected %s, got %s", tt, tok.Type))
	return tok
}

func (p *Parser) expectIdent() string {
	tok := p.peek()
	if tok.Type == token.IDENT {
		p.advance()
		return tok.Literal
	}
	p.addError(tok.Pos, fmt.Sprintf("expected identifier, got %s", tok.Type))
	return tok.Literal
}

func (p *Parser) addError(pos token.Position, msg string) {
	p.errors = append(p.errors, ParseError{Line: pos.Line, Column: pos.Column, Message: msg})
}

// synchronize skips tokens until a plausible case-start, to keep finding
// further errors instead of stopping at the first one.
func (p *Parser) synchronize() {
	for !p.atEnd() {
		if p.peekType() == token.LBRACKET || p.peekType() == token.CASE {
			return
		}
		p.advance()
	}
}

// ---------------------------------------------------------------------------
// Function / Decorators / Block / Teardown
// ---------------------------------------------------------------------------

func startsFunction(tt token.TokenType) bool {
	return tt == token.LBRACKET || tt == token.CASE
}

func (p *Parser) parseFunction() *ast.Function {
	pos := p.peek().Pos
	var decorators map[string]string
	if p.peekType() == token.LBRACKET {
		decorators = p.parseDecorators()
	} else {
		decorators = map[string]string{}
	}
	p.expect(token.CASE)
	name := p.expectIdent()
	p.expect(token.LPAREN)
	p.expect(token.RPAREN)
	body := p.parseBlock()
	return &ast.Function{Name: name, Decorators: decorators, Body: body, Position: pos}
}

// parseDecorators implements `"[" DecItem ("," DecItem)* ","? "]"`.
func (p *Parser) parseDecorators() map[string]string {
	p.expect(token.LBRACKET)
	decs := map[string]string{}
	if p.peekType() == token.RBRACKET {
		p.advance()
		return decs
	}
	for {
		name := p.expectIdent()
		value := ""
		if p.match(token.ASSIGN) {
			value = p.expectIdent()
		}
		decs[name] = value
		if !p.match(token.COMMA) {
			break
		}
		if p.peekType() == token.RBRACKET {
			break
		}
	}
	p.expect(token.RBRACKET)
	return decs
}

// parseBlock implements `"{" (Statement | Function | Teardown)* "}" ";"?`.
func (p *Parser) parseBlock() *ast.Block {
	pos := p.expect(token.LBRACE).Pos
	var items []ast.BlockItem
	for p.peekType() != token.RBRACE && !p.atEnd() {
		switch {
		case p.peekType() == token.TEARDOWN:
			items = append(items, p.parseTeardown())
		case startsFunction(p.peekType()):
			fn := p.parseFunction()
			items = append(items, ast.FunctionItem{Fn: fn})
		default:
			stmt := p.parseStatement()
			if stmt != nil {
				items = append(items, ast.StatementItem{Stmt: stmt})
			} else {
				p.synchronizeStatement()
			}
		}
	}
	p.expect(token.RBRACE)
	p.match(token.SEMI)
	return &ast.Block{Items: items, Position: pos}
}

// synchronizeStatement skips to the next statement/function/teardown
// boundary after a malformed statement, so a block keeps parsing.
func (p *Parser) synchronizeStatement() {
	for !p.atEnd() {
		if p.peekType() == token.SEMI {
			p.advance()
			return
		}
		if p.peekType() == token.RBRACE || startsFunction(p.peekType()) || p.peekType() == token.TEARDOWN {
			return
		}
		p.advance()
	}
}

// parseTeardown implements `"TEARDOWN" "{" Statement* "}"`.
func (p *Parser) parseTeardown() *ast.Teardown {
	pos := p.expect(token.TEARDOWN).Pos
	p.expect(token.LBRACE)
	var stmts []ast.Statement
	for p.peekType() != token.RBRACE && !p.atEnd() {
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		} else {
			p.synchronizeStatement()
		}
	}
	p.expect(token.RBRACE)
	return &ast.Teardown{Statements: stmts, Position: pos}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseStatement() ast.Statement {
	pos := p.peek().Pos
	var stmt ast.Statement
	switch p.peekType() {
	case token.VAR:
		stmt = p.parseAssignStmt(pos)
	case token.ASSERT:
		stmt = p.parseAssertStmt(pos)
	case token.PRINT:
		stmt = p.parsePrintStmt(pos)
	case token.GET, token.PUT, token.POST, token.DELETE, token.LITERAL, token.LIST, token.FORMAT_STR:
		stmt = &ast.ExprStmt{Value: p.parseExpression(), Position: pos}
	default:
		p.addError(pos, fmt.Sprintf("expected a statement, got %s", p.peekType()))
		p.advance()
		return nil
	}
	p.expect(token.SEMI)
	return stmt
}

func (p *Parser) parseAssignStmt(pos token.Position) ast.Statement {
	p.advance() // "var"
	name := p.expectIdent()
	p.expect(token.ASSIGN)
	value := p.parseExpression()
	return &ast.AssignStmt{Name: name, Value: value, Position: pos}
}

func (p *Parser) parseAssertStmt(pos token.Position) ast.Statement {
	p.advance() // "ASSERT"
	negated := p.match(token.NOT)
	op := p.parseAssertOp()
	lhs := p.parseValue()
	rhs := p.parseValue()
	var message ast.Expression
	if p.peekType() == token.STRING {
		message = p.parseStringValue()
	}
	return &ast.AssertStmt{Op: op, Negated: negated, Lhs: lhs, Rhs: rhs, Message: message, Position: pos}
}

func (p *Parser) parseAssertOp() ast.AssertOp {
	tok := p.peek()
	op, ok := map[token.TokenType]ast.AssertOp{
		token.EQUALS:   ast.OpEquals,
		token.GTE:      ast.OpGTE,
		token.GT:       ast.OpGT,
		token.LTE:      ast.OpLTE,
		token.LT:       ast.OpLT,
		token.STATUS:   ast.OpStatus,
		token.LENGTH:   ast.OpLength,
		token.CONTAINS: ast.OpContains,
	}[tok.Type]
	if !ok {
		p.addError(tok.Pos, fmt.Sprintf("expected an assertion operator, got %s", tok.Type))
		return ast.OpEquals
	}
	p.advance()
	return op
}

func (p *Parser) parsePrintStmt(pos token.Position) ast.Statement {
	p.advance() // "PRINT"
	return &ast.PrintStmt{Value: p.parseValue(), Position: pos}
}

// ---------------------------------------------------------------------------
// Expression (assignment/statement RHS): Http | LITERAL | LIST | FORMAT_STR
// ---------------------------------------------------------------------------

func (p *Parser) parseExpression() ast.Expression {
	pos := p.peek().Pos
	switch p.peekType() {
	case token.GET, token.PUT, token.POST, token.DELETE:
		return p.parseHttpExpr()
	case token.LITERAL:
		p.advance()
		return p.parseLiteralValue(pos)
	case token.LIST:
		p.advance()
		return p.parseListExpr(pos)
	case token.FORMAT_STR:
		p.advance()
		tok := p.expect(token.STRING)
		return p.buildFormattedString(tok)
	default:
		p.addError(pos, fmt.Sprintf("expected an expression, got %s", p.peekType()))
		p.advance()
		return &ast.LiteralExpr{Kind: ast.LitNull, Position: pos}
	}
}

// ---------------------------------------------------------------------------
// Value (assert/http-argument/list-item RHS): LiteralValue | FormattedString | VarRef
// ---------------------------------------------------------------------------

func (p *Parser) parseValue() ast.Expression {
	pos := p.peek().Pos
	switch p.peekType() {
	case token.STRING:
		return p.parseStringValue()
	case token.INT, token.FLOAT:
		return p.parseLiteralValue(pos)
	case token.IDENT:
		if kind, ok := boolOrNullLiteral(p.peek().Literal); ok {
			p.advance()
			return kind
		}
		p.addError(pos, fmt.Sprintf("unexpected identifier %q; variable references must be parenthesized", p.peek().Literal))
		p.advance()
		return &ast.LiteralExpr{Kind: ast.LitNull, Position: pos}
	case token.LPAREN:
		return p.parseVarRef()
	default:
		p.addError(pos, fmt.Sprintf("expected a value, got %s", p.peekType()))
		p.advance()
		return &ast.LiteralExpr{Kind: ast.LitNull, Position: pos}
	}
}

// boolOrNullLiteral recognizes the case variants spec §4.1 allows for
// Boolean and Null literals (lexed as plain identifiers, see
// internal/token's keyword table).
func boolOrNullLiteral(ident string) (*ast.LiteralExpr, bool) {
	switch ident {
	case "true", "True":
		return &ast.LiteralExpr{Kind: ast.LitBool, Bool: true}, true
	case "false", "False":
		return &ast.LiteralExpr{Kind: ast.LitBool, Bool: false}, true
	case "null", "Null", "NULL":
		return &ast.LiteralExpr{Kind: ast.LitNull}, true
	default:
		return nil, false
	}
}

// parseLiteralValue parses QuoteString | Number | Boolean | Null for an
// explicit `LITERAL` expression position (strings here never interpolate,
// per §4.1's Expression production).
func (p *Parser) parseLiteralValue(pos token.Position) ast.Expression {
	tok := p.peek()
	switch tok.Type {
	case token.STRING:
		p.advance()
		return &ast.LiteralExpr{Kind: ast.LitStr, Str: stripEscapeSentinels(tok.Literal), Position: pos}
	case token.INT:
		p.advance()
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.addError(tok.Pos, fmt.Sprintf("invalid integer literal %q", tok.Literal))
		}
		return &ast.LiteralExpr{Kind: ast.LitInt, Int: n, Position: pos}
	case token.FLOAT:
		p.advance()
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.addError(tok.Pos, fmt.Sprintf("invalid float literal %q", tok.Literal))
		}
		return &ast.LiteralExpr{Kind: ast.LitFloat, Float: f, Position: pos}
	case token.IDENT:
		if lit, ok := boolOrNullLiteral(tok.Literal); ok {
			p.advance()
			lit.Position = pos
			return lit
		}
	}
	p.addError(tok.Pos, fmt.Sprintf("expected a literal value, got %s", tok.Type))
	p.advance()
	return &ast.LiteralExpr{Kind: ast.LitNull, Position: pos}
}

// parseStringValue parses a STRING token as a Value, auto-detecting
// QuoteString vs FormattedString by whether it contains an unescaped
// "(name[.name]*)" interpolation marker.
func (p *Parser) parseStringValue() ast.Expression {
	tok := p.expect(token.STRING)
	return p.buildFormattedString(tok)
}

// buildFormattedString splits a STRING token's literal into fragments and
// VarRef interpolations. A string with no interpolation returns a plain
// LiteralExpr (LitStr); otherwise a FormattedStringExpr.
func (p *Parser) buildFormattedString(tok token.Token) ast.Expression {
	parts, hasVar := p.splitInterpolations(tok)
	if !hasVar {
		var sb strings.Builder
		for _, part := range parts {
			sb.WriteString(part.Literal)
		}
		return &ast.LiteralExpr{Kind: ast.LitStr, Str: sb.String(), Position: tok.Pos}
	}
	return &ast.FormattedStringExpr{Parts: parts, Position: tok.Pos}
}

// splitInterpolations scans a lexed string literal for "(name.name…)"
// markers. lexer.EscapedLParen/EscapedRParen stand in for a literal,
// escaped parenthesis and are converted back to plain "(" / ")" text.
func (p *Parser) splitInterpolations(tok token.Token) ([]ast.FormatPart, bool) {
	src := tok.Literal
	var parts []ast.FormatPart
	var lit strings.Builder
	hasVar := false
	runes := []rune(src)
	flushLiteral := func() {
		if lit.Len() > 0 {
			parts = append(parts, ast.FormatPart{Literal: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case lexer.EscapedLParen:
			lit.WriteRune('(')
		case lexer.EscapedRParen:
			lit.WriteRune(')')
		case '(':
			end := -1
			for j := i + 1; j < len(runes); j++ {
				if runes[j] == ')' {
					end = j
					break
				}
				if runes[j] == '(' || runes[j] == lexer.EscapedLParen || runes[j] == lexer.EscapedRParen {
					break
				}
			}
			if end == -1 {
				p.addError(tok.Pos, fmt.Sprintf("unterminated variable interpolation in string %q", src))
				lit.WriteRune(r)
				continue
			}
			inner := string(runes[i+1 : end])
			path := strings.Split(inner, ".")
			valid := inner != ""
			for _, seg := range path {
				if seg == "" {
					valid = false
				}
			}
			if !valid {
				p.addError(tok.Pos, fmt.Sprintf("invalid variable interpolation %q", inner))
				lit.WriteRune(r)
				continue
			}
			flushLiteral()
			parts = append(parts, ast.FormatPart{Var: &ast.VarRef{Path: path, Position: tok.Pos}})
			hasVar = true
			i = end
		default:
			lit.WriteRune(r)
		}
	}
	flushLiteral()
	return parts, hasVar
}

// stripEscapeSentinels converts lexer.EscapedLParen/EscapedRParen back to
// plain parens for a QuoteString, which never interpolates.
func stripEscapeSentinels(s string) string {
	s = strings.ReplaceAll(s, string(lexer.EscapedLParen), "(")
	s = strings.ReplaceAll(s, string(lexer.EscapedRParen), ")")
	return s
}

// parseVarRef implements `VarRef = "(" Ident ("." Ident)* ")"`, extended
// per §3 to accept a digit-sequence component (a list index) wherever an
// identifier component is allowed.
func (p *Parser) parseVarRef() *ast.VarRef {
	pos := p.expect(token.LPAREN).Pos
	var path []string
	path = append(path, p.expectPathComponent())
	for p.match(token.DOT) {
		path = append(path, p.expectPathComponent())
	}
	p.expect(token.RPAREN)
	return &ast.VarRef{Path: path, Position: pos}
}

func (p *Parser) expectPathComponent() string {
	tok := p.peek()
	if tok.Type == token.IDENT || tok.Type == token.INT {
		p.advance()
		return tok.Literal
	}
	p.addError(tok.Pos, fmt.Sprintf("expected an identifier or index in a variable reference, got %s", tok.Type))
	return tok.Literal
}

// ---------------------------------------------------------------------------
// List operations
// ---------------------------------------------------------------------------

func (p *Parser) parseListExpr(pos token.Position) ast.Expression {
	switch p.peekType() {
	case token.NEW:
		p.advance()
		p.expect(token.LBRACKET)
		var items []ast.Expression
		if p.peekType() != token.RBRACKET {
			items = append(items, p.parseValue())
			for p.match(token.COMMA) {
				items = append(items, p.parseValue())
			}
		}
		p.expect(token.RBRACKET)
		return &ast.ListOpExpr{Kind: ast.ListNew, Items: items, Position: pos}
	case token.LENGTH, token.APPEND, token.REMOVE, token.POP:
		kindTok := p.advance()
		kind := map[token.TokenType]ast.ListOpKind{
			token.LENGTH: ast.ListLength,
			token.APPEND: ast.ListAppend,
			token.REMOVE: ast.ListRemove,
			token.POP:    ast.ListPop,
		}[kindTok.Type]
		target := p.parseVarRef()
		var value ast.Expression
		if kind == ast.ListAppend || kind == ast.ListRemove {
			value = p.parseValue()
		}
		return &ast.ListOpExpr{Kind: kind, Target: target, Value: value, Position: pos}
	default:
		p.addError(p.peek().Pos, fmt.Sprintf("expected NEW/LENGTH/APPEND/REMOVE/POP, got %s", p.peekType()))
		p.advance()
		return &ast.ListOpExpr{Kind: ast.ListNew, Position: pos}
	}
}

// ---------------------------------------------------------------------------
// HTTP calls
// ---------------------------------------------------------------------------

func (p *Parser) parseHttpExpr() ast.Expression {
	pos := p.peek().Pos
	verb := map[token.TokenType]ast.HTTPVerb{
		token.GET:    ast.VerbGet,
		token.PUT:    ast.VerbPut,
		token.POST:   ast.VerbPost,
		token.DELETE: ast.VerbDelete,
	}[p.peekType()]
	p.advance()

	path := p.parsePath()

	var query []ast.NamedValue
	if p.peekType() == token.QUESTION {
		query = p.parseQueryParams()
	}

	var body, headers, options []ast.NamedValue
	for p.peekType() == token.IDENT {
		switch p.peekAt(1).Type {
		case token.ASSIGN:
			name := p.advance().Literal
			p.advance() // "="
			body = append(body, ast.NamedValue{Name: name, Value: p.parseValue()})
		case token.COLON:
			name := p.advance().Literal
			p.advance() // ":"
			headers = append(headers, ast.NamedValue{Name: name, Value: p.parseValue()})
		case token.ARROW:
			name := p.advance().Literal
			p.advance() // "=>"
			options = append(options, ast.NamedValue{Name: name, Value: p.parseValue()})
		default:
			goto done
		}
	}
done:
	return &ast.HttpExpr{Verb: verb, Path: path, Query: query, Body: body, Headers: headers, Options: options, Position: pos}
}

// parsePath implements `Path = ("/" PathSeg+)+`.
func (p *Parser) parsePath() []ast.PathComponent {
	var components []ast.PathComponent
	for p.peekType() == token.SLASH {
		p.advance()
		var segs []ast.PathSegment
		for p.peekType() == token.IDENT || p.peekType() == token.LPAREN {
			// An identifier followed by "=", ":" or "=>" begins a body
			// param, header or option rather than another path segment.
			if next := p.peekAt(1).Type; p.peekType() == token.IDENT &&
				(next == token.ASSIGN || next == token.COLON || next == token.ARROW) {
				break
			}
			segs = append(segs, p.parsePathSeg())
		}
		if len(segs) == 0 {
			p.addError(p.peek().Pos, "expected a path segment after \"/\"")
			continue
		}
		components = append(components, ast.PathComponent{Segments: segs})
	}
	if len(components) == 0 {
		p.addError(p.peek().Pos, "expected an HTTP path starting with \"/\"")
	}
	return components
}

func (p *Parser) parsePathSeg() ast.PathSegment {
	if p.peekType() == token.LPAREN {
		return ast.PathSegment{Var: p.parseVarRef()}
	}
	tok := p.expect(token.IDENT)
	return ast.PathSegment{Literal: tok.Literal}
}

// parseQueryParams implements `"?" HttpAssign ("&" HttpAssign)*`.
func (p *Parser) parseQueryParams() []ast.NamedValue {
	p.expect(token.QUESTION)
	var query []ast.NamedValue
	query = append(query, p.parseHttpAssign())
	for p.match(token.AMP) {
		query = append(query, p.parseHttpAssign())
	}
	return query
}

func (p *Parser) parseHttpAssign() ast.NamedValue {
	name := p.expectIdent()
	p.expect(token.ASSIGN)
	return ast.NamedValue{Name: name, Value: p.parseValue()}
}
