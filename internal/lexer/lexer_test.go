package lexer

import (
	"testing"

	"github.com/kyleoneill/chimerascript/internal/token"
)

func requireNoErrors(t *testing.T, errs []LexError) {
	t.Helper()
	if len(errs) > 0 {
		for _, e := range errs {
			t.Errorf("unexpected lex error: %s", e.Error())
		}
		t.FailNow()
	}
}

func requireTypes(t *testing.T, tokens []token.Token, expected []token.TokenType) {
	t.Helper()
	if len(tokens) != len(expected) {
		t.Fatalf("token count mismatch: got %d, want %d\ngot:  %s\nwant: %s",
			len(tokens), len(expected), fmtTypes(tokens), fmtExpected(expected))
	}
	for i, tt := range expected {
		if tokens[i].Type != tt {
			t.Errorf("token[%d]: got %s (%q), want %s", i, tokens[i].Type, tokens[i].Literal, tt)
		}
	}
}

func fmtTypes(tokens []token.Token) string {
	var s string
	for i, tk := range tokens {
		if i > 0 {
			s += ", "
		}
		s += tk.Type.String()
	}
	return s
}

func fmtExpected(types []token.TokenType) string {
	var s string
	for i, tt := range types {
		if i > 0 {
			s += ", "
		}
		s += tt.String()
	}
	return s
}

func TestEmptyInput(t *testing.T) {
	tokens, errs := New("").Tokenize()
	requireNoErrors(t, errs)
	requireTypes(t, tokens, []token.TokenType{token.EOF})
}

func TestWhitespaceAndComments(t *testing.T) {
	src := `
	// line comment
	/* block /* nested */ comment */
	case
	`
	tokens, errs := New(src).Tokenize()
	requireNoErrors(t, errs)
	requireTypes(t, tokens, []token.TokenType{token.CASE, token.EOF})
}

func TestUnterminatedBlockComment(t *testing.T) {
	_, errs := New("/* never closed").Tokenize()
	if len(errs) == 0 {
		t.Fatal("expected a lex error for an unterminated block comment")
	}
}

func TestKeywordsCaseSensitive(t *testing.T) {
	tokens, errs := New("case CASE Case").Tokenize()
	requireNoErrors(t, errs)
	requireTypes(t, tokens, []token.TokenType{token.CASE, token.IDENT, token.IDENT, token.EOF})
}

func TestIdentifierWithHyphenAndUnderscore(t *testing.T) {
	tokens, errs := New("my-ident_1").Tokenize()
	requireNoErrors(t, errs)
	if len(tokens) != 2 || tokens[0].Type != token.IDENT || tokens[0].Literal != "my-ident_1" {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}
}

func TestNumbers(t *testing.T) {
	cases := []struct {
		src     string
		wantTyp token.TokenType
		wantLit string
	}{
		{"0", token.INT, "0"},
		{"42", token.INT, "42"},
		{"-7", token.INT, "-7"},
		{"3.14", token.FLOAT, "3.14"},
		{"-0.5", token.FLOAT, "-0.5"},
		{"1e10", token.FLOAT, "1e10"},
		{"1e-5", token.FLOAT, "1e-5"},
	}
	for _, c := range cases {
		tokens, errs := New(c.src).Tokenize()
		requireNoErrors(t, errs)
		if len(tokens) != 2 {
			t.Fatalf("%q: expected 2 tokens, got %d", c.src, len(tokens))
		}
		if tokens[0].Type != c.wantTyp || tokens[0].Literal != c.wantLit {
			t.Errorf("%q: got %s %q, want %s %q", c.src, tokens[0].Type, tokens[0].Literal, c.wantTyp, c.wantLit)
		}
	}
}

func TestNegativeZeroIntegerIsIllegal(t *testing.T) {
	tokens, errs := New("-0").Tokenize()
	if len(errs) == 0 {
		t.Fatal("expected a lex error for \"-0\"")
	}
	if len(tokens) != 2 || tokens[0].Type != token.ILLEGAL || tokens[0].Literal != "-0" {
		t.Fatalf("got tokens %+v, want a single ILLEGAL \"-0\" token", tokens)
	}
}

func TestNegativeZeroWithExtraDigitsIsIllegal(t *testing.T) {
	tokens, errs := New("-00").Tokenize()
	if len(errs) == 0 {
		t.Fatal("expected a lex error for \"-00\"")
	}
	if tokens[0].Type != token.ILLEGAL || tokens[0].Literal != "-00" {
		t.Fatalf("got token %+v, want an ILLEGAL \"-00\" token", tokens[0])
	}
}

func TestNegativeZeroPointFiveIsLegalFloat(t *testing.T) {
	tokens, errs := New("-0.5").Tokenize()
	requireNoErrors(t, errs)
	if tokens[0].Type != token.FLOAT || tokens[0].Literal != "-0.5" {
		t.Fatalf("got token %+v, want FLOAT \"-0.5\"", tokens[0])
	}
}

func TestNumberBacktracksOnBareExponentLetter(t *testing.T) {
	// "5e" with no following digits: the trailing "e" is its own
	// identifier, not swallowed into a malformed float.
	tokens, errs := New("5e foo").Tokenize()
	requireNoErrors(t, errs)
	requireTypes(t, tokens, []token.TokenType{token.INT, token.IDENT, token.IDENT, token.EOF})
	if tokens[0].Literal != "5" || tokens[1].Literal != "e" {
		t.Fatalf("unexpected literals: %+v", tokens[:2])
	}
}

func TestStringEscapes(t *testing.T) {
	tokens, errs := New(`"line1\nline2\ttab\"quote\\backslash"`).Tokenize()
	requireNoErrors(t, errs)
	want := "line1\nline2\ttab\"quote\\backslash"
	if tokens[0].Literal != want {
		t.Fatalf("got %q, want %q", tokens[0].Literal, want)
	}
}

func TestStringUnicodeEscape(t *testing.T) {
	tokens, errs := New(`"Aé"`).Tokenize()
	requireNoErrors(t, errs)
	if tokens[0].Literal != "Aé" {
		t.Fatalf("got %q", tokens[0].Literal)
	}
}

func TestStringEscapedParensBecomeSentinels(t *testing.T) {
	tokens, errs := New(`"a \( not a var \)"`).Tokenize()
	requireNoErrors(t, errs)
	lit := tokens[0].Literal
	if !containsRune(lit, EscapedLParen) || !containsRune(lit, EscapedRParen) {
		t.Fatalf("expected escape sentinels in %q", lit)
	}
}

func containsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}

func TestUnterminatedString(t *testing.T) {
	_, errs := New(`"unterminated`).Tokenize()
	if len(errs) == 0 {
		t.Fatal("expected a lex error for an unterminated string")
	}
}

func TestOperatorsAndDelimiters(t *testing.T) {
	tokens, errs := New(`=> = ? & : ; , . / ( ) [ ] { }`).Tokenize()
	requireNoErrors(t, errs)
	requireTypes(t, tokens, []token.TokenType{
		token.ARROW, token.ASSIGN, token.QUESTION, token.AMP, token.COLON, token.SEMI,
		token.COMMA, token.DOT, token.SLASH, token.LPAREN, token.RPAREN,
		token.LBRACKET, token.RBRACKET, token.LBRACE, token.RBRACE, token.EOF,
	})
}

func TestIllegalCharacter(t *testing.T) {
	tokens, errs := New("@").Tokenize()
	if len(errs) == 0 {
		t.Fatal("expected a lex error for an illegal character")
	}
	requireTypes(t, tokens, []token.TokenType{token.ILLEGAL, token.EOF})
}

func TestPositionsTrackLinesAndColumns(t *testing.T) {
	tokens, _ := New("case\nfoo").Tokenize()
	if tokens[0].Pos.Line != 1 || tokens[0].Pos.Column != 1 {
		t.Errorf("case token pos = %+v", tokens[0].Pos)
	}
	if tokens[1].Pos.Line != 2 || tokens[1].Pos.Column != 1 {
		t.Errorf("foo token pos = %+v", tokens[1].Pos)
	}
}

func TestFullStatementTokenizes(t *testing.T) {
	src := `var x = LITERAL "hello";`
	tokens, errs := New(src).Tokenize()
	requireNoErrors(t, errs)
	requireTypes(t, tokens, []token.TokenType{
		token.VAR, token.IDENT, token.ASSIGN, token.LITERAL, token.STRING, token.SEMI, token.EOF,
	})
}
