package lexer

import (
	"testing"
)

func TestLexerBasicTokens(t *testing.T) {
	input := "SELECT * FROM users"

	l := New(input)
	tokens := l.Tokenize()

	expected := []struct {
		tokenType TokenType
		literal   string
	}{
		{TokenSelect, "SELECT"},
		{TokenAsterisk, "*"},
		{TokenFrom, "FROM"},
		{TokenIdent, "users"},
		{TokenEOF, ""},
	}

	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d", len(expected), len(tokens))
	}

	for i, exp := range expected {
		if tokens[i].Type != exp.tokenType {
			t.Errorf("token %d: expected type %s, got %s", i, exp.tokenType, tokens[i].Type)
		}
		if tokens[i].Literal != exp.literal {
			t.Errorf("token %d: expected literal %q, got %q", i, exp.literal, tokens[i].Literal)
		}
	}
}

func TestLexerQualifiedWhere(t *testing.T) {
	input := "SELECT name, age FROM users, orders WHERE users.age > 18 AND (name startsWith 'Jo' OR orders.qty < 3)"

	l := New(input)
	tokens := l.Tokenize()

	expected := []TokenType{
		TokenSelect,
		TokenIdent, // name
		TokenComma,
		TokenIdent, // age
		TokenFrom,
		TokenIdent, // users
		TokenComma,
		TokenIdent, // orders
		TokenWhere,
		TokenIdent, // users
		TokenDot,
		TokenIdent, // age
		TokenGreaterThan,
		TokenNumber, // 18
		TokenAnd,
		TokenLeftParen,
		TokenIdent, // name
		TokenStartsWith,
		TokenString, // 'Jo'
		TokenOr,
		TokenIdent, // orders
		TokenDot,
		TokenIdent, // qty
		TokenLessThan,
		TokenNumber, // 3
		TokenRightParen,
		TokenEOF,
	}

	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d: %v", len(expected), len(tokens), tokens)
	}

	for i, exp := range expected {
		if tokens[i].Type != exp {
			t.Errorf("token %d: expected type %s, got %s (literal: %q)",
				i, exp, tokens[i].Type, tokens[i].Literal)
		}
	}
}

func TestLexerKeywordsAreCaseSensitive(t *testing.T) {
	tests := []struct {
		input    string
		expected TokenType
	}{
		{"SELECT", TokenSelect},
		{"select", TokenIdent},
		{"Insert", TokenIdent},
		{"startsWith", TokenStartsWith},
		{"STARTSWITH", TokenIdent},
		{"and", TokenIdent},
	}

	for _, tt := range tests {
		tok := New(tt.input).NextToken()
		if tok.Type != tt.expected {
			t.Errorf("%q: expected %s, got %s", tt.input, tt.expected, tok.Type)
		}
	}
}

func TestLexerInsert(t *testing.T) {
	input := `INSERT INTO users (name, age) VALUES ('Alice', 30)`

	l := New(input)
	tokens := l.Tokenize()

	expectedTypes := []TokenType{
		TokenInsert,
		TokenInto,
		TokenIdent, // users
		TokenLeftParen,
		TokenIdent, // name
		TokenComma,
		TokenIdent, // age
		TokenRightParen,
		TokenValues,
		TokenLeftParen,
		TokenString, // 'Alice'
		TokenComma,
		TokenNumber, // 30
		TokenRightParen,
		TokenEOF,
	}

	if len(tokens) != len(expectedTypes) {
		t.Fatalf("expected %d tokens, got %d", len(expectedTypes), len(tokens))
	}

	for i, exp := range expectedTypes {
		if tokens[i].Type != exp {
			t.Errorf("token %d: expected type %s, got %s (literal: %q)",
				i, exp, tokens[i].Type, tokens[i].Literal)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []string{"123", "45.67", "-42", "0.5"}

	for _, input := range tests {
		tok := New(input).NextToken()
		if tok.Type != TokenNumber {
			t.Errorf("expected NUMBER for %q, got %s", input, tok.Type)
		}
		if tok.Literal != input {
			t.Errorf("expected literal %q, got %q", input, tok.Literal)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"'hello'", "hello"},
		{`"world"`, "world"},
		{"'it''s'", "it's"},
		{`"it's"`, "it's"},
		{`'say "hi"'`, `say "hi"`},
		{"'a, b'", "a, b"},
		{"''", ""},
	}

	for _, tt := range tests {
		tok := New(tt.input).NextToken()
		if tok.Type != TokenString {
			t.Errorf("expected STRING for %q, got %s", tt.input, tok.Type)
		}
		if tok.Literal != tt.expected {
			t.Errorf("expected literal %q, got %q", tt.expected, tok.Literal)
		}
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	tokens := New("SELECT 'oops").Tokenize()
	last := tokens[len(tokens)-1]
	if last.Type != TokenError {
		t.Fatalf("expected ERROR, got %s", last.Type)
	}
}

func TestLexerEmbeddedNUL(t *testing.T) {
	input := "SELECT a\x00 FROM t"
	tokens := New(input).Tokenize()

	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	expected := []TokenType{TokenSelect, TokenIdent, TokenIllegal, TokenFrom, TokenIdent, TokenEOF}
	if len(types) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, types)
	}
	for i := range expected {
		if types[i] != expected[i] {
			t.Errorf("token %d: expected %s, got %s", i, expected[i], types[i])
		}
	}
	if tokens[2].Pos != 8 {
		t.Errorf("expected NUL at 8, got %d", tokens[2].Pos)
	}
}

func TestLexerSpans(t *testing.T) {
	input := "VALUES (John Smith, 'x')"

	l := New(input)
	tokens := l.Tokenize()

	// John Smith spans two identifier tokens.
	john, smith := tokens[2], tokens[3]
	if got := input[john.Pos:smith.End]; got != "John Smith" {
		t.Errorf("expected span %q, got %q", "John Smith", got)
	}

	quoted := tokens[5]
	if got := input[quoted.Pos:quoted.End]; got != "'x'" {
		t.Errorf("expected span %q, got %q", "'x'", got)
	}

	eof := tokens[len(tokens)-1]
	if eof.Pos != len(input) {
		t.Errorf("expected EOF at %d, got %d", len(input), eof.Pos)
	}
}

func TestLexerOperators(t *testing.T) {
	input := "= < > * , . ; ( ) @"

	l := New(input)
	expectedTypes := []TokenType{
		TokenEquals,
		TokenLessThan,
		TokenGreaterThan,
		TokenAsterisk,
		TokenComma,
		TokenDot,
		TokenSemicolon,
		TokenLeftParen,
		TokenRightParen,
		TokenIllegal,
		TokenEOF,
	}

	for _, exp := range expectedTypes {
		tok := l.NextToken()
		if tok.Type != exp {
			t.Errorf("expected %s, got %s (literal: %q)", exp, tok.Type, tok.Literal)
		}
	}
}

func TestLexerPositionTracking(t *testing.T) {
	input := "SELECT\nname"

	l := New(input)

	tok := l.NextToken()
	if tok.Line != 1 {
		t.Errorf("SELECT should be on line 1, got %d", tok.Line)
	}

	tok = l.NextToken()
	if tok.Line != 2 {
		t.Errorf("name should be on line 2, got %d", tok.Line)
	}
}
