// Package lexer implements a lexical analyzer (tokenizer) for csvdb commands.
//
// EDUCATIONAL NOTES:
// ------------------
// A lexer (also called tokenizer or scanner) is the first phase of parsing.
// It reads the raw input string and converts it into a stream of tokens.
//
// For example, the input:
//   SELECT name FROM users WHERE users.age > 18
//
// Becomes these tokens:
//   [SELECT] [IDENT:name] [FROM] [IDENT:users] [WHERE]
//   [IDENT:users] [DOT] [IDENT:age] [GREATER_THAN] [NUMBER:18]
//
// The lexer handles:
// - Keywords (SELECT, INSERT, INTO, VALUES, FROM, WHERE, AND, OR, startsWith)
// - Identifiers (table names, column names)
// - Literals ('single' or "double" quoted strings, numbers)
// - Operators (=, <, >)
// - Punctuation (commas, dots, parentheses)
// - Whitespace (which we skip)
//
// Keywords are CASE-SENSITIVE: "select" is an identifier, not a keyword.
//
// Every token records its byte span in the input (Pos, End). The parser
// uses the spans to recover unquoted INSERT values exactly as typed.

package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenIllegal

	// Literals
	TokenIdent  // column names, table names
	TokenNumber // 123, -4, 45.67
	TokenString // 'hello' or "hello"

	// Keywords
	TokenSelect
	TokenInsert
	TokenInto
	TokenValues
	TokenFrom
	TokenWhere
	TokenAnd
	TokenOr
	TokenStartsWith

	// Operators
	TokenEquals      // =
	TokenLessThan    // <
	TokenGreaterThan // >
	TokenAsterisk    // *

	// Punctuation
	TokenComma      // ,
	TokenDot        // .
	TokenSemicolon  // ;
	TokenLeftParen  // (
	TokenRightParen // )
)

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int

	// Pos and End are the byte offsets of the token in the input.
	Pos int
	End int
}

// String returns a human-readable representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("Token{%s, %q, line:%d, col:%d}",
		t.Type, t.Literal, t.Line, t.Column)
}

var tokenNames = map[TokenType]string{
	TokenEOF:         "EOF",
	TokenError:       "ERROR",
	TokenIllegal:     "ILLEGAL",
	TokenIdent:       "IDENT",
	TokenNumber:      "NUMBER",
	TokenString:      "STRING",
	TokenSelect:      "SELECT",
	TokenInsert:      "INSERT",
	TokenInto:        "INTO",
	TokenValues:      "VALUES",
	TokenFrom:        "FROM",
	TokenWhere:       "WHERE",
	TokenAnd:         "AND",
	TokenOr:          "OR",
	TokenStartsWith:  "startsWith",
	TokenEquals:      "=",
	TokenLessThan:    "<",
	TokenGreaterThan: ">",
	TokenAsterisk:    "*",
	TokenComma:       ",",
	TokenDot:         ".",
	TokenSemicolon:   ";",
	TokenLeftParen:   "(",
	TokenRightParen:  ")",
}

// String returns the name of a token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(t))
}

// keywords maps keywords to their token types. Matching is exact.
var keywords = map[string]TokenType{
	"SELECT":     TokenSelect,
	"INSERT":     TokenInsert,
	"INTO":       TokenInto,
	"VALUES":     TokenValues,
	"FROM":       TokenFrom,
	"WHERE":      TokenWhere,
	"AND":        TokenAnd,
	"OR":         TokenOr,
	"startsWith": TokenStartsWith,
}

// LookupIdent returns the keyword type for ident, or TokenIdent.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdent
}

// Lexer tokenizes command input.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current character
	line    int
	column  int
}

// New creates a new Lexer for the given input.
func New(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// Input returns the text being tokenized.
func (l *Lexer) Input() string {
	return l.input
}

// Seek moves the lexer to byte offset pos, so the next token starts there.
func (l *Lexer) Seek(pos int) {
	pos = min(max(pos, 0), len(l.input))
	before := l.input[:pos]
	l.line = 1 + strings.Count(before, "\n")
	l.column = pos - (strings.LastIndexByte(before, '\n') + 1)
	l.readPos = pos
	l.readChar()
}

// readChar reads the next character and advances position.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL signifies EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.column++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
}

// peekChar looks at the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	var tok Token
	switch l.ch {
	case '=':
		tok = l.makeToken(TokenEquals)
	case '<':
		tok = l.makeToken(TokenLessThan)
	case '>':
		tok = l.makeToken(TokenGreaterThan)
	case '*':
		tok = l.makeToken(TokenAsterisk)
	case ',':
		tok = l.makeToken(TokenComma)
	case '.':
		tok = l.makeToken(TokenDot)
	case ';':
		tok = l.makeToken(TokenSemicolon)
	case '(':
		tok = l.makeToken(TokenLeftParen)
	case ')':
		tok = l.makeToken(TokenRightParen)
	case '-':
		if isDigit(l.peekChar()) {
			return l.readNumber()
		}
		tok = l.makeToken(TokenIllegal)
	case '\'', '"':
		return l.readString(l.ch)
	case 0:
		if l.pos < len(l.input) {
			// A NUL byte inside the input.
			tok = l.makeToken(TokenIllegal)
			break
		}
		return Token{Type: TokenEOF, Line: l.line, Column: l.column, Pos: len(l.input), End: len(l.input)}
	default:
		if isLetter(l.ch) {
			return l.readIdentifier()
		}
		if isDigit(l.ch) {
			return l.readNumber()
		}
		tok = l.makeToken(TokenIllegal)
	}

	l.readChar()
	return tok
}

// makeToken creates a single-character token at the current position.
func (l *Lexer) makeToken(tokenType TokenType) Token {
	return Token{
		Type:    tokenType,
		Literal: string(l.ch),
		Line:    l.line,
		Column:  l.column,
		Pos:     l.pos,
		End:     l.pos + 1,
	}
}

// skipWhitespace skips spaces, tabs, and newlines.
func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier() Token {
	startLine, startColumn, startPos := l.line, l.column, l.pos

	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}

	literal := l.input[startPos:l.pos]
	return Token{
		Type:    LookupIdent(literal),
		Literal: literal,
		Line:    startLine,
		Column:  startColumn,
		Pos:     startPos,
		End:     l.pos,
	}
}

// readNumber reads a numeric literal (integer or decimal, optionally negative).
func (l *Lexer) readNumber() Token {
	startLine, startColumn, startPos := l.line, l.column, l.pos

	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return Token{
		Type:    TokenNumber,
		Literal: l.input[startPos:l.pos],
		Line:    startLine,
		Column:  startColumn,
		Pos:     startPos,
		End:     l.pos,
	}
}

// readString reads a string literal enclosed in quote ('...' or "...").
//
// EDUCATIONAL NOTE:
// -----------------
// To include the quote character in a string, double it: 'it''s working'.
// The other quote character needs no escaping: "it's working".
func (l *Lexer) readString(quote byte) Token {
	startLine, startColumn, startPos := l.line, l.column, l.pos

	var sb strings.Builder
	l.readChar() // consume opening quote

	for {
		switch {
		case l.ch == quote && l.peekChar() == quote:
			sb.WriteByte(quote)
			l.readChar()
			l.readChar()
		case l.ch == quote:
			l.readChar()
			return Token{
				Type:    TokenString,
				Literal: sb.String(),
				Line:    startLine,
				Column:  startColumn,
				Pos:     startPos,
				End:     l.pos,
			}
		case l.ch == 0 && l.pos >= len(l.input):
			return Token{
				Type:    TokenError,
				Literal: "unterminated string",
				Line:    startLine,
				Column:  startColumn,
				Pos:     startPos,
				End:     len(l.input),
			}
		default:
			sb.WriteByte(l.ch)
			l.readChar()
		}
	}
}

// Tokenize returns all tokens from the input.
// Useful for debugging and testing.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens
}

// isLetter checks if the character can start an identifier. Bytes of
// multi-byte UTF-8 sequences count as letters.
func isLetter(ch byte) bool {
	return ch >= utf8.RuneSelf || unicode.IsLetter(rune(ch)) || ch == '_'
}

// isDigit checks if the character is a digit.
func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
