// Package parser - command parser implementation
//
// EDUCATIONAL NOTES:
// ------------------
// A parser reads tokens from the lexer and builds an Abstract Syntax Tree (AST).
// This is the second phase of interpretation, after lexing.
//
// We use a "recursive descent" parser: each grammar rule becomes a function.
// - parseStatement() dispatches on the verb
// - parseInsertStatement() and parseSelectStatement() handle each verb
// - parseExpression() handles WHERE predicates with operator precedence
//
// The grammar:
//
//	INSERT INTO <table> [(<col>, ...)] VALUES (<value>, ...)
//	SELECT [* | <colref> [,] ...] FROM <table> [, <table>] [WHERE <predicate>]
//
//	colref    := <column> | <table>.<column>
//	predicate := predicate OR predicate
//	           | predicate AND predicate
//	           | ( predicate )
//	           | operand (= | > | < | startsWith) operand
//	operand   := colref | 'text' | "text" | number
//
// VALUES items are NOT expressions. A quoted item is stored without its
// quotes; anything else is taken verbatim from the input up to the next
// top-level comma and trimmed, so INSERT INTO t VALUES (John Smith, 42)
// stores "John Smith" and "42". A quote only opens a string at the start
// of an item: VALUES (O'Brien) stores "O'Brien".

package parser

import (
	"fmt"
	"strings"

	"github.com/cabewaldrop/csvdb/internal/dberror"
	"github.com/cabewaldrop/csvdb/internal/sql/lexer"
)

// Parser parses command tokens into an AST.
type Parser struct {
	lexer     *lexer.Lexer
	curToken  lexer.Token
	peekToken lexer.Token
	errors    []string
}

// New creates a new Parser for the given lexer.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{lexer: l}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse is shorthand for New(lexer.New(input)).Parse().
func Parse(input string) (Statement, error) {
	return New(lexer.New(input)).Parse()
}

// Parse parses the input and returns the AST.
//
// An input that does not start with INSERT or SELECT is an UnknownCommand
// error; any other syntax problem is a ParseError.
func (p *Parser) Parse() (Statement, error) {
	switch p.curToken.Type {
	case lexer.TokenSelect, lexer.TokenInsert:
	case lexer.TokenEOF:
		return nil, dberror.New(dberror.KindParse, "Parse", "empty command")
	default:
		return nil, dberror.New(dberror.KindUnknownCommand, "Parse", "unknown command %q", p.curToken.Literal)
	}

	stmt := p.parseStatement()
	if len(p.errors) == 0 && stmt != nil {
		p.expectEnd()
	}
	if len(p.errors) > 0 {
		return nil, dberror.New(dberror.KindParse, "Parse", "%s", strings.Join(p.errors, "; "))
	}
	return stmt, nil
}

// Errors returns any parsing errors encountered.
func (p *Parser) Errors() []string {
	return p.errors
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the next token is of the given type.
func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

// expectPeek advances if the next token is of the expected type.
func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

// peekError records an error for unexpected token type.
func (p *Parser) peekError(t lexer.TokenType) {
	p.errorf("expected %s, got %s", t, describe(p.peekToken))
}

func (p *Parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

// describe renders a token for error messages.
func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.TokenEOF:
		return "end of input"
	case lexer.TokenError:
		return tok.Literal
	default:
		return fmt.Sprintf("%q", tok.Literal)
	}
}

// expectEnd accepts an optional trailing semicolon followed by end of input.
func (p *Parser) expectEnd() {
	if p.peekTokenIs(lexer.TokenSemicolon) {
		p.nextToken()
	}
	if !p.peekTokenIs(lexer.TokenEOF) {
		p.errorf("unexpected %s after end of command", describe(p.peekToken))
	}
}

// parseStatement parses a statement based on its first token.
func (p *Parser) parseStatement() Statement {
	switch p.curToken.Type {
	case lexer.TokenSelect:
		if stmt := p.parseSelectStatement(); stmt != nil {
			return stmt
		}
	case lexer.TokenInsert:
		if stmt := p.parseInsertStatement(); stmt != nil {
			return stmt
		}
	}
	return nil
}

// parseSelectStatement parses: SELECT columns FROM t1 [, t2] [WHERE predicate]
func (p *Parser) parseSelectStatement() *SelectStatement {
	stmt := &SelectStatement{}

	columns, ok := p.parseColumnList()
	if !ok {
		return nil
	}
	stmt.Columns = columns

	if !p.expectPeek(lexer.TokenFrom) {
		return nil
	}

	for {
		if !p.expectPeek(lexer.TokenIdent) {
			return nil
		}
		stmt.Tables = append(stmt.Tables, p.curToken.Literal)
		if !p.peekTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}

	switch {
	case len(stmt.Tables) > 2:
		p.errorf("at most two tables may be joined, got %d", len(stmt.Tables))
		return nil
	case len(stmt.Tables) == 2 && stmt.Tables[0] == stmt.Tables[1]:
		p.errorf("table %q listed twice", stmt.Tables[0])
		return nil
	}

	if p.peekTokenIs(lexer.TokenWhere) {
		p.nextToken() // move to WHERE
		p.nextToken() // move past WHERE
		where := p.parseExpression(PrecedenceLowest)
		if where == nil {
			if len(p.errors) == 0 {
				p.errorf("expected predicate after WHERE, got %s", describe(p.curToken))
			}
			return nil
		}
		if err := validatePredicate(where); err != nil {
			p.errorf("%v", err)
			return nil
		}
		stmt.Where = where
	}

	return stmt
}

// parseColumnList parses the projection. Names may be separated by commas
// or whitespace. It leaves curToken on the last projection token.
func (p *Parser) parseColumnList() ([]*ColumnRef, bool) {
	if p.peekTokenIs(lexer.TokenAsterisk) {
		p.nextToken()
		return nil, true
	}

	var columns []*ColumnRef
	for p.peekTokenIs(lexer.TokenIdent) {
		p.nextToken()
		ref := p.parseColumnRef()
		if ref == nil {
			return nil, false
		}
		columns = append(columns, ref)

		if p.peekTokenIs(lexer.TokenComma) {
			p.nextToken()
			if !p.peekTokenIs(lexer.TokenIdent) {
				p.errorf("expected column name after ',', got %s", describe(p.peekToken))
				return nil, false
			}
		}
	}
	return columns, true
}

// parseColumnRef parses <column> or <table>.<column> starting at curToken.
func (p *Parser) parseColumnRef() *ColumnRef {
	name := p.curToken.Literal
	if !p.peekTokenIs(lexer.TokenDot) {
		return &ColumnRef{Column: name}
	}
	p.nextToken() // move to .
	if !p.expectPeek(lexer.TokenIdent) {
		return nil
	}
	return &ColumnRef{Table: name, Column: p.curToken.Literal}
}

// parseInsertStatement parses: INSERT INTO table [(columns)] VALUES (values)
func (p *Parser) parseInsertStatement() *InsertStatement {
	stmt := &InsertStatement{}

	if !p.expectPeek(lexer.TokenInto) {
		return nil
	}
	if !p.expectPeek(lexer.TokenIdent) {
		return nil
	}
	stmt.Table = p.curToken.Literal

	if p.peekTokenIs(lexer.TokenLeftParen) {
		p.nextToken()
		stmt.Columns = p.parseIdentifierList()
		if stmt.Columns == nil {
			return nil
		}
	}

	if !p.expectPeek(lexer.TokenValues) {
		return nil
	}
	if !p.expectPeek(lexer.TokenLeftParen) {
		return nil
	}

	values, ok := p.parseValueList()
	if !ok {
		return nil
	}
	stmt.Values = values
	return stmt
}

// parseIdentifierList parses a parenthesized list of column names. curToken
// is the opening parenthesis; on return it is the closing one.
func (p *Parser) parseIdentifierList() []string {
	var identifiers []string

	for {
		if !p.expectPeek(lexer.TokenIdent) {
			return nil
		}
		identifiers = append(identifiers, p.curToken.Literal)

		if p.peekTokenIs(lexer.TokenComma) {
			p.nextToken()
			continue
		}
		if !p.expectPeek(lexer.TokenRightParen) {
			return nil
		}
		return identifiers
	}
}

// parseValueList reads VALUES items up to the matching closing parenthesis.
// curToken is the opening parenthesis; on return it is the closing one.
func (p *Parser) parseValueList() ([]Value, bool) {
	if p.peekTokenIs(lexer.TokenRightParen) {
		p.nextToken()
		return []Value{}, true
	}

	input := p.lexer.Input()
	var values []Value

	for {
		var first, last lexer.Token
		count, depth := 0, 0

	scan:
		for {
			tok := p.peekToken
			switch {
			case tok.Type == lexer.TokenEOF:
				p.errorf("missing ')' after VALUES")
				return nil, false
			case tok.Type == lexer.TokenIllegal && tok.Literal == "\x00":
				p.errorf("unexpected NUL byte in VALUES")
				return nil, false
			case count > 0 && (tok.Type == lexer.TokenString || tok.Type == lexer.TokenError):
				end, ok := rawValueEnd(input, tok.Pos, depth)
				if !ok {
					p.errorf("missing ')' after VALUES")
					return nil, false
				}
				if strings.IndexByte(input[tok.Pos:end], 0) >= 0 {
					p.errorf("unexpected NUL byte in VALUES")
					return nil, false
				}
				last = lexer.Token{Pos: tok.Pos, End: end}
				p.lexer.Seek(end)
				p.peekToken = p.lexer.NextToken()
				continue
			case tok.Type == lexer.TokenError:
				p.errorf("%s", tok.Literal)
				return nil, false
			case depth == 0 && (tok.Type == lexer.TokenComma || tok.Type == lexer.TokenRightParen):
				break scan
			case tok.Type == lexer.TokenLeftParen:
				depth++
			case tok.Type == lexer.TokenRightParen:
				depth--
			}
			if count == 0 {
				first = tok
			}
			last = tok
			count++
			p.nextToken()
		}

		switch {
		case count == 0:
			values = append(values, Value{})
		case count == 1 && first.Type == lexer.TokenString:
			values = append(values, Value{Text: first.Literal, Quoted: true})
		default:
			values = append(values, Value{Text: strings.TrimSpace(input[first.Pos:last.End])})
		}

		p.nextToken() // move to , or )
		if p.curTokenIs(lexer.TokenRightParen) {
			return values, true
		}
	}
}

// rawValueEnd returns the offset of the comma or closing paren that ends
// the VALUES item containing from. depth is the paren nesting at from.
func rawValueEnd(input string, from, depth int) (int, bool) {
	for i := from; i < len(input); i++ {
		switch input[i] {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return i, true
			}
			depth--
		case ',':
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// ============================================================================
// Predicate Parsing with Operator Precedence
// ============================================================================

// EDUCATIONAL NOTE:
// -----------------
// Operator precedence determines which operators bind more tightly.
// AND binds tighter than OR, so "a = 1 OR b = 2 AND c = 3" is parsed as
// "a = 1 OR (b = 2 AND c = 3)". Parentheses override precedence.
//
// We use Pratt parsing (top-down operator precedence parsing):
// - Each precedence level is a number
// - Higher numbers bind more tightly
// - We recursively parse expressions, only consuming operators
//   that have precedence >= the current level

// Precedence levels
const (
	PrecedenceLowest     = iota
	PrecedenceOr         // OR
	PrecedenceAnd        // AND
	PrecedenceComparison // =, <, >, startsWith
)

// precedences maps token types to their precedence levels.
var precedences = map[lexer.TokenType]int{
	lexer.TokenOr:          PrecedenceOr,
	lexer.TokenAnd:         PrecedenceAnd,
	lexer.TokenEquals:      PrecedenceComparison,
	lexer.TokenLessThan:    PrecedenceComparison,
	lexer.TokenGreaterThan: PrecedenceComparison,
	lexer.TokenStartsWith:  PrecedenceComparison,
}

// peekPrecedence returns the precedence of the next token.
func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return PrecedenceLowest
}

// curPrecedence returns the precedence of the current token.
func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return PrecedenceLowest
}

// parseExpression parses an expression using Pratt parsing.
func (p *Parser) parseExpression(precedence int) Expression {
	left := p.parsePrefixExpression()
	if left == nil {
		return nil
	}

	for !p.peekTokenIs(lexer.TokenEOF) && precedence < p.peekPrecedence() {
		p.nextToken()
		left = p.parseInfixExpression(left)
		if left == nil {
			return nil
		}
	}

	return left
}

// parsePrefixExpression parses operands and parenthesized predicates.
func (p *Parser) parsePrefixExpression() Expression {
	switch p.curToken.Type {
	case lexer.TokenIdent:
		if ref := p.parseColumnRef(); ref != nil {
			return ref
		}
		return nil
	case lexer.TokenNumber:
		return &Literal{Value: p.curToken.Literal, Kind: LiteralNumber}
	case lexer.TokenString:
		return &Literal{Value: p.curToken.Literal, Kind: LiteralString}
	case lexer.TokenLeftParen:
		return p.parseGroupedExpression()
	case lexer.TokenError:
		p.errorf("%s", p.curToken.Literal)
		return nil
	default:
		p.errorf("unexpected %s in WHERE", describe(p.curToken))
		return nil
	}
}

// parseGroupedExpression parses expressions in parentheses.
func (p *Parser) parseGroupedExpression() Expression {
	p.nextToken() // consume (
	expr := p.parseExpression(PrecedenceLowest)
	if expr == nil {
		return nil
	}
	if !p.expectPeek(lexer.TokenRightParen) {
		return nil
	}
	return expr
}

// parseInfixExpression parses binary expressions (a = b, p AND q, ...).
func (p *Parser) parseInfixExpression(left Expression) Expression {
	opToken := p.curToken
	precedence := p.curPrecedence()

	p.nextToken()
	right := p.parseExpression(precedence)
	if right == nil {
		if len(p.errors) == 0 {
			p.errorf("expected operand after %s", opToken.Literal)
		}
		return nil
	}

	switch opToken.Type {
	case lexer.TokenAnd:
		return &LogicalExpression{Left: left, Operator: OpAnd, Right: right}
	case lexer.TokenOr:
		return &LogicalExpression{Left: left, Operator: OpOr, Right: right}
	case lexer.TokenEquals:
		return &ComparisonExpression{Left: left, Operator: OpEquals, Right: right}
	case lexer.TokenGreaterThan:
		return &ComparisonExpression{Left: left, Operator: OpGreaterThan, Right: right}
	case lexer.TokenLessThan:
		return &ComparisonExpression{Left: left, Operator: OpLessThan, Right: right}
	case lexer.TokenStartsWith:
		return &ComparisonExpression{Left: left, Operator: OpStartsWith, Right: right}
	default:
		p.errorf("unknown operator %q", opToken.Literal)
		return nil
	}
}

// validatePredicate checks that AND/OR combine comparisons and that
// comparisons combine plain operands.
func validatePredicate(expr Expression) error {
	switch e := expr.(type) {
	case *LogicalExpression:
		if err := validatePredicate(e.Left); err != nil {
			return err
		}
		return validatePredicate(e.Right)
	case *ComparisonExpression:
		if !isOperand(e.Left) || !isOperand(e.Right) {
			return fmt.Errorf("comparison %s must compare a column or literal on each side", e)
		}
		return nil
	default:
		return fmt.Errorf("%s is not a condition", expr)
	}
}

func isOperand(expr Expression) bool {
	switch expr.(type) {
	case *ColumnRef, *Literal:
		return true
	default:
		return false
	}
}
