package parser

import (
	"fmt"
	"strconv"

	"github.com/rembrandb/rembrandb/internal/errors"
	"github.com/rembrandb/rembrandb/internal/lexer"
	"github.com/rembrandb/rembrandb/internal/table"
)

// defaultTable is queried when a statement has no FROM clause.
const defaultTable = "demo"

type Parser struct {
	tokens  []lexer.Token
	current int
	catalog *table.Catalog
	Errors  []error
}

func NewParser(tokens []lexer.Token, catalog *table.Catalog) *Parser {
	return &Parser{
		tokens:  tokens,
		catalog: catalog,
		Errors:  []error{},
	}
}

// Parse parses a single SELECT statement and resolves its column references
// against the catalog. A nil Query means syntax error; the first error is
// returned and all errors are collected on p.Errors.
func Parse(statement string, catalog *table.Catalog) (*Query, error) {
	scanner := lexer.NewScanner(statement)
	tokens := scanner.ScanTokens()
	if len(scanner.Errors) > 0 {
		return nil, scanner.Errors[0]
	}
	p := NewParser(tokens, catalog)
	query := p.ParseQuery()
	if len(p.Errors) > 0 {
		return nil, p.Errors[0]
	}
	return query, nil
}

// ParseQuery parses: SELECT expr [FROM ident] [WHERE expr]
func (p *Parser) ParseQuery() *Query {
	if !p.match(lexer.TokenSelect) {
		p.errorf("expected SELECT, found %s", p.peek())
		return nil
	}

	sel := p.expression()

	tableName := defaultTable
	if p.match(lexer.TokenFrom) {
		tok := p.consume(lexer.TokenIdent, "expected table name after FROM")
		tableName = tok.Lexeme
	}

	var where Operation
	if p.match(lexer.TokenWhere) {
		where = p.expression()
	}

	p.match(lexer.TokenSemicolon)
	if !p.isAtEnd() {
		p.errorf("unexpected trailing input starting at %s", p.peek())
	}
	if len(p.Errors) > 0 {
		return nil
	}

	tbl := p.catalog.Table(tableName)
	if tbl == nil {
		p.errorf("unknown table %q", tableName)
		return nil
	}

	query := &Query{Table: tbl, Select: sel, Where: where}
	p.resolve(query.Select, query)
	if query.Where != nil {
		p.resolve(query.Where, query)
	}
	if len(p.Errors) > 0 {
		return nil
	}
	return query
}

// resolve binds every ColumnRef in the tree to a column of the FROM table and
// records each distinct column, in order of first reference, on the query.
func (p *Parser) resolve(op Operation, query *Query) {
	switch n := op.(type) {
	case *Constant:
	case *ColumnRef:
		col := query.Table.Column(n.Name)
		if col == nil {
			p.errorf("unknown column %q in table %q", n.Name, query.Table.Name)
			return
		}
		n.Column = col
		for _, existing := range query.Columns {
			if existing == col {
				return
			}
		}
		query.Columns = append(query.Columns, col)
	case *BinOp:
		p.resolve(n.Left, query)
		p.resolve(n.Right, query)
	}
}

// Expression parsing, lowest precedence first: OR, AND, comparison,
// additive, multiplicative, primary.

func (p *Parser) expression() Operation {
	return p.or()
}

func (p *Parser) or() Operation {
	left := p.and()
	for p.match(lexer.TokenOr) {
		right := p.and()
		left = &BinOp{Kind: OpOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) and() Operation {
	left := p.comparison()
	for p.match(lexer.TokenAnd) {
		right := p.comparison()
		left = &BinOp{Kind: OpAnd, Left: left, Right: right}
	}
	return left
}

var comparisonOps = map[lexer.TokenType]BinOpKind{
	lexer.TokenLT:       OpLT,
	lexer.TokenLE:       OpLE,
	lexer.TokenEqual:    OpEQ,
	lexer.TokenNotEqual: OpNE,
	lexer.TokenGT:       OpGT,
	lexer.TokenGE:       OpGE,
}

func (p *Parser) comparison() Operation {
	left := p.term()
	if kind, ok := comparisonOps[p.peek().Type]; ok {
		p.advance()
		right := p.term()
		left = &BinOp{Kind: kind, Left: left, Right: right}
	}
	return left
}

func (p *Parser) term() Operation {
	left := p.factor()
	for {
		var kind BinOpKind
		switch {
		case p.match(lexer.TokenPlus):
			kind = OpAdd
		case p.match(lexer.TokenMinus):
			kind = OpSub
		default:
			return left
		}
		right := p.factor()
		left = &BinOp{Kind: kind, Left: left, Right: right}
	}
}

func (p *Parser) factor() Operation {
	left := p.primary()
	for {
		var kind BinOpKind
		switch {
		case p.match(lexer.TokenStar):
			kind = OpMul
		case p.match(lexer.TokenSlash):
			kind = OpDiv
		default:
			return left
		}
		right := p.primary()
		left = &BinOp{Kind: kind, Left: left, Right: right}
	}
}

func (p *Parser) primary() Operation {
	if p.match(lexer.TokenNumber) {
		lexeme := p.previous().Lexeme
		value, err := strconv.ParseFloat(lexeme, 64)
		if err != nil {
			p.errorf("invalid number %q", lexeme)
			return &Constant{}
		}
		return &Constant{Value: value}
	}
	if p.match(lexer.TokenMinus) {
		// unary minus: rewrite -x as 0 - x
		operand := p.primary()
		return &BinOp{Kind: OpSub, Left: &Constant{}, Right: operand}
	}
	if p.match(lexer.TokenIdent) {
		return &ColumnRef{Name: p.previous().Lexeme}
	}
	if p.match(lexer.TokenLParen) {
		expr := p.expression()
		p.consume(lexer.TokenRParen, "expected ')' after expression")
		return expr
	}
	p.errorf("expected expression, found %s", p.peek())
	p.advance()
	return &Constant{}
}

// Token plumbing, same shape as the scanner's cursor.

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, message string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	p.errorf("%s, found %s", message, p.peek())
	return p.peek()
}

func (p *Parser) check(t lexer.TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) previous() lexer.Token {
	return p.tokens[p.current-1]
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == lexer.TokenEOF
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.Errors = append(p.Errors, errors.NewSyntaxError(fmt.Sprintf(format, args...), p.peek().Pos))
}
