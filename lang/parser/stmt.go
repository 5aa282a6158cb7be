package parser

import (
	"github.com/mna/notlox/lang/ast"
	"github.com/mna/notlox/lang/token"
)

// statement parses one top-level or block-level statement.
func (p *parser) statement() ast.Stmt {
	switch p.cur.Type {
	case token.LET:
		return p.letStmt()
	case token.CONST:
		return p.constStmt()
	case token.FN:
		return p.fnStmt()
	case token.PRINT:
		return p.printStmt()
	default:
		line := p.cur.Line
		expr := p.expression()
		p.expect(token.SEMICOLON)
		return ast.NewExpressionStatement(expr, line)
	}
}

func (p *parser) letStmt() ast.Stmt {
	line := p.cur.Line
	p.advance() // 'let'
	name := p.expect(token.IDENT).Lexeme
	var init ast.Expr
	if p.match(token.EQ) {
		init = p.expression()
	}
	p.expect(token.SEMICOLON)
	return ast.NewLet(name, init, line)
}

func (p *parser) constStmt() ast.Stmt {
	line := p.cur.Line
	p.advance() // 'const'
	name := p.expect(token.IDENT).Lexeme
	p.expect(token.EQ)
	init := p.expression()
	p.expect(token.SEMICOLON)
	return ast.NewConst(name, init, line)
}

func (p *parser) fnStmt() ast.Stmt {
	line := p.cur.Line
	p.advance() // 'fn'
	name := p.expect(token.IDENT).Lexeme
	p.expect(token.LPAREN)
	var params []string
	if !p.check(token.RPAREN) {
		params = append(params, p.expect(token.IDENT).Lexeme)
		for p.match(token.COMMA) {
			params = append(params, p.expect(token.IDENT).Lexeme)
		}
	}
	p.expect(token.RPAREN)
	body := p.block()
	return ast.NewFn(name, params, body, line)
}

func (p *parser) printStmt() ast.Stmt {
	line := p.cur.Line
	p.advance() // 'print'
	expr := p.expression()
	p.expect(token.SEMICOLON)
	return ast.NewPrint(expr, line)
}

// block parses `{ stmts... tail_expr? }`. A statement inside a block is
// accepted either when followed by `;`, or when it is a block-like
// expression (Block|If|While|For) not at the end of the block — matching
// spec.md §4.2's "expression-statement without semicolon" rule for
// control-flow forms. Anything else found right before the closing `}`
// becomes the block's tail expression (its value); absent a tail
// expression, the block's value is Nil (enforced by the compiler, not the
// parser: an empty Block.Tail means "compile PushNil").
func (p *parser) block() *ast.Block {
	line := p.expect(token.LBRACE).Line

	var stmts []ast.Stmt
	var tail ast.Expr

loop:
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		switch p.cur.Type {
		case token.LET:
			stmts = append(stmts, p.letStmt())
		case token.CONST:
			stmts = append(stmts, p.constStmt())
		case token.FN:
			stmts = append(stmts, p.fnStmt())
		case token.PRINT:
			stmts = append(stmts, p.printStmt())
		default:
			exprLine := p.cur.Line
			expr := p.expression()
			switch {
			case p.match(token.SEMICOLON):
				stmts = append(stmts, ast.NewExpressionStatement(expr, exprLine))
				continue loop
			case isBlockLikeExpr(expr) && !p.check(token.RBRACE):
				stmts = append(stmts, ast.NewExpressionStatement(expr, exprLine))
				continue loop
			default:
				tail = expr
				break loop
			}
		}
	}

	p.expect(token.RBRACE)
	return ast.NewBlock(stmts, tail, line)
}

func isBlockLikeExpr(e ast.Expr) bool {
	switch e.(type) {
	case *ast.Block, *ast.If, *ast.While, *ast.For:
		return true
	default:
		return false
	}
}
