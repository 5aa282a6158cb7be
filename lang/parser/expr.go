package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mna/notlox/lang/ast"
	"github.com/mna/notlox/lang/scanner"
	"github.com/mna/notlox/lang/token"
)

// expression is the entry point of the precedence chain described in
// spec.md §4.2, low to high:
// compound-assignment → assignment → and/or → equality → comparison →
// range → addition → multiplication → unary-prefix → unary-postfix →
// primary.
func (p *parser) expression() ast.Expr { return p.compoundAssignment() }

func (p *parser) compoundAssignment() ast.Expr {
	left := p.assignment()

	var op ast.CompoundOp
	switch p.cur.Type {
	case token.PLUSEQ:
		op = ast.AddAssign
	case token.MINUSEQ:
		op = ast.SubAssign
	case token.STAREQ:
		op = ast.MulAssign
	case token.SLASHEQ:
		op = ast.DivAssign
	default:
		return left
	}
	line := p.cur.Line
	p.advance()
	value := p.compoundAssignment()
	return ast.NewCompoundAssignment(left, op, value, line)
}

func (p *parser) assignment() ast.Expr {
	left := p.andOr()
	if !p.check(token.EQ) {
		return left
	}
	line := p.cur.Line
	p.advance()
	value := p.assignment()
	lv, ok := left.(ast.LValue)
	if !ok {
		p.fail("invalid assignment target", line)
	}
	return ast.NewAssignment(lv, value, line)
}

func (p *parser) andOr() ast.Expr {
	left := p.equality()
	for {
		var op ast.BinaryOp
		switch p.cur.Type {
		case token.AMPAMP:
			op = ast.And
		case token.PIPEPIPE:
			op = ast.Or
		default:
			return left
		}
		line := p.cur.Line
		p.advance()
		right := p.equality()
		left = ast.NewBinary(op, left, right, line)
	}
}

func (p *parser) equality() ast.Expr {
	left := p.comparison()
	for {
		var op ast.BinaryOp
		switch p.cur.Type {
		case token.EQEQ:
			op = ast.Equal
		case token.BANGEQ:
			op = ast.NotEqual
		default:
			return left
		}
		line := p.cur.Line
		p.advance()
		right := p.comparison()
		left = ast.NewBinary(op, left, right, line)
	}
}

func (p *parser) comparison() ast.Expr {
	left := p.rangeExpr()
	for {
		var op ast.BinaryOp
		switch p.cur.Type {
		case token.LT:
			op = ast.Less
		case token.LE:
			op = ast.LessEqual
		case token.GT:
			op = ast.Greater
		case token.GE:
			op = ast.GreaterEqual
		default:
			return left
		}
		line := p.cur.Line
		p.advance()
		right := p.rangeExpr()
		left = ast.NewBinary(op, left, right, line)
	}
}

func (p *parser) rangeExpr() ast.Expr {
	left := p.addition()
	if !p.check(token.DOTDOT) {
		return left
	}
	line := p.cur.Line
	p.advance()
	right := p.addition()
	return ast.NewRange(left, right, line)
}

func (p *parser) addition() ast.Expr {
	left := p.multiplication()
	for {
		var op ast.BinaryOp
		switch p.cur.Type {
		case token.PLUS:
			op = ast.Add
		case token.MINUS:
			op = ast.Sub
		default:
			return left
		}
		line := p.cur.Line
		p.advance()
		right := p.multiplication()
		left = ast.NewBinary(op, left, right, line)
	}
}

func (p *parser) multiplication() ast.Expr {
	left := p.unaryPrefix()
	for {
		var op ast.BinaryOp
		switch p.cur.Type {
		case token.STAR:
			op = ast.Mul
		case token.SLASH:
			op = ast.Div
		case token.PERCENT:
			op = ast.Rem
		default:
			return left
		}
		line := p.cur.Line
		p.advance()
		right := p.unaryPrefix()
		left = ast.NewBinary(op, left, right, line)
	}
}

func (p *parser) unaryPrefix() ast.Expr {
	switch p.cur.Type {
	case token.MINUS:
		line := p.cur.Line
		p.advance()
		return ast.NewUnary(ast.Negate, p.unaryPrefix(), line)
	case token.BANG:
		line := p.cur.Line
		p.advance()
		return ast.NewUnary(ast.Not, p.unaryPrefix(), line)
	default:
		return p.unaryPostfix()
	}
}

// unaryPostfix parses a primary expression followed by a left-to-right chain
// of postfix operators: `[key]`, `.name` (desugared to `[name]`),
// `(args)` (a call), and `:name(args)` (a builtin call).
func (p *parser) unaryPostfix() ast.Expr {
	expr := p.primary()
	for {
		switch p.cur.Type {
		case token.LBRACKET:
			line := p.cur.Line
			p.advance()
			key := p.expression()
			p.expect(token.RBRACKET)
			expr = ast.NewIndex(expr, key, line)

		case token.DOT:
			line := p.cur.Line
			p.advance()
			name := p.expect(token.IDENT)
			expr = ast.NewIndex(expr, ast.NewStringLiteral(name.Lexeme, name.Line), line)

		case token.LPAREN:
			line := p.cur.Line
			args := p.callArgs()
			expr = ast.NewCall(expr, args, line)

		case token.COLON:
			line := p.cur.Line
			p.advance()
			name := p.expect(token.IDENT)
			args := p.callArgs()
			expr = ast.NewBuiltinCall(expr, name.Lexeme, args, line)

		default:
			return expr
		}
	}
}

func (p *parser) callArgs() []ast.Expr {
	p.expect(token.LPAREN)
	var args []ast.Expr
	if !p.check(token.RPAREN) {
		args = append(args, p.expression())
		for p.match(token.COMMA) {
			args = append(args, p.expression())
		}
	}
	p.expect(token.RPAREN)
	return args
}

func (p *parser) primary() ast.Expr {
	switch p.cur.Type {
	case token.NUMBER:
		tok := p.cur
		p.advance()
		n, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			p.fail(fmt.Sprintf("invalid number literal %q", tok.Lexeme), tok.Line)
		}
		return ast.NewNumberLiteral(n, tok.Line)

	case token.STRING:
		tok := p.cur
		p.advance()
		return ast.NewStringLiteral(p.resolveStringEscapes(scanner.StripQuotes(tok.Lexeme), tok.Line), tok.Line)

	case token.CHAR:
		tok := p.cur
		p.advance()
		return ast.NewCharLiteral(p.resolveCharEscape(scanner.StripQuotes(tok.Lexeme), tok.Line), tok.Line)

	case token.TRUE:
		line := p.cur.Line
		p.advance()
		return ast.NewBoolLiteral(true, line)

	case token.FALSE:
		line := p.cur.Line
		p.advance()
		return ast.NewBoolLiteral(false, line)

	case token.NIL:
		line := p.cur.Line
		p.advance()
		return ast.NewNilLiteral(line)

	case token.IDENT:
		tok := p.cur
		p.advance()
		return ast.NewVariable(tok.Lexeme, tok.Line)

	case token.LPAREN:
		line := p.cur.Line
		p.advance()
		inner := p.expression()
		p.expect(token.RPAREN)
		return ast.NewGrouping(inner, line)

	case token.LBRACE:
		return p.block()

	case token.LBRACKET:
		return p.arrayLit()

	case token.HASHBRACE:
		return p.mapLit()

	case token.IF:
		return p.ifExpr()

	case token.WHILE:
		return p.whileExpr()

	case token.FOR:
		return p.forExpr()

	case token.LOOP:
		return p.loopExpr()

	case token.BREAK:
		line := p.cur.Line
		p.advance()
		return ast.NewBreak(line)

	case token.CONTINUE:
		line := p.cur.Line
		p.advance()
		return ast.NewContinue(line)

	case token.RETURN:
		line := p.cur.Line
		p.advance()
		var value ast.Expr
		if !p.check(token.SEMICOLON) && !p.check(token.RBRACE) {
			value = p.expression()
		}
		return ast.NewReturn(value, line)

	default:
		p.fail("expected expression, found "+describeCurrent(p.cur), p.cur.Line)
		return nil // unreachable: fail panics
	}
}

func (p *parser) ifExpr() ast.Expr {
	line := p.cur.Line
	p.advance() // 'if'
	cond := p.expression()
	then := p.block()
	var els ast.Expr
	if p.match(token.ELSE) {
		if p.check(token.IF) {
			els = p.ifExpr()
		} else {
			els = p.block()
		}
	}
	return ast.NewIf(cond, then, els, line)
}

func (p *parser) whileExpr() ast.Expr {
	line := p.cur.Line
	p.advance() // 'while'
	cond := p.expression()
	block := p.block()
	return ast.NewWhile(cond, block, line)
}

func (p *parser) forExpr() ast.Expr {
	line := p.cur.Line
	p.advance() // 'for'
	v1 := p.expect(token.IDENT).Lexeme
	var v2 string
	if p.match(token.COMMA) {
		v2 = p.expect(token.IDENT).Lexeme
	}
	p.expect(token.IN)
	iterable := p.expression()
	block := p.block()
	return ast.NewFor(v1, v2, iterable, block, line)
}

func (p *parser) loopExpr() ast.Expr {
	line := p.cur.Line
	p.advance() // 'loop'
	block := p.block()
	return ast.NewLoop(block, line)
}

func (p *parser) arrayLit() ast.Expr {
	line := p.expect(token.LBRACKET).Line
	var elems []ast.Expr
	if !p.check(token.RBRACKET) {
		elems = append(elems, p.expression())
		for p.match(token.COMMA) {
			if p.check(token.RBRACKET) {
				break // trailing comma
			}
			elems = append(elems, p.expression())
		}
	}
	p.expect(token.RBRACKET)
	return ast.NewArray(elems, line)
}

func (p *parser) mapLit() ast.Expr {
	line := p.expect(token.HASHBRACE).Line
	var entries []ast.MapEntry
	if !p.check(token.RBRACE) {
		entries = append(entries, p.mapEntry())
		for p.match(token.COMMA) {
			if p.check(token.RBRACE) {
				break // trailing comma
			}
			entries = append(entries, p.mapEntry())
		}
	}
	p.expect(token.RBRACE)
	return ast.NewMap(entries, line)
}

func (p *parser) mapEntry() ast.MapEntry {
	if p.check(token.LBRACKET) {
		p.advance()
		key := p.expression()
		p.expect(token.RBRACKET)
		p.expect(token.COLON)
		value := p.expression()
		return ast.MapEntry{Key: key, Value: value}
	}

	name := p.expect(token.IDENT)
	if p.match(token.COLON) {
		value := p.expression()
		return ast.MapEntry{Key: ast.NewStringLiteral(name.Lexeme, name.Line), Value: value}
	}
	// shorthand: {name} means {name: name}
	return ast.MapEntry{
		Key:   ast.NewStringLiteral(name.Lexeme, name.Line),
		Value: ast.NewVariable(name.Lexeme, name.Line),
	}
}

// resolveStringEscapes resolves \n \t \r \\ \" escapes in a double-quoted
// string literal's raw (quote-stripped) contents, as spec.md §4.1 requires.
func (p *parser) resolveStringEscapes(raw string, line int) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '\\':
			sb.WriteByte('\\')
		case '"':
			sb.WriteByte('"')
		default:
			p.fail(fmt.Sprintf("invalid escape sequence \\%c", raw[i]), line)
		}
	}
	return sb.String()
}

// resolveCharEscape resolves a char literal's raw (quote-stripped) contents
// to the single byte it denotes, supporting the same \n \t \r \\ escapes.
func (p *parser) resolveCharEscape(raw string, line int) byte {
	if len(raw) == 0 {
		p.fail("empty char literal", line)
	}
	if raw[0] == '\\' {
		if len(raw) < 2 {
			p.fail("invalid char escape", line)
		}
		switch raw[1] {
		case 'n':
			return '\n'
		case 't':
			return '\t'
		case 'r':
			return '\r'
		case '\\':
			return '\\'
		default:
			p.fail(fmt.Sprintf("invalid escape sequence \\%c", raw[1]), line)
		}
	}
	if len(raw) != 1 {
		p.fail("char literal must contain exactly one character", line)
	}
	return raw[0]
}
