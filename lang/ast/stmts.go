package ast

// Let is a `let name = initializer?;` statement. At top level, Initializer
// must be a literal expression (spec.md §4.3); inside a function it may be
// any expression.
type Let struct {
	Name        string
	Initializer Expr // nil if omitted
	line        int
}

// NewLet returns a Let statement.
func NewLet(name string, init Expr, line int) *Let { return &Let{Name: name, Initializer: init, line: line} }

func (s *Let) Line() int { return s.line }
func (*Let) stmtNode()   {}

// Const is a `const name = initializer;` statement. At top level, like a
// Let, its initializer must be a literal; inside a function it may be any
// expression.
type Const struct {
	Name        string
	Initializer Expr
	line        int
}

func NewConst(name string, init Expr, line int) *Const { return &Const{Name: name, Initializer: init, line: line} }

func (s *Const) Line() int { return s.line }
func (*Const) stmtNode()   {}

// Print is a `print expr;` statement.
type Print struct {
	Expr Expr
	line int
}

func NewPrint(expr Expr, line int) *Print { return &Print{Expr: expr, line: line} }

func (s *Print) Line() int { return s.line }
func (*Print) stmtNode()   {}

// Fn is a `fn name(params) { body }` function declaration. It may appear at
// top level or nested inside any block; the compiler hoists nested Fn
// declarations to chunk scope (spec.md §4.3, "Deferred functions").
type Fn struct {
	Name   string
	Params []string
	Body   *Block
	line   int
}

func NewFn(name string, params []string, body *Block, line int) *Fn {
	return &Fn{Name: name, Params: params, Body: body, line: line}
}

func (s *Fn) Line() int { return s.line }
func (*Fn) stmtNode()   {}

// ExpressionStatement is a bare expression followed by `;`, or a block-like
// expression (Block, If, While, For) without a semicolon that is not the
// last thing in its block; at the end of a block such an expression becomes
// the block's tail expression instead — see Block.
type ExpressionStatement struct {
	Expr Expr
	line int
}

func NewExpressionStatement(expr Expr, line int) *ExpressionStatement {
	return &ExpressionStatement{Expr: expr, line: line}
}

func (s *ExpressionStatement) Line() int { return s.line }
func (*ExpressionStatement) stmtNode()   {}
