package compiler

import (
	"fmt"
	"io"
)

// Translator is a single-pass recursive-descent parser that emits atoms
// while it recognises the input.
//
// Grammar:
//
//	program     = stmt* EOF
//	stmt        = decl | "{" stmt* "}" | simple ";" | if | while | for
//	            | switch | "in" IDENT ";" | "out" (STRING | expr) ";"
//	            | "return" [expr] ";"
//	decl        = ["const"] type IDENT ( "(" params ")" ( "{" stmt* "}" | [";"] )
//	                                   | ["=" init] ("," IDENT ["=" init])* ";" )
//	params      = [["const"] type IDENT ("," ["const"] type IDENT)*]
//	simple      = IDENT ("=" expr | "(" args ")" | "++" | "--") | ("++" | "--") IDENT
//	expr        = and ("||" and)*
//	and         = rel ("&&" rel)*
//	rel         = add (("==" | "!=" | ">" | "<" | "<=") add)*
//	add         = mul (("+" | "-") mul)*
//	mul         = unary ("*" unary)*
//	unary       = ("!" | "-") unary | primary
//	primary     = INTEGER | CHARACTER | "(" expr ")" | ("++" | "--") IDENT
//	            | IDENT ["++" | "--" | "(" args ")"]
//	args        = [expr ("," expr)*]
type Translator struct {
	sc   *Scanner
	tok  Token
	prog *Program

	nextLabel int
	one       NumberOperand
	zero      NumberOperand
}

// NewTranslator prepares a translation of the source read from r.
func NewTranslator(r io.Reader) *Translator {
	return &Translator{
		sc:        NewScanner(r),
		prog:      newProgram(),
		nextLabel: 1,
		one:       NumberOperand{Value: 1},
		zero:      NumberOperand{Value: 0},
	}
}

// Program returns the tables and atoms built so far.
func (t *Translator) Program() *Program { return t.prog }

// Translate parses the whole input and computes stack offsets. The first
// error aborts the translation.
func (t *Translator) Translate() error {
	if err := t.advance(); err != nil {
		return err
	}
	if err := t.stmtList(GlobalScope); err != nil {
		return err
	}
	if t.tok.Type != EOF {
		return t.syntaxError(nil, "unexpected %s", describe(t.tok))
	}
	t.prog.Symbols.CalculateOffsets()
	return nil
}

func (t *Translator) errorAt(tok Token, sentinel error, format string, args ...any) error {
	return &CompileError{
		Kind:    SyntaxError,
		Line:    tok.Line,
		Msg:     fmt.Sprintf(format, args...),
		Snippet: t.sc.SourceLine(tok.Line),
		Err:     sentinel,
	}
}

func (t *Translator) syntaxError(sentinel error, format string, args ...any) error {
	return t.errorAt(t.tok, sentinel, format, args...)
}

// advance reads the next token; an ILLEGAL token becomes a LexicalError.
func (t *Translator) advance() error {
	t.tok = t.sc.NextToken()
	if t.tok.Type == ILLEGAL {
		return &CompileError{
			Kind:    LexicalError,
			Line:    t.tok.Line,
			Msg:     t.tok.Lexeme,
			Snippet: t.sc.SourceLine(t.tok.Line),
		}
	}
	return nil
}

// expect consumes the current token if it is tt.
func (t *Translator) expect(tt TokenType) error {
	if t.tok.Type != tt {
		return t.syntaxError(nil, "expected '%s', got %s", tt, describe(t.tok))
	}
	return t.advance()
}

// ident consumes an identifier and returns it.
func (t *Translator) ident() (Token, error) {
	tok := t.tok
	if tok.Type != IDENTIFIER {
		return tok, t.syntaxError(nil, "expected identifier, got %s", describe(tok))
	}
	return tok, t.advance()
}

func (t *Translator) emit(scope Scope, a Atom) {
	t.prog.Atoms[scope] = append(t.prog.Atoms[scope], a)
}

func (t *Translator) newLabel() LabelOperand {
	l := LabelOperand{ID: t.nextLabel}
	t.nextLabel++
	return l
}

func (t *Translator) lookupVar(scope Scope, name Token) (MemoryOperand, error) {
	v, ok := t.prog.Symbols.CheckVar(scope, name.Lexeme)
	if !ok {
		return v, t.errorAt(name, ErrUndeclared, "variable %s not declared", name.Lexeme)
	}
	return v, nil
}

// mutableVar resolves a variable that is about to be written.
func (t *Translator) mutableVar(scope Scope, name Token) (MemoryOperand, error) {
	v, err := t.lookupVar(scope, name)
	if err != nil {
		return v, err
	}
	if t.prog.Symbols.At(v.Index).Const {
		return v, t.errorAt(name, ErrConstAssign, "const variable %s can't be changed", name.Lexeme)
	}
	return v, nil
}

// ---- expressions ----

var (
	orOps  = map[TokenType]BinaryOp{OR_LOGICAL: OpOr}
	andOps = map[TokenType]BinaryOp{AND_LOGICAL: OpAnd}
	addOps = map[TokenType]BinaryOp{PLUS: OpAdd, MINUS: OpSub}
	mulOps = map[TokenType]BinaryOp{STAR: OpMul}
	relOps = map[TokenType]Condition{
		EQUALS:  CondEQ,
		NOT_EQ:  CondNE,
		GREATER: CondGT,
		LESS:    CondLT,
		LESS_EQ: CondLE,
	}
)

func (t *Translator) expr(scope Scope) (RValue, error) {
	return t.binary(scope, orOps, t.andExpr)
}

func (t *Translator) andExpr(scope Scope) (RValue, error) {
	return t.binary(scope, andOps, t.relExpr)
}

func (t *Translator) addExpr(scope Scope) (RValue, error) {
	return t.binary(scope, addOps, t.mulExpr)
}

func (t *Translator) mulExpr(scope Scope) (RValue, error) {
	return t.binary(scope, mulOps, t.unaryExpr)
}

// binary parses a left-associative level: each operator stores the
// partial result in a fresh temporary that becomes the next left operand.
func (t *Translator) binary(scope Scope, ops map[TokenType]BinaryOp, operand func(Scope) (RValue, error)) (RValue, error) {
	left, err := operand(scope)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := ops[t.tok.Type]
		if !ok {
			return left, nil
		}
		if err := t.advance(); err != nil {
			return nil, err
		}
		right, err := operand(scope)
		if err != nil {
			return nil, err
		}
		r := t.prog.Symbols.Alloc(scope)
		t.emit(scope, BinaryAtom{Op: op, Left: left, Right: right, Result: r})
		left = r
	}
}

// relExpr materialises each comparison as 1 or 0 in a temporary.
func (t *Translator) relExpr(scope Scope) (RValue, error) {
	left, err := t.addExpr(scope)
	if err != nil {
		return nil, err
	}
	for {
		cond, ok := relOps[t.tok.Type]
		if !ok {
			return left, nil
		}
		if err := t.advance(); err != nil {
			return nil, err
		}
		right, err := t.addExpr(scope)
		if err != nil {
			return nil, err
		}
		s := t.prog.Symbols.Alloc(scope)
		l := t.newLabel()
		t.emit(scope, UnaryAtom{Op: OpMov, Operand: t.one, Result: s})
		t.emit(scope, CondJumpAtom{Cond: cond, Left: left, Right: right, Label: l})
		t.emit(scope, UnaryAtom{Op: OpMov, Operand: t.zero, Result: s})
		t.emit(scope, LabelAtom{Label: l})
		left = s
	}
}

func (t *Translator) unaryExpr(scope Scope) (RValue, error) {
	var op UnaryOp
	switch t.tok.Type {
	case NOT:
		op = OpNot
	case MINUS:
		op = OpNeg
	default:
		return t.primary(scope)
	}
	if err := t.advance(); err != nil {
		return nil, err
	}
	p, err := t.unaryExpr(scope)
	if err != nil {
		return nil, err
	}
	r := t.prog.Symbols.Alloc(scope)
	t.emit(scope, UnaryAtom{Op: op, Operand: p, Result: r})
	return r, nil
}

func (t *Translator) primary(scope Scope) (RValue, error) {
	switch t.tok.Type {
	case INTEGER, CHARACTER:
		v := t.tok.Value
		if err := t.advance(); err != nil {
			return nil, err
		}
		return NumberOperand{Value: v}, nil

	case LPAREN:
		if err := t.advance(); err != nil {
			return nil, err
		}
		e, err := t.expr(scope)
		if err != nil {
			return nil, err
		}
		return e, t.expect(RPAREN)

	case PLUS_PLUS, MINUS_MINUS:
		return t.prefixStep(scope)

	case IDENTIFIER:
		name := t.tok
		if err := t.advance(); err != nil {
			return nil, err
		}
		return t.identTail(scope, name)
	}
	return nil, t.syntaxError(nil, "expected expression, got %s", describe(t.tok))
}

// prefixStep handles ++id and --id: the variable is updated in place and
// is itself the value.
func (t *Translator) prefixStep(scope Scope) (RValue, error) {
	op := stepOp(t.tok.Type)
	if err := t.advance(); err != nil {
		return nil, err
	}
	name, err := t.ident()
	if err != nil {
		return nil, err
	}
	v, err := t.mutableVar(scope, name)
	if err != nil {
		return nil, err
	}
	t.emit(scope, BinaryAtom{Op: op, Left: v, Right: t.one, Result: v})
	return v, nil
}

// identTail handles what may follow an identifier inside an expression.
func (t *Translator) identTail(scope Scope, name Token) (RValue, error) {
	switch t.tok.Type {
	case PLUS_PLUS, MINUS_MINUS:
		op := stepOp(t.tok.Type)
		v, err := t.mutableVar(scope, name)
		if err != nil {
			return nil, err
		}
		if err := t.advance(); err != nil {
			return nil, err
		}
		r := t.prog.Symbols.Alloc(scope)
		t.emit(scope, UnaryAtom{Op: OpMov, Operand: v, Result: r})
		t.emit(scope, BinaryAtom{Op: op, Left: v, Right: t.one, Result: v})
		return r, nil

	case LPAREN:
		return t.call(scope, name)
	}
	return t.lookupVar(scope, name)
}

func stepOp(tt TokenType) BinaryOp {
	if tt == MINUS_MINUS {
		return OpSub
	}
	return OpAdd
}

// call parses "(args)" after name and emits the call into a temporary.
func (t *Translator) call(scope Scope, name Token) (MemoryOperand, error) {
	if err := t.advance(); err != nil {
		return MemoryOperand{}, err
	}
	n, err := t.args(scope)
	if err != nil {
		return MemoryOperand{}, err
	}
	if err := t.expect(RPAREN); err != nil {
		return MemoryOperand{}, err
	}
	f, ok := t.prog.Symbols.CheckFunc(name.Lexeme, n)
	if !ok {
		sentinel := ErrUndeclared
		if _, exists := t.prog.Symbols.LookupFunc(name.Lexeme); exists {
			sentinel = ErrArity
		}
		return f, t.errorAt(name, sentinel, "function %s not found with %d parameters", name.Lexeme, n)
	}
	r := t.prog.Symbols.Alloc(scope)
	t.emit(scope, CallAtom{Func: f, Result: r})
	return r, nil
}

func startsExpr(tt TokenType) bool {
	switch tt {
	case IDENTIFIER, INTEGER, CHARACTER, LPAREN, NOT, MINUS, PLUS_PLUS, MINUS_MINUS:
		return true
	}
	return false
}

// args parses a possibly empty argument list. Each PARAM atom is emitted
// after the rest of the list, so the atoms come out last argument first.
func (t *Translator) args(scope Scope) (int, error) {
	if !startsExpr(t.tok.Type) {
		return 0, nil
	}
	p, err := t.expr(scope)
	if err != nil {
		return 0, err
	}
	n := 1
	if t.tok.Type == COMMA {
		if err := t.advance(); err != nil {
			return 0, err
		}
		if !startsExpr(t.tok.Type) {
			return 0, t.syntaxError(nil, "expected argument, got %s", describe(t.tok))
		}
		rest, err := t.args(scope)
		if err != nil {
			return 0, err
		}
		n += rest
	}
	t.emit(scope, ParamAtom{Value: p})
	return n, nil
}

// ---- declarations ----

func (t *Translator) typeName() (SymbolType, error) {
	var typ SymbolType
	switch t.tok.Type {
	case INT:
		typ = TypeInt
	case CHAR:
		typ = TypeChar
	default:
		return TypeUnknown, t.syntaxError(nil, "expected type, got %s", describe(t.tok))
	}
	return typ, t.advance()
}

// constant parses an initializer or case value.
func (t *Translator) constant() (int, error) {
	sign := 1
	if t.tok.Type == MINUS {
		sign = -1
		if err := t.advance(); err != nil {
			return 0, err
		}
	}
	if t.tok.Type != INTEGER && t.tok.Type != CHARACTER {
		return 0, t.syntaxError(nil, "expected constant, got %s", describe(t.tok))
	}
	v := sign * t.tok.Value
	return v, t.advance()
}

func (t *Translator) declaration(scope Scope) error {
	isConst := t.tok.Type == CONST
	if isConst {
		if err := t.advance(); err != nil {
			return err
		}
	}
	typ, err := t.typeName()
	if err != nil {
		return err
	}
	name, err := t.ident()
	if err != nil {
		return err
	}
	if t.tok.Type == LPAREN {
		if isConst {
			return t.errorAt(name, nil, "function %s can't be const", name.Lexeme)
		}
		return t.function(scope, typ, name)
	}

	if err := t.declarator(scope, typ, isConst, name); err != nil {
		return err
	}
	for t.tok.Type == COMMA {
		if err := t.advance(); err != nil {
			return err
		}
		name, err := t.ident()
		if err != nil {
			return err
		}
		if err := t.declarator(scope, typ, isConst, name); err != nil {
			return err
		}
	}
	return t.expect(SEMICOLON)
}

// declarator declares one variable. Globals take a constant initializer
// stored in the data section; locals take any expression, assigned at the
// point of declaration.
func (t *Translator) declarator(scope Scope, typ SymbolType, isConst bool, name Token) error {
	init := 0
	var value RValue
	if t.tok.Type == ASSIGN {
		if err := t.advance(); err != nil {
			return err
		}
		if scope == GlobalScope {
			v, err := t.constant()
			if err != nil {
				return err
			}
			init = v
		} else {
			p, err := t.expr(scope)
			if err != nil {
				return err
			}
			if n, ok := p.(NumberOperand); ok {
				init = n.Value
			}
			value = p
		}
	}
	v, ok := t.prog.Symbols.AddVar(name.Lexeme, scope, typ, init, isConst)
	if !ok {
		return t.errorAt(name, ErrDuplicate, "variable %s already declared", name.Lexeme)
	}
	if value != nil {
		t.emit(scope, UnaryAtom{Op: OpMov, Operand: value, Result: v})
	}
	return nil
}

// function parses a parameter list and optional body. Every function ends
// with an implicit return of zero.
func (t *Translator) function(scope Scope, typ SymbolType, name Token) error {
	if scope != GlobalScope {
		return t.errorAt(name, ErrNestedFunction, "function definition inside function")
	}
	f, ok := t.prog.Symbols.AddFunc(name.Lexeme, typ, -1)
	if !ok {
		return t.errorAt(name, ErrDuplicate, "function %s already declared", name.Lexeme)
	}
	fs := Scope(f.Index)
	if err := t.advance(); err != nil {
		return err
	}
	n, err := t.params(fs)
	if err != nil {
		return err
	}
	t.prog.Symbols.SetFuncLen(name.Lexeme, n)
	if err := t.expect(RPAREN); err != nil {
		return err
	}

	switch t.tok.Type {
	case LBRACE:
		if err := t.advance(); err != nil {
			return err
		}
		if err := t.stmtList(fs); err != nil {
			return err
		}
		if err := t.expect(RBRACE); err != nil {
			return err
		}
	case SEMICOLON:
		if err := t.advance(); err != nil {
			return err
		}
	}
	t.emit(fs, RetAtom{Value: t.zero})
	return nil
}

func (t *Translator) params(fs Scope) (int, error) {
	switch t.tok.Type {
	case CONST, INT, CHAR:
	default:
		return 0, nil
	}
	n := 0
	for {
		isConst := t.tok.Type == CONST
		if isConst {
			if err := t.advance(); err != nil {
				return 0, err
			}
		}
		typ, err := t.typeName()
		if err != nil {
			return 0, err
		}
		name, err := t.ident()
		if err != nil {
			return 0, err
		}
		if _, ok := t.prog.Symbols.AddVar(name.Lexeme, fs, typ, 0, isConst); !ok {
			return 0, t.errorAt(name, ErrDuplicate, "parameter %s already declared", name.Lexeme)
		}
		n++
		if t.tok.Type != COMMA {
			return n, nil
		}
		if err := t.advance(); err != nil {
			return 0, err
		}
	}
}

// ---- statements ----

// stmtList stops at end of input, '}', case or default.
func (t *Translator) stmtList(scope Scope) error {
	for {
		switch t.tok.Type {
		case EOF, RBRACE, CASE, DEFAULT:
			return nil
		}
		if err := t.stmt(scope); err != nil {
			return err
		}
	}
}

func (t *Translator) stmt(scope Scope) error {
	switch t.tok.Type {
	case INT, CHAR, CONST:
		return t.declaration(scope)
	}
	if scope == GlobalScope {
		return t.syntaxError(ErrOutsideFunction, "operator should be inside function")
	}

	switch t.tok.Type {
	case LBRACE:
		if err := t.advance(); err != nil {
			return err
		}
		if err := t.stmtList(scope); err != nil {
			return err
		}
		return t.expect(RBRACE)
	case IDENTIFIER, PLUS_PLUS, MINUS_MINUS:
		if err := t.simple(scope); err != nil {
			return err
		}
		return t.expect(SEMICOLON)
	case IF:
		return t.ifStmt(scope)
	case WHILE:
		return t.whileStmt(scope)
	case FOR:
		return t.forStmt(scope)
	case SWITCH:
		return t.switchStmt(scope)
	case IN:
		return t.inStmt(scope)
	case OUT:
		return t.outStmt(scope)
	case RETURN:
		return t.returnStmt(scope)
	}
	return t.syntaxError(nil, "unexpected %s", describe(t.tok))
}

// simple parses an assignment, a call or an increment/decrement.
func (t *Translator) simple(scope Scope) error {
	if t.tok.Type != IDENTIFIER {
		_, err := t.prefixStep(scope)
		return err
	}
	name := t.tok
	if err := t.advance(); err != nil {
		return err
	}
	switch t.tok.Type {
	case LPAREN:
		_, err := t.call(scope, name)
		return err

	case ASSIGN:
		v, err := t.mutableVar(scope, name)
		if err != nil {
			return err
		}
		if err := t.advance(); err != nil {
			return err
		}
		p, err := t.expr(scope)
		if err != nil {
			return err
		}
		t.emit(scope, UnaryAtom{Op: OpMov, Operand: p, Result: v})
		return nil

	case PLUS_PLUS, MINUS_MINUS:
		v, err := t.mutableVar(scope, name)
		if err != nil {
			return err
		}
		t.emit(scope, BinaryAtom{Op: stepOp(t.tok.Type), Left: v, Right: t.one, Result: v})
		return t.advance()
	}
	return t.syntaxError(nil, "expected '=', '(' or '++' after %s, got %s", name.Lexeme, describe(t.tok))
}

// condition parses "( expr )".
func (t *Translator) condition(scope Scope) (RValue, error) {
	if err := t.expect(LPAREN); err != nil {
		return nil, err
	}
	p, err := t.expr(scope)
	if err != nil {
		return nil, err
	}
	return p, t.expect(RPAREN)
}

func (t *Translator) ifStmt(scope Scope) error {
	if err := t.advance(); err != nil {
		return err
	}
	p, err := t.condition(scope)
	if err != nil {
		return err
	}
	l1, l2 := t.newLabel(), t.newLabel()
	t.emit(scope, CondJumpAtom{Cond: CondEQ, Left: p, Right: t.zero, Label: l1})
	if err := t.stmt(scope); err != nil {
		return err
	}
	t.emit(scope, JumpAtom{Label: l2})
	t.emit(scope, LabelAtom{Label: l1})
	if t.tok.Type == ELSE {
		if err := t.advance(); err != nil {
			return err
		}
		if err := t.stmt(scope); err != nil {
			return err
		}
	}
	t.emit(scope, LabelAtom{Label: l2})
	return nil
}

func (t *Translator) whileStmt(scope Scope) error {
	if err := t.advance(); err != nil {
		return err
	}
	l1 := t.newLabel()
	t.emit(scope, LabelAtom{Label: l1})
	p, err := t.condition(scope)
	if err != nil {
		return err
	}
	l2 := t.newLabel()
	t.emit(scope, CondJumpAtom{Cond: CondEQ, Left: p, Right: t.zero, Label: l2})
	if err := t.stmt(scope); err != nil {
		return err
	}
	t.emit(scope, JumpAtom{Label: l1})
	t.emit(scope, LabelAtom{Label: l2})
	return nil
}

// forStmt lowers for (init; cond; step) body as
//
//	init
//	L1: if cond == 0 goto L4
//	    goto L3
//	L2: step
//	    goto L1
//	L3: body
//	    goto L2
//	L4:
func (t *Translator) forStmt(scope Scope) error {
	if err := t.advance(); err != nil {
		return err
	}
	if err := t.expect(LPAREN); err != nil {
		return err
	}

	switch t.tok.Type {
	case SEMICOLON:
		if err := t.advance(); err != nil {
			return err
		}
	case INT, CHAR, CONST:
		if err := t.declaration(scope); err != nil {
			return err
		}
	default:
		if err := t.simple(scope); err != nil {
			return err
		}
		if err := t.expect(SEMICOLON); err != nil {
			return err
		}
	}

	l1 := t.newLabel()
	t.emit(scope, LabelAtom{Label: l1})
	var p RValue = t.one
	if t.tok.Type != SEMICOLON {
		var err error
		if p, err = t.expr(scope); err != nil {
			return err
		}
	}
	if err := t.expect(SEMICOLON); err != nil {
		return err
	}

	l2, l3, l4 := t.newLabel(), t.newLabel(), t.newLabel()
	t.emit(scope, CondJumpAtom{Cond: CondEQ, Left: p, Right: t.zero, Label: l4})
	t.emit(scope, JumpAtom{Label: l3})
	t.emit(scope, LabelAtom{Label: l2})
	if t.tok.Type != RPAREN {
		if err := t.simple(scope); err != nil {
			return err
		}
	}
	t.emit(scope, JumpAtom{Label: l1})
	if err := t.expect(RPAREN); err != nil {
		return err
	}

	t.emit(scope, LabelAtom{Label: l3})
	if err := t.stmt(scope); err != nil {
		return err
	}
	t.emit(scope, JumpAtom{Label: l2})
	t.emit(scope, LabelAtom{Label: l4})
	return nil
}

// switchStmt tests the cases in order. A default body is laid out in place
// but skipped; it is reached by a jump after the last failed test.
func (t *Translator) switchStmt(scope Scope) error {
	if err := t.advance(); err != nil {
		return err
	}
	p, err := t.condition(scope)
	if err != nil {
		return err
	}
	if err := t.expect(LBRACE); err != nil {
		return err
	}

	end := t.newLabel()
	var def *LabelOperand
	cases := 0
	for t.tok.Type == CASE || t.tok.Type == DEFAULT {
		cases++
		if t.tok.Type == CASE {
			if err := t.advance(); err != nil {
				return err
			}
			v, err := t.constant()
			if err != nil {
				return err
			}
			next := t.newLabel()
			t.emit(scope, CondJumpAtom{Cond: CondNE, Left: p, Right: NumberOperand{Value: v}, Label: next})
			if err := t.expect(COLON); err != nil {
				return err
			}
			if err := t.stmtList(scope); err != nil {
				return err
			}
			t.emit(scope, JumpAtom{Label: end})
			t.emit(scope, LabelAtom{Label: next})
			continue
		}

		if def != nil {
			return t.syntaxError(nil, "multiple default labels in one switch")
		}
		if err := t.advance(); err != nil {
			return err
		}
		if err := t.expect(COLON); err != nil {
			return err
		}
		next, body := t.newLabel(), t.newLabel()
		t.emit(scope, JumpAtom{Label: next})
		t.emit(scope, LabelAtom{Label: body})
		if err := t.stmtList(scope); err != nil {
			return err
		}
		t.emit(scope, JumpAtom{Label: end})
		t.emit(scope, LabelAtom{Label: next})
		def = &body
	}
	if cases == 0 {
		return t.syntaxError(nil, "switch needs at least one case, got %s", describe(t.tok))
	}
	if def != nil {
		t.emit(scope, JumpAtom{Label: *def})
	} else {
		t.emit(scope, JumpAtom{Label: end})
	}
	if err := t.expect(RBRACE); err != nil {
		return err
	}
	t.emit(scope, LabelAtom{Label: end})
	return nil
}

func (t *Translator) inStmt(scope Scope) error {
	if err := t.advance(); err != nil {
		return err
	}
	name, err := t.ident()
	if err != nil {
		return err
	}
	v, err := t.mutableVar(scope, name)
	if err != nil {
		return err
	}
	t.emit(scope, InAtom{Result: v})
	return t.expect(SEMICOLON)
}

func (t *Translator) outStmt(scope Scope) error {
	if err := t.advance(); err != nil {
		return err
	}
	if t.tok.Type == STRING {
		s := t.prog.Strings.Add(t.tok.Lexeme)
		if err := t.advance(); err != nil {
			return err
		}
		t.emit(scope, OutAtom{Value: s})
		return t.expect(SEMICOLON)
	}
	p, err := t.expr(scope)
	if err != nil {
		return err
	}
	t.emit(scope, OutAtom{Value: p})
	return t.expect(SEMICOLON)
}

func (t *Translator) returnStmt(scope Scope) error {
	if err := t.advance(); err != nil {
		return err
	}
	var p RValue = t.zero
	if t.tok.Type != SEMICOLON {
		var err error
		if p, err = t.expr(scope); err != nil {
			return err
		}
	}
	t.emit(scope, RetAtom{Value: p})
	return t.expect(SEMICOLON)
}

// describe names a token for error messages.
func describe(tok Token) string {
	switch tok.Type {
	case EOF:
		return "end of input"
	case IDENTIFIER:
		return "identifier " + tok.Lexeme
	case INTEGER:
		return "number " + tok.Lexeme
	case CHARACTER:
		return fmt.Sprintf("char %q", rune(tok.Value))
	case STRING:
		return "string " + fmt.Sprintf("%q", tok.Lexeme)
	}
	if tok.Type >= INT && tok.Type <= OUT {
		return "keyword " + tok.Type.String()
	}
	return "'" + tok.Type.String() + "'"
}
