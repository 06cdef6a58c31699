package compiler

import (
	"fmt"
	"io"
	"strconv"
)

// Operand is a value source or destination referenced by an atom.
type Operand interface{ operand() }

// RValue is an operand an expression can evaluate to.
type RValue interface {
	Operand
	rvalue()
}

// MemoryOperand references a symbol-table record.
type MemoryOperand struct{ Index int }

// NumberOperand is an immediate value.
type NumberOperand struct{ Value int }

// StringOperand references a string-table entry.
type StringOperand struct{ Index int }

// LabelOperand is a jump target, unique per compilation.
type LabelOperand struct{ ID int }

func (MemoryOperand) operand() {}
func (NumberOperand) operand() {}
func (StringOperand) operand() {}
func (LabelOperand) operand()  {}

func (MemoryOperand) rvalue() {}
func (NumberOperand) rvalue() {}

// UnaryOp is the operation of a UnaryAtom.
type UnaryOp int

const (
	OpMov UnaryOp = iota
	OpNeg
	OpNot
)

var unaryNames = [...]string{OpMov: "MOV", OpNeg: "NEG", OpNot: "NOT"}

func (o UnaryOp) String() string { return unaryNames[o] }

// BinaryOp is the operation of a BinaryAtom.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpAnd
	OpOr
	OpMul
	// OpDiv has no source operator; the Translator never emits it. It is
	// lowered to @DIV for Programs built directly.
	OpDiv
)

var binaryNames = [...]string{OpAdd: "ADD", OpSub: "SUB", OpAnd: "AND", OpOr: "OR", OpMul: "MUL", OpDiv: "DIV"}

func (o BinaryOp) String() string { return binaryNames[o] }

// LibraryCall reports whether the op is lowered to a library routine
// taking its operands in C and D rather than to a single instruction on B.
func (o BinaryOp) LibraryCall() bool { return o == OpMul || o == OpDiv }

// Condition is the comparison of a CondJumpAtom.
type Condition int

const (
	CondEQ Condition = iota
	CondNE
	CondGT
	CondLT
	CondLE
)

var condNames = [...]string{CondEQ: "EQ", CondNE: "NE", CondGT: "GT", CondLT: "LT", CondLE: "LE"}

func (c Condition) String() string { return condNames[c] }

// Complex reports whether the condition needs two branches.
func (c Condition) Complex() bool { return c == CondLE }

// Atom is one IR instruction.
type Atom interface{ atom() }

type (
	UnaryAtom struct {
		Op      UnaryOp
		Operand RValue
		Result  MemoryOperand
	}
	BinaryAtom struct {
		Op          BinaryOp
		Left, Right RValue
		Result      MemoryOperand
	}
	// OutAtom writes a number, a variable or a string.
	OutAtom struct {
		Value Operand
	}
	InAtom struct {
		Result MemoryOperand
	}
	LabelAtom struct {
		Label LabelOperand
	}
	JumpAtom struct {
		Label LabelOperand
	}
	CondJumpAtom struct {
		Cond        Condition
		Left, Right RValue
		Label       LabelOperand
	}
	CallAtom struct {
		Func   MemoryOperand
		Result MemoryOperand
	}
	RetAtom struct {
		Value RValue
	}
	ParamAtom struct {
		Value RValue
	}
)

func (UnaryAtom) atom()    {}
func (BinaryAtom) atom()   {}
func (OutAtom) atom()      {}
func (InAtom) atom()       {}
func (LabelAtom) atom()    {}
func (JumpAtom) atom()     {}
func (CondJumpAtom) atom() {}
func (CallAtom) atom()     {}
func (RetAtom) atom()      {}
func (ParamAtom) atom()    {}

// Program is the output of translation: the tables and the atom list of
// every function scope.
type Program struct {
	Symbols *SymbolTable
	Strings *StringTable
	Atoms   map[Scope][]Atom
}

func newProgram() *Program {
	return &Program{
		Symbols: NewSymbolTable(),
		Strings: NewStringTable(),
		Atoms:   make(map[Scope][]Atom),
	}
}

// FormatOperand renders op the way atom dumps show it.
func (p *Program) FormatOperand(op Operand) string {
	switch o := op.(type) {
	case MemoryOperand:
		return p.Symbols.DisplayName(o.Index)
	case NumberOperand:
		return "'" + strconv.Itoa(o.Value) + "'"
	case StringOperand:
		return strconv.Quote(p.Strings.At(o.Index))
	case LabelOperand:
		return "L" + strconv.Itoa(o.ID)
	}
	return "?"
}

// FormatAtom renders a as [NAME, a, b, result].
func (p *Program) FormatAtom(a Atom) string {
	f := p.FormatOperand
	switch a := a.(type) {
	case UnaryAtom:
		return fmt.Sprintf("[%s, %s,, %s]", a.Op, f(a.Operand), f(a.Result))
	case BinaryAtom:
		return fmt.Sprintf("[%s, %s, %s, %s]", a.Op, f(a.Left), f(a.Right), f(a.Result))
	case OutAtom:
		return fmt.Sprintf("[OUT,,, %s]", f(a.Value))
	case InAtom:
		return fmt.Sprintf("[IN,,, %s]", f(a.Result))
	case LabelAtom:
		return fmt.Sprintf("[LBL,,, %s]", f(a.Label))
	case JumpAtom:
		return fmt.Sprintf("[JMP,,, %s]", f(a.Label))
	case CondJumpAtom:
		return fmt.Sprintf("[%s, %s, %s, %s]", a.Cond, f(a.Left), f(a.Right), f(a.Label))
	case CallAtom:
		return fmt.Sprintf("[CALL, %s,, %s]", f(a.Func), f(a.Result))
	case RetAtom:
		return fmt.Sprintf("[RET,,, %s]", f(a.Value))
	case ParamAtom:
		return fmt.Sprintf("[PARAM,,, %s]", f(a.Value))
	}
	return "[?]"
}

// WriteAtoms lists every scope's atoms, functions in declaration order.
func (p *Program) WriteAtoms(w io.Writer) error {
	for _, fn := range p.Symbols.Functions() {
		if _, err := fmt.Fprintf(w, "%s:\n", p.Symbols.DisplayName(fn)); err != nil {
			return err
		}
		for _, a := range p.Atoms[Scope(fn)] {
			if _, err := fmt.Fprintf(w, "\t%s\n", p.FormatAtom(a)); err != nil {
				return err
			}
		}
	}
	return nil
}
