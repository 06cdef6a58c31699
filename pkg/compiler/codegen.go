package compiler

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/pkg/errors"
)

// GenerateOptions controls decoration of the listing.
type GenerateOptions struct {
	// Annotate precedes the code of every atom with the atom as a comment.
	Annotate bool
	// Color styles annotations with ANSI escapes.
	Color bool
}

// savedRegs is the number of bytes the call sequence pushes to preserve
// BC, DE, HL and PSW.
const savedRegs = 8

// CodeGen lowers the atoms of a Program to 8080 assembly text.
type CodeGen struct {
	prog *Program
	opts GenerateOptions
	out  strings.Builder

	nextNot int
	params  []RValue // queued PARAM atoms of the pending call

	scope Scope
	m, n  int // locals+temporaries and parameters of the current function
}

var commentStyle = ansi.Style{}.ForegroundColor(ansi.Blue)

func newCodeGen(prog *Program, opts GenerateOptions) *CodeGen {
	return &CodeGen{prog: prog, opts: opts}
}

func (cg *CodeGen) line(format string, args ...any) {
	fmt.Fprintf(&cg.out, format+"\n", args...)
}

func (cg *CodeGen) comment(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if cg.opts.Color {
		text = commentStyle.Styled(text)
	}
	cg.line("\t\t\t; %s", text)
}

// Generate produces the complete listing: header and library routines,
// the data section, then one block per function in declaration order.
func Generate(prog *Program, opts GenerateOptions) (string, error) {
	if _, ok := prog.Symbols.LookupFunc("main"); !ok {
		return "", &CompileError{Kind: SyntaxError, Msg: "main() function not found", Err: ErrNoMain}
	}

	cg := newCodeGen(prog, opts)
	cg.header()

	cg.line("\tORG 8000H")
	if err := prog.Symbols.GenerateGlobals(&cg.out); err != nil {
		return "", err
	}
	if err := prog.Strings.GenerateStrings(&cg.out); err != nil {
		return "", err
	}

	for _, fn := range prog.Symbols.Functions() {
		if err := cg.function(fn); err != nil {
			return "", err
		}
	}
	cg.line("\tEND")
	return cg.out.String(), nil
}

// header sets up the stack, reserves main's return slot, calls main and
// halts. The library routines follow.
func (cg *CodeGen) header() {
	cg.line("\tORG 0")
	cg.line("\tLXI H, 0")
	cg.line("\tSPHL")
	cg.line("\tLXI B, 0")
	cg.line("\tPUSH B")
	cg.line("\tCALL main")
	cg.line("\tHLT")

	// C * D -> C
	cg.line("@MULT:")
	cg.line("\tMVI E, 0")
	cg.line("@MULT_LOOP:")
	cg.line("\tMOV A, D")
	cg.line("\tCPI 0")
	cg.line("\tJZ @MULT_END")
	cg.line("\tMOV A, E")
	cg.line("\tADD C")
	cg.line("\tMOV E, A")
	cg.line("\tDCR D")
	cg.line("\tJMP @MULT_LOOP")
	cg.line("@MULT_END:")
	cg.line("\tMOV C, E")
	cg.line("\tRET")

	// C / D -> C, zero when D is zero
	cg.line("@DIV:")
	cg.line("\tMVI E, 0")
	cg.line("\tMOV A, D")
	cg.line("\tCPI 0")
	cg.line("\tJZ @DIV_END")
	cg.line("\tMOV A, C")
	cg.line("@DIV_LOOP:")
	cg.line("\tCMP D")
	cg.line("\tJC @DIV_END")
	cg.line("\tSUB D")
	cg.line("\tINR E")
	cg.line("\tJMP @DIV_LOOP")
	cg.line("@DIV_END:")
	cg.line("\tMOV C, E")
	cg.line("\tRET")

	// NUL-terminated string at HL -> port 2
	cg.line("@PRINT:")
	cg.line("\tMOV A, M")
	cg.line("\tCPI 0")
	cg.line("\tRZ")
	cg.line("\tOUT 2")
	cg.line("\tINX H")
	cg.line("\tJMP @PRINT")
	cg.line("")
}

func (cg *CodeGen) function(fn int) error {
	cg.scope = Scope(fn)
	cg.n = cg.prog.Symbols.ParamCount(cg.scope)
	cg.m = cg.prog.Symbols.LocalCount(cg.scope)
	cg.params = cg.params[:0]

	cg.line("")
	cg.line("%s:", cg.funcLabel(fn))
	cg.line("\tLXI B, 0")
	for i := 0; i < cg.m; i++ {
		cg.line("\tPUSH B")
	}
	for _, a := range cg.prog.Atoms[cg.scope] {
		if cg.opts.Annotate {
			cg.comment("%s", cg.prog.FormatAtom(a))
		}
		if err := cg.atom(a); err != nil {
			return errors.Wrapf(err, "function %s", cg.prog.Symbols.DisplayName(fn))
		}
	}
	if len(cg.params) != 0 {
		return errors.Errorf("function %s: %d parameters without a call", cg.prog.Symbols.DisplayName(fn), len(cg.params))
	}
	return nil
}

// funcLabel names the code of function fn. Every function but main gets an
// f_ prefix, keeping user names apart from the L, N, var and str labels.
func (cg *CodeGen) funcLabel(fn int) string {
	name := cg.prog.Symbols.DisplayName(fn)
	if name == "main" {
		return name
	}
	return "f_" + name
}

// load puts the value of op into A. shift is added to stack offsets to
// account for bytes pushed since the frame was set up.
func (cg *CodeGen) load(op RValue, shift int) error {
	switch o := op.(type) {
	case NumberOperand:
		cg.line("\tMVI A, %d", byte(o.Value))
		return nil
	case MemoryOperand:
		r := cg.prog.Symbols.At(o.Index)
		if r.Scope == GlobalScope {
			cg.line("\tLDA var%d", cg.prog.Symbols.GlobalOrdinal(o.Index))
			return nil
		}
		cg.line("\tLXI H, %d", r.Offset+shift)
		cg.line("\tDAD SP")
		cg.line("\tMOV A, M")
		return nil
	}
	return errors.Errorf("cannot load operand %T", op)
}

// save stores A into the variable of op.
func (cg *CodeGen) save(op MemoryOperand, shift int) {
	r := cg.prog.Symbols.At(op.Index)
	if r.Scope == GlobalScope {
		cg.line("\tSTA var%d", cg.prog.Symbols.GlobalOrdinal(op.Index))
		return
	}
	cg.line("\tLXI H, %d", r.Offset+shift)
	cg.line("\tDAD SP")
	cg.line("\tMOV M, A")
}

// loadPair loads right into reg and left into A.
func (cg *CodeGen) loadPair(left, right RValue, reg string) error {
	if err := cg.load(right, 0); err != nil {
		return err
	}
	cg.line("\tMOV %s, A", reg)
	return cg.load(left, 0)
}

var directOps = map[BinaryOp]string{
	OpAdd: "ADD",
	OpSub: "SUB",
	OpAnd: "ANA",
	OpOr:  "ORA",
}

var libraryOps = map[BinaryOp]string{
	OpMul: "@MULT",
	OpDiv: "@DIV",
}

var condJumps = map[Condition]string{
	CondEQ: "JZ",
	CondNE: "JNZ",
}

func (cg *CodeGen) atom(a Atom) error {
	switch a := a.(type) {
	case UnaryAtom:
		if err := cg.load(a.Operand, 0); err != nil {
			return err
		}
		switch a.Op {
		case OpNeg:
			cg.line("\tMOV B, A")
			cg.line("\tMVI A, 0")
			cg.line("\tSUB B")
		case OpNot:
			l := fmt.Sprintf("N%d", cg.nextNot)
			cg.nextNot++
			cg.line("\tCPI 0")
			cg.line("\tMVI A, 1")
			cg.line("\tJZ %s", l)
			cg.line("\tMVI A, 0")
			cg.line("%s:", l)
		}
		cg.save(a.Result, 0)

	case BinaryAtom:
		if a.Op.LibraryCall() {
			if err := cg.loadPair(a.Left, a.Right, "D"); err != nil {
				return err
			}
			cg.line("\tMOV C, A")
			cg.line("\tCALL %s", libraryOps[a.Op])
			cg.line("\tMOV A, C")
		} else {
			if err := cg.loadPair(a.Left, a.Right, "B"); err != nil {
				return err
			}
			cg.line("\t%s B", directOps[a.Op])
		}
		cg.save(a.Result, 0)

	case CondJumpAtom:
		return cg.condJump(a)

	case OutAtom:
		switch v := a.Value.(type) {
		case StringOperand:
			cg.line("\tLXI H, str%d", v.Index)
			cg.line("\tCALL @PRINT")
		case NumberOperand, MemoryOperand:
			if err := cg.load(v.(RValue), 0); err != nil {
				return err
			}
			cg.line("\tOUT 1")
		default:
			return errors.Errorf("cannot output operand %T", a.Value)
		}

	case InAtom:
		cg.line("\tIN 0")
		cg.save(a.Result, 0)

	case LabelAtom:
		cg.line("L%d:", a.Label.ID)

	case JumpAtom:
		cg.line("\tJMP L%d", a.Label.ID)

	case ParamAtom:
		cg.params = append(cg.params, a.Value)

	case CallAtom:
		return cg.call(a)

	case RetAtom:
		return cg.ret(a)

	default:
		return errors.Errorf("unknown atom %T", a)
	}
	return nil
}

// loadSigned is loadPair with the sign bit of both operands flipped, so
// that CMP B sets the carry exactly when left < right as signed bytes.
func (cg *CodeGen) loadSigned(left, right RValue) error {
	if err := cg.load(right, 0); err != nil {
		return err
	}
	cg.line("\tXRI 80H")
	cg.line("\tMOV B, A")
	if err := cg.load(left, 0); err != nil {
		return err
	}
	cg.line("\tXRI 80H")
	return nil
}

// condJump compares left with right and jumps to the label when the
// condition holds. Ordering tests are signed; greater-than swaps the
// operands so that the carry alone decides it.
func (cg *CodeGen) condJump(a CondJumpAtom) error {
	label := fmt.Sprintf("L%d", a.Label.ID)
	switch a.Cond {
	case CondEQ, CondNE:
		if err := cg.loadPair(a.Left, a.Right, "B"); err != nil {
			return err
		}
		cg.line("\tCMP B")
		cg.line("\t%s %s", condJumps[a.Cond], label)
	case CondLT, CondLE:
		if err := cg.loadSigned(a.Left, a.Right); err != nil {
			return err
		}
		cg.line("\tCMP B")
		if a.Cond.Complex() {
			cg.line("\tJZ %s", label)
		}
		cg.line("\tJC %s", label)
	case CondGT:
		if err := cg.loadSigned(a.Right, a.Left); err != nil {
			return err
		}
		cg.line("\tCMP B")
		cg.line("\tJC %s", label)
	default:
		return errors.Errorf("unknown condition %v", a.Cond)
	}
	return nil
}

// call emits the calling sequence: save registers, reserve the return
// slot, push the queued arguments first argument first, call, drop the
// arguments, pop the return slot into BC and store C.
func (cg *CodeGen) call(a CallAtom) error {
	k := len(cg.params)
	cg.line("\tPUSH B")
	cg.line("\tPUSH D")
	cg.line("\tPUSH H")
	cg.line("\tPUSH PSW")
	cg.line("\tLXI B, 0")
	cg.line("\tPUSH B")
	for i := k - 1; i >= 0; i-- {
		cg.line("\tLXI B, 0")
		if err := cg.load(cg.params[i], 2*(savedRegs/2+k-i)); err != nil {
			return err
		}
		cg.line("\tMOV C, A")
		cg.line("\tPUSH B")
	}
	cg.line("\tCALL %s", cg.funcLabel(a.Func.Index))
	for i := 0; i < k; i++ {
		cg.line("\tPOP B")
	}
	cg.line("\tPOP B")
	cg.line("\tMOV A, C")
	cg.save(a.Result, savedRegs)
	cg.line("\tPOP PSW")
	cg.line("\tPOP H")
	cg.line("\tPOP D")
	cg.line("\tPOP B")
	cg.params = cg.params[:0]
	return nil
}

// ret stores the value in the caller's return slot above the parameters,
// releases the locals and returns.
func (cg *CodeGen) ret(a RetAtom) error {
	if err := cg.load(a.Value, 0); err != nil {
		return err
	}
	cg.line("\tLXI H, %d", 2*(cg.m+cg.n+1))
	cg.line("\tDAD SP")
	cg.line("\tMOV M, A")
	for i := 0; i < cg.m; i++ {
		cg.line("\tPOP B")
	}
	cg.line("\tRET")
	return nil
}
