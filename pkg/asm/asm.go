package asm

import (
	"fmt"
	"strconv"
	"strings"

	"minic/pkg/cpu"
)

var zeroOperandOps = map[string]byte{
	"HLT":  cpu.OpHLT,
	"NOP":  cpu.OpNOP,
	"RET":  cpu.OpRET,
	"RZ":   cpu.OpRZ,
	"RNZ":  cpu.OpRNZ,
	"SPHL": cpu.OpSPHL,
	"XCHG": cpu.OpXCHG,
}

// sourceRegisterOps take a register in bits 0-2.
var sourceRegisterOps = map[string]byte{
	"ADD": cpu.OpADD,
	"ADC": cpu.OpADC,
	"SUB": cpu.OpSUB,
	"SBB": cpu.OpSBB,
	"ANA": cpu.OpANA,
	"XRA": cpu.OpXRA,
	"ORA": cpu.OpORA,
	"CMP": cpu.OpCMP,
}

// destRegisterOps take a register in bits 3-5.
var destRegisterOps = map[string]byte{
	"INR": cpu.OpINR,
	"DCR": cpu.OpDCR,
}

var pairOps = map[string]byte{
	"INX":  cpu.OpINX,
	"DCX":  cpu.OpDCX,
	"DAD":  cpu.OpDAD,
	"PUSH": cpu.OpPUSH,
	"POP":  cpu.OpPOP,
}

var immediateOps = map[string]byte{
	"ADI": cpu.OpADI,
	"ACI": cpu.OpACI,
	"SUI": cpu.OpSUI,
	"SBI": cpu.OpSBI,
	"ANI": cpu.OpANI,
	"XRI": cpu.OpXRI,
	"ORI": cpu.OpORI,
	"CPI": cpu.OpCPI,
	"IN":  cpu.OpIN,
	"OUT": cpu.OpOUT,
}

var addressOps = map[string]byte{
	"JMP":  cpu.OpJMP,
	"JZ":   cpu.OpJZ,
	"JNZ":  cpu.OpJNZ,
	"JC":   cpu.OpJC,
	"JNC":  cpu.OpJNC,
	"JP":   cpu.OpJP,
	"JM":   cpu.OpJM,
	"CALL": cpu.OpCALL,
	"LDA":  cpu.OpLDA,
	"STA":  cpu.OpSTA,
}

var registers = map[string]byte{
	"B": cpu.RegB,
	"C": cpu.RegC,
	"D": cpu.RegD,
	"E": cpu.RegE,
	"H": cpu.RegH,
	"L": cpu.RegL,
	"M": cpu.RegM,
	"A": cpu.RegA,
}

type Assembler struct {
	labels map[string]uint16
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]uint16),
	}
}

// Assemble translates 8080 assembly into a memory image starting at
// address 0, together with a map from instruction address to source line.
func Assemble(code string) ([]byte, map[uint16]int, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]byte, map[uint16]int, error) {
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, nil, err
	}

	return a.pass2(lines)
}

func (a *Assembler) pass1(lines []string) error {
	var address uint32

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			if address > 0xFFFF {
				return fmt.Errorf("label '%s' on line %d points past addressable memory", lbl, lineNo)
			}
			if _, exists := a.labels[lbl]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			a.labels[lbl] = uint16(address)
		}

		switch p.mnemonic {
		case "":
			continue
		case "END":
			return nil
		case "ORG":
			target, err := parseNumber(p.operands[0])
			if err != nil || target < 0 || target > 0xFFFF {
				return fmt.Errorf("invalid ORG value on line %d: %s", lineNo, p.operands[0])
			}
			if uint32(target) < address {
				return fmt.Errorf("cannot move origin backward on line %d", lineNo)
			}
			address = uint32(target)
			continue
		case "DB":
			n, err := dbLength(p.operands, lineNo)
			if err != nil {
				return err
			}
			address += n
		default:
			length, ok := instructionLength(p.mnemonic)
			if !ok {
				return fmt.Errorf("unknown instruction '%s' on line %d", p.mnemonic, lineNo)
			}
			address += uint32(length)
		}
		if address > 0x10000 {
			return fmt.Errorf("program too large near line %d", lineNo)
		}
	}

	return nil
}

func (a *Assembler) pass2(lines []string) ([]byte, map[uint16]int, error) {
	program := make([]byte, 0)
	sourceMap := make(map[uint16]int)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}

		if p.mnemonic == "" {
			continue
		}
		if p.mnemonic == "END" {
			break
		}

		mnemonic := p.mnemonic
		ops := p.operands

		if mnemonic == "ORG" {
			target, _ := parseNumber(ops[0])
			if padding := int(target) - len(program); padding > 0 {
				program = append(program, make([]byte, padding)...)
			}
			continue
		}

		if mnemonic == "DB" {
			for _, op := range ops {
				if isQuoted(op) {
					program = append(program, op[1:len(op)-1]...)
					continue
				}
				v, err := a.parseImmediate8(op, lineNo)
				if err != nil {
					return nil, nil, err
				}
				program = append(program, v)
			}
			continue
		}

		sourceMap[uint16(len(program))] = lineNo

		if opcode, ok := zeroOperandOps[mnemonic]; ok {
			if len(ops) != 0 {
				return nil, nil, fmt.Errorf("%s takes no operands on line %d", mnemonic, lineNo)
			}
			program = append(program, opcode)
			continue
		}

		if opcode, ok := sourceRegisterOps[mnemonic]; ok {
			if len(ops) != 1 {
				return nil, nil, fmt.Errorf("%s expects one register on line %d", mnemonic, lineNo)
			}
			r, err := parseRegister(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, opcode|r)
			continue
		}

		if opcode, ok := destRegisterOps[mnemonic]; ok {
			if len(ops) != 1 {
				return nil, nil, fmt.Errorf("%s expects one register on line %d", mnemonic, lineNo)
			}
			r, err := parseRegister(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, opcode|r<<3)
			continue
		}

		if opcode, ok := pairOps[mnemonic]; ok {
			if len(ops) != 1 {
				return nil, nil, fmt.Errorf("%s expects one register pair on line %d", mnemonic, lineNo)
			}
			stack := mnemonic == "PUSH" || mnemonic == "POP"
			rp, err := parsePair(ops[0], stack, lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, opcode|rp<<4)
			continue
		}

		if opcode, ok := immediateOps[mnemonic]; ok {
			if len(ops) != 1 {
				return nil, nil, fmt.Errorf("%s expects one immediate on line %d", mnemonic, lineNo)
			}
			v, err := a.parseImmediate8(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, opcode, v)
			continue
		}

		if opcode, ok := addressOps[mnemonic]; ok {
			if len(ops) != 1 {
				return nil, nil, fmt.Errorf("%s expects one address on line %d", mnemonic, lineNo)
			}
			v, err := a.parseImmediate16(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, opcode, byte(v), byte(v>>8))
			continue
		}

		switch mnemonic {
		case "MOV":
			if len(ops) != 2 {
				return nil, nil, fmt.Errorf("MOV expects two registers on line %d", lineNo)
			}
			dst, err := parseRegister(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			src, err := parseRegister(ops[1], lineNo)
			if err != nil {
				return nil, nil, err
			}
			if dst == cpu.RegM && src == cpu.RegM {
				return nil, nil, fmt.Errorf("MOV M, M is not an instruction on line %d", lineNo)
			}
			program = append(program, cpu.OpMOV|dst<<3|src)

		case "MVI":
			if len(ops) != 2 {
				return nil, nil, fmt.Errorf("MVI expects a register and an immediate on line %d", lineNo)
			}
			dst, err := parseRegister(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			v, err := a.parseImmediate8(ops[1], lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, cpu.OpMVI|dst<<3, v)

		case "LXI":
			if len(ops) != 2 {
				return nil, nil, fmt.Errorf("LXI expects a register pair and an immediate on line %d", lineNo)
			}
			rp, err := parsePair(ops[0], false, lineNo)
			if err != nil {
				return nil, nil, err
			}
			v, err := a.parseImmediate16(ops[1], lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, cpu.OpLXI|rp<<4, byte(v), byte(v>>8))

		default:
			return nil, nil, fmt.Errorf("unknown instruction '%s' on line %d", mnemonic, lineNo)
		}
	}

	return program, sourceMap, nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t'") {
			break
		}
		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	mnemonic, rest := line, ""
	if sp := strings.IndexAny(line, " \t"); sp >= 0 {
		mnemonic, rest = line[:sp], line[sp+1:]
	}
	p.mnemonic = strings.ToUpper(mnemonic)
	p.operands = splitOperands(rest)

	switch p.mnemonic {
	case "ORG":
		if len(p.operands) != 1 {
			return p, fmt.Errorf("ORG expects exactly one operand on line %d", lineNo)
		}
	case "DB":
		if len(p.operands) == 0 {
			return p, fmt.Errorf("DB expects at least one operand on line %d", lineNo)
		}
	}

	return p, nil
}

// stripComments cuts the line at the first ';' outside a quoted string.
func stripComments(line string) string {
	quoted := false
	for i, r := range line {
		switch r {
		case '\'':
			quoted = !quoted
		case ';':
			if !quoted {
				return line[:i]
			}
		}
	}
	return line
}

// splitOperands splits on commas outside quotes.
func splitOperands(s string) []string {
	var ops []string
	var cur strings.Builder
	quoted := false
	flush := func() {
		if op := strings.TrimSpace(cur.String()); op != "" {
			ops = append(ops, op)
		}
		cur.Reset()
	}
	for _, r := range s {
		switch {
		case r == '\'':
			quoted = !quoted
			cur.WriteRune(r)
		case r == ',' && !quoted:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return ops
}

func isQuoted(op string) bool {
	return len(op) >= 2 && op[0] == '\'' && op[len(op)-1] == '\''
}

func dbLength(ops []string, lineNo int) (uint32, error) {
	var n uint32
	for _, op := range ops {
		if isQuoted(op) {
			n += uint32(len(op) - 2)
			continue
		}
		if strings.HasPrefix(op, "'") {
			return 0, fmt.Errorf("unterminated string on line %d", lineNo)
		}
		n++
	}
	return n, nil
}

func parseRegister(token string, lineNo int) (byte, error) {
	if r, ok := registers[strings.ToUpper(token)]; ok {
		return r, nil
	}
	return 0, fmt.Errorf("invalid register '%s' on line %d", token, lineNo)
}

// parsePair accepts B, D, H and SP, or PSW in place of SP for stack ops.
func parsePair(token string, stack bool, lineNo int) (byte, error) {
	switch strings.ToUpper(token) {
	case "B":
		return cpu.PairBC, nil
	case "D":
		return cpu.PairDE, nil
	case "H":
		return cpu.PairHL, nil
	case "SP":
		if !stack {
			return cpu.PairSP, nil
		}
	case "PSW":
		if stack {
			return cpu.PairPSW, nil
		}
	}
	return 0, fmt.Errorf("invalid register pair '%s' on line %d", token, lineNo)
}

// parseNumber reads decimal, 0x-prefixed or H-suffixed hexadecimal (leading
// digit required, as in 0FFH), or a quoted character.
func parseNumber(token string) (int64, error) {
	if len(token) == 3 && isQuoted(token) {
		return int64(token[1]), nil
	}
	upper := strings.ToUpper(token)
	if strings.HasSuffix(upper, "H") && len(upper) > 1 && upper[0] >= '0' && upper[0] <= '9' {
		return strconv.ParseInt(upper[:len(upper)-1], 16, 32)
	}
	return strconv.ParseInt(token, 0, 32)
}

func (a *Assembler) parseImmediate8(token string, lineNo int) (byte, error) {
	v, err := parseNumber(token)
	if err != nil {
		return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
	}
	if v < -128 || v > 0xFF {
		return 0, fmt.Errorf("immediate out of range on line %d: %s", lineNo, token)
	}
	return byte(v), nil
}

func (a *Assembler) parseImmediate16(token string, lineNo int) (uint16, error) {
	if v, err := parseNumber(token); err == nil {
		if v < -0x8000 || v > 0xFFFF {
			return 0, fmt.Errorf("immediate out of range on line %d: %s", lineNo, token)
		}
		return uint16(v), nil
	}

	if addr, ok := a.labels[token]; ok {
		return addr, nil
	}

	if isIdentifier(token) {
		return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}

	return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
}

// instructionLength returns the byte length of an instruction.
func instructionLength(mnemonic string) (uint16, bool) {
	if _, ok := zeroOperandOps[mnemonic]; ok {
		return 1, true
	}
	if _, ok := sourceRegisterOps[mnemonic]; ok {
		return 1, true
	}
	if _, ok := destRegisterOps[mnemonic]; ok {
		return 1, true
	}
	if _, ok := pairOps[mnemonic]; ok {
		return 1, true
	}
	if _, ok := immediateOps[mnemonic]; ok {
		return 2, true
	}
	if _, ok := addressOps[mnemonic]; ok {
		return 3, true
	}
	switch mnemonic {
	case "MOV":
		return 1, true
	case "MVI":
		return 2, true
	case "LXI":
		return 3, true
	}
	return 0, false
}

// isIdentifier accepts label names: letters, digits, '_' and '@', not
// starting with a digit.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == '@':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}

	return true
}
