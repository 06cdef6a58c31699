package cpu

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Opcodes. Register and pair forms are the base value; the assembler ORs in
// the register (bits 3-5 or 0-2) or pair (bits 4-5) field.
const (
	OpNOP  byte = 0x00
	OpLXI  byte = 0x01 // rp<<4
	OpINX  byte = 0x03 // rp<<4
	OpINR  byte = 0x04 // r<<3
	OpDCR  byte = 0x05 // r<<3
	OpMVI  byte = 0x06 // r<<3
	OpDAD  byte = 0x09 // rp<<4
	OpDCX  byte = 0x0B // rp<<4
	OpSTA  byte = 0x32
	OpLDA  byte = 0x3A
	OpMOV  byte = 0x40 // dst<<3 | src
	OpHLT  byte = 0x76
	OpADD  byte = 0x80 // r
	OpADC  byte = 0x88
	OpSUB  byte = 0x90
	OpSBB  byte = 0x98
	OpANA  byte = 0xA0
	OpXRA  byte = 0xA8
	OpORA  byte = 0xB0
	OpCMP  byte = 0xB8
	OpRNZ  byte = 0xC0
	OpPOP  byte = 0xC1 // rp<<4, rp 3 is PSW
	OpJNZ  byte = 0xC2
	OpJMP  byte = 0xC3
	OpPUSH byte = 0xC5 // rp<<4, rp 3 is PSW
	OpADI  byte = 0xC6
	OpRZ   byte = 0xC8
	OpRET  byte = 0xC9
	OpJZ   byte = 0xCA
	OpCALL byte = 0xCD
	OpACI  byte = 0xCE
	OpJNC  byte = 0xD2
	OpOUT  byte = 0xD3
	OpSUI  byte = 0xD6
	OpJC   byte = 0xDA
	OpIN   byte = 0xDB
	OpSBI  byte = 0xDE
	OpANI  byte = 0xE6
	OpXCHG byte = 0xEB
	OpXRI  byte = 0xEE
	OpJP   byte = 0xF2
	OpORI  byte = 0xF6
	OpSPHL byte = 0xF9
	OpJM   byte = 0xFA
	OpCPI  byte = 0xFE
)

// Register codes as encoded in instructions. RegM is the memory byte at HL.
const (
	RegB byte = 0
	RegC byte = 1
	RegD byte = 2
	RegE byte = 3
	RegH byte = 4
	RegL byte = 5
	RegM byte = 6
	RegA byte = 7
)

// Register pair codes.
const (
	PairBC  byte = 0
	PairDE  byte = 1
	PairHL  byte = 2
	PairSP  byte = 3
	PairPSW byte = 3
)

// I/O ports served when no device is mounted.
const (
	PortInput  byte = 0 // IN: next decimal number from Input
	PortNumber byte = 1 // OUT: A as unsigned decimal and a newline
	PortChar   byte = 2 // OUT: A as a raw character
)

// ErrStepLimit is returned by RunFor when the program does not halt in time.
var ErrStepLimit = errors.New("step limit reached")

// CPU is an Intel 8080 subset: the data movement, 8-bit arithmetic, jump,
// call, stack and port instructions.
type CPU struct {
	Regs [8]byte // indexed by register code; Regs[RegM] is unused

	PC uint16
	SP uint16

	S  bool
	Z  bool
	P  bool
	CY bool

	Memory [65536]byte

	Halted bool
	Steps  int

	// Output receives the default port writes. If nil, os.Stdout is used.
	Output io.Writer
	// Input feeds the default input port. If nil, IN reads 0.
	Input io.Reader

	Devices [256]Device
}

func NewCPU() *CPU {
	return &CPU{}
}

func (c *CPU) outputSink() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	return os.Stdout
}

// Load copies image into memory at address 0.
func (c *CPU) Load(image []byte) error {
	if len(image) > len(c.Memory) {
		return fmt.Errorf("program too large for memory: %d bytes > %d bytes", len(image), len(c.Memory))
	}
	copy(c.Memory[:], image)
	return nil
}

func (c *CPU) HL() uint16 { return uint16(c.Regs[RegH])<<8 | uint16(c.Regs[RegL]) }

func (c *CPU) reg(r byte) byte {
	if r == RegM {
		return c.Memory[c.HL()]
	}
	return c.Regs[r]
}

func (c *CPU) setReg(r byte, v byte) {
	if r == RegM {
		c.Memory[c.HL()] = v
		return
	}
	c.Regs[r] = v
}

// Pair returns the value of a register pair; PairSP is the stack pointer.
func (c *CPU) Pair(rp byte) uint16 {
	if rp == PairSP {
		return c.SP
	}
	return uint16(c.Regs[rp*2])<<8 | uint16(c.Regs[rp*2+1])
}

func (c *CPU) setPair(rp byte, v uint16) {
	if rp == PairSP {
		c.SP = v
		return
	}
	c.Regs[rp*2] = byte(v >> 8)
	c.Regs[rp*2+1] = byte(v)
}

// Flags packs the flags the way PUSH PSW stores them.
func (c *CPU) Flags() byte {
	f := byte(0x02)
	if c.S {
		f |= 0x80
	}
	if c.Z {
		f |= 0x40
	}
	if c.P {
		f |= 0x04
	}
	if c.CY {
		f |= 0x01
	}
	return f
}

func (c *CPU) setFlags(f byte) {
	c.S = f&0x80 != 0
	c.Z = f&0x40 != 0
	c.P = f&0x04 != 0
	c.CY = f&0x01 != 0
}

func (c *CPU) updateFlags(v byte) {
	c.S = v&0x80 != 0
	c.Z = v == 0
	ones := 0
	for b := v; b != 0; b >>= 1 {
		ones += int(b & 1)
	}
	c.P = ones%2 == 0
}

func (c *CPU) Read16(addr uint16) uint16 {
	return uint16(c.Memory[addr]) | uint16(c.Memory[addr+1])<<8
}

func (c *CPU) Write16(addr uint16, val uint16) {
	c.Memory[addr] = byte(val)
	c.Memory[addr+1] = byte(val >> 8)
}

func (c *CPU) fetch() byte {
	v := c.Memory[c.PC]
	c.PC++
	return v
}

func (c *CPU) fetch16() uint16 {
	v := c.Read16(c.PC)
	c.PC += 2
	return v
}

func (c *CPU) push(v uint16) {
	c.SP -= 2
	c.Write16(c.SP, v)
}

func (c *CPU) pop() uint16 {
	v := c.Read16(c.SP)
	c.SP += 2
	return v
}

// alu applies operation kind (ADD ADC SUB SBB ANA XRA ORA CMP, by encoding
// order) to A and v.
func (c *CPU) alu(kind byte, v byte) {
	a := c.Regs[RegA]
	carry := byte(0)
	if c.CY {
		carry = 1
	}
	var r byte
	switch kind {
	case 0, 1: // ADD, ADC
		if kind == 0 {
			carry = 0
		}
		sum := uint16(a) + uint16(v) + uint16(carry)
		r, c.CY = byte(sum), sum > 0xFF
	case 2, 3, 7: // SUB, SBB, CMP
		if kind != 3 {
			carry = 0
		}
		diff := int(a) - int(v) - int(carry)
		r, c.CY = byte(diff), diff < 0
	case 4:
		r, c.CY = a&v, false
	case 5:
		r, c.CY = a^v, false
	case 6:
		r, c.CY = a|v, false
	}
	c.updateFlags(r)
	if kind != 7 {
		c.Regs[RegA] = r
	}
}

// condition evaluates the condition field of a conditional jump, call or
// return: NZ Z NC C PO PE P M.
func (c *CPU) condition(cc byte) bool {
	switch cc {
	case 0:
		return !c.Z
	case 1:
		return c.Z
	case 2:
		return !c.CY
	case 3:
		return c.CY
	case 4:
		return !c.P
	case 5:
		return c.P
	case 6:
		return !c.S
	default:
		return c.S
	}
}

// Step executes one instruction.
func (c *CPU) Step() error {
	if c.Halted {
		return nil
	}
	at := c.PC
	op := c.fetch()
	c.Steps++

	switch {
	case op == OpHLT:
		c.Halted = true
	case op == OpNOP:
	case op&0xC0 == OpMOV:
		c.setReg(op>>3&7, c.reg(op&7))
	case op&0xC7 == OpMVI:
		c.setReg(op>>3&7, c.fetch())
	case op&0xC7 == OpINR:
		r := op >> 3 & 7
		v := c.reg(r) + 1
		c.setReg(r, v)
		c.updateFlags(v)
	case op&0xC7 == OpDCR:
		r := op >> 3 & 7
		v := c.reg(r) - 1
		c.setReg(r, v)
		c.updateFlags(v)
	case op&0xCF == OpLXI:
		c.setPair(op>>4&3, c.fetch16())
	case op&0xCF == OpINX:
		rp := op >> 4 & 3
		c.setPair(rp, c.Pair(rp)+1)
	case op&0xCF == OpDCX:
		rp := op >> 4 & 3
		c.setPair(rp, c.Pair(rp)-1)
	case op&0xCF == OpDAD:
		sum := uint32(c.HL()) + uint32(c.Pair(op>>4&3))
		c.setPair(PairHL, uint16(sum))
		c.CY = sum > 0xFFFF
	case op&0xC0 == 0x80:
		c.alu(op>>3&7, c.reg(op&7))
	case op&0xC7 == OpADI:
		c.alu(op>>3&7, c.fetch())
	case op&0xCF == OpPUSH:
		rp := op >> 4 & 3
		if rp == PairPSW {
			c.push(uint16(c.Regs[RegA])<<8 | uint16(c.Flags()))
		} else {
			c.push(c.Pair(rp))
		}
	case op&0xCF == OpPOP:
		rp := op >> 4 & 3
		v := c.pop()
		if rp == PairPSW {
			c.Regs[RegA] = byte(v >> 8)
			c.setFlags(byte(v))
		} else {
			c.setPair(rp, v)
		}
	case op&0xC7 == 0xC2: // Jcc
		addr := c.fetch16()
		if c.condition(op >> 3 & 7) {
			c.PC = addr
		}
	case op&0xC7 == 0xC0: // Rcc
		if c.condition(op >> 3 & 7) {
			c.PC = c.pop()
		}
	default:
		switch op {
		case OpJMP:
			c.PC = c.fetch16()
		case OpCALL:
			addr := c.fetch16()
			c.push(c.PC)
			c.PC = addr
		case OpRET:
			c.PC = c.pop()
		case OpLDA:
			c.Regs[RegA] = c.Memory[c.fetch16()]
		case OpSTA:
			c.Memory[c.fetch16()] = c.Regs[RegA]
		case OpSPHL:
			c.SP = c.HL()
		case OpXCHG:
			de, hl := c.Pair(PairDE), c.HL()
			c.setPair(PairDE, hl)
			c.setPair(PairHL, de)
		case OpIN:
			v, err := c.in(c.fetch())
			if err != nil {
				return err
			}
			c.Regs[RegA] = v
		case OpOUT:
			if err := c.out(c.fetch(), c.Regs[RegA]); err != nil {
				return err
			}
		default:
			c.Halted = true
			return fmt.Errorf("unknown opcode 0x%02X at 0x%04X", op, at)
		}
	}
	return nil
}

// Run executes until HLT or an error.
func (c *CPU) Run() error {
	for !c.Halted {
		if err := c.Step(); err != nil {
			return err
		}
	}
	return nil
}

// RunFor executes at most limit instructions.
func (c *CPU) RunFor(limit int) error {
	for i := 0; !c.Halted; i++ {
		if i >= limit {
			return fmt.Errorf("%w: %d instructions, PC=0x%04X", ErrStepLimit, limit, c.PC)
		}
		if err := c.Step(); err != nil {
			return err
		}
	}
	return nil
}
