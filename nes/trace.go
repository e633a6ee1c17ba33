package nes

import (
	"fmt"
	"strings"
)

// Trace renders the instruction at PC as one line of the canonical reference
// log: address, hex dump, mnemonic (starred when unofficial), expanded
// operand, then the register snapshot. The 47-column instruction field and
// the upper-case hex match the log byte for byte.
//
// Trace is a pure read: it resolves operand previews through the bus without
// ticking the PPU, and the CPU is left exactly as found.
func Trace(c *CPU) (string, error) {
	begin := c.PC

	code, err := c.Bus.ReadByte(begin)
	if err != nil {
		return "", err
	}

	inst := instructions[code]
	if inst.Name == "" {
		return "", unsupportedf("opcode 0x%02X", code)
	}

	operand, err := traceOperand(c, inst, begin)
	if err != nil {
		return "", err
	}

	hex := make([]string, 0, 3)
	for i := uint16(0); i < uint16(inst.Size); i++ {
		v, err := c.Bus.ReadByte(begin + i)
		if err != nil {
			return "", err
		}
		hex = append(hex, fmt.Sprintf("%02X", v))
	}

	mnemonic := inst.Name
	if inst.Illegal {
		mnemonic = "*" + mnemonic
	}

	asm := strings.TrimRight(fmt.Sprintf("%04X  %-8s %4s %s",
		begin, strings.Join(hex, " "), mnemonic, operand), " ")

	return fmt.Sprintf("%-47s A:%02X X:%02X Y:%02X P:%02X SP:%02X",
		asm, c.A, c.X, c.Y, byte(c.P), c.SP), nil
}

// traceOperand expands the operand the way the reference log prints it,
// including the resolved address and the value currently stored there.
func traceOperand(c *CPU, inst Instruction, begin uint16) (string, error) {
	// JSR and absolute JMP print the bare target; previewing the value
	// there would be misleading (and may not even be readable).
	if inst.OpCode == 0x20 || inst.OpCode == 0x4C {
		target, err := c.Bus.ReadWord(begin + 1)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("$%04X", target), nil
	}

	switch inst.Mode {
	case Implied:
		return "", nil

	case Accumulator:
		return "A", nil

	case Immediate:
		v, err := c.Bus.ReadByte(begin + 1)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("#$%02X", v), nil

	case Relative:
		offset, err := c.Bus.ReadByte(begin + 1)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("$%04X", begin+2+uint16(int8(offset))), nil

	case Indirect:
		ptr, err := c.Bus.ReadWord(begin + 1)
		if err != nil {
			return "", err
		}
		target, err := c.readIndirect(ptr)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("($%04X) = %04X", ptr, target), nil
	}

	// the remaining modes resolve to a memory address whose current
	// contents the log previews
	addr, _, err := c.operandAddress(inst.Mode, begin+1)
	if err != nil {
		return "", err
	}
	stored, err := c.Bus.ReadByte(addr)
	if err != nil {
		return "", err
	}

	switch inst.Mode {
	case ZeroPage:
		return fmt.Sprintf("$%02X = %02X", addr, stored), nil

	case ZeroPageX, ZeroPageY:
		operand, err := c.Bus.ReadByte(begin + 1)
		if err != nil {
			return "", err
		}
		index := "X"
		if inst.Mode == ZeroPageY {
			index = "Y"
		}
		return fmt.Sprintf("$%02X,%s @ %02X = %02X", operand, index, addr, stored), nil

	case Absolute:
		return fmt.Sprintf("$%04X = %02X", addr, stored), nil

	case AbsoluteX, AbsoluteY:
		base, err := c.Bus.ReadWord(begin + 1)
		if err != nil {
			return "", err
		}
		index := "X"
		if inst.Mode == AbsoluteY {
			index = "Y"
		}
		return fmt.Sprintf("$%04X,%s @ %04X = %02X", base, index, addr, stored), nil

	case IndirectX:
		operand, err := c.Bus.ReadByte(begin + 1)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("($%02X,X) @ %02X = %04X = %02X",
			operand, operand+c.X, addr, stored), nil

	case IndirectY:
		operand, err := c.Bus.ReadByte(begin + 1)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("($%02X),Y = %04X @ %04X = %02X",
			operand, addr-uint16(c.Y), addr, stored), nil
	}

	return "", unsupportedf("addressing mode %d in trace", inst.Mode)
}
