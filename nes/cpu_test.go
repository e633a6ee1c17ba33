package nes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCPU builds a CPU over a fresh bus with the program at $8000 and PC
// pointing at it.
func testCPU(t *testing.T, program []byte) *CPU {
	t.Helper()

	cpu := NewCPU(testBus(t, program))
	require.NoError(t, cpu.Reset())
	require.Equal(t, uint16(0x8000), cpu.PC)
	return cpu
}

func TestCPU_Programs(t *testing.T) {
	tests := []struct {
		name    string
		program []byte
		check   func(t *testing.T, c *CPU)
	}{
		{
			name:    "lda immediate",
			program: []byte{0xA9, 0x05, 0x00},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, byte(0x05), c.A)
				assert.Zero(t, c.P&Zero)
				assert.Zero(t, c.P&Negative)
			},
		},
		{
			name:    "lda zero result",
			program: []byte{0xA9, 0x00, 0x00},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, byte(0x00), c.A)
				assert.NotZero(t, c.P&Zero)
			},
		},
		{
			name:    "lda then tax",
			program: []byte{0xA9, 0x02, 0xAA, 0x00},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, byte(0x02), c.A)
				assert.Equal(t, byte(0x02), c.X)
			},
		},
		{
			name:    "lda tax inx chain",
			program: []byte{0xA9, 0x02, 0xAA, 0xE8, 0x00},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, byte(0x03), c.X)
			},
		},
		{
			name:    "adc signed overflow",
			program: []byte{0x18, 0xA9, 0x50, 0x69, 0x50, 0x00},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, byte(0xA0), c.A)
				assert.NotZero(t, c.P&Overflow)
				assert.NotZero(t, c.P&Negative)
				assert.Zero(t, c.P&Carry)
			},
		},
		{
			name: "sta roundtrip through ram",
			// LDA #$2A; STA $10; LDA #$00; LDA $10
			program: []byte{0xA9, 0x2A, 0x85, 0x10, 0xA9, 0x00, 0xA5, 0x10, 0x00},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, byte(0x2A), c.A)
			},
		},
		{
			name: "jsr rts",
			// JSR $8006; BRK; pad; LDA #$77; RTS
			program: []byte{0x20, 0x06, 0x80, 0x00, 0xEA, 0xEA, 0xA9, 0x77, 0x60},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, byte(0x77), c.A)
				assert.Equal(t, byte(stackReset), c.SP, "stack balanced")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu := testCPU(t, tt.program)
			require.NoError(t, cpu.Run())
			tt.check(t, cpu)
		})
	}
}

func TestCPU_OperandAddress(t *testing.T) {
	cpu := testCPU(t, nil)
	cpu.X = 0x03
	cpu.Y = 0x04

	write := func(addr uint16, vs ...byte) {
		for i, v := range vs {
			require.NoError(t, cpu.Bus.WriteByte(addr+uint16(i), v))
		}
	}

	// operand bytes live at $0010
	write(0x0010, 0x2A, 0x01)

	tests := []struct {
		name        string
		mode        AddressingMode
		setup       func()
		wantAddr    uint16
		wantCrossed bool
	}{
		{name: "immediate", mode: Immediate, wantAddr: 0x0010},
		{name: "zero page", mode: ZeroPage, wantAddr: 0x002A},
		{name: "zero page x", mode: ZeroPageX, wantAddr: 0x002D},
		{name: "zero page y", mode: ZeroPageY, wantAddr: 0x002E},
		{
			name:     "zero page x wraps",
			mode:     ZeroPageX,
			setup:    func() { write(0x0010, 0xFF) },
			wantAddr: 0x0002,
		},
		{name: "absolute", mode: Absolute, wantAddr: 0x012A},
		{name: "absolute x", mode: AbsoluteX, wantAddr: 0x012D},
		{name: "absolute y", mode: AbsoluteY, wantAddr: 0x012E},
		{
			name:        "absolute x page cross",
			mode:        AbsoluteX,
			setup:       func() { write(0x0010, 0xFF, 0x01) },
			wantAddr:    0x0202,
			wantCrossed: true,
		},
		{
			name: "indirect x",
			mode: IndirectX,
			setup: func() {
				write(0x0010, 0x20)
				write(0x0023, 0x34, 0x12)
			},
			wantAddr: 0x1234,
		},
		{
			name: "indirect x pointer wraps in zero page",
			mode: IndirectX,
			setup: func() {
				write(0x0010, 0xFC) // 0xFC + X = 0xFF, high byte from 0x00
				write(0x00FF, 0x34)
				write(0x0000, 0x12)
			},
			wantAddr: 0x1234,
		},
		{
			name: "indirect y",
			mode: IndirectY,
			setup: func() {
				write(0x0010, 0x20)
				write(0x0020, 0x34, 0x12)
			},
			wantAddr: 0x1238,
		},
		{
			name: "indirect y page cross",
			mode: IndirectY,
			setup: func() {
				write(0x0010, 0x20)
				write(0x0020, 0xFE, 0x12)
			},
			wantAddr:    0x1302,
			wantCrossed: true,
		},
		{name: "relative forward", mode: Relative, wantAddr: 0x0010 + 1 + 0x2A},
		{
			name:     "relative backward",
			mode:     Relative,
			setup:    func() { write(0x0010, 0xFB) }, // -5
			wantAddr: 0x0010 + 1 - 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			write(0x0010, 0x2A, 0x01)
			if tt.setup != nil {
				tt.setup()
			}

			addr, crossed, err := cpu.operandAddress(tt.mode, 0x0010)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, addr)
			assert.Equal(t, tt.wantCrossed, crossed)
		})
	}

	_, _, err := cpu.operandAddress(Implied, 0x0010)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestCPU_ResolvedReadEquivalence(t *testing.T) {
	// resolving an address and reading it must equal reading through the
	// resolved address directly
	cpu := testCPU(t, nil)
	cpu.X = 0x07

	require.NoError(t, cpu.Bus.WriteByte(0x0010, 0x40))
	require.NoError(t, cpu.Bus.WriteByte(0x0047, 0x5A))

	addr, _, err := cpu.operandAddress(ZeroPageX, 0x0010)
	require.NoError(t, err)

	direct, err := cpu.Bus.ReadByte(0x0047)
	require.NoError(t, err)
	resolved, err := cpu.Bus.ReadByte(addr)
	require.NoError(t, err)
	assert.Equal(t, direct, resolved)
}

func TestCPU_IndirectJMPPageWrapBug(t *testing.T) {
	// pointer at $02FF: low byte comes from $02FF, high byte from $0200,
	// not $0300
	cpu := testCPU(t, []byte{0x6C, 0xFF, 0x02})

	require.NoError(t, cpu.Bus.WriteByte(0x02FF, 0x34))
	require.NoError(t, cpu.Bus.WriteByte(0x0200, 0x12))
	require.NoError(t, cpu.Bus.WriteByte(0x0300, 0x99))

	_, err := cpu.Step()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), cpu.PC)
}

func TestCPU_StackRoundTrips(t *testing.T) {
	t.Run("pha pla", func(t *testing.T) {
		cpu := testCPU(t, []byte{0x48, 0xA9, 0x00, 0x68, 0x00})
		cpu.A = 0x80
		require.NoError(t, cpu.Run())
		assert.Equal(t, byte(0x80), cpu.A)
		assert.NotZero(t, cpu.P&Negative)
		assert.Zero(t, cpu.P&Zero)
	})

	t.Run("php plp", func(t *testing.T) {
		cpu := testCPU(t, []byte{0x08, 0x18, 0x28, 0x00})
		cpu.P |= Carry | Negative
		before := cpu.P
		require.NoError(t, cpu.Run())

		// Break must come back cleared, Break2 set, everything else
		// restored
		assert.Equal(t, before&^Break|Break2, cpu.P)
	})

	t.Run("php pushes break bits", func(t *testing.T) {
		cpu := testCPU(t, []byte{0x08, 0x00})
		require.NoError(t, cpu.Run())
		v, err := cpu.Bus.ReadByte(stackHi | uint16(stackReset))
		require.NoError(t, err)
		assert.NotZero(t, v&byte(Break))
		assert.NotZero(t, v&byte(Break2))
	})
}

func TestCPU_AddLaws(t *testing.T) {
	cpu := testCPU(t, nil)

	for a := 0; a < 256; a += 3 {
		for m := 0; m < 256; m += 7 {
			for _, carry := range []bool{false, true} {
				cpu.A = byte(a)
				cpu.P &^= Carry
				cin := 0
				if carry {
					cpu.P |= Carry
					cin = 1
				}

				cpu.doAdd(byte(m))

				sum := a + m + cin
				require.Equal(t, byte(sum), cpu.A, "A=%d M=%d C=%d", a, m, cin)
				require.Equal(t, sum > 255, cpu.P&Carry > 0, "carry A=%d M=%d C=%d", a, m, cin)
				require.Equal(t, cpu.A == 0, cpu.P&Zero > 0)
				require.Equal(t, cpu.A&0x80 > 0, cpu.P&Negative > 0)
			}
		}
	}
}

func TestCPU_SBCMatchesComplementADC(t *testing.T) {
	// SBC M must behave exactly like ADC (M ^ 0xFF)
	run := func(opcode, a, m byte, carry bool) *CPU {
		cpu := testCPU(t, []byte{opcode, m, 0x00})
		cpu.A = a
		if carry {
			cpu.P |= Carry
		}
		require.NoError(t, cpu.Run())
		return cpu
	}

	for _, tc := range []struct{ a, m byte }{
		{0x50, 0x10}, {0x00, 0x01}, {0xFF, 0xFF}, {0x80, 0x7F},
	} {
		for _, carry := range []bool{false, true} {
			sbc := run(0xE9, tc.a, tc.m, carry)
			adc := run(0x69, tc.a, tc.m^0xFF, carry)
			assert.Equal(t, adc.A, sbc.A, "A=%02X M=%02X", tc.a, tc.m)
			assert.Equal(t, adc.P, sbc.P, "A=%02X M=%02X", tc.a, tc.m)
		}
	}
}

func TestCPU_RotateRoundTrip(t *testing.T) {
	cpu := testCPU(t, nil)

	for _, v := range []byte{0x00, 0x01, 0x42, 0x80, 0xFF} {
		// with a clear carry in, ROL then ROR restores values whose
		// carry out equals the carry in
		cpu.P &^= Carry
		cpu.A = v
		cpu.A = cpu.doRol(cpu.A)
		cpu.A = cpu.doRor(cpu.A)
		if v&0x80 == 0 {
			assert.Equal(t, v, cpu.A, "v=%02X", v)
		}
	}
}

func TestCPU_Compare(t *testing.T) {
	cpu := testCPU(t, nil)

	tests := []struct {
		reg, v                byte
		carry, zero, negative bool
	}{
		{reg: 0x10, v: 0x10, carry: true, zero: true, negative: false},
		{reg: 0x10, v: 0x0F, carry: true, zero: false, negative: false},
		{reg: 0x10, v: 0x11, carry: false, zero: false, negative: true},
		{reg: 0x00, v: 0xFF, carry: false, zero: false, negative: false},
		{reg: 0xFF, v: 0x00, carry: true, zero: false, negative: true},
		{reg: 0x80, v: 0x80, carry: true, zero: true, negative: false},
	}

	for _, tt := range tests {
		cpu.compare(tt.reg, tt.v)
		assert.Equal(t, tt.carry, cpu.P&Carry > 0, "carry %02X cmp %02X", tt.reg, tt.v)
		assert.Equal(t, tt.zero, cpu.P&Zero > 0, "zero %02X cmp %02X", tt.reg, tt.v)
		assert.Equal(t, tt.negative, cpu.P&Negative > 0, "negative %02X cmp %02X", tt.reg, tt.v)
	}
}

func TestCPU_BranchCycles(t *testing.T) {
	step := func(t *testing.T, offset byte, taken bool) uint64 {
		prg := make([]byte, 0x200)
		prg[0x00FC] = 0xD0 // BNE at $80FC
		prg[0x00FD] = offset
		cpu := testCPU(t, prg)
		cpu.PC = 0x80FC
		if !taken {
			cpu.P |= Zero
		}

		before := cpu.Bus.Cycles()
		_, err := cpu.Step()
		require.NoError(t, err)
		return cpu.Bus.Cycles() - before
	}

	assert.Equal(t, uint64(2), step(t, 0x02, false), "not taken")
	assert.Equal(t, uint64(3), step(t, 0xF0, true), "taken within page: $80FE-$10")
	assert.Equal(t, uint64(4), step(t, 0x10, true), "taken across page: $80FE+$10=$810E")
}

func TestCPU_PageCrossCycles(t *testing.T) {
	run := func(t *testing.T, program []byte, setup func(c *CPU)) uint64 {
		cpu := testCPU(t, program)
		if setup != nil {
			setup(cpu)
		}
		before := cpu.Bus.Cycles()
		_, err := cpu.Step()
		require.NoError(t, err)
		return cpu.Bus.Cycles() - before
	}

	// LDA $00F0,X with X=0x05: no cross, 4 cycles
	got := run(t, []byte{0xBD, 0xF0, 0x00}, func(c *CPU) { c.X = 0x05 })
	assert.Equal(t, uint64(4), got)

	// LDA $00F0,X with X=0x20: crosses into page 1, 5 cycles
	got = run(t, []byte{0xBD, 0xF0, 0x00}, func(c *CPU) { c.X = 0x20 })
	assert.Equal(t, uint64(5), got)

	// STA $00F0,X always pays the worst case: 5 cycles either way
	got = run(t, []byte{0x9D, 0xF0, 0x00}, func(c *CPU) { c.X = 0x05 })
	assert.Equal(t, uint64(5), got)
	got = run(t, []byte{0x9D, 0xF0, 0x00}, func(c *CPU) { c.X = 0x20 })
	assert.Equal(t, uint64(5), got)

	// page-crossable read NOP charges the extra cycle too
	got = run(t, []byte{0x1C, 0xF0, 0x00}, func(c *CPU) { c.X = 0x20 })
	assert.Equal(t, uint64(5), got)
}

func TestCPU_CycleFloor(t *testing.T) {
	// every opcode except BRK (which halts without ticking) must debit at
	// least its declared base cycles
	for code := 1; code < 256; code++ {
		inst := instructions[code]
		require.NotEmpty(t, inst.Name, "opcode 0x%02X missing from table", code)

		cpu := testCPU(t, []byte{byte(code), 0x00, 0x00})
		before := cpu.Bus.Cycles()
		_, err := cpu.Step()
		require.NoError(t, err, "opcode 0x%02X", code)
		require.GreaterOrEqual(t, cpu.Bus.Cycles()-before, uint64(inst.Cycles),
			"opcode 0x%02X (%s)", code, inst.Name)
	}
}

func TestCPU_NMI(t *testing.T) {
	// an endless loop at $8000; the PPU fires its NMI once vblank starts
	// and the handler at $9000 stores a marker
	prg := make([]byte, prgMul)
	copy(prg, []byte{0x4C, 0x00, 0x80}) // JMP $8000
	copy(prg[0x1000:], []byte{0xA9, 0x42, 0x85, 0x10, 0x00})
	prg[0x3FFA] = 0x00 // NMI vector -> $9000
	prg[0x3FFB] = 0x90
	prg[0x3FFC] = 0x00
	prg[0x3FFD] = 0x80

	image := make([]byte, 0)
	image = append(image, inesMagic...)
	image = append(image, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	image = append(image, prg...)
	image = append(image, make([]byte, chrMul)...)

	cart, err := NewCartridge(image)
	require.NoError(t, err)

	cpu := NewCPU(NewBus(cart))
	require.NoError(t, cpu.Reset())

	// enable NMI generation as the program would via $2000
	require.NoError(t, cpu.Bus.WriteByte(PPUCTRL, byte(CtrlGenerateNMI)))

	require.NoError(t, cpu.Run())

	v, err := cpu.Bus.ReadByte(0x0010)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), v)
	assert.NotZero(t, cpu.P&InterruptDisable)
}

func TestCPU_UnofficialOpcodes(t *testing.T) {
	tests := []struct {
		name    string
		program []byte
		setup   func(c *CPU)
		check   func(t *testing.T, c *CPU)
	}{
		{
			name:    "lax",
			program: []byte{0xA7, 0x10, 0x00},
			setup: func(c *CPU) {
				require.NoError(t, c.Bus.WriteByte(0x0010, 0x8F))
			},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, byte(0x8F), c.A)
				assert.Equal(t, byte(0x8F), c.X)
				assert.NotZero(t, c.P&Negative)
			},
		},
		{
			name:    "sax",
			program: []byte{0x87, 0x10, 0x00},
			setup: func(c *CPU) {
				c.A = 0xF0
				c.X = 0x3C
			},
			check: func(t *testing.T, c *CPU) {
				v, err := c.Bus.ReadByte(0x0010)
				require.NoError(t, err)
				assert.Equal(t, byte(0x30), v)
			},
		},
		{
			name:    "dcp",
			program: []byte{0xC7, 0x10, 0x00},
			setup: func(c *CPU) {
				c.A = 0x40
				require.NoError(t, c.Bus.WriteByte(0x0010, 0x41))
			},
			check: func(t *testing.T, c *CPU) {
				v, err := c.Bus.ReadByte(0x0010)
				require.NoError(t, err)
				assert.Equal(t, byte(0x40), v)
				assert.NotZero(t, c.P&Zero, "A equals the decremented value")
				assert.NotZero(t, c.P&Carry)
			},
		},
		{
			name:    "isb",
			program: []byte{0xE7, 0x10, 0x00},
			setup: func(c *CPU) {
				c.A = 0x10
				c.P |= Carry
				require.NoError(t, c.Bus.WriteByte(0x0010, 0x04))
			},
			check: func(t *testing.T, c *CPU) {
				v, err := c.Bus.ReadByte(0x0010)
				require.NoError(t, err)
				assert.Equal(t, byte(0x05), v)
				assert.Equal(t, byte(0x0B), c.A, "0x10 - 0x05")
			},
		},
		{
			name:    "slo",
			program: []byte{0x07, 0x10, 0x00},
			setup: func(c *CPU) {
				c.A = 0x01
				require.NoError(t, c.Bus.WriteByte(0x0010, 0x81))
			},
			check: func(t *testing.T, c *CPU) {
				v, err := c.Bus.ReadByte(0x0010)
				require.NoError(t, err)
				assert.Equal(t, byte(0x02), v)
				assert.Equal(t, byte(0x03), c.A)
				assert.NotZero(t, c.P&Carry, "bit 7 shifted out")
			},
		},
		{
			name:    "axs",
			program: []byte{0xCB, 0x02, 0x00},
			setup: func(c *CPU) {
				c.A = 0x0F
				c.X = 0x07
			},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, byte(0x05), c.X, "(A&X) - 2")
				assert.NotZero(t, c.P&Carry)
			},
		},
		{
			name:    "anc copies negative to carry",
			program: []byte{0x0B, 0xFF, 0x00},
			setup:   func(c *CPU) { c.A = 0x80 },
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, byte(0x80), c.A)
				assert.NotZero(t, c.P&Carry)
				assert.NotZero(t, c.P&Negative)
			},
		},
		{
			name:    "alr",
			program: []byte{0x4B, 0xFF, 0x00},
			setup:   func(c *CPU) { c.A = 0x03 },
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, byte(0x01), c.A)
				assert.NotZero(t, c.P&Carry, "bit 0 of the AND result")
			},
		},
		{
			name:    "arr derives carry from bit 6",
			program: []byte{0x6B, 0xFF, 0x00},
			setup: func(c *CPU) {
				c.A = 0x80
				c.P |= Carry
			},
			check: func(t *testing.T, c *CPU) {
				assert.Equal(t, byte(0xC0), c.A, "carry rotated into bit 7")
				assert.NotZero(t, c.P&Carry, "bit 6 of the result")
				assert.NotZero(t, c.P&Overflow, "bit 6 xor bit 5")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu := testCPU(t, tt.program)
			if tt.setup != nil {
				tt.setup(cpu)
			}
			require.NoError(t, cpu.Run())
			tt.check(t, cpu)
		})
	}
}

func TestCPU_HandlerCancellation(t *testing.T) {
	cpu := testCPU(t, []byte{0xEA, 0xEA, 0xEA, 0x00})

	steps := 0
	err := cpu.RunWithHandler(StepHandlerFunc(func(c *CPU) error {
		steps++
		if steps == 2 {
			return ErrUninitialized
		}
		return nil
	}))

	assert.ErrorIs(t, err, ErrUninitialized)
	assert.Equal(t, 2, steps)
}

func TestCPU_Collector(t *testing.T) {
	cpu := testCPU(t, []byte{0xA9, 0x01, 0xAA, 0x00})

	col := &Collector{}
	require.NoError(t, cpu.RunWithHandler(col))

	require.Len(t, col.Lines, 3)
	assert.Contains(t, col.Lines[0], "LDA #$01")
	assert.Contains(t, col.Lines[1], "TAX")
	assert.Contains(t, col.Lines[2], "BRK")
}
