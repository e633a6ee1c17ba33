package nes

// ╔═════════════════╤═══════╤═════════════════════════╤═══════════╗
// ║ Address Range   │ Size  │ Purpose                 │ Kind      ║
// ╠═════════════════╪═══════╪═════════════════════════╪═══════════╣
// ║ 0x8000 - 0xFFFF │ 32768 │ PRG-ROM (16 KiB images  │  PRG ROM  ║
// ║                 │       │ are mirrored)           │           ║
// ╠═════════════════╪═══════╪═════════════════════════╪═══════════╣
// ║ 0x6000 - 0x7FFF │ 8192  │ SRAM (not carried)      │   SRAM    ║
// ╠═════════════════╪═══════╪═════════════════════════╪═══════════╣
// ║ 0x4020 - 0x5FFF │ 8160  │ EXPANSION ROM           │  EXP ROM  ║
// ╠═════════════════╪═══════╪═════════════════════════╪═══════════╣
// ║ 0x4000 - 0x401F │ 32    │ APU / I/O REGISTERS     │           ║
// ╟╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┤           ║
// ║ 0x2008 - 0x3FFF │ 8184  │ MIRRORS 0x2000 - 0x2007 │  I/O REG  ║
// ╟╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┤           ║
// ║ 0x2000 - 0x2007 │ 8     │ PPU REGISTERS           │           ║
// ╠═════════════════╪═══════╪═════════════════════════╪═══════════╣
// ║ 0x0800 - 0x1FFF │ 6144  │ MIRRORS 0x0000 - 0x07FF │           ║
// ╟╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┤    RAM    ║
// ║ 0x0100 - 0x01FF │ 256   │ STACK                   │           ║
// ╟╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌┼╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌╌┤           ║
// ║ 0x0000 - 0x00FF │ 256   │ ZERO PAGE               │           ║
// ╚═════════════════╧═══════╧═════════════════════════╧═══════════╝

// Memory-mapped register addresses as the CPU sees them.
const (
	PPUCTRL   uint16 = 0x2000
	PPUMASK   uint16 = 0x2001
	PPUSTATUS uint16 = 0x2002
	OAMADDR   uint16 = 0x2003
	OAMDATA   uint16 = 0x2004
	PPUSCROLL uint16 = 0x2005
	PPUADDR   uint16 = 0x2006
	PPUDATA   uint16 = 0x2007
	OAMDMA    uint16 = 0x4014
	JOY1      uint16 = 0x4016
	JOY2      uint16 = 0x4017
)

// Bus is the address decoder between the CPU and everything else: work RAM
// with its mirrors, the PPU register file, and cartridge ROM. It also keeps
// the CPU cycle count and forwards it to the PPU at three dots per cycle.
//
// Every CPU memory access goes through here; the CPU never indexes RAM or
// PPU storage directly.
type Bus struct {
	ram       *RAM
	prg       ROM
	ppu       *PPU
	mirroring Mirroring

	cycles uint64
}

func NewBus(cartridge *Cartridge) *Bus {
	return &Bus{
		ram:       NewRAM(),
		prg:       cartridge.PRG,
		ppu:       NewPPU(cartridge.CHR, cartridge.Mirroring),
		mirroring: cartridge.Mirroring,
	}
}

// PPU exposes the picture unit for inspection (debugger, tests). Mutating it
// behind the CPU's back is the caller's problem.
func (b *Bus) PPU() *PPU {
	return b.ppu
}

// Mirroring reports the cartridge-selected nametable mirroring.
func (b *Bus) Mirroring() Mirroring {
	return b.mirroring
}

// Cycles reports the CPU cycles consumed so far. The value is only meaningful
// for tracing and PPU synchronization; wrap-around is fine.
func (b *Bus) Cycles() uint64 {
	return b.cycles
}

// Tick debits cycles from the bus and advances the PPU by three dots per CPU
// cycle. It reports whether the PPU completed a frame.
func (b *Bus) Tick(cycles int) bool {
	b.cycles += uint64(cycles)
	return b.ppu.Tick(cycles * 3)
}

// PollNMI returns the PPU's latched vertical-blank NMI, if any, clearing it.
func (b *Bus) PollNMI() (byte, bool) {
	return b.ppu.PollNMI()
}

func (b *Bus) ReadByte(addr uint16) (byte, error) {
	switch {
	case addr < 0x2000:
		return b.ram.Read(addr & 0x07FF), nil

	case addr < 0x4000:
		switch 0x2000 | addr&0x0007 {
		case PPUSTATUS:
			return b.ppu.ReadStatus(), nil
		case OAMDATA:
			return b.ppu.ReadOAMData(), nil
		case PPUDATA:
			return b.ppu.ReadData()
		default:
			return 0, illegalf("read from write-only ppu register 0x%04X", addr)
		}

	case addr == OAMDMA:
		return 0, illegalf("read from write-only register 0x%04X", addr)

	case addr < 0x4020:
		// controller and APU reads belong to collaborators this core
		// does not carry
		return 0, unsupportedf("read from io register 0x%04X", addr)

	case addr < 0x6000:
		return 0, unsupportedf("read from expansion rom 0x%04X", addr)

	case addr < 0x8000:
		return 0, unsupportedf("read from save ram 0x%04X", addr)

	default:
		offset := addr - 0x8000
		if b.prg.Len() == 0x4000 {
			// 16 KiB images appear in both halves of the window
			offset %= 0x4000
		}
		return b.prg.ReadByte(offset)
	}
}

func (b *Bus) WriteByte(addr uint16, v byte) error {
	switch {
	case addr < 0x2000:
		b.ram.Write(addr&0x07FF, v)
		return nil

	case addr < 0x4000:
		switch 0x2000 | addr&0x0007 {
		case PPUCTRL:
			b.ppu.WriteCtrl(v)
		case PPUMASK:
			b.ppu.WriteMask(v)
		case PPUSTATUS:
			return illegalf("write to ppu status register 0x%04X", addr)
		case OAMADDR:
			b.ppu.WriteOAMAddress(v)
		case OAMDATA:
			b.ppu.WriteOAMData(v)
		case PPUSCROLL:
			b.ppu.WriteScroll(v)
		case PPUADDR:
			b.ppu.WriteAddr(v)
		case PPUDATA:
			return b.ppu.WriteData(v)
		}
		return nil

	case addr == OAMDMA:
		return b.dmaTransfer(v)

	case addr < 0x4020:
		// controller and APU writes are accepted and dropped
		return nil

	case addr < 0x6000:
		return illegalf("write to expansion rom 0x%04X", addr)

	case addr < 0x8000:
		return unsupportedf("write to save ram 0x%04X", addr)

	default:
		return illegalf("write to cartridge rom 0x%04X", addr)
	}
}

// dmaTransfer copies the 256-byte page hi<<8 into OAM. The cycle stall a
// real DMA imposes is not modeled.
func (b *Bus) dmaTransfer(hi byte) error {
	var page [256]byte
	base := uint16(hi) << 8
	for i := range page {
		v, err := b.ReadByte(base + uint16(i))
		if err != nil {
			return err
		}
		page[i] = v
	}
	b.ppu.WriteOAMDMA(&page)
	return nil
}

// ReadWord composes a little-endian word from two byte reads.
func (b *Bus) ReadWord(addr uint16) (uint16, error) {
	lo, err := b.ReadByte(addr)
	if err != nil {
		return 0, err
	}
	hi, err := b.ReadByte(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// WriteWord decomposes v into two little-endian byte writes.
func (b *Bus) WriteWord(addr uint16, v uint16) error {
	if err := b.WriteByte(addr, byte(v)); err != nil {
		return err
	}
	return b.WriteByte(addr+1, byte(v>>8))
}
