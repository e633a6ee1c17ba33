package nes

import "log"

// ╔═════════════════╤═══════╤════════════════════════════╤════════════════╗
// ║ Address Range   │ Size  │ Purpose                    │ Kind           ║
// ╠═════════════════╪═══════╪════════════════════════════╪════════════════╣
// ║ 0x0000 - 0x1FFF │ 8192  │ Pattern tables             │ Character ROM  ║
// ╠═════════════════╪═══════╪════════════════════════════╪════════════════╣
// ║ 0x2000 - 0x2FFF │ 4096  │ Name tables                │ VRAM (2 KiB,   ║
// ║                 │       │                            │ mirrored)      ║
// ╠═════════════════╪═══════╪════════════════════════════╪════════════════╣
// ║ 0x3000 - 0x3EFF │ 3840  │ Mirror of 0x2000-0x2EFF    │ Unused here    ║
// ╠═════════════════╪═══════╪════════════════════════════╪════════════════╣
// ║ 0x3F00 - 0x3FFF │ 256   │ Palette (32 B, mirrored)   │ Palette RAM    ║
// ╚═════════════════╧═══════╧════════════════════════════╧════════════════╝

const (
	dotsPerScanline   = 341
	scanlinesPerFrame = 262
	vblankScanline    = 241
)

// PPU holds the picture unit's register file and memories. Only the parts
// the CPU can observe through $2000-$2007 are modeled: latches, the buffered
// data port, OAM, and the scanline counter that raises the vertical-blank
// NMI. Pixel composition is left to a front end.
type PPU struct {
	chr       ROM
	mirroring Mirroring

	ctrl   Control // 0x2000 PPUCTRL
	mask   Mask    // 0x2001 PPUMASK
	status Status  // 0x2002 PPUSTATUS

	oamAddress byte      // 0x2003 OAMADDR
	oamData    [256]byte // 0x2004 OAMDATA

	scroll scrollRegister  // 0x2005 PPUSCROLL
	addr   addressRegister // 0x2006 PPUADDR

	// w is the first/second write toggle shared by $2005 and $2006,
	// reset by a $2002 read.
	w bool

	readBuffer byte // 0x2007 PPUDATA

	vram         [2048]byte
	paletteTable [32]byte

	scanline int
	dots     int

	nmi    byte
	nmiSet bool
}

func NewPPU(chr ROM, mirroring Mirroring) *PPU {
	return &PPU{
		chr:       chr,
		mirroring: mirroring,
		w:         true,
	}
}

// Scanline reports the current scanline, 0 through 261. Scanlines 241-260
// are vertical blank.
func (p *PPU) Scanline() int { return p.scanline }

// Dot reports the current dot within the scanline, 0 through 340.
func (p *PPU) Dot() int { return p.dots }

// WriteCtrl updates $2000. Turning the generate-NMI bit on while the status
// register is already in vertical blank latches an NMI immediately.
func (p *PPU) WriteCtrl(v byte) {
	before := p.ctrl.GenerateVBlankNMI()
	p.ctrl = Control(v)

	if !before && p.ctrl.GenerateVBlankNMI() && p.status&StatusVerticalBlank > 0 {
		p.latchNMI()
	}
}

func (p *PPU) WriteMask(v byte) {
	p.mask = Mask(v)
}

// ReadStatus returns a snapshot of $2002, then clears the vertical-blank bit
// and resets the shared $2005/$2006 write toggle.
func (p *PPU) ReadStatus() byte {
	data := byte(p.status)
	p.status &^= StatusVerticalBlank
	p.w = true
	return data
}

func (p *PPU) WriteOAMAddress(v byte) {
	p.oamAddress = v
}

// WriteOAMData stores at the current OAM address and post-increments it,
// wrapping at 256.
func (p *PPU) WriteOAMData(v byte) {
	p.oamData[p.oamAddress] = v
	p.oamAddress++
}

// ReadOAMData reads at the current OAM address. Reads do not increment.
func (p *PPU) ReadOAMData() byte {
	return p.oamData[p.oamAddress]
}

// WriteOAMDMA copies a full 256-byte page into OAM starting at the current
// OAM address. Cycle stalls for the copy are not modeled.
func (p *PPU) WriteOAMDMA(data *[256]byte) {
	for _, v := range data {
		p.oamData[p.oamAddress] = v
		p.oamAddress++
	}
}

func (p *PPU) WriteScroll(v byte) {
	p.scroll.write(v, p.w)
	p.w = !p.w
}

func (p *PPU) WriteAddr(v byte) {
	p.addr.update(v, p.w)
	p.w = !p.w
}

// WriteData writes through $2007 at the current PPU address, then increments
// the address by 1 or 32 per the control register.
//
// Writes aimed at character ROM cannot land; they are logged and discarded,
// which is what most cartridges do with them.
func (p *PPU) WriteData(v byte) error {
	addr := p.addr.get()

	switch {
	case addr < 0x2000:
		log.Printf("nes: discarding write to character rom: 0x%04X = 0x%02X", addr, v)

	case addr < 0x3000:
		p.vram[p.MirrorVRAMAddr(addr)] = v

	case addr < 0x3F00:
		return illegalf("ppu data write to unused region 0x%04X", addr)

	default:
		p.paletteTable[paletteIndex(addr)] = v
	}

	p.addr.add(p.ctrl.VRAMIncrement())
	return nil
}

// ReadData reads through $2007 at the current PPU address, then increments
// the address. Reads below the palette are buffered: the caller gets the
// previous buffer contents and the buffer is refilled from the addressed
// space. Palette reads return directly.
func (p *PPU) ReadData() (byte, error) {
	addr := p.addr.get()
	p.addr.add(p.ctrl.VRAMIncrement())

	switch {
	case addr < 0x2000:
		result := p.readBuffer
		v, err := p.chr.ReadByte(addr)
		if err != nil {
			return 0, err
		}
		p.readBuffer = v
		return result, nil

	case addr < 0x3000:
		result := p.readBuffer
		p.readBuffer = p.vram[p.MirrorVRAMAddr(addr)]
		return result, nil

	case addr < 0x3F00:
		return 0, illegalf("ppu data read from unused region 0x%04X", addr)

	default:
		return p.paletteTable[paletteIndex(addr)], nil
	}
}

// paletteIndex collapses a $3F00-$3FFF address to its slot in the 32-byte
// palette. $3F10/$3F14/$3F18/$3F1C mirror $3F00/$3F04/$3F08/$3F0C.
func paletteIndex(addr uint16) uint16 {
	addr &= 0x3F1F
	switch addr {
	case 0x3F10, 0x3F14, 0x3F18, 0x3F1C:
		addr -= 0x10
	}
	return addr - 0x3F00
}

// MirrorVRAMAddr maps a $2000-$3EFF nametable address to an index into the
// 2 KiB of physical VRAM. The address space holds four 1 KiB logical tables
// backed by two physical ones; the cartridge decides which pairs coincide.
func (p *PPU) MirrorVRAMAddr(addr uint16) uint16 {
	index := addr&0x2FFF - 0x2000
	quadrant := index / 0x400

	switch p.mirroring {
	case Vertical:
		if quadrant == 2 || quadrant == 3 {
			index -= 0x800
		}
	case Horizontal:
		switch quadrant {
		case 1, 2:
			index -= 0x400
		case 3:
			index -= 0x800
		}
	}

	return index
}

// Tick advances the dot counter by n dots (the bus calls this with three
// dots per CPU cycle). Vertical blank starts at scanline 241, raising an NMI
// when the control register asks for one. The return value reports whether a
// frame completed, which also clears vblank, sprite-zero-hit, and any
// undelivered NMI.
func (p *PPU) Tick(n int) bool {
	frame := false
	p.dots += n

	for p.dots >= dotsPerScanline {
		p.dots -= dotsPerScanline
		p.scanline++

		if p.scanline == vblankScanline {
			p.status |= StatusVerticalBlank
			if p.ctrl.GenerateVBlankNMI() {
				p.latchNMI()
			}
		}

		if p.scanline >= scanlinesPerFrame {
			p.scanline = 0
			p.nmiSet = false
			p.status &^= StatusVerticalBlank
			p.status &^= StatusSpriteZeroHit
			frame = true
		}
	}

	return frame
}

func (p *PPU) latchNMI() {
	p.nmi = 1
	p.nmiSet = true
}

// PollNMI returns the latched NMI, if any, and clears it.
func (p *PPU) PollNMI() (byte, bool) {
	if !p.nmiSet {
		return 0, false
	}
	p.nmiSet = false
	return p.nmi, true
}
