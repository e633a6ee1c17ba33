package nes

// Memory is the byte and word I/O contract the CPU consumes from its bus.
// Addresses are 16 bits wide. Words are composed little-endian from two byte
// operations; there is no wider primitive on the wire.
type Memory interface {
	ReadByte(addr uint16) (byte, error)
	WriteByte(addr uint16, v byte) error
	ReadWord(addr uint16) (uint16, error)
	WriteWord(addr uint16, v uint16) error
}

var _ Memory = (*Bus)(nil)
