package nes

import (
	"errors"
	"fmt"
)

// The error kinds surfaced by the core. Callers match with errors.Is.
//
// ErrIllegal covers accesses that violate the bus contract: reads from
// write-only PPU registers, writes to the status register or to cartridge
// ROM, and PPU data accesses into the unused $3000-$3EFF window.
//
// ErrUnsupported covers addresses that are valid on real hardware but are
// backed by collaborators this core does not carry (save RAM, controller and
// APU reads), as well as NES 2.0 images and unknown opcode bytes.
//
// ErrUninitialized and ErrExpectedParameter are reserved for consumers of the
// core (debugger command parsing and the like); the core itself never
// produces them.
var (
	ErrIllegal           = errors.New("illegal access")
	ErrUnsupported       = errors.New("unsupported")
	ErrUninitialized     = errors.New("uninitialized")
	ErrExpectedParameter = errors.New("expected parameter")
)

func illegalf(format string, args ...interface{}) error {
	return fmt.Errorf("nes: "+format+": %w", append(args, ErrIllegal)...)
}

func unsupportedf(format string, args ...interface{}) error {
	return fmt.Errorf("nes: "+format+": %w", append(args, ErrUnsupported)...)
}
