package main

import (
	"flag"
	"fmt"
	"os"

	"nescore/nes"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <rom.nes>\n", os.Args[0])
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	var (
		trace = flag.Bool("trace", false, "write an instruction trace to stdout")
		pc    = flag.Uint("pc", 0, "override the start PC (0 = use the reset vector)")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
	}

	if err := run(flag.Arg(0), *trace, uint16(*pc)); err != nil {
		fmt.Fprintf(os.Stderr, "nes: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, trace bool, pc uint16) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("unable to open rom: %w", err)
	}
	defer f.Close()

	cartridge, err := nes.LoadINES(f)
	if err != nil {
		return err
	}

	cpu := nes.NewCPU(nes.NewBus(cartridge))
	if err := cpu.Reset(); err != nil {
		return err
	}
	if pc != 0 {
		cpu.PC = pc
	}

	var handler nes.StepHandler
	if trace {
		handler = nes.NewTraceWriter(os.Stdout)
	}

	return cpu.RunWithHandler(handler)
}
