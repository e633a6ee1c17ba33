package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"nescore/nes"
)

const historyLen = 24

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	faintStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	columnStyle = lipgloss.NewStyle().MarginRight(4)
)

type model struct {
	cpu *nes.CPU

	lines []string // most recent trace lines, oldest first
	done  bool
	err   error
}

func (m *model) Init() tea.Cmd {
	m.record()
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case " ", "j", "enter":
			if m.done || m.err != nil {
				return m, tea.Quit
			}

			done, err := m.cpu.Step()
			m.done = done
			if err != nil {
				m.err = err
				return m, nil
			}
			m.record()
		}
	}
	return m, nil
}

// record appends the trace line for the instruction about to execute.
func (m *model) record() {
	line, err := nes.Trace(m.cpu)
	if err != nil {
		m.err = err
		return
	}
	m.lines = append(m.lines, line)
	if len(m.lines) > historyLen {
		m.lines = m.lines[len(m.lines)-historyLen:]
	}
}

func (m *model) registers() string {
	flags := ""
	for _, f := range []struct {
		name string
		bit  nes.Flags
	}{
		{"N", nes.Negative}, {"V", nes.Overflow}, {"B", nes.Break},
		{"D", nes.Decimal}, {"I", nes.InterruptDisable},
		{"Z", nes.Zero}, {"C", nes.Carry},
	} {
		if m.cpu.P&f.bit > 0 {
			flags += f.name
		} else {
			flags += faintStyle.Render(f.name)
		}
	}

	ppu := m.cpu.Bus.PPU()
	return fmt.Sprintf(
		"PC: %04X\n A: %02X\n X: %02X\n Y: %02X\nSP: %02X\n P: %02X %s\n\nCYC: %d\nPPU: %d,%d",
		m.cpu.PC, m.cpu.A, m.cpu.X, m.cpu.Y, m.cpu.SP, byte(m.cpu.P), flags,
		m.cpu.Bus.Cycles(), ppu.Scanline(), ppu.Dot(),
	)
}

func (m *model) View() string {
	trace := titleStyle.Render("trace") + "\n"
	for i, line := range m.lines {
		if i == len(m.lines)-1 {
			trace += line + "\n"
		} else {
			trace += faintStyle.Render(line) + "\n"
		}
	}

	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		columnStyle.Render(trace),
		m.registers(),
	)

	footer := faintStyle.Render("space/j: step  q: quit")
	if m.done {
		footer = "halted (BRK), space/j/q quits"
	}
	if m.err != nil {
		footer = errorStyle.Render(m.err.Error())
	}

	// the raw table entry is more useful than a disassembled operand when
	// poking at unofficial opcodes
	var dump string
	if code, err := m.cpu.Bus.ReadByte(m.cpu.PC); err == nil {
		dump = faintStyle.Render(spew.Sdump(nes.Lookup(code)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, dump, footer)
}

func main() {
	var pc = flag.Uint("pc", 0, "override the start PC (0 = use the reset vector)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <rom.nes>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), uint16(*pc)); err != nil {
		fmt.Fprintf(os.Stderr, "nesdbg: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, pc uint16) error {
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

	_, err = tea.NewProgram(&model{cpu: cpu}).Run()
	return err
}
