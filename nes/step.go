package nes

import (
	"fmt"
	"io"
)

// StepHandler observes the CPU before each instruction. The handler may read
// any public state, including the bus, but must not mutate CPU state behind
// the interpreter's back. Returning an error aborts the run loop; that error
// is what RunWithHandler returns.
type StepHandler interface {
	HandleStep(c *CPU) error
}

// StepHandlerFunc adapts a function to the StepHandler interface.
type StepHandlerFunc func(c *CPU) error

func (f StepHandlerFunc) HandleStep(c *CPU) error {
	return f(c)
}

// TraceWriter writes one trace line per instruction to W.
type TraceWriter struct {
	W io.Writer
}

func NewTraceWriter(w io.Writer) *TraceWriter {
	return &TraceWriter{W: w}
}

func (t *TraceWriter) HandleStep(c *CPU) error {
	line, err := Trace(c)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(t.W, line)
	return err
}

// Collector keeps every trace line in memory; handy in tests.
type Collector struct {
	Lines []string
}

func (col *Collector) HandleStep(c *CPU) error {
	line, err := Trace(c)
	if err != nil {
		return err
	}
	col.Lines = append(col.Lines, line)
	return nil
}
