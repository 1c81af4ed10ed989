package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/errdeck/errdeck/pkg/entry"
)

// printNotifier renders notifications as plain text, one entry per line.
type printNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func newPrintNotifier(out io.Writer) *printNotifier {
	return &printNotifier{out: out}
}

func (p *printNotifier) AddEntries(batch []entry.Entry) error {
	return p.print("+", batch)
}

func (p *printNotifier) RemoveEntries(batch []entry.Entry) error {
	return p.print("-", batch)
}

func (p *printNotifier) print(mark string, batch []entry.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range batch {
		loc := ""
		if e.File != "" {
			loc = fmt.Sprintf(" (%s:%d)", e.File, e.Line)
		}
		code := ""
		if e.Code != "" {
			code = " " + e.Code
		}
		if _, err := fmt.Fprintf(p.out, "%s %s%s %s%s\n", mark, e.Severity, code, e.Message, loc); err != nil {
			return err
		}
	}
	return nil
}
