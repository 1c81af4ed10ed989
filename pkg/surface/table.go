package surface

import (
	"sync"

	"github.com/errdeck/errdeck/internal/errx"
	"github.com/errdeck/errdeck/pkg/entry"
)

// Table is an in-memory Surface. It aggregates entries contributed by all
// registered sources and serves visibility queries over the union.
type Table struct {
	mu      sync.Mutex
	sources map[string]*tableSource

	raiseFn func() error
}

// NewTable creates an empty in-memory surface.
func NewTable() *Table {
	return &Table{sources: make(map[string]*tableSource)}
}

// NewRaisableTable creates a table whose RaiseWindow capability invokes
// the given function. Useful for wiring a viewer's focus action.
func NewRaisableTable(raise func() error) *Table {
	t := NewTable()
	t.raiseFn = raise
	return t
}

func (t *Table) RegisterSource(id, name string) (Source, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.sources[id]; exists {
		return nil, errx.With(ErrDuplicateSource, ": %q", id)
	}
	src := &tableSource{table: t, id: id, name: name}
	t.sources[id] = src
	return src, nil
}

func (t *Table) VisibleEntries(sourceTag string) ([]entry.Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []entry.Entry
	for _, src := range t.sources {
		for _, e := range src.entries {
			if e.Source == sourceTag {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// AllEntries returns every visible entry regardless of source tag.
func (t *Table) AllEntries() []entry.Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []entry.Entry
	for _, src := range t.sources {
		out = append(out, src.entries...)
	}
	return out
}

// RaiseWindow implements the optional Raiser capability when the table
// was built with NewRaisableTable. Without a raise function it reports
// success without doing anything.
func (t *Table) RaiseWindow() error {
	if t.raiseFn == nil {
		return nil
	}
	return t.raiseFn()
}

// tableSource tracks one producer's contribution. The parent table's
// mutex guards all fields.
type tableSource struct {
	table        *Table
	id           string
	name         string
	entries      []entry.Entry
	unregistered bool
}

func (s *tableSource) AddEntries(batch []entry.Entry) error {
	s.table.mu.Lock()
	defer s.table.mu.Unlock()
	if s.unregistered {
		return errx.With(ErrSourceUnregistered, ": %q", s.id)
	}
	s.entries = append(s.entries, batch...)
	return nil
}

func (s *tableSource) RemoveEntries(batch []entry.Entry) error {
	s.table.mu.Lock()
	defer s.table.mu.Unlock()
	if s.unregistered {
		return errx.With(ErrSourceUnregistered, ": %q", s.id)
	}
	drop := make(map[string]bool, len(batch))
	for _, e := range batch {
		drop[e.Key()] = true
	}
	kept := s.entries[:0]
	for _, e := range s.entries {
		if !drop[e.Key()] {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

func (s *tableSource) Unregister() error {
	s.table.mu.Lock()
	defer s.table.mu.Unlock()
	if s.unregistered {
		return errx.With(ErrSourceUnregistered, ": %q", s.id)
	}
	s.unregistered = true
	s.entries = nil
	delete(s.table.sources, s.id)
	return nil
}
