// Package surface models the aggregated error-list view that entry
// producers contribute to. The surface is the source of truth for what is
// currently visible; producers keep no copy of delivered entries.
package surface

import "github.com/errdeck/errdeck/pkg/entry"

// Surface accepts source registrations and answers visibility queries.
// Implementations must be safe for concurrent use.
type Surface interface {
	// RegisterSource registers a named producer under a stable ID.
	// Registering an ID that is already active is an error.
	RegisterSource(id, name string) (Source, error)

	// VisibleEntries returns the currently visible entries carrying the
	// given source tag.
	VisibleEntries(sourceTag string) ([]entry.Entry, error)
}

// Source is a registered producer's handle into a surface. Add and Remove
// change what the aggregated view shows; Unregister withdraws the source
// and everything it contributed.
type Source interface {
	AddEntries(batch []entry.Entry) error
	RemoveEntries(batch []entry.Entry) error
	Unregister() error
}

// Raiser is an optional capability. Surfaces that can present themselves
// to the user implement it; callers capability-check with a type
// assertion and treat absence as a no-op.
type Raiser interface {
	RaiseWindow() error
}
