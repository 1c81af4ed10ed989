package sink

import "github.com/errdeck/errdeck/pkg/entry"

// Notifier consumes add/remove notifications from a Sink.
// Implementations must be safe for concurrent use and must not modify
// the batches they are handed.
type Notifier interface {
	AddEntries(batch []entry.Entry) error
	RemoveEntries(batch []entry.Entry) error
}
