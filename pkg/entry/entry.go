// Package entry defines the diagnostic entry model shared by producers,
// the fan-out sink, and surfaces.
package entry

import (
	"encoding/json"
	"fmt"
	"time"
)

// Severity classifies an entry for display and filtering.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Entry is one unit of diagnostic information contributed by a producer.
// Required fields: Source, Severity, Message, CreatedAt. The Source field
// is the source tag that distinguishes this producer's entries from other
// producers sharing the same surface; surfaces treat everything else as
// opaque. Entries are immutable once handed to a sink.
type Entry struct {
	Source    string          `json:"source"`
	Severity  Severity        `json:"severity"`
	Code      string          `json:"code,omitempty"`
	Message   string          `json:"message"`
	File      string          `json:"file,omitempty"`
	Line      int             `json:"line,omitempty"`
	Col       int             `json:"col,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// New constructs an entry with the creation time stamped in UTC.
func New(source string, severity Severity, message string) Entry {
	return Entry{
		Source:    source,
		Severity:  severity,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

// Key identifies an entry for removal matching. Two entries with the same
// key refer to the same diagnostic even if their timestamps differ.
func (e Entry) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s|%d|%d|%s", e.Source, e.Severity, e.Code, e.File, e.Line, e.Col, e.Message)
}
