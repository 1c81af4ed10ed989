package feed

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/errdeck/errdeck/internal/errx"
	"github.com/errdeck/errdeck/pkg/entry"
)

// JSONLWriter appends every notification as one JSON line to a file. It
// satisfies the sink's Notifier contract and is safe for concurrent use.
type JSONLWriter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// Record is the per-line shape written by JSONLWriter.
type Record struct {
	Timestamp time.Time     `json:"ts"`
	Op        string        `json:"op"`
	Entries   []entry.Entry `json:"entries"`
}

// NewJSONLWriter appends to the file at path, creating it if needed.
// The parent directory must already exist.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errx.Wrap(ErrWriteFrame, err)
	}
	return &JSONLWriter{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

func (w *JSONLWriter) AddEntries(batch []entry.Entry) error {
	return w.write("add", batch)
}

func (w *JSONLWriter) RemoveEntries(batch []entry.Entry) error {
	return w.write("remove", batch)
}

func (w *JSONLWriter) write(op string, batch []entry.Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	rec := Record{
		Timestamp: time.Now().UTC(),
		Op:        op,
		Entries:   batch,
	}
	if err := w.enc.Encode(rec); err != nil {
		return errx.Wrap(ErrWriteFrame, err)
	}
	return nil
}

// Close syncs and closes the underlying file.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.file.Sync()
	return w.file.Close()
}
