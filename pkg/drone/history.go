package drone

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistorySize is the number of records kept by a History.
const DefaultHistorySize = 100

// Record is one dispatched (or rejected) command.
type Record struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Input   string    `json:"input"`
	Command string    `json:"command,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// History is a bounded, concurrency-safe log of recent commands.
type History struct {
	mu      sync.RWMutex
	records []Record
	size    int
}

// NewHistory creates a history keeping the last size records.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		records: make([]Record, 0, size),
		size:    size,
	}
}

// Add appends a record and returns it. cmd may be nil for input that never
// decoded to a command.
func (h *History) Add(input string, cmd *Command, err error) Record {
	rec := Record{
		ID:    uuid.New().String(),
		Time:  time.Now(),
		Input: input,
	}
	if cmd != nil {
		rec.Command = cmd.String()
	}
	if err != nil {
		rec.Error = err.Error()
	}

	h.mu.Lock()
	h.records = append(h.records, rec)
	if len(h.records) > h.size {
		h.records = h.records[1:]
	}
	h.mu.Unlock()

	return rec
}

// Records returns a copy of the stored records, oldest first.
func (h *History) Records() []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out
}

// Len returns the number of stored records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}
