package measurements

import (
	"context"
	"time"
)

// TimestampLayout is the stored timestamp format (local wall clock).
const TimestampLayout = "2006-01-02 15:04:05"

// Measurement is one persisted reading.
type Measurement struct {
	ID        int64  `json:"id"`
	Weight    int    `json:"weight"`
	Timestamp string `json:"timestamp"`
	// Image is the snapshot file name; empty means no image was captured.
	Image   string `json:"image,omitempty"`
	Machine string `json:"machine,omitempty"`
}

// HasImage reports whether a snapshot is attached.
func (m Measurement) HasImage() bool {
	return m.Image != ""
}

// Machine is a known machine label.
type Machine struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FormatTimestamp renders t in the stored layout using local time.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// Store is the persistence sink for measurements.
type Store interface {
	// Insert stores m and returns its id. An empty Timestamp is filled with now.
	Insert(ctx context.Context, m Measurement) (int64, error)
	// List returns up to limit rows starting at offset, newest id first.
	List(ctx context.Context, offset, limit int) ([]Measurement, error)
	Count(ctx context.Context) (int, error)
	// Get returns nil when the id does not exist.
	Get(ctx context.Context, id int64) (*Measurement, error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, id int64) (bool, error)
	Machines(ctx context.Context) ([]Machine, error)
	// ResolveMachine maps a label to its canonical machine name.
	ResolveMachine(ctx context.Context, label string) (string, bool, error)
	Close() error
}
