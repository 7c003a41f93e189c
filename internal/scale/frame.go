package scale

import "bytes"

const (
	// RecordLength is the size of a well-formed record including its delimiter.
	RecordLength = 22
	// Delimiter terminates every record on the wire.
	Delimiter byte = '\n'
	// MaxPending bounds how many undelimited bytes are retained.
	MaxPending = 4096
)

// FrameBuffer is a growable byte queue that yields delimiter-terminated frames.
// The zero value is ready to use.
type FrameBuffer struct {
	buf       bytes.Buffer
	discarded int
}

// Append queues bytes read from the source.
func (f *FrameBuffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	f.buf.Write(p)
	if f.buf.Len() > MaxPending && bytes.IndexByte(f.buf.Bytes(), Delimiter) < 0 {
		// No delimiter anywhere: keep only the tail that could still begin a record.
		drop := f.buf.Len() - RecordLength
		f.buf.Next(drop)
		f.discarded += drop
	}
}

// Next removes and returns the oldest frame including its delimiter. It reports
// false when the buffered bytes contain no delimiter yet.
func (f *FrameBuffer) Next() ([]byte, bool) {
	idx := bytes.IndexByte(f.buf.Bytes(), Delimiter)
	if idx < 0 {
		return nil, false
	}
	frame := make([]byte, idx+1)
	copy(frame, f.buf.Next(idx+1))
	return frame, true
}

// Pending reports the number of buffered bytes not yet emitted as a frame.
func (f *FrameBuffer) Pending() int {
	return f.buf.Len()
}

// Discarded reports how many undelimited bytes were dropped by the MaxPending guard.
func (f *FrameBuffer) Discarded() int {
	return f.discarded
}

// Reset drops any partially received frame.
func (f *FrameBuffer) Reset() {
	f.buf.Reset()
}
