package scale

const (
	// DefaultOffset is the minimum weight change that counts as a new measurement.
	DefaultOffset = 40
	// DefaultSentinel seeds the filter so the first stable reading near zero is accepted.
	DefaultSentinel = -100
)

// Filter decides whether a reading is a new measurement. It keeps the last
// accepted weight and is not safe for concurrent use.
type Filter struct {
	offset int
	last   int
}

// NewFilter returns a filter seeded with sentinel. Negative offsets are treated as zero.
func NewFilter(offset, sentinel int) *Filter {
	if offset < 0 {
		offset = 0
	}
	return &Filter{offset: offset, last: sentinel}
}

// Evaluate accepts a stable reading whose weight lies strictly outside
// last±offset, and records it as the new reference weight.
func (f *Filter) Evaluate(r Reading) (int, bool) {
	if !r.Stable {
		return 0, false
	}
	if r.Weight > f.last+f.offset || r.Weight < f.last-f.offset {
		f.last = r.Weight
		return r.Weight, true
	}
	return 0, false
}

// Last returns the most recently accepted weight, or the sentinel.
func (f *Filter) Last() int {
	return f.last
}

// Offset returns the configured threshold.
func (f *Filter) Offset() int {
	return f.offset
}
