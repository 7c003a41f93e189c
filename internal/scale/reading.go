package scale

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	stableToken   = "ST"
	weightStart   = 9
	weightEnd     = 16
	weightWidth   = weightEnd - weightStart
	maxWireWeight = 9999999
	minWireWeight = -999999
)

var (
	// ErrFrameLength reports a frame whose length is not RecordLength.
	ErrFrameLength = errors.New("frame length mismatch")
	// ErrWeightField reports a weight field that does not hold an integer.
	ErrWeightField = errors.New("weight field not numeric")
)

// Reading is one decoded record.
type Reading struct {
	Stable bool
	Weight int
}

// Stability renders the stability flag for logs and API payloads.
func (r Reading) Stability() string {
	if r.Stable {
		return "stable"
	}
	return "unstable"
}

// Decode parses a RecordLength record. Anything other than the literal ST token
// in the first two bytes is treated as unstable.
func Decode(record []byte) (Reading, error) {
	if len(record) != RecordLength {
		return Reading{}, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameLength, len(record), RecordLength)
	}
	field := strings.TrimSpace(string(record[weightStart:weightEnd]))
	weight, err := strconv.Atoi(field)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %q: %w", ErrWeightField, record[weightStart:weightEnd], err)
	}
	return Reading{
		Stable: string(record[:2]) == stableToken,
		Weight: weight,
	}, nil
}

// Encode builds a wire record in the indicator's layout, e.g.
// "ST,GS,   0001234kg  \r\n". It is used by the simulator and tests.
func Encode(stable bool, weight int) ([]byte, error) {
	if weight > maxWireWeight || weight < minWireWeight {
		return nil, fmt.Errorf("weight %d does not fit the %d character field", weight, weightWidth)
	}
	token := "US"
	if stable {
		token = stableToken
	}
	record := fmt.Sprintf("%s,GS,   %0*dkg  \r\n", token, weightWidth, weight)
	if len(record) != RecordLength {
		return nil, fmt.Errorf("encoded record has %d bytes", len(record))
	}
	return []byte(record), nil
}
