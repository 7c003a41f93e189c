package testsupport

import (
	"context"
	"testing"

	"weighstation/internal/config"
	"weighstation/internal/measurements"
)

// MustOpenStore opens the configured measurement store for tests and
// registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) measurements.Store {
	t.Helper()

	store, err := measurements.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("measurements.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// InsertMeasurement stores a row for tests and returns its id.
func InsertMeasurement(t testing.TB, store measurements.Store, weight int, image string) int64 {
	t.Helper()

	id, err := store.Insert(context.Background(), measurements.Measurement{Weight: weight, Image: image})
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return id
}
