package measurements_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"weighstation/internal/measurements"
	"weighstation/internal/testsupport"
)

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := measurements.OpenSQLite(context.Background(), cfg.Storage.Path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	version, err := store.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 4 {
		t.Fatalf("expected user_version 4, got %d", version)
	}

	machines, err := store.Machines(context.Background())
	if err != nil {
		t.Fatalf("Machines: %v", err)
	}
	want := []string{"DF 6160", "DF 5100", "DF 7250"}
	if len(machines) != len(want) {
		t.Fatalf("expected %d machines, got %+v", len(want), machines)
	}
	for i, name := range want {
		if machines[i].Name != name {
			t.Fatalf("machine %d: got %q want %q", i, machines[i].Name, name)
		}
	}
}

func TestReopenDoesNotReseedMachines(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		store, err := measurements.OpenSQLite(ctx, cfg.Storage.Path)
		if err != nil {
			t.Fatalf("OpenSQLite #%d: %v", i, err)
		}
		machines, err := store.Machines(ctx)
		if err != nil {
			t.Fatalf("Machines: %v", err)
		}
		if len(machines) != 3 {
			t.Fatalf("open #%d: expected 3 machines, got %d", i, len(machines))
		}
		store.Close()
	}
}

func TestMigratesLegacyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.db")
	legacy, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open legacy db: %v", err)
	}
	stmts := []string{
		`CREATE TABLE weights (id INTEGER PRIMARY KEY AUTOINCREMENT, weight INTEGER, timestamp DATETIME)`,
		`ALTER TABLE weights ADD image VARCHAR`,
		`PRAGMA user_version = 2`,
		`INSERT INTO weights (weight, timestamp, image) VALUES (1500, '2023-05-01 08:30:00', 'old.jpg')`,
	}
	for _, stmt := range stmts {
		if _, err := legacy.Exec(stmt); err != nil {
			t.Fatalf("legacy exec %q: %v", stmt, err)
		}
	}
	legacy.Close()

	store, err := measurements.OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	version, err := store.SchemaVersion(context.Background())
	if err != nil || version != 4 {
		t.Fatalf("expected version 4, got %d err=%v", version, err)
	}
	items, err := store.List(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected legacy row to survive, got %+v", items)
	}
	got := items[0]
	if got.Weight != 1500 || got.Timestamp != "2023-05-01 08:30:00" || got.Image != "old.jpg" || got.Machine != "" {
		t.Fatalf("unexpected legacy row %+v", got)
	}
}

func TestInsertListOrderAndPagination(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	var ids []int64
	for _, weight := range []int{0, 52, 1, 980, -12} {
		ids = append(ids, testsupport.InsertMeasurement(t, store, weight, ""))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("ids not increasing: %v", ids)
		}
	}

	count, err := store.Count(ctx)
	if err != nil || count != 5 {
		t.Fatalf("expected count 5, got %d err=%v", count, err)
	}

	page1, err := store.List(ctx, 0, 2)
	if err != nil {
		t.Fatalf("List page1: %v", err)
	}
	page2, err := store.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("List page2: %v", err)
	}
	page3, err := store.List(ctx, 4, 2)
	if err != nil {
		t.Fatalf("List page3: %v", err)
	}
	var weights []int
	for _, page := range [][]measurements.Measurement{page1, page2, page3} {
		for _, m := range page {
			weights = append(weights, m.Weight)
		}
	}
	want := []int{-12, 980, 1, 52, 0}
	if len(weights) != len(want) {
		t.Fatalf("unexpected weights %v", weights)
	}
	for i := range want {
		if weights[i] != want[i] {
			t.Fatalf("expected newest first %v, got %v", want, weights)
		}
	}
	for _, m := range page1 {
		if !timestampPattern.MatchString(m.Timestamp) {
			t.Fatalf("unexpected timestamp format %q", m.Timestamp)
		}
		if m.HasImage() {
			t.Fatalf("expected null image, got %q", m.Image)
		}
	}

	empty, err := store.List(ctx, 100, 10)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty page beyond end, got %v err=%v", empty, err)
	}
	none, err := store.List(ctx, -5, 0)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty result for zero limit, got %v err=%v", none, err)
	}
}

func TestInsertKeepsProvidedFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stamp := measurements.FormatTimestamp(time.Date(2024, 2, 29, 23, 59, 58, 0, time.Local))
	id, err := store.Insert(ctx, measurements.Measurement{
		Weight:    1234,
		Timestamp: stamp,
		Image:     "b9c3.jpg",
		Machine:   "DF 5100",
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := store.Get(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("Get: %v %v", got, err)
	}
	if got.Timestamp != "2024-02-29 23:59:58" || got.Image != "b9c3.jpg" || got.Machine != "DF 5100" || got.Weight != 1234 {
		t.Fatalf("unexpected row %+v", got)
	}

	missing, err := store.Get(ctx, id+100)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing id, got %+v err=%v", missing, err)
	}
}

func TestDelete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	keep := testsupport.InsertMeasurement(t, store, 100, "")
	drop := testsupport.InsertMeasurement(t, store, 200, "")

	removed, err := store.Delete(ctx, drop)
	if err != nil || !removed {
		t.Fatalf("expected delete to succeed, got %v err=%v", removed, err)
	}
	removed, err = store.Delete(ctx, drop)
	if err != nil || removed {
		t.Fatalf("expected second delete to report missing, got %v err=%v", removed, err)
	}
	items, err := store.List(ctx, 0, 10)
	if err != nil || len(items) != 1 || items[0].ID != keep {
		t.Fatalf("unexpected remaining rows %+v err=%v", items, err)
	}

	next := testsupport.InsertMeasurement(t, store, 300, "")
	if next <= drop {
		t.Fatalf("expected autoincrement id after deleted %d, got %d", drop, next)
	}
}

func TestResolveMachine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	cases := []struct {
		label string
		want  string
		found bool
	}{
		{"DF 6160", "DF 6160", true},
		{"df 5100", "DF 5100", true},
		{"  Df   7250 ", "DF 7250", true},
		{"DF 9999", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, found, err := store.ResolveMachine(ctx, tc.label)
		if err != nil {
			t.Fatalf("ResolveMachine(%q): %v", tc.label, err)
		}
		if got != tc.want || found != tc.found {
			t.Fatalf("ResolveMachine(%q) = %q,%v want %q,%v", tc.label, got, found, tc.want, tc.found)
		}
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("WEIGHSTATION_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WEIGHSTATION_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := measurements.OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer store.Close()

	first, err := store.Insert(ctx, measurements.Measurement{Weight: 410})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	second, err := store.Insert(ctx, measurements.Measurement{Weight: 820, Image: "pg.jpg", Machine: "DF 6160"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	t.Cleanup(func() {
		_, _ = store.Delete(ctx, first)
		_, _ = store.Delete(ctx, second)
	})

	items, err := store.List(ctx, 0, 2)
	if err != nil || len(items) != 2 {
		t.Fatalf("List: %+v err=%v", items, err)
	}
	if items[0].ID != second || items[1].ID != first {
		t.Fatalf("expected newest first, got %+v", items)
	}
	if !timestampPattern.MatchString(items[0].Timestamp) {
		t.Fatalf("unexpected timestamp %q", items[0].Timestamp)
	}
	if name, ok, err := store.ResolveMachine(ctx, "df 6160"); err != nil || !ok || name != "DF 6160" {
		t.Fatalf("ResolveMachine: %q %v %v", name, ok, err)
	}
	removed, err := store.Delete(ctx, first)
	if err != nil || !removed {
		t.Fatalf("Delete: %v %v", removed, err)
	}
}
