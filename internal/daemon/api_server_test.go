package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"weighstation/internal/config"
	"weighstation/internal/measurements"
	"weighstation/internal/testsupport"
)

func newTestAPI(t *testing.T, opts ...testsupport.ConfigOption) (*apiServer, *config.Config, measurements.Store, http.Handler) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	status := func(context.Context) Status {
		return Status{Running: true, Device: cfg.Serial.Device, Offset: cfg.Scale.Offset}
	}
	srv, err := newAPIServer(cfg, store, status, nil)
	if err != nil {
		t.Fatalf("newAPIServer: %v", err)
	}
	if srv == nil {
		t.Fatal("expected api server")
	}
	return srv, cfg, store, srv.routes(cfg.Paths.APIToken)
}

func TestNewAPIServerDisabledWithoutBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	store := testsupport.MustOpenStore(t, cfg)
	srv, err := newAPIServer(cfg, store, nil, nil)
	if err != nil {
		t.Fatalf("newAPIServer: %v", err)
	}
	if srv != nil {
		t.Fatal("expected nil server when api_bind is empty")
	}
	if err := srv.listen(); err != nil {
		t.Fatalf("listen on nil server: %v", err)
	}
	if srv.addr() != "" {
		t.Fatal("expected empty address for nil server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := srv.serve(ctx); err != nil {
		t.Fatalf("serve on nil server: %v", err)
	}
}

func TestAPIListPaginatesNewestFirst(t *testing.T) {
	srv, _, store, handler := newTestAPI(t)
	srv.perPage = 2
	for _, w := range []int{100, 200, 300} {
		testsupport.InsertMeasurement(t, store, w, "")
	}

	cases := []struct {
		query   string
		page    int
		weights []int
	}{
		{"", 1, []int{300, 200}},
		{"?page=2", 2, []int{100}},
		{"?page=0", 1, []int{300, 200}},
		{"?page=bogus", 1, []int{300, 200}},
		{"?page=9", 9, nil},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/measurements"+tc.query, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("expected 200 OK, got %d", w.Code)
			}
			var resp MeasurementPage
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Page != tc.page || resp.PerPage != 2 || resp.Total != 3 {
				t.Fatalf("unexpected paging: %+v", resp)
			}
			if len(resp.Items) != len(tc.weights) {
				t.Fatalf("expected %d items, got %d", len(tc.weights), len(resp.Items))
			}
			for i, want := range tc.weights {
				if resp.Items[i].Weight != want {
					t.Fatalf("item %d: expected weight %d, got %d", i, want, resp.Items[i].Weight)
				}
			}
		})
	}
}

func TestAPIDeleteRemovesRowAndSnapshot(t *testing.T) {
	_, cfg, store, handler := newTestAPI(t)
	snap := testsupport.WriteSnapshot(t, cfg.Paths.SnapshotDir, "a1.jpg")
	id := testsupport.InsertMeasurement(t, store, 520, "a1.jpg")
	keep := testsupport.InsertMeasurement(t, store, 600, "")

	req := httptest.NewRequest(http.MethodDelete, "/api/measurements/"+strconv.FormatInt(id, 10), nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(snap); !os.IsNotExist(err) {
		t.Fatalf("expected snapshot removed, stat err=%v", err)
	}

	m, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m != nil {
		t.Fatal("expected measurement to be gone")
	}
	if m, _ := store.Get(context.Background(), keep); m == nil {
		t.Fatal("expected other measurement to survive")
	}

	// Form-style delete used by the browser page.
	req = httptest.NewRequest(http.MethodPost, "/api/measurements/"+strconv.FormatInt(id, 10)+"/delete", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing id, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/measurements/abc", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}
}

func TestAPIDeleteKeepsSnapshotWhenConfigured(t *testing.T) {
	srv, cfg, store, handler := newTestAPI(t)
	srv.deleteSnapshots = false
	snap := testsupport.WriteSnapshot(t, cfg.Paths.SnapshotDir, "keep.jpg")
	id := testsupport.InsertMeasurement(t, store, 90, "keep.jpg")

	req := httptest.NewRequest(http.MethodPost, "/api/measurements/"+strconv.FormatInt(id, 10)+"/delete", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if _, err := os.Stat(snap); err != nil {
		t.Fatalf("expected snapshot to remain: %v", err)
	}
}

func TestAPISnapshotServing(t *testing.T) {
	_, cfg, _, handler := newTestAPI(t)
	testsupport.WriteSnapshot(t, cfg.Paths.SnapshotDir, "frame.jpg")
	if err := os.WriteFile(filepath.Join(testsupport.BaseDir(cfg), "secret.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/snapshots/frame.jpg", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("unexpected content type %q", ct)
	}

	for _, path := range []string{"/snapshots/missing.jpg", "/snapshots/..%2Fsecret.txt", "/snapshots/.hidden"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code == http.StatusOK {
			t.Fatalf("expected %s to be refused", path)
		}
	}
}

func TestAPIStatusAndMachines(t *testing.T) {
	_, cfg, _, handler := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	var status Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.Device != cfg.Serial.Device || status.Offset != 40 {
		t.Fatalf("unexpected status: %+v", status)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/machines", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	var machines []measurements.Machine
	if err := json.Unmarshal(w.Body.Bytes(), &machines); err != nil {
		t.Fatalf("decode machines: %v", err)
	}
	if len(machines) != 3 {
		t.Fatalf("expected seeded machines, got %+v", machines)
	}
}

func TestAPIAuthAndMetrics(t *testing.T) {
	_, _, _, handler := newTestAPI(t, testsupport.WithAPIToken("s3cret"))

	req := httptest.NewRequest(http.MethodGet, "/api/measurements", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/measurements", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/measurements", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected metrics without token, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "weighstation_http_requests_total") {
		t.Fatal("expected http request counter in metrics output")
	}
}

func TestAuthMiddlewareEmptyTokenPassesThrough(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	w := httptest.NewRecorder()
	authMiddleware("", next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTeapot {
		t.Fatalf("expected passthrough, got %d", w.Code)
	}
}
