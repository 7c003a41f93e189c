package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weighstation/internal/config"
	"weighstation/internal/logging"
	"weighstation/internal/measurements"
	"weighstation/internal/snapshot"
)

type apiServer struct {
	bind            string
	logger          *slog.Logger
	store           measurements.Store
	status          func(context.Context) Status
	perPage         int
	snapshotDir     string
	deleteSnapshots bool

	listener net.Listener
	server   *http.Server
}

// MeasurementPage is the list response.
type MeasurementPage struct {
	Items   []measurements.Measurement `json:"items"`
	Page    int                        `json:"page"`
	PerPage int                        `json:"per_page"`
	Total   int                        `json:"total"`
}

func newAPIServer(cfg *config.Config, store measurements.Store, status func(context.Context) Status, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || store == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}
	perPage := cfg.Web.PerPage
	if perPage <= 0 {
		perPage = 100
	}

	srv := &apiServer{
		bind:            bind,
		logger:          logging.NewComponentLogger(logger, "api-server"),
		store:           store,
		status:          status,
		perPage:         perPage,
		snapshotDir:     cfg.Paths.SnapshotDir,
		deleteSnapshots: cfg.Web.DeleteSnapshots,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/measurements", s.handleList)
	api.HandleFunc("GET /api/measurements/{id}", s.handleGet)
	api.HandleFunc("DELETE /api/measurements/{id}", s.handleDelete)
	api.HandleFunc("POST /api/measurements/{id}/delete", s.handleDelete)
	api.HandleFunc("GET /api/machines", s.handleMachines)
	api.HandleFunc("GET /api/status", s.handleStatus)
	api.HandleFunc("GET /snapshots/{file}", s.handleSnapshot)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", authMiddleware(token, api))
	return instrument(mux)
}

func (s *apiServer) listen() error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "api_listening"),
	)
	return nil
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// serve blocks until ctx is done or the server fails.
func (s *apiServer) serve(ctx context.Context) error {
	if s == nil || s.listener == nil {
		<-ctx.Done()
		return nil
	}
	errs := make(chan error, 1)
	go func() {
		errs <- s.server.Serve(s.listener)
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		return nil
	}
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * s.perPage

	items, err := s.store.List(r.Context(), offset, s.perPage)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.store.Count(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, MeasurementPage{Items: items, Page: page, PerPage: s.perPage, Total: total})
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	m, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m == nil {
		s.writeError(w, http.StatusNotFound, "measurement not found")
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	m, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m == nil {
		s.writeError(w, http.StatusNotFound, "measurement not found")
		return
	}
	removed, err := s.store.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "measurement not found")
		return
	}
	if s.deleteSnapshots && m.HasImage() {
		if err := snapshot.Remove(s.snapshotDir, m.Image); err != nil {
			s.logger.Warn("snapshot not removed", logging.String(logging.FieldSnapshot, m.Image), logging.Error(err))
		}
	}
	s.logger.Info("measurement deleted",
		logging.Int64(logging.FieldMeasurementID, id),
		logging.String(logging.FieldEventType, "measurement_deleted"),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleMachines(w http.ResponseWriter, r *http.Request) {
	machines, err := s.store.Machines(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if machines == nil {
		machines = []measurements.Machine{}
	}
	s.writeJSON(w, http.StatusOK, machines)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		s.writeJSON(w, http.StatusOK, Status{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.status(r.Context()))
}

func (s *apiServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	path, err := snapshot.Path(s.snapshotDir, r.PathValue("file"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeFile(w, r, path)
}

func (s *apiServer) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid measurement id")
		return 0, false
	}
	return id, true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.NewNop()
}
