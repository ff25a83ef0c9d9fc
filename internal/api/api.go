// Package api implements the HTTP surface the daemon exposes for status
// inspection and job control.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"log/slog"

	"spacesaver/internal/catalog"
	"spacesaver/internal/deps"
	"spacesaver/internal/logging"
	"spacesaver/internal/metrics"
	"spacesaver/internal/worker"
)

// Version is the build identifier returned by GET /version. It has no VCS
// metadata to embed, so it is a plain constant.
const Version = "0.1.0"

// EntryView is the JSON shape of a catalog entry returned by /list.
type EntryView struct {
	ID          string  `json:"id"`
	Path        string  `json:"path"`
	State       string  `json:"state"`
	Category    string  `json:"category"`
	Codec       string  `json:"codec"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	SizeBytes   int64   `json:"size_bytes"`
	BitrateBPS  int64   `json:"bitrate_bps"`
	DurationS   float64 `json:"duration_s"`
	Attempts    int     `json:"attempts"`
	LastError   string  `json:"last_error,omitempty"`
	UpdatedAt   string  `json:"updated_at"`
}

func fromEntry(e *catalog.Entry) EntryView {
	return EntryView{
		ID:         e.ID,
		Path:       e.Path,
		State:      string(e.State),
		Category:   string(e.Category),
		Codec:      e.Codec,
		Width:      e.Width,
		Height:     e.Height,
		SizeBytes:  e.SizeBytes,
		BitrateBPS: e.BitrateBPS,
		DurationS:  e.DurationS,
		Attempts:   e.Attempts,
		LastError:  e.LastError,
		UpdatedAt:  e.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// DependencyView is the JSON shape of a dependency availability check.
type DependencyView struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// StatusView is the JSON shape of GET /status.
type StatusView struct {
	Running      bool             `json:"running"`
	CatalogCounts map[string]int  `json:"catalog_counts"`
	Worker       worker.Status    `json:"worker"`
	Dependencies []DependencyView `json:"dependencies"`
}

// VersionView is the JSON shape of GET /version.
type VersionView struct {
	Version string `json:"version"`
}

// EnqueueView is the JSON shape of both enqueue endpoints' responses.
type EnqueueView struct {
	ID string `json:"id"`
}

// StatusSource supplies what GET /status needs beyond the catalog.
type StatusSource interface {
	Running() bool
	WorkerStatus() worker.Status
	DependencyStatuses() []deps.Status
}

// Server is the daemon's HTTP API. It owns no transport concerns (listening,
// shutdown); the daemon wraps it in an *http.Server.
type Server struct {
	catalog *catalog.Store
	status  StatusSource
	logger  *slog.Logger
	mux     *http.ServeMux
}

// New builds a Server and registers its routes.
func New(store *catalog.Store, status StatusSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{catalog: store, status: status, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/list", s.handleList)
	mux.HandleFunc("/list/", s.handleListOne)
	mux.HandleFunc("/request/enqueue/best", s.handleEnqueueBest)
	mux.HandleFunc("/request/enqueue/", s.handleEnqueue)
	mux.Handle("/metrics", promhttp.Handler())
	s.mux = mux
	return s
}

// Handler returns the registered mux, for the daemon to wrap in an
// *http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, VersionView{Version: Version})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries, err := s.catalog.List(r.Context(), catalog.Filter{})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	counts := make(map[string]int)
	for _, e := range entries {
		counts[string(e.State)]++
	}
	metrics.SetEntryCounts(counts)

	var (
		running  bool
		wstatus  worker.Status
		depViews []DependencyView
	)
	if s.status != nil {
		running = s.status.Running()
		wstatus = s.status.WorkerStatus()
		for _, d := range s.status.DependencyStatuses() {
			depViews = append(depViews, DependencyView{
				Name:        d.Name,
				Command:     d.Command,
				Description: d.Description,
				Optional:    d.Optional,
				Available:   d.Available,
				Detail:      d.Detail,
			})
		}
	}

	s.writeJSON(w, http.StatusOK, StatusView{
		Running:       running,
		CatalogCounts: counts,
		Worker:        wstatus,
		Dependencies:  depViews,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var filter catalog.Filter
	for _, raw := range r.URL.Query()["state"] {
		trimmed := strings.TrimSpace(strings.ToUpper(raw))
		if trimmed != "" {
			filter.States = append(filter.States, catalog.State(trimmed))
		}
	}
	entries, err := s.catalog.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, fromEntry(e))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleListOne(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/list/")
	if id == "" {
		s.writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	entry, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, fromEntry(entry))
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/request/enqueue/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	if err := s.catalog.Enqueue(r.Context(), id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, EnqueueView{ID: id})
}

func (s *Server) handleEnqueueBest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	chosen, err := s.catalog.EnqueueBest(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if chosen == "" {
		s.writeError(w, http.StatusNotFound, "no eligible entry")
		return
	}
	s.writeJSON(w, http.StatusOK, EnqueueView{ID: chosen})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("api: failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
