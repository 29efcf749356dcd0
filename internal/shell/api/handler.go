// Package api exposes the action runner over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conmap/conmap/internal/core/cmap"
	"github.com/conmap/conmap/internal/core/dep"
	"github.com/conmap/conmap/internal/core/policy"
	"github.com/conmap/conmap/internal/shell/journal"
)

// =============================================================================
// Handler
// =============================================================================

// Handler provides the HTTP handlers for map inspection and lifecycle
// actions.
type Handler struct {
	policy  *policy.Policy
	runner  policy.ActionRunner
	journal *journal.Journal
	logger  *slog.Logger
}

// NewHandler creates a new API handler. journal may be nil, in which case the
// journal endpoints report an empty history.
func NewHandler(p *policy.Policy, r policy.ActionRunner, j *journal.Journal, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{policy: p, runner: r, journal: j, logger: l}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)

	r.Get("/health", h.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/maps", func(r chi.Router) {
			r.Get("/", h.handleListMaps)
			r.Get("/{map}", h.handleGetMap)
			r.Route("/{map}/containers/{config}", func(r chi.Router) {
				r.Get("/", h.handleGetContainer)
				r.Get("/dependencies", h.handleDependencies)
				r.Get("/dependents", h.handleDependents)
				r.Post("/{action}", h.handleAction)
			})
		})
		r.Get("/journal", h.handleJournal)
	})

	return r
}

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// =============================================================================
// Map Inspection
// =============================================================================

func (h *Handler) handleListMaps(w http.ResponseWriter, r *http.Request) {
	maps := h.policy.Maps()
	out := make([]MapResponse, 0, len(maps))
	for name, m := range maps {
		out = append(out, mapToResponse(name, m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetMap(w http.ResponseWriter, r *http.Request) {
	mapName := chi.URLParam(r, "map")
	m, err := h.policy.Map(mapName)
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, mapToResponse(mapName, m))
}

func (h *Handler) handleGetContainer(w http.ResponseWriter, r *http.Request) {
	_, cfg, err := h.resolve(r)
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ContainerResponse{
		Name:      chi.URLParam(r, "config"),
		Image:     cfg.Image,
		Instances: cfg.Instances,
		Clients:   cfg.Clients,
	})
}

func (h *Handler) handleDependencies(w http.ResponseWriter, r *http.Request) {
	h.handlePath(w, r, h.policy.Dependencies)
}

func (h *Handler) handleDependents(w http.ResponseWriter, r *http.Request) {
	h.handlePath(w, r, h.policy.Dependents)
}

func (h *Handler) handlePath(w http.ResponseWriter, r *http.Request, path func(string, string) ([]dep.ContainerRef, error)) {
	if _, _, err := h.resolve(r); err != nil {
		h.writeActionError(w, err)
		return
	}
	refs, err := path(chi.URLParam(r, "map"), chi.URLParam(r, "config"))
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = ref.String()
	}
	h.writeJSON(w, http.StatusOK, PathResponse{Path: out})
}

// =============================================================================
// Actions
// =============================================================================

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	mapName := chi.URLParam(r, "map")
	config := chi.URLParam(r, "config")
	action := chi.URLParam(r, "action")

	var req ActionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
			return
		}
	}

	results, err := policy.RunVerb(r.Context(), h.runner, policy.Verb(action),
		mapName, config, req.Instances, policy.Kwargs(req.Kwargs))
	if err != nil {
		h.logger.Error("action failed", "action", action, "map", mapName, "config", config, "error", err)
		h.writeActionError(w, err)
		return
	}

	resp := ActionResponse{
		Map:     mapName,
		Config:  config,
		Action:  action,
		Results: make([]ClientResultResponse, 0, len(results)),
	}
	for _, res := range results {
		resp.Results = append(resp.Results, ClientResultResponse{Client: res.Client, Value: res.Value})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Journal
// =============================================================================

func (h *Handler) handleJournal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		h.writeJSON(w, http.StatusOK, []JournalEntryResponse{})
		return
	}
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		limit, _ = strconv.Atoi(q)
	}
	entries, err := h.journal.Recent(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to read journal", "internal_error")
		return
	}
	out := make([]JournalEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, JournalEntryResponse{
			ID:        e.ID,
			Client:    e.Client,
			Map:       e.Map,
			Config:    e.Config,
			Instance:  e.Instance,
			Verb:      e.Verb,
			Container: e.Container,
			Error:     e.Error,
			CreatedAt: e.CreatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) resolve(r *http.Request) (*cmap.ContainerMap, *cmap.ContainerConfiguration, error) {
	m, err := h.policy.Map(chi.URLParam(r, "map"))
	if err != nil {
		return nil, nil, err
	}
	cfg, err := m.Get(chi.URLParam(r, "config"))
	if err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}

// writeActionError maps domain errors onto HTTP status codes: unknown names
// are 404, invalid configuration is 400, unsupported verbs are 501.
func (h *Handler) writeActionError(w http.ResponseWriter, err error) {
	var lookupErr *cmap.LookupError
	var validationErr *cmap.ValidationError
	switch {
	case errors.As(err, &lookupErr):
		h.writeError(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.As(err, &validationErr):
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
	case errors.Is(err, policy.ErrNotSupported):
		h.writeError(w, http.StatusNotImplemented, err.Error(), "not_supported")
	default:
		h.writeError(w, http.StatusInternalServerError, err.Error(), "internal_error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func mapToResponse(name string, m *cmap.ContainerMap) MapResponse {
	containers := make([]string, 0, len(m.Containers))
	for c := range m.Containers {
		containers = append(containers, c)
	}
	sort.Strings(containers)
	return MapResponse{Name: name, Containers: containers}
}
