package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonho/pulserank/internal/cache"
	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/internal/scheduler"
	"github.com/wonho/pulserank/pkg/logger"
)

// defaultLimit caps an unspecified picks limit.
const defaultLimit = 50

// Handler owns the HTTP endpoints.
type Handler struct {
	service   *Service
	scheduler *scheduler.Scheduler
	logger    *logger.Logger
}

// NewHandler creates the endpoint handler. sched may be nil for
// serve-less tooling.
func NewHandler(service *Service, sched *scheduler.Scheduler, log *logger.Logger) *Handler {
	return &Handler{service: service, scheduler: sched, logger: log}
}

// envelope is the uniform response shape. Stale and AsOf let a client
// distinguish a live answer from a degraded one.
type envelope struct {
	Data  interface{} `json:"data"`
	Stale bool        `json:"stale"`
	AsOf  time.Time   `json:"as_of"`
}

// GetPicks handles GET /api/picks.
func (h *Handler) GetPicks(w http.ResponseWriter, r *http.Request) {
	params := domain.RankParams{
		Timeframe: domain.ParseTimeframe(r.URL.Query().Get("timeframe")),
		Sector:    r.URL.Query().Get("sector"),
		Theme:     r.URL.Query().Get("theme"),
		Limit:     defaultLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeErrorStatus(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		params.Limit = n
	}

	result, err := h.service.Picks(r.Context(), params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, result)
}

// GetScore handles GET /api/score/{symbol}.
func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	tf := domain.ParseTimeframe(r.URL.Query().Get("timeframe"))

	result, err := h.service.Score(r.Context(), symbol, tf)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, result)
}

// GetMarket handles GET /api/market.
func (h *Handler) GetMarket(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Market(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, result)
}

type warmRequest struct {
	Views []domain.RankParams `json:"views"`
}

// Warm handles POST /api/admin/warm.
func (h *Handler) Warm(w http.ResponseWriter, r *http.Request) {
	var req warmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Views) == 0 {
		h.writeErrorStatus(w, http.StatusBadRequest, "no views to warm")
		return
	}

	warmed, errs := h.service.Warm(r.Context(), req.Views)

	failures := make([]string, 0, len(errs))
	for _, err := range errs {
		failures = append(failures, err.Error())
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"warmed":   warmed,
		"failures": failures,
	})
}

type invalidateRequest struct {
	Keys   []string `json:"keys"`
	Prefix string   `json:"prefix,omitempty"`
}

// Invalidate handles POST /api/admin/invalidate.
func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Keys) == 0 && req.Prefix == "" {
		h.writeErrorStatus(w, http.StatusBadRequest, "nothing to invalidate")
		return
	}

	removed := h.service.Invalidate(req.Keys, req.Prefix)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

// Jobs handles GET /api/admin/jobs.
func (h *Handler) Jobs(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		h.writeErrorStatus(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	}
	h.writeJSON(w, http.StatusOK, h.scheduler.Stats())
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "pulserank",
	})
}

func (h *Handler) writeResult(w http.ResponseWriter, result *cache.Result) {
	h.writeJSON(w, http.StatusOK, envelope{
		Data:  result.Value,
		Stale: result.Stale,
		AsOf:  result.AsOf,
	})
}

// writeError maps domain errors onto status codes. Anything outside the
// client-facing taxonomy is an opaque 500; the details stay in the logs.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInstrument):
		h.writeErrorStatus(w, http.StatusNotFound, "unknown instrument")
	case errors.Is(err, domain.ErrDataUnavailable):
		h.writeErrorStatus(w, http.StatusServiceUnavailable, "data unavailable")
	default:
		h.logger.WithError(err).Error("Request failed")
		h.writeErrorStatus(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeErrorStatus(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Warn("Response encode failed")
	}
}
