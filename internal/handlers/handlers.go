// Package handlers exposes the moderation engine over a JSON HTTP API.
// Actor identity arrives pre-authenticated in the X-Actor-Id header; the
// surrounding platform terminates sessions before requests reach us.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"

	"trustline/internal/directory"
	"trustline/internal/metrics"
	"trustline/internal/moderation"
	"trustline/internal/recovery"
)

// Handler contains all HTTP handler methods and their dependencies.
// Dependencies are injected via the constructor for better testability.
type Handler struct {
	store      moderation.Store
	dispatcher *moderation.Dispatcher
	recovery   *recovery.Service
	directory  *directory.Service
}

// NewHandler creates a new Handler with all required dependencies.
func NewHandler(
	store moderation.Store,
	dispatcher *moderation.Dispatcher,
	rec *recovery.Service,
	dir *directory.Service,
) *Handler {
	return &Handler{
		store:      store,
		dispatcher: dispatcher,
		recovery:   rec,
		directory:  dir,
	}
}

// errorResponse is the JSON body for all error replies.
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("handlers: failed to encode response")
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, errorResponse{Status: "error", Message: message})
}

// decodeJSON decodes the request body, rejecting unknown fields so typos
// in action payloads fail loudly instead of silently doing nothing.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// actor resolves the requesting user from the X-Actor-Id header.
// Returns nil after writing a 401 if the header is absent.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) *moderation.User {
	actorID := r.Header.Get("X-Actor-Id")
	if actorID == "" {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return nil
	}

	user, err := h.directory.FindByID(r.Context(), actorID)
	if err != nil {
		// Unknown users still act, as reporters. The directory only
		// knows users the platform has synced.
		return &moderation.User{ID: actorID, Role: moderation.RoleReporter, IsActive: true}
	}
	return user
}

// HandleHealthz handles GET /healthz.
func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// EngineStats is the response body for the stats endpoint.
type EngineStats struct {
	PendingReports     int `json:"pending_reports"`
	ReviewedReports    int `json:"reviewed_reports"`
	ClosedReports      int `json:"closed_reports"`
	SoftDeletedRecords int `json:"soft_deleted_records"`
}

// HandleStats handles GET /api/stats. Visible to staff only.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	user := h.actor(w, r)
	if user == nil {
		return
	}
	if !moderation.Allowed(user.Role, moderation.ActionViewReports) {
		writeError(w, "Permission denied", http.StatusForbidden)
		return
	}

	stats := h.collectStats(r)
	writeJSON(w, http.StatusOK, stats)
}

// collectStats gathers current system statistics from available data sources.
func (h *Handler) collectStats(r *http.Request) EngineStats {
	var stats EngineStats

	ctx := r.Context()
	for status, dest := range map[moderation.Status]*int{
		moderation.StatusPending:  &stats.PendingReports,
		moderation.StatusReviewed: &stats.ReviewedReports,
		moderation.StatusClosed:   &stats.ClosedReports,
	} {
		if reports, err := h.store.ListReports(ctx, moderation.ReportFilter{Status: status}); err == nil {
			*dest = len(reports)
		}
	}

	// Prefer the live count; fall back to the gauge the collector keeps.
	if n, err := h.recovery.Count(ctx); err == nil {
		stats.SoftDeletedRecords = n
	} else {
		stats.SoftDeletedRecords = int(getGaugeValue(metrics.SoftDeletedRecords))
	}

	return stats
}

// getGaugeValue reads the current value of a prometheus.Gauge.
func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	if m.Gauge != nil {
		return m.GetGauge().GetValue()
	}
	return 0
}
