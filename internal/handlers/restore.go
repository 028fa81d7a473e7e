package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"trustline/internal/metrics"
	"trustline/internal/recovery"
	"trustline/internal/tracing"
)

// RestoreRequest is the request body for redeeming a restoration token.
type RestoreRequest struct {
	Token string `json:"token"`
}

// RestoreResponse carries the restored entity back to the caller.
type RestoreResponse struct {
	Status   string          `json:"status"`
	Message  string          `json:"message"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

// HandleRestore handles POST /api/restore. The token is single-use and
// only the owner of the deleted entity may redeem it.
func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	user := h.actor(w, r)
	if user == nil {
		return
	}

	var req RestoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Token == "" {
		writeError(w, "token is required", http.StatusBadRequest)
		return
	}

	ctx, span := tracing.RestoreSpan(r.Context(), "")
	defer span.End()

	snapshot, err := h.recovery.Restore(ctx, req.Token, user.ID)
	switch {
	case err == nil:
		metrics.RestoresTotal.WithLabelValues("ok").Inc()
		writeJSON(w, http.StatusOK, RestoreResponse{
			Status:   "restored",
			Message:  "Your content has been restored.",
			Snapshot: snapshot,
		})
	case errors.Is(err, recovery.ErrNotFound):
		metrics.RestoresTotal.WithLabelValues("not_found").Inc()
		writeError(w, recovery.ErrNotFound.Error(), http.StatusNotFound)
	case errors.Is(err, recovery.ErrExpired):
		metrics.RestoresTotal.WithLabelValues("expired").Inc()
		writeError(w, recovery.ErrExpired.Error(), http.StatusGone)
	case errors.Is(err, recovery.ErrNotOwner):
		metrics.RestoresTotal.WithLabelValues("not_owner").Inc()
		writeError(w, recovery.ErrNotOwner.Error(), http.StatusForbidden)
	default:
		tracing.EndWithError(span, err)
		metrics.RestoresTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("recovery: restore failed")
		writeError(w, "Failed to restore", http.StatusInternalServerError)
	}
}
