package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"trustline/internal/middleware"
	"trustline/internal/moderation"
	"trustline/internal/tracing"
)

// actionRequest is the request body for performing a moderation action.
type actionRequest struct {
	Action     string `json:"action"`
	Notes      string `json:"notes,omitempty"`
	AssigneeID string `json:"assignee_id,omitempty"`
	EscalateTo string `json:"escalate_to,omitempty"`
	NewRole    string `json:"new_role,omitempty"`
}

// HandlePerformAction handles POST /api/reports/{id}/actions. The action
// is gated through the permission matrix inside the dispatcher; the
// handler only translates outcomes onto HTTP statuses.
func (h *Handler) HandlePerformAction(w http.ResponseWriter, r *http.Request) {
	user := h.actor(w, r)
	if user == nil {
		return
	}

	var body actionRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if body.Action == "" {
		writeError(w, "action is required", http.StatusBadRequest)
		return
	}

	reportID := r.PathValue("id")
	req := moderation.ActionRequest{
		ReportID:   reportID,
		Action:     moderation.Action(body.Action),
		ActorID:    user.ID,
		ActorRole:  user.Role,
		Notes:      body.Notes,
		AssigneeID: body.AssigneeID,
		EscalateTo: body.EscalateTo,
		NewRole:    moderation.Role(body.NewRole),
		IPAddress:  middleware.GetClientIP(r),
		UserAgent:  r.UserAgent(),
	}

	ctx, span := tracing.ActionSpan(r.Context(), body.Action, reportID, user.ID)
	defer span.End()

	result, err := h.dispatcher.Perform(ctx, req)
	if err != nil {
		tracing.EndWithError(span, err)
		log.Error().Err(err).
			Str("report_id", reportID).
			Str("action", body.Action).
			Msg("moderation: action failed")
		writeError(w, "Failed to perform action", http.StatusInternalServerError)
		return
	}

	switch result.Outcome {
	case moderation.OutcomeDenied:
		writeError(w, result.Reason, http.StatusForbidden)
	case moderation.OutcomeNotFound:
		writeError(w, result.Reason, http.StatusNotFound)
	case moderation.OutcomeConflict:
		writeError(w, result.Reason, http.StatusConflict)
	case moderation.OutcomeInvalidTransition:
		writeError(w, result.Reason, http.StatusUnprocessableEntity)
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// HandleAuditLog handles GET /api/audit-log. Staff only.
func (h *Handler) HandleAuditLog(w http.ResponseWriter, r *http.Request) {
	user := h.actor(w, r)
	if user == nil {
		return
	}
	if !moderation.Allowed(user.Role, moderation.ActionViewReports) {
		writeError(w, "Permission denied", http.StatusForbidden)
		return
	}

	q := r.URL.Query()
	query := moderation.AuditQuery{
		ActorID:    q.Get("actor_id"),
		TargetType: moderation.AuditTargetType(q.Get("target_type")),
		TargetID:   q.Get("target_id"),
		ActionType: moderation.ActionType(q.Get("action_type")),
		Limit:      intQuery(q.Get("limit")),
		Offset:     intQuery(q.Get("offset")),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, "Invalid since timestamp", http.StatusBadRequest)
			return
		}
		query.Since = t
	}
	if until := q.Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			writeError(w, "Invalid until timestamp", http.StatusBadRequest)
			return
		}
		query.Until = t
	}

	entries, err := h.store.ListAuditLog(r.Context(), query)
	if err != nil {
		log.Error().Err(err).Msg("moderation: failed to list audit log")
		writeError(w, "Failed to load audit log", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []moderation.AuditEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
