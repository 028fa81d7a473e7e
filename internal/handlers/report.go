package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"trustline/internal/metrics"
	"trustline/internal/moderation"
)

// MaxDescriptionLength is the maximum length of a report description.
const MaxDescriptionLength = 2000

// ReportRequest represents the JSON request for submitting a report
type ReportRequest struct {
	TargetType     string                   `json:"target_type"`
	TargetID       string                   `json:"target_id"`
	ReportedUserID string                   `json:"reported_user_id"`
	Reason         string                   `json:"reason"`
	Description    string                   `json:"description,omitempty"`
	TargetDetails  moderation.TargetDetails `json:"target_details,omitempty"`
}

// ReportResponse represents the JSON response from report submission
type ReportResponse struct {
	ID       string `json:"id,omitempty"`
	Status   string `json:"status"`
	Priority string `json:"priority,omitempty"`
	Message  string `json:"message"`
}

// HandleSubmitReport handles POST /api/reports.
// Validates input, checks for duplicates, derives a triage priority from
// the reason, and persists the report in the pending state.
func (h *Handler) HandleSubmitReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user := h.actor(w, r)
	if user == nil {
		return
	}
	// Every role may submit; blocked users may not.
	if user.IsBlocked {
		writeError(w, "Your account is blocked", http.StatusForbidden)
		return
	}

	var req ReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	targetType := moderation.TargetType(req.TargetType)
	if !moderation.ValidTargetType(targetType) {
		writeError(w, "Invalid target_type", http.StatusBadRequest)
		return
	}
	if req.TargetID == "" {
		writeError(w, "target_id is required", http.StatusBadRequest)
		return
	}
	reason := moderation.Reason(req.Reason)
	if !moderation.ValidReason(reason) {
		writeError(w, "Invalid reason", http.StatusBadRequest)
		return
	}

	// Prevent self-reporting
	if req.ReportedUserID == user.ID || (targetType == moderation.TargetUser && req.TargetID == user.ID) {
		writeError(w, "You cannot report yourself or your own content", http.StatusBadRequest)
		return
	}

	description := strings.TrimSpace(req.Description)
	if len(description) > MaxDescriptionLength {
		description = description[:MaxDescriptionLength]
	}

	// Check for duplicate report
	alreadyReported, err := h.store.HasReported(ctx, user.ID, targetType, req.TargetID)
	if err != nil {
		log.Error().Err(err).Str("reporter", user.ID).Msg("moderation: failed to check duplicate")
		writeError(w, "Failed to process report", http.StatusInternalServerError)
		return
	}
	if alreadyReported {
		writeError(w, "You have already reported this content", http.StatusConflict)
		return
	}

	reportedUserID := req.ReportedUserID
	if reportedUserID == "" && targetType == moderation.TargetUser {
		reportedUserID = req.TargetID
	}

	now := time.Now()
	report := moderation.Report{
		ID:             uuid.NewString(),
		ReporterID:     user.ID,
		ReporterName:   user.Name,
		ReporterEmail:  user.Email,
		ReportedUserID: reportedUserID,
		TargetType:     targetType,
		TargetID:       req.TargetID,
		TargetDetails:  req.TargetDetails,
		Reason:         reason,
		Description:    description,
		Status:         moderation.StatusPending,
		Priority:       moderation.PriorityForReason(reason),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.store.CreateReport(ctx, report); err != nil {
		log.Error().Err(err).Str("reporter", user.ID).Msg("moderation: failed to create report")
		writeError(w, "Failed to save report", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("report_id", report.ID).
		Str("target_type", string(report.TargetType)).
		Str("target_id", report.TargetID).
		Str("reporter", report.ReporterID).
		Str("reason", string(report.Reason)).
		Str("priority", string(report.Priority)).
		Msg("moderation: report created")

	metrics.ReportsCreatedTotal.WithLabelValues(string(report.TargetType), string(report.Reason)).Inc()

	writeJSON(w, http.StatusCreated, ReportResponse{
		ID:       report.ID,
		Status:   "received",
		Priority: string(report.Priority),
		Message:  "Thank you for your report. It will be reviewed by a moderator.",
	})
}

// HandleListReports handles GET /api/reports. Staff only.
func (h *Handler) HandleListReports(w http.ResponseWriter, r *http.Request) {
	user := h.actor(w, r)
	if user == nil {
		return
	}
	if !moderation.Allowed(user.Role, moderation.ActionViewReports) {
		writeError(w, "Permission denied", http.StatusForbidden)
		return
	}

	q := r.URL.Query()
	filter := moderation.ReportFilter{
		Status:         moderation.Status(q.Get("status")),
		TargetType:     moderation.TargetType(q.Get("target_type")),
		ReportedUserID: q.Get("reported_user_id"),
		Limit:          intQuery(q.Get("limit")),
		Offset:         intQuery(q.Get("offset")),
	}

	reports, err := h.store.ListReports(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("moderation: failed to list reports")
		writeError(w, "Failed to list reports", http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = []moderation.Report{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// HandleGetReport handles GET /api/reports/{id}. Staff only.
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	user := h.actor(w, r)
	if user == nil {
		return
	}
	if !moderation.Allowed(user.Role, moderation.ActionViewReports) {
		writeError(w, "Permission denied", http.StatusForbidden)
		return
	}

	report, err := h.store.GetReport(r.Context(), r.PathValue("id"))
	if errors.Is(err, moderation.ErrNotFound) {
		writeError(w, "Report not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("moderation: failed to get report")
		writeError(w, "Failed to load report", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func intQuery(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
