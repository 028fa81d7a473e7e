package moderation

import "time"

// Role is the moderation role resolved for a request actor.
type Role string

const (
	// RoleReporter is an ordinary platform user (student or mentor).
	// Reporters may submit reports but perform no moderation actions.
	RoleReporter Role = "reporter"

	// RoleAdmin may triage and resolve reports.
	RoleAdmin Role = "admin"

	// RoleSuperAdmin additionally wields destructive and cross-cutting
	// actions: content deletion, bans, role changes, reopening.
	RoleSuperAdmin Role = "super_admin"
)

// TargetType identifies what kind of entity a report is about.
type TargetType string

const (
	TargetUser    TargetType = "user"
	TargetProject TargetType = "project"
	TargetComment TargetType = "comment"
	TargetChat    TargetType = "chat"
)

// ValidTargetType reports whether t is one of the reportable target kinds.
func ValidTargetType(t TargetType) bool {
	switch t {
	case TargetUser, TargetProject, TargetComment, TargetChat:
		return true
	}
	return false
}

// Reason categorizes why content or a user was reported.
type Reason string

const (
	ReasonSpam          Reason = "spam"
	ReasonInappropriate Reason = "inappropriate_content"
	ReasonHarassment    Reason = "harassment"
	ReasonCopyright     Reason = "copyright_violation"
	ReasonFakeAccount   Reason = "fake_account"
	ReasonOther         Reason = "other"
)

// ValidReason reports whether r is a known report reason.
func ValidReason(r Reason) bool {
	switch r {
	case ReasonSpam, ReasonInappropriate, ReasonHarassment, ReasonCopyright, ReasonFakeAccount, ReasonOther:
		return true
	}
	return false
}

// Priority is an informational triage hint. It is not state-machine-gated.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// PriorityForReason derives the default triage priority from the report
// reason. Harassment and copyright reports are hinted toward escalation.
func PriorityForReason(r Reason) Priority {
	switch r {
	case ReasonHarassment, ReasonCopyright:
		return PriorityCritical
	case ReasonInappropriate, ReasonFakeAccount:
		return PriorityHigh
	case ReasonSpam:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Status is the lifecycle state of a report.
type Status string

const (
	StatusPending  Status = "pending"
	StatusReviewed Status = "reviewed"
	StatusClosed   Status = "closed"
)

// TargetDetails is a denormalized snapshot of the reported content captured
// at report time, so the report stays meaningful even if the content later
// changes or is deleted.
type TargetDetails struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	Content     string `json:"content,omitempty"`
}

// Report is a record asserting that some content or user violates policy.
// Reports are never physically deleted; closing is terminal except for the
// super-admin-only reopen.
type Report struct {
	ID string `json:"id"`

	// Snapshot of the submitter at creation time, not a live reference.
	ReporterID    string `json:"reporter_id"`
	ReporterName  string `json:"reporter_name,omitempty"`
	ReporterEmail string `json:"reporter_email,omitempty"`

	// ReportedUserID is the user implicated by the target content,
	// used by ban and suspend actions.
	ReportedUserID string `json:"reported_user_id"`

	TargetType    TargetType    `json:"target_type"`
	TargetID      string        `json:"target_id"`
	TargetDetails TargetDetails `json:"target_details"`

	Reason      Reason `json:"reason"`
	Description string `json:"description,omitempty"`

	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`

	HandledBy       string     `json:"handled_by,omitempty"`
	ResolvedBy      string     `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`

	EscalatedTo      string     `json:"escalated_to,omitempty"`
	EscalatedAt      *time.Time `json:"escalated_at,omitempty"`
	EscalationReason string     `json:"escalation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActionType classifies an audit entry for filtering.
type ActionType string

const (
	ActionTypeCreate        ActionType = "create"
	ActionTypeUpdate        ActionType = "update"
	ActionTypeDelete        ActionType = "delete"
	ActionTypeRestore       ActionType = "restore"
	ActionTypeBlock         ActionType = "block"
	ActionTypeUnblock       ActionType = "unblock"
	ActionTypeRoleChange    ActionType = "role_change"
	ActionTypeSystemSetting ActionType = "system_setting"
)

// AuditTargetType is the entity class an audit entry refers to. It is a
// superset of the reportable target types.
type AuditTargetType string

const (
	AuditTargetUser    AuditTargetType = "user"
	AuditTargetProject AuditTargetType = "project"
	AuditTargetComment AuditTargetType = "comment"
	AuditTargetChat    AuditTargetType = "chat"
	AuditTargetReport  AuditTargetType = "report"
	AuditTargetSystem  AuditTargetType = "system"
)

// AuditEntry is an immutable record of one performed moderation action.
type AuditEntry struct {
	ID string `json:"id"`

	ActorID    string `json:"actor_id"`
	ActorName  string `json:"actor_name,omitempty"`
	ActorEmail string `json:"actor_email,omitempty"`

	Action     string          `json:"action"`
	ActionType ActionType      `json:"action_type"`
	TargetType AuditTargetType `json:"target_type"`
	TargetID   string          `json:"target_id"`
	TargetName string          `json:"target_name,omitempty"`

	Description string `json:"description,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`

	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditQuery filters paginated audit log reads. Zero-value fields are
// ignored; a zero Limit falls back to the store's default cap.
type AuditQuery struct {
	ActorID    string
	TargetType AuditTargetType
	TargetID   string
	ActionType ActionType
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}

// ReportFilter filters paginated report listings.
type ReportFilter struct {
	Status         Status
	TargetType     TargetType
	ReportedUserID string
	Limit          int
	Offset         int
}

// User is the engine's view of a user-directory record.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      Role   `json:"role"`
	IsActive  bool   `json:"is_active"`
	IsBlocked bool   `json:"is_blocked"`
}
