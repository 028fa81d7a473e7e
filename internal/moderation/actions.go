package moderation

// Action is a moderation action subject to the permission matrix.
// The set is closed; handlers and the Dispatcher validate against it
// instead of switching on free-form strings.
type Action string

const (
	ActionSubmitReport  Action = "submit_report"
	ActionViewReports   Action = "view_reports"
	ActionReview        Action = "review"
	ActionAssign        Action = "assign"
	ActionWarn          Action = "warn"
	ActionResolve       Action = "resolve"
	ActionReject        Action = "reject"
	ActionEscalate      Action = "escalate"
	ActionDeleteContent Action = "delete_content"
	ActionBanUser       Action = "ban_user"
	ActionSuspendUser   Action = "suspend_user"
	ActionChangeRole    Action = "change_role"
	ActionReopen        Action = "reopen"
)

// AllActions returns every action the matrix covers.
func AllActions() []Action {
	return []Action{
		ActionSubmitReport,
		ActionViewReports,
		ActionReview,
		ActionAssign,
		ActionWarn,
		ActionResolve,
		ActionReject,
		ActionEscalate,
		ActionDeleteContent,
		ActionBanUser,
		ActionSuspendUser,
		ActionChangeRole,
		ActionReopen,
	}
}

// rolePermissions is the policy table. Admins triage and resolve; only
// super-admins wield actions with irreversible or cross-cutting blast
// radius. Reporters only submit.
var rolePermissions = map[Role][]Action{
	RoleReporter: {
		ActionSubmitReport,
	},
	RoleAdmin: {
		ActionViewReports,
		ActionReview,
		ActionAssign,
		ActionWarn,
		ActionResolve,
		ActionReject,
	},
	RoleSuperAdmin: {
		ActionViewReports,
		ActionReview,
		ActionAssign,
		ActionWarn,
		ActionResolve,
		ActionReject,
		ActionEscalate,
		ActionDeleteContent,
		ActionBanUser,
		ActionSuspendUser,
		ActionChangeRole,
		ActionReopen,
	},
}

// Allowed reports whether role may perform action. It is a total function:
// unknown roles and unknown actions are denied.
func Allowed(role Role, action Action) bool {
	for _, a := range rolePermissions[role] {
		if a == action {
			return true
		}
	}
	return false
}

// PermissionsFor returns a copy of the actions granted to role.
func PermissionsFor(role Role) []Action {
	perms := rolePermissions[role]
	out := make([]Action, len(perms))
	copy(out, perms)
	return out
}
