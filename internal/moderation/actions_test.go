package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedMatrix(t *testing.T) {
	// Complete expectation of the role/action matrix. A change here is a
	// policy change and should be deliberate.
	allowed := map[Role]map[Action]bool{
		RoleReporter: {
			ActionSubmitReport: true,
		},
		RoleAdmin: {
			ActionViewReports: true,
			ActionReview:      true,
			ActionAssign:      true,
			ActionWarn:        true,
			ActionResolve:     true,
			ActionReject:      true,
		},
		RoleSuperAdmin: {
			ActionViewReports:   true,
			ActionReview:        true,
			ActionAssign:        true,
			ActionWarn:          true,
			ActionResolve:       true,
			ActionReject:        true,
			ActionEscalate:      true,
			ActionDeleteContent: true,
			ActionBanUser:       true,
			ActionSuspendUser:   true,
			ActionChangeRole:    true,
			ActionReopen:        true,
		},
	}

	for _, role := range []Role{RoleReporter, RoleAdmin, RoleSuperAdmin} {
		for _, action := range AllActions() {
			want := allowed[role][action]
			assert.Equal(t, want, Allowed(role, action),
				"role %s action %s", role, action)
		}
	}
}

func TestAllowedUnknownInputs(t *testing.T) {
	assert.False(t, Allowed(Role("ghost"), ActionReview))
	assert.False(t, Allowed(RoleSuperAdmin, Action("format_disk")))
	assert.False(t, Allowed(Role(""), Action("")))
}

func TestAdminCannotWieldDestructiveActions(t *testing.T) {
	destructive := []Action{
		ActionEscalate,
		ActionDeleteContent,
		ActionBanUser,
		ActionSuspendUser,
		ActionChangeRole,
		ActionReopen,
	}
	for _, action := range destructive {
		assert.False(t, Allowed(RoleAdmin, action), "admin must not hold %s", action)
	}
}

func TestReporterOnlySubmits(t *testing.T) {
	perms := PermissionsFor(RoleReporter)
	assert.Equal(t, []Action{ActionSubmitReport}, perms)
}

func TestPermissionsForReturnsCopy(t *testing.T) {
	perms := PermissionsFor(RoleAdmin)
	perms[0] = Action("tampered")
	assert.NotContains(t, PermissionsFor(RoleAdmin), Action("tampered"))
}

func TestPriorityForReason(t *testing.T) {
	tests := []struct {
		reason Reason
		want   Priority
	}{
		{ReasonHarassment, PriorityCritical},
		{ReasonCopyright, PriorityCritical},
		{ReasonInappropriate, PriorityHigh},
		{ReasonFakeAccount, PriorityHigh},
		{ReasonSpam, PriorityMedium},
		{ReasonOther, PriorityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PriorityForReason(tt.reason), "reason %s", tt.reason)
	}
}
