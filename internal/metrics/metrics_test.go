package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/healthz", "/healthz"},
		{"/metrics", "/metrics"},
		{"/api/reports", "/api/reports"},
		{"/api/reports/abc-123", "/api/reports/:id"},
		{"/api/reports/abc-123/actions", "/api/reports/:id/actions"},
		{"/api/audit-log", "/api/audit-log"},
		{"/api/stats", "/api/stats"},
		{"/api/restore", "/api/restore"},
		{"/api/restore/deadbeef", "/api/restore/:token"},
		{"", ""},
		{"/", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePath(tt.path), tt.path)
	}
}
