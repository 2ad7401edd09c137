package profile

import (
	"testing"

	"github.com/youthdreamers/scholarhub/internal/domain/user"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		name     string
		column   string
		data     map[string]any
		wantRole user.Role
	}{
		{
			name:     "column wins",
			column:   "admin",
			data:     map[string]any{"userType": "student"},
			wantRole: user.RoleAdmin,
		},
		{
			name:     "legacy key fills empty column",
			column:   "",
			data:     map[string]any{"userType": "reviewer"},
			wantRole: user.RoleReviewer,
		},
		{
			name:     "no role anywhere falls back to student",
			column:   "",
			data:     map[string]any{},
			wantRole: user.RoleStudent,
		},
		{
			name:     "legacy key with bad type ignored",
			column:   "",
			data:     map[string]any{"userType": 7},
			wantRole: user.RoleStudent,
		},
		{
			name:     "nil bag",
			column:   "donor",
			data:     nil,
			wantRole: user.RoleDonor,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data := tc.data

			got := normalizeRole(tc.column, &data)

			if got != tc.wantRole {
				t.Fatalf("normalizeRole = %q, want %q", got, tc.wantRole)
			}

			// the legacy key never survives normalization
			if data != nil {
				if _, ok := data["userType"]; ok {
					t.Fatal("legacy userType key left in profile data")
				}
			}
		})
	}
}
