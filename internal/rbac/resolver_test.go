package rbac

import (
	"testing"

	"github.com/tutorhub/tutorhub/internal/shared"
)

func TestResolveEffectiveRoleNonAdminIgnoresHeader(t *testing.T) {
	actor := &shared.Actor{ID: 7, BaseRole: "STUDENT"}

	cases := []string{"", "ADMIN", "TEACHER", "garbage"}
	for _, header := range cases {
		if got := ResolveEffectiveRole(actor, header); got != RoleStudent {
			t.Fatalf("header %q: expected STUDENT, got %s", header, got)
		}
	}
}

func TestResolveEffectiveRoleAdminPreview(t *testing.T) {
	admin := &shared.Actor{ID: 1, BaseRole: "ADMIN"}

	cases := []struct {
		header string
		want   RoleCode
	}{
		{"", RoleAdmin},
		{"TEACHER", RoleTeacher},
		{"STUDENT", RoleStudent},
		{"ACCOUNTANT", RoleAccountant},
		{"ADMIN", RoleAdmin},
		{"SUPERUSER", RoleAdmin},
		{"teacher", RoleAdmin},
	}
	for _, tc := range cases {
		if got := ResolveEffectiveRole(admin, tc.header); got != tc.want {
			t.Fatalf("header %q: expected %s, got %s", tc.header, tc.want, got)
		}
	}
}

func TestResolveEffectiveRoleNilActor(t *testing.T) {
	if got := ResolveEffectiveRole(nil, "ADMIN"); got != "" {
		t.Fatalf("expected empty role for nil actor, got %s", got)
	}
}

func TestPreviewRole(t *testing.T) {
	admin := &shared.Actor{ID: 1, BaseRole: "ADMIN"}
	student := &shared.Actor{ID: 2, BaseRole: "STUDENT"}

	if got := PreviewRole(admin, "TEACHER"); got != RoleTeacher {
		t.Fatalf("expected TEACHER preview, got %s", got)
	}
	if got := PreviewRole(admin, "bogus"); got != "" {
		t.Fatalf("invalid header should be treated as absent, got %s", got)
	}
	if got := PreviewRole(student, "TEACHER"); got != "" {
		t.Fatalf("non-admin preview must be ignored, got %s", got)
	}
	if got := PreviewRole(nil, "TEACHER"); got != "" {
		t.Fatalf("nil actor preview must be ignored, got %s", got)
	}
}
