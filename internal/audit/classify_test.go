package audit

import (
	"reflect"
	"testing"
)

func TestResourceTypeFromPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/api/account/users", "User"},
		{"/api/account/users/12", "User"},
		{"/api/account/roles/3/permissions", "Role"},
		{"/api/center/courses", "Course"},
		{"/api/center/courses/9", "Course"},
		{"/api/account/change-password", "Change-Password"},
		{"/", "Unknown"},
		{"/api/", "Unknown"},
		{"/api/123", "Unknown"},
	}
	for _, tc := range cases {
		if got := ResourceTypeFromPath(tc.path); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.path, tc.want, got)
		}
	}
}

func TestResourceIDFromPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/api/account/users/12", "12"},
		{"/api/account/users/12/", "12"},
		{"/api/account/users", ""},
		{"/api/account/roles/3/permissions", ""},
	}
	for _, tc := range cases {
		if got := ResourceIDFromPath(tc.path); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.path, tc.want, got)
		}
	}
}

func TestScrubRemovesSensitiveKeysRecursively(t *testing.T) {
	payload := map[string]any{
		"username":     "teacher1",
		"Password":     "hunter2",
		"old_password": "hunter1",
		"profile": map[string]any{
			"TOKEN":     "abc",
			"api_token": "xyz",
			"email":     "t@example.com",
		},
	}

	clean := Scrub(payload, DefaultDeniedFields)

	want := map[string]any{
		"username": "teacher1",
		"profile": map[string]any{
			"email": "t@example.com",
		},
	}
	if !reflect.DeepEqual(clean, want) {
		t.Fatalf("scrub mismatch: %+v", clean)
	}

	// Original untouched.
	if _, ok := payload["Password"]; !ok {
		t.Fatal("scrub must not mutate the input map")
	}
}

func TestScrubNilPayload(t *testing.T) {
	if Scrub(nil, DefaultDeniedFields) != nil {
		t.Fatal("nil payload should stay nil")
	}
}

func TestActionKindForMethod(t *testing.T) {
	cases := map[string]ActionKind{
		"POST":    ActionCreate,
		"PUT":     ActionUpdate,
		"PATCH":   ActionUpdate,
		"DELETE":  ActionDelete,
		"GET":     ActionView,
		"OPTIONS": ActionOther,
	}
	for method, want := range cases {
		if got := ActionKindForMethod(method); got != want {
			t.Fatalf("%s: expected %s, got %s", method, want, got)
		}
	}
}
