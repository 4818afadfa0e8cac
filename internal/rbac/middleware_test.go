package rbac

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tutorhub/tutorhub/internal/shared"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func requestWithActor(method, path string, actor *shared.Actor) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if actor != nil {
		req = req.WithContext(shared.ContextWithActor(context.Background(), actor))
	}
	return req
}

func TestRequireAdmin(t *testing.T) {
	mw := Middleware{}

	cases := []struct {
		name   string
		actor  *shared.Actor
		header string
		want   int
	}{
		{"no actor", nil, "", http.StatusForbidden},
		{"student", &shared.Actor{ID: 2, BaseRole: "STUDENT"}, "", http.StatusForbidden},
		{"student with forged header", &shared.Actor{ID: 2, BaseRole: "STUDENT"}, "ADMIN", http.StatusForbidden},
		{"admin", &shared.Actor{ID: 1, BaseRole: "ADMIN"}, "", http.StatusOK},
		{"admin previewing student", &shared.Actor{ID: 1, BaseRole: "ADMIN"}, "STUDENT", http.StatusOK},
	}
	for _, tc := range cases {
		called := false
		req := requestWithActor(http.MethodGet, "/api/account/roles", tc.actor)
		if tc.header != "" {
			req.Header.Set(HeaderTempRole, tc.header)
		}
		rr := httptest.NewRecorder()
		mw.RequireAdmin(okHandler(&called)).ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rr.Code)
		}
		if called != (tc.want == http.StatusOK) {
			t.Fatalf("%s: handler called=%v", tc.name, called)
		}
	}
}

func TestGuardDeniesWithUniformBody(t *testing.T) {
	store := &stubPermissionStore{
		roles: map[RoleCode]Role{
			RoleStudent: {ID: 11, Code: "STUDENT", IsActive: true},
		},
	}
	mw := Middleware{Enforcer: NewEnforcer(store, nil)}

	called := false
	student := &shared.Actor{ID: 2, BaseRole: "STUDENT"}
	req := requestWithActor(http.MethodPost, "/api/center/courses", student)
	rr := httptest.NewRecorder()
	mw.Guard(okHandler(&called)).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if called {
		t.Fatal("handler must not run on denial")
	}
	var problem map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &problem); err != nil {
		t.Fatalf("problem body: %v", err)
	}
	detail, _ := problem["detail"].(string)
	if detail != "you do not have permission to perform this action" {
		t.Fatalf("denial must not leak rule details, got %q", detail)
	}
}

type stubDenialCounter struct {
	roles []string
}

func (c *stubDenialCounter) CountDenied(role string) {
	c.roles = append(c.roles, role)
}

func TestGuardCountsDenials(t *testing.T) {
	store := &stubPermissionStore{
		roles: map[RoleCode]Role{
			RoleStudent: {ID: 11, Code: "STUDENT", IsActive: true},
		},
	}
	counter := &stubDenialCounter{}
	mw := Middleware{Enforcer: NewEnforcer(store, nil), Denials: counter}

	called := false
	student := &shared.Actor{ID: 2, BaseRole: "STUDENT"}
	req := requestWithActor(http.MethodPost, "/api/center/courses", student)
	rr := httptest.NewRecorder()
	mw.Guard(okHandler(&called)).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if len(counter.roles) != 1 || counter.roles[0] != "STUDENT" {
		t.Fatalf("expected one STUDENT denial, got %v", counter.roles)
	}

	// Allowed requests leave the counter alone.
	store.grants = map[string]bool{
		grantKey(KindAPI, "/api/center/courses", "GET"): true,
	}
	req = requestWithActor(http.MethodGet, "/api/center/courses", student)
	rr = httptest.NewRecorder()
	mw.Guard(okHandler(&called)).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || len(counter.roles) != 1 {
		t.Fatalf("allowed request must not count: %d %v", rr.Code, counter.roles)
	}
}

func TestGuardAllowsGrantedRequest(t *testing.T) {
	store := &stubPermissionStore{
		roles: map[RoleCode]Role{
			RoleStudent: {ID: 11, Code: "STUDENT", IsActive: true},
		},
		grants: map[string]bool{
			grantKey(KindAPI, "/api/center/courses", "GET"): true,
		},
	}
	mw := Middleware{Enforcer: NewEnforcer(store, nil)}

	called := false
	student := &shared.Actor{ID: 2, BaseRole: "STUDENT"}
	req := requestWithActor(http.MethodGet, "/api/center/courses", student)
	rr := httptest.NewRecorder()
	mw.Guard(okHandler(&called)).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || !called {
		t.Fatalf("expected pass-through, got %d called=%v", rr.Code, called)
	}
}

func TestGuardExcludedPrefixSkipsCheck(t *testing.T) {
	mw := Middleware{
		Enforcer:         NewEnforcer(&stubPermissionStore{}, nil),
		ExcludedPrefixes: []string{"/api/account"},
	}

	called := false
	student := &shared.Actor{ID: 2, BaseRole: "STUDENT"}
	req := requestWithActor(http.MethodGet, "/api/account/users/me", student)
	rr := httptest.NewRecorder()
	mw.Guard(okHandler(&called)).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || !called {
		t.Fatalf("excluded prefix should pass, got %d called=%v", rr.Code, called)
	}
}

func TestGuardRequiresActor(t *testing.T) {
	mw := Middleware{Enforcer: NewEnforcer(&stubPermissionStore{}, nil)}

	called := false
	req := httptest.NewRequest(http.MethodGet, "/api/center/courses", nil)
	rr := httptest.NewRecorder()
	mw.Guard(okHandler(&called)).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without actor, got %d", rr.Code)
	}
	if called {
		t.Fatal("handler must not run without actor")
	}
}
