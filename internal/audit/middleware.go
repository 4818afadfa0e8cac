package audit

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/tutorhub/tutorhub/internal/shared"
)

// maxCapturedBody bounds how much of a request body the trail keeps.
const maxCapturedBody = 64 << 10

var loggedMethods = map[string]struct{}{
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

// Middleware records one audit entry per handled mutating request on a
// non-excluded API path. Recording happens after the handler completes and
// can never change the response already produced.
type Middleware struct {
	Recorder *Recorder
	// ExcludedPrefixes skip paths that either audit themselves (login)
	// or must not recurse (the audit read API).
	ExcludedPrefixes []string
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Handler wraps next with audit capture.
func (m Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.shouldLog(r) {
			next.ServeHTTP(w, r)
			return
		}

		payload := captureBody(r)
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		actor := shared.ActorFromContext(r.Context())
		if actor == nil {
			return
		}
		status := recorder.status
		m.Recorder.Record(r.Context(), Entry{
			Actor:          actor,
			ImpersonatedBy: actor.ImpersonatedBy,
			ActionKind:     ActionKindForMethod(r.Method),
			ResourceType:   ResourceTypeFromPath(r.URL.Path),
			ResourceID:     ResourceIDFromPath(r.URL.Path),
			ResourceName:   resourceNameFromPayload(payload),
			Description:    r.Method + " " + r.URL.Path,
			ClientIP:       r.RemoteAddr,
			UserAgent:      r.UserAgent(),
			Payload:        payload,
			ResponseStatus: &status,
		})
	})
}

func (m Middleware) shouldLog(r *http.Request) bool {
	if _, ok := loggedMethods[r.Method]; !ok {
		return false
	}
	if !strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	for _, prefix := range m.ExcludedPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return false
		}
	}
	return true
}

// captureBody reads the JSON request body for the trail and puts it back
// for the handler. Non-JSON and non-object bodies are ignored.
func captureBody(r *http.Request) map[string]any {
	if r.Body == nil {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCapturedBody))
	if err != nil {
		return nil
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}

func resourceNameFromPayload(payload map[string]any) string {
	for _, key := range []string{"name", "title", "username"} {
		if value, ok := payload[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}
