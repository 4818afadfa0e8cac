// Package audithttp serves the read-only audit trail API. Records are
// never mutated through HTTP; writes happen only inside the recorder.
package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tutorhub/tutorhub/internal/audit"
	"github.com/tutorhub/tutorhub/internal/platform/httpx"
)

// ListService is the business contract for audit listings.
type ListService interface {
	List(ctx context.Context, filters audit.ListFilters) (audit.Result, error)
}

// Handler serves audit trail queries.
type Handler struct {
	logger  *slog.Logger
	service ListService
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service ListService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

type recordResponse struct {
	ID             int64          `json:"id"`
	ActorID        *int64         `json:"actor_id"`
	ActorName      string         `json:"actor_name,omitempty"`
	RoleID         *int64         `json:"role_id"`
	RoleName       string         `json:"role_name,omitempty"`
	ImpersonatedBy *int64         `json:"impersonated_by,omitempty"`
	ActionKind     string         `json:"action_kind"`
	ResourceType   string         `json:"resource_type"`
	ResourceID     string         `json:"resource_id,omitempty"`
	ResourceName   string         `json:"resource_name,omitempty"`
	Description    string         `json:"description"`
	ClientIP       string         `json:"client_ip,omitempty"`
	UserAgent      string         `json:"user_agent,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	ResponseStatus *int           `json:"response_status,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := audit.ListFilters{
		ActionKind:   audit.ActionKind(q.Get("action_kind")),
		ResourceType: q.Get("resource_type"),
	}
	filters.ActorID, _ = strconv.ParseInt(q.Get("actor"), 10, 64)
	filters.RoleID, _ = strconv.ParseInt(q.Get("role"), 10, 64)
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	result, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list audit records", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	results := make([]recordResponse, 0, len(result.Records))
	for _, rec := range result.Records {
		results = append(results, recordResponse{
			ID:             rec.ID,
			ActorID:        rec.ActorID,
			ActorName:      rec.ActorName,
			RoleID:         rec.RoleID,
			RoleName:       rec.RoleName,
			ImpersonatedBy: rec.ImpersonatedBy,
			ActionKind:     string(rec.ActionKind),
			ResourceType:   rec.ResourceType,
			ResourceID:     rec.ResourceID,
			ResourceName:   rec.ResourceName,
			Description:    rec.Description,
			ClientIP:       rec.ClientIP,
			UserAgent:      rec.UserAgent,
			Payload:        rec.Payload,
			ResponseStatus: rec.ResponseStatus,
			CreatedAt:      rec.CreatedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"page":      result.Page,
		"page_size": result.PageSize,
		"has_next":  result.HasNext,
		"results":   results,
	})
}
