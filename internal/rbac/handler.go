package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tutorhub/tutorhub/internal/platform/httpx"
	"github.com/tutorhub/tutorhub/internal/shared"
)

// Handler exposes the role and permission administration endpoints. All
// writes are admin-only; the router mounts them behind RequireAdmin.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listRoles)
	r.Post("/", h.createRole)
	r.Get("/{id}", h.getRole)
	r.Put("/{id}", h.updateRole)
	r.Delete("/{id}", h.deleteRole)
	r.Get("/{id}/permissions", h.listPermissions)
	r.Put("/{id}/permissions", h.replacePermissions)
}

type roleResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Code        string    `json:"code,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		Code:        role.Code,
		IsActive:    role.IsActive,
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}

type roleRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Code        string `json:"code" validate:"omitempty,oneof=ADMIN TEACHER STUDENT ACCOUNTANT"`
	IsActive    *bool  `json:"is_active"`
}

type permissionEntryRequest struct {
	Kind         string `json:"kind" validate:"required,oneof=PAGE API page api"`
	ResourcePath string `json:"resource_path" validate:"required,max=255"`
	Method       string `json:"method" validate:"omitempty,oneof=GET POST PUT PATCH DELETE get post put patch delete"`
}

type permissionEntryResponse struct {
	ID           int64  `json:"id"`
	Kind         string `json:"kind"`
	ResourcePath string `json:"resource_path"`
	Method       string `json:"method,omitempty"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagingParams(r)
	roles, paging, err := h.service.ListRoles(r.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	results := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		results = append(results, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"count":     paging.Total,
		"page":      paging.Page,
		"page_size": paging.PerPage,
		"results":   results,
	})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	role, err := h.service.CreateRole(r.Context(), req.Name, req.Description, req.Code, active)
	if err != nil {
		h.respondErr(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	role, err := h.service.UpdateRole(r.Context(), id, req.Name, req.Description, req.Code, active)
	if err != nil {
		h.respondErr(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.respondErr(w, "delete role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "role deleted"})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.ListPermissions(r.Context(), id)
	if err != nil {
		h.respondErr(w, "list permissions", err)
		return
	}
	results := make([]permissionEntryResponse, 0, len(entries))
	for _, e := range entries {
		results = append(results, permissionEntryResponse{
			ID:           e.ID,
			Kind:         string(e.Kind),
			ResourcePath: e.ResourcePath,
			Method:       e.Method,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) replacePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var reqs []permissionEntryRequest
	if err := httpx.DecodeJSON(r, &reqs); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	entries := make([]PermissionEntry, 0, len(reqs))
	for i, req := range reqs {
		if err := h.validator.Struct(req); err != nil {
			fields := httpx.FieldErrors(err)
			fields["entry"] = strconv.Itoa(i)
			httpx.ValidationProblem(w, fields)
			return
		}
		entries = append(entries, PermissionEntry{
			Kind:         Kind(req.Kind),
			ResourcePath: req.ResourcePath,
			Method:       req.Method,
		})
	}
	if err := h.service.ReplacePermissions(r.Context(), id, entries); err != nil {
		h.respondErr(w, "replace permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "permissions replaced", "count": len(entries)})
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrDuplicateEntry):
		httpx.RespondError(w, httpx.ErrDuplicate)
	case errors.Is(err, httpx.ErrValidation), errors.Is(err, httpx.ErrDuplicate):
		httpx.RespondError(w, err)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, httpx.ErrNotFound
	}
	return id, nil
}

func pagingParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}
