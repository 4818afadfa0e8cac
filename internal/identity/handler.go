package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tutorhub/tutorhub/internal/accounts"
	"github.com/tutorhub/tutorhub/internal/audit"
	"github.com/tutorhub/tutorhub/internal/platform/httpx"
	"github.com/tutorhub/tutorhub/internal/rbac"
	"github.com/tutorhub/tutorhub/internal/shared"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	recorder  *audit.Recorder
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, recorder *audit.Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		recorder:  recorder,
		validator: validator.New(),
	}
}

// MountRoutes registers the role switching endpoints. All of them
// require an authenticated actor.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/switch-role", h.handleSwitchRole)
	r.Post("/reset-role", h.handleResetRole)
	r.Get("/current-role", h.handleCurrentRole)
	r.Post("/impersonate-user", h.handleImpersonate)
}

type switchRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) handleSwitchRole(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req switchRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return
	}
	view, err := h.service.SwitchRole(actor, req.Role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, actor, "switch role to "+string(view.TempRole))
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message":       fmt.Sprintf("已切換到%s視角", view.TempRole.Label()),
		"temp_role":     view.TempRole,
		"original_role": view.OriginalRole,
	})
}

func (h *Handler) handleResetRole(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	view, err := h.service.ResetRole(actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.record(r, actor, "reset role preview")
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message":      "已恢復原始角色視角",
		"current_role": view.EffectiveRole,
	})
}

func (h *Handler) handleCurrentRole(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	view := h.service.CurrentRole(actor, r.Header.Get(rbac.HeaderTempRole))
	resp := map[string]any{
		"original_role":          view.OriginalRole,
		"original_role_display":  view.OriginalRole.Label(),
		"effective_role":         view.EffectiveRole,
		"effective_role_display": view.EffectiveRole.Label(),
	}
	if view.TempRole != "" {
		resp["temp_role"] = view.TempRole
		resp["temp_role_display"] = view.TempRole.Label()
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type impersonateRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

func (h *Handler) handleImpersonate(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req impersonateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return
	}
	target, pair, err := h.service.Impersonate(r.Context(), actor, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			httpx.RespondError(w, httpx.ErrNotFound)
		case errors.Is(err, httpx.ErrForbidden), errors.Is(err, httpx.ErrValidation):
			httpx.RespondError(w, err)
		default:
			h.logger.Error("impersonate", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	// The record credits the target as actor and the admin as the
	// impersonating party.
	status := http.StatusOK
	h.recorder.Record(r.Context(), audit.Entry{
		Actor:          target.Actor(),
		ImpersonatedBy: &actor.ID,
		ActionKind:     audit.ActionOther,
		ResourceType:   "Account",
		ResourceID:     strconv.FormatInt(target.ID, 10),
		ResourceName:   target.Username,
		Description:    "impersonate user " + target.Username,
		ClientIP:       r.RemoteAddr,
		UserAgent:      r.UserAgent(),
		ResponseStatus: &status,
	})
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":          toUserResponse(target),
		"access_token":  pair.Access,
		"refresh_token": pair.Refresh,
	})
}

func toUserResponse(acc *accounts.Account) map[string]any {
	return map[string]any{
		"id":           acc.ID,
		"username":     acc.Username,
		"email":        acc.Email,
		"role":         acc.BaseRole,
		"role_display": acc.BaseRole.Label(),
	}
}

func (h *Handler) record(r *http.Request, actor *shared.Actor, description string) {
	status := http.StatusOK
	h.recorder.Record(r.Context(), audit.Entry{
		Actor:          actor,
		ImpersonatedBy: actor.ImpersonatedBy,
		ActionKind:     audit.ActionOther,
		ResourceType:   "Role",
		Description:    description,
		ClientIP:       r.RemoteAddr,
		UserAgent:      r.UserAgent(),
		ResponseStatus: &status,
	})
}
