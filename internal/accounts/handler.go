package accounts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tutorhub/tutorhub/internal/audit"
	"github.com/tutorhub/tutorhub/internal/platform/httpx"
	"github.com/tutorhub/tutorhub/internal/rbac"
	"github.com/tutorhub/tutorhub/internal/shared"
	"github.com/tutorhub/tutorhub/internal/token"
)

// Handler wires the authentication and account endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	tokens    *token.Issuer
	recorder  *audit.Recorder
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, tokens *token.Issuer, recorder *audit.Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		tokens:    tokens,
		recorder:  recorder,
		validator: validator.New(),
	}
}

// MountPublicRoutes registers the endpoints reachable without a token.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/token/refresh", h.handleRefresh)
}

// MountRoutes registers the endpoints behind bearer authentication.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/logout", h.handleLogout)
	r.Get("/users/me", h.handleMe)
	r.Post("/change-password", h.handleChangePassword)
	r.Get("/users", h.handleListUsers)
	r.Get("/users/{id}", h.handleGetUser)
	r.Patch("/users/{id}/role", h.handleAssignRole)
}

// actorResponse is the account snapshot returned to clients. The password
// hash never leaves the service layer.
type actorResponse struct {
	ID                 int64  `json:"id"`
	Username           string `json:"username"`
	Email              string `json:"email"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	Role               string `json:"role"`
	RoleDisplay        string `json:"role_display"`
	CustomRole         *int64 `json:"custom_role"`
	CustomRoleName     string `json:"custom_role_name,omitempty"`
	IsActive           bool   `json:"is_active"`
	MustChangePassword bool   `json:"must_change_password"`
}

func toActorResponse(acc *Account) actorResponse {
	return actorResponse{
		ID:                 acc.ID,
		Username:           acc.Username,
		Email:              acc.Email,
		FirstName:          acc.FirstName,
		LastName:           acc.LastName,
		Role:               string(acc.BaseRole),
		RoleDisplay:        acc.BaseRole.Label(),
		CustomRole:         acc.DynamicRoleID,
		CustomRoleName:     acc.DynamicRoleName,
		IsActive:           acc.IsActive,
		MustChangePassword: acc.MustChangePassword,
	}
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return
	}
	acc, err := h.service.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrInvalidCredentials):
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "incorrect username or password")
		case errors.Is(err, shared.ErrAccountDisabled):
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "account is disabled")
		default:
			h.logger.Error("login", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	pair, err := h.tokens.IssuePair(acc.ID, acc.Username)
	if err != nil {
		h.logger.Error("issue tokens", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.recordAuth(r, acc, audit.ActionLogin, "login")
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":                 toActorResponse(acc),
		"access_token":         pair.Access,
		"refresh_token":        pair.Refresh,
		"must_change_password": acc.MustChangePassword,
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	_ = httpx.DecodeJSON(r, &req)
	// Invalidation is best-effort; a failed denylist write never fails
	// the logout itself.
	h.tokens.RevokeRefresh(r.Context(), req.RefreshToken)
	if actor := shared.ActorFromContext(r.Context()); actor != nil {
		status := http.StatusOK
		h.recorder.Record(r.Context(), audit.Entry{
			Actor:          actor,
			ImpersonatedBy: actor.ImpersonatedBy,
			ActionKind:     audit.ActionLogout,
			ResourceType:   "Account",
			Description:    "logout",
			ClientIP:       r.RemoteAddr,
			UserAgent:      r.UserAgent(),
			ResponseStatus: &status,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type refreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return
	}
	access, err := h.tokens.Refresh(r.Context(), req.Refresh)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid refresh token")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"access": access})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	acc, err := h.service.GetByID(r.Context(), actor.ID)
	if err != nil {
		h.respondErr(w, "get current user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toActorResponse(acc))
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, httpx.FieldErrors(err))
		return
	}
	if err := h.service.ChangePassword(r.Context(), actor.ID, req.OldPassword, req.NewPassword); err != nil {
		h.respondErr(w, "change password", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	// Non-admins only ever see their own account.
	if rbac.RoleCode(actor.BaseRole) != rbac.RoleAdmin {
		acc, err := h.service.GetByID(r.Context(), actor.ID)
		if err != nil {
			h.respondErr(w, "list users", err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{
			"count":   1,
			"results": []actorResponse{toActorResponse(acc)},
		})
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	accs, paging, err := h.service.List(r.Context(), page, pageSize)
	if err != nil {
		h.respondErr(w, "list users", err)
		return
	}
	results := make([]actorResponse, 0, len(accs))
	for i := range accs {
		results = append(results, toActorResponse(&accs[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"count":     paging.Total,
		"page":      paging.Page,
		"page_size": paging.PerPage,
		"results":   results,
	})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if rbac.RoleCode(actor.BaseRole) != rbac.RoleAdmin && id != actor.ID {
		httpx.Forbidden(w)
		return
	}
	acc, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toActorResponse(acc))
}

type assignRoleRequest struct {
	RoleID *int64 `json:"role_id"`
}

func (h *Handler) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if rbac.RoleCode(actor.BaseRole) != rbac.RoleAdmin {
		httpx.Forbidden(w)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	acc, err := h.service.AssignRole(r.Context(), id, req.RoleID)
	if err != nil {
		h.respondErr(w, "assign role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toActorResponse(acc))
}

func (h *Handler) recordAuth(r *http.Request, acc *Account, kind audit.ActionKind, description string) {
	status := http.StatusOK
	h.recorder.Record(r.Context(), audit.Entry{
		Actor:          acc.Actor(),
		ActionKind:     kind,
		ResourceType:   "Account",
		ResourceID:     strconv.FormatInt(acc.ID, 10),
		ResourceName:   acc.Username,
		Description:    description,
		ClientIP:       r.RemoteAddr,
		UserAgent:      r.UserAgent(),
		ResponseStatus: &status,
	})
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, httpx.ErrValidation):
		httpx.RespondError(w, err)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
