package identity

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/descanso-app/descanso/internal/platform/httpx"
	"github.com/descanso-app/descanso/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate

	// onLogout is invoked with the viewer id after a session ends, so the
	// composition root can release that viewer's synchronization engine.
	onLogout func(uuid.UUID)
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, onLogout func(uuid.UUID)) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		onLogout:  onLogout,
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type identityView struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	EmployeeType string    `json:"employeeType"`
}

func viewOf(id shared.Identity) identityView {
	return identityView{
		ID:           id.ID,
		Name:         id.Name,
		Email:        id.Email,
		Role:         string(id.Role),
		EmployeeType: string(id.EmployeeType),
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email and password are required")
		return
	}
	id, token, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if !isCredentialError(err) {
			h.logger.Error("login", slog.Any("error", err))
		}
		httpx.RespondError(w, shared.ErrInvalidCredentials)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"token": token, "user": viewOf(id)})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
		return
	}
	viewerID, err := h.service.Logout(r.Context(), token)
	if err != nil {
		if !isCredentialError(err) {
			h.logger.Error("logout", slog.Any("error", err))
		}
		// Token already gone; logout is idempotent from the caller's view.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if h.onLogout != nil {
		h.onLogout(viewerID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated identity. Mounted behind RequireIdentity.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(id))
}
