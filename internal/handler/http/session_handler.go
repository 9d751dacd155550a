package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/grocery-storefront/internal/ids"
	"github.com/vasiliy-maslov/grocery-storefront/internal/session"
)

// SessionManager is the session as seen by the HTTP surface.
type SessionManager interface {
	Login(ctx context.Context, identity session.Identity, token string) error
	Logout(ctx context.Context) error
	Update(ctx context.Context, profile session.Identity) (session.Identity, error)
	Identity() (session.Identity, bool)
}

type IdentityRequest struct {
	ID          ids.ID `json:"id" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	FullName    string `json:"fullName" validate:"required,min=2"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phoneNumber"`
	Role        string `json:"role" validate:"required,oneof=admin user driver"`
}

// LoginRequest carries an identity and the token the backend issued for it.
type LoginRequest struct {
	Token string          `json:"token" validate:"required"`
	User  IdentityRequest `json:"user"`
}

type UpdateProfileRequest struct {
	Email       string `json:"email" validate:"required,email"`
	FullName    string `json:"fullName" validate:"required,min=2"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phoneNumber"`
}

type SessionResponse struct {
	Authenticated bool              `json:"authenticated"`
	User          *session.Identity `json:"user,omitempty"`
}

type SessionHandler struct {
	session  SessionManager
	validate *validator.Validate
}

func NewSessionHandler(sess SessionManager) *SessionHandler {
	return &SessionHandler{
		session:  sess,
		validate: validator.New(),
	}
}

func (h *SessionHandler) RegisterRoutes(router chi.Router) {
	router.Get("/session", h.handleGetSession)
	router.Post("/session", h.handleLogin)
	router.Delete("/session", h.handleLogout)
	router.Put("/session/profile", h.handleUpdateProfile)
}

func (h *SessionHandler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.session.Identity()
	if !ok {
		respondWithJSON(w, http.StatusOK, SessionResponse{})
		return
	}
	respondWithJSON(w, http.StatusOK, SessionResponse{Authenticated: true, User: &identity})
}

func (h *SessionHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	identity := session.Identity{
		ID:          req.User.ID,
		Email:       req.User.Email,
		FullName:    req.User.FullName,
		Address:     req.User.Address,
		PhoneNumber: req.User.PhoneNumber,
		Role:        session.Role(req.User.Role),
	}

	if err := h.session.Login(r.Context(), identity, req.Token); err != nil {
		respondWithServiceError(w, err, "Failed to log in")
		return
	}

	respondWithJSON(w, http.StatusOK, SessionResponse{Authenticated: true, User: &identity})
}

func (h *SessionHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		respondWithServiceError(w, err, "Failed to log out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	updated, err := h.session.Update(r.Context(), session.Identity{
		Email:       req.Email,
		FullName:    req.FullName,
		Address:     req.Address,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to update profile")
		return
	}

	log.Info().Stringer("user_id", updated.ID).Msg("Profile updated")
	respondWithJSON(w, http.StatusOK, SessionResponse{Authenticated: true, User: &updated})
}
