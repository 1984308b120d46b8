// Package httpapi serves the REST transport of the auth service.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/api"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
)

// UserService is the part of services.UserService the transport needs.
type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, login, password string) (*services.AuthResult, error)
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.User, error)
	ChangePassword(ctx context.Context, userID string, in services.ChangePasswordInput) error
	Logout(ctx context.Context, userID, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

// Pinger reports database reachability; *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

type Handler struct {
	users UserService
	db    Pinger
	log   logging.Logger
}

func NewHandler(users UserService, db Pinger, l logging.Logger) *Handler {
	return &Handler{users: users, db: db, log: l.With("module", "http_api")}
}

// Routes returns the full handler tree wrapped in recovery and request
// logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register/{$}", h.Register)
	mux.HandleFunc("POST /auth/login/{$}", h.Login)
	mux.Handle("GET /auth/user/{$}", h.requireAuth(h.GetProfile))
	mux.Handle("PUT /auth/user/{$}", h.requireAuth(h.UpdateProfile))
	mux.Handle("PATCH /auth/user/{$}", h.requireAuth(h.UpdateProfile))
	mux.Handle("POST /auth/change-password/{$}", h.requireAuth(h.ChangePassword))
	mux.Handle("POST /auth/logout/{$}", h.requireAuth(h.Logout))
	mux.HandleFunc("POST /auth/token/refresh/{$}", h.Refresh)
	mux.HandleFunc("GET /auth/status/{$}", h.Status)
	mux.HandleFunc("GET /health/{$}", h.Health)
	mux.HandleFunc("GET /{$}", h.Health)

	return h.recoverPanics(h.logRequests(mux))
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body api.RegisterRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	res, err := h.users.Register(r.Context(), services.RegisterInput{
		Username:        body.Username,
		Email:           body.Email,
		Password:        body.Password,
		PasswordConfirm: body.PasswordConfirm,
		FirstName:       body.FirstName,
		LastName:        body.LastName,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse(api.MsgRegistered, res))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body api.LoginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	res, err := h.users.Login(r.Context(), body.Login, body.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse(api.MsgLoggedIn, res))
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	profile, err := h.users.GetProfile(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.FromUser(profile))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var body api.UpdateProfileRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	updated, err := h.users.UpdateProfile(r.Context(), user.ID, body.ToModel())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.ProfileResponse{Message: api.MsgProfileUpdated, User: api.FromUser(updated)})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var body api.ChangePasswordRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	err := h.users.ChangePassword(r.Context(), user.ID, services.ChangePasswordInput{
		CurrentPassword:    body.CurrentPassword,
		NewPassword:        body.NewPassword,
		NewPasswordConfirm: body.NewPasswordConfirm,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.MessageResponse{Message: api.MsgPasswordChanged})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var body api.LogoutRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if err := h.users.Logout(r.Context(), user.ID, body.Refresh); err != nil {
		if errors.Is(err, common.ErrInvalidToken) {
			writeJSON(w, http.StatusBadRequest, api.ErrorMessage{Error: api.MsgInvalidToken})
			return
		}
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.MessageResponse{Message: api.MsgLoggedOut})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body api.RefreshRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	pair, err := h.users.Refresh(r.Context(), body.Refresh)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			writeDetail(w, http.StatusUnauthorized, api.MsgRefreshNotValid, api.CodeTokenNotValid)
			return
		}
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, api.RefreshResponse{Access: pair.AccessToken, Refresh: pair.RefreshToken})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.Status())
}

// Health answers 503 while the database cannot be pinged.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.log.Warn(ctx, "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, api.HealthResponse{Status: api.StatusUnhealthy, Database: api.DatabaseUnreachable})
		return
	}
	writeJSON(w, http.StatusOK, api.HealthResponse{Status: api.StatusHealthy, Database: api.DatabaseConnected})
}

func authResponse(msg string, res *services.AuthResult) api.AuthResponse {
	return api.AuthResponse{
		Message: msg,
		User:    api.FromUser(res.User),
		Refresh: res.Tokens.RefreshToken,
		Access:  res.Tokens.AccessToken,
	}
}
