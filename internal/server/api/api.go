// Package api defines the request and response bodies shared by the REST
// and gRPC transports. Field names are the wire contract.
package api

import (
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// Response messages.
const (
	MsgRegistered       = "User registered successfully"
	MsgLoggedIn         = "Login successful"
	MsgProfileUpdated   = "Profile updated successfully"
	MsgPasswordChanged  = "Password changed successfully. Please login again."
	MsgLoggedOut        = "Logout successful"
	MsgInvalidToken     = "Invalid token"
	MsgServiceRunning   = "Auth service is running"
	MsgNoCredentials    = "Authentication credentials were not provided."
	MsgTokenNotValid    = "Given token not valid for any token type"
	MsgRefreshNotValid  = "Token is invalid or expired"
	MsgInternalError    = "A server error occurred."
	MsgBadCredentials   = "Unable to login with provided credentials."
	MsgAccountDisabled  = "User account is disabled."
	MsgMalformedBody    = "Malformed request body."
	CodeTokenNotValid   = "token_not_valid"
	StatusHealthy       = "healthy"
	StatusUnhealthy     = "unhealthy"
	DatabaseConnected   = "connected"
	DatabaseUnreachable = "disconnected"
)

// User is the public view of an identity. The password hash is never part
// of it.
type User struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	FullName      string     `json:"full_name"`
	IsActive      bool       `json:"is_active"`
	EmailVerified bool       `json:"email_verified"`
	DateJoined    time.Time  `json:"date_joined"`
	LastLogin     *time.Time `json:"last_login"`
}

func FromUser(u *models.User) User {
	return User{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		FullName:      u.FullName(),
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
		DateJoined:    u.CreatedAt,
		LastLogin:     u.LastLogin,
	}
}

type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
}

type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// AuthResponse answers register and login.
type AuthResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

// UpdateProfileRequest is partial: absent fields are left alone.
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
}

func (r UpdateProfileRequest) ToModel() models.ProfileUpdate {
	return models.ProfileUpdate{FirstName: r.FirstName, LastName: r.LastName, Email: r.Email}
}

type ProfileResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
}

type ChangePasswordRequest struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

type LogoutRequest struct {
	Refresh string `json:"refresh"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse carries a new refresh token only when rotation is on.
type RefreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type StatusResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Empty is the request of parameterless calls.
type Empty struct{}

// DetailError is the body of authentication failures.
type DetailError struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

// ErrorMessage is the body of a failed logout.
type ErrorMessage struct {
	Error string `json:"error"`
}

// Status describes the running service.
func Status() StatusResponse {
	return StatusResponse{
		Status:  MsgServiceRunning,
		Version: common.ServiceVersion,
		Endpoints: map[string]string{
			"register":        "/auth/register/",
			"login":           "/auth/login/",
			"user_profile":    "/auth/user/",
			"change_password": "/auth/change-password/",
			"logout":          "/auth/logout/",
			"token_refresh":   "/auth/token/refresh/",
		},
	}
}
