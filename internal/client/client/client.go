package client

import (
	"context"

	"github.com/dmitrijs2005/credkeeper/internal/server/api"
)

// Client is the API the CLI depends on.
type Client interface {
	Close() error
	Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error)
	Login(ctx context.Context, login, password string) (*api.AuthResponse, error)
	Profile(ctx context.Context) (*api.User, error)
	UpdateProfile(ctx context.Context, req api.UpdateProfileRequest) (*api.User, error)
	ChangePassword(ctx context.Context, req api.ChangePasswordRequest) error
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
	Status(ctx context.Context) (*api.StatusResponse, error)
	Ping(ctx context.Context) error
	LoggedIn() bool
}
