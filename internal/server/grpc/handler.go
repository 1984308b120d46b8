package grpc

import (
	"context"

	"github.com/dmitrijs2005/credkeeper/internal/server/api"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
)

func (s *GRPCServer) Register(ctx context.Context, req *api.RegisterRequest) (*api.AuthResponse, error) {
	res, err := s.users.Register(ctx, services.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
	})
	if err != nil {
		return nil, s.toStatus(ctx, api.FullMethod(api.MethodRegister), err)
	}

	return authResponse(api.MsgRegistered, res), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.AuthResponse, error) {
	res, err := s.users.Login(ctx, req.Login, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, api.FullMethod(api.MethodLogin), err)
	}

	return authResponse(api.MsgLoggedIn, res), nil
}

func (s *GRPCServer) GetProfile(ctx context.Context, _ *api.Empty) (*api.User, error) {
	user, _ := UserFromContext(ctx)

	profile, err := s.users.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, s.toStatus(ctx, api.FullMethod(api.MethodGetProfile), err)
	}

	u := api.FromUser(profile)
	return &u, nil
}

func (s *GRPCServer) UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.ProfileResponse, error) {
	user, _ := UserFromContext(ctx)

	updated, err := s.users.UpdateProfile(ctx, user.ID, req.ToModel())
	if err != nil {
		return nil, s.toStatus(ctx, api.FullMethod(api.MethodUpdateProfile), err)
	}

	return &api.ProfileResponse{Message: api.MsgProfileUpdated, User: api.FromUser(updated)}, nil
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *api.ChangePasswordRequest) (*api.MessageResponse, error) {
	user, _ := UserFromContext(ctx)

	err := s.users.ChangePassword(ctx, user.ID, services.ChangePasswordInput{
		CurrentPassword:    req.CurrentPassword,
		NewPassword:        req.NewPassword,
		NewPasswordConfirm: req.NewPasswordConfirm,
	})
	if err != nil {
		return nil, s.toStatus(ctx, api.FullMethod(api.MethodChangePassword), err)
	}

	return &api.MessageResponse{Message: api.MsgPasswordChanged}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *api.LogoutRequest) (*api.MessageResponse, error) {
	user, _ := UserFromContext(ctx)

	if err := s.users.Logout(ctx, user.ID, req.Refresh); err != nil {
		return nil, s.toStatus(ctx, api.FullMethod(api.MethodLogout), err)
	}

	return &api.MessageResponse{Message: api.MsgLoggedOut}, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *api.RefreshRequest) (*api.RefreshResponse, error) {
	pair, err := s.users.Refresh(ctx, req.Refresh)
	if err != nil {
		return nil, s.toStatus(ctx, api.FullMethod(api.MethodRefreshToken), err)
	}

	return &api.RefreshResponse{Access: pair.AccessToken, Refresh: pair.RefreshToken}, nil
}

func (s *GRPCServer) Status(ctx context.Context, _ *api.Empty) (*api.StatusResponse, error) {
	st := api.Status()
	return &st, nil
}

func authResponse(msg string, res *services.AuthResult) *api.AuthResponse {
	return &api.AuthResponse{
		Message: msg,
		User:    api.FromUser(res.User),
		Refresh: res.Tokens.RefreshToken,
		Access:  res.Tokens.AccessToken,
	}
}
