package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

var _ Client = (*GRPCClient)(nil)

func NewCredKeeperClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// InitGRPCClient creates the connection. Extra options are appended to the
// defaults, which select the JSON codec and plaintext transport.
func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.CodecName)),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}

	conn, err := grpc.NewClient(s.endpointURL, append(base, opts...)...)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) setTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = access
	s.refreshToken = refresh
}

func (s *GRPCClient) LoggedIn() bool {
	access, _ := s.tokens()
	return access != ""
}

// accessTokenInterceptor sends the current access token and retries a call
// once after refreshing it when the server answers that the token is not
// valid. Refresh calls themselves are never retried.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	access, refresh := s.tokens()
	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != api.MsgTokenNotValid {
		return err
	}
	if refresh == "" || method == api.FullMethod(api.MethodRefreshToken) {
		return err
	}

	resp := &api.RefreshResponse{}
	if rerr := invoker(withAccessToken(ctx, ""), api.FullMethod(api.MethodRefreshToken),
		&api.RefreshRequest{Refresh: refresh}, resp, cc, opts...); rerr != nil {
		return err
	}
	s.storeRefreshed(refresh, resp)

	return invoker(withAccessToken(ctx, resp.Access), method, rebind(req, refresh, resp.Refresh), reply, cc, opts...)
}

// rebind swaps a refresh token carried in req for the one a rotation just
// issued, so a retried Logout ends the live session rather than the one
// the server has already blacklisted.
func rebind(req any, used, rotated string) any {
	if lr, ok := req.(*api.LogoutRequest); ok && rotated != "" && lr.Refresh == used {
		return &api.LogoutRequest{Refresh: rotated}
	}
	return req
}

// storeRefreshed keeps the old refresh token unless the server rotated it.
func (s *GRPCClient) storeRefreshed(used string, resp *api.RefreshResponse) {
	refresh := resp.Refresh
	if refresh == "" {
		refresh = used
	}
	s.setTokens(resp.Access, refresh)
}

func (s *GRPCClient) invoke(ctx context.Context, method string, req, reply any) error {
	if err := s.conn.Invoke(ctx, api.FullMethod(method), req, reply); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error) {
	resp := &api.AuthResponse{}
	if err := s.invoke(ctx, api.MethodRegister, &req, resp); err != nil {
		return nil, err
	}
	s.setTokens(resp.Access, resp.Refresh)
	return resp, nil
}

func (s *GRPCClient) Login(ctx context.Context, login, password string) (*api.AuthResponse, error) {
	resp := &api.AuthResponse{}
	if err := s.invoke(ctx, api.MethodLogin, &api.LoginRequest{Login: login, Password: password}, resp); err != nil {
		return nil, err
	}
	s.setTokens(resp.Access, resp.Refresh)
	return resp, nil
}

func (s *GRPCClient) Profile(ctx context.Context) (*api.User, error) {
	if !s.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	resp := &api.User{}
	if err := s.invoke(ctx, api.MethodGetProfile, &api.Empty{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *GRPCClient) UpdateProfile(ctx context.Context, req api.UpdateProfileRequest) (*api.User, error) {
	if !s.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	resp := &api.ProfileResponse{}
	if err := s.invoke(ctx, api.MethodUpdateProfile, &req, resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// ChangePassword ends the local session on success since the server
// revokes every token issued before the change.
func (s *GRPCClient) ChangePassword(ctx context.Context, req api.ChangePasswordRequest) error {
	if !s.LoggedIn() {
		return ErrNotLoggedIn
	}
	if err := s.invoke(ctx, api.MethodChangePassword, &req, &api.MessageResponse{}); err != nil {
		return err
	}
	s.setTokens("", "")
	return nil
}

func (s *GRPCClient) Logout(ctx context.Context) error {
	_, refresh := s.tokens()
	if refresh == "" {
		return ErrNotLoggedIn
	}
	if err := s.invoke(ctx, api.MethodLogout, &api.LogoutRequest{Refresh: refresh}, &api.MessageResponse{}); err != nil {
		return err
	}
	s.setTokens("", "")
	return nil
}

func (s *GRPCClient) Refresh(ctx context.Context) error {
	_, refresh := s.tokens()
	if refresh == "" {
		return ErrNotLoggedIn
	}
	resp := &api.RefreshResponse{}
	if err := s.invoke(ctx, api.MethodRefreshToken, &api.RefreshRequest{Refresh: refresh}, resp); err != nil {
		return err
	}
	s.storeRefreshed(refresh, resp)
	return nil
}

func (s *GRPCClient) Status(ctx context.Context) (*api.StatusResponse, error) {
	resp := &api.StatusResponse{}
	if err := s.invoke(ctx, api.MethodStatus, &api.Empty{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.Status(ctx)
	if err != nil {
		return err
	}
	if resp.Status != api.MsgServiceRunning {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
