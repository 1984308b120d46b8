package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/api"
	gs "github.com/dmitrijs2005/credkeeper/internal/server/grpc"
	"github.com/dmitrijs2005/credkeeper/internal/server/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// fakeAuth is an in-process AuthService. Access tokens other than valid
// are rejected as not valid.
type fakeAuth struct {
	mu sync.Mutex

	valid       string
	rotate      bool
	refreshErr  error
	registerErr error
	loginErr    error

	seenTokens   []string
	refreshCalls int
	lastLogout   string
}

func (f *fakeAuth) token(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	var tok string
	if v := md.Get(common.AccessTokenHeaderName); len(v) > 0 {
		tok = v[0]
	}
	f.mu.Lock()
	f.seenTokens = append(f.seenTokens, tok)
	f.mu.Unlock()
	return tok
}

func (f *fakeAuth) authorize(ctx context.Context) error {
	tok := f.token(ctx)
	if tok == "" {
		return status.Error(codes.Unauthenticated, api.MsgNoCredentials)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if tok != f.valid {
		return status.Error(codes.Unauthenticated, api.MsgTokenNotValid)
	}
	return nil
}

func (f *fakeAuth) Register(_ context.Context, req *api.RegisterRequest) (*api.AuthResponse, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &api.AuthResponse{Message: api.MsgRegistered, User: api.User{Username: req.Username}, Access: "acc", Refresh: "ref"}, nil
}

func (f *fakeAuth) Login(_ context.Context, req *api.LoginRequest) (*api.AuthResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &api.AuthResponse{Message: api.MsgLoggedIn, User: api.User{Username: req.Login}, Access: "acc", Refresh: "ref"}, nil
}

func (f *fakeAuth) GetProfile(ctx context.Context, _ *api.Empty) (*api.User, error) {
	if err := f.authorize(ctx); err != nil {
		return nil, err
	}
	return &api.User{Username: "alice", FullName: "Alice Liddell"}, nil
}

func (f *fakeAuth) UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.ProfileResponse, error) {
	if err := f.authorize(ctx); err != nil {
		return nil, err
	}
	u := api.User{Username: "alice"}
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
	}
	return &api.ProfileResponse{Message: api.MsgProfileUpdated, User: u}, nil
}

func (f *fakeAuth) ChangePassword(ctx context.Context, req *api.ChangePasswordRequest) (*api.MessageResponse, error) {
	if err := f.authorize(ctx); err != nil {
		return nil, err
	}
	if req.NewPassword != req.NewPasswordConfirm {
		fe := validation.FieldErrors{}
		fe.Add("new_password", validation.MsgPasswordsDiffer)
		return nil, badRequest(codes.InvalidArgument, fe)
	}
	return &api.MessageResponse{Message: api.MsgPasswordChanged}, nil
}

func (f *fakeAuth) Logout(ctx context.Context, req *api.LogoutRequest) (*api.MessageResponse, error) {
	if err := f.authorize(ctx); err != nil {
		return nil, err
	}
	f.lastLogout = req.Refresh
	return &api.MessageResponse{Message: api.MsgLoggedOut}, nil
}

func (f *fakeAuth) RefreshToken(_ context.Context, req *api.RefreshRequest) (*api.RefreshResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	f.valid = "fresh"
	if f.rotate {
		return &api.RefreshResponse{Access: "fresh", Refresh: req.Refresh + "+1"}, nil
	}
	return &api.RefreshResponse{Access: "fresh"}, nil
}

func (f *fakeAuth) Status(context.Context, *api.Empty) (*api.StatusResponse, error) {
	st := api.Status()
	return &st, nil
}

func badRequest(code codes.Code, fe validation.FieldErrors) error {
	br := &errdetails.BadRequest{}
	for _, field := range fe.Fields() {
		for _, msg := range fe[field] {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{Field: field, Description: msg})
		}
	}
	st, _ := status.New(code, "validation error").WithDetails(br)
	return st.Err()
}

func newTestClient(t *testing.T, f *fakeAuth) *GRPCClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	gs.RegisterAuthServiceServer(srv, f)
	go func() { _ = srv.Serve(lis) }()

	c, err := NewCredKeeperClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)

	t.Cleanup(func() {
		c.Close()
		srv.Stop()
	})
	return c
}

func TestLogin_StoresTokens(t *testing.T) {
	f := &fakeAuth{valid: "acc"}
	c := newTestClient(t, f)

	assert.False(t, c.LoggedIn())

	resp, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.User.Username)
	assert.True(t, c.LoggedIn())

	access, refresh := c.tokens()
	assert.Equal(t, "acc", access)
	assert.Equal(t, "ref", refresh)
}

func TestLogin_BadCredentials(t *testing.T) {
	f := &fakeAuth{loginErr: status.Error(codes.Unauthenticated, api.MsgBadCredentials)}
	c := newTestClient(t, f)

	_, err := c.Login(context.Background(), "alice", "nope")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), api.MsgBadCredentials)
	assert.False(t, c.LoggedIn())
}

func TestRegister_FieldErrorsSurvive(t *testing.T) {
	fe := validation.FieldErrors{}
	fe.Add("username", validation.MsgUsernameTaken)
	c := newTestClient(t, &fakeAuth{registerErr: badRequest(codes.AlreadyExists, fe)})

	_, err := c.Register(context.Background(), api.RegisterRequest{Username: "alice"})
	require.Error(t, err)
	assert.Equal(t, fe, api.FieldErrors(err))
}

func TestProtectedCalls_NeedLogin(t *testing.T) {
	c := newTestClient(t, &fakeAuth{})
	ctx := context.Background()

	_, err := c.Profile(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	_, err = c.UpdateProfile(ctx, api.UpdateProfileRequest{})
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.ErrorIs(t, c.ChangePassword(ctx, api.ChangePasswordRequest{}), ErrNotLoggedIn)
	assert.ErrorIs(t, c.Logout(ctx), ErrNotLoggedIn)
	assert.ErrorIs(t, c.Refresh(ctx), ErrNotLoggedIn)
}

func TestProfile_RefreshesOnceOnInvalidToken(t *testing.T) {
	f := &fakeAuth{valid: "acc"}
	c := newTestClient(t, f)
	c.setTokens("stale", "ref")

	u, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	assert.Equal(t, 1, f.refreshCalls)
	assert.Equal(t, []string{"stale", "fresh"}, f.seenTokens)

	access, refresh := c.tokens()
	assert.Equal(t, "fresh", access)
	assert.Equal(t, "ref", refresh, "refresh token kept without rotation")
}

func TestProfile_RotatedRefreshTokenStored(t *testing.T) {
	f := &fakeAuth{valid: "acc", rotate: true}
	c := newTestClient(t, f)
	c.setTokens("stale", "ref")

	_, err := c.Profile(context.Background())
	require.NoError(t, err)

	_, refresh := c.tokens()
	assert.Equal(t, "ref+1", refresh)
}

func TestProfile_RefreshFailureReturnsFirstError(t *testing.T) {
	f := &fakeAuth{valid: "acc", refreshErr: status.Error(codes.Unauthenticated, api.MsgRefreshNotValid)}
	c := newTestClient(t, f)
	c.setTokens("stale", "ref")

	_, err := c.Profile(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), api.MsgTokenNotValid)
	assert.Equal(t, 1, f.refreshCalls)
}

func TestProfile_NoRetryWithoutRefreshToken(t *testing.T) {
	f := &fakeAuth{valid: "acc"}
	c := newTestClient(t, f)
	c.setTokens("stale", "")

	_, err := c.Profile(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, f.refreshCalls)
}

func TestUpdateProfile(t *testing.T) {
	c := newTestClient(t, &fakeAuth{valid: "acc"})
	c.setTokens("acc", "ref")

	name := "Al"
	u, err := c.UpdateProfile(context.Background(), api.UpdateProfileRequest{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Al", u.FirstName)
}

func TestChangePassword_ClearsSession(t *testing.T) {
	c := newTestClient(t, &fakeAuth{valid: "acc"})
	c.setTokens("acc", "ref")

	err := c.ChangePassword(context.Background(), api.ChangePasswordRequest{NewPassword: "a", NewPasswordConfirm: "b"})
	require.Error(t, err)
	assert.Contains(t, api.FieldErrors(err), "new_password")
	assert.True(t, c.LoggedIn())

	err = c.ChangePassword(context.Background(), api.ChangePasswordRequest{NewPassword: "a", NewPasswordConfirm: "a"})
	require.NoError(t, err)
	assert.False(t, c.LoggedIn())
}

func TestLogout_SendsRefreshToken(t *testing.T) {
	f := &fakeAuth{valid: "acc"}
	c := newTestClient(t, f)
	c.setTokens("acc", "ref")

	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, "ref", f.lastLogout)
	assert.False(t, c.LoggedIn())
}

func TestLogout_AfterSilentRotationSendsLiveToken(t *testing.T) {
	f := &fakeAuth{valid: "fresh", rotate: true}
	c := newTestClient(t, f)
	c.setTokens("stale-access", "ref")

	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, 1, f.refreshCalls)
	assert.Equal(t, "ref+1", f.lastLogout)
	assert.False(t, c.LoggedIn())
}

func TestLogout_AfterSilentRefreshWithoutRotation(t *testing.T) {
	f := &fakeAuth{valid: "fresh"}
	c := newTestClient(t, f)
	c.setTokens("stale-access", "ref")

	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, "ref", f.lastLogout)
}

func TestRefresh(t *testing.T) {
	f := &fakeAuth{rotate: true}
	c := newTestClient(t, f)
	c.setTokens("acc", "ref")

	require.NoError(t, c.Refresh(context.Background()))
	access, refresh := c.tokens()
	assert.Equal(t, "fresh", access)
	assert.Equal(t, "ref+1", refresh)

	f.refreshErr = status.Error(codes.Unauthenticated, api.MsgRefreshNotValid)
	err := c.Refresh(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 2, f.refreshCalls, "refresh is never retried")
}

func TestStatusAndPing(t *testing.T) {
	c := newTestClient(t, &fakeAuth{})

	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, common.ServiceVersion, st.Version)
	assert.NoError(t, c.Ping(context.Background()))
}

func TestMapError(t *testing.T) {
	c := &GRPCClient{}

	tests := []struct {
		in   error
		want error
	}{
		{status.Error(codes.Unavailable, "down"), ErrUnavailable},
		{status.Error(codes.DeadlineExceeded, "slow"), ErrUnavailable},
		{status.Error(codes.PermissionDenied, api.MsgAccountDisabled), ErrUnauthorized},
	}
	for _, tt := range tests {
		if got := c.mapError(tt.in); !errors.Is(got, tt.want) {
			t.Fatalf("mapError(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	internal := status.Error(codes.Internal, api.MsgInternalError)
	got := c.mapError(internal)
	assert.Equal(t, codes.Internal, status.Code(got))
	assert.Nil(t, c.mapError(nil))
}

func TestWithAccessToken_ReplacesExisting(t *testing.T) {
	ctx := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, "old", "x-trace", "1")

	md, _ := metadata.FromOutgoingContext(withAccessToken(ctx, "new"))
	assert.Equal(t, []string{"new"}, md.Get(common.AccessTokenHeaderName))
	assert.Equal(t, []string{"1"}, md.Get("x-trace"))

	md, _ = metadata.FromOutgoingContext(withAccessToken(ctx, ""))
	assert.Empty(t, md.Get(common.AccessTokenHeaderName))
}
