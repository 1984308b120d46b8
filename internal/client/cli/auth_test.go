package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/client/client"
	"github.com/dmitrijs2005/credkeeper/internal/client/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeClient struct {
	loggedIn bool

	registerReq api.RegisterRequest
	loginArgs   [2]string
	changeReq   api.ChangePasswordRequest
	updateReq   api.UpdateProfileRequest

	err        error
	pingErr    error
	updateCall bool
}

var _ client.Client = (*fakeClient)(nil)

func (f *fakeClient) Close() error   { return nil }
func (f *fakeClient) LoggedIn() bool { return f.loggedIn }

func (f *fakeClient) Register(_ context.Context, req api.RegisterRequest) (*api.AuthResponse, error) {
	f.registerReq = req
	if f.err != nil {
		return nil, f.err
	}
	f.loggedIn = true
	return &api.AuthResponse{Message: api.MsgRegistered, User: api.User{Username: req.Username}}, nil
}

func (f *fakeClient) Login(_ context.Context, login, password string) (*api.AuthResponse, error) {
	f.loginArgs = [2]string{login, password}
	if f.err != nil {
		return nil, f.err
	}
	f.loggedIn = true
	return &api.AuthResponse{Message: api.MsgLoggedIn, User: api.User{Username: "alice"}}, nil
}

func (f *fakeClient) Profile(context.Context) (*api.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	last := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	return &api.User{ID: "id-1", Username: "alice", Email: "a@x.com", FullName: "Alice Liddell", IsActive: true,
		DateJoined: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), LastLogin: &last}, nil
}

func (f *fakeClient) UpdateProfile(_ context.Context, req api.UpdateProfileRequest) (*api.User, error) {
	f.updateCall = true
	f.updateReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &api.User{Username: "alice"}, nil
}

func (f *fakeClient) ChangePassword(_ context.Context, req api.ChangePasswordRequest) error {
	f.changeReq = req
	if f.err == nil {
		f.loggedIn = false
	}
	return f.err
}

func (f *fakeClient) Logout(context.Context) error {
	if f.err == nil {
		f.loggedIn = false
	}
	return f.err
}

func (f *fakeClient) Refresh(context.Context) error { return f.err }

func (f *fakeClient) Status(context.Context) (*api.StatusResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	st := api.Status()
	return &st, nil
}

func (f *fakeClient) Ping(context.Context) error { return f.pingErr }

func newTestApp(c client.Client) (*App, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &App{
		config: &config.Config{RequestTimeout: time.Second},
		client: c,
		reader: bufio.NewReader(strings.NewReader("")),
		out:    out,
	}, out
}

// stubInputs answers text prompts in order and password prompts in order.
func stubInputs(t *testing.T, texts []string, passwords []string) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword

	getSimpleText = func(_ *bufio.Reader, prompt string, _ io.Writer) (string, error) {
		if len(texts) == 0 {
			return "", fmt.Errorf("unexpected prompt %q", prompt)
		}
		v := texts[0]
		texts = texts[1:]
		return v, nil
	}
	getPassword = func(_ io.Writer, prompt string) ([]byte, error) {
		if len(passwords) == 0 {
			return nil, fmt.Errorf("unexpected password prompt %q", prompt)
		}
		v := passwords[0]
		passwords = passwords[1:]
		return []byte(v), nil
	}

	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}

func fieldError(code codes.Code, field, msg string) error {
	st, _ := status.New(code, "validation error").WithDetails(&errdetails.BadRequest{
		FieldViolations: []*errdetails.BadRequest_FieldViolation{{Field: field, Description: msg}},
	})
	return fmt.Errorf("rpc error: %w", st.Err())
}

func TestRegister_Success(t *testing.T) {
	f := &fakeClient{}
	a, out := newTestApp(f)
	stubInputs(t, []string{"alice", "a@x.com", "Alice", ""}, []string{"Secure!23", "Secure!23"})

	require.NoError(t, a.Register(context.Background()))

	assert.Equal(t, api.RegisterRequest{
		Username: "alice", Email: "a@x.com", FirstName: "Alice",
		Password: "Secure!23", PasswordConfirm: "Secure!23",
	}, f.registerReq)
	assert.Equal(t, "alice", a.userName)
	assert.Equal(t, ModeOnline, a.Mode())
	assert.Contains(t, out.String(), api.MsgRegistered)
}

func TestRegister_PrintsFieldErrors(t *testing.T) {
	f := &fakeClient{err: fieldError(codes.AlreadyExists, "username", "A user with this username already exists.")}
	a, out := newTestApp(f)
	stubInputs(t, []string{"alice", "a@x.com", "", ""}, []string{"x", "x"})

	require.Error(t, a.Register(context.Background()))
	assert.Equal(t, "  username: A user with this username already exists.\n", out.String())
	assert.Empty(t, a.userName)
}

func TestRegister_InputErrorStopsEarly(t *testing.T) {
	f := &fakeClient{}
	a, _ := newTestApp(f)
	stubInputs(t, []string{"alice", "a@x.com", "", ""}, nil)

	require.Error(t, a.Register(context.Background()))
	assert.Empty(t, f.registerReq.Username, "nothing sent without a password")
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantUser string
		wantOut  string
		wantMode Mode
	}{
		{name: "ok", wantUser: "alice", wantOut: api.MsgLoggedIn, wantMode: ModeOnline},
		{name: "bad credentials", err: fmt.Errorf("%w: %s", client.ErrUnauthorized, api.MsgBadCredentials),
			wantOut: api.MsgBadCredentials},
		{name: "server down", err: client.ErrUnavailable, wantOut: "Server unavailable", wantMode: ModeOffline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeClient{err: tt.err}
			a, out := newTestApp(f)
			stubInputs(t, []string{"alice"}, []string{"pw"})

			err := a.Login(context.Background())
			if (err != nil) != (tt.err != nil) {
				t.Fatalf("Login err = %v, want %v", err, tt.err)
			}
			assert.Equal(t, [2]string{"alice", "pw"}, f.loginArgs)
			assert.Equal(t, tt.wantUser, a.userName)
			assert.Contains(t, out.String(), tt.wantOut)
			assert.Equal(t, tt.wantMode, a.Mode())
		})
	}
}

func TestLogout(t *testing.T) {
	f := &fakeClient{loggedIn: true}
	a, out := newTestApp(f)
	a.userName = "alice"

	require.NoError(t, a.Logout(context.Background()))
	assert.Empty(t, a.userName)
	assert.False(t, a.isLoggedIn())
	assert.Contains(t, out.String(), api.MsgLoggedOut)
}

func TestLogout_NotLoggedIn(t *testing.T) {
	a, out := newTestApp(&fakeClient{err: client.ErrNotLoggedIn})

	require.ErrorIs(t, a.Logout(context.Background()), client.ErrNotLoggedIn)
	assert.Equal(t, "Please login first\n", out.String())
}

func TestRefresh(t *testing.T) {
	a, out := newTestApp(&fakeClient{loggedIn: true})
	require.NoError(t, a.Refresh(context.Background()))
	assert.Contains(t, out.String(), "refreshed")

	a, out = newTestApp(&fakeClient{err: fmt.Errorf("%w: %s", client.ErrUnauthorized, api.MsgRefreshNotValid)})
	require.Error(t, a.Refresh(context.Background()))
	assert.Contains(t, out.String(), api.MsgRefreshNotValid)
}

func TestChangePassword(t *testing.T) {
	f := &fakeClient{loggedIn: true}
	a, out := newTestApp(f)
	a.userName = "alice"
	stubInputs(t, nil, []string{"old", "New!pass1", "New!pass1"})

	require.NoError(t, a.ChangePassword(context.Background()))
	assert.Equal(t, api.ChangePasswordRequest{CurrentPassword: "old", NewPassword: "New!pass1", NewPasswordConfirm: "New!pass1"}, f.changeReq)
	assert.Empty(t, a.userName)
	assert.Contains(t, out.String(), api.MsgPasswordChanged)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	f := &fakeClient{loggedIn: true, err: fieldError(codes.InvalidArgument, "current_password", "Current password is incorrect.")}
	a, out := newTestApp(f)
	a.userName = "alice"
	stubInputs(t, nil, []string{"bad", "x", "x"})

	require.Error(t, a.ChangePassword(context.Background()))
	assert.Equal(t, "alice", a.userName)
	assert.Contains(t, out.String(), "current_password: Current password is incorrect.")
}

func TestReport_InternalErrorShowsServerMessage(t *testing.T) {
	a, out := newTestApp(&fakeClient{})
	err := fmt.Errorf("rpc error: %w", status.Error(codes.Internal, api.MsgInternalError))

	assert.Same(t, err, a.report(err))
	assert.Equal(t, "Error: "+api.MsgInternalError+"\n", out.String())

	out.Reset()
	plain := errors.New("context deadline exceeded")
	_ = a.report(plain)
	assert.Equal(t, "Error: context deadline exceeded\n", out.String())
}
