package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/api"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// readSecret reads a password and returns it as a string, wiping the
// terminal buffer.
func (a *App) readSecret(prompt string) (string, error) {
	pw, err := getPassword(a.out, prompt)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

// Register prompts for the account fields and creates the account. The
// new session starts right away.
func (a *App) Register(ctx context.Context) error {
	var req api.RegisterRequest
	var err error

	prompts := []struct {
		text string
		dst  *string
	}{
		{"Enter username", &req.Username},
		{"Enter email", &req.Email},
		{"Enter first name (optional)", &req.FirstName},
		{"Enter last name (optional)", &req.LastName},
	}
	for _, p := range prompts {
		if *p.dst, err = getSimpleText(a.reader, p.text, a.out); err != nil {
			return err
		}
	}

	if req.Password, err = a.readSecret("Enter password"); err != nil {
		return err
	}
	if req.PasswordConfirm, err = a.readSecret("Confirm password"); err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	resp, err := a.client.Register(ctx, req)
	if err != nil {
		return a.report(err)
	}

	a.userName = resp.User.Username
	a.setMode(ModeOnline)
	fmt.Fprintln(a.out, resp.Message)
	return nil
}

// Login accepts a username or an email.
func (a *App) Login(ctx context.Context) error {
	login, err := getSimpleText(a.reader, "Enter username or email", a.out)
	if err != nil {
		return err
	}

	password, err := a.readSecret("Enter password")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	resp, err := a.client.Login(ctx, login, password)
	if err != nil {
		return a.report(err)
	}

	a.userName = resp.User.Username
	a.setMode(ModeOnline)
	fmt.Fprintln(a.out, resp.Message)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.Logout(ctx); err != nil {
		return a.report(err)
	}

	a.userName = ""
	fmt.Fprintln(a.out, api.MsgLoggedOut)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.Refresh(ctx); err != nil {
		return a.report(err)
	}

	fmt.Fprintln(a.out, "Access token refreshed")
	return nil
}

// ChangePassword ends the session on success; the user has to log in
// again with the new password.
func (a *App) ChangePassword(ctx context.Context) error {
	var req api.ChangePasswordRequest
	var err error

	if req.CurrentPassword, err = a.readSecret("Enter current password"); err != nil {
		return err
	}
	if req.NewPassword, err = a.readSecret("Enter new password"); err != nil {
		return err
	}
	if req.NewPasswordConfirm, err = a.readSecret("Confirm new password"); err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.ChangePassword(ctx, req); err != nil {
		return a.report(err)
	}

	a.userName = ""
	fmt.Fprintln(a.out, api.MsgPasswordChanged)
	return nil
}
