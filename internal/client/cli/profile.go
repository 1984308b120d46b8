package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/api"
)

// clearValue entered at an update prompt empties the field.
const clearValue = "-"

func (a *App) WhoAmI(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.client.Profile(ctx)
	if err != nil {
		return a.report(err)
	}

	printUser(a, u)
	return nil
}

func printUser(a *App, u *api.User) {
	fmt.Fprintf(a.out, "ID:          %s\n", u.ID)
	fmt.Fprintf(a.out, "Username:    %s\n", u.Username)
	fmt.Fprintf(a.out, "Email:       %s\n", u.Email)
	fmt.Fprintf(a.out, "Full name:   %s\n", u.FullName)
	fmt.Fprintf(a.out, "Active:      %t\n", u.IsActive)
	fmt.Fprintf(a.out, "Verified:    %t\n", u.EmailVerified)
	fmt.Fprintf(a.out, "Joined:      %s\n", u.DateJoined.Format(time.RFC3339))
	if u.LastLogin != nil {
		fmt.Fprintf(a.out, "Last login:  %s\n", u.LastLogin.Format(time.RFC3339))
	}
}

// UpdateProfile prompts for each editable field. A blank answer keeps the
// current value.
func (a *App) UpdateProfile(ctx context.Context) error {
	var req api.UpdateProfileRequest

	prompts := []struct {
		text string
		dst  **string
	}{
		{"New first name (blank keeps, - clears)", &req.FirstName},
		{"New last name (blank keeps, - clears)", &req.LastName},
		{"New email (blank keeps)", &req.Email},
	}
	for _, p := range prompts {
		v, err := getSimpleText(a.reader, p.text, a.out)
		if err != nil {
			return err
		}
		switch v {
		case "":
		case clearValue:
			empty := ""
			*p.dst = &empty
		default:
			*p.dst = &v
		}
	}

	if req.FirstName == nil && req.LastName == nil && req.Email == nil {
		fmt.Fprintln(a.out, "Nothing to update")
		return nil
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.client.UpdateProfile(ctx, req)
	if err != nil {
		return a.report(err)
	}

	fmt.Fprintln(a.out, api.MsgProfileUpdated)
	printUser(a, u)
	return nil
}

func (a *App) Status(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	st, err := a.client.Status(ctx)
	if err != nil {
		return a.report(err)
	}

	fmt.Fprintf(a.out, "%s (version %s)\n", st.Status, st.Version)

	names := make([]string, 0, len(st.Endpoints))
	for name := range st.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(a.out, "  %-16s %s\n", name, st.Endpoints[name])
	}
	return nil
}
