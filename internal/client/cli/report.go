package cli

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/credkeeper/internal/client/client"
	"github.com/dmitrijs2005/credkeeper/internal/server/api"
	"google.golang.org/grpc/status"
)

// report prints err for the user and returns it unchanged. Field errors are
// listed one per line.
func (a *App) report(err error) error {
	if fe := api.FieldErrors(err); len(fe) > 0 {
		for _, field := range fe.Fields() {
			for _, msg := range fe[field] {
				fmt.Fprintf(a.out, "  %s: %s\n", field, msg)
			}
		}
		return err
	}

	switch {
	case errors.Is(err, client.ErrUnavailable):
		a.setMode(ModeOffline)
		fmt.Fprintln(a.out, "Server unavailable, try again later")
	case errors.Is(err, client.ErrNotLoggedIn):
		fmt.Fprintln(a.out, "Please login first")
	case errors.Is(err, client.ErrUnauthorized):
		fmt.Fprintln(a.out, "Error:", err)
	default:
		fmt.Fprintln(a.out, "Error:", statusMessage(err))
	}
	return err
}

// statusMessage extracts the server message from a wrapped gRPC status.
func statusMessage(err error) string {
	var se interface{ GRPCStatus() *status.Status }
	if errors.As(err, &se) {
		return se.GRPCStatus().Message()
	}
	return err.Error()
}
