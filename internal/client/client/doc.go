// Package client talks to the credkeeper gRPC endpoint on behalf of the CLI.
//
// GRPCClient keeps the session tokens of the signed-in user. An interceptor
// attaches the access token to every call and, when the server rejects it
// as not valid, exchanges the refresh token once and retries the call.
//
// Transport failures are reported as ErrUnavailable, rejected credentials
// as ErrUnauthorized. Other failures wrap the gRPC status so that
// api.FieldErrors can recover per-field messages.
package client
