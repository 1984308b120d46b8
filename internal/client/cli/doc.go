// Package cli provides the interactive credkeeper command-line client.
//
// It connects to the gRPC endpoint of the server, keeps the session tokens
// of the signed-in user in memory and runs a REPL with account commands:
// register, login, whoami, update, passwd, refresh, logout and status.
// Passwords are read from the terminal without echo.
//
// A background watcher pings the server and switches the prompt between
// online and offline. The REPL is started via App.Root(ctx), which blocks
// until the user exits.
package cli
