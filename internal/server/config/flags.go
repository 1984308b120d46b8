package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/flagx"
)

var serverFlags = []string{
	"-http", "-a", "-d", "-s", "-k", "-f", "-o", "-t", "-r", "-i",
	"-rotate", "-hash", "-w", "-redis", "-l",
	"-u", "-p", "-b", "-g", "-e",
}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-http string  REST bind address (e.g., ":8080")
//	-a string     gRPC bind address (e.g., ":50051")
//	-d string     PostgreSQL DSN
//	-s string     HS256 secret key
//	-k string     key id of the secret key
//	-f string     keyring JSON file
//	-o string     keyring object key in the S3 bucket
//	-t int        access token validity, minutes
//	-r int        refresh token validity, minutes
//	-i string     token issuer
//	-rotate=bool  rotate refresh tokens on use
//	-hash string  password algorithm (bcrypt|argon2id)
//	-w int        password hashing workers
//	-redis string Redis address of the revocation cache
//	-l string     log level
//	-u string     S3 root user
//	-p string     S3 root password
//	-b string     S3 bucket name
//	-g string     S3 region
//	-e string     S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Notes:
//   - os.Args is first filtered to the flags above with flagx.FilterArgs,
//     so flags owned by other loaders do not collide.
//   - -rotate is boolean and must be given as -rotate=false to disable.
//   - Duration flags are accepted as integers in minutes.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "http", config.EndpointAddrHTTP, "address and port of the REST server")
	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port of the gRPC server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.SigningKeyID, "k", config.SigningKeyID, "signing key id")
	fs.StringVar(&config.KeyringFile, "f", config.KeyringFile, "keyring file")
	fs.StringVar(&config.KeyringS3Key, "o", config.KeyringS3Key, "keyring S3 object key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.StringVar(&config.TokenIssuer, "i", config.TokenIssuer, "token issuer")
	fs.BoolVar(&config.RotateRefreshTokens, "rotate", config.RotateRefreshTokens, "rotate refresh tokens")
	fs.StringVar(&config.PasswordAlgorithm, "hash", config.PasswordAlgorithm, "password hashing algorithm")
	fs.IntVar(&config.HashWorkers, "w", config.HashWorkers, "password hashing workers")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// minute flags only apply when given, so sub-minute values from
	// earlier layers survive
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
		}
	})
}
