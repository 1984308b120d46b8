package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/flagx"
	"github.com/joho/godotenv"
)

const envPrefix = "CREDKEEPER_"

// parseEnv loads the .env file named by -env (default ".env"; a missing
// file is not an error) and then reads CREDKEEPER_* variables. Variables
// already present in the process environment win over the file. Empty or
// unparsable values leave the current setting unchanged.
func parseEnv(config *Config) {
	_ = godotenv.Load(flagx.EnvFileFlags())

	envString(&config.EndpointAddrHTTP, "HTTP_ADDR")
	envString(&config.EndpointAddrGRPC, "GRPC_ADDR")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.SecretKey, "SECRET_KEY")
	envString(&config.SigningKeyID, "SIGNING_KEY_ID")
	envString(&config.KeyringFile, "KEYRING_FILE")
	envString(&config.KeyringS3Key, "KEYRING_S3_KEY")
	envDuration(&config.AccessTokenValidityDuration, "ACCESS_TTL")
	envDuration(&config.RefreshTokenValidityDuration, "REFRESH_TTL")
	envString(&config.TokenIssuer, "TOKEN_ISSUER")
	envBool(&config.RotateRefreshTokens, "ROTATE_REFRESH")
	envString(&config.PasswordAlgorithm, "PASSWORD_ALGORITHM")
	envInt(&config.BcryptCost, "BCRYPT_COST")
	envInt(&config.HashWorkers, "HASH_WORKERS")
	envInt(&config.PasswordMinLength, "PASSWORD_MIN_LENGTH")
	envBool(&config.PasswordRequireMixedCase, "PASSWORD_REQUIRE_MIXED_CASE")
	envBool(&config.PasswordRequireDigit, "PASSWORD_REQUIRE_DIGIT")
	envBool(&config.PasswordRequireSymbol, "PASSWORD_REQUIRE_SYMBOL")
	envBool(&config.RevealDisabledAccounts, "REVEAL_DISABLED")
	envString(&config.RedisAddr, "REDIS_ADDR")
	envDuration(&config.RevocationCacheNegativeTTL, "REVOCATION_NEGATIVE_TTL")
	envDuration(&config.SweepInterval, "SWEEP_INTERVAL")
	if v := lookup("SENTRY_DSN"); v != "" {
		config.SentryDSN = v
	}
	envString(&config.SentryDSN, "SENTRY_DSN")
	envString(&config.Environment, "ENV")
	envString(&config.LogLevel, "LOG_LEVEL")
	envString(&config.S3RootUser, "S3_ROOT_USER")
	envString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&config.S3Bucket, "S3_BUCKET")
	envString(&config.S3Region, "S3_REGION")
	envString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
}

func lookup(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func envString(dst *string, name string) {
	if v := lookup(envPrefix + name); v != "" {
		*dst = v
	}
}

func envInt(dst *int, name string) {
	v := lookup(envPrefix + name)
	if v == "" {
		return
	}
	if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
		*dst = parsed
	}
}

// envDuration accepts Go duration strings ("15m", "24h") or a bare
// number of seconds.
func envDuration(dst *time.Duration, name string) {
	v := lookup(envPrefix + name)
	if v == "" {
		return
	}
	if parsed, err := time.ParseDuration(v); err == nil && parsed >= 0 {
		*dst = parsed
		return
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		*dst = time.Duration(secs) * time.Second
	}
}

func envBool(dst *bool, name string) {
	switch strings.ToLower(lookup(envPrefix + name)) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	}
}
