package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/credkeeper/internal/flagx"
	"github.com/dmitrijs2005/credkeeper/internal/timex"
)

// JsonConfig is the on-disk form of Config. Intervals use timex.Duration
// so both "15m" strings and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	SigningKeyID                 string         `json:"signing_key_id"`
	KeyringFile                  string         `json:"keyring_file"`
	KeyringS3Key                 string         `json:"keyring_s3_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	TokenIssuer                  string         `json:"token_issuer"`
	RotateRefreshTokens          bool           `json:"rotate_refresh_tokens"`
	PasswordAlgorithm            string         `json:"password_algorithm"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	HashWorkers                  int            `json:"hash_workers"`
	PasswordMinLength            int            `json:"password_min_length"`
	PasswordRequireMixedCase     bool           `json:"password_require_mixed_case"`
	PasswordRequireDigit         bool           `json:"password_require_digit"`
	PasswordRequireSymbol        bool           `json:"password_require_symbol"`
	RevealDisabledAccounts       bool           `json:"reveal_disabled_accounts"`
	RedisAddr                    string         `json:"redis_addr"`
	RevocationCacheNegativeTTL   timex.Duration `json:"revocation_cache_negative_ttl"`
	SweepInterval                timex.Duration `json:"sweep_interval"`
	SentryDSN                    string         `json:"sentry_dsn"`
	Environment                  string         `json:"environment"`
	LogLevel                     string         `json:"log_level"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
}

// parseJson overlays the JSON file given with -c or -config onto config.
// Keys absent from the file keep their current values. An unreadable file
// or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}
	fromJson(c, config)
}

func toJson(config *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:             config.EndpointAddrHTTP,
		EndpointAddrGRPC:             config.EndpointAddrGRPC,
		DatabaseDSN:                  config.DatabaseDSN,
		SecretKey:                    config.SecretKey,
		SigningKeyID:                 config.SigningKeyID,
		KeyringFile:                  config.KeyringFile,
		KeyringS3Key:                 config.KeyringS3Key,
		AccessTokenValidityDuration:  timex.Duration{Duration: config.AccessTokenValidityDuration},
		RefreshTokenValidityDuration: timex.Duration{Duration: config.RefreshTokenValidityDuration},
		TokenIssuer:                  config.TokenIssuer,
		RotateRefreshTokens:          config.RotateRefreshTokens,
		PasswordAlgorithm:            config.PasswordAlgorithm,
		BcryptCost:                   config.BcryptCost,
		HashWorkers:                  config.HashWorkers,
		PasswordMinLength:            config.PasswordMinLength,
		PasswordRequireMixedCase:     config.PasswordRequireMixedCase,
		PasswordRequireDigit:         config.PasswordRequireDigit,
		PasswordRequireSymbol:        config.PasswordRequireSymbol,
		RevealDisabledAccounts:       config.RevealDisabledAccounts,
		RedisAddr:                    config.RedisAddr,
		RevocationCacheNegativeTTL:   timex.Duration{Duration: config.RevocationCacheNegativeTTL},
		SweepInterval:                timex.Duration{Duration: config.SweepInterval},
		SentryDSN:                    config.SentryDSN,
		Environment:                  config.Environment,
		LogLevel:                     config.LogLevel,
		S3RootUser:                   config.S3RootUser,
		S3RootPassword:               config.S3RootPassword,
		S3Bucket:                     config.S3Bucket,
		S3Region:                     config.S3Region,
		S3BaseEndpoint:               config.S3BaseEndpoint,
	}
}

func fromJson(c *JsonConfig, config *Config) {
	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.SigningKeyID = c.SigningKeyID
	config.KeyringFile = c.KeyringFile
	config.KeyringS3Key = c.KeyringS3Key
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	config.TokenIssuer = c.TokenIssuer
	config.RotateRefreshTokens = c.RotateRefreshTokens
	config.PasswordAlgorithm = c.PasswordAlgorithm
	config.BcryptCost = c.BcryptCost
	config.HashWorkers = c.HashWorkers
	config.PasswordMinLength = c.PasswordMinLength
	config.PasswordRequireMixedCase = c.PasswordRequireMixedCase
	config.PasswordRequireDigit = c.PasswordRequireDigit
	config.PasswordRequireSymbol = c.PasswordRequireSymbol
	config.RevealDisabledAccounts = c.RevealDisabledAccounts
	config.RedisAddr = c.RedisAddr
	config.RevocationCacheNegativeTTL = c.RevocationCacheNegativeTTL.Duration
	config.SweepInterval = c.SweepInterval.Duration
	config.SentryDSN = c.SentryDSN
	config.Environment = c.Environment
	config.LogLevel = c.LogLevel
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
