// Package server wires the credkeeper server together: storage, password
// hashing, token keys, revocation, the REST and gRPC transports and the
// revocation sweeper, and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/credkeeper/internal/server/keystore"
	"github.com/dmitrijs2005/credkeeper/internal/server/passwords"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/credkeeper/internal/server/revocation"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/credkeeper/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	redis       *redis.Client
	userService *services.UserService
	sweeper     *revocation.Sweeper
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := logging.InitSentry(c.SentryDSN, c.Environment, common.ServiceVersion); err != nil {
		return nil, fmt.Errorf("sentry init error: %w", err)
	}
	logger := logging.NewSentryLogger(logging.NewJSONLogger(os.Stdout, c.LogLevel), nil)

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN, repomanager.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := newApp(ctx, c, logger, db, repomanager.NewPostgresRepositoryManager())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger, db *sql.DB, repos repomanager.RepositoryManager) (*App, error) {
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	keys, err := keyringSource(c).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("keyring error: %w", err)
	}

	hasher, err := passwords.NewService(passwords.Config{
		Algorithm:  c.PasswordAlgorithm,
		BcryptCost: c.BcryptCost,
		Workers:    c.HashWorkers,
	})
	if err != nil {
		return nil, fmt.Errorf("password hasher error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	var registry revocation.Registry = revocation.NewStore(repos.RevokedTokens(db))
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			logger.Warn(ctx, "redis unreachable, revocation cache will fall back to the database", "addr", c.RedisAddr, "error", err)
		}
		registry = revocation.NewCache(registry, app.redis, revocation.CacheConfig{
			NegativeTTL: c.RevocationCacheNegativeTTL,
			SubjectTTL:  c.RefreshTokenValidityDuration,
		}, logger)
	}

	issuer, err := auth.NewIssuer(keys, auth.Config{
		Issuer:     c.TokenIssuer,
		AccessTTL:  c.AccessTokenValidityDuration,
		RefreshTTL: c.RefreshTokenValidityDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("token issuer error: %w", err)
	}
	verifier, err := auth.NewVerifier(keys, c.TokenIssuer, registry)
	if err != nil {
		return nil, fmt.Errorf("token verifier error: %w", err)
	}

	app.userService = services.NewUserService(services.Deps{
		DB:          db,
		Repos:       repos,
		Passwords:   hasher,
		Issuer:      issuer,
		Verifier:    verifier,
		Revocations: registry,
		Logger:      logger,
	}, services.Config{
		Policy:                 passwordPolicy(c),
		RotateRefreshTokens:    c.RotateRefreshTokens,
		RevealDisabledAccounts: c.RevealDisabledAccounts,
		RefreshTokenTTL:        c.RefreshTokenValidityDuration,
	})

	app.sweeper = revocation.NewSweeper(repos.RevokedTokens(db), c.SweepInterval, c.RefreshTokenValidityDuration, logger)

	logger.Info(ctx, "app initialized",
		"signing_algorithm", keys.Algorithm,
		"active_kid", keys.ActiveKID,
		"password_algorithm", c.PasswordAlgorithm,
		"rotate_refresh_tokens", c.RotateRefreshTokens,
		"revocation_cache", c.RedisAddr != "",
	)
	return app, nil
}

// keyringSource picks where signing keys come from: a keyring file, then
// an S3 object, then the configured secret.
func keyringSource(c *config.Config) keystore.Source {
	switch {
	case c.KeyringFile != "":
		return keystore.FileSource{Path: c.KeyringFile}
	case c.KeyringS3Key != "":
		return keystore.NewS3Source(keystore.S3Config{
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Key:          c.KeyringS3Key,
		})
	default:
		return keystore.StaticSource{Secret: c.SecretKey, KID: c.SigningKeyID}
	}
}

func passwordPolicy(c *config.Config) passwords.Policy {
	p := passwords.DefaultPolicy()
	if c.PasswordMinLength > 0 {
		p.MinLength = c.PasswordMinLength
	}
	p.RequireMixedCase = c.PasswordRequireMixedCase
	p.RequireDigit = c.PasswordRequireDigit
	p.RequireSymbol = c.PasswordRequireSymbol
	return p
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves REST and gRPC and sweeps the revocation tables until ctx is
// cancelled, a shutdown signal arrives or one of them fails. Resources are
// released before it returns.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h := httpapi.NewHandler(app.userService, app.db, app.logger)
		return httpapi.NewServer(app.config.EndpointAddrHTTP, h.Routes(), app.logger).Run(gctx)
	})
	g.Go(func() error {
		return gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.db).Run(gctx)
	})
	g.Go(func() error {
		return app.sweeper.Run(gctx)
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		app.logger.Error(ctx, "server stopped with error", "error", err)
	} else {
		err = nil
	}

	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "App stopped")
	return err
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(ctx, "redis close failed", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close failed", "error", err)
	}
	logging.FlushSentry()
}
