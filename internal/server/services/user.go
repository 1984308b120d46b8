// Package services contains server-side business logic. UserService is the
// auth orchestrator: it composes the credential store, password hashing,
// token issuing and verification and the revocation registry into the
// registration, login, profile, password and session use cases.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/passwords"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/credkeeper/internal/server/revocation"
	"github.com/dmitrijs2005/credkeeper/internal/server/validation"
	"github.com/google/uuid"
)

// Field error messages specific to the auth flows.
const (
	MsgPasswordsMismatch    = "Passwords do not match."
	MsgNewPasswordsMismatch = "New passwords do not match."
	MsgCurrentPasswordWrong = "Current password is incorrect."
	MsgLoginFieldsRequired  = `Must include "login" and "password".`
)

// PasswordHasher is the part of passwords.Service the orchestrator uses.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, plain, encoded string) (bool, error)
	VerifyDummy(ctx context.Context, plain string)
	NeedsRehash(encoded string) bool
}

type TokenIssuer interface {
	IssueAccessToken(userID string) (auth.Token, error)
	IssuePair(userID string) (access, refresh auth.Token, err error)
	IssueRotatedPair(userID, family string) (access, refresh auth.Token, err error)
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string, expected auth.TokenType) (*auth.Claims, error)
	Inspect(token string, expected auth.TokenType) (*auth.Claims, error)
}

// Config holds the behaviour switches of UserService.
type Config struct {
	Policy                 passwords.Policy
	RotateRefreshTokens    bool
	RevealDisabledAccounts bool
	// RefreshTokenTTL keeps a revoked token family blacklisted for as long
	// as a member of it could still verify. It is also reported in logs when
	// a revocation fails.
	RefreshTokenTTL time.Duration
}

// Deps are the collaborators of UserService.
type Deps struct {
	DB          *sql.DB
	Repos       repomanager.RepositoryManager
	Passwords   PasswordHasher
	Issuer      TokenIssuer
	Verifier    TokenVerifier
	Revocations revocation.Registry
	Logger      logging.Logger
}

// TokenPair bundles a short-lived access token and a long-lived refresh
// token. RefreshToken is empty when a refresh did not rotate.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User   *models.User
	Tokens TokenPair
}

type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm string
	FirstName       string
	LastName        string
}

type ChangePasswordInput struct {
	CurrentPassword    string
	NewPassword        string
	NewPasswordConfirm string
}

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	passwords   PasswordHasher
	issuer      TokenIssuer
	verifier    TokenVerifier
	revocations revocation.Registry
	cfg         Config
	log         logging.Logger

	now   func() time.Time
	newID func() (uuid.UUID, error)
}

func NewUserService(d Deps, cfg Config) *UserService {
	return &UserService{
		db:          d.DB,
		repomanager: d.Repos,
		passwords:   d.Passwords,
		issuer:      d.Issuer,
		verifier:    d.Verifier,
		revocations: d.Revocations,
		cfg:         cfg,
		log:         d.Logger.With("module", "user_service"),
		now:         time.Now,
		newID:       uuid.NewV7,
	}
}

// Register validates the input, creates the user and signs them in.
// Uniqueness is pre-checked for friendly errors, but the database
// constraint decides: a registration that loses a race still ends in a
// conflict.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := validation.NormalizeEmail(in.Email)

	fe := validation.FieldErrors{}
	fe.Add("username", validation.Username(in.Username)...)
	fe.Add("email", validation.Email(email)...)
	fe.Add("first_name", validation.Name(in.FirstName)...)
	fe.Add("last_name", validation.Name(in.LastName)...)
	fe.Add("password", validation.Required(in.Password)...)
	fe.Add("password_confirm", validation.Required(in.PasswordConfirm)...)
	if err := fe.Err(); err != nil {
		return nil, err
	}

	if in.Password != in.PasswordConfirm {
		return nil, validation.NewFieldError("password_confirm", MsgPasswordsMismatch)
	}
	fe.Add("password", s.cfg.Policy.Check(in.Password,
		passwords.Attribute{Name: "username", Value: in.Username},
		passwords.Attribute{Name: "email address", Value: email},
		passwords.Attribute{Name: "first name", Value: in.FirstName},
		passwords.Attribute{Name: "last name", Value: in.LastName},
	)...)
	if err := fe.Err(); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	conflicts := validation.FieldErrors{}
	taken, err := repo.UsernameExists(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("error checking username: %w", err)
	}
	if taken {
		conflicts.Add("username", validation.MsgUsernameTaken)
	}
	taken, err = repo.EmailExists(ctx, email, "")
	if err != nil {
		return nil, fmt.Errorf("error checking email: %w", err)
	}
	if taken {
		conflicts.Add("email", validation.MsgEmailTaken)
	}
	if len(conflicts) > 0 {
		return nil, &validation.Error{Fields: conflicts, Conflict: true}
	}

	hash, err := s.passwords.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("error generating user id: %w", err)
	}

	user, err := repo.Create(ctx, &models.User{
		ID:           id.String(),
		Username:     in.Username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsActive:     true,
	})
	if err != nil {
		if cerr := conflictError(err); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	tokens, err := s.issuePair(user.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Login resolves login as a username or email and checks the password.
// Unknown logins and wrong passwords fail identically, in error and in
// the time spent.
func (s *UserService) Login(ctx context.Context, login, password string) (*AuthResult, error) {
	if login == "" || password == "" {
		return nil, validation.NewFieldError(validation.NonField, MsgLoginFieldsRequired)
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.passwords.VerifyDummy(ctx, password)
			s.log.Info(ctx, "login failed", "reason", "unknown_login")
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	ok, err := s.passwords.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("error verifying password: %w", err)
	}
	if !ok {
		s.log.Info(ctx, "login failed", "reason", "wrong_password", "user_id", user.ID)
		return nil, common.ErrInvalidCredentials
	}

	if !user.IsActive {
		s.log.Info(ctx, "login failed", "reason", "inactive", "user_id", user.ID)
		if s.cfg.RevealDisabledAccounts {
			return nil, common.ErrAccountDisabled
		}
		return nil, common.ErrInvalidCredentials
	}

	if s.passwords.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, password)
	}

	now := s.now()
	if err := repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("error updating last login: %w", err)
	}
	user.LastLogin = &now

	tokens, err := s.issuePair(user.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// rehash upgrades a stored hash to the primary algorithm. Failure leaves
// the old, still valid hash in place.
func (s *UserService) rehash(ctx context.Context, user *models.User, password string) {
	hash, err := s.passwords.Hash(ctx, password)
	if err == nil {
		err = s.repomanager.Users(s.db).UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		s.log.Warn(ctx, "password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
	s.log.Debug(ctx, "password rehashed", "user_id", user.ID)
}

// Authenticate turns a bearer access token into the active user it names.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.verifier.Verify(ctx, accessToken, auth.TokenAccess)
	if err != nil {
		s.logTokenFailure(ctx, "access token rejected", err)
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("token user not found: %w", common.ErrorUnauthorized)
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("token user inactive: %w", common.ErrorUnauthorized)
	}
	return user, nil
}

// GetProfile reloads the user behind an authenticated request. A user that
// has disappeared since the token was checked is reported as unauthorized.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("profile user not found: %w", common.ErrorUnauthorized)
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	return user, nil
}

// UpdateProfile applies a partial update of names and email. The username
// cannot change.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.User, error) {
	fe := validation.FieldErrors{}
	if update.FirstName != nil {
		fe.Add("first_name", validation.Name(*update.FirstName)...)
	}
	if update.LastName != nil {
		fe.Add("last_name", validation.Name(*update.LastName)...)
	}
	if update.Email != nil {
		email := validation.NormalizeEmail(*update.Email)
		update.Email = &email
		fe.Add("email", validation.Email(email)...)
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	if update.Empty() {
		return repo.GetByID(ctx, userID)
	}

	if update.Email != nil {
		taken, err := repo.EmailExists(ctx, *update.Email, userID)
		if err != nil {
			return nil, fmt.Errorf("error checking email: %w", err)
		}
		if taken {
			return nil, validation.NewConflict("email", validation.MsgEmailTaken)
		}
	}

	user, err := repo.UpdateProfile(ctx, userID, update)
	if err != nil {
		if cerr := conflictError(err); cerr != nil {
			return nil, cerr
		}
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error updating profile: %w", err)
	}

	s.log.Info(ctx, "profile updated", "user_id", userID)
	return user, nil
}

// ChangePassword replaces the password and revokes every refresh token the
// user holds. The current password is verified under a row lock so two
// concurrent changes cannot both pass with the old password.
func (s *UserService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	fe := validation.FieldErrors{}
	fe.Add("current_password", validation.Required(in.CurrentPassword)...)
	fe.Add("new_password", validation.Required(in.NewPassword)...)
	fe.Add("new_password_confirm", validation.Required(in.NewPasswordConfirm)...)
	if err := fe.Err(); err != nil {
		return err
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		user, err := repo.GetByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		ok, err := s.passwords.Verify(ctx, in.CurrentPassword, user.PasswordHash)
		if err != nil {
			return fmt.Errorf("error verifying password: %w", err)
		}
		if !ok {
			return validation.NewFieldError("current_password", MsgCurrentPasswordWrong)
		}

		if in.NewPassword != in.NewPasswordConfirm {
			return validation.NewFieldError("new_password_confirm", MsgNewPasswordsMismatch)
		}
		if msgs := s.cfg.Policy.Check(in.NewPassword,
			passwords.Attribute{Name: "username", Value: user.Username},
			passwords.Attribute{Name: "email address", Value: user.Email},
			passwords.Attribute{Name: "first name", Value: user.FirstName},
			passwords.Attribute{Name: "last name", Value: user.LastName},
		); len(msgs) > 0 {
			fe.Add("new_password", msgs...)
			return fe.Err()
		}

		hash, err := s.passwords.Hash(ctx, in.NewPassword)
		if err != nil {
			return fmt.Errorf("error hashing password: %w", err)
		}
		return repo.UpdatePasswordHash(ctx, userID, hash)
	})
	if err != nil {
		if _, ok := validation.AsError(err); ok || errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("error changing password: %w", err)
	}

	if err := s.revocations.RevokeSubject(ctx, userID, s.now()); err != nil {
		s.log.Warn(ctx, "password changed but refresh tokens were not revoked; existing sessions stay usable until their tokens expire",
			"user_id", userID,
			"max_exposure", s.cfg.RefreshTokenTTL.String(),
			"error", err,
		)
	}

	s.log.Info(ctx, "password changed", "user_id", userID)
	return nil
}

// Logout blacklists a refresh token of the calling user together with its
// family, which ends the login session even if the token had already been
// rotated away. Expired tokens are accepted; blacklisting one twice is not
// an error.
func (s *UserService) Logout(ctx context.Context, userID, refreshToken string) error {
	claims, err := s.verifier.Inspect(refreshToken, auth.TokenRefresh)
	if err != nil {
		s.logTokenFailure(ctx, "logout token rejected", err)
		return common.ErrInvalidToken
	}
	if claims.UserID() != userID {
		s.log.Warn(ctx, "logout token belongs to another user", "user_id", userID)
		return common.ErrInvalidToken
	}

	if _, err := s.revocations.Blacklist(ctx, models.RevokedToken{
		TokenID:   claims.ID,
		UserID:    claims.UserID(),
		ExpiresAt: claims.ExpiresTime(),
		Reason:    models.RevokeReasonLogout,
	}); err != nil {
		return fmt.Errorf("error blacklisting token: %w", err)
	}
	if err := s.revokeFamily(ctx, claims, models.RevokeReasonLogout); err != nil {
		return fmt.Errorf("error blacklisting token family: %w", err)
	}

	s.log.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// Refresh exchanges a refresh token for a new access token. With rotation
// the presented token is blacklisted and a new refresh token of the same
// family issued. A token that was already rotated away is treated as
// stolen: its family is blacklisted, which also covers a token minted by a
// concurrent rotation, and every refresh token of the user is revoked.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.verifier.Verify(ctx, refreshToken, auth.TokenRefresh)
	if err != nil {
		s.logTokenFailure(ctx, "refresh token rejected", err)
		if s.cfg.RotateRefreshTokens && errors.Is(err, auth.ErrTokenBlacklisted) {
			if c, ierr := s.verifier.Inspect(refreshToken, auth.TokenRefresh); ierr == nil {
				s.revokeAfterReplay(ctx, c)
			}
		}
		return nil, err
	}
	userID := claims.UserID()

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("token user not found: %w", common.ErrorUnauthorized)
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("token user inactive: %w", common.ErrorUnauthorized)
	}

	if !s.cfg.RotateRefreshTokens {
		access, err := s.issuer.IssueAccessToken(userID)
		if err != nil {
			return nil, fmt.Errorf("error issuing access token: %w", err)
		}
		return &TokenPair{AccessToken: access.Value}, nil
	}

	added, err := s.revocations.Blacklist(ctx, models.RevokedToken{
		TokenID:   claims.ID,
		UserID:    userID,
		ExpiresAt: claims.ExpiresTime(),
		Reason:    models.RevokeReasonRotation,
	})
	if err != nil {
		return nil, fmt.Errorf("error rotating refresh token: %w", err)
	}
	if !added {
		s.revokeAfterReplay(ctx, claims)
		return nil, auth.ErrTokenBlacklisted
	}

	access, refresh, err := s.issuer.IssueRotatedPair(userID, claims.Family)
	if err != nil {
		return nil, fmt.Errorf("error issuing tokens: %w", err)
	}
	return &TokenPair{AccessToken: access.Value, RefreshToken: refresh.Value}, nil
}

// revokeAfterReplay handles a refresh token presented after it was
// blacklisted. A token whose family is already blacklisted belongs to a
// session that was logged out or already handled, and nothing more is
// done. Otherwise either the client or an attacker holds a copy of a
// rotated token: the family is blacklisted and every refresh token of the
// user is revoked so both have to log in again.
func (s *UserService) revokeAfterReplay(ctx context.Context, claims *auth.Claims) {
	userID := claims.UserID()
	if claims.Family != "" {
		ended, err := s.revocations.IsBlacklisted(ctx, claims.Family)
		if err != nil {
			s.log.Error(ctx, "could not check token family after replay", "user_id", userID, "error", err)
		}
		if ended {
			return
		}
		if err := s.revokeFamily(ctx, claims, models.RevokeReasonReplay); err != nil {
			s.log.Error(ctx, "could not revoke token family after replay", "user_id", userID, "error", err)
		}
	}

	s.log.Warn(ctx, "refresh token replay detected, revoking all sessions", "user_id", userID)
	if err := s.revocations.RevokeSubject(ctx, userID, s.now()); err != nil {
		s.log.Error(ctx, "could not revoke sessions after replay", "user_id", userID, "error", err)
	}
}

// revokeFamily blacklists the family of a refresh token. The entry outlives
// any token the family could still mint.
func (s *UserService) revokeFamily(ctx context.Context, claims *auth.Claims, reason string) error {
	if claims.Family == "" {
		return nil
	}
	expires := claims.ExpiresTime()
	if until := s.now().Add(s.cfg.RefreshTokenTTL); until.After(expires) {
		expires = until
	}
	_, err := s.revocations.Blacklist(ctx, models.RevokedToken{
		TokenID:   claims.Family,
		UserID:    claims.UserID(),
		ExpiresAt: expires,
		Reason:    reason,
	})
	return err
}

func (s *UserService) issuePair(userID string) (TokenPair, error) {
	access, refresh, err := s.issuer.IssuePair(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("error issuing tokens: %w", err)
	}
	return TokenPair{AccessToken: access.Value, RefreshToken: refresh.Value}, nil
}

func (s *UserService) logTokenFailure(ctx context.Context, msg string, err error) {
	if kind := auth.Kind(err); kind != "" {
		s.log.Info(ctx, msg, "kind", kind)
		return
	}
	s.log.Error(ctx, msg, "error", err)
}

// conflictError maps the store's duplicate sentinels to field conflicts.
func conflictError(err error) error {
	switch {
	case errors.Is(err, models.ErrDuplicateUsername):
		return validation.NewConflict("username", validation.MsgUsernameTaken)
	case errors.Is(err, models.ErrDuplicateEmail):
		return validation.NewConflict("email", validation.MsgEmailTaken)
	default:
		return nil
	}
}
