// Package services contains server-side business logic. This file implements
// UserService registration and login over whichever identity and profile
// backends are currently available.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/pilosopo/internal/common"
	"github.com/dmitrijs2005/pilosopo/internal/logging"
	"github.com/dmitrijs2005/pilosopo/internal/server/auth"
	"github.com/dmitrijs2005/pilosopo/internal/server/backends"
	"github.com/dmitrijs2005/pilosopo/internal/server/models"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

var (
	hashPassword = func(password string) (string, error) {
		b, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
		return string(b), err
	}
	comparePassword = func(hash, password string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
)

// UserService implements account creation, login and the profile
// operations in profiles.go.
type UserService struct {
	probe                  *backends.Probe
	log                    logging.Logger
	now                    func() time.Time
	allowExistenceFallback bool
}

// NewUserService constructs a UserService. allowExistenceFallback keeps the
// provider-lookup login path enabled.
func NewUserService(probe *backends.Probe, l logging.Logger, allowExistenceFallback bool) *UserService {
	return &UserService{
		probe:                  probe,
		log:                    l.With("module", "users"),
		now:                    time.Now,
		allowExistenceFallback: allowExistenceFallback,
	}
}

type RegisterRequest struct {
	Username        string
	Password        string
	ConfirmPassword string
}

type RegisterResult struct {
	Message        string
	UID            string
	Username       string
	StoreError     string
	ServerFallback bool
}

// Register creates the provider account (when possible) and persists a
// profile carrying a password hash to the preferred store. Not idempotent:
// repeated calls create repeated accounts.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if req.Username == "" || req.Password == "" || req.ConfirmPassword == "" {
		return nil, common.Validation("All fields are required")
	}
	if req.Password != req.ConfirmPassword {
		return nil, common.Validation("Passwords do not match")
	}

	// Hash before any remote side effect.
	hash, err := hashNewPassword(req.Password)
	if err != nil {
		return nil, err
	}

	var providerUID string
	if provider := s.probe.Identity(); provider != nil {
		acct, err := provider.CreateAccount(ctx, models.DerivedEmail(req.Username), req.Password, req.Username)
		if err != nil {
			s.log.Warn(ctx, "identity provider account creation failed, continuing with local persistence", "username", req.Username, "error", err)
		} else {
			providerUID = acct.UID
		}
	}

	now := s.now().UTC()
	profile := &models.UserProfile{
		ID:           models.NewLocalID(now),
		Provider:     models.ProviderLocal,
		Username:     req.Username,
		Email:        models.DerivedEmail(req.Username),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if providerUID != "" {
		profile.ID = providerUID
		profile.Provider = models.ProviderFirebase
	}

	kind, store := s.probe.ResolveStore(backends.Write)
	if store == nil {
		if providerUID != "" {
			return &RegisterResult{
				Message:        "User created (identity provider only, no profile store)",
				UID:            profile.ID,
				Username:       req.Username,
				ServerFallback: true,
			}, nil
		}
		return nil, &common.Error{Kind: common.ErrBackend, Message: "Failed to create user: no persistence available"}
	}

	if err := store.Create(ctx, profile); err != nil {
		s.log.Error(ctx, "profile write failed", "store", kind.String(), "uid", profile.ID, "error", err)
		if providerUID != "" {
			return &RegisterResult{
				Message:    "User created (identity provider only). Profile write failed.",
				UID:        profile.ID,
				Username:   req.Username,
				StoreError: common.Message(err),
			}, nil
		}
		return nil, &PartialError{
			Err:     &common.Error{Kind: common.KindOf(err), Message: "Failed to create user", Cause: err},
			Details: map[string]any{"firestoreError": common.Message(err)},
		}
	}

	res := &RegisterResult{Message: "User created", UID: profile.ID, Username: req.Username}
	if providerUID == "" {
		res.ServerFallback = true
	}
	s.log.Info(ctx, "user created", "uid", profile.ID, "provider", profile.Provider, "store", kind.String())
	return res, nil
}

type LoginRequest struct {
	Username string
	Password string
}

type LoginResult struct {
	Message        string
	UID            string
	Username       string
	Token          string
	ExpiresAt      *time.Time
	ServerFallback bool
}

// Login tries, in order: delegated verification on the provider, local
// hash verification against the stored profile, and the provider-lookup
// fallback. The last one proves only that the account exists; it does not
// check the password and is meant as an operator break-glass path.
func (s *UserService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if req.Username == "" || req.Password == "" {
		return nil, common.Validation("Username and password are required")
	}
	email := models.DerivedEmail(req.Username)

	if grant := s.probe.Grant(); grant != nil {
		return s.loginDelegated(ctx, req, email)
	}

	res, err := s.loginLocal(ctx, req)
	if err != nil || res != nil {
		return res, err
	}

	provider := s.probe.Identity()
	if provider == nil {
		return nil, common.Unavailable("Server misconfiguration: missing identity provider web API key and identity provider not initialized. Provide FIREBASE_API_KEY or a service account.")
	}
	if !s.allowExistenceFallback {
		return nil, common.Unavailable("Server misconfiguration: missing or invalid identity provider web API key and the provider-lookup fallback is disabled.")
	}

	acct, err := provider.GetAccountByEmail(ctx, email)
	if err == nil {
		var token string
		token, err = provider.ExchangeToken(ctx, acct.UID)
		if err == nil {
			s.log.Warn(ctx, "login granted by account existence without password check", "uid", acct.UID)
			return &LoginResult{
				Message:        "Server fallback: custom token created",
				UID:            acct.UID,
				Username:       req.Username,
				Token:          token,
				ServerFallback: true,
			}, nil
		}
	}
	s.log.Error(ctx, "provider-lookup login fallback failed", "username", req.Username, "error", err)
	return nil, common.UnavailableCause("Server misconfiguration: missing or invalid identity provider web API key and server fallback failed.", err)
}

func (s *UserService) loginDelegated(ctx context.Context, req LoginRequest, email string) (*LoginResult, error) {
	session, err := s.probe.Grant().SignIn(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}

	res := &LoginResult{
		Message:  "Login successful",
		UID:      session.UID,
		Username: req.Username,
		Token:    session.IDToken,
	}
	if info, err := auth.InspectToken(session.IDToken); err == nil && !info.ExpiresAt.IsZero() {
		exp := info.ExpiresAt.UTC()
		res.ExpiresAt = &exp
	}

	if _, store := s.probe.ResolveStore(backends.Read); store != nil {
		profile, err := store.Get(ctx, session.UID)
		switch {
		case err == nil && profile.Username != "":
			res.Username = profile.Username
		case err != nil && !errors.Is(err, common.ErrNotFound):
			s.log.Warn(ctx, "profile enrichment failed", "uid", session.UID, "error", err)
		}
	}
	return res, nil
}

// loginLocal returns (nil, nil) when no stored hash is available, so the
// caller moves on to the next path.
// hashNewPassword hashes a password about to be stored. bcrypt's input
// limit surfaces as a validation error.
func hashNewPassword(password string) (string, error) {
	hash, err := hashPassword(password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", common.Validation("Password is too long")
		}
		return "", common.Backend("error hashing password", err)
	}
	return hash, nil
}

func (s *UserService) loginLocal(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	kind, store := s.probe.ResolveStore(backends.Read)
	if store == nil {
		return nil, nil
	}

	profile, err := store.FindByUsername(ctx, req.Username)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.log.Warn(ctx, "stored password lookup failed", "store", kind.String(), "error", err)
		}
		return nil, nil
	}
	if profile.PasswordHash == "" {
		return nil, nil
	}
	if !comparePassword(profile.PasswordHash, req.Password) {
		return nil, common.InvalidCredentials("Invalid credentials")
	}

	res := &LoginResult{
		Message:        "Login successful (server-password)",
		UID:            profile.ID,
		Username:       profile.Username,
		ServerFallback: true,
	}
	if provider := s.probe.Identity(); provider != nil {
		token, err := provider.ExchangeToken(ctx, profile.ID)
		if err != nil {
			s.log.Warn(ctx, "token minting after password check failed", "uid", profile.ID, "error", err)
		} else {
			res.Token = token
		}
	}
	return res, nil
}
