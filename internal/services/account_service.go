package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ksw5434/realestate/internal/auth"
	"github.com/ksw5434/realestate/internal/config"
	"github.com/ksw5434/realestate/internal/models"
	"github.com/ksw5434/realestate/internal/store"
)

// SignUpInput is the registration form.
type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

// Session is an issued login.
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Profile   *models.Profile `json:"profile,omitempty"`
}

type IAccountService interface {
	SignUp(ctx context.Context, input SignUpInput) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
}

type accountService struct {
	accounts store.IAccountStore
	profiles store.IProfileStore
	cfg      *config.Config
	logger   *zap.Logger
	now      func() time.Time
}

func NewAccountService(accounts store.IAccountStore, profiles store.IProfileStore, cfg *config.Config, logger *zap.Logger) IAccountService {
	return &accountService{accounts: accounts, profiles: profiles, cfg: cfg, logger: logger, now: time.Now}
}

func (s *accountService) SignUp(ctx context.Context, input SignUpInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	verr := &ValidationError{}
	if !isEmailAddress(email) {
		verr.add("email", "is not a valid email address")
	}
	switch {
	case len(input.Password) < auth.MinPasswordLength:
		verr.add("password", fmt.Sprintf("must be at least %d characters", auth.MinPasswordLength))
	case len(input.Password) > auth.MaxPasswordLength:
		verr.add("password", fmt.Sprintf("must be at most %d bytes", auth.MaxPasswordLength))
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	account := &models.Account{Base: models.NewBase(), Email: email, PasswordHash: hash, CreatedAt: now}
	if err := s.accounts.InsertAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, &ValidationError{Fields: []FieldError{{Field: "email", Message: "is already registered"}}}
		}
		return nil, &StoreError{Op: "create account", Err: err}
	}

	profile := &models.Profile{
		ID:        account.ID,
		Email:     email,
		Name:      strings.TrimSpace(input.Name),
		Phone:     strings.TrimSpace(input.Phone),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.profiles.InsertProfile(ctx, profile); err != nil && !errors.Is(err, store.ErrDuplicate) {
		// The profile is auto-created on first use, so the account stays usable.
		s.logger.Warn("Profile creation after sign-up failed", zap.String("user_id", account.ID), zap.Error(err))
		profile = nil
	}

	s.logger.Info("Account created", zap.String("user_id", account.ID))
	return s.issue(account, profile)
}

func (s *accountService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	account, err := s.accounts.FindAccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, &StoreError{Op: "load account", Err: err}
	}
	if !auth.CheckPasswordHash(password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	profile, err := s.profiles.FindProfile(ctx, account.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, &StoreError{Op: "load profile", Err: err}
	}
	return s.issue(account, profile)
}

func (s *accountService) issue(account *models.Account, profile *models.Profile) (*Session, error) {
	token, err := auth.GenerateJWT(account.ID, account.Email, s.cfg.JwtSecret, s.cfg.JwtTTL)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: s.now().Add(s.cfg.JwtTTL), Profile: profile}, nil
}

// isEmailAddress accepts a bare address only, without a display name.
func isEmailAddress(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
