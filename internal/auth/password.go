package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"expensegroups/internal/core"
	"expensegroups/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
)

const minPasswordLen = 8

// PasswordAuthenticator authenticates with bcrypt-hashed passwords.
type PasswordAuthenticator struct {
	storage store.CredentialStore
	cost    int
	now     func() time.Time
}

func NewPasswordAuthenticator(storage store.CredentialStore) *PasswordAuthenticator {
	return &PasswordAuthenticator{
		storage: storage,
		cost:    bcrypt.DefaultCost,
		now:     time.Now,
	}
}

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (a *PasswordAuthenticator) WithCost(cost int) *PasswordAuthenticator {
	a.cost = cost
	return a
}

func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < minPasswordLen {
		return ErrWeakPassword
	}
	return nil
}

// NormalizeEmail trims and lower-cases an address after checking its syntax.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func (a *PasswordAuthenticator) Register(ctx context.Context, email, displayName, credential string) (core.Identity, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return core.Identity{}, err
	}
	if err := a.ValidateCredential(credential); err != nil {
		return core.Identity{}, err
	}

	if _, err := a.storage.GetCredentialByEmail(ctx, email); err == nil {
		return core.Identity{}, ErrEmailExists
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.Identity{}, fmt.Errorf("failed to look up email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credential), a.cost)
	if err != nil {
		return core.Identity{}, fmt.Errorf("failed to hash password: %w", err)
	}

	identity := core.Identity{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: strings.TrimSpace(displayName),
	}
	err = a.storage.CreateCredential(ctx, store.Credential{
		Identity:     identity,
		PasswordHash: hash,
		CreatedAt:    a.now(),
	})
	if errors.Is(err, store.ErrDuplicate) {
		return core.Identity{}, ErrEmailExists
	}
	if err != nil {
		return core.Identity{}, fmt.Errorf("failed to create credential: %w", err)
	}
	return identity, nil
}

// Authenticate never reveals whether the email or the password was wrong.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, credential string) (core.Identity, error) {
	c, err := a.storage.GetCredentialByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return core.Identity{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(c.PasswordHash, []byte(credential)); err != nil {
		return core.Identity{}, ErrInvalidCredentials
	}
	return c.Identity, nil
}
