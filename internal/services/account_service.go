package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"expensegroups/internal/auth"
	"expensegroups/internal/cache"
	"expensegroups/internal/core"
	"expensegroups/internal/store"
)

const (
	profileCacheSize = 1000
	profileCacheTTL  = 5 * time.Minute
)

// AccountService ties identities to their profile records.
type AccountService struct {
	identity *auth.Service
	users    store.UserStore
	profiles *cache.LRUCache[core.User]
	logger   *slog.Logger
}

func NewAccountService(identity *auth.Service, users store.UserStore, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		identity: identity,
		users:    users,
		profiles: cache.NewLRUCache[core.User](profileCacheSize, profileCacheTTL),
		logger:   logger,
	}
}

// Profiles exposes the profile cache for periodic cleanup.
func (s *AccountService) Profiles() cache.Cleaner { return s.profiles }

// Register creates the identity and then the profile {email, name, groups: []}
// keyed by the identity id.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (core.Identity, error) {
	identity, err := s.identity.SignUp(ctx, email, password, name)
	if err != nil {
		return core.Identity{}, err
	}

	if err := s.createProfile(ctx, identity.ID, identity.Email, name); err != nil {
		// The identity exists; the next sign-in recreates the profile.
		s.logger.ErrorContext(ctx, "Failed to create user profile", "user_id", identity.ID, "error", err)
		return identity, err
	}
	return identity, nil
}

func (s *AccountService) createProfile(ctx context.Context, id, email, name string) error {
	profile := core.User{
		Email:  email,
		Name:   strings.TrimSpace(name),
		Groups: []string{},
	}
	if err := s.users.CreateUser(ctx, profile, id); err != nil {
		return fmt.Errorf("failed to create user profile: %w", err)
	}
	return nil
}

// SignIn issues a session and recreates the profile if registration stopped
// after the identity was created.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (string, core.Identity, error) {
	token, identity, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		return "", core.Identity{}, err
	}
	_, err = s.users.GetUser(ctx, identity.ID)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrNotFound):
		if err := s.createProfile(ctx, identity.ID, identity.Email, identity.DisplayName); err != nil {
			return "", core.Identity{}, err
		}
		s.logger.WarnContext(ctx, "Recreated missing user profile", "user_id", identity.ID)
	default:
		return "", core.Identity{}, fmt.Errorf("failed to load profile: %w", err)
	}
	return token, identity, nil
}

func (s *AccountService) SignOut(ctx context.Context, token string) error {
	return s.identity.SignOut(ctx, token)
}

func (s *AccountService) CurrentUser(ctx context.Context, token string) (core.Identity, error) {
	return s.identity.CurrentUser(ctx, token)
}

// Profile returns the user record for id, served from cache when fresh.
func (s *AccountService) Profile(ctx context.Context, id string) (core.User, error) {
	if u, ok := s.profiles.Get(id); ok {
		u.Groups = slices.Clone(u.Groups)
		return u, nil
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return core.User{}, fmt.Errorf("failed to load profile: %w", err)
	}
	s.profiles.Set(id, u)
	return u, nil
}

// InvalidateProfile drops the cached profile of id.
func (s *AccountService) InvalidateProfile(id string) {
	s.profiles.Delete(id)
}
