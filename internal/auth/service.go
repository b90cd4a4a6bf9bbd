package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"expensegroups/internal/cache"
	"expensegroups/internal/core"
)

// Service is the identity collaborator used by the web layer: sign-up,
// sign-in, sign-out and session lookup.
type Service struct {
	authenticator Authenticator
	tokens        *JWTManager
	revoked       *cache.ExpiringSet
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(authenticator Authenticator, tokens *JWTManager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		authenticator: authenticator,
		tokens:        tokens,
		revoked:       cache.NewExpiringSet(),
		logger:        logger,
		now:           time.Now,
	}
}

// RevokedTokens exposes the revocation cache so it can be registered for
// periodic cleanup.
func (s *Service) RevokedTokens() cache.Cleaner { return s.revoked }

// SignUp creates an identity. The caller is responsible for the profile
// record.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (core.Identity, error) {
	identity, err := s.authenticator.Register(ctx, email, displayName, password)
	if err != nil {
		return core.Identity{}, err
	}
	s.logger.InfoContext(ctx, "Identity registered", "user_id", identity.ID)
	return identity, nil
}

// SignIn checks the credentials and issues a session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, core.Identity, error) {
	identity, err := s.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		return "", core.Identity{}, err
	}
	token, err := s.tokens.Generate(identity)
	if err != nil {
		return "", core.Identity{}, fmt.Errorf("failed to issue session: %w", err)
	}
	s.logger.InfoContext(ctx, "User signed in", "user_id", identity.ID)
	return token, identity, nil
}

// SignOut revokes token until it would have expired anyway. Signing out an
// invalid token is a no-op.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil
	}
	if exp := claims.ExpiresAt.Time; exp.After(s.now()) {
		s.revoked.Add(claims.ID, exp)
	}
	s.logger.InfoContext(ctx, "User signed out", "user_id", claims.UserID)
	return nil
}

// CurrentUser resolves a session token to its identity.
func (s *Service) CurrentUser(_ context.Context, token string) (core.Identity, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return core.Identity{}, err
	}
	if s.revoked.Contains(claims.ID) {
		return core.Identity{}, ErrInvalidToken
	}
	return claims.Identity(), nil
}
