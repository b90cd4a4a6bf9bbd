// Package auth is the identity service: credential checks, signed session
// tokens and the request-context plumbing that carries the signed-in user.
package auth

import (
	"context"

	"expensegroups/internal/core"
)

// Authenticator verifies credentials. PasswordAuthenticator is the only
// implementation; the interface keeps Service independent of it.
type Authenticator interface {
	// Register creates an identity for email. Fails with ErrEmailExists when
	// the email is taken.
	Register(ctx context.Context, email, displayName, credential string) (core.Identity, error)

	// Authenticate returns the identity owning email when credential matches.
	Authenticate(ctx context.Context, email, credential string) (core.Identity, error)

	ValidateCredential(credential string) error
}
