// Package store declares the persistence ports used by the services. The
// in-memory and SQLite backends both implement Backend.
package store

import (
	"context"
	"time"

	"expensegroups/internal/core"
)

type (
	// ExpenseStore persists expense records. Identifiers are assigned by the
	// implementation and are opaque to callers.
	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) (string, error)
		ListExpenses(ctx context.Context) ([]core.Expense, error)
		GetExpense(ctx context.Context, id string) (core.Expense, error)
		UpdateExpense(ctx context.Context, id string, patch core.ExpensePatch) error
		DeleteExpense(ctx context.Context, id string) error
	}

	GroupStore interface {
		CreateGroup(ctx context.Context, g core.Group) (string, error)
		ListGroups(ctx context.Context) ([]core.Group, error)
		GetGroup(ctx context.Context, id string) (core.Group, error)
		UpdateGroup(ctx context.Context, id string, patch core.GroupPatch) error
		DeleteGroup(ctx context.Context, id string) error
	}

	// UserStore keeps profile records keyed by the identity id.
	UserStore interface {
		CreateUser(ctx context.Context, u core.User, id string) error
		GetUser(ctx context.Context, id string) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		UpdateUser(ctx context.Context, id string, patch core.UserPatch) error
	}

	// CredentialStore is the identity side: one password hash per email.
	CredentialStore interface {
		CreateCredential(ctx context.Context, c Credential) error
		GetCredentialByEmail(ctx context.Context, email string) (Credential, error)
		GetCredential(ctx context.Context, id string) (Credential, error)
	}

	Backend interface {
		ExpenseStore
		GroupStore
		UserStore
		CredentialStore
		Close() error
	}
)

// Credential binds an identity to its password hash.
type Credential struct {
	Identity     core.Identity
	PasswordHash []byte
	CreatedAt    time.Time
}
