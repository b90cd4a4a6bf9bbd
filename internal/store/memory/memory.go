// Package memory is an in-process store.Backend. Data lives for the life of
// the process; lists come back in insertion order.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"expensegroups/internal/core"
	"expensegroups/internal/store"
)

type Store struct {
	mu sync.Mutex

	expenses     map[string]core.Expense
	expenseOrder []string

	groups     map[string]core.Group
	groupOrder []string

	users map[string]core.User

	credentials map[string]store.Credential // keyed by lower-cased email
	credByID    map[string]string           // id -> email key

	newID func() string
}

var _ store.Backend = (*Store)(nil)

func New() *Store {
	return &Store{
		expenses:    map[string]core.Expense{},
		groups:      map[string]core.Group{},
		users:       map[string]core.User{},
		credentials: map[string]store.Credential{},
		credByID:    map[string]string{},
		newID:       uuid.NewString,
	}
}

func (s *Store) Close() error { return nil }

// Expenses

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	e.ID = id
	s.expenses[id] = e
	s.expenseOrder = append(s.expenseOrder, id)
	return id, nil
}

func (s *Store) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0, len(s.expenseOrder))
	for _, id := range s.expenseOrder {
		out = append(out, s.expenses[id])
	}
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, store.NotFound("expense", id)
	}
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, id string, patch core.ExpensePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return store.NotFound("expense", id)
	}
	s.expenses[id] = patch.Apply(e)
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[id]; !ok {
		return store.NotFound("expense", id)
	}
	delete(s.expenses, id)
	s.expenseOrder = slices.DeleteFunc(s.expenseOrder, func(v string) bool { return v == id })
	return nil
}

// Groups

func (s *Store) CreateGroup(_ context.Context, g core.Group) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	g.ID = id
	g.Users = slices.Clone(g.Users)
	s.groups[id] = g
	s.groupOrder = append(s.groupOrder, id)
	return id, nil
}

func (s *Store) ListGroups(_ context.Context) ([]core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Group, 0, len(s.groupOrder))
	for _, id := range s.groupOrder {
		g := s.groups[id]
		g.Users = slices.Clone(g.Users)
		out = append(out, g)
	}
	return out, nil
}

func (s *Store) GetGroup(_ context.Context, id string) (core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return core.Group{}, store.NotFound("group", id)
	}
	g.Users = slices.Clone(g.Users)
	return g, nil
}

func (s *Store) UpdateGroup(_ context.Context, id string, patch core.GroupPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return store.NotFound("group", id)
	}
	updated, err := patch.Apply(g)
	if err != nil {
		return err
	}
	s.groups[id] = updated
	return nil
}

func (s *Store) DeleteGroup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return store.NotFound("group", id)
	}
	delete(s.groups, id)
	s.groupOrder = slices.DeleteFunc(s.groupOrder, func(v string) bool { return v == id })
	return nil
}

// Users

func (s *Store) CreateUser(_ context.Context, u core.User, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = id
	u.Groups = slices.Clone(u.Groups)
	if u.Groups == nil {
		u.Groups = []string{}
	}
	s.users[id] = u
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, store.NotFound("user", id)
	}
	u.Groups = slices.Clone(u.Groups)
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			u.Groups = slices.Clone(u.Groups)
			return u, nil
		}
	}
	return core.User{}, store.NotFound("user", email)
}

func (s *Store) UpdateUser(_ context.Context, id string, patch core.UserPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.NotFound("user", id)
	}
	s.users[id] = patch.Apply(u)
	return nil
}

// Credentials

func (s *Store) CreateCredential(_ context.Context, c store.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(c.Identity.Email)
	if _, ok := s.credentials[key]; ok {
		return store.ErrDuplicate
	}
	c.PasswordHash = slices.Clone(c.PasswordHash)
	s.credentials[key] = c
	s.credByID[c.Identity.ID] = key
	return nil
}

func (s *Store) GetCredentialByEmail(_ context.Context, email string) (store.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[strings.ToLower(email)]
	if !ok {
		return store.Credential{}, store.NotFound("credential", email)
	}
	return c, nil
}

func (s *Store) GetCredential(_ context.Context, id string) (store.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.credByID[id]
	if !ok {
		return store.Credential{}, store.NotFound("credential", id)
	}
	return s.credentials[key], nil
}
