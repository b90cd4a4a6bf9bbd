package core

import (
	"errors"
	"slices"
	"strings"
	"time"
)

const maxDescriptionLen = 200

type (
	// Expense is a single monetary record. ID is assigned by the store and
	// never parsed. Owner is empty for legacy records; GroupID is empty for
	// personal expenses.
	Expense struct {
		ID          string    `json:"id"`
		Description string    `json:"description"`
		Amount      Money     `json:"amount"`
		Date        time.Time `json:"date"`
		Owner       string    `json:"owner,omitempty"`
		GroupID     string    `json:"groupId,omitempty"`
	}

	// ExpensePatch carries the editable fields of an expense. Nil fields are
	// left untouched.
	ExpensePatch struct {
		Description *string
		Amount      *Money
	}

	// Group is a named set of users sharing visibility into expenses.
	Group struct {
		ID    string   `json:"id"`
		Owner string   `json:"owner"`
		Name  string   `json:"name"`
		Users []string `json:"users"`
	}

	// GroupPatch renames a group and/or replaces its member list. A nil
	// Users slice means "unchanged".
	GroupPatch struct {
		Name  *string
		Users []string
	}

	// User is the profile record stored under the identity's id.
	User struct {
		ID     string   `json:"id"`
		Email  string   `json:"email"`
		Name   string   `json:"name"`
		Groups []string `json:"groups"`
	}

	UserPatch struct {
		Email  *string
		Name   *string
		Groups []string
	}

	// Identity is what the identity service knows about a signed-in user.
	Identity struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyGroupName     = errors.New("empty group name")
	ErrMissingOwner       = errors.New("missing owner")
	ErrOwnerNotMember     = errors.New("group owner must be a member")
	ErrEmptyPatch         = errors.New("nothing to update")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
)

func validateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

func (e Expense) Validate() error {
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Description == nil && p.Amount == nil
}

// Validate applies the creation rules to every field present in the patch.
func (p ExpensePatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.Description != nil {
		if err := validateDescription(*p.Description); err != nil {
			return err
		}
	}
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns e with the patch fields applied.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Description != nil {
		e.Description = strings.TrimSpace(*p.Description)
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	return e
}

// NewGroup returns a group owned by owner with the owner as its only member.
func NewGroup(owner, name string) Group {
	return Group{
		Owner: owner,
		Name:  strings.TrimSpace(name),
		Users: []string{owner},
	}
}

func (g Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyGroupName
	}
	if g.Owner == "" {
		return ErrMissingOwner
	}
	if !g.HasMember(g.Owner) {
		return ErrOwnerNotMember
	}
	return nil
}

// HasMember reports whether userID is in the group's user set.
func (g Group) HasMember(userID string) bool {
	return userID != "" && slices.Contains(g.Users, userID)
}

func (p GroupPatch) IsEmpty() bool {
	return p.Name == nil && p.Users == nil
}

// Apply returns g with the patch applied. The resulting user set is
// de-duplicated and must still contain the owner.
func (p GroupPatch) Apply(g Group) (Group, error) {
	if p.IsEmpty() {
		return g, ErrEmptyPatch
	}
	if p.Name != nil {
		g.Name = strings.TrimSpace(*p.Name)
	}
	if p.Users != nil {
		g.Users = dedupe(p.Users)
	}
	if err := g.Validate(); err != nil {
		return g, err
	}
	return g, nil
}

func (p UserPatch) IsEmpty() bool {
	return p.Email == nil && p.Name == nil && p.Groups == nil
}

// Apply returns u with the patch applied.
func (p UserPatch) Apply(u User) User {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Groups != nil {
		u.Groups = dedupe(p.Groups)
	}
	return u
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
