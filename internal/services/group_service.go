package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"expensegroups/internal/core"
	"expensegroups/internal/store"
)

// GroupService manages groups and keeps each member's User.Groups list in
// step with the group's user set. The user-side bookkeeping is best effort:
// a failure there is logged and does not undo the group change.
type GroupService struct {
	groups store.GroupStore
	users  store.UserStore
	logger *slog.Logger

	onUserChanged func(userID string)
}

func NewGroupService(groups store.GroupStore, users store.UserStore, logger *slog.Logger) *GroupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupService{
		groups:        groups,
		users:         users,
		logger:        logger,
		onUserChanged: func(string) {},
	}
}

// OnUserChanged registers a callback run after a user's group list changes.
func (s *GroupService) OnUserChanged(fn func(userID string)) {
	if fn != nil {
		s.onUserChanged = fn
	}
}

// Create makes userID the owner and first member of a new group and appends
// the new group id to the creator's group list.
func (s *GroupService) Create(ctx context.Context, userID, name string) (core.Group, error) {
	g := core.NewGroup(userID, name)
	if err := g.Validate(); err != nil {
		return core.Group{}, err
	}
	id, err := s.groups.CreateGroup(ctx, g)
	if err != nil {
		return core.Group{}, fmt.Errorf("failed to create group: %w", err)
	}
	g.ID = id

	s.linkUser(ctx, userID, id)
	s.logger.InfoContext(ctx, "Group created", "group_id", id, "user_id", userID)
	return g, nil
}

// ListMine returns the groups userID belongs to.
func (s *GroupService) ListMine(ctx context.Context, userID string) ([]core.Group, error) {
	all, err := s.groups.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return core.ListMyGroups(all, userID), nil
}

// Get returns the group if userID is a member.
func (s *GroupService) Get(ctx context.Context, userID, id string) (core.Group, error) {
	g, err := s.groups.GetGroup(ctx, id)
	if err != nil {
		return core.Group{}, fmt.Errorf("failed to load group: %w", err)
	}
	if !g.HasMember(userID) {
		return core.Group{}, core.ErrForbidden
	}
	return g, nil
}

func (s *GroupService) ownedGroup(ctx context.Context, userID, id string) (core.Group, error) {
	g, err := s.Get(ctx, userID, id)
	if err != nil {
		return core.Group{}, err
	}
	if g.Owner != userID {
		return core.Group{}, core.ErrForbidden
	}
	return g, nil
}

// Rename changes the group name. Any member may rename.
func (s *GroupService) Rename(ctx context.Context, userID, id, name string) (core.Group, error) {
	g, err := s.Get(ctx, userID, id)
	if err != nil {
		return core.Group{}, err
	}
	name = strings.TrimSpace(name)
	patch := core.GroupPatch{Name: &name}
	updated, err := patch.Apply(g)
	if err != nil {
		return core.Group{}, err
	}
	if err := s.groups.UpdateGroup(ctx, id, patch); err != nil {
		return core.Group{}, fmt.Errorf("failed to rename group: %w", err)
	}
	return updated, nil
}

// AddMember adds the user registered under email. Only the owner may add.
func (s *GroupService) AddMember(ctx context.Context, userID, id, email string) (core.Group, error) {
	g, err := s.ownedGroup(ctx, userID, id)
	if err != nil {
		return core.Group{}, err
	}
	member, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, core.ErrNotFound) {
		return core.Group{}, ErrUnknownUser
	}
	if err != nil {
		return core.Group{}, fmt.Errorf("failed to look up user: %w", err)
	}
	if g.HasMember(member.ID) {
		return core.Group{}, ErrAlreadyMember
	}

	patch := core.GroupPatch{Users: append(slices.Clone(g.Users), member.ID)}
	updated, err := patch.Apply(g)
	if err != nil {
		return core.Group{}, err
	}
	if err := s.groups.UpdateGroup(ctx, id, patch); err != nil {
		return core.Group{}, fmt.Errorf("failed to add member: %w", err)
	}

	s.linkUser(ctx, member.ID, id)
	return updated, nil
}

// RemoveMember removes memberID. The owner may remove anyone but
// themselves; other members may only remove themselves.
func (s *GroupService) RemoveMember(ctx context.Context, userID, id, memberID string) (core.Group, error) {
	g, err := s.Get(ctx, userID, id)
	if err != nil {
		return core.Group{}, err
	}
	if memberID == g.Owner {
		return core.Group{}, ErrCannotRemoveOwner
	}
	if userID != g.Owner && userID != memberID {
		return core.Group{}, core.ErrForbidden
	}
	if !g.HasMember(memberID) {
		return g, nil
	}

	users := slices.DeleteFunc(slices.Clone(g.Users), func(u string) bool { return u == memberID })
	patch := core.GroupPatch{Users: users}
	updated, err := patch.Apply(g)
	if err != nil {
		return core.Group{}, err
	}
	if err := s.groups.UpdateGroup(ctx, id, patch); err != nil {
		return core.Group{}, fmt.Errorf("failed to remove member: %w", err)
	}

	s.unlinkUser(ctx, memberID, id)
	return updated, nil
}

// Delete removes the group. Only the owner may delete. Expenses that
// referenced it stay and become visible only to their owners.
func (s *GroupService) Delete(ctx context.Context, userID, id string) error {
	g, err := s.ownedGroup(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.groups.DeleteGroup(ctx, id); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	for _, member := range g.Users {
		s.unlinkUser(ctx, member, id)
	}
	s.logger.InfoContext(ctx, "Group deleted", "group_id", id, "user_id", userID)
	return nil
}

func (s *GroupService) linkUser(ctx context.Context, userID, groupID string) {
	s.updateUserGroups(ctx, userID, func(groups []string) []string {
		if slices.Contains(groups, groupID) {
			return groups
		}
		return append(groups, groupID)
	})
}

func (s *GroupService) unlinkUser(ctx context.Context, userID, groupID string) {
	s.updateUserGroups(ctx, userID, func(groups []string) []string {
		return slices.DeleteFunc(groups, func(g string) bool { return g == groupID })
	})
}

func (s *GroupService) updateUserGroups(ctx context.Context, userID string, change func([]string) []string) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load user for group bookkeeping", "user_id", userID, "error", err)
		return
	}
	groups := change(slices.Clone(u.Groups))
	if groups == nil {
		groups = []string{}
	}
	if err := s.users.UpdateUser(ctx, userID, core.UserPatch{Groups: groups}); err != nil {
		s.logger.WarnContext(ctx, "Failed to update user groups", "user_id", userID, "error", err)
		return
	}
	s.onUserChanged(userID)
}
