package http

import (
	"errors"
	"net/http"

	"expensegroups/internal/activegroup"
	"expensegroups/internal/auth"
	"expensegroups/internal/core"
	applog "expensegroups/internal/log"
	"expensegroups/internal/services"
)

const groupsPath = "/groupDashboard"

type memberRow struct {
	ID      string
	Label   string
	IsOwner bool
	IsMe    bool
}

type groupRow struct {
	core.Group
	Members []memberRow
	IsOwner bool
	Active  bool
}

type groupPage struct {
	basePage
	Groups      []groupRow
	ActiveGroup string
}

func (s *Server) handleGroupDashboard(w http.ResponseWriter, r *http.Request) {
	s.renderGroups(w, r, http.StatusOK, "")
}

func (s *Server) renderGroups(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	ctx := r.Context()
	userID := auth.UserID(ctx)
	page := groupPage{basePage: s.base(r, "Groups"), ActiveGroup: noGroup}
	page.Error = errMsg

	groups, err := s.groups.ListMine(ctx, userID)
	if err != nil {
		applog.NewStructuredLogger(applog.FromContext(ctx)).
			LogError(ctx, "Failed to list groups", err, applog.ComponentGroup, applog.OpList, nil)
		s.render(w, r, status, "group_dashboard.html", page)
		return
	}

	active, hasActive := s.activeGroup(w, r)
	for _, g := range groups {
		row := groupRow{Group: g, IsOwner: g.Owner == userID}
		if hasActive && active.ID == g.ID {
			row.Active = true
			page.ActiveGroup = g.Name
		}
		for _, id := range g.Users {
			row.Members = append(row.Members, memberRow{
				ID:      id,
				Label:   s.memberLabel(r, id),
				IsOwner: id == g.Owner,
				IsMe:    id == userID,
			})
		}
		page.Groups = append(page.Groups, row)
	}
	s.render(w, r, status, "group_dashboard.html", page)
}

// memberLabel shows a member by name and email, falling back to the id
// when the profile cannot be read.
func (s *Server) memberLabel(r *http.Request, id string) string {
	u, err := s.accounts.Profile(r.Context(), id)
	if err != nil {
		return id
	}
	switch {
	case u.Name != "" && u.Email != "":
		return u.Name + " <" + u.Email + ">"
	case u.Email != "":
		return u.Email
	case u.Name != "":
		return u.Name
	}
	return id
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	g, err := s.groups.Create(ctx, auth.UserID(ctx), formValue(r, "name"))
	if err != nil {
		s.groupFailed(w, r, applog.OpCreate, err)
		return
	}
	s.groupChanged(r, applog.OpCreate, g.ID)
	http.Redirect(w, r, groupsPath, http.StatusSeeOther)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	id := formValue(r, "id")
	if err := s.groups.Delete(ctx, auth.UserID(ctx), id); err != nil {
		s.groupFailed(w, r, applog.OpDelete, err)
		return
	}
	if g, ok := s.activeGroup(w, r); ok && g.ID == id {
		activegroup.NewCookie(w, r, s.opts.CookieSecure).Clear()
	}
	s.groupChanged(r, applog.OpDelete, id)
	http.Redirect(w, r, groupsPath, http.StatusSeeOther)
}

func (s *Server) handleRenameGroup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	g, err := s.groups.Rename(ctx, auth.UserID(ctx), formValue(r, "id"), formValue(r, "name"))
	if err != nil {
		s.groupFailed(w, r, applog.OpUpdate, err)
		return
	}
	s.refreshActive(w, r, g)
	s.groupChanged(r, "rename", g.ID)
	http.Redirect(w, r, groupsPath, http.StatusSeeOther)
}

// handleSetActiveGroup stores the group as the browser's selection. Only
// groups the user belongs to can be selected.
func (s *Server) handleSetActiveGroup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	g, err := s.groups.Get(ctx, auth.UserID(ctx), formValue(r, "id"))
	if err != nil {
		s.groupFailed(w, r, "select", err)
		return
	}
	if err := activegroup.NewCookie(w, r, s.opts.CookieSecure).Set(g); err != nil {
		s.groupFailed(w, r, "select", err)
		return
	}
	http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
}

func (s *Server) handleClearActiveGroup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	activegroup.NewCookie(w, r, s.opts.CookieSecure).Clear()
	http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	g, err := s.groups.AddMember(ctx, auth.UserID(ctx), formValue(r, "id"), formValue(r, "email"))
	if err != nil {
		s.groupFailed(w, r, "add_member", err)
		return
	}
	s.refreshActive(w, r, g)
	s.groupChanged(r, "add_member", g.ID)
	http.Redirect(w, r, groupsPath, http.StatusSeeOther)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	userID := auth.UserID(ctx)
	g, err := s.groups.RemoveMember(ctx, userID, formValue(r, "id"), formValue(r, "member"))
	if err != nil {
		s.groupFailed(w, r, "remove_member", err)
		return
	}
	if g.HasMember(userID) {
		s.refreshActive(w, r, g)
	} else if active, ok := s.activeGroup(w, r); ok && active.ID == g.ID {
		activegroup.NewCookie(w, r, s.opts.CookieSecure).Clear()
	}
	s.groupChanged(r, "remove_member", g.ID)
	http.Redirect(w, r, groupsPath, http.StatusSeeOther)
}

// refreshActive rewrites the stored selection when it is the group that
// just changed.
func (s *Server) refreshActive(w http.ResponseWriter, r *http.Request, g core.Group) {
	if active, ok := s.activeGroup(w, r); ok && active.ID == g.ID {
		_ = activegroup.NewCookie(w, r, s.opts.CookieSecure).Set(g)
	}
}

func (s *Server) groupChanged(r *http.Request, op, groupID string) {
	s.metrics.GroupMutation(op)
	applog.FromContext(r.Context()).WithComponent(applog.ComponentGroup).InfoContext(r.Context(), "Group changed",
		applog.FieldOperation, op,
		applog.FieldGroupID, groupID,
		applog.FieldUserID, auth.UserID(r.Context()))
}

func (s *Server) groupFailed(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case services.IsValidation(err):
		s.renderGroups(w, r, http.StatusUnprocessableEntity, services.UserMessage(err))
	case errors.Is(err, core.ErrForbidden):
		s.renderGroups(w, r, http.StatusForbidden, "You are not allowed to change that group")
	default:
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Group request failed", err, applog.ComponentGroup, op, nil)
		http.Redirect(w, r, groupsPath, http.StatusSeeOther)
	}
}

// returnPath honours a posted "next" field when it names one of the
// dashboards.
func returnPath(r *http.Request) string {
	switch next := r.PostFormValue("next"); next {
	case dashboardPath, groupsPath, "/landingPage":
		return next
	}
	return groupsPath
}
