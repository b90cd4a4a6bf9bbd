package http

import (
	"net/http"

	"expensegroups/internal/auth"
	"expensegroups/internal/core"
	applog "expensegroups/internal/log"
)

type meResponse struct {
	core.Identity
	Name   string   `json:"name,omitempty"`
	Groups []string `json:"groups"`
}

func (s *Server) handleAPIMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := auth.IdentityFromContext(ctx)
	resp := meResponse{Identity: id, Groups: []string{}}
	if u, err := s.accounts.Profile(ctx, id.ID); err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentAuth).WarnContext(ctx, "Profile unavailable",
			applog.FieldUserID, id.ID,
			"error", err)
	} else {
		resp.Name = u.Name
		if u.Groups != nil {
			resp.Groups = u.Groups
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type summaryResponse struct {
	Count int        `json:"count"`
	Total core.Money `json:"total"`
}

type expensesResponse struct {
	Expenses         []core.Expense  `json:"expenses"`
	Summary          summaryResponse `json:"summary"`
	ActiveGroup      *core.Group     `json:"activeGroup,omitempty"`
	ActiveGroupStale bool            `json:"activeGroupStale,omitempty"`
}

// handleAPIExpenses returns the same scoped, filtered list as the
// dashboard.
func (s *Server) handleAPIExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params, err := ParseFilterParams(r.URL.Query())
	if err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, "start and end must be YYYY-MM-DD")
		return
	}
	var active *core.Group
	if g, ok := s.activeGroup(w, r); ok {
		active = &g
	}

	view, err := s.expenses.Dashboard(ctx, auth.UserID(ctx), params.Filter(s.opts.Location, active))
	if err != nil {
		applog.NewStructuredLogger(applog.FromContext(ctx)).
			LogError(ctx, "Failed to list expenses", err, applog.ComponentExpense, applog.OpList, nil)
		writeJSONError(w, errorStatus(err), "could not load expenses")
		return
	}
	if view.ActiveGroupStale {
		active = nil
	}
	writeJSON(w, http.StatusOK, expensesResponse{
		Expenses:         view.Expenses,
		Summary:          summaryResponse{Count: view.Summary.Count, Total: view.Summary.Total},
		ActiveGroup:      active,
		ActiveGroupStale: view.ActiveGroupStale,
	})
}

func (s *Server) handleAPIGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groups, err := s.groups.ListMine(ctx, auth.UserID(ctx))
	if err != nil {
		applog.NewStructuredLogger(applog.FromContext(ctx)).
			LogError(ctx, "Failed to list groups", err, applog.ComponentGroup, applog.OpList, nil)
		writeJSONError(w, errorStatus(err), "could not load groups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}
