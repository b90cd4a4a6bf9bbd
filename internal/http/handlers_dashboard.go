package http

import (
	"errors"
	"net/http"

	"expensegroups/internal/activegroup"
	"expensegroups/internal/auth"
	"expensegroups/internal/core"
	applog "expensegroups/internal/log"
)

const noGroup = "None"

type landingPage struct {
	basePage
	ActiveGroup      string
	ActiveGroupStale bool
}

// handleLanding shows the selected group by its current name. A selection
// the user may no longer see is shown as None.
func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := landingPage{basePage: s.base(r, "Welcome"), ActiveGroup: noGroup}
	if selected, ok := s.activeGroup(w, r); ok {
		g, err := s.groups.Get(ctx, auth.UserID(ctx), selected.ID)
		switch {
		case err == nil:
			page.ActiveGroup = g.Name
		case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrForbidden):
			page.ActiveGroupStale = true
		default:
			applog.NewStructuredLogger(applog.FromContext(ctx)).
				LogError(ctx, "Failed to load active group", err, applog.ComponentGroup, applog.OpRead, nil)
			page.ActiveGroup = selected.Name
		}
	}
	s.render(w, r, http.StatusOK, "landing.html", page)
}

// expenseRow is one line of the dashboard table.
type expenseRow struct {
	core.Expense
	DateLabel string
	GroupName string
	Mine      bool
}

// expenseForm echoes the add-expense form back after a validation failure.
type expenseForm struct {
	Description string
	Amount      string
}

type dashboardPage struct {
	basePage
	Filter           FilterParams
	Expenses         []expenseRow
	Summary          core.Summary
	Groups           []core.Group
	ActiveGroup      string
	ActiveGroupID    string
	ActiveGroupStale bool
	Form             expenseForm
}

func (s *Server) handleExpenseDashboard(w http.ResponseWriter, r *http.Request) {
	params, err := ParseFilterParams(r.URL.Query())
	if err != nil {
		s.renderDashboard(w, r, http.StatusUnprocessableEntity, FilterParams{}, "Dates must be in YYYY-MM-DD format", expenseForm{})
		return
	}
	s.renderDashboard(w, r, http.StatusOK, params, "", expenseForm{})
}

// activeGroup reads the browser's selected group. The record is whatever
// was stored at selection time.
func (s *Server) activeGroup(w http.ResponseWriter, r *http.Request) (core.Group, bool) {
	g, ok := activegroup.NewCookie(w, r, s.opts.CookieSecure).Get()
	if !ok || g.ID == "" {
		return core.Group{}, false
	}
	return g, true
}

// renderDashboard loads the scoped, filtered list and renders it. A load
// failure is logged and the page shows an empty list.
func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, status int, params FilterParams, errMsg string, form expenseForm) {
	ctx := r.Context()
	page := dashboardPage{
		basePage:    s.base(r, "Expenses"),
		Filter:      params,
		ActiveGroup: noGroup,
		Form:        form,
	}
	page.Error = errMsg

	var active *core.Group
	if g, ok := s.activeGroup(w, r); ok {
		active = &g
		page.ActiveGroup = g.Name
		page.ActiveGroupID = g.ID
	}

	view, err := s.expenses.Dashboard(ctx, auth.UserID(ctx), params.Filter(s.opts.Location, active))
	if err != nil {
		applog.NewStructuredLogger(applog.FromContext(ctx)).
			LogError(ctx, "Failed to load dashboard", err, applog.ComponentExpense, applog.OpList, nil)
		s.render(w, r, status, "expense_dashboard.html", page)
		return
	}

	if view.ActiveGroupStale {
		page.ActiveGroup = noGroup
		page.ActiveGroupStale = true
	}
	page.Groups = view.MyGroups
	page.Summary = view.Summary
	page.Expenses = s.expenseRows(view.Expenses, view.MyGroups, auth.UserID(ctx))
	s.render(w, r, status, "expense_dashboard.html", page)
}

func (s *Server) expenseRows(expenses []core.Expense, groups []core.Group, userID string) []expenseRow {
	names := make(map[string]string, len(groups))
	for _, g := range groups {
		names[g.ID] = g.Name
	}
	rows := make([]expenseRow, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, expenseRow{
			Expense:   e,
			DateLabel: e.Date.In(s.opts.Location).Format("2006-01-02 15:04"),
			GroupName: names[e.GroupID],
			Mine:      e.Owner == userID,
		})
	}
	return rows
}
