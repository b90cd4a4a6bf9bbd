package http

import (
	"errors"
	"net/http"

	"expensegroups/internal/auth"
	"expensegroups/internal/core"
	applog "expensegroups/internal/log"
	"expensegroups/internal/services"
)

const dashboardPath = "/expenseDashboard"

// postedFilter recovers the range the dashboard was showing from the
// hidden start and end fields. A malformed range is dropped.
func postedFilter(r *http.Request) FilterParams {
	p, err := ParseFilterParams(r.PostForm)
	if err != nil {
		return FilterParams{}
	}
	return p
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	userID := auth.UserID(ctx)
	params := postedFilter(r)
	form := expenseForm{
		Description: formValue(r, "description"),
		Amount:      formValue(r, "amount"),
	}

	var active *core.Group
	if g, ok := s.activeGroup(w, r); ok {
		active = &g
	}
	e, err := s.expenses.Add(ctx, userID, ParseNewExpense(r.PostForm), active)
	if err != nil {
		s.expenseFailed(w, r, params, form, applog.OpCreate, err)
		return
	}

	s.metrics.ExpenseMutation(applog.OpCreate)
	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogExpenseMutation(ctx, applog.OpCreate, userID, e.ID, e.Amount.Cents, e.GroupID)
	seeOther(w, r, dashboardPath, params.Query())
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	userID := auth.UserID(ctx)
	params := postedFilter(r)
	id := formValue(r, "id")

	patch, err := ParseExpensePatch(r.PostForm)
	var e core.Expense
	if err == nil {
		e, err = s.expenses.Update(ctx, userID, id, patch)
	}
	if err != nil {
		s.expenseFailed(w, r, params, expenseForm{}, applog.OpUpdate, err)
		return
	}

	s.metrics.ExpenseMutation(applog.OpUpdate)
	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogExpenseMutation(ctx, applog.OpUpdate, userID, e.ID, e.Amount.Cents, e.GroupID)
	seeOther(w, r, dashboardPath, params.Query())
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	userID := auth.UserID(ctx)
	params := postedFilter(r)
	id := formValue(r, "id")

	if err := s.expenses.Delete(ctx, userID, id); err != nil {
		s.expenseFailed(w, r, params, expenseForm{}, applog.OpDelete, err)
		return
	}

	s.metrics.ExpenseMutation(applog.OpDelete)
	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogExpenseMutation(ctx, applog.OpDelete, userID, id, 0, "")
	seeOther(w, r, dashboardPath, params.Query())
}

// expenseFailed shows validation and permission problems next to the form.
// Anything else is logged and the browser goes back to the unchanged list.
func (s *Server) expenseFailed(w http.ResponseWriter, r *http.Request, params FilterParams, form expenseForm, op string, err error) {
	switch {
	case services.IsValidation(err):
		s.renderDashboard(w, r, http.StatusUnprocessableEntity, params, services.UserMessage(err), form)
	case errors.Is(err, core.ErrForbidden):
		s.renderDashboard(w, r, http.StatusForbidden, params, "You cannot change that expense", form)
	default:
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Expense request failed", err, applog.ComponentExpense, op, nil)
		seeOther(w, r, dashboardPath, params.Query())
	}
}
