package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"expensegroups/internal/amqp"
	"expensegroups/internal/core"
	"expensegroups/internal/store"
)

// ExpenseService validates expense mutations, enforces who may see and
// change what, and assembles the dashboard.
type ExpenseService struct {
	expenses  store.ExpenseStore
	groups    store.GroupStore
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewExpenseService builds the service. publisher may be nil, in which case
// no events are emitted.
func NewExpenseService(expenses store.ExpenseStore, groups store.GroupStore, publisher EventPublisher, logger *slog.Logger) *ExpenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpenseService{
		expenses:  expenses,
		groups:    groups,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source used to date new expenses.
func (s *ExpenseService) WithClock(now func() time.Time) *ExpenseService {
	s.now = now
	return s
}

// NewExpense is the user input for an expense. The date is always the
// creation time.
type NewExpense struct {
	Description string
	Amount      string
}

// Add validates in, attaches it to the active group when one is given and
// stores it dated now. Nothing reaches the store when validation fails.
func (s *ExpenseService) Add(ctx context.Context, userID string, in NewExpense, active *core.Group) (core.Expense, error) {
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	// Stored dates carry millisecond precision; see core.Day.End.
	e := core.Expense{
		Description: strings.TrimSpace(in.Description),
		Amount:      amount,
		Date:        s.now().Truncate(time.Millisecond),
		Owner:       userID,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	if active != nil && active.ID != "" {
		g, err := s.groups.GetGroup(ctx, active.ID)
		if errors.Is(err, core.ErrNotFound) {
			return core.Expense{}, ErrStaleActiveGroup
		}
		if err != nil {
			return core.Expense{}, fmt.Errorf("failed to load active group: %w", err)
		}
		if !g.HasMember(userID) {
			return core.Expense{}, ErrStaleActiveGroup
		}
		e.GroupID = g.ID
	}

	id, err := s.expenses.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("failed to create expense: %w", err)
	}
	e.ID = id

	s.publish(ctx, amqp.EventExpenseCreated, e)
	return e, nil
}

// Update applies a validated patch to an expense the user may modify.
func (s *ExpenseService) Update(ctx context.Context, userID, id string, patch core.ExpensePatch) (core.Expense, error) {
	if err := patch.Validate(); err != nil {
		return core.Expense{}, err
	}
	e, err := s.authorize(ctx, userID, id)
	if err != nil {
		return core.Expense{}, err
	}
	if err := s.expenses.UpdateExpense(ctx, id, patch); err != nil {
		return core.Expense{}, fmt.Errorf("failed to update expense: %w", err)
	}
	updated := patch.Apply(e)

	s.publish(ctx, amqp.EventExpenseUpdated, updated)
	return updated, nil
}

// Delete removes an expense the user may modify.
func (s *ExpenseService) Delete(ctx context.Context, userID, id string) error {
	e, err := s.authorize(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.expenses.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	s.publish(ctx, amqp.EventExpenseDeleted, e)
	return nil
}

// authorize loads the expense and checks that userID owns it or belongs to
// its group.
func (s *ExpenseService) authorize(ctx context.Context, userID, id string) (core.Expense, error) {
	e, err := s.expenses.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("failed to load expense: %w", err)
	}
	if userID != "" && e.Owner == userID {
		return e, nil
	}
	if e.GroupID != "" {
		g, err := s.groups.GetGroup(ctx, e.GroupID)
		if err == nil && g.HasMember(userID) {
			return e, nil
		}
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return core.Expense{}, fmt.Errorf("failed to load expense group: %w", err)
		}
	}
	return core.Expense{}, core.ErrForbidden
}

// DashboardView is everything the expense dashboard renders.
type DashboardView struct {
	Expenses []core.Expense
	Summary  core.Summary
	MyGroups []core.Group
	// ActiveGroupStale is set when the filter names a group the user no
	// longer belongs to, or that no longer exists. Such a group is dropped
	// from the filter.
	ActiveGroupStale bool
}

// Dashboard lists the expenses visible to userID that match filter, in
// store order.
func (s *ExpenseService) Dashboard(ctx context.Context, userID string, filter core.ExpenseFilter) (DashboardView, error) {
	var (
		expenses []core.Expense
		groups   []core.Group
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = s.expenses.ListExpenses(gctx)
		if err != nil {
			return fmt.Errorf("failed to list expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		groups, err = s.groups.ListGroups(gctx)
		if err != nil {
			return fmt.Errorf("failed to list groups: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return DashboardView{}, err
	}

	mine := core.ListMyGroups(groups, userID)
	memberOf := core.MembershipIndex(mine)

	visible := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if core.VisibleTo(e, userID, memberOf) {
			visible = append(visible, e)
		}
	}

	stale := false
	if filter.ActiveGroup != nil && filter.ActiveGroup.ID != "" {
		if _, ok := memberOf[filter.ActiveGroup.ID]; !ok {
			stale = true
			filter.ActiveGroup = nil
		}
	}

	filtered := core.FilterExpenses(visible, filter)
	return DashboardView{
		Expenses:         filtered,
		Summary:          core.Summarize(filtered),
		MyGroups:         mine,
		ActiveGroupStale: stale,
	}, nil
}

// publish emits an event when a publisher is configured. Failures are
// logged; the mutation has already succeeded.
func (s *ExpenseService) publish(ctx context.Context, t amqp.EventType, e core.Expense) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(t, e, s.now())); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish expense event",
			"type", t,
			"expense_id", e.ID,
			"error", err)
	}
}
