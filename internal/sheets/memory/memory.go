// Package memory is an in-process Exporter that keeps rows in memory. The
// export worker uses it for dry runs.
package memory

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"expensegroups/internal/core"
	ports "expensegroups/internal/sheets"
)

type Recorder struct {
	mu     sync.Mutex
	rows   map[string]core.Expense
	order  []string
	logger *slog.Logger
}

var _ ports.Exporter = (*Recorder)(nil)

// New returns an empty recorder. Each change is logged at info level when
// logger is non-nil.
func New(logger *slog.Logger) *Recorder {
	return &Recorder{rows: make(map[string]core.Expense), logger: logger}
}

func (r *Recorder) Upsert(ctx context.Context, e core.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[e.ID]; !ok {
		r.order = append(r.order, e.ID)
	}
	r.rows[e.ID] = e
	if r.logger != nil {
		r.logger.InfoContext(ctx, "Exported expense row",
			"expense_id", e.ID,
			"amount", e.Amount.String(),
			"group_id", e.GroupID)
	}
	return nil
}

func (r *Recorder) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return nil
	}
	delete(r.rows, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })
	if r.logger != nil {
		r.logger.InfoContext(ctx, "Removed expense row", "expense_id", id)
	}
	return nil
}

// Rows returns the exported expenses in first-write order.
func (r *Recorder) Rows() []core.Expense {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Expense, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.rows[id])
	}
	return out
}
