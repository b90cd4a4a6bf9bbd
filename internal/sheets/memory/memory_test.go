package memory

import (
	"context"
	"testing"

	"expensegroups/internal/core"
)

func TestRecorderUpsertAndRemove(t *testing.T) {
	ctx := context.Background()
	r := New(nil)

	r.Upsert(ctx, core.Expense{ID: "a", Description: "first", Amount: core.Money{Cents: 100}})
	r.Upsert(ctx, core.Expense{ID: "b", Description: "second", Amount: core.Money{Cents: 200}})
	r.Upsert(ctx, core.Expense{ID: "a", Description: "first, edited", Amount: core.Money{Cents: 150}})

	rows := r.Rows()
	if len(rows) != 2 || rows[0].ID != "a" || rows[1].ID != "b" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[0].Description != "first, edited" || rows[0].Amount.Cents != 150 {
		t.Fatalf("upsert did not replace row: %+v", rows[0])
	}

	if err := r.Remove(ctx, "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := r.Remove(ctx, "a"); err != nil {
		t.Fatalf("second remove should be a no-op, got %v", err)
	}
	if rows := r.Rows(); len(rows) != 1 || rows[0].ID != "b" {
		t.Fatalf("unexpected rows after remove: %+v", rows)
	}
}
