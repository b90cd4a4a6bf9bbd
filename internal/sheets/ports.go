// Package sheets defines the outbound port used to mirror expenses into a
// spreadsheet.
package sheets

import (
	"context"

	"expensegroups/internal/core"
)

// Exporter keeps one spreadsheet row per expense, keyed by expense id.
// Both operations are idempotent so redelivered events are harmless.
type Exporter interface {
	// Upsert writes the expense, replacing any existing row with its id.
	Upsert(ctx context.Context, e core.Expense) error
	// Remove deletes the row for id. A missing row is not an error.
	Remove(ctx context.Context, id string) error
}

// Header is the first row of an export sheet.
var Header = []string{"ID", "Date", "Description", "Amount", "Group", "Owner"}
