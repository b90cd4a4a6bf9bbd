package google

import (
	"testing"
	"time"

	"expensegroups/internal/core"
)

func TestExpenseRow(t *testing.T) {
	rome, _ := time.LoadLocation("Europe/Rome")
	e := core.Expense{
		ID:          "e1",
		Description: "Dinner",
		Amount:      core.Money{Cents: 4250},
		Date:        time.Date(2024, 3, 1, 21, 30, 0, 0, rome),
		Owner:       "u1",
		GroupID:     "g1",
	}
	row := expenseRow(e)
	want := []any{"e1", "2024-03-01 20:30:00", "Dinner", 42.5, "g1", "u1"}
	if len(row) != len(want) {
		t.Fatalf("row has %d columns, want %d", len(row), len(want))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %d = %v, want %v", i, row[i], want[i])
		}
	}
}

func TestFindRow(t *testing.T) {
	values := [][]any{
		{"ID"},
		{"e1"},
		{},
		{" e2 "},
	}
	tests := []struct {
		id   string
		want int
	}{
		{"e1", 2},
		{"e2", 4},
		{"missing", 0},
		{"ID", 1},
	}
	for _, tt := range tests {
		if got := findRow(values, tt.id); got != tt.want {
			t.Errorf("findRow(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestRanges(t *testing.T) {
	if got := rowRange("Expenses", 3); got != "Expenses!A3:F3" {
		t.Errorf("rowRange = %q", got)
	}
	if got := rowRange("2024 Expenses", 7); got != "'2024 Expenses'!A7:F7" {
		t.Errorf("rowRange with space = %q", got)
	}
	if got := quoteSheet("Bob's"); got != "'Bob''s'" {
		t.Errorf("quoteSheet = %q", got)
	}
}
