package google

import (
	"fmt"
	"strings"

	"expensegroups/internal/core"
	ports "expensegroups/internal/sheets"
)

const dateLayout = "2006-01-02 15:04:05"

// expenseRow renders e in the column order of ports.Header. Dates are
// written in UTC so rows from different servers sort consistently.
func expenseRow(e core.Expense) []any {
	return []any{
		e.ID,
		e.Date.UTC().Format(dateLayout),
		e.Description,
		e.Amount.Decimal().InexactFloat64(),
		e.GroupID,
		e.Owner,
	}
}

func headerRow() []any {
	out := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		out[i] = h
	}
	return out
}

// findRow returns the 1-based sheet row whose first column equals id, or 0.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

// rowRange returns the A1 range covering one full row.
func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", quoteSheet(sheet), row, lastColumn(), row)
}

func lastColumn() string {
	return string(rune('A' + len(ports.Header) - 1))
}

// quoteSheet wraps names containing spaces or quotes as A1 notation needs.
func quoteSheet(name string) string {
	if strings.ContainsAny(name, " '!") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}
