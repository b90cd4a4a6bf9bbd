package store

import (
	"errors"
	"fmt"

	"expensegroups/internal/core"
)

// ErrDuplicate is returned when a unique key (credential email) is taken.
var ErrDuplicate = errors.New("duplicate record")

// NotFound wraps core.ErrNotFound with the kind and id of the missing record.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, core.ErrNotFound)
}
