package core

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidDay = errors.New("invalid day")

const dayLayout = "2006-01-02"

// Day is a calendar date without a time of day or zone.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDay parses a YYYY-MM-DD date as submitted by an HTML date input.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("%w: %q", ErrInvalidDay, s)
	}
	return DayOf(t), nil
}

// DayOf returns the calendar date of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Start returns 00:00:00.000 of the day in loc.
func (d Day) Start(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, orUTC(loc))
}

// End returns 23:59:59.999 of the day in loc. Expense dates are stamped at
// millisecond precision, so this is the last instant an expense can carry.
func (d Day) End(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 23, 59, 59, int(999*time.Millisecond), orUTC(loc))
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// ExpenseFilter narrows a dashboard listing. Every criterion is optional;
// an absent one admits everything.
type ExpenseFilter struct {
	Start       *Day
	End         *Day
	Location    *time.Location
	ActiveGroup *Group
}

// Matches reports whether e passes every criterion of f.
//
// An expense without a group always passes the group criterion, so personal
// expenses stay visible while a group is selected.
func (f ExpenseFilter) Matches(e Expense) bool {
	if f.Start != nil && e.Date.Before(f.Start.Start(f.Location)) {
		return false
	}
	if f.End != nil && e.Date.After(f.End.End(f.Location)) {
		return false
	}
	if f.ActiveGroup != nil && f.ActiveGroup.ID != "" && e.GroupID != "" {
		return e.GroupID == f.ActiveGroup.ID
	}
	return true
}

// FilterExpenses returns the expenses matching f in their original order.
// The input slice is never modified.
func FilterExpenses(expenses []Expense, f ExpenseFilter) []Expense {
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// VisibleTo reports whether userID may see e. Owners always see their own
// expenses; grouped expenses are also visible to members of the group.
// Legacy expenses without an owner are visible only through their group.
func VisibleTo(e Expense, userID string, memberOf map[string]struct{}) bool {
	if userID == "" {
		return false
	}
	if e.Owner != "" && e.Owner == userID {
		return true
	}
	if e.GroupID == "" {
		return false
	}
	_, ok := memberOf[e.GroupID]
	return ok
}

type Summary struct {
	Count int
	Total Money
}

// Summarize totals the given expenses.
func Summarize(expenses []Expense) Summary {
	s := Summary{Count: len(expenses)}
	for _, e := range expenses {
		s.Total.Cents += e.Amount.Cents
	}
	return s
}
