// Package http serves the server-rendered UI, the JSON API and the
// operational endpoints.
//
// This file holds the form and query parsing shared by the handlers.
package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"expensegroups/internal/core"
	"expensegroups/internal/services"
)

// FilterParams is the optional date range of a dashboard request.
type FilterParams struct {
	Start *core.Day
	End   *core.Day
}

// ParseFilterParams reads start and end (YYYY-MM-DD). Empty values mean
// "unbounded"; malformed ones are an error wrapping core.ErrInvalidDay.
func ParseFilterParams(values url.Values) (FilterParams, error) {
	var p FilterParams
	for _, f := range []struct {
		key string
		dst **core.Day
	}{{"start", &p.Start}, {"end", &p.End}} {
		v := strings.TrimSpace(values.Get(f.key))
		if v == "" {
			continue
		}
		d, err := core.ParseDay(v)
		if err != nil {
			return FilterParams{}, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = &d
	}
	return p, nil
}

// Filter builds the dashboard filter for the given zone and active group.
func (p FilterParams) Filter(loc *time.Location, active *core.Group) core.ExpenseFilter {
	return core.ExpenseFilter{Start: p.Start, End: p.End, Location: loc, ActiveGroup: active}
}

func (p FilterParams) StartValue() string { return dayValue(p.Start) }
func (p FilterParams) EndValue() string   { return dayValue(p.End) }

// Query renders the range back into query parameters.
func (p FilterParams) Query() url.Values {
	q := url.Values{}
	if p.Start != nil {
		q.Set("start", p.Start.String())
	}
	if p.End != nil {
		q.Set("end", p.End.String())
	}
	return q
}

func dayValue(d *core.Day) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// ParseNewExpense reads the add-expense form. There is no date field; the
// service stamps the creation time.
func ParseNewExpense(form url.Values) services.NewExpense {
	return services.NewExpense{
		Description: sanitizeInput(form.Get("description")),
		Amount:      strings.TrimSpace(form.Get("amount")),
	}
}

// ParseExpensePatch reads the edit form. Blank fields are left unchanged.
func ParseExpensePatch(form url.Values) (core.ExpensePatch, error) {
	var patch core.ExpensePatch
	if v := sanitizeInput(form.Get("description")); v != "" {
		patch.Description = &v
	}
	if v := strings.TrimSpace(form.Get("amount")); v != "" {
		m, err := core.ParseAmount(v)
		if err != nil {
			return core.ExpensePatch{}, err
		}
		patch.Amount = &m
	}
	return patch, nil
}

// formValue returns the sanitised value of a posted form field.
func formValue(r *http.Request, key string) string {
	return sanitizeInput(r.PostFormValue(key))
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, then trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
