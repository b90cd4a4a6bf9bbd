package http

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"expensegroups/internal/core"
)

func TestParseFilterParams(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantStart string
		wantEnd   string
		wantErr   bool
	}{
		{name: "empty", query: ""},
		{name: "both", query: "start=2024-01-01&end=2024-01-31", wantStart: "2024-01-01", wantEnd: "2024-01-31"},
		{name: "start only", query: "start=2024-01-01", wantStart: "2024-01-01"},
		{name: "blank values", query: "start=+&end=", wantStart: "", wantEnd: ""},
		{name: "bad start", query: "start=01/02/2024", wantErr: true},
		{name: "bad end", query: "end=2024-02-30", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			p, err := ParseFilterParams(values)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidDay) {
					t.Fatalf("expected ErrInvalidDay, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.StartValue() != tt.wantStart || p.EndValue() != tt.wantEnd {
				t.Fatalf("got %q..%q, want %q..%q", p.StartValue(), p.EndValue(), tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestFilterParamsQueryRoundTrip(t *testing.T) {
	values := url.Values{"start": {"2024-03-01"}, "end": {"2024-03-31"}}
	p, err := ParseFilterParams(values)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Query().Encode(); got != "end=2024-03-31&start=2024-03-01" {
		t.Fatalf("query = %q", got)
	}
	if got := (FilterParams{}).Query(); len(got) != 0 {
		t.Fatalf("empty params should give an empty query, got %v", got)
	}
}

func TestFilterUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	p, _ := ParseFilterParams(url.Values{"start": {"2024-03-01"}})
	f := p.Filter(loc, nil)

	justBefore := core.Expense{Date: time.Date(2024, 2, 29, 21, 59, 0, 0, time.UTC)}
	atStart := core.Expense{Date: time.Date(2024, 2, 29, 22, 0, 0, 0, time.UTC)}
	if f.Matches(justBefore) {
		t.Error("21:59 UTC is still 29 February in UTC+2")
	}
	if !f.Matches(atStart) {
		t.Error("22:00 UTC is midnight of 1 March in UTC+2")
	}
}

func TestParseNewExpense(t *testing.T) {
	in := ParseNewExpense(url.Values{
		"description": {"  Groceries\x00 "},
		"amount":      {" 12,30 "},
		"date":        {"2024-05-06"},
	})
	if in.Description != "Groceries" || in.Amount != "12,30" {
		t.Fatalf("unexpected input %+v", in)
	}
}

func TestParseExpensePatch(t *testing.T) {
	p, err := ParseExpensePatch(url.Values{"description": {" "}, "amount": {""}})
	if err != nil || !p.IsEmpty() {
		t.Fatalf("blank fields should leave the patch empty: %+v %v", p, err)
	}

	p, err = ParseExpensePatch(url.Values{"amount": {"3.456"}})
	if err != nil || p.Amount == nil || p.Amount.Cents != 346 || p.Description != nil {
		t.Fatalf("amount patch: %+v %v", p, err)
	}

	if _, err := ParseExpensePatch(url.Values{"amount": {"-3"}}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := map[string]string{
		"  plain  ":          "plain",
		"tab\there":          "tab\there",
		"bell\x07ringing":    "bellringing",
		"line\nbreak":        "line\nbreak",
		"\x1b[31mred\x1b[0m": "[31mred[0m",
	}
	for in, want := range tests {
		if got := sanitizeInput(in); got != want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrInvalidAmount, 422},
		{core.ErrForbidden, 403},
		{core.ErrNotFound, 404},
		{errors.New("boom"), 500},
	}
	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
