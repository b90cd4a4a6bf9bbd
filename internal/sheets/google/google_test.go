package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"expensegroups/internal/core"
)

func TestNewRejectsIncompleteConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing spreadsheet", Config{SheetName: "Expenses"}, "missing spreadsheet id"},
		{"missing sheet", Config{SpreadsheetID: "abc"}, "missing sheet name"},
		{"missing credentials", Config{SpreadsheetID: "abc", SheetName: "Expenses"}, "missing credentials"},
		{
			"unreadable service account",
			Config{SpreadsheetID: "abc", SheetName: "Expenses", ServiceAccountFile: "/nonexistent/sa.json"},
			"read service account file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg, nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestNewOAuthErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		t.Helper()
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}
	validClient := write("client.json", `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`)
	badClient := write("bad-client.json", `invalid-json`)
	emptyToken := write("empty-token.json", `{}`)
	goodToken := write("token.json", `{"access_token":"test","refresh_token":"r"}`)

	base := Config{SpreadsheetID: "abc", SheetName: "Expenses"}

	cfg := base
	cfg.OAuthClientFile, cfg.OAuthTokenFile = badClient, goodToken
	if _, err := New(context.Background(), cfg, nil); err == nil || !strings.Contains(err.Error(), "oauth config") {
		t.Fatalf("expected oauth config error, got %v", err)
	}

	cfg.OAuthClientFile, cfg.OAuthTokenFile = validClient, emptyToken
	if _, err := New(context.Background(), cfg, nil); err == nil || !strings.Contains(err.Error(), "neither access nor refresh") {
		t.Fatalf("expected empty token error, got %v", err)
	}

	cfg.OAuthClientFile, cfg.OAuthTokenFile = validClient, goodToken
	c, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("expected client from valid oauth files, got %v", err)
	}
	if c.sheetName != "Expenses" || c.spreadsheetID != "abc" {
		t.Fatalf("unexpected client %+v", c)
	}
}

func TestUninitializedClient(t *testing.T) {
	c := &Client{spreadsheetID: "abc", sheetName: "Expenses"}
	if err := c.Upsert(context.Background(), core.Expense{ID: "e1"}); err == nil {
		t.Fatal("expected error without service")
	}
	if err := c.Upsert(context.Background(), core.Expense{}); err == nil {
		t.Fatal("expected error for expense without id")
	}
	if err := c.Remove(context.Background(), "e1"); err == nil {
		t.Fatal("expected error without service")
	}
}
