package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"expensegroups/internal/core"
	"expensegroups/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(t *testing.T) *Service {
	t.Helper()
	authn := NewPasswordAuthenticator(memory.New()).WithCost(bcrypt.MinCost)
	return NewService(authn, NewJWTManager(testSecret, time.Hour), nil)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	authn := NewPasswordAuthenticator(memory.New()).WithCost(bcrypt.MinCost)

	id, err := authn.Register(ctx, " Ann@Example.com ", "Ann", "correct-horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id.ID == "" || id.Email != "ann@example.com" || id.DisplayName != "Ann" {
		t.Fatalf("unexpected identity %+v", id)
	}

	if _, err := authn.Register(ctx, "ann@example.com", "Other", "another-pass"); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}

	got, err := authn.Authenticate(ctx, "ANN@example.com", "correct-horse")
	if err != nil || got.ID != id.ID {
		t.Fatalf("authenticate: %+v %v", got, err)
	}
	if _, err := authn.Authenticate(ctx, "ann@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := authn.Authenticate(ctx, "nobody@example.com", "whatever1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	authn := NewPasswordAuthenticator(memory.New()).WithCost(bcrypt.MinCost)
	tests := []struct {
		email, password string
		want            error
	}{
		{"ann@example.com", "short", ErrWeakPassword},
		{"not-an-email", "long-enough", ErrInvalidEmail},
		{"", "long-enough", ErrInvalidEmail},
		{"Ann <ann@example.com>", "long-enough", ErrInvalidEmail},
	}
	for _, tt := range tests {
		if _, err := authn.Register(context.Background(), tt.email, "", tt.password); !errors.Is(err, tt.want) {
			t.Errorf("Register(%q, %q) = %v, want %v", tt.email, tt.password, err, tt.want)
		}
	}
}

func TestJWTManager(t *testing.T) {
	m := NewJWTManager(testSecret, time.Hour)
	identity := core.Identity{ID: "u1", Email: "ann@example.com", DisplayName: "Ann"}

	a, err := m.Generate(identity)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, _ := m.Generate(identity)

	ca, err := m.Validate(a)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	cb, _ := m.Validate(b)
	if ca.ID == "" || ca.ID == cb.ID {
		t.Fatalf("expected distinct token ids, got %q and %q", ca.ID, cb.ID)
	}
	if ca.Identity() != identity {
		t.Fatalf("unexpected identity %+v", ca.Identity())
	}

	other := NewJWTManager("ffffffffffffffffffffffffffffffff", time.Hour)
	if _, err := other.Validate(a); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign secret, got %v", err)
	}
	if _, err := m.Validate(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}

	expired := NewJWTManager(testSecret, time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _ := expired.Generate(identity)
	if _, err := m.Validate(old); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestServiceSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.SignUp(ctx, "ann@example.com", "correct-horse", "Ann"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	token, identity, err := svc.SignIn(ctx, "ann@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	current, err := svc.CurrentUser(ctx, token)
	if err != nil || current.ID != identity.ID || current.DisplayName != "Ann" {
		t.Fatalf("current user: %+v %v", current, err)
	}

	if err := svc.SignOut(ctx, token); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := svc.CurrentUser(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
	if err := svc.SignOut(ctx, "garbage"); err != nil {
		t.Fatalf("sign out with garbage should be a no-op, got %v", err)
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc")
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie"})
	if got := TokenFromRequest(r); got != "abc" {
		t.Fatalf("expected header token, got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie"})
	if got := TokenFromRequest(r); got != "cookie" {
		t.Fatalf("expected cookie token, got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic xyz")
	if got := TokenFromRequest(r); got != "" {
		t.Fatalf("expected no token, got %q", got)
	}
}

func TestSessionMiddleware(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	svc.SignUp(ctx, "ann@example.com", "correct-horse", "Ann")
	token, _, _ := svc.SignIn(ctx, "ann@example.com", "correct-horse")

	var seen string
	h := SessionMiddleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	h.ServeHTTP(httptest.NewRecorder(), r)
	if seen == "" {
		t.Fatal("expected identity in context")
	}

	seen = "unset"
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "bogus"})
	h.ServeHTTP(httptest.NewRecorder(), r)
	if seen != "" {
		t.Fatalf("expected anonymous request, got %q", seen)
	}
}

func TestSessionCookieAttributes(t *testing.T) {
	w := httptest.NewRecorder()
	SetSessionCookie(w, "tok", time.Hour, true)
	h := w.Header().Get("Set-Cookie")
	for _, want := range []string{"session=tok", "HttpOnly", "Secure", "SameSite=Lax", "Max-Age=3600"} {
		if !strings.Contains(h, want) {
			t.Errorf("cookie %q missing %q", h, want)
		}
	}
}

func TestSignOutSurvivesManyLaterSignOuts(t *testing.T) {
	ctx := context.Background()
	tokens := NewJWTManager(testSecret, time.Hour)
	authn := NewPasswordAuthenticator(memory.New()).WithCost(bcrypt.MinCost)
	svc := NewService(authn, tokens, slog.New(slog.NewTextHandler(io.Discard, nil)))

	first, err := tokens.Generate(core.Identity{ID: "ann", Email: "ann@example.com"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := svc.SignOut(ctx, first); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	for i := 0; i < 10001; i++ {
		other, err := tokens.Generate(core.Identity{ID: fmt.Sprintf("user-%d", i), Email: "x@example.com"})
		if err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
		if err := svc.SignOut(ctx, other); err != nil {
			t.Fatalf("sign out %d: %v", i, err)
		}
	}

	if _, err := svc.CurrentUser(ctx, first); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("first signed-out token accepted again: %v", err)
	}
}
