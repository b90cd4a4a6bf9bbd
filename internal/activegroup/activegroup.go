// Package activegroup remembers which group a browser session has selected.
//
// The selection is a client-side convenience: the stored record is a
// snapshot and is never checked against the store. Callers that need the
// current membership must re-read the group.
package activegroup

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"expensegroups/internal/core"
)

// CookieName is the key under which the selection is kept.
const CookieName = "activeGroup"

const cookieMaxAge = 365 * 24 * time.Hour

// Store holds at most one selected group.
type Store interface {
	Get() (core.Group, bool)
	Set(g core.Group) error
	Clear()
}

// Memory is a Store kept in process memory.
type Memory struct {
	mu    sync.Mutex
	group *core.Group
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Cookie)(nil)
)

func (m *Memory) Get() (core.Group, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.group == nil {
		return core.Group{}, false
	}
	return *m.group, true
}

func (m *Memory) Set(g core.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.group = &g
	return nil
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.group = nil
}

// Cookie keeps the selection in a browser cookie. It is bound to a single
// request/response pair; Set and Clear write Set-Cookie headers and are
// visible to later Get calls on the same value.
type Cookie struct {
	w      http.ResponseWriter
	r      *http.Request
	secure bool

	written bool
	group   *core.Group
}

func NewCookie(w http.ResponseWriter, r *http.Request, secure bool) *Cookie {
	return &Cookie{w: w, r: r, secure: secure}
}

// Get decodes the request cookie. A missing or unreadable cookie reads as
// no selection.
func (c *Cookie) Get() (core.Group, bool) {
	if c.written {
		if c.group == nil {
			return core.Group{}, false
		}
		return *c.group, true
	}
	raw, err := c.r.Cookie(CookieName)
	if err != nil {
		return core.Group{}, false
	}
	g, err := Decode(raw.Value)
	if err != nil {
		return core.Group{}, false
	}
	return g, true
}

func (c *Cookie) Set(g core.Group) error {
	value, err := Encode(g)
	if err != nil {
		return err
	}
	http.SetCookie(c.w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.written = true
	c.group = &g
	return nil
}

func (c *Cookie) Clear() {
	http.SetCookie(c.w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.written = true
	c.group = nil
}

// Encode serialises g as base64url JSON.
func Encode(g core.Group) (string, error) {
	b, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("failed to encode active group: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func Decode(s string) (core.Group, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return core.Group{}, fmt.Errorf("failed to decode active group: %w", err)
	}
	var g core.Group
	if err := json.Unmarshal(b, &g); err != nil {
		return core.Group{}, fmt.Errorf("failed to decode active group: %w", err)
	}
	if g.ID == "" {
		return core.Group{}, fmt.Errorf("failed to decode active group: missing id")
	}
	return g, nil
}
