package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"expensegroups/internal/auth"
	"expensegroups/internal/services"
	"expensegroups/internal/store/memory"
)

type testEnv struct {
	t   *testing.T
	srv *httptest.Server
	mem *memory.Store

	mu    sync.Mutex
	ready error
	now   time.Time
}

// setNow pins the clock that dates new expenses. The zero time means the
// wall clock.
func (e *testEnv) setNow(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = t
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.now.IsZero() {
		return time.Now()
	}
	return e.now
}

func (e *testEnv) setReady(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ready = err
}

func (e *testEnv) readiness(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := memory.New()
	authn := auth.NewPasswordAuthenticator(mem).WithCost(bcrypt.MinCost)
	sessions := auth.NewService(authn, auth.NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour), nil)
	accounts := services.NewAccountService(sessions, mem, nil)
	groups := services.NewGroupService(mem, mem, nil)
	groups.OnUserChanged(accounts.InvalidateProfile)

	env := &testEnv{t: t, mem: mem}
	s, err := NewServer(":0", Deps{
		Accounts: accounts,
		Expenses: services.NewExpenseService(mem, mem, nil, nil).WithClock(env.clock),
		Groups:   groups,
		Sessions: sessions,
		Ready:    env.readiness,
	}, Options{SessionTTL: time.Hour, RateLimitPerMinute: 1000})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	env.srv = httptest.NewServer(s.Handler)
	t.Cleanup(func() {
		env.srv.Close()
		_ = s.Shutdown(context.Background())
	})
	return env
}

// client returns a browser-like client that keeps cookies and does not
// follow redirects.
func (e *testEnv) client() *http.Client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		e.t.Fatal(err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (e *testEnv) get(c *http.Client, path string) (*http.Response, string) {
	e.t.Helper()
	resp, err := c.Get(e.srv.URL + path)
	if err != nil {
		e.t.Fatalf("GET %s: %v", path, err)
	}
	return resp, readBody(e.t, resp)
}

func (e *testEnv) post(c *http.Client, path string, form url.Values) (*http.Response, string) {
	e.t.Helper()
	resp, err := c.PostForm(e.srv.URL+path, form)
	if err != nil {
		e.t.Fatalf("POST %s: %v", path, err)
	}
	return resp, readBody(e.t, resp)
}

func (e *testEnv) signUp(name, email string) *http.Client {
	e.t.Helper()
	c := e.client()
	resp, _ := e.post(c, "/register", url.Values{
		"name":     {name},
		"email":    {email},
		"password": {"correct-horse"},
	})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/landingPage" {
		e.t.Fatalf("register %s: status %d location %q", email, resp.StatusCode, resp.Header.Get("Location"))
	}
	return c
}

func (e *testEnv) apiExpenses(c *http.Client, query string) expensesResponse {
	e.t.Helper()
	resp, body := e.get(c, "/api/expenses"+query)
	if resp.StatusCode != http.StatusOK {
		e.t.Fatalf("api expenses: %d %s", resp.StatusCode, body)
	}
	var out expensesResponse
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		e.t.Fatalf("decode: %v", err)
	}
	return out
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestGuardsRedirectAnonymousUsers(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	for _, path := range []string{"/", "/landingPage", "/expenseDashboard", "/dashboard", "/groupDashboard", "/groupManagement"} {
		resp, _ := env.get(c, path)
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
			t.Errorf("%s: got %d -> %q, want redirect to /login", path, resp.StatusCode, resp.Header.Get("Location"))
		}
	}

	resp, body := env.get(c, "/api/me")
	if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(body, `"error"`) {
		t.Errorf("api without session: %d %s", resp.StatusCode, body)
	}

	resp, body = env.get(c, "/login")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `action="/login"`) {
		t.Errorf("login page: %d", resp.StatusCode)
	}
}

func TestSignedInUsersLeaveAuthPages(t *testing.T) {
	env := newTestEnv(t)
	c := env.signUp("Ann", "ann@example.com")

	for _, path := range []string{"/login", "/register"} {
		resp, _ := env.get(c, path)
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/landingPage" {
			t.Errorf("%s: got %d -> %q", path, resp.StatusCode, resp.Header.Get("Location"))
		}
	}
	resp, _ := env.get(c, "/")
	if resp.Header.Get("Location") != "/expenseDashboard" {
		t.Errorf("root redirect = %q", resp.Header.Get("Location"))
	}

	resp, body := env.get(c, "/expenseDashboard")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard: %d", resp.StatusCode)
	}
	for _, want := range []string{"You are logged in as: <strong>Ann</strong>", "Current group: <strong>None</strong>"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t)
	env.signUp("Ann", "ann@example.com")

	c := env.client()
	resp, body := env.post(c, "/login", url.Values{"email": {"ann@example.com"}})
	if resp.StatusCode != http.StatusUnprocessableEntity || !strings.Contains(body, "required") {
		t.Errorf("missing password: %d", resp.StatusCode)
	}

	resp, _ = env.post(c, "/login", url.Values{"email": {"ann@example.com"}, "password": {"wrong-password"}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("wrong password: %d", resp.StatusCode)
	}

	resp, _ = env.post(c, "/login", url.Values{"email": {"ann@example.com"}, "password": {"correct-horse"}})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/landingPage" {
		t.Fatalf("login: %d -> %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	resp, body = env.get(c, "/landingPage")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Welcome, Ann") {
		t.Errorf("landing page: %d", resp.StatusCode)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.signUp("Ann", "ann@example.com")

	resp, body := env.post(env.client(), "/register", url.Values{
		"name":     {"Other"},
		"email":    {"ann@example.com"},
		"password": {"correct-horse"},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate register: %d", resp.StatusCode)
	}
	if !strings.Contains(body, `class="error"`) {
		t.Error("expected an inline error message")
	}
}

func TestAddExpenseValidationStoresNothing(t *testing.T) {
	env := newTestEnv(t)
	c := env.signUp("Ann", "ann@example.com")

	cases := []url.Values{
		{"description": {"Lunch"}, "amount": {"-5"}},
		{"description": {"Lunch"}, "amount": {"0"}},
		{"description": {"Lunch"}, "amount": {"abc"}},
		{"description": {"  "}, "amount": {"5"}},
	}
	for _, form := range cases {
		resp, body := env.post(c, "/expenses", form)
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("%v: status %d, want 422", form, resp.StatusCode)
		}
		if !strings.Contains(body, `class="error"`) {
			t.Errorf("%v: no inline error", form)
		}
	}

	stored, err := env.mem.ListExpenses(context.Background())
	if err != nil || len(stored) != 0 {
		t.Fatalf("expected no stored expenses, got %d (%v)", len(stored), err)
	}
}

func TestAddExpensePreservesRangeAndFilters(t *testing.T) {
	env := newTestEnv(t)
	c := env.signUp("Ann", "ann@example.com")

	for _, in := range []struct {
		desc, amount string
		at           time.Time
	}{
		{"February", "10", time.Date(2024, 2, 28, 9, 0, 0, 0, time.UTC)},
		{"March", "12,50", time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)},
		{"April", "7.25", time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)},
	} {
		env.setNow(in.at)
		resp, _ := env.post(c, "/expenses", url.Values{
			"description": {in.desc},
			"amount":      {in.amount},
			"start":       {"2024-03-01"},
			"end":         {"2024-03-31"},
		})
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("add %s: %d", in.desc, resp.StatusCode)
		}
		if loc := resp.Header.Get("Location"); loc != "/expenseDashboard?end=2024-03-31&start=2024-03-01" {
			t.Fatalf("redirect = %q", loc)
		}
	}

	all := env.apiExpenses(c, "")
	if all.Summary.Count != 3 || all.Summary.Total.Cents != 2975 {
		t.Fatalf("all: %+v", all.Summary)
	}

	march := env.apiExpenses(c, "?start=2024-03-01&end=2024-03-31")
	if march.Summary.Count != 1 || march.Expenses[0].Description != "March" || march.Summary.Total.Cents != 1250 {
		t.Fatalf("march: %+v", march)
	}

	openEnd := env.apiExpenses(c, "?start=2024-03-15")
	if openEnd.Summary.Count != 2 {
		t.Fatalf("from 15 March: %+v", openEnd.Summary)
	}

	resp, body := env.get(c, "/expenseDashboard?start=2024-03-01&end=2024-03-31")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "March") || strings.Contains(body, "February") {
		t.Errorf("filtered dashboard: %d", resp.StatusCode)
	}
	if !strings.Contains(body, "1 expenses, total $12.50") {
		t.Errorf("summary missing from dashboard")
	}
}

func TestAddExpenseIsDatedAtCreation(t *testing.T) {
	env := newTestEnv(t)
	c := env.signUp("Ann", "ann@example.com")
	at := time.Date(2024, 6, 3, 18, 30, 0, 0, time.UTC)
	env.setNow(at)

	resp, _ := env.post(c, "/expenses", url.Values{
		"description": {"Backdated"},
		"amount":      {"3"},
		"date":        {"2020-01-01"},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("add: %d", resp.StatusCode)
	}

	stored, err := env.mem.ListExpenses(context.Background())
	if err != nil || len(stored) != 1 {
		t.Fatalf("expected one stored expense, got %d (%v)", len(stored), err)
	}
	if !stored[0].Date.Equal(at) {
		t.Fatalf("date = %v, want creation time %v", stored[0].Date, at)
	}
	if old := env.apiExpenses(c, "?start=2020-01-01&end=2020-01-01"); old.Summary.Count != 0 {
		t.Fatalf("a posted date must not backdate the expense: %+v", old.Summary)
	}
}

func TestInvalidFilterIsRejected(t *testing.T) {
	env := newTestEnv(t)
	c := env.signUp("Ann", "ann@example.com")

	resp, _ := env.get(c, "/api/expenses?start=03/01/2024")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("api: %d", resp.StatusCode)
	}
	resp, body := env.get(c, "/expenseDashboard?end=nope")
	if resp.StatusCode != http.StatusUnprocessableEntity || !strings.Contains(body, "YYYY-MM-DD") {
		t.Errorf("dashboard: %d", resp.StatusCode)
	}
}

func TestUpdateAndDeleteExpense(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signUp("Ann", "ann@example.com")
	bob := env.signUp("Bob", "bob@example.com")

	env.post(ann, "/expenses", url.Values{"description": {"Taxi"}, "amount": {"20"}})
	id := env.apiExpenses(ann, "").Expenses[0].ID

	resp, _ := env.post(bob, "/expenses/delete", url.Values{"id": {id}})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign delete: %d, want 403", resp.StatusCode)
	}

	resp, _ = env.post(ann, "/expenses/update", url.Values{"id": {id}, "amount": {"-1"}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("invalid update: %d", resp.StatusCode)
	}
	resp, _ = env.post(ann, "/expenses/update", url.Values{"id": {id}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("empty update: %d", resp.StatusCode)
	}

	resp, _ = env.post(ann, "/expenses/update", url.Values{"id": {id}, "description": {"Cab"}, "amount": {"22.50"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("update: %d", resp.StatusCode)
	}
	got := env.apiExpenses(ann, "").Expenses[0]
	if got.Description != "Cab" || got.Amount.Cents != 2250 {
		t.Fatalf("after update: %+v", got)
	}

	resp, _ = env.post(ann, "/expenses/delete", url.Values{"id": {id}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("delete: %d", resp.StatusCode)
	}
	if n := env.apiExpenses(ann, "").Summary.Count; n != 0 {
		t.Fatalf("expected empty list, got %d", n)
	}

	// A second delete fails in the store; the user just sees the list again.
	resp, _ = env.post(ann, "/expenses/delete", url.Values{"id": {id}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("repeat delete: %d", resp.StatusCode)
	}
}

type meBody struct {
	ID     string   `json:"id"`
	Email  string   `json:"email"`
	Groups []string `json:"groups"`
}

func getMe(t *testing.T, env *testEnv, c *http.Client) meBody {
	t.Helper()
	resp, body := env.get(c, "/api/me")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("api me: %d", resp.StatusCode)
	}
	var me meBody
	if err := json.Unmarshal([]byte(body), &me); err != nil {
		t.Fatal(err)
	}
	return me
}

func TestGroupLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signUp("Ann", "ann@example.com")
	bob := env.signUp("Bob", "bob@example.com")

	if me := getMe(t, env, ann); len(me.Groups) != 0 {
		t.Fatalf("fresh user groups = %v", me.Groups)
	}

	resp, _ := env.post(ann, "/groups", url.Values{"name": {"  "}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("blank group name: %d", resp.StatusCode)
	}
	resp, _ = env.post(ann, "/groups", url.Values{"name": {"Trip"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("create group: %d", resp.StatusCode)
	}

	groups := env.groupsOf(ann)
	if len(groups) != 1 || groups[0].Name != "Trip" {
		t.Fatalf("groups = %+v", groups)
	}
	gid := groups[0].ID
	if me := getMe(t, env, ann); len(me.Groups) != 1 || me.Groups[0] != gid {
		t.Fatalf("creator not linked: %v", me.Groups)
	}

	resp, _ = env.post(ann, "/groups/members", url.Values{"id": {gid}, "email": {"nobody@example.com"}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unknown member: %d", resp.StatusCode)
	}
	resp, _ = env.post(ann, "/groups/members", url.Values{"id": {gid}, "email": {"bob@example.com"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("add member: %d", resp.StatusCode)
	}
	if len(env.groupsOf(bob)) != 1 {
		t.Fatal("bob should see the group")
	}

	resp, _ = env.post(bob, "/groups/delete", url.Values{"id": {gid}})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-owner delete: %d", resp.StatusCode)
	}

	resp, _ = env.post(bob, "/groups/rename", url.Values{"id": {gid}, "name": {"Holiday"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("member rename: %d", resp.StatusCode)
	}

	_, body := env.get(ann, "/groupDashboard")
	if !strings.Contains(body, "Holiday") || !strings.Contains(body, "bob@example.com") {
		t.Error("group dashboard should list the renamed group and its members")
	}

	resp, _ = env.post(bob, "/groups/members/remove", url.Values{"id": {gid}, "member": {groups[0].Owner}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("removing the owner: %d", resp.StatusCode)
	}
	resp, _ = env.post(bob, "/groups/members/remove", url.Values{"id": {gid}, "member": {getMe(t, env, bob).ID}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("leave: %d", resp.StatusCode)
	}
	if len(env.groupsOf(bob)) != 0 {
		t.Fatal("bob left the group")
	}

	resp, _ = env.post(ann, "/groups/delete", url.Values{"id": {gid}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("delete: %d", resp.StatusCode)
	}
	if me := getMe(t, env, ann); len(me.Groups) != 0 {
		t.Fatalf("deleted group still linked: %v", me.Groups)
	}
}

func (e *testEnv) groupsOf(c *http.Client) []groupJSON {
	e.t.Helper()
	resp, body := e.get(c, "/api/groups")
	if resp.StatusCode != http.StatusOK {
		e.t.Fatalf("api groups: %d", resp.StatusCode)
	}
	var out struct {
		Groups []groupJSON `json:"groups"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		e.t.Fatal(err)
	}
	return out.Groups
}

type groupJSON struct {
	ID    string   `json:"id"`
	Owner string   `json:"owner"`
	Name  string   `json:"name"`
	Users []string `json:"users"`
}

func TestActiveGroupTagsNewExpenses(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signUp("Ann", "ann@example.com")
	env.post(ann, "/groups", url.Values{"name": {"Flat"}})
	gid := env.groupsOf(ann)[0].ID

	resp, _ := env.post(ann, "/groups/active", url.Values{"id": {gid}, "next": {"/expenseDashboard"}})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/expenseDashboard" {
		t.Fatalf("select: %d -> %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	_, body := env.get(ann, "/expenseDashboard")
	if !strings.Contains(body, "Current group: <strong>Flat</strong>") {
		t.Error("dashboard should show the active group")
	}

	env.post(ann, "/expenses", url.Values{"description": {"Rent"}, "amount": {"500"}})
	got := env.apiExpenses(ann, "")
	if got.Summary.Count != 1 || got.Expenses[0].GroupID != gid {
		t.Fatalf("expense not attached to active group: %+v", got.Expenses)
	}
	if got.ActiveGroup == nil || got.ActiveGroup.ID != gid {
		t.Fatalf("active group = %+v", got.ActiveGroup)
	}

	resp, _ = env.post(ann, "/groups/active/clear", url.Values{"next": {"https://evil.example"}})
	if resp.Header.Get("Location") != "/groupDashboard" {
		t.Fatalf("clear redirected to %q", resp.Header.Get("Location"))
	}
	env.post(ann, "/expenses", url.Values{"description": {"Coffee"}, "amount": {"3"}})
	got = env.apiExpenses(ann, "")
	if got.ActiveGroup != nil || got.Expenses[1].GroupID != "" {
		t.Fatalf("expected a personal expense after clearing: %+v", got)
	}
}

func TestDeletedActiveGroupNoLongerFilters(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signUp("Ann", "ann@example.com")
	bob := env.signUp("Bob", "bob@example.com")

	groupNamed := func(name string) string {
		t.Helper()
		for _, g := range env.groupsOf(bob) {
			if g.Name == name {
				return g.ID
			}
		}
		t.Fatalf("group %s not found", name)
		return ""
	}
	for _, name := range []string{"Flat", "Trip"} {
		env.post(bob, "/groups", url.Values{"name": {name}})
		resp, _ := env.post(bob, "/groups/members", url.Values{"id": {groupNamed(name)}, "email": {"ann@example.com"}})
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("add ann to %s: %d", name, resp.StatusCode)
		}
	}
	flat, trip := groupNamed("Flat"), groupNamed("Trip")

	env.post(bob, "/groups/active", url.Values{"id": {trip}})
	env.post(bob, "/expenses", url.Values{"description": {"Fuel"}, "amount": {"40"}})

	// Ann keeps Flat selected while Bob deletes it.
	env.post(ann, "/groups/active", url.Values{"id": {flat}})
	if got := env.apiExpenses(ann, ""); got.Summary.Count != 0 {
		t.Fatalf("Fuel belongs to Trip and should be hidden while Flat is active: %+v", got.Expenses)
	}
	if resp, _ := env.post(bob, "/groups/delete", url.Values{"id": {flat}}); resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("delete: %d", resp.StatusCode)
	}

	_, body := env.get(ann, "/expenseDashboard")
	if !strings.Contains(body, "Current group: <strong>None</strong>") || !strings.Contains(body, "no longer available") {
		t.Error("dashboard should show None with a hint for the deleted group")
	}
	if !strings.Contains(body, "Fuel") {
		t.Error("a deleted selection must not hide other groups' expenses")
	}

	got := env.apiExpenses(ann, "")
	if got.Summary.Count != 1 || got.Expenses[0].GroupID != trip {
		t.Fatalf("api should ignore the stale selection: %+v", got.Expenses)
	}
	if !got.ActiveGroupStale || got.ActiveGroup != nil {
		t.Fatalf("api active group = %+v stale=%v", got.ActiveGroup, got.ActiveGroupStale)
	}

	_, body = env.get(ann, "/landingPage")
	if !strings.Contains(body, "Current group: <strong>None</strong>") || strings.Contains(body, "<strong>Flat</strong>") {
		t.Error("landing page should not name the deleted group")
	}
}

func TestSelectingForeignGroupIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signUp("Ann", "ann@example.com")
	bob := env.signUp("Bob", "bob@example.com")
	env.post(ann, "/groups", url.Values{"name": {"Private"}})
	gid := env.groupsOf(ann)[0].ID

	resp, _ := env.post(bob, "/groups/active", url.Values{"id": {gid}})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign select: %d", resp.StatusCode)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEnv(t)
	c := env.signUp("Ann", "ann@example.com")

	resp, _ := env.post(c, "/logout", nil)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("logout: %d -> %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	resp, _ = env.get(c, "/expenseDashboard")
	if resp.Header.Get("Location") != "/login" {
		t.Fatalf("after logout got %d -> %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestOperationalEndpoints(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	resp, body := env.get(c, "/healthz")
	if resp.StatusCode != http.StatusOK || body != "ok" {
		t.Errorf("healthz: %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}

	resp, _ = env.get(c, "/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("readyz: %d", resp.StatusCode)
	}
	env.setReady(errors.New("database unavailable"))
	resp, _ = env.get(c, "/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("readyz when not ready: %d", resp.StatusCode)
	}

	resp, body = env.get(c, "/metrics")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "http_requests_total") {
		t.Errorf("metrics: %d", resp.StatusCode)
	}
	if !strings.Contains(body, `route="GET /healthz"`) {
		t.Error("requests should be labelled with their route pattern")
	}

	resp, body = env.get(c, "/static/style.css")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "body") {
		t.Errorf("static: %d", resp.StatusCode)
	}
}

func TestSecurityHeadersOnPages(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.get(env.client(), "/login")
	if resp.Header.Get("Content-Security-Policy") == "" {
		t.Error("missing CSP header")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff")
	}
	if !strings.Contains(resp.Header.Get("Cache-Control"), "no-store") {
		t.Errorf("pages must not be cached, got %q", resp.Header.Get("Cache-Control"))
	}
}
