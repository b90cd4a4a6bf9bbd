package http

import (
	"net/http"

	"expensegroups/internal/activegroup"
	"expensegroups/internal/auth"
	"expensegroups/internal/core"
	applog "expensegroups/internal/log"
	"expensegroups/internal/services"
)

type authPage struct {
	basePage
	Name  string
	Email string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", authPage{basePage: s.base(r, "Sign in")})
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register.html", authPage{basePage: s.base(r, "Create account")})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	page := authPage{basePage: s.base(r, "Sign in"), Email: formValue(r, "email")}
	password := r.PostFormValue("password")
	if page.Email == "" || password == "" {
		page.Error = "Email and password are required"
		s.render(w, r, http.StatusUnprocessableEntity, "login.html", page)
		return
	}

	ctx := r.Context()
	token, id, err := s.accounts.SignIn(ctx, page.Email, password)
	if err != nil {
		s.authFailed(w, r, "login.html", page, applog.OpSignIn, err)
		return
	}
	s.startSession(w, r, token, id)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	page := authPage{
		basePage: s.base(r, "Create account"),
		Name:     formValue(r, "name"),
		Email:    formValue(r, "email"),
	}
	password := r.PostFormValue("password")
	if page.Name == "" || page.Email == "" || password == "" {
		page.Error = "Name, email and password are required"
		s.render(w, r, http.StatusUnprocessableEntity, "register.html", page)
		return
	}

	ctx := r.Context()
	if _, err := s.accounts.Register(ctx, page.Name, page.Email, password); err != nil {
		s.authFailed(w, r, "register.html", page, applog.OpRegister, err)
		return
	}
	token, id, err := s.accounts.SignIn(ctx, page.Email, password)
	if err != nil {
		s.authFailed(w, r, "register.html", page, applog.OpSignIn, err)
		return
	}
	s.startSession(w, r, token, id)
}

func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, tmpl string, page authPage, op string, err error) {
	if services.IsValidation(err) {
		page.Error = services.UserMessage(err)
		s.render(w, r, http.StatusUnprocessableEntity, tmpl, page)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogError(r.Context(), "Authentication request failed", err, applog.ComponentAuth, op, nil)
	page.Error = services.UserMessage(err)
	s.render(w, r, http.StatusInternalServerError, tmpl, page)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, token string, id core.Identity) {
	auth.SetSessionCookie(w, token, s.opts.SessionTTL, s.opts.CookieSecure)
	applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).InfoContext(r.Context(), "User signed in",
		applog.FieldUserID, id.ID)
	http.Redirect(w, r, "/landingPage", http.StatusSeeOther)
}

// handleLogout revokes the session, forgets the active group and returns
// to the root page.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if token := auth.TokenFromRequest(r); token != "" {
		if err := s.accounts.SignOut(ctx, token); err != nil {
			applog.FromContext(ctx).WithComponent(applog.ComponentAuth).WarnContext(ctx, "Sign-out failed", "error", err)
		}
	}
	auth.ClearSessionCookie(w, s.opts.CookieSecure)
	activegroup.NewCookie(w, r, s.opts.CookieSecure).Clear()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
