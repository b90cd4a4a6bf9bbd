package http

import (
	"bytes"
	"html/template"
	"net/http"

	"expensegroups/internal/auth"
	"expensegroups/internal/core"
	applog "expensegroups/internal/log"
)

var templateFuncs = template.FuncMap{
	"money": func(m core.Money) string { return m.Display() },
}

// basePage is embedded in every page's data.
type basePage struct {
	Title    string
	User     core.Identity
	SignedIn bool
	Error    string
}

func (s *Server) base(r *http.Request, title string) basePage {
	id, ok := auth.IdentityFromContext(r.Context())
	return basePage{Title: title, User: id, SignedIn: ok}
}

// render executes the named template into a buffer first so a template
// failure still produces a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			"template", name,
			"error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
