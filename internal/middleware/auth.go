package middleware

import (
	"net/http"
	"strings"

	"github.com/kubeview/panelview/internal/config"
)

const tokenCookie = "panelview_token"

// Auth returns middleware that protects panel, preset and admin routes with the
// dashboard password. POSTs to a panel page are the login form and never
// reach next: a correct password sets a cookie and redirects back to the
// page with a GET.
func Auth(cfg config.DashboardConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			page := isPanelPage(r.URL.Path)
			if page && r.Method == http.MethodPost {
				login(w, r, cfg.Password)
				return
			}

			if cfg.Password == "" || !protected(r.URL.Path) || extractToken(r) == cfg.Password {
				next.ServeHTTP(w, r)
				return
			}

			if page {
				writeLogin(w)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized"}`))
		})
	}
}

func login(w http.ResponseWriter, r *http.Request, password string) {
	if password != "" && extractToken(r) != password {
		r.ParseForm()
		if r.PostFormValue("password") != password {
			writeLogin(w)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: tokenCookie, Value: password, Path: "/", MaxAge: 86400, HttpOnly: true})
	}
	http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
}

func writeLogin(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(loginHTML))
}

func protected(path string) bool {
	return strings.HasPrefix(path, "/panel/") || strings.HasPrefix(path, "/admin/") || path == "/presets"
}

// isPanelPage matches /panel/{id} but not its /frame or /ws subresources.
func isPanelPage(path string) bool {
	rest, ok := strings.CutPrefix(path, "/panel/")
	return ok && rest != "" && !strings.Contains(rest, "/")
}

func extractToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if t := r.Header.Get("X-Dashboard-Token"); t != "" {
		return t
	}
	if c, err := r.Cookie(tokenCookie); err == nil {
		return c.Value
	}
	return ""
}

var loginHTML = "<html><head><title>Login</title><style>body{background:#0f172a;color:#e2e8f0;font-family:sans-serif;display:flex;justify-content:center;align-items:center;min-height:100vh}form{background:#1e293b;padding:32px;border-radius:12px;border:1px solid #334155}input{display:block;margin:12px 0;padding:8px 12px;border-radius:6px;border:1px solid #475569;background:#0f172a;color:#e2e8f0;width:250px}button{padding:8px 20px;background:#3b82f6;color:white;border:none;border-radius:6px;cursor:pointer;font-weight:600}</style></head><body><form method='POST'><h2>Panel Login</h2><input type='password' name='password' placeholder='Password' autofocus><button type='submit'>Login</button></form></body></html>"
