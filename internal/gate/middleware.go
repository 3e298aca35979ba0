package gate

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/homegate/homegate/internal/auth"
)

// Per-service routes owned by the gate middleware.
const (
	LoginPath  = "/login"
	LogoutPath = "/logout"
)

const maxLoginBodyBytes = 8 * 1024

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Protect wraps next for a service with requireAuth set. It owns the
// login and logout routes and admits only requests carrying a valid
// session in this service's namespace. Browser navigation without a
// session lands on the login form; API callers get a plain 401.
func (g *Gate) Protect(serviceName string, secure bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case LoginPath:
			g.handleLogin(w, r, serviceName, secure)
			return
		case LogoutPath:
			g.handleLogout(w, r, serviceName, secure)
			return
		}

		sess, ok := g.Authenticate(r.Context(), serviceName, g.SessionID(r, serviceName))
		if ok && g.AdmitSession(sess.Username, serviceName) {
			next.ServeHTTP(w, r)
			return
		}

		if wantsHTML(r) && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
			target := LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
	})
}

func (g *Gate) handleLogin(w http.ResponseWriter, r *http.Request, serviceName string, secure bool) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		if _, ok := g.Authenticate(r.Context(), serviceName, g.SessionID(r, serviceName)); ok {
			http.Redirect(w, r, safeNextTarget(r.URL.Query().Get("next")), http.StatusFound)
			return
		}
		writeLoginPage(w, r, serviceName, r.URL.Query().Get("next"), "")
	case http.MethodPost:
		g.handleLoginSubmit(w, r, serviceName, secure)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (g *Gate) handleLoginSubmit(w http.ResponseWriter, r *http.Request, serviceName string, secure bool) {
	username, password, next, isForm, err := readLoginCredentials(w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid login request")
		return
	}

	id, err := g.Login(r.Context(), serviceName, username, password)
	switch {
	case err == nil:
	case errors.Is(err, ErrAccessDenied):
		if isForm {
			writeLoginPage(w, r, serviceName, next, "Your account does not have access to this service.")
			return
		}
		writeJSONError(w, http.StatusForbidden, ErrAccessDenied.Error())
		return
	case errors.Is(err, ErrInvalidCredentials):
		if isForm {
			writeLoginPage(w, r, serviceName, next, "Incorrect username or password.")
			return
		}
		writeJSONError(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
		return
	default:
		writeJSONError(w, http.StatusInternalServerError, "login failed")
		return
	}

	g.setSessionCookie(w, serviceName, id, secure, int(g.ttl/time.Second))
	if isForm {
		http.Redirect(w, r, safeNextTarget(next), http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}` + "\n"))
}

func (g *Gate) handleLogout(w http.ResponseWriter, r *http.Request, serviceName string, secure bool) {
	g.Logout(r.Context(), serviceName, g.SessionID(r, serviceName))
	clearSessionCookie(w, serviceName, secure)
	if wantsHTML(r) {
		http.Redirect(w, r, LoginPath, http.StatusFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequireBasic gates next behind HTTP Basic authentication against a
// stored bcrypt hash. Used by dirlist sub-paths; distinct from session
// auth.
func RequireBasic(expectedUser, passwordHash string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok || !auth.ConstantTimeEquals(user, expectedUser) || !auth.VerifyPassword(passwordHash, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="homegate", charset="UTF-8"`)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func readLoginCredentials(w http.ResponseWriter, r *http.Request) (username, password, next string, isForm bool, err error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req loginRequest
		body := http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)
		defer func() { _ = body.Close() }()
		b, readErr := io.ReadAll(body)
		if readErr != nil {
			return "", "", "", false, readErr
		}
		if jsonErr := json.Unmarshal(b, &req); jsonErr != nil {
			return "", "", "", false, jsonErr
		}
		return strings.TrimSpace(req.Username), req.Password, r.URL.Query().Get("next"), false, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)
	if formErr := r.ParseForm(); formErr != nil {
		return "", "", "", true, formErr
	}
	return strings.TrimSpace(r.Form.Get("username")), r.Form.Get("password"), r.Form.Get("next"), true, nil
}

// safeNextTarget keeps post-login redirects on the current host: only
// absolute paths without a scheme or authority are accepted.
func safeNextTarget(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return "/"
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.RequestURI()
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	b, _ := json.Marshal(map[string]string{"error": msg})
	_, _ = w.Write(append(b, '\n'))
}
