package gate

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCookieName(t *testing.T) {
	t.Parallel()

	if got := CookieName("app"); got != "app_sid" {
		t.Fatalf("CookieName: got %q", got)
	}
}

func TestSessionCookieRoundTrip(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)

	rr := httptest.NewRecorder()
	g.setSessionCookie(rr, "app", "sid-123", true, 3600)

	resp := rr.Result()
	cookies := resp.Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != "app_sid" || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("cookie attributes: %+v", c)
	}
	if !strings.HasPrefix(c.Value, "sid-123.") {
		t.Fatalf("cookie value: got %q", c.Value)
	}

	req := httptest.NewRequest(http.MethodGet, "https://app.home.example.com/", nil)
	req.AddCookie(c)
	if got := g.SessionID(req, "app"); got != "sid-123" {
		t.Fatalf("SessionID: got %q", got)
	}
}

func TestSessionCookieRejectsTampering(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)

	rr := httptest.NewRecorder()
	g.setSessionCookie(rr, "app", "sid-123", false, 3600)
	c := rr.Result().Cookies()[0]

	// Swapped id with intact signature.
	forged := "sid-456." + strings.SplitN(c.Value, ".", 2)[1]
	req := httptest.NewRequest(http.MethodGet, "http://app.home.example.com/", nil)
	req.AddCookie(&http.Cookie{Name: "app_sid", Value: forged})
	if got := g.SessionID(req, "app"); got != "" {
		t.Fatalf("forged cookie accepted: %q", got)
	}

	// Unsigned value.
	req = httptest.NewRequest(http.MethodGet, "http://app.home.example.com/", nil)
	req.AddCookie(&http.Cookie{Name: "app_sid", Value: "sid-123"})
	if got := g.SessionID(req, "app"); got != "" {
		t.Fatalf("unsigned cookie accepted: %q", got)
	}
}

func TestSessionCookieBoundToService(t *testing.T) {
	t.Parallel()

	g := newTestGate(t)

	rr := httptest.NewRecorder()
	g.setSessionCookie(rr, "app", "sid-123", false, 3600)
	c := rr.Result().Cookies()[0]

	// Replay the app cookie value under the files cookie name.
	req := httptest.NewRequest(http.MethodGet, "http://files.home.example.com/", nil)
	req.AddCookie(&http.Cookie{Name: "files_sid", Value: c.Value})
	if got := g.SessionID(req, "files"); got != "" {
		t.Fatalf("cross-service cookie accepted: %q", got)
	}
}

func TestClearSessionCookie(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	clearSessionCookie(rr, "app", true)
	c := rr.Result().Cookies()[0]
	if c.Name != "app_sid" || c.Value != "" || c.MaxAge >= 0 {
		t.Fatalf("clear cookie: %+v", c)
	}
}
