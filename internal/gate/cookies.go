package gate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

// CookieName returns the session cookie name for a service namespace.
func CookieName(serviceName string) string {
	return serviceName + "_sid"
}

// The cookie value is "<id>.<signature>", with the signature keyed by the
// persisted session secret and bound to the service namespace. A cookie
// minted for service A never verifies for service B.
func signSessionID(secret, serviceName, id string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(serviceName))
	_, _ = mac.Write([]byte("|"))
	_, _ = mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func encodeSessionCookie(secret, serviceName, id string) string {
	return id + "." + signSessionID(secret, serviceName, id)
}

func decodeSessionCookie(secret, serviceName, raw string) (string, bool) {
	id, sig, ok := strings.Cut(raw, ".")
	if !ok || id == "" {
		return "", false
	}
	expected := signSessionID(secret, serviceName, id)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}
	return id, true
}

// SessionID extracts and verifies the service's session id from the
// request cookie, or returns "" when absent or tampered with.
func (g *Gate) SessionID(r *http.Request, serviceName string) string {
	c, err := r.Cookie(CookieName(serviceName))
	if err != nil {
		return ""
	}
	id, ok := decodeSessionCookie(g.secrets.SessionSecret, serviceName, c.Value)
	if !ok {
		return ""
	}
	return id
}

func (g *Gate) setSessionCookie(w http.ResponseWriter, serviceName, id string, secure bool, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(serviceName),
		Value:    encodeSessionCookie(g.secrets.SessionSecret, serviceName, id),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func clearSessionCookie(w http.ResponseWriter, serviceName string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(serviceName),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
