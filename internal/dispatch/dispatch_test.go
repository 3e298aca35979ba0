package dispatch

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/homegate/homegate/internal/auth"
	"github.com/homegate/homegate/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustHashBasic(t *testing.T, password string) string {
	t.Helper()
	h, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return h
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestIndexHandlerFallbackChain(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"index.html":      "<h1>home</h1>",
		"about.html":      "<h1>about</h1>",
		"docs/index.html": "<h1>docs</h1>",
		"404.html":        "<h1>lost</h1>",
	})
	h, err := newIndexHandler("home", config.Service{Type: config.TypeIndex, Root: root}, discardLogger())
	if err != nil {
		t.Fatalf("newIndexHandler: %v", err)
	}

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/about.html", http.StatusOK, "about"},
		{"/", http.StatusOK, "home"},
		{"/docs", http.StatusOK, "docs"},
		{"/docs/", http.StatusOK, "docs"},
		{"/static/about.html", http.StatusOK, "about"},
		{"/missing", http.StatusNotFound, "lost"},
	}
	for _, tt := range tests {
		rr := get(t, h, "http://home.example.com"+tt.path)
		if rr.Code != tt.status {
			t.Fatalf("%s: status got %d, want %d", tt.path, rr.Code, tt.status)
		}
		if !strings.Contains(rr.Body.String(), tt.contains) {
			t.Fatalf("%s: body %q should contain %q", tt.path, rr.Body.String(), tt.contains)
		}
	}
}

func TestIndexHandlerPlain404WithoutErrorPage(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"index.html": "home"})
	h, err := newIndexHandler("home", config.Service{Type: config.TypeIndex, Root: root}, discardLogger())
	if err != nil {
		t.Fatalf("newIndexHandler: %v", err)
	}

	rr := get(t, h, "http://home.example.com/missing")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
}

func TestIndexHandlerHybridProxy(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("api:" + r.URL.Path))
	}))
	defer backend.Close()

	root := writeTree(t, map[string]string{"index.html": "home"})
	svc := config.Service{
		Type:  config.TypeIndex,
		Root:  root,
		Proxy: &config.ProxyTarget{URL: backend.URL, Path: "/api"},
	}
	h, err := newIndexHandler("home", svc, discardLogger())
	if err != nil {
		t.Fatalf("newIndexHandler: %v", err)
	}

	rr := get(t, h, "http://home.example.com/api/things")
	if rr.Code != http.StatusOK || rr.Body.String() != "api:/api/things" {
		t.Fatalf("proxy path: got %d %q", rr.Code, rr.Body.String())
	}

	rr = get(t, h, "http://home.example.com/")
	if rr.Code != http.StatusOK || rr.Body.String() != "home" {
		t.Fatalf("static path: got %d %q", rr.Code, rr.Body.String())
	}
}

func TestSPAHandler(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"index.html":  "<h1>app shell</h1>",
		"app.abc.js":  "console.log(1)",
		"styles.css":  "body{}",
		"data.json":   "{}",
	})
	h, err := newSPAHandler(root, discardLogger())
	if err != nil {
		t.Fatalf("newSPAHandler: %v", err)
	}

	rr := get(t, h, "http://app.example.com/app.abc.js")
	if rr.Code != http.StatusOK {
		t.Fatalf("asset status: got %d", rr.Code)
	}
	if cc := rr.Header().Get("Cache-Control"); cc != "public, max-age=31536000, immutable" {
		t.Fatalf("asset cache control: got %q", cc)
	}

	rr = get(t, h, "http://app.example.com/data.json")
	if cc := rr.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Fatalf("non-asset cache control: got %q", cc)
	}

	// Client-side routes serve the entry document.
	rr = get(t, h, "http://app.example.com/settings/profile")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "app shell") {
		t.Fatalf("spa fallback: got %d %q", rr.Code, rr.Body.String())
	}
	if cc := rr.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Fatalf("fallback cache control: got %q", cc)
	}
}

func TestDirlistHandler(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"readme.txt":      "hello",
		"media/movie.mkv": "xx",
		".hidden":         "secret",
	})
	h, err := newDirlistHandler(config.Service{Type: config.TypeDirlist, Root: root}, discardLogger())
	if err != nil {
		t.Fatalf("newDirlistHandler: %v", err)
	}

	rr := get(t, h, "http://files.example.com/")
	if rr.Code != http.StatusOK {
		t.Fatalf("listing status: got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "readme.txt") || !strings.Contains(body, "media/") {
		t.Fatalf("listing body: %q", body)
	}
	if strings.Contains(body, ".hidden") {
		t.Fatal("dotfiles must not be listed")
	}

	rr = get(t, h, "http://files.example.com/readme.txt")
	if rr.Code != http.StatusOK || rr.Body.String() != "hello" {
		t.Fatalf("file download: got %d %q", rr.Code, rr.Body.String())
	}

	rr = get(t, h, "http://files.example.com/nope")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing file: got %d", rr.Code)
	}
}

func TestDirlistBasicAuthSubtree(t *testing.T) {
	t.Parallel()

	hash := mustHashBasic(t, "share-pass")
	root := writeTree(t, map[string]string{
		"public.txt":         "open",
		"private/secret.txt": "sealed",
	})
	svc := config.Service{
		Type: config.TypeDirlist,
		Root: root,
		BasicAuth: &config.BasicAuth{
			Path:         "/private",
			Username:     "guest",
			PasswordHash: hash,
		},
	}
	h, err := newDirlistHandler(svc, discardLogger())
	if err != nil {
		t.Fatalf("newDirlistHandler: %v", err)
	}

	rr := get(t, h, "http://files.example.com/public.txt")
	if rr.Code != http.StatusOK {
		t.Fatalf("ungated path: got %d", rr.Code)
	}

	rr = get(t, h, "http://files.example.com/private/secret.txt")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("gated path without credentials: got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "http://files.example.com/private/secret.txt", nil)
	req.SetBasicAuth("guest", "share-pass")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "sealed" {
		t.Fatalf("gated path with credentials: got %d %q", rec.Code, rec.Body.String())
	}
}

func TestProxyHandler(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Forwarded-For"); got == "" {
			t.Error("missing X-Forwarded-For")
		}
		_, _ = w.Write([]byte("upstream:" + r.URL.Path))
	}))
	defer backend.Close()

	h, err := newProxyHandler("app", &config.ProxyTarget{URL: backend.URL}, discardLogger())
	if err != nil {
		t.Fatalf("newProxyHandler: %v", err)
	}

	rr := get(t, h, "http://app.example.com/things?x=1")
	if rr.Code != http.StatusOK || rr.Body.String() != "upstream:/things" {
		t.Fatalf("proxy: got %d %q", rr.Code, rr.Body.String())
	}
}

func TestProxyHandlerPathPrefix(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer backend.Close()

	h, err := newProxyHandler("app", &config.ProxyTarget{URL: backend.URL, Path: "/api"}, discardLogger())
	if err != nil {
		t.Fatalf("newProxyHandler: %v", err)
	}

	if rr := get(t, h, "http://app.example.com/api/x"); rr.Code != http.StatusOK {
		t.Fatalf("prefixed path: got %d", rr.Code)
	}
	if rr := get(t, h, "http://app.example.com/other"); rr.Code != http.StatusNotFound {
		t.Fatalf("out-of-prefix path: got %d", rr.Code)
	}
}

func TestProxyHandlerUpstreamDown(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close()

	h, err := newProxyHandler("app", &config.ProxyTarget{URL: backend.URL}, discardLogger())
	if err != nil {
		t.Fatalf("newProxyHandler: %v", err)
	}

	rr := get(t, h, "http://app.example.com/")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("dead upstream: got %d, want 502", rr.Code)
	}
}

func TestNewReverseProxyRejectsRelativeTarget(t *testing.T) {
	t.Parallel()

	if _, err := newReverseProxy("app", "127.0.0.1:3000", discardLogger()); err == nil {
		t.Fatal("expected error for target without scheme")
	}
}

func TestStatusClass(t *testing.T) {
	t.Parallel()

	tests := map[int]string{200: "2xx", 204: "2xx", 302: "3xx", 404: "4xx", 502: "5xx"}
	for status, want := range tests {
		if got := statusClass(status); got != want {
			t.Fatalf("statusClass(%d): got %q, want %q", status, got, want)
		}
	}
}
