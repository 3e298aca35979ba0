package dispatch

import (
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/homegate/homegate/internal/config"
)

// indexHandler serves a static site from the service root. In hybrid mode
// requests under the proxy path prefix are forwarded; everything else
// falls through static files, then the index document, then the 404
// document.
type indexHandler struct {
	root        staticRoot
	proxy       http.Handler
	proxyPrefix string
}

func newIndexHandler(name string, svc config.Service, logger *slog.Logger) (http.Handler, error) {
	h := &indexHandler{root: newStaticRoot(svc.Root, logger)}
	if svc.Hybrid() {
		rp, err := newReverseProxy(name, svc.Proxy.URL, logger)
		if err != nil {
			return nil, err
		}
		h.proxy = rp
		h.proxyPrefix = svc.Proxy.Path
	}
	return h, nil
}

func (h *indexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.proxy != nil && strings.HasPrefix(r.URL.Path, h.proxyPrefix) {
		h.proxy.ServeHTTP(w, r)
		return
	}

	clean := cleanRequestPath(r.URL.Path)
	if h.root.serveFilePath(w, r, clean) {
		return
	}
	// The same content is also mounted under /static.
	if rest, ok := strings.CutPrefix(clean, "/static"); ok {
		if h.root.serveFilePath(w, r, cleanRequestPath(rest)) {
			return
		}
	}
	// Directory targets (including the service root) fall back to their
	// index document.
	if h.root.serveFilePath(w, r, path.Join(clean, "index.html")) {
		return
	}
	h.root.serveErrorPage(w, r)
}
