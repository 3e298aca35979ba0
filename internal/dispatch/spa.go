package dispatch

import (
	"log/slog"
	"net/http"
	"path"
	"strings"
)

// Fingerprinted asset extensions get a long immutable cache lifetime;
// HTML is always revalidated so new deployments take effect immediately.
var immutableAssetExts = map[string]struct{}{
	".js":    {},
	".mjs":   {},
	".css":   {},
	".map":   {},
	".woff":  {},
	".woff2": {},
	".ttf":   {},
	".svg":   {},
	".png":   {},
	".jpg":   {},
	".jpeg":  {},
	".gif":   {},
	".webp":  {},
	".ico":   {},
	".avif":  {},
}

// spaHandler serves a single-page application: real assets with caching
// headers, and the entry document for every unmatched path so routing is
// deferred to the client.
type spaHandler struct {
	root staticRoot
}

func newSPAHandler(dir string, logger *slog.Logger) (http.Handler, error) {
	return &spaHandler{root: newStaticRoot(dir, logger)}, nil
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clean := cleanRequestPath(r.URL.Path)

	if clean != "/" && clean != "/index.html" {
		ext := strings.ToLower(path.Ext(clean))
		if _, immutable := immutableAssetExts[ext]; immutable {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}
		if h.root.serveFilePath(w, r, clean) {
			return
		}
	}

	// Unmatched paths serve the entry document; the client router decides
	// what they mean.
	w.Header().Set("Cache-Control", "no-cache")
	if h.root.serveFilePath(w, r, "/index.html") {
		return
	}
	h.root.serveErrorPage(w, r)
}
