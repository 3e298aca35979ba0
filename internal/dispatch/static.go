package dispatch

import (
	"log/slog"
	"net/http"
	"os"
	"path"
)

// staticRoot wraps a service's content directory. http.Dir already
// confines lookups to the root, so traversal attempts resolve inside it.
type staticRoot struct {
	fs  http.Dir
	log *slog.Logger
}

func newStaticRoot(dir string, logger *slog.Logger) staticRoot {
	return staticRoot{fs: http.Dir(dir), log: logger}
}

func (s staticRoot) open(name string) (http.File, os.FileInfo, bool) {
	file, err := s.fs.Open(name)
	if err != nil {
		return nil, nil, false
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, nil, false
	}
	return file, info, true
}

// serveFilePath serves a regular file when present, returning false on a
// miss so the caller can continue its fallback chain. Directories are
// treated as misses.
func (s staticRoot) serveFilePath(w http.ResponseWriter, r *http.Request, name string) bool {
	file, info, ok := s.open(name)
	if !ok {
		return false
	}
	if info.IsDir() {
		_ = file.Close()
		return false
	}
	defer func() { _ = file.Close() }()
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
	return true
}

// serveErrorPage serves the service's 404 document when it exists, or a
// plain 404 otherwise. Filesystem errors degrade to the plain response
// and never escape the service.
func (s staticRoot) serveErrorPage(w http.ResponseWriter, r *http.Request) {
	file, info, ok := s.open("/404.html")
	if !ok || info.IsDir() {
		if ok {
			_ = file.Close()
		}
		http.NotFound(w, r)
		return
	}
	defer func() { _ = file.Close() }()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if r.Method == http.MethodHead {
		return
	}
	buf := make([]byte, 32*1024)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			if _, wErr := w.Write(buf[:n]); wErr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func cleanRequestPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}
