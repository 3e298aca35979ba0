package dispatch

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/homegate/homegate/internal/config"
	"github.com/homegate/homegate/internal/gate"
)

// dirlistHandler serves a browsable file listing. When basic-auth
// credentials are configured, the designated sub-path is gated by HTTP
// Basic authentication, independent of session auth.
type dirlistHandler struct {
	root staticRoot
	log  *slog.Logger
}

func newDirlistHandler(svc config.Service, logger *slog.Logger) (http.Handler, error) {
	var h http.Handler = &dirlistHandler{root: newStaticRoot(svc.Root, logger), log: logger}
	if svc.BasicAuth != nil {
		h = guardSubtree(svc.BasicAuth, h)
	}
	return h, nil
}

// guardSubtree applies Basic auth to requests under the configured path
// and passes everything else through untouched.
func guardSubtree(ba *config.BasicAuth, next http.Handler) http.Handler {
	guarded := gate.RequireBasic(ba.Username, ba.PasswordHash, next)
	prefix := strings.TrimSuffix(ba.Path, "/")
	if prefix == "" {
		return guarded
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := cleanRequestPath(r.URL.Path)
		if clean == prefix || strings.HasPrefix(clean, prefix+"/") {
			guarded.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *dirlistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clean := cleanRequestPath(r.URL.Path)

	file, info, ok := h.root.open(clean)
	if !ok {
		h.root.serveErrorPage(w, r)
		return
	}
	if !info.IsDir() {
		_ = file.Close()
		h.root.serveFilePath(w, r, clean)
		return
	}

	entries, err := file.Readdir(-1)
	_ = file.Close()
	if err != nil {
		h.log.Error("directory read failed", "path", clean, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.renderListing(w, clean, entries)
}

type listingEntry struct {
	Name    string
	Href    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

type listingData struct {
	Path    string
	Parent  string
	Entries []listingEntry
}

func (h *dirlistHandler) renderListing(w http.ResponseWriter, clean string, infos []os.FileInfo) {
	data := listingData{Path: clean}
	if clean != "/" {
		data.Parent = path.Dir(clean)
	}
	for _, info := range infos {
		name := info.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		data.Entries = append(data.Entries, listingEntry{
			Name:    name,
			Href:    path.Join(clean, name),
			IsDir:   info.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(data.Entries, func(i, j int) bool {
		if data.Entries[i].IsDir != data.Entries[j].IsDir {
			return data.Entries[i].IsDir
		}
		return data.Entries[i].Name < data.Entries[j].Name
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := listingTemplate.Execute(w, data); err != nil {
		h.log.Error("listing render failed", "path", clean, "err", err)
	}
}

var listingTemplate = template.Must(template.New("dirlist").Funcs(template.FuncMap{
	"fmtSize": func(size int64) string {
		switch {
		case size >= 1<<30:
			return fmt.Sprintf("%.1f GiB", float64(size)/(1<<30))
		case size >= 1<<20:
			return fmt.Sprintf("%.1f MiB", float64(size)/(1<<20))
		case size >= 1<<10:
			return fmt.Sprintf("%.1f KiB", float64(size)/(1<<10))
		default:
			return fmt.Sprintf("%d B", size)
		}
	},
	"fmtTime": func(t time.Time) string {
		return t.UTC().Format("2006-01-02 15:04")
	},
}).Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Index of {{.Path}}</title>
  <style>
    body { font-family: "Segoe UI", sans-serif; margin: 24px; color: #1c2321; }
    h1 { font-size: 1.2rem; }
    table { border-collapse: collapse; min-width: 480px; }
    th, td { text-align: left; padding: 6px 16px 6px 0; border-bottom: 1px solid #e3e5e4; }
    th { font-size: 0.85rem; color: #5d6b66; }
    a { color: #1f6f54; text-decoration: none; }
    a:hover { text-decoration: underline; }
    .meta { color: #5d6b66; font-size: 0.9rem; white-space: nowrap; }
  </style>
</head>
<body>
  <h1>Index of {{.Path}}</h1>
  <table>
    <tr><th>Name</th><th>Size</th><th>Modified</th></tr>
    {{if .Parent}}<tr><td><a href="{{.Parent}}">../</a></td><td></td><td></td></tr>{{end}}
    {{range .Entries}}
    <tr>
      <td><a href="{{.Href}}">{{.Name}}{{if .IsDir}}/{{end}}</a></td>
      <td class="meta">{{if .IsDir}}&mdash;{{else}}{{fmtSize .Size}}{{end}}</td>
      <td class="meta">{{fmtTime .ModTime}}</td>
    </tr>
    {{end}}
  </table>
</body>
</html>
`))
