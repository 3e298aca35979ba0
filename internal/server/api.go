package server

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/homegate/homegate/internal/health"
	"github.com/homegate/homegate/internal/routing"
)

// apiHandler mounts the gateway-owned routes of the privileged API
// service ahead of its configured handler: health probes, Prometheus
// metrics, and the CORS preflight carve-out. These routes answer before
// the session middleware so monitors and cross-origin clients reach them
// without a login.
func (s *Server) apiHandler(configured http.Handler, checker health.Checker) http.Handler {
	healthz := health.NewHandler(s.table, checker, s.log)
	metricsHandler := promhttp.Handler()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/healthz" || strings.HasPrefix(r.URL.Path, "/healthz/"):
			healthz.ServeHTTP(w, r)
		case r.URL.Path == "/metrics":
			metricsHandler.ServeHTTP(w, r)
		case r.URL.Path == routing.PreflightPath:
			s.handlePreflight(w, r)
		default:
			configured.ServeHTTP(w, r)
		}
	})
}

// handlePreflight answers CORS preflight probes on both schemes; the
// normalizer exempts this path from the HTTPS upgrade redirect.
func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Max-Age", "600")
	w.WriteHeader(http.StatusNoContent)
}
