// Package dispatch builds the per-service request handlers: index, spa,
// dirlist, and proxy variants, plus the hybrid static+proxy combination.
// One handler is constructed per service descriptor at startup and
// resolved per request by host lookup.
package dispatch

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/homegate/homegate/internal/config"
	"github.com/homegate/homegate/internal/gate"
	"github.com/homegate/homegate/internal/metrics"
)

// NewHandler constructs the handler for one service. The returned handler
// is immutable and safe for concurrent use; any error it produces is
// scoped to the single request, never to sibling services.
func NewHandler(name string, svc config.Service, g *gate.Gate, logger *slog.Logger) (http.Handler, error) {
	logger = logger.With("service", name)

	var h http.Handler
	var err error
	switch svc.Type {
	case config.TypeProxy:
		h, err = newProxyHandler(name, svc.Proxy, logger)
	case config.TypeIndex:
		h, err = newIndexHandler(name, svc, logger)
	case config.TypeSPA:
		h, err = newSPAHandler(svc.Root, logger)
	case config.TypeDirlist:
		h, err = newDirlistHandler(svc, logger)
	default:
		return nil, fmt.Errorf("service %q: unknown type %q", name, svc.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("service %q: %w", name, err)
	}

	if svc.RequireAuth {
		h = g.Protect(name, svc.Protocol == config.ProtocolSecure, h)
	}
	return instrument(name, h), nil
}

// instrument counts dispatched requests per service and status class.
func instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.RequestsTotal.WithLabelValues(name, statusClass(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.written {
		r.status = status
		r.written = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.written = true
	return r.ResponseWriter.Write(b)
}

// Flush keeps streaming proxies working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
