package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/homegate/homegate/internal/config"
	"github.com/homegate/homegate/internal/metrics"
)

// newProxyHandler builds a pure reverse proxy to the configured upstream.
// Requests outside the configured path prefix (when set) are not
// forwarded and 404.
func newProxyHandler(name string, target *config.ProxyTarget, logger *slog.Logger) (http.Handler, error) {
	rp, err := newReverseProxy(name, target.URL, logger)
	if err != nil {
		return nil, err
	}
	prefix := target.Path
	if prefix == "" || prefix == "/" {
		return rp, nil
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, prefix) {
			http.NotFound(w, r)
			return
		}
		rp.ServeHTTP(w, r)
	}), nil
}

// newReverseProxy wires an httputil.ReverseProxy with upstream error
// scoping. FlushInterval below zero flushes every write, so streamed
// upstream responses propagate backpressure to the client instead of
// buffering.
func newReverseProxy(name, rawURL string, logger *slog.Logger) (*httputil.ReverseProxy, error) {
	upstream, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, errors.New("proxy target must be an absolute URL")
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
		},
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			// Client disconnects cancel the outbound request; that is
			// not an upstream failure.
			if errors.Is(err, context.Canceled) {
				return
			}
			metrics.UpstreamErrors.WithLabelValues(name).Inc()
			status := http.StatusBadGateway
			if errors.Is(err, context.DeadlineExceeded) {
				status = http.StatusGatewayTimeout
			}
			logger.Error("upstream request failed", "upstream", upstream.Host, "err", err)
			http.Error(w, "upstream unavailable", status)
		},
	}, nil
}
