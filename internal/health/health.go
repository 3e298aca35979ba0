// Package health routes per-service health probes to the external health
// checker. The probe implementations (HTTP, game-query, custom binary)
// live outside the gateway; only the contract is defined here.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/homegate/homegate/internal/config"
	"github.com/homegate/homegate/internal/routing"
)

// Report is the checker's verdict for one service.
type Report struct {
	Service   string    `json:"service"`
	Healthy   bool      `json:"healthy"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Checker is the external health-probe collaborator.
type Checker interface {
	CheckService(ctx context.Context, name string, hc config.Healthcheck) (Report, error)
}

const checkTimeout = 10 * time.Second

// NewHandler serves /healthz (gateway liveness) and /healthz/<service>
// for every configured service carrying a healthcheck descriptor.
func NewHandler(table *routing.Table, checker Checker, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/healthz")
		name = strings.Trim(name, "/")
		if name == "" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}

		svc, ok := table.Service(name)
		if !ok || svc.Healthcheck == nil {
			http.NotFound(w, r)
			return
		}
		if checker == nil {
			http.Error(w, "health checker not configured", http.StatusNotImplemented)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()
		report, err := checker.CheckService(ctx, name, *svc.Healthcheck)
		if err != nil {
			logger.Error("health check failed", "service", name, "err", err)
			report = Report{Service: name, Healthy: false, Detail: err.Error(), CheckedAt: time.Now()}
		}

		status := http.StatusOK
		if !report.Healthy {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	})
}
