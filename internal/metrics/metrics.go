// Package metrics exposes the gateway's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsRejected counts connections and upgrade attempts
	// terminated by the admission guard.
	ConnectionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homegate_connections_rejected_total",
		Help: "Connections terminated by the blocklist admission guard.",
	})

	// RequestsTotal counts dispatched requests per service.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homegate_requests_total",
		Help: "Requests dispatched, labelled by service and status class.",
	}, []string{"service", "class"})

	// AuthFailures counts failed logins per service.
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homegate_auth_failures_total",
		Help: "Failed login attempts, labelled by service.",
	}, []string{"service"})

	// UpstreamErrors counts proxy upstream failures per service.
	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homegate_upstream_errors_total",
		Help: "Proxy upstream failures, labelled by service.",
	}, []string{"service"})

	// WSUpgrades counts websocket upgrade relays per host.
	WSUpgrades = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homegate_ws_upgrades_total",
		Help: "Websocket upgrades relayed, labelled by host.",
	}, []string{"host"})
)
