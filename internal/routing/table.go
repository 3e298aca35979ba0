// Package routing builds the immutable service table and decides host and
// protocol normalization for every request.
package routing

import (
	"sort"

	"github.com/homegate/homegate/internal/config"
	"github.com/homegate/homegate/internal/netutil"
)

// Table is the process-lifetime snapshot of per-service routing
// configuration. It is built once from the domain configuration before
// dispatch begins and never mutated afterwards.
type Table struct {
	apex        string
	rootService string
	services    map[string]config.Service
	byHost      map[string]string
}

// Build constructs the table from a validated domain configuration.
func Build(d *config.Domain) *Table {
	apex := netutil.NormalizeHost(d.Domain)
	t := &Table{
		apex:        apex,
		rootService: d.RootService,
		services:    make(map[string]config.Service, len(d.Services)),
		byHost:      make(map[string]string, len(d.Services)+1),
	}
	for name, svc := range d.Services {
		t.services[name] = svc
		t.byHost[name+"."+apex] = name
	}
	if _, ok := t.services[d.RootService]; ok {
		t.byHost[apex] = d.RootService
	}
	return t
}

// Apex returns the normalized apex domain.
func (t *Table) Apex() string { return t.apex }

// Lookup resolves a request host to a configured service. The host must
// already be normalized.
func (t *Table) Lookup(host string) (string, config.Service, bool) {
	name, ok := t.byHost[host]
	if !ok {
		return "", config.Service{}, false
	}
	return name, t.services[name], true
}

// Service returns the descriptor for a service name.
func (t *Table) Service(name string) (config.Service, bool) {
	svc, ok := t.services[name]
	return svc, ok
}

// Host returns the canonical host for a service name.
func (t *Table) Host(name string) string {
	if name == t.rootService {
		return t.apex
	}
	return name + "." + t.apex
}

// Names returns the configured service names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.services))
	for name := range t.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WebSocketHosts maps hostnames to upstream URLs for services with
// websocket proxying enabled. Used by the upgrade router.
func (t *Table) WebSocketHosts() map[string]string {
	out := make(map[string]string)
	for name, svc := range t.services {
		if svc.Proxy != nil && svc.Proxy.WebSocket {
			out[t.Host(name)] = svc.Proxy.URL
			if name == t.rootService {
				out[name+"."+t.apex] = svc.Proxy.URL
			}
		}
	}
	return out
}
