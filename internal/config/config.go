// Package config defines the gateway's domain configuration, the external
// user/secret/blocklist snapshots, and server process settings. The domain
// configuration is loaded once at process start and never mutated while
// dispatching; configuration writes happen out of process and require a
// restart to take effect.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Service types determine which dispatcher variant handles a service.
const (
	TypeIndex   = "index"
	TypeSPA     = "spa"
	TypeDirlist = "dirlist"
	TypeProxy   = "proxy"
)

// Service protocols decide whether the normalizer upgrades or downgrades
// the request scheme.
const (
	ProtocolSecure   = "secure"
	ProtocolInsecure = "insecure"
)

// APIService is the privileged API service name. It carries its own
// admin-only authentication and the CORS preflight carve-out.
const APIService = "api"

// DefaultRootService is the service serving the apex domain when the
// configuration does not name one.
const DefaultRootService = "home"

var serviceNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ProxyTarget describes an upstream a service forwards to.
type ProxyTarget struct {
	URL       string `json:"url"`
	Path      string `json:"path,omitempty"`
	WebSocket bool   `json:"webSocket,omitempty"`
}

// BasicAuth gates a dirlist sub-path with HTTP Basic authentication.
type BasicAuth struct {
	Path         string `json:"path"`
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
}

// Healthcheck is an opaque descriptor handed to the external health
// checker; the gateway only routes it.
type Healthcheck struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

// Service is the per-service routing descriptor.
type Service struct {
	Type        string       `json:"type"`
	Protocol    string       `json:"protocol"`
	RequireAuth bool         `json:"requireAuth,omitempty"`
	Root        string       `json:"root,omitempty"`
	BasicAuth   *BasicAuth   `json:"basicAuth,omitempty"`
	Proxy       *ProxyTarget `json:"proxy,omitempty"`
	Healthcheck *Healthcheck `json:"healthcheck,omitempty"`
}

// Hybrid reports whether a static service also forwards a path prefix to
// an upstream.
func (s Service) Hybrid() bool {
	return s.Type != TypeProxy && s.Proxy != nil && s.Proxy.Path != ""
}

// Domain is the root domain configuration record.
type Domain struct {
	Domain      string             `json:"domain"`
	RootService string             `json:"rootService,omitempty"`
	Services    map[string]Service `json:"services"`
}

// User is an externally maintained account record. The Services set lists
// service names the user may access; "*" grants all.
type User struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	PasswordHash string   `json:"passwordHash"`
	Services     []string `json:"services"`
}

// Secrets holds the admin identity and the session signing secret. The
// session secret is generated lazily on first use and persisted so that
// restarts keep existing sessions valid.
type Secrets struct {
	AdminEmail        string `json:"adminEmail"`
	AdminPasswordHash string `json:"adminPasswordHash"`
	SessionSecret     string `json:"sessionSecret,omitempty"`
}

// Validate checks the invariants the admin API must also enforce before
// writing: a non-empty domain, restricted service keys, and per-type
// descriptor consistency.
func (d *Domain) Validate() error {
	if strings.TrimSpace(d.Domain) == "" {
		return errors.New("domain is required")
	}
	if d.RootService == "" {
		d.RootService = DefaultRootService
	}
	for name, svc := range d.Services {
		if !serviceNameRe.MatchString(name) {
			return fmt.Errorf("service %q: name must match [a-zA-Z0-9_-]+", name)
		}
		if err := svc.validate(); err != nil {
			return fmt.Errorf("service %q: %w", name, err)
		}
	}
	return nil
}

func (s Service) validate() error {
	switch s.Type {
	case TypeIndex, TypeSPA, TypeDirlist, TypeProxy:
	default:
		return fmt.Errorf("unknown type %q", s.Type)
	}
	switch s.Protocol {
	case ProtocolSecure, ProtocolInsecure:
	default:
		return fmt.Errorf("unknown protocol %q", s.Protocol)
	}
	if s.Type == TypeProxy && (s.Proxy == nil || strings.TrimSpace(s.Proxy.URL) == "") {
		return errors.New("proxy type requires a proxy target")
	}
	if s.BasicAuth != nil && s.Type != TypeDirlist {
		return errors.New("basicAuth is only valid for dirlist services")
	}
	if s.BasicAuth != nil {
		if s.BasicAuth.Username == "" || s.BasicAuth.PasswordHash == "" {
			return errors.New("basicAuth requires username and passwordHash")
		}
	}
	return nil
}

// AllowsService reports whether the user's service set contains name or
// the wildcard.
func (u User) AllowsService(name string) bool {
	for _, s := range u.Services {
		if s == "*" || s == name {
			return true
		}
	}
	return false
}
