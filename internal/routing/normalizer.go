package routing

import (
	"strings"

	"github.com/homegate/homegate/internal/config"
	"github.com/homegate/homegate/internal/netutil"
)

// ACMEChallengePrefix marks paths that must stay reachable over plain
// HTTP for certificate validation.
const ACMEChallengePrefix = "/.well-known/"

// PreflightPath is the CORS preflight carve-out on the privileged API
// service; it must answer on both schemes without redirection.
const PreflightPath = "/preflight"

// Normalizer decides redirects for invalid hosts, www, ACME challenge
// paths, and protocol mismatches. The rule order is load-bearing: ACME
// wins over protocol rules, and www wins over unknown-host handling.
type Normalizer struct {
	table *Table
	mode  string
}

// NewNormalizer creates a Normalizer for the given runtime mode.
func NewNormalizer(table *Table, mode string) *Normalizer {
	return &Normalizer{table: table, mode: mode}
}

// Decide returns a redirect URL, or "" when the request should proceed to
// dispatch. requestURI is the raw path plus query; secure reports whether
// the request arrived over TLS.
func (n *Normalizer) Decide(rawHost, requestURI string, secure bool) string {
	host := netutil.NormalizeHost(rawHost)
	path := requestURI
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	// 1. ACME validation always happens unencrypted. The path suppresses
	// the protocol rules below but not the host rules: validation
	// requests for a misspelled host still bounce to the apex.
	acme := strings.HasPrefix(path, ACMEChallengePrefix)
	if acme && secure {
		return "http://" + host + requestURI
	}

	// 2. www collapses to the secure apex.
	if strings.HasPrefix(host, "www.") {
		return "https://" + n.table.Apex() + requestURI
	}

	// 3. Hosts that resolve to nothing bounce to the apex.
	name, svc, known := n.table.Lookup(host)
	if !known && host != n.table.Apex() {
		return "http://" + n.table.Apex() + requestURI
	}

	if acme {
		return ""
	}

	// 4. Insecure services downgrade.
	if known && svc.Protocol == config.ProtocolInsecure {
		if secure {
			return "http://" + host + requestURI
		}
		return ""
	}

	// 5. Everything else upgrades, outside development/test modes. The
	// API preflight path stays reachable on both schemes.
	if n.mode == config.ModeProduction && !secure {
		if known && name == config.APIService && path == PreflightPath {
			return ""
		}
		if host == n.table.Apex() || (known && svc.Protocol == config.ProtocolSecure) {
			return "https://" + host + requestURI
		}
	}

	return ""
}
