package cli

import "fmt"

// Version is set at build time via -ldflags.
var Version = "dev"

func printVersion() {
	fmt.Println("homegate", Version)
}

func printUsage() {
	fmt.Println(`homegate - self-hosted service gateway

Route subdomains of one apex domain to local services behind a single
pair of listeners, with per-service authentication.

Usage:
  homegate serve                  Start the gateway (default command)
  homegate serve --mode=development   Skip HTTPS upgrade redirects locally
  homegate hashpw                 Print a bcrypt hash for users.json
  homegate version                Print version
  homegate help                   Show this help

Configuration directory (default ./config):
  domain.json     Apex domain, root service, and service definitions
  users.json      Non-admin accounts with per-service grants
  secrets.json    Admin credentials and the persisted session secret
  blocklist.json  IPs rejected at the TCP accept stage

Environment Variables:
  HOMEGATE_LISTEN_HTTP      HTTP listen address (default :10080)
  HOMEGATE_LISTEN_HTTPS     HTTPS listen address (default :10443)
  HOMEGATE_CONFIG_DIR       Configuration directory (default ./config)
  HOMEGATE_SESSION_DB       Shared session store path (default ./data/sessions.db)
  HOMEGATE_MODE             Runtime mode: production|development|test
  HOMEGATE_TLS_MODE         TLS mode: auto|dynamic|wildcard (default auto)
  HOMEGATE_CERT_CACHE_DIR   TLS certificate cache dir (default ./cert)
  HOMEGATE_LOG_LEVEL        Log level: debug|info|warn|error (default info)
  HOMEGATE_LOG_FORMAT       Log format: text|json (default text)

Configuration is read once at startup. Send SIGHUP (or rewrite the
config and restart) to apply changes; serve exits with code 3 when a
restart was requested.`)
}
