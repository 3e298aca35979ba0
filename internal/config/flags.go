package config

import (
	"errors"
	"flag"
	"os"
	"strings"
	"time"
)

// Runtime modes. Outside production the normalizer skips the HTTPS
// upgrade redirect so local development works without certificates.
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
	ModeTest        = "test"
)

// TLS termination modes. Auto prefers a static wildcard certificate and
// falls back to per-host ACME; dynamic and wildcard each pin one of the
// two behaviors.
const (
	TLSModeAuto     = "auto"
	TLSModeDynamic  = "dynamic"
	TLSModeWildcard = "wildcard"
)

// ServerConfig holds process settings parsed from flags and environment.
type ServerConfig struct {
	ListenHTTP            string
	ListenHTTPS           string
	ConfigDir             string
	SessionDBPath         string
	SessionTTL            time.Duration
	SessionConnectTimeout time.Duration
	Mode                  string
	TLSMode               string
	CertCacheDir          string
	TLSCertFile           string
	TLSKeyFile            string
	LogLevel              string
	LogFormat             string
	PprofAddr             string
	ShutdownTimeout       time.Duration
}

const defaultListenHTTP = ":10080"
const defaultListenHTTPS = ":10443"
const defaultConfigDir = "./config"
const defaultSessionDBPath = "./data/sessions.db"
const defaultCertCacheDir = "./cert"
const defaultSessionTTL = 30 * 24 * time.Hour
const defaultSessionConnectTimeout = 2 * time.Second
const defaultShutdownTimeout = 10 * time.Second

// ParseServerFlags builds a ServerConfig from environment defaults
// overridden by CLI flags.
func ParseServerFlags(args []string) (ServerConfig, error) {
	cfg := ServerConfig{
		ListenHTTP:            envOrDefault("HOMEGATE_LISTEN_HTTP", defaultListenHTTP),
		ListenHTTPS:           envOrDefault("HOMEGATE_LISTEN_HTTPS", defaultListenHTTPS),
		ConfigDir:             envOrDefault("HOMEGATE_CONFIG_DIR", defaultConfigDir),
		SessionDBPath:         envOrDefault("HOMEGATE_SESSION_DB", defaultSessionDBPath),
		SessionTTL:            defaultSessionTTL,
		SessionConnectTimeout: defaultSessionConnectTimeout,
		Mode:                  envOrDefault("HOMEGATE_MODE", ModeProduction),
		TLSMode:               envOrDefault("HOMEGATE_TLS_MODE", TLSModeAuto),
		CertCacheDir:          envOrDefault("HOMEGATE_CERT_CACHE_DIR", defaultCertCacheDir),
		TLSCertFile:           envOrDefault("HOMEGATE_TLS_CERT_FILE", ""),
		TLSKeyFile:            envOrDefault("HOMEGATE_TLS_KEY_FILE", ""),
		LogLevel:              envOrDefault("HOMEGATE_LOG_LEVEL", "info"),
		LogFormat:             envOrDefault("HOMEGATE_LOG_FORMAT", "text"),
		PprofAddr:             envOrDefault("HOMEGATE_PPROF_ADDR", ""),
		ShutdownTimeout:       defaultShutdownTimeout,
	}

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.StringVar(&cfg.ListenHTTP, "listen-http", cfg.ListenHTTP, "HTTP listen address")
	fs.StringVar(&cfg.ListenHTTPS, "listen-https", cfg.ListenHTTPS, "HTTPS listen address")
	fs.StringVar(&cfg.ConfigDir, "config-dir", cfg.ConfigDir, "Configuration directory (domain.json, users.json, secrets.json, blocklist.json)")
	fs.StringVar(&cfg.SessionDBPath, "session-db", cfg.SessionDBPath, "Shared session store path (SQLite)")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "Runtime mode: production|development|test")
	fs.StringVar(&cfg.TLSMode, "tls-mode", cfg.TLSMode, "TLS mode: auto|dynamic|wildcard")
	fs.StringVar(&cfg.CertCacheDir, "cert-cache-dir", cfg.CertCacheDir, "TLS cert cache dir")
	fs.StringVar(&cfg.TLSCertFile, "tls-cert-file", cfg.TLSCertFile, "Static TLS cert PEM file (optional)")
	fs.StringVar(&cfg.TLSKeyFile, "tls-key-file", cfg.TLSKeyFile, "Static TLS key PEM file (optional)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text|json")
	fs.StringVar(&cfg.PprofAddr, "pprof-addr", cfg.PprofAddr, "Loopback pprof listen address (disabled when empty)")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "Sliding session lifetime")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch cfg.Mode {
	case "":
		cfg.Mode = ModeProduction
	case ModeProduction, ModeDevelopment, ModeTest:
	default:
		return cfg, errors.New("mode must be one of: production, development, test")
	}
	cfg.TLSMode = strings.ToLower(strings.TrimSpace(cfg.TLSMode))
	switch cfg.TLSMode {
	case "":
		cfg.TLSMode = TLSModeAuto
	case TLSModeAuto, TLSModeDynamic, TLSModeWildcard:
	default:
		return cfg, errors.New("tls mode must be one of: auto, dynamic, wildcard")
	}
	if cfg.SessionTTL <= 0 {
		return cfg, errors.New("session ttl must be > 0")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
