package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/acme/autocert"

	"github.com/homegate/homegate/internal/config"
	"github.com/homegate/homegate/internal/netutil"
)

type staticCertificate struct {
	cert tls.Certificate
	leaf *x509.Certificate
}

// buildTLS assembles the TLS termination config: a static wildcard
// certificate when present, with dynamic per-host ACME as configured
// fallback. Certificate issuance itself is the ACME client's business;
// the gateway only terminates.
func (s *Server) buildTLS() (*autocert.Manager, *tls.Config, error) {
	var manager *autocert.Manager
	if s.cfg.TLSMode != config.TLSModeWildcard {
		manager = &autocert.Manager{
			Cache:  autocert.DirCache(s.cfg.CertCacheDir),
			Prompt: autocert.AcceptTOS,
			HostPolicy: func(_ context.Context, host string) error {
				host = netutil.NormalizeHost(host)
				if _, _, ok := s.table.Lookup(host); ok || host == s.table.Apex() {
					return nil
				}
				return errors.New("host not allowed")
			},
		}
	}

	staticCert, err := s.loadStaticCertificate()
	if err != nil {
		return nil, nil, err
	}

	var tlsConfig *tls.Config
	if manager != nil {
		tlsConfig = manager.TLSConfig()
	} else {
		tlsConfig = &tls.Config{}
	}
	tlsConfig.GetCertificate = func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
		host := netutil.NormalizeHost(hello.ServerName)
		if staticCert != nil && staticCert.supportsHost(host) {
			return &staticCert.cert, nil
		}
		if s.cfg.TLSMode == config.TLSModeWildcard {
			return nil, fmt.Errorf("wildcard TLS certificate does not cover host %q", host)
		}
		if manager == nil {
			return nil, errors.New("dynamic TLS is not available")
		}
		return manager.GetCertificate(hello)
	}
	return manager, tlsConfig, nil
}

func (s *Server) loadStaticCertificate() (*staticCertificate, error) {
	certFile := strings.TrimSpace(s.cfg.TLSCertFile)
	keyFile := strings.TrimSpace(s.cfg.TLSKeyFile)
	if s.cfg.TLSMode == config.TLSModeDynamic {
		return nil, nil
	}

	if certFile == "" && keyFile == "" {
		defaultCertFile := filepath.Join(s.cfg.CertCacheDir, "wildcard.crt")
		defaultKeyFile := filepath.Join(s.cfg.CertCacheDir, "wildcard.key")
		if !fileExists(defaultCertFile) || !fileExists(defaultKeyFile) {
			if s.cfg.TLSMode == config.TLSModeWildcard {
				return nil, fmt.Errorf("wildcard TLS mode requires certificate files at %s and %s (or set HOMEGATE_TLS_CERT_FILE / HOMEGATE_TLS_KEY_FILE)", defaultCertFile, defaultKeyFile)
			}
			return nil, nil
		}
		certFile = defaultCertFile
		keyFile = defaultKeyFile
	}
	if certFile == "" || keyFile == "" {
		if s.cfg.TLSMode == config.TLSModeWildcard {
			return nil, errors.New("wildcard TLS mode requires both cert and key files")
		}
		s.log.Warn("incomplete static TLS configuration, using dynamic per-host ACME",
			"tls_cert_file", certFile, "tls_key_file", keyFile)
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		if s.cfg.TLSMode == config.TLSModeWildcard {
			return nil, fmt.Errorf("wildcard TLS mode requires a valid static certificate: %w", err)
		}
		s.log.Warn("failed to load static TLS certificate, using dynamic per-host ACME",
			"cert_file", certFile, "key_file", keyFile, "err", err)
		return nil, nil
	}
	var leaf *x509.Certificate
	if len(cert.Certificate) > 0 {
		leaf, _ = x509.ParseCertificate(cert.Certificate[0])
	}
	if leaf != nil && s.cfg.TLSMode == config.TLSModeWildcard {
		apex := s.table.Apex()
		if err := leaf.VerifyHostname(apex); err != nil {
			return nil, fmt.Errorf("wildcard TLS certificate must include %s: %w", apex, err)
		}
		if err := leaf.VerifyHostname("check." + apex); err != nil {
			return nil, fmt.Errorf("wildcard TLS certificate must include *.%s: %w", apex, err)
		}
	}
	s.log.Info("static TLS certificate loaded", "cert_file", certFile, "key_file", keyFile)
	return &staticCertificate{cert: cert, leaf: leaf}, nil
}

func (c *staticCertificate) supportsHost(host string) bool {
	if c == nil {
		return false
	}
	if host == "" || c.leaf == nil {
		return true
	}
	return c.leaf.VerifyHostname(host) == nil
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
