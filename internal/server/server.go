// Package server wires the gateway pipeline: guarded listeners, TLS
// termination, host/protocol normalization, per-service auth, dispatch,
// and the out-of-band websocket upgrade router.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/homegate/homegate/internal/config"
	"github.com/homegate/homegate/internal/dispatch"
	"github.com/homegate/homegate/internal/gate"
	"github.com/homegate/homegate/internal/guard"
	"github.com/homegate/homegate/internal/health"
	"github.com/homegate/homegate/internal/netutil"
	"github.com/homegate/homegate/internal/routing"
	"github.com/homegate/homegate/internal/session"
)

// ErrRestartRequested is returned from Run after an orderly shutdown
// triggered by a configuration-change notification. Configuration is
// never hot-reloaded; the process restarts to observe writes.
var ErrRestartRequested = errors.New("restart requested")

// Server is the gateway process: two listeners (HTTP and TLS) sharing
// one request pipeline and one admission guard.
type Server struct {
	cfg        config.ServerConfig
	table      *routing.Table
	normalizer *routing.Normalizer
	guard      *guard.Guard
	gate       *gate.Gate
	sessions   *session.Adapter
	handlers   map[string]http.Handler
	upgrades   *upgradeRouter
	log        *slog.Logger
	restartCh  chan struct{}
}

// Options carries the collaborators assembled by the CLI.
type Options struct {
	Config    config.ServerConfig
	Domain    *config.Domain
	Users     []config.User
	Secrets   *config.Secrets
	Blocklist []string
	Reporter  guard.Reporter
	Checker   health.Checker
	Logger    *slog.Logger
}

// New builds the immutable service table and one handler per service.
// After New returns, nothing mutates the routing configuration.
func New(ctx context.Context, opts Options) (*Server, error) {
	logger := opts.Logger
	table := routing.Build(opts.Domain)

	sessions := session.NewAdapter(ctx, opts.Config.SessionDBPath, opts.Config.SessionConnectTimeout, logger)
	g := gate.New(opts.Users, opts.Secrets, sessions, opts.Config.SessionTTL, logger)
	blocklist := guard.NewBlocklist(opts.Blocklist)
	admission := guard.New(blocklist, opts.Reporter, logger)

	s := &Server{
		cfg:        opts.Config,
		table:      table,
		normalizer: routing.NewNormalizer(table, opts.Config.Mode),
		guard:      admission,
		gate:       g,
		sessions:   sessions,
		handlers:   make(map[string]http.Handler),
		log:        logger,
		restartCh:  make(chan struct{}),
	}
	s.upgrades = newUpgradeRouter(table, admission, logger)

	for _, name := range table.Names() {
		svc, _ := table.Service(name)
		h, err := dispatch.NewHandler(name, svc, g, logger)
		if err != nil {
			return nil, err
		}
		if name == config.APIService {
			h = s.apiHandler(h, opts.Checker)
		}
		s.handlers[name] = h
	}
	return s, nil
}

// Handler returns the shared request pipeline. The same handler serves
// both listeners; scheme-sensitive decisions read the request's TLS
// state.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Upgrade handshakes bypass the HTTP pipeline entirely.
		if netutil.IsUpgradeRequest(r.Header) {
			s.upgrades.ServeHTTP(w, r)
			return
		}

		// The guard already admitted this connection; hand the request
		// coordinates to the bot guard for asynchronous scoring.
		s.guard.Observe(r.RemoteAddr, r.URL.RequestURI(), r.Host)

		secure := r.TLS != nil
		if target := s.normalizer.Decide(r.Host, r.URL.RequestURI(), secure); target != "" {
			http.Redirect(w, r, target, http.StatusFound)
			return
		}

		host := netutil.NormalizeHost(r.Host)
		name, _, ok := s.table.Lookup(host)
		if !ok {
			// Only the apex without a configured root service lands here;
			// unknown hosts were redirected by the normalizer.
			http.NotFound(w, r)
			return
		}
		s.handlers[name].ServeHTTP(w, r)
	})
}

// NotifyConfigChanged requests an orderly shutdown so the process can be
// restarted against the rewritten configuration. Safe to call once; later
// calls are no-ops.
func (s *Server) NotifyConfigChanged() {
	select {
	case <-s.restartCh:
	default:
		close(s.restartCh)
	}
}

// Run serves until ctx is cancelled, a listener fails, or a restart is
// requested. In-flight requests get ShutdownTimeout to finish.
func (s *Server) Run(ctx context.Context) error {
	defer func() { _ = s.sessions.Close() }()

	manager, tlsConfig, err := s.buildTLS()
	if err != nil {
		return err
	}

	root := s.Handler()
	httpHandler := root
	if manager != nil {
		// HTTP-01 challenges answer on the plain listener; everything
		// else flows into the normal pipeline.
		httpHandler = manager.HTTPHandler(root)
	}

	httpLn, err := s.listen(s.cfg.ListenHTTP)
	if err != nil {
		return fmt.Errorf("http listener: %w", err)
	}
	httpsLn, err := s.listen(s.cfg.ListenHTTPS)
	if err != nil {
		_ = httpLn.Close()
		return fmt.Errorf("https listener: %w", err)
	}

	httpServer := &http.Server{
		Handler:           httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpsServer := &http.Server{
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         tlsConfig,
	}

	errCh := make(chan error, 2)
	go func() {
		s.log.Info("starting HTTP server", "addr", s.cfg.ListenHTTP)
		if err := httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		s.log.Info("starting HTTPS server", "addr", s.cfg.ListenHTTPS)
		if err := httpsServer.ServeTLS(httpsLn, "", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("https server: %w", err)
		}
	}()

	go s.runJanitor(ctx)

	shutdown := func() error {
		var firstErr error
		for _, srv := range []*http.Server{httpServer, httpsServer} {
			if err := shutdownServer(srv, s.cfg.ShutdownTimeout); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	select {
	case <-ctx.Done():
		return shutdown()
	case <-s.restartCh:
		s.log.Info("configuration changed, shutting down for restart")
		if err := shutdown(); err != nil {
			return err
		}
		return ErrRestartRequested
	case err := <-errCh:
		_ = shutdown()
		return err
	}
}

// listen opens a TCP listener wrapped with the admission guard, so
// blocklisted peers are destroyed before any HTTP parsing.
func (s *Server) listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return guard.NewListener(ln, s.guard, s.log), nil
}

const sessionPurgeInterval = 10 * time.Minute

func (s *Server) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sessions.PurgeExpired(ctx, time.Now())
		}
	}
}

func shutdownServer(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
