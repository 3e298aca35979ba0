package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/homegate/homegate/internal/auth"
	"github.com/homegate/homegate/internal/config"
	"github.com/homegate/homegate/internal/debughttp"
	ilog "github.com/homegate/homegate/internal/log"
	"github.com/homegate/homegate/internal/server"
)

// ExitRestart signals the supervisor that the process shut down to pick
// up rewritten configuration and should be started again.
const ExitRestart = 3

func runServe(ctx context.Context, args []string) int {
	cfg, err := config.ParseServerFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "serve command error:", err)
		return 2
	}

	logger := ilog.New(cfg.LogLevel, cfg.LogFormat)

	domain, err := config.LoadDomain(cfg.ConfigDir)
	if err != nil {
		logger.Error("load domain config", "dir", cfg.ConfigDir, "err", err)
		return 1
	}
	users, err := config.LoadUsers(cfg.ConfigDir)
	if err != nil {
		logger.Error("load users config", "dir", cfg.ConfigDir, "err", err)
		return 1
	}
	secrets, err := config.LoadSecrets(cfg.ConfigDir)
	if err != nil {
		logger.Error("load secrets config", "dir", cfg.ConfigDir, "err", err)
		return 1
	}
	blocklist, err := config.LoadBlocklist(cfg.ConfigDir)
	if err != nil {
		logger.Error("load blocklist", "dir", cfg.ConfigDir, "err", err)
		return 1
	}

	// The session secret is minted on first start and persisted so that
	// cookies survive restarts.
	if secrets.SessionSecret == "" {
		secret, err := auth.GenerateSessionSecret()
		if err != nil {
			logger.Error("generate session secret", "err", err)
			return 1
		}
		secrets.SessionSecret = secret
		if err := config.SaveSecrets(cfg.ConfigDir, secrets); err != nil {
			logger.Error("persist session secret", "dir", cfg.ConfigDir, "err", err)
			return 1
		}
		logger.Info("generated session secret", "dir", cfg.ConfigDir)
	}

	srv, err := server.New(ctx, server.Options{
		Config:    cfg,
		Domain:    domain,
		Users:     users,
		Secrets:   secrets,
		Blocklist: blocklist,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("server setup failed", "err", err)
		return 1
	}

	if err := debughttp.StartPprofServer(ctx, cfg.PprofAddr, logger); err != nil {
		logger.Error("start pprof server", "addr", cfg.PprofAddr, "err", err)
		return 1
	}

	// Configuration is observed only at startup. SIGHUP requests an
	// orderly shutdown so the supervisor can restart the process.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			srv.NotifyConfigChanged()
		}
	}()

	logger.Info("starting gateway",
		"domain", domain.Domain,
		"mode", cfg.Mode,
		"http", cfg.ListenHTTP,
		"https", cfg.ListenHTTPS,
	)

	switch err := srv.Run(ctx); {
	case err == nil:
		logger.Info("gateway stopped")
		return 0
	case errors.Is(err, server.ErrRestartRequested):
		logger.Info("gateway stopped for restart")
		return ExitRestart
	default:
		logger.Error("gateway failed", "err", err)
		return 1
	}
}
