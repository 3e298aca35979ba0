// Package guard implements the pre-HTTP admission check: a blocklist
// consulted for every inbound connection and every websocket upgrade,
// plus the asynchronous bot-suspicion reporting hook.
package guard

import (
	"log/slog"
	"net"
	"sync"

	"github.com/homegate/homegate/internal/metrics"
	"github.com/homegate/homegate/internal/netutil"
)

// Reporter is the bot-guard collaborator. ReportSuspicious may mutate the
// blocklist after scoring; the guard never waits for it.
type Reporter interface {
	ReportSuspicious(ip, url, host string)
}

// Blocklist is a concurrency-safe set of normalized IP strings. One
// external writer (the bot guard) mutates it; admission checks only read.
type Blocklist struct {
	mu  sync.RWMutex
	ips map[string]struct{}
}

// NewBlocklist builds a blocklist from an initial snapshot of IPs.
func NewBlocklist(ips []string) *Blocklist {
	b := &Blocklist{ips: make(map[string]struct{}, len(ips))}
	for _, ip := range ips {
		b.ips[netutil.NormalizePeerIP(ip)] = struct{}{}
	}
	return b
}

// Contains reports whether the normalized IP is blocked.
func (b *Blocklist) Contains(ip string) bool {
	b.mu.RLock()
	_, ok := b.ips[ip]
	b.mu.RUnlock()
	return ok
}

// Add inserts an IP. Called by the bot-guard collaborator.
func (b *Blocklist) Add(ip string) {
	b.mu.Lock()
	b.ips[netutil.NormalizePeerIP(ip)] = struct{}{}
	b.mu.Unlock()
}

// Len returns the number of blocked IPs.
func (b *Blocklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ips)
}

// Guard decides admission for raw connections and upgrade handshakes.
type Guard struct {
	blocklist *Blocklist
	reporter  Reporter
	log       *slog.Logger
}

// New creates a Guard. reporter may be nil when no bot guard is wired.
func New(blocklist *Blocklist, reporter Reporter, logger *slog.Logger) *Guard {
	return &Guard{blocklist: blocklist, reporter: reporter, log: logger}
}

// Admit returns false when the peer address is blocklisted. The check is
// a single in-memory lookup; it never performs I/O.
func (g *Guard) Admit(remoteAddr string) bool {
	ip := netutil.NormalizePeerIP(remoteAddr)
	if g.blocklist.Contains(ip) {
		metrics.ConnectionsRejected.Inc()
		return false
	}
	return true
}

// Observe hands the request coordinates to the bot guard for scoring.
// Fire-and-forget: the current request's admission decision has already
// been made by Admit.
func (g *Guard) Observe(remoteAddr, url, host string) {
	if g.reporter == nil {
		return
	}
	ip := netutil.NormalizePeerIP(remoteAddr)
	go g.reporter.ReportSuspicious(ip, url, host)
}

// Listener wraps a net.Listener and destroys blocklisted connections on
// accept, before any HTTP parsing and without writing a response.
type Listener struct {
	net.Listener
	guard *Guard
	log   *slog.Logger
}

// NewListener wraps ln with the guard's admission check.
func NewListener(ln net.Listener, g *Guard, logger *slog.Logger) *Listener {
	return &Listener{Listener: ln, guard: g, log: logger}
}

// Accept waits for the next admissible connection. Rejected connections
// are closed immediately and never surfaced to the HTTP server.
func (l *Listener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}
		addr := conn.RemoteAddr().String()
		if l.guard.Admit(addr) {
			return conn, nil
		}
		_ = conn.Close()
		l.log.Debug("connection rejected", "peer", netutil.NormalizePeerIP(addr))
	}
}
