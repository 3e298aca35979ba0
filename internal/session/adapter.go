package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Adapter hands out one Store per service namespace. The shared backend
// connection is attempted exactly once at startup; when it fails, every
// namespace gets a process-local store instead. The decision is never
// revisited mid-process: if the shared backend breaks later, individual
// reads and writes fail and the request is treated as unauthenticated,
// rather than silently failing over to divergent local state.
type Adapter struct {
	shared *SQLiteStore
	log    *slog.Logger

	mu     sync.Mutex
	stores map[string]Store
	locals []*MemoryStore
}

// NewAdapter connects to the shared backend at dbPath within
// connectTimeout. On failure it logs the degradation and serves local
// fallback stores for the rest of the process lifetime.
func NewAdapter(ctx context.Context, dbPath string, connectTimeout time.Duration, logger *slog.Logger) *Adapter {
	a := &Adapter{log: logger, stores: make(map[string]Store)}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	shared, err := OpenSQLite(connectCtx, dbPath)
	if err != nil {
		logger.Warn("shared session store unavailable, using in-process fallback",
			"path", dbPath, "err", err)
		return a
	}
	a.shared = shared
	logger.Info("shared session store connected", "path", dbPath)
	return a
}

// Get returns the store for a service namespace, creating it lazily and
// caching it for the process lifetime.
func (a *Adapter) Get(namespace string) Store {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.stores[namespace]; ok {
		return st
	}
	var st Store
	if a.shared != nil {
		st = &namespaceStore{backend: a.shared, prefix: namespace + ":"}
	} else {
		mem := NewMemoryStore()
		a.locals = append(a.locals, mem)
		st = mem
	}
	a.stores[namespace] = st
	return st
}

// Shared reports whether the shared backend is in use.
func (a *Adapter) Shared() bool { return a.shared != nil }

// PurgeExpired removes expired sessions from whichever backend is active.
func (a *Adapter) PurgeExpired(ctx context.Context, now time.Time) {
	if a.shared != nil {
		if n, err := a.shared.PurgeExpired(ctx, now, 1000); err != nil {
			a.log.Error("session purge failed", "err", err)
		} else if n > 0 {
			a.log.Debug("expired sessions purged", "count", n)
		}
		return
	}
	a.mu.Lock()
	locals := make([]*MemoryStore, len(a.locals))
	copy(locals, a.locals)
	a.mu.Unlock()
	for _, mem := range locals {
		mem.PurgeExpired(now)
	}
}

// Close releases the shared backend connection, if any.
func (a *Adapter) Close() error {
	if a.shared == nil {
		return nil
	}
	return a.shared.Close()
}
