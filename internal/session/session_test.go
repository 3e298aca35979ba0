package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeEmptyFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := NewMemoryStore()
	sess := Session{Authenticated: true, Username: "kim", ExpiresAt: time.Now().Add(time.Hour)}
	if err := m.Put(ctx, "sid-1", sess); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := m.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Username != "kim" || !got.Authenticated {
		t.Fatalf("get: got %+v", got)
	}

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing id: got %v, want ErrNotFound", err)
	}

	if err := m.Delete(ctx, "sid-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.Get(ctx, "sid-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted id: got %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := NewMemoryStore()
	_ = m.Put(ctx, "old", Session{Username: "kim", ExpiresAt: time.Now().Add(-time.Minute)})
	_ = m.Put(ctx, "live", Session{Username: "kim", ExpiresAt: time.Now().Add(time.Hour)})

	if _, err := m.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired session: got %v, want ErrNotFound", err)
	}

	if removed := m.PurgeExpired(time.Now()); removed != 0 {
		// "old" was already dropped by the failed Get.
		t.Fatalf("purge: got %d, want 0", removed)
	}
	if _, err := m.Get(ctx, "live"); err != nil {
		t.Fatalf("live session: %v", err)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()

	ns := &namespaceStore{backend: store, prefix: "app:"}
	sess := Session{Authenticated: true, Username: "kim", ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second)}
	if err := ns.Put(ctx, "sid-1", sess); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := ns.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Username != "kim" || !got.Authenticated {
		t.Fatalf("get: got %+v", got)
	}

	if err := ns.Delete(ctx, "sid-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := ns.Get(ctx, "sid-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted id: got %v, want ErrNotFound", err)
	}
}

func TestSQLiteStoreNamespaceIsolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()

	app := &namespaceStore{backend: store, prefix: "app:"}
	files := &namespaceStore{backend: store, prefix: "files:"}

	sess := Session{Authenticated: true, Username: "kim", ExpiresAt: time.Now().Add(time.Hour)}
	if err := app.Put(ctx, "sid-1", sess); err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, err := files.Get(ctx, "sid-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-namespace read: got %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorePurgeExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()

	ns := &namespaceStore{backend: store, prefix: "app:"}
	_ = ns.Put(ctx, "old", Session{Username: "kim", ExpiresAt: time.Now().Add(-time.Hour)})
	_ = ns.Put(ctx, "live", Session{Username: "kim", ExpiresAt: time.Now().Add(time.Hour)})

	n, err := store.PurgeExpired(ctx, time.Now(), 100)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("purge count: got %d, want 1", n)
	}
	if _, err := ns.Get(ctx, "live"); err != nil {
		t.Fatalf("live session after purge: %v", err)
	}
}

func TestAdapterSharedBackend(t *testing.T) {
	t.Parallel()

	a := NewAdapter(context.Background(), filepath.Join(t.TempDir(), "sessions.db"), 5*time.Second, discardLogger())
	defer func() { _ = a.Close() }()

	if !a.Shared() {
		t.Fatal("expected shared backend to connect")
	}
	if a.Get("app") != a.Get("app") {
		t.Fatal("namespace store should be cached")
	}
}

func TestAdapterFallsBackToMemory(t *testing.T) {
	t.Parallel()

	// A path under a regular file cannot be created, forcing the fallback.
	bad := filepath.Join(t.TempDir(), "occupied")
	writeEmptyFile(t, bad)
	a := NewAdapter(context.Background(), filepath.Join(bad, "sessions.db"), time.Second, discardLogger())
	defer func() { _ = a.Close() }()

	if a.Shared() {
		t.Fatal("expected fallback to in-process stores")
	}

	ctx := context.Background()
	st := a.Get("app")
	sess := Session{Authenticated: true, Username: "kim", ExpiresAt: time.Now().Add(time.Hour)}
	if err := st.Put(ctx, "sid-1", sess); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := st.Get(ctx, "sid-1"); err != nil {
		t.Fatalf("get: %v", err)
	}

	// Namespaces stay isolated in fallback mode too.
	if _, err := a.Get("files").Get(ctx, "sid-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-namespace read: got %v, want ErrNotFound", err)
	}
}
