//go:build integration

// Integration tests for the engine session layer.
// Run with: go test -tags=integration ./internal/engine/
package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestIntegration_CheckpointSettles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "engine.db")

	e, err := Open(ctx, Config{Path: path, SettleInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer e.Close()

	sess, err := e.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if err := sess.Exec(ctx, "CREATE TABLE t (v INTEGER)"); err != nil {
		t.Fatalf("Exec() failed: %v", err)
	}
	if err := sess.Exec(ctx, "INSERT INTO t VALUES (1), (2)"); err != nil {
		t.Fatalf("Exec() failed: %v", err)
	}
	if err := sess.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}

	start := time.Now()
	if err := e.Checkpoint(ctx); err != nil {
		t.Fatalf("Checkpoint() failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("Checkpoint() returned after %v, want at least the settle interval", elapsed)
	}
}
