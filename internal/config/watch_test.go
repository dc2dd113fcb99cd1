package config

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/lidarscan/internal/monitoring"
)

func TestWatchReloadsOnWrite(t *testing.T) {
	prev := monitoring.Logf
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(prev) })

	path := writeConfig(t, "scanner.json", `{"instant_ray_count": 10}`)

	var (
		mu   sync.Mutex
		seen []int
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 10*time.Millisecond, func(cfg *ScannerConfig) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, cfg.GetInstantRayCount())
		})
	}()

	last := func() int {
		mu.Lock()
		defer mu.Unlock()
		if len(seen) == 0 {
			return -1
		}
		return seen[len(seen)-1]
	}

	// The watcher may not be registered yet on the first write, so keep
	// rewriting until a reload is observed.
	deadline := time.Now().Add(5 * time.Second)
	for last() != 20 {
		if time.Now().After(deadline) {
			t.Fatalf("config change not observed, last value %d", last())
		}
		_ = os.WriteFile(path, []byte(`{"instant_ray_count": 20}`), 0644)
		time.Sleep(50 * time.Millisecond)
	}

	// An invalid document is skipped and the previous value stands.
	if err := os.WriteFile(path, []byte(`{"instant_ray_count": 30, "sweep_rate": 0}`), 0644); err != nil {
		t.Fatalf("Failed to rewrite config: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if got := last(); got != 20 {
		t.Errorf("last reload = %d, want 20 (invalid config must be ignored)", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v after cancel", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	err := Watch(context.Background(), "/nonexistent/dir/scanner.json", 0, func(*ScannerConfig) {})
	if err == nil {
		t.Error("expected an error for a missing directory")
	}
}
