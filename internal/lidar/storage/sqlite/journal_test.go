package sqlite

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarscan/internal/lidar/scan"
	"github.com/banshee-data/lidarscan/internal/lidar/scene"
	"github.com/banshee-data/lidarscan/internal/monitoring"
)

var _ scan.PassObserver = (*Journal)(nil)

func openTestJournal(t *testing.T, queueSize int) *Journal {
	t.Helper()
	prev := monitoring.Logf
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(prev) })

	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), queueSize)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func summary(id string, mode scan.Mode, at time.Time) scan.PassSummary {
	return scan.PassSummary{
		PassID:        id,
		ScannerID:     "scanner-01",
		Mode:          mode,
		VerticalAngle: -12.5,
		Rays:          20,
		Hits:          17,
		Overrides:     3,
		Committed:     true,
		Duration:      1500 * time.Microsecond,
		At:            at,
	}
}

func TestOpen_AppliesMigrations(t *testing.T) {
	j := openTestJournal(t, 0)

	version, dirty, err := j.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Reopening a current database is a no-op migration.
	again, err := Open(j.path, 0)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestMigrateDownAndUp(t *testing.T) {
	j := openTestJournal(t, 0)
	ctx := context.Background()

	require.NoError(t, j.MigrateDown())
	version, _, err := j.MigrateVersion()
	require.NoError(t, err)
	assert.Zero(t, version)
	_, err = j.ListRecent(ctx, 1)
	assert.Error(t, err, "table should be gone")

	require.NoError(t, j.MigrateUp())
	_, err = j.ListRecent(ctx, 1)
	assert.NoError(t, err)
}

func TestRecordAndListRecent(t *testing.T) {
	j := openTestJournal(t, 0)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	want := []scan.PassSummary{
		summary("c", scan.ModeSweep, base.Add(2*time.Second)),
		summary("b", scan.ModeInstant, base.Add(time.Second)),
		summary("a", scan.ModeInstant, base),
	}
	want[1].Committed = false
	for i := len(want) - 1; i >= 0; i-- {
		require.NoError(t, j.Record(ctx, want[i]))
	}

	got, err := j.ListRecent(ctx, 0)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListRecent mismatch (-want +got):\n%s", diff)
	}

	got, err = j.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].PassID)
}

func TestRecord_ReplacesSamePassID(t *testing.T) {
	j := openTestJournal(t, 0)
	ctx := context.Background()
	s := summary("same", scan.ModeInstant, time.Unix(10, 0).UTC())

	require.NoError(t, j.Record(ctx, s))
	s.Hits = 1
	require.NoError(t, j.Record(ctx, s))

	got, err := j.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Hits)
}

func TestRecord_RequiresPassID(t *testing.T) {
	j := openTestJournal(t, 0)
	assert.Error(t, j.Record(context.Background(), scan.PassSummary{}))
}

func TestRun_WritesObservedPasses(t *testing.T) {
	j := openTestJournal(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	for _, id := range []string{"p1", "p2", "p3"} {
		j.ObservePass(summary(id, scan.ModeSweep, time.Now()))
	}
	require.Eventually(t, func() bool { return j.Stats().Written == 3 },
		2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	got, err := j.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestObservePass_DropsWhenFull(t *testing.T) {
	j := openTestJournal(t, 1)

	j.ObservePass(summary("kept", scan.ModeInstant, time.Unix(1, 0)))
	j.ObservePass(summary("lost", scan.ModeInstant, time.Unix(2, 0)))

	stats := j.Stats()
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, 1, stats.Pending)

	// A cancelled Run still flushes what is queued.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, j.Run(ctx))

	got, err := j.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].PassID)
	assert.Equal(t, uint64(1), j.Stats().Written)
}

func TestTotals(t *testing.T) {
	j := openTestJournal(t, 0)
	ctx := context.Background()
	last := time.Date(2026, 3, 1, 0, 0, 9, 0, time.UTC)

	require.NoError(t, j.Record(ctx, summary("i1", scan.ModeInstant, last.Add(-time.Second))))
	skipped := summary("i2", scan.ModeInstant, last)
	skipped.Committed = false
	require.NoError(t, j.Record(ctx, skipped))
	require.NoError(t, j.Record(ctx, summary("s1", scan.ModeSweep, last)))

	got, err := j.Totals(ctx)
	require.NoError(t, err)
	want := []ModeTotals{
		{ScannerID: "scanner-01", Mode: scan.ModeInstant, Passes: 2, Rays: 40, Hits: 34, Overrides: 6, Skipped: 1, LastAt: last},
		{ScannerID: "scanner-01", Mode: scan.ModeSweep, Passes: 1, Rays: 20, Hits: 17, Overrides: 3, Skipped: 0, LastAt: last},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Totals mismatch (-want +got):\n%s", diff)
	}
}

func TestJournalAsControllerObserver(t *testing.T) {
	j := openTestJournal(t, 0)
	wall := scene.New(scene.Object{
		Actor: "wall",
		Shape: scene.Plane{Point: r3.Vec{X: 400}, Normal: r3.Vec{X: -1}},
	})
	ctrl, err := scan.NewController(scan.DefaultConfig(), wall, scene.FixedPose{}, scan.WithObserver(j))
	require.NoError(t, err)

	ctrl.RunInstantScan()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, j.Run(ctx))

	got, err := j.ListRecent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, scan.ModeInstant, got[0].Mode)
	assert.Equal(t, ctrl.LastPass().PassID, got[0].PassID)
	assert.Equal(t, ctrl.LastPass().Hits, got[0].Hits)
}

func TestAttachAdminRoutes(t *testing.T) {
	j := openTestJournal(t, 0)
	mux := http.NewServeMux()
	require.NoError(t, j.AttachAdminRoutes(mux))

	req := httptest.NewRequest(http.MethodGet, "/debug/", nil)
	req.RemoteAddr = "127.0.0.1:4321"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Scan journal SQL console")
}
