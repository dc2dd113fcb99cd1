package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/lidarscan/internal/lidar/scan"
	"github.com/banshee-data/lidarscan/internal/monitoring"
)

var logf = monitoring.Component("Journal")

// DefaultQueueSize bounds the number of passes waiting to be written.
const DefaultQueueSize = 256

const defaultListLimit = 50

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

// Journal is a scan.PassObserver that records pass summaries in SQLite.
type Journal struct {
	db      *sql.DB
	path    string
	pending chan scan.PassSummary
	written atomic.Uint64
	dropped atomic.Uint64
}

// JournalStats reports queue activity since Open.
type JournalStats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Pending int    `json:"pending"`
}

// ModeTotals aggregates the journal for one scanner and mode.
type ModeTotals struct {
	ScannerID string    `json:"scanner_id"`
	Mode      scan.Mode `json:"mode"`
	Passes    int       `json:"passes"`
	Rays      int       `json:"rays"`
	Hits      int       `json:"hits"`
	Overrides int       `json:"overrides"`
	Skipped   int       `json:"skipped"`
	LastAt    time.Time `json:"last_at"`
}

// Open opens or creates the journal at path and applies migrations.
// queueSize <= 0 uses DefaultQueueSize.
func Open(path string, queueSize int) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases coherent and serialises writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	j := &Journal{
		db:      db,
		path:    path,
		pending: make(chan scan.PassSummary, queueSize),
	}
	if err := j.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// DB exposes the underlying handle for debugging tools.
func (j *Journal) DB() *sql.DB { return j.db }

// Close closes the database. Run must have returned first.
func (j *Journal) Close() error {
	return j.db.Close()
}

// ObservePass queues s for writing. It never blocks: when the queue is full
// the summary is dropped and counted.
func (j *Journal) ObservePass(s scan.PassSummary) {
	select {
	case j.pending <- s:
	default:
		if j.dropped.Add(1) == 1 {
			logf("queue full, dropping pass summaries")
		}
	}
}

// Run writes queued summaries until ctx is cancelled, then flushes whatever
// is still queued.
func (j *Journal) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			j.flush()
			return nil
		case s := <-j.pending:
			j.write(context.Background(), s)
		}
	}
}

func (j *Journal) flush() {
	for {
		select {
		case s := <-j.pending:
			j.write(context.Background(), s)
		default:
			return
		}
	}
}

func (j *Journal) write(ctx context.Context, s scan.PassSummary) {
	if err := j.Record(ctx, s); err != nil {
		logf("failed to record pass %s: %v", s.PassID, err)
		return
	}
	j.written.Add(1)
}

// Record writes s immediately. A summary with an existing PassID replaces the
// stored row.
func (j *Journal) Record(ctx context.Context, s scan.PassSummary) error {
	if s.PassID == "" {
		return errors.New("pass summary has no pass_id")
	}
	query := `
		INSERT OR REPLACE INTO scan_passes (
			pass_id, scanner_id, mode, vertical_angle, rays, hits, overrides,
			committed, duration_ns, at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := j.db.ExecContext(ctx, query,
		s.PassID,
		s.ScannerID,
		string(s.Mode),
		s.VerticalAngle,
		s.Rays,
		s.Hits,
		s.Overrides,
		s.Committed,
		s.Duration.Nanoseconds(),
		s.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert pass: %w", err)
	}
	return nil
}

// ListRecent returns up to limit summaries, newest first. limit <= 0 uses a
// default of 50.
func (j *Journal) ListRecent(ctx context.Context, limit int) ([]scan.PassSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `
		SELECT pass_id, scanner_id, mode, vertical_angle, rays, hits, overrides,
		       committed, duration_ns, at_ns
		FROM scan_passes
		ORDER BY at_ns DESC, rowid DESC
		LIMIT ?
	`
	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}
	defer rows.Close()

	var passes []scan.PassSummary
	for rows.Next() {
		var s scan.PassSummary
		var mode string
		var durationNs, atNs int64
		if err := rows.Scan(
			&s.PassID,
			&s.ScannerID,
			&mode,
			&s.VerticalAngle,
			&s.Rays,
			&s.Hits,
			&s.Overrides,
			&s.Committed,
			&durationNs,
			&atNs,
		); err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		s.Mode = scan.Mode(mode)
		s.Duration = time.Duration(durationNs)
		s.At = time.Unix(0, atNs).UTC()
		passes = append(passes, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return passes, nil
}

// Totals returns per-scanner, per-mode aggregates.
func (j *Journal) Totals(ctx context.Context) ([]ModeTotals, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT scanner_id, mode, passes, rays, hits, overrides, skipped, last_at_ns
		FROM scan_pass_totals
		ORDER BY scanner_id, mode
	`)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	defer rows.Close()

	var totals []ModeTotals
	for rows.Next() {
		var t ModeTotals
		var mode string
		var lastAtNs int64
		if err := rows.Scan(&t.ScannerID, &mode, &t.Passes, &t.Rays, &t.Hits, &t.Overrides, &t.Skipped, &lastAtNs); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		t.Mode = scan.Mode(mode)
		t.LastAt = time.Unix(0, lastAtNs).UTC()
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return totals, nil
}

// Stats returns queue counters.
func (j *Journal) Stats() JournalStats {
	return JournalStats{
		Written: j.written.Load(),
		Dropped: j.dropped.Load(),
		Pending: len(j.pending),
	}
}

// AttachAdminRoutes mounts a tailsql console for the journal under
// /debug/tailsql/ using the tsweb debug index. It registers /debug/ on mux,
// so it may be called at most once per mux.
func (j *Journal) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+j.path, j.db, &tailsql.DBOptions{
		Label: "Scan journal",
	})
	debug.Handle("tailsql/", "Scan journal SQL console", tsql.NewMux())
	debug.KV("Journal", j.path)
	return nil
}
