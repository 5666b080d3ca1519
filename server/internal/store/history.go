package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/bitdiag/bitdiag/pkg/types"
)

// DefaultHistoryLimit caps Query results when the caller passes limit <= 0.
const DefaultHistoryLimit = 100

// History persists every received report in SQLite so the API can serve
// per-source timelines after the live entry has expired.
type History struct {
	db   *sql.DB
	path string
}

// OpenHistory creates or opens the history database at path.
// Use ":memory:" for a throwaway database.
func OpenHistory(path string) (*History, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("history: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	h := &History{db: db, path: path}
	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: initialize schema: %w", err)
	}
	return h, nil
}

func (h *History) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		state TEXT NOT NULL,
		received_at INTEGER NOT NULL,
		body TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_source_time ON reports(source_id, received_at);
	`
	_, err := h.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (h *History) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *History) Path() string { return h.path }

// Append stores r under receivedAt. Reports without an ID get a fresh UUID;
// re-appending an existing ID replaces the earlier row.
func (h *History) Append(ctx context.Context, r *types.Report, receivedAt time.Time) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("history: encode report: %w", err)
	}
	_, err = h.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reports (id, source_id, state, received_at, body) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.SourceID, r.State, receivedAt.UnixNano(), string(body))
	if err != nil {
		return fmt.Errorf("history: insert report %s: %w", r.ID, err)
	}
	return nil
}

// Query returns up to limit reports for sourceID received at or after since,
// newest first.
func (h *History) Query(ctx context.Context, sourceID string, since time.Time, limit int) ([]*types.Report, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT body FROM reports WHERE source_id = ? AND received_at >= ? ORDER BY received_at DESC LIMIT ?`,
		sourceID, since.UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("history: query %s: %w", sourceID, err)
	}
	defer rows.Close()

	var out []*types.Report
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		var r types.Report
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("history: decode row: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Prune deletes rows received before cutoff and returns how many were removed.
func (h *History) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM reports WHERE received_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return res.RowsAffected()
}

// RunPruner deletes rows older than retention once per interval until ctx is
// cancelled.
func (h *History) RunPruner(ctx context.Context, retention, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := h.Prune(ctx, now.Add(-retention))
			if err != nil {
				slog.Warn("store: history prune failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Debug("store: pruned history", "rows", n)
			}
		}
	}
}
