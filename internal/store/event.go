package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"
)

// sequenceCounter manages the global monotonic sequence number shared by
// LLM events and generation runs, so the two tables can be interleaved in
// the order things actually happened.
//
// The mutex serializes within the process; the RETURNING clause makes the
// increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

// newSequenceCounter creates a counter and ensures the tracking table exists.
func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// where renders the filters of opts as a WHERE clause with positional
// arguments. Limit is applied by the caller.
func (o QueryOpts) where() (string, []any) {
	var conds []string
	var args []any
	if o.After > 0 {
		conds = append(conds, "sequence > ?")
		args = append(args, o.After)
	}
	if o.Before > 0 {
		conds = append(conds, "sequence < ?")
		args = append(args, o.Before)
	}
	if !o.From.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, o.From.UnixMilli())
	}
	if !o.To.IsZero() {
		conds = append(conds, "timestamp <= ?")
		args = append(args, o.To.UnixMilli())
	}
	if o.Session != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, o.Session)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (o QueryOpts) limit() string {
	if o.Limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", o.Limit)
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
