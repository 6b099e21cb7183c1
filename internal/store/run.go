package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type runRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *runRepo) Append(ctx context.Context, run GenerationRun) error {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now()
	}
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO generation_runs (
		run_id, sequence, timestamp, session_id, surface, topic, category,
		requested, blocks, vignettes_before, vignettes_after, status,
		error_message, latency_ms, output_chars
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, seqNum, run.Timestamp.UnixMilli(), run.SessionID, run.Surface, run.Topic, run.Category,
		run.Requested, run.Blocks, run.VignettesBefore, run.VignettesAfter, run.Status,
		run.ErrorMessage, run.LatencyMs, run.OutputChars,
	)
	if err != nil {
		return fmt.Errorf("save generation run: %w", err)
	}
	return nil
}

func (r *runRepo) List(ctx context.Context, opts QueryOpts) ([]GenerationRun, error) {
	where, args := opts.where()
	rows, err := r.db.QueryContext(ctx, `SELECT id, run_id, sequence, timestamp, session_id, surface,
		topic, category, requested, blocks, vignettes_before, vignettes_after, status,
		error_message, latency_ms, output_chars
		FROM generation_runs`+where+` ORDER BY sequence DESC`+opts.limit(), args...)
	if err != nil {
		return nil, fmt.Errorf("query generation runs: %w", err)
	}
	defer rows.Close()

	var out []GenerationRun
	for rows.Next() {
		var (
			g  GenerationRun
			ts int64
		)
		if err := rows.Scan(&g.ID, &g.RunID, &g.Sequence, &ts, &g.SessionID, &g.Surface,
			&g.Topic, &g.Category, &g.Requested, &g.Blocks, &g.VignettesBefore, &g.VignettesAfter,
			&g.Status, &g.ErrorMessage, &g.LatencyMs, &g.OutputChars); err != nil {
			return nil, fmt.Errorf("scan generation run: %w", err)
		}
		g.Timestamp = fromMillis(ts)
		out = append(out, g)
	}
	return out, rows.Err()
}
