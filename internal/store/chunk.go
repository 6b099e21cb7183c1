package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"
)

type chunkRepo struct {
	db *sql.DB
}

const (
	metaModel   = "embedding_model"
	metaChunks  = "chunk_count"
	metaBuiltAt = "built_at"
)

func (r *chunkRepo) Replace(ctx context.Context, model string, chunks []Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (source, page, content, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.Source, c.Page, c.Content, encodeVector(c.Embedding)); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	meta := map[string]string{
		metaModel:   model,
		metaChunks:  strconv.Itoa(len(chunks)),
		metaBuiltAt: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO index_meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
			return fmt.Errorf("write index meta %s: %w", k, err)
		}
	}

	return tx.Commit()
}

func (r *chunkRepo) All(ctx context.Context) ([]Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, source, page, content, embedding FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var (
			c    Chunk
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.Source, &c.Page, &c.Content, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", c.ID, err)
		}
		c.Embedding = vec
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *chunkRepo) Meta(ctx context.Context) (IndexMeta, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM index_meta`)
	if err != nil {
		return IndexMeta{}, fmt.Errorf("query index meta: %w", err)
	}
	defer rows.Close()

	var m IndexMeta
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return IndexMeta{}, fmt.Errorf("scan index meta: %w", err)
		}
		switch k {
		case metaModel:
			m.Model = v
		case metaChunks:
			m.Chunks, _ = strconv.Atoi(v)
		case metaBuiltAt:
			if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
				m.BuiltAt = fromMillis(ms)
			}
		}
	}
	return m, rows.Err()
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
