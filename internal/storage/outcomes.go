package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/tracklet-io/tracklet/internal/model"
)

// InsertOutcome appends an outcome row. The caller has already
// validated that exactly one value column is populated.
func (db *DB) InsertOutcome(ctx context.Context, o model.Outcome) error {
	ts := o.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	var jsonb any
	if len(o.VJSONB) > 0 {
		jsonb = []byte(o.VJSONB)
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO run_outcomes
		 (id_run, id_category, id_type, v_integer, v_floatpoint, v_string, v_boolean, v_timestamp, v_jsonb, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.IDRun, o.IDCategory, o.IDType,
		o.VInteger, o.VFloatpoint, o.VString, o.VBoolean, o.VTimestamp, jsonb, ts,
	)
	if err != nil {
		return fmt.Errorf("storage: insert outcome: %w", err)
	}
	return nil
}

// GetOutcomes retrieves outcome rows for a (run, category, type)
// triple, ordered by insertion.
func (db *DB) GetOutcomes(ctx context.Context, idRun int64, idCategory, idType int) ([]model.Outcome, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, id_run, id_category, id_type, v_integer, v_floatpoint, v_string, v_boolean, v_timestamp, v_jsonb, timestamp
		 FROM run_outcomes
		 WHERE id_run = $1 AND id_category = $2 AND id_type = $3
		 ORDER BY id`,
		idRun, idCategory, idType,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: get outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []model.Outcome
	for rows.Next() {
		var o model.Outcome
		var jsonb []byte
		if err := rows.Scan(
			&o.ID, &o.IDRun, &o.IDCategory, &o.IDType,
			&o.VInteger, &o.VFloatpoint, &o.VString, &o.VBoolean, &o.VTimestamp,
			&jsonb, &o.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("storage: scan outcome: %w", err)
		}
		o.VJSONB = jsonb
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
