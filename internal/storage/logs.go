package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/tracklet-io/tracklet/internal/model"
)

// InsertLog appends a log line for a run. The store assigns the
// log_timestamp so ordering reflects insertion time at the database.
func (db *DB) InsertLog(ctx context.Context, e model.LogEntry) error {
	ts := e.LogTimestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO run_logs (id_run, log, debug, warning, error, service_name, log_timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.IDRun, e.Log, e.Debug, e.Warning, e.Error, e.ServiceName, ts,
	)
	if err != nil {
		return fmt.Errorf("storage: insert log: %w", err)
	}
	return nil
}

// GetLogsByRun returns every log line for a run in chronological order.
func (db *DB) GetLogsByRun(ctx context.Context, idRun int64) ([]model.LogEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id_run, log, debug, warning, error, service_name, log_timestamp
		 FROM run_logs
		 WHERE id_run = $1
		 ORDER BY log_timestamp ASC`,
		idRun,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: get logs: %w", err)
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(&e.IDRun, &e.Log, &e.Debug, &e.Warning, &e.Error, &e.ServiceName, &e.LogTimestamp); err != nil {
			return nil, fmt.Errorf("storage: scan log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
