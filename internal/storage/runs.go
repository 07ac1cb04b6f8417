package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tracklet-io/tracklet/internal/model"
)

// CreateRun inserts a new run row and returns its assigned id.
func (db *DB) CreateRun(ctx context.Context, req model.CreateRunRequest) (int64, error) {
	var idRun int64
	err := db.pool.QueryRow(ctx,
		`INSERT INTO runs (id_script, id_user, id_run_father, id_father_service, status, service_name)
		 VALUES ($1, $2, $3, $4, 0, $5)
		 RETURNING id_run`,
		req.IDScript, req.IDUser, req.IDRunFather, req.FatherServiceID, req.ServiceName,
	).Scan(&idRun)
	if err != nil {
		return 0, fmt.Errorf("storage: create run: %w", err)
	}
	return idRun, nil
}

// GetRun retrieves a run row by id.
func (db *DB) GetRun(ctx context.Context, idRun int64) (model.Run, error) {
	var run model.Run
	var serviceName *string
	err := db.pool.QueryRow(ctx,
		`SELECT id_run, id_script, id_user, id_run_father, id_father_service, status, service_name, timestamp
		 FROM runs WHERE id_run = $1`, idRun,
	).Scan(
		&run.IDRun, &run.IDScript, &run.IDUser, &run.IDRunFather,
		&run.IDFatherService, &run.Status, &serviceName, &run.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Run{}, fmt.Errorf("storage: get run %d: %w", idRun, ErrNotFound)
		}
		return model.Run{}, fmt.Errorf("storage: get run: %w", err)
	}
	if serviceName != nil {
		run.ServiceName = *serviceName
	}
	return run, nil
}

// UpdateRunStatus updates the status and/or user of a run. Nil fields
// are left unchanged.
func (db *DB) UpdateRunStatus(ctx context.Context, req model.UpdateRunStatusRequest) (model.Run, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE runs
		 SET status = COALESCE($1, status), id_user = COALESCE($2, id_user)
		 WHERE id_run = $3`,
		req.Status, req.IDUser, req.IDRun,
	)
	if err != nil {
		return model.Run{}, fmt.Errorf("storage: update run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Run{}, fmt.Errorf("storage: update run %d: %w", req.IDRun, ErrNotFound)
	}
	return db.GetRun(ctx, req.IDRun)
}

// GetAllRuns returns every run row, newest first.
func (db *DB) GetAllRuns(ctx context.Context) ([]model.Run, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id_run, id_script, id_user, id_run_father, id_father_service, status, service_name, timestamp
		 FROM runs ORDER BY timestamp DESC, id_run DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: get all runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// GetFatherRuns returns the runs that have no parent, newest first.
func (db *DB) GetFatherRuns(ctx context.Context) ([]model.Run, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id_run, id_script, id_user, id_run_father, id_father_service, status, service_name, timestamp
		 FROM runs WHERE id_run_father IS NULL ORDER BY id_run DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: get father runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

func scanRuns(rows pgx.Rows) ([]model.Run, error) {
	var runs []model.Run
	for rows.Next() {
		var run model.Run
		var serviceName *string
		if err := rows.Scan(
			&run.IDRun, &run.IDScript, &run.IDUser, &run.IDRunFather,
			&run.IDFatherService, &run.Status, &serviceName, &run.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("storage: scan run: %w", err)
		}
		if serviceName != nil {
			run.ServiceName = *serviceName
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRunChildren returns the ids of all direct children of a run.
func (db *DB) GetRunChildren(ctx context.Context, idRunFather int64) ([]int64, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id_run FROM runs WHERE id_run_father = $1 ORDER BY id_run`, idRunFather,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: get run children: %w", err)
	}
	defer rows.Close()

	var children []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage: scan run child: %w", err)
		}
		children = append(children, id)
	}
	return children, rows.Err()
}
