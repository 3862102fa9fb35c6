package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tsp-search/internal/database"
	"tsp-search/internal/models"
)

type runRepository struct {
	store *Store
}

const runColumns = `id, instance_name, city_count, best_length, iterations, tour,
	candidate_mode, lookup_policy, history_record, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (models.RunRecord, error) {
	var run models.RunRecord
	var tour string
	err := row.Scan(
		&run.ID, &run.InstanceName, &run.CityCount, &run.BestLength, &run.Iterations,
		&tour, &run.CandidateMode, &run.LookupPolicy, &run.HistoryRecord,
		&run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return run, err
	}
	if err := json.Unmarshal([]byte(tour), &run.Tour); err != nil {
		return run, fmt.Errorf("failed to decode tour of run %s: %w", run.ID, err)
	}
	return run, nil
}

func (r *runRepository) List(ctx context.Context, limit, offset int) ([]models.RunRecord, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var total int
	if err := r.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	if limit <= 0 {
		limit = -1 // no limit
	}
	query := `SELECT ` + runColumns + `
	          FROM runs
	          ORDER BY finished_at DESC
	          LIMIT ? OFFSET ?`

	rows, err := r.store.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []models.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, total, nil
}

func (r *runRepository) GetByID(ctx context.Context, id string) (*models.RunRecord, []models.HistoryPoint, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	row := r.store.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, database.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := r.store.db.QueryContext(ctx,
		`SELECT iteration, distance FROM run_history WHERE run_id = ? ORDER BY iteration`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	history := make([]models.HistoryPoint, 0, run.Iterations+1)
	for rows.Next() {
		var p models.HistoryPoint
		if err := rows.Scan(&p.Iteration, &p.Distance); err != nil {
			return nil, nil, fmt.Errorf("failed to scan history point: %w", err)
		}
		history = append(history, p)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating run history: %w", err)
	}

	return &run, history, nil
}

func (r *runRepository) Create(ctx context.Context, run *models.RunRecord, history []models.HistoryPoint) (*models.RunRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tour, err := json.Marshal(run.Tour)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tour: %w", err)
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runQuery := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, runQuery,
		run.ID, run.InstanceName, run.CityCount, run.BestLength, run.Iterations,
		string(tour), run.CandidateMode, run.LookupPolicy, run.HistoryRecord,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_history (run_id, iteration, distance) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare history insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range history {
		if _, err := stmt.ExecContext(ctx, run.ID, p.Iteration, p.Distance); err != nil {
			return nil, fmt.Errorf("failed to create history point %d: %w", p.Iteration, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.store.logger.Debug("run archived",
		zap.String("id", run.ID),
		zap.Int("history", len(history)))

	return run, nil
}

func (r *runRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	// Foreign key cascade removes the history rows
	result, err := r.store.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return database.ErrNotFound
	}

	return nil
}
