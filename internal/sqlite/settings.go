package sqlite

import (
	"context"
	"fmt"

	"tsp-search/internal/models"
)

type settingsRepository struct {
	store *Store
}

func (r *settingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT tick_millis, candidate_mode, lookup_policy, history_record, show_path
	          FROM settings WHERE id = 1`

	var s models.Settings
	var showPath int

	err := r.store.db.QueryRowContext(ctx, query).Scan(
		&s.TickMillis, &s.CandidateMode, &s.LookupPolicy, &s.HistoryRecord, &showPath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	s.ShowPath = showPath == 1

	return &s, nil
}

func (r *settingsRepository) Update(ctx context.Context, s *models.Settings) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	showPath := 0
	if s.ShowPath {
		showPath = 1
	}

	query := `UPDATE settings
	          SET tick_millis = ?, candidate_mode = ?, lookup_policy = ?, history_record = ?, show_path = ?
	          WHERE id = 1`
	_, err := r.store.db.ExecContext(ctx, query,
		s.TickMillis, s.CandidateMode, s.LookupPolicy, s.HistoryRecord, showPath)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}

	return nil
}
