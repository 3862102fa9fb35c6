package database

import (
	"context"

	"tsp-search/internal/models"
)

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	Runs() RunRepository
	Settings() SettingsRepository
}

// RunRepository handles archived search runs and their convergence history
type RunRepository interface {
	List(ctx context.Context, limit, offset int) ([]models.RunRecord, int, error)
	GetByID(ctx context.Context, id string) (*models.RunRecord, []models.HistoryPoint, error)
	Create(ctx context.Context, run *models.RunRecord, history []models.HistoryPoint) (*models.RunRecord, error)
	Delete(ctx context.Context, id string) error
}

// SettingsRepository handles settings persistence
type SettingsRepository interface {
	Get(ctx context.Context) (*models.Settings, error)
	Update(ctx context.Context, s *models.Settings) error
}
