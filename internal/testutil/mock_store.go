package testutil

import (
	"context"
	"sort"
	"sync"

	"tsp-search/internal/database"
	"tsp-search/internal/models"
)

// MockDataStore is an in-memory implementation of database.DataStore for
// session and handler tests
type MockDataStore struct {
	mu       sync.Mutex
	runs     map[string]*models.RunRecord
	history  map[string][]models.HistoryPoint
	settings models.Settings

	CreateErr error // when set, run creation fails with it
}

var _ database.DataStore = (*MockDataStore)(nil)

// NewMockDataStore creates an empty store with default settings
func NewMockDataStore() *MockDataStore {
	return &MockDataStore{
		runs:     make(map[string]*models.RunRecord),
		history:  make(map[string][]models.HistoryPoint),
		settings: database.DefaultSettings(),
	}
}

func (m *MockDataStore) Close() error                           { return nil }
func (m *MockDataStore) HealthCheck(ctx context.Context) error  { return nil }
func (m *MockDataStore) Runs() database.RunRepository           { return &mockRunRepository{m} }
func (m *MockDataStore) Settings() database.SettingsRepository { return &mockSettingsRepository{m} }

// RunCount returns the number of archived runs
func (m *MockDataStore) RunCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

type mockRunRepository struct {
	m *MockDataStore
}

func (r *mockRunRepository) List(ctx context.Context, limit, offset int) ([]models.RunRecord, int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	all := make([]models.RunRecord, 0, len(r.m.runs))
	for _, run := range r.m.runs {
		all = append(all, *run)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].FinishedAt.After(all[j].FinishedAt) })

	total := len(all)
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (r *mockRunRepository) GetByID(ctx context.Context, id string) (*models.RunRecord, []models.HistoryPoint, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	run, ok := r.m.runs[id]
	if !ok {
		return nil, nil, database.ErrNotFound
	}
	runCopy := *run
	return &runCopy, append([]models.HistoryPoint(nil), r.m.history[id]...), nil
}

func (r *mockRunRepository) Create(ctx context.Context, run *models.RunRecord, history []models.HistoryPoint) (*models.RunRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if r.m.CreateErr != nil {
		return nil, r.m.CreateErr
	}
	runCopy := *run
	r.m.runs[run.ID] = &runCopy
	r.m.history[run.ID] = append([]models.HistoryPoint(nil), history...)
	return &runCopy, nil
}

func (r *mockRunRepository) Delete(ctx context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.runs[id]; !ok {
		return database.ErrNotFound
	}
	delete(r.m.runs, id)
	delete(r.m.history, id)
	return nil
}

type mockSettingsRepository struct {
	m *MockDataStore
}

func (r *mockSettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s := r.m.settings
	return &s, nil
}

func (r *mockSettingsRepository) Update(ctx context.Context, s *models.Settings) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.settings = *s
	return nil
}
