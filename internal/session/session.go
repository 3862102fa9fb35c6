// Package session hosts one search run: the engine, the ticker that drives
// it, the loaded instance and the archive of replaced runs.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tsp-search/internal/database"
	"tsp-search/internal/metrics"
	"tsp-search/internal/models"
	"tsp-search/internal/routing"
	"tsp-search/internal/scheduler"
)

// Config holds the session construction parameters
type Config struct {
	Engine routing.EngineConfig
	Tick   time.Duration
	Seed   int64                // 0 seeds from the clock
	Rand   routing.RandomSource // overrides Seed when set
}

// Session owns a single engine and serializes everything that replaces its
// state. Readers use Snapshot or Subscribe and never block the search.
//
// Lock order is mu, then stepMu. stepMu covers a commit together with its
// publication, so subscribers receive snapshots in commit order.
type Session struct {
	logger  *zap.Logger
	store   database.DataStore
	metrics *metrics.Metrics
	engine  *routing.Engine
	ticker  *scheduler.Ticker

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	instance *models.Instance
	runID    string

	stepMu sync.Mutex

	showPath     atomic.Bool
	showPathLoad atomic.Bool

	subsMu sync.Mutex
	subs   map[chan models.Snapshot]struct{}
	closed bool
}

// New creates a session without an instance. store and m may be nil.
func New(cfg Config, store database.DataStore, m *metrics.Metrics, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Engine == (routing.EngineConfig{}) {
		cfg.Engine = routing.DefaultEngineConfig()
	}

	rng := cfg.Rand
	if rng == nil {
		rng = routing.NewRandomSource(cfg.Seed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		logger:  logger.Named("session"),
		store:   store,
		metrics: m,
		engine:  routing.NewEngine(cfg.Engine, rng, logger),
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[chan models.Snapshot]struct{}),
	}
	s.ticker = scheduler.New(cfg.Tick, s.tick, logger)
	return s
}

// Load replaces the current instance. The ticker is stopped first and the
// previous run, if it made any progress, is archived. On error the previous
// run stays loaded and the ticker is restarted if it was running.
func (s *Session) Load(ctx context.Context, inst *models.Instance) (models.Snapshot, error) {
	if inst == nil {
		return models.Snapshot{}, routing.ErrEmptyInstance
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// the ticker must be stopped before stepMu is taken: Stop waits for
	// the in-flight tick, which needs stepMu
	wasRunning := s.ticker.Stop()

	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	prev, hadPrev := s.engine.Snapshot()

	snap, err := s.engine.Initialize(inst.Cities)
	if err != nil {
		if wasRunning {
			s.ticker.Start(s.ctx)
		}
		return models.Snapshot{}, fmt.Errorf("failed to load instance %q: %w", inst.Name, err)
	}

	if hadPrev {
		if err := s.archive(ctx, prev); err != nil {
			s.logger.Error("failed to archive run", zap.String("run", s.runID), zap.Error(err))
		}
	}

	s.instance = inst
	s.runID = uuid.New().String()
	s.showPath.Store(s.showPathLoad.Load())
	s.metrics.ObserveInit(snap)
	s.publish(snap)

	s.logger.Info("instance loaded",
		zap.String("run", s.runID),
		zap.String("name", inst.Name),
		zap.Int("cities", snap.CityCount),
		zap.Float64("length", snap.Length))

	return snap, nil
}

// Start runs the search in the background. It fails with
// routing.ErrNotInitialized when no instance is loaded.
func (s *Session) Start() error {
	if _, ok := s.engine.Snapshot(); !ok {
		return routing.ErrNotInitialized
	}
	s.ticker.Start(s.ctx)
	return nil
}

// Stop halts the background search after the in-flight step commits
func (s *Session) Stop() {
	s.ticker.Stop()
}

// Toggle flips between running and stopped and returns the new state
func (s *Session) Toggle() (bool, error) {
	if _, ok := s.engine.Snapshot(); !ok {
		return false, routing.ErrNotInitialized
	}
	return s.ticker.Toggle(s.ctx), nil
}

// Running reports whether the background search is active
func (s *Session) Running() bool {
	return s.ticker.Running()
}

// Step performs one search iteration immediately. It is safe to call while
// the background search is running.
func (s *Session) Step() (models.Snapshot, error) {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	start := time.Now()
	snap, err := s.engine.Step()
	if err != nil {
		s.metrics.ObserveError()
		return models.Snapshot{}, err
	}
	s.metrics.ObserveStep(snap, time.Since(start))
	s.publish(snap)
	return snap, nil
}

func (s *Session) tick(context.Context) error {
	_, err := s.Step()
	return err
}

// Snapshot returns the latest published search state
func (s *Session) Snapshot() (models.Snapshot, bool) {
	return s.engine.Snapshot()
}

// Instance returns the loaded instance, or nil
func (s *Session) Instance() *models.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instance
}

// RunID returns the id the current run will be archived under
func (s *Session) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// EngineConfig returns the active update rule
func (s *Session) EngineConfig() routing.EngineConfig {
	return s.engine.Config()
}

// TickPeriod returns the background step period
func (s *Session) TickPeriod() time.Duration {
	return s.ticker.Period()
}

// ApplySettings validates settings and applies the engine modes and tick
// period. A running search keeps running at the new period. ShowPath takes
// effect on the next Load.
func (s *Session) ApplySettings(settings models.Settings) error {
	cfg, err := routing.ParseEngineConfig(settings.CandidateMode, settings.LookupPolicy, settings.HistoryRecord)
	if err != nil {
		return err
	}
	s.engine.SetConfig(cfg)
	s.ticker.SetPeriod(s.ctx, settings.TickPeriod())
	s.showPathLoad.Store(settings.ShowPath)
	return nil
}

// ShowPath reports whether displays should draw the incumbent tour
func (s *Session) ShowPath() bool {
	return s.showPath.Load()
}

// TogglePath shows or hides the incumbent tour and returns the new value.
// Every Load resets it to the ShowPath setting.
func (s *Session) TogglePath() bool {
	for {
		old := s.showPath.Load()
		if s.showPath.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Subscribe returns a channel that receives every published snapshot.
// Slow receivers only see the latest one. The returned func unsubscribes.
func (s *Session) Subscribe() (<-chan models.Snapshot, func()) {
	ch := make(chan models.Snapshot, 1)

	s.subsMu.Lock()
	if s.closed {
		close(ch)
		s.subsMu.Unlock()
		return ch, func() {}
	}
	if snap, ok := s.engine.Snapshot(); ok {
		ch <- snap
	}
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

func (s *Session) publish(snap models.Snapshot) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// replace the stale snapshot
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Close stops the search, archives the current run and closes all
// subscriptions.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticker.Stop()
	s.cancel()

	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	var err error
	if snap, ok := s.engine.Snapshot(); ok {
		err = s.archive(ctx, snap)
	}
	s.runID = ""

	s.subsMu.Lock()
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
	s.closed = true
	s.subsMu.Unlock()

	return err
}

// archive stores a run that made progress. Caller holds mu.
func (s *Session) archive(ctx context.Context, snap models.Snapshot) error {
	if s.store == nil || snap.Iteration == 0 || s.runID == "" {
		return nil
	}

	name := ""
	if s.instance != nil {
		name = s.instance.Name
	}
	cfg := s.engine.Config()
	run := &models.RunRecord{
		ID:            s.runID,
		InstanceName:  name,
		CityCount:     snap.CityCount,
		BestLength:    snap.Length,
		Iterations:    snap.Iteration,
		Tour:          snap.Tour.Clone(),
		CandidateMode: string(cfg.Candidate),
		LookupPolicy:  string(cfg.Lookup),
		HistoryRecord: string(cfg.Record),
		StartedAt:     snap.InitializedAt,
		FinishedAt:    time.Now(),
	}

	if _, err := s.store.Runs().Create(ctx, run, snap.History.Points()); err != nil {
		return fmt.Errorf("failed to archive run %s: %w", s.runID, err)
	}

	s.logger.Info("run archived",
		zap.String("run", run.ID),
		zap.Int("iterations", run.Iterations),
		zap.Float64("best", run.BestLength))
	return nil
}
