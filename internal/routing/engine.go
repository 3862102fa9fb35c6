package routing

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tsp-search/internal/models"
)

// Engine runs a Monte Carlo random-restart search over one problem
// instance. Every Step draws a fresh random tour, records it, and keeps it
// only if it is strictly shorter than the incumbent.
//
// Mutations are serialized; the state after each transition is published
// as an immutable snapshot that readers load without locking.
type Engine struct {
	logger *zap.Logger

	mu            sync.Mutex
	cfg           EngineConfig
	rng           RandomSource
	cities        map[int]models.City
	ids           []int
	incumbent     models.Tour
	length        float64
	iteration     int
	history       *history
	initializedAt time.Time

	current atomic.Pointer[models.Snapshot]
}

var _ Stepper = (*Engine)(nil)

// NewEngine creates an uninitialized engine. A nil rng seeds from the clock.
func NewEngine(cfg EngineConfig, rng RandomSource, logger *zap.Logger) *Engine {
	if rng == nil {
		rng = NewRandomSource(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		rng:    rng,
		logger: logger.Named("engine"),
	}
}

// Config returns the active update rule
func (e *Engine) Config() EngineConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// SetConfig replaces the update rule. It applies from the next Step.
func (e *Engine) SetConfig(cfg EngineConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.logger.Info("config updated",
		zap.String("candidate", string(cfg.Candidate)),
		zap.String("lookup", string(cfg.Lookup)),
		zap.String("record", string(cfg.Record)))
}

// Initialize discards any prior state and starts a new search over cities:
// the incumbent is one random permutation of the ids, the iteration count
// is 0 and the history holds a single sample. On error the previous state
// is left untouched.
func (e *Engine) Initialize(cities []models.City) (models.Snapshot, error) {
	if len(cities) == 0 {
		return models.Snapshot{}, ErrEmptyInstance
	}

	index := make(map[int]models.City, len(cities))
	ids := make([]int, 0, len(cities))
	for _, c := range cities {
		if _, dup := index[c.ID]; dup {
			return models.Snapshot{}, fmt.Errorf("%w: %d", ErrDuplicateCity, c.ID)
		}
		if !finite(c.X) || !finite(c.Y) {
			return models.Snapshot{}, fmt.Errorf("%w: city %d", ErrInvalidCoordinate, c.ID)
		}
		index[c.ID] = c
		ids = append(ids, c.ID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tour := models.Tour(Shuffle(ids, e.rng))
	length, err := Evaluate(tour, index, e.cfg.Lookup)
	if err != nil {
		return models.Snapshot{}, err
	}

	e.cities = index
	e.ids = ids
	e.incumbent = tour
	e.length = length
	e.iteration = 0
	e.history = newHistory(models.HistoryPoint{Iteration: 0, Distance: length})
	e.initializedAt = time.Now()

	e.logger.Info("initialized",
		zap.Int("cities", len(ids)),
		zap.Float64("length", length))

	return e.publish(length, false), nil
}

// Step performs one search iteration. A failed evaluation commits nothing:
// the iteration count, history and incumbent stay as they were.
func (e *Engine) Step() (models.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.history == nil {
		return models.Snapshot{}, ErrNotInitialized
	}

	n := e.iteration + 1

	var candidate models.Tour
	switch e.cfg.Candidate {
	case CandidateIncumbent:
		candidate = Shuffle(e.incumbent, e.rng)
	default:
		candidate = Shuffle(e.ids, e.rng)
	}

	candidateLength, err := Evaluate(candidate, e.cities, e.cfg.Lookup)
	if err != nil {
		e.logger.Warn("step aborted", zap.Int("iteration", n), zap.Error(err))
		return models.Snapshot{}, err
	}

	improved := candidateLength < e.length
	if improved {
		e.incumbent = candidate
		e.length = candidateLength
	}

	recorded := candidateLength
	if e.cfg.Record == RecordIncumbent {
		recorded = e.length
	}

	e.iteration = n
	e.history.append(models.HistoryPoint{Iteration: n, Distance: recorded})

	if improved {
		e.logger.Info("improved",
			zap.Int("iteration", n),
			zap.Float64("length", candidateLength))
	} else {
		e.logger.Debug("step",
			zap.Int("iteration", n),
			zap.Float64("candidate", candidateLength),
			zap.Float64("incumbent", e.length))
	}

	return e.publish(candidateLength, improved), nil
}

// Snapshot returns the last published state. ok is false before the first
// successful Initialize.
func (e *Engine) Snapshot() (models.Snapshot, bool) {
	s := e.current.Load()
	if s == nil {
		return models.Snapshot{}, false
	}
	return *s, true
}

// publish stores the current state as an immutable snapshot. Caller holds mu.
func (e *Engine) publish(candidateLength float64, improved bool) models.Snapshot {
	s := &models.Snapshot{
		Tour:                e.incumbent,
		Length:              e.length,
		Iteration:           e.iteration,
		History:             e.history.view(),
		CityCount:           len(e.ids),
		LastCandidateLength: candidateLength,
		Improved:            improved,
		InitializedAt:       e.initializedAt,
	}
	e.current.Store(s)
	return *s
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
