package routing

import (
	"errors"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsp-search/internal/models"
	"tsp-search/internal/testutil"
)

func newTestEngine(t *testing.T, seed int64) *Engine {
	t.Helper()
	return NewEngine(DefaultEngineConfig(), testutil.SeededSource(seed), nil)
}

func assertPermutation(t *testing.T, cities []models.City, tour models.Tour) {
	t.Helper()
	want := make([]int, len(cities))
	for i, c := range cities {
		want[i] = c.ID
	}
	got := append([]int(nil), tour...)
	sort.Ints(want)
	sort.Ints(got)
	assert.Equal(t, want, got)
}

func TestInitialize_EmptyInstance(t *testing.T) {
	e := newTestEngine(t, 1)

	_, err := e.Initialize(nil)

	assert.ErrorIs(t, err, ErrEmptyInstance)
	_, ok := e.Snapshot()
	assert.False(t, ok)
}

func TestInitialize_RejectsDuplicateIDs(t *testing.T) {
	e := newTestEngine(t, 1)

	_, err := e.Initialize([]models.City{{ID: 1}, {ID: 2, X: 1}, {ID: 1, X: 5}})

	assert.ErrorIs(t, err, ErrDuplicateCity)
}

func TestInitialize_RejectsNonFiniteCoordinates(t *testing.T) {
	e := newTestEngine(t, 1)

	_, err := e.Initialize([]models.City{{ID: 1}, {ID: 2, X: math.NaN()}})
	assert.ErrorIs(t, err, ErrInvalidCoordinate)

	_, err = e.Initialize([]models.City{{ID: 1}, {ID: 2, Y: math.Inf(-1)}})
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestInitialize_SingleCity(t *testing.T) {
	e := newTestEngine(t, 1)

	snap, err := e.Initialize([]models.City{{ID: 5, X: 2, Y: 2}})

	require.NoError(t, err)
	assert.Equal(t, 0.0, snap.Length)
	assert.Equal(t, models.Tour{5}, snap.Tour)

	snap, err = e.Step()
	require.NoError(t, err)
	assert.Equal(t, 0.0, snap.Length)
	assert.Equal(t, 1, snap.Iteration)
}

func TestInitialize_State(t *testing.T) {
	src := testutil.NewScriptedSource(1, 0)
	e := NewEngine(DefaultEngineConfig(), src, nil)
	cities := testutil.Triangle()

	snap, err := e.Initialize(cities)

	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, src.Calls, "initial tour is drawn by one shuffle")
	assertPermutation(t, cities, snap.Tour)
	assert.Equal(t, 12.0, snap.Length, "every tour of a triangle has the same length")
	assert.Equal(t, 0, snap.Iteration)
	assert.Equal(t, 3, snap.CityCount)
	assert.Equal(t, []models.HistoryPoint{{Iteration: 0, Distance: 12}}, snap.History.Points())
	assert.False(t, snap.InitializedAt.IsZero())
}

func TestStep_BeforeInitialize(t *testing.T) {
	e := newTestEngine(t, 1)

	_, err := e.Step()

	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestStep_MonotonicIncumbentAndCompleteHistory(t *testing.T) {
	cities := testutil.RandomCities(12, 7)
	e := newTestEngine(t, 99)

	snap, err := e.Initialize(cities)
	require.NoError(t, err)

	prev := snap.Length
	const steps = 300
	for i := 1; i <= steps; i++ {
		snap, err = e.Step()
		require.NoError(t, err)

		assert.LessOrEqual(t, snap.Length, prev)
		assert.Equal(t, i, snap.Iteration)
		assert.Equal(t, snap.Improved, snap.Length < prev)
		prev = snap.Length
	}

	require.Equal(t, steps+1, snap.History.Len())
	for i, p := range snap.History.Points() {
		assert.Equal(t, i, p.Iteration)
	}
	assertPermutation(t, cities, snap.Tour)

	length, err := Evaluate(snap.Tour, CityIndex(cities), LookupStrict)
	require.NoError(t, err)
	assert.InDelta(t, length, snap.Length, 1e-9)
}

func TestStep_RecordsCandidateLength(t *testing.T) {
	cities := testutil.RandomCities(8, 1)
	e := newTestEngine(t, 3)
	_, err := e.Initialize(cities)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		snap, err := e.Step()
		require.NoError(t, err)

		last, ok := snap.History.Last()
		require.True(t, ok)
		assert.Equal(t, snap.LastCandidateLength, last.Distance)
		assert.GreaterOrEqual(t, last.Distance, snap.Length)
	}
}

func TestStep_RecordIncumbentIsNonIncreasing(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Record = RecordIncumbent
	e := NewEngine(cfg, testutil.SeededSource(5), nil)
	_, err := e.Initialize(testutil.RandomCities(9, 2))
	require.NoError(t, err)

	var snap models.Snapshot
	for i := 0; i < 100; i++ {
		snap, err = e.Step()
		require.NoError(t, err)
	}

	pts := snap.History.Points()
	for i := 1; i < len(pts); i++ {
		assert.LessOrEqual(t, pts[i].Distance, pts[i-1].Distance)
	}
	assert.Equal(t, snap.Length, pts[len(pts)-1].Distance)
}

func TestStep_CandidateFromIncumbent(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Candidate = CandidateIncumbent
	cities := testutil.RandomCities(10, 4)
	e := NewEngine(cfg, testutil.SeededSource(8), nil)

	_, err := e.Initialize(cities)
	require.NoError(t, err)

	var snap models.Snapshot
	for i := 0; i < 60; i++ {
		snap, err = e.Step()
		require.NoError(t, err)
	}
	assertPermutation(t, cities, snap.Tour)
	assert.Equal(t, 61, snap.History.Len())
}

func TestStep_FailureCommitsNothing(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Lookup = LookupStrict
	e := NewEngine(cfg, testutil.SeededSource(2), nil)

	_, err := e.Initialize(testutil.UnitSquare())
	require.NoError(t, err)
	before, err := e.Step()
	require.NoError(t, err)

	// Drop a city behind the engine's back so strict evaluation fails.
	e.mu.Lock()
	saved := e.cities[30]
	delete(e.cities, 30)
	e.mu.Unlock()

	_, err = e.Step()
	var missing *MissingCityError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, 30, missing.ID)

	after, ok := e.Snapshot()
	require.True(t, ok)
	assert.Equal(t, before.Iteration, after.Iteration)
	assert.Equal(t, before.History.Len(), after.History.Len())
	assert.Equal(t, before.Tour, after.Tour)

	e.mu.Lock()
	e.cities[30] = saved
	e.mu.Unlock()

	next, err := e.Step()
	require.NoError(t, err)
	assert.Equal(t, 2, next.Iteration, "no gap after a failed step")
}

func TestInitialize_ResetsState(t *testing.T) {
	e := newTestEngine(t, 11)

	_, err := e.Initialize(testutil.RandomCities(6, 1))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		_, err = e.Step()
		require.NoError(t, err)
	}
	old, _ := e.Snapshot()

	square := testutil.UnitSquare()
	snap, err := e.Initialize(square)
	require.NoError(t, err)

	assert.Equal(t, 0, snap.Iteration)
	assert.Equal(t, 1, snap.History.Len())
	assert.Equal(t, 4, snap.CityCount)
	assertPermutation(t, square, snap.Tour)

	// Views handed out before the reset are unaffected.
	assert.Equal(t, 21, old.History.Len())
}

func TestInitialize_FailureKeepsPreviousState(t *testing.T) {
	e := newTestEngine(t, 11)
	_, err := e.Initialize(testutil.Triangle())
	require.NoError(t, err)
	_, err = e.Step()
	require.NoError(t, err)

	_, err = e.Initialize(nil)
	require.ErrorIs(t, err, ErrEmptyInstance)

	snap, ok := e.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 1, snap.Iteration)
	assert.Equal(t, 3, snap.CityCount)
}

func TestEngine_DeterministicUnderSeed(t *testing.T) {
	run := func() []models.HistoryPoint {
		e := newTestEngine(t, 1234)
		_, err := e.Initialize(testutil.RandomCities(15, 6))
		require.NoError(t, err)
		var snap models.Snapshot
		for i := 0; i < 100; i++ {
			snap, err = e.Step()
			require.NoError(t, err)
		}
		return snap.History.Points()
	}

	first := run()
	second := run()

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("history differs between seeded runs (-first +second):\n%s", diff)
	}
}

func TestEngine_SetConfig(t *testing.T) {
	e := newTestEngine(t, 1)
	cfg := EngineConfig{Candidate: CandidateIncumbent, Lookup: LookupStrict, Record: RecordIncumbent}

	e.SetConfig(cfg)

	assert.Equal(t, cfg, e.Config())
}

func TestEngine_ConcurrentReaders(t *testing.T) {
	e := NewEngine(DefaultEngineConfig(), testutil.SeededSource(21), nil)
	_, err := e.Initialize(testutil.RandomCities(10, 9))
	require.NoError(t, err)

	var wg sync.WaitGroup
	done := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap, ok := e.Snapshot()
				if !ok {
					continue
				}
				last, _ := snap.History.Last()
				if snap.History.Len() != snap.Iteration+1 || last.Iteration != snap.Iteration {
					t.Errorf("torn snapshot: iteration=%d history=%d last=%d",
						snap.Iteration, snap.History.Len(), last.Iteration)
					return
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		_, err := e.Step()
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()
}

func TestParseEngineConfig(t *testing.T) {
	cfg, err := ParseEngineConfig("", "", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultEngineConfig(), cfg)

	cfg, err = ParseEngineConfig("Incumbent", " strict ", "incumbent")
	require.NoError(t, err)
	assert.Equal(t, EngineConfig{Candidate: CandidateIncumbent, Lookup: LookupStrict, Record: RecordIncumbent}, cfg)

	for _, bad := range [][3]string{{"anneal", "", ""}, {"", "loose", ""}, {"", "", "best"}} {
		_, err = ParseEngineConfig(bad[0], bad[1], bad[2])
		assert.ErrorIs(t, err, ErrInvalidConfig, "%v", bad)
	}
}
