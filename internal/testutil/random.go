package testutil

import (
	"math/rand"
	"sync"
)

// ScriptedSource is a deterministic RandomSource for tests. It replays
// Values in order (wrapping around) and reduces each into [0, n).
type ScriptedSource struct {
	Values []int
	Calls  []int // the n passed to each Intn call

	pos int
}

// NewScriptedSource creates a source replaying values
func NewScriptedSource(values ...int) *ScriptedSource {
	return &ScriptedSource{Values: values}
}

// Intn returns the next scripted value modulo n
func (s *ScriptedSource) Intn(n int) int {
	s.Calls = append(s.Calls, n)
	if len(s.Values) == 0 {
		return 0
	}
	v := s.Values[s.pos%len(s.Values)]
	s.pos++
	if v < 0 {
		v = -v
	}
	return v % n
}

// IdentitySource always picks j == i, so Fisher–Yates leaves the input order
type IdentitySource struct{}

// Intn returns n-1
func (IdentitySource) Intn(n int) int { return n - 1 }

// SeededSource returns a reproducible *rand.Rand
func SeededSource(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// LockedSource wraps a *rand.Rand for use from several goroutines
type LockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLockedSource creates a goroutine-safe seeded source
func NewLockedSource(seed int64) *LockedSource {
	return &LockedSource{rng: SeededSource(seed)}
}

// Intn returns a uniform integer in [0, n)
func (l *LockedSource) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Intn(n)
}
