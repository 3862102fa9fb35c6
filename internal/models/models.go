package models

import (
	"encoding/json"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/r2"
)

// City is a labeled point of a problem instance. The ID is caller-assigned
// and is the stable key used by tours and lookups.
type City struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Point returns the city location as a planar point
func (c City) Point() r2.Point {
	return r2.Point{X: c.X, Y: c.Y}
}

// Instance is a parsed problem instance
type Instance struct {
	Name    string `json:"name"`
	Comment string `json:"comment,omitempty"`
	Cities  []City `json:"cities"`
}

// IDs returns the city ids in instance order
func (in *Instance) IDs() []int {
	ids := make([]int, len(in.Cities))
	for i, c := range in.Cities {
		ids[i] = c.ID
	}
	return ids
}

// Tour is a cyclic visiting order of city ids. The last city connects back
// to the first.
type Tour []int

// Clone returns an independent copy of the tour
func (t Tour) Clone() Tour {
	if t == nil {
		return nil
	}
	out := make(Tour, len(t))
	copy(out, t)
	return out
}

// String renders the tour as "1 -> 3 -> 2"
func (t Tour) String() string {
	parts := make([]string, len(t))
	for i, id := range t {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, " -> ")
}

// HistoryPoint is one (iteration, distance) sample of the convergence log
type HistoryPoint struct {
	Iteration int     `json:"iteration"`
	Distance  float64 `json:"distance"`
}

// HistoryView is a read-only window over an append-only history log.
// A view never observes entries appended after it was taken.
type HistoryView struct {
	points []HistoryPoint
}

// NewHistoryView wraps points without copying. The slice is capped at its
// length so appends made by the owner never alias into the view.
func NewHistoryView(points []HistoryPoint) HistoryView {
	return HistoryView{points: points[:len(points):len(points)]}
}

// Len returns the number of samples in the view
func (v HistoryView) Len() int { return len(v.points) }

// At returns the i-th sample
func (v HistoryView) At(i int) HistoryPoint { return v.points[i] }

// Last returns the most recent sample, if any
func (v HistoryView) Last() (HistoryPoint, bool) {
	if len(v.points) == 0 {
		return HistoryPoint{}, false
	}
	return v.points[len(v.points)-1], true
}

// Points returns a copy of the samples
func (v HistoryView) Points() []HistoryPoint {
	out := make([]HistoryPoint, len(v.points))
	copy(out, v.points)
	return out
}

// Since returns a copy of the samples with Iteration >= from
func (v HistoryView) Since(from int) []HistoryPoint {
	out := []HistoryPoint{}
	for _, p := range v.points {
		if p.Iteration >= from {
			out = append(out, p)
		}
	}
	return out
}

// All iterates over the samples in order
func (v HistoryView) All() iter.Seq[HistoryPoint] {
	return func(yield func(HistoryPoint) bool) {
		for _, p := range v.points {
			if !yield(p) {
				return
			}
		}
	}
}

// MarshalJSON encodes the view as a plain array of samples
func (v HistoryView) MarshalJSON() ([]byte, error) {
	if v.points == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v.points)
}

// Snapshot is an immutable copy of the search state published after every
// engine transition. Readers must not modify Tour.
type Snapshot struct {
	Tour                Tour        `json:"tour"`
	Length              float64     `json:"length"`
	Iteration           int         `json:"iteration"`
	History             HistoryView `json:"history"`
	CityCount           int         `json:"city_count"`
	LastCandidateLength float64     `json:"last_candidate_length"`
	Improved            bool        `json:"improved"`
	InitializedAt       time.Time   `json:"initialized_at"`
}

// Settings holds persisted host configuration
type Settings struct {
	TickMillis    int    `json:"tick_millis"`
	CandidateMode string `json:"candidate_mode"`
	LookupPolicy  string `json:"lookup_policy"`
	HistoryRecord string `json:"history_record"`
	ShowPath      bool   `json:"show_path"`
}

// TickPeriod returns the scheduler period described by the settings
func (s *Settings) TickPeriod() time.Duration {
	if s.TickMillis <= 0 {
		return time.Second
	}
	return time.Duration(s.TickMillis) * time.Millisecond
}

// RunRecord is the archived summary of a finished or replaced search run
type RunRecord struct {
	ID            string    `json:"id"`
	InstanceName  string    `json:"instance_name"`
	CityCount     int       `json:"city_count"`
	BestLength    float64   `json:"best_length"`
	Iterations    int       `json:"iterations"`
	Tour          Tour      `json:"tour"`
	CandidateMode string    `json:"candidate_mode"`
	LookupPolicy  string    `json:"lookup_policy"`
	HistoryRecord string    `json:"history_record"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}
