package routing

import (
	"fmt"
	"strings"

	"tsp-search/internal/models"
)

// CandidateMode defines how each step draws its candidate tour
type CandidateMode string

const (
	CandidateFullSet   CandidateMode = "full"      // independent shuffle of the full city id set
	CandidateIncumbent CandidateMode = "incumbent" // shuffle of the current incumbent order
)

// LookupPolicy defines how the evaluator treats tour ids missing from the city map
type LookupPolicy string

const (
	LookupLenient LookupPolicy = "lenient" // missing ids contribute no edge length
	LookupStrict  LookupPolicy = "strict"  // missing ids fail with *MissingCityError
)

// HistoryRecord defines which distance a step appends to the history log
type HistoryRecord string

const (
	RecordCandidate HistoryRecord = "candidate" // the sampled candidate's length, improving or not
	RecordIncumbent HistoryRecord = "incumbent" // the incumbent length after the step
)

// EngineConfig selects the engine's update rule variants
type EngineConfig struct {
	Candidate CandidateMode
	Lookup    LookupPolicy
	Record    HistoryRecord
}

// DefaultEngineConfig returns the reference behavior: independent restarts,
// lenient lookups, candidate lengths in the history.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Candidate: CandidateFullSet,
		Lookup:    LookupLenient,
		Record:    RecordCandidate,
	}
}

// Stepper is the unit of work a scheduler drives once per tick
type Stepper interface {
	Step() (models.Snapshot, error)
}

// ParseEngineConfig builds a config from its textual form. Empty values
// fall back to the defaults.
func ParseEngineConfig(candidate, lookup, record string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()

	switch CandidateMode(strings.ToLower(strings.TrimSpace(candidate))) {
	case "":
	case CandidateFullSet:
		cfg.Candidate = CandidateFullSet
	case CandidateIncumbent:
		cfg.Candidate = CandidateIncumbent
	default:
		return cfg, fmt.Errorf("%w: candidate mode %q", ErrInvalidConfig, candidate)
	}

	switch LookupPolicy(strings.ToLower(strings.TrimSpace(lookup))) {
	case "":
	case LookupLenient:
		cfg.Lookup = LookupLenient
	case LookupStrict:
		cfg.Lookup = LookupStrict
	default:
		return cfg, fmt.Errorf("%w: lookup policy %q", ErrInvalidConfig, lookup)
	}

	switch HistoryRecord(strings.ToLower(strings.TrimSpace(record))) {
	case "":
	case RecordCandidate:
		cfg.Record = RecordCandidate
	case RecordIncumbent:
		cfg.Record = RecordIncumbent
	default:
		return cfg, fmt.Errorf("%w: history record %q", ErrInvalidConfig, record)
	}

	return cfg, nil
}
