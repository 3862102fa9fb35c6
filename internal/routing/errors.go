package routing

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInstance is returned when an engine is initialized without cities
	ErrEmptyInstance = errors.New("routing: instance has no cities")

	// ErrDuplicateCity is returned when two cities share an id
	ErrDuplicateCity = errors.New("routing: duplicate city id")

	// ErrInvalidCoordinate is returned when a city coordinate is NaN or infinite
	ErrInvalidCoordinate = errors.New("routing: city coordinate is not finite")

	// ErrNonFiniteDistance is returned when a tour length overflows or is NaN
	ErrNonFiniteDistance = errors.New("routing: tour length is not finite")

	// ErrNotInitialized is returned when Step is called before Initialize
	ErrNotInitialized = errors.New("routing: engine not initialized")

	// ErrInvalidConfig is returned for unknown mode names
	ErrInvalidConfig = errors.New("routing: invalid engine config")
)

// MissingCityError is returned by strict evaluation when a tour references
// an id that is not part of the instance
type MissingCityError struct {
	ID int
}

func (e *MissingCityError) Error() string {
	return fmt.Sprintf("routing: tour references unknown city %d", e.ID)
}
