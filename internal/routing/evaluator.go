package routing

import (
	"math"

	"tsp-search/internal/distance"
	"tsp-search/internal/models"
)

// CityIndex maps city ids to cities. Later duplicates win; callers that need
// unique ids validate before indexing.
func CityIndex(cities []models.City) map[int]models.City {
	index := make(map[int]models.City, len(cities))
	for _, c := range cities {
		index[c.ID] = c
	}
	return index
}

// Evaluate returns the closed-cycle length of tour: the sum of consecutive
// edges plus the edge from the last city back to the first. Tours with fewer
// than two cities have length 0.
//
// Under LookupLenient an edge touching an unknown id contributes 0. Under
// LookupStrict the first unknown id fails with *MissingCityError.
func Evaluate(tour models.Tour, cities map[int]models.City, policy LookupPolicy) (float64, error) {
	n := len(tour)
	if n == 0 {
		return 0, nil
	}

	total := 0.0
	for i := 0; i < n; i++ {
		fromID := tour[i]
		toID := tour[(i+1)%n]

		from, okFrom := cities[fromID]
		to, okTo := cities[toID]
		if !okFrom || !okTo {
			if policy == LookupStrict {
				if !okFrom {
					return 0, &MissingCityError{ID: fromID}
				}
				return 0, &MissingCityError{ID: toID}
			}
			continue
		}
		total += distance.Euclidean(from, to)
	}

	if math.IsNaN(total) || math.IsInf(total, 0) {
		return 0, ErrNonFiniteDistance
	}
	return total, nil
}
