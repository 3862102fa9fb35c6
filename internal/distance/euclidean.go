package distance

import (
	"github.com/golang/geo/r2"

	"tsp-search/internal/models"
)

// Euclidean returns the straight-line distance between two cities.
// It is symmetric and Euclidean(a, a) == 0.
func Euclidean(a, b models.City) float64 {
	return a.Point().Sub(b.Point()).Norm()
}

// Bounds returns the bounding box of the cities. An empty input yields the
// empty rectangle.
func Bounds(cities []models.City) r2.Rect {
	if len(cities) == 0 {
		return r2.EmptyRect()
	}
	pts := make([]r2.Point, len(cities))
	for i, c := range cities {
		pts[i] = c.Point()
	}
	return r2.RectFromPoints(pts...)
}
