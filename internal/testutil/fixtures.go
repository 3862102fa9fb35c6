package testutil

import (
	"math/rand"

	"tsp-search/internal/models"
)

// Triangle is the 3-4-5 instance whose tour [1 2 3] has length 12
func Triangle() []models.City {
	return []models.City{
		{ID: 1, X: 0, Y: 0},
		{ID: 2, X: 3, Y: 0},
		{ID: 3, X: 3, Y: 4},
	}
}

// UnitSquare is a 4-city square with side 1; the optimal tour has length 4
func UnitSquare() []models.City {
	return []models.City{
		{ID: 10, X: 0, Y: 0},
		{ID: 20, X: 1, Y: 0},
		{ID: 30, X: 1, Y: 1},
		{ID: 40, X: 0, Y: 1},
	}
}

// RandomCities returns n cities with ids 1..n scattered over a 1000x1000 box
func RandomCities(n int, seed int64) []models.City {
	rng := rand.New(rand.NewSource(seed))
	cities := make([]models.City, n)
	for i := range cities {
		cities[i] = models.City{
			ID: i + 1,
			X:  rng.Float64() * 1000,
			Y:  rng.Float64() * 1000,
		}
	}
	return cities
}

// Instance wraps cities into a named instance
func Instance(name string, cities []models.City) *models.Instance {
	return &models.Instance{Name: name, Cities: cities}
}

// TSPLIB is a small well-formed TSPLIB document with 5 cities
const TSPLIB = `NAME : five
COMMENT : test fixture
TYPE : TSP
DIMENSION : 5
EDGE_WEIGHT_TYPE : EUC_2D
NODE_COORD_SECTION
1 0 0
2 10 0
3 10 10
4 0 10
5 5 5
EOF
`
