package routing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsp-search/internal/models"
	"tsp-search/internal/testutil"
)

func TestEvaluate_ClosedCycle(t *testing.T) {
	cities := CityIndex(testutil.Triangle())

	length, err := Evaluate(models.Tour{1, 2, 3}, cities, LookupStrict)

	require.NoError(t, err)
	assert.Equal(t, 12.0, length)
}

func TestEvaluate_RotationAndReversalInvariant(t *testing.T) {
	cities := CityIndex(testutil.UnitSquare())

	for _, tour := range []models.Tour{
		{10, 20, 30, 40},
		{20, 30, 40, 10},
		{40, 30, 20, 10},
	} {
		length, err := Evaluate(tour, cities, LookupLenient)
		require.NoError(t, err)
		assert.InDelta(t, 4.0, length, 1e-12, "tour %v", tour)
	}
}

func TestEvaluate_ShortTours(t *testing.T) {
	cities := CityIndex(testutil.Triangle())

	length, err := Evaluate(models.Tour{}, cities, LookupStrict)
	require.NoError(t, err)
	assert.Equal(t, 0.0, length)

	length, err = Evaluate(models.Tour{2}, cities, LookupStrict)
	require.NoError(t, err)
	assert.Equal(t, 0.0, length)

	// out and back
	length, err = Evaluate(models.Tour{1, 2}, cities, LookupStrict)
	require.NoError(t, err)
	assert.Equal(t, 6.0, length)
}

func TestEvaluate_LenientSkipsUnknownIDs(t *testing.T) {
	cities := CityIndex(testutil.Triangle())

	// 1->2 = 3, 2->99 skipped, 99->3 skipped, 3->1 = 5
	length, err := Evaluate(models.Tour{1, 2, 99, 3}, cities, LookupLenient)

	require.NoError(t, err)
	assert.Equal(t, 8.0, length)
}

func TestEvaluate_StrictReportsUnknownID(t *testing.T) {
	cities := CityIndex(testutil.Triangle())

	_, err := Evaluate(models.Tour{1, 2, 99, 3}, cities, LookupStrict)

	var missing *MissingCityError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, 99, missing.ID)
	assert.Contains(t, err.Error(), "99")
}

func TestEvaluate_NonFinite(t *testing.T) {
	cities := CityIndex([]models.City{
		{ID: 1, X: -1e308, Y: 0},
		{ID: 2, X: 1e308, Y: 0},
	})

	_, err := Evaluate(models.Tour{1, 2}, cities, LookupLenient)

	assert.ErrorIs(t, err, ErrNonFiniteDistance)
}

func TestEvaluate_Deterministic(t *testing.T) {
	cities := testutil.RandomCities(30, 3)
	index := CityIndex(cities)
	tour := Shuffle(testutil.Instance("r30", cities).IDs(), testutil.SeededSource(5))

	a, err := Evaluate(tour, index, LookupStrict)
	require.NoError(t, err)
	b, err := Evaluate(tour, index, LookupStrict)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
