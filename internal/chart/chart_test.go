package chart

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsp-search/internal/models"
)

func samplePoints() []models.HistoryPoint {
	return []models.HistoryPoint{
		{Iteration: 0, Distance: 50},
		{Iteration: 1, Distance: 62},
		{Iteration: 2, Distance: 41},
		{Iteration: 3, Distance: 45},
	}
}

func TestRender_PNG(t *testing.T) {
	var buf bytes.Buffer

	err := Render(&buf, samplePoints(), Options{Title: "five"})

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestRender_SVG(t *testing.T) {
	var buf bytes.Buffer

	err := Render(&buf, samplePoints(), Options{Format: "SVG"})

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "<svg")
}

func TestRender_EmptyHistory(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, Render(&buf, nil, Options{}))
	assert.NotZero(t, buf.Len())
}

func TestRender_UnsupportedFormat(t *testing.T) {
	err := Render(&bytes.Buffer{}, samplePoints(), Options{Format: "gif"})

	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSeries_RunningBest(t *testing.T) {
	recorded, best := series(samplePoints())

	require.Len(t, recorded, 4)
	assert.Equal(t, 62.0, recorded[1].Y)
	assert.Equal(t, []float64{50, 50, 41, 41}, []float64{best[0].Y, best[1].Y, best[2].Y, best[3].Y})
	assert.Equal(t, 3.0, best[3].X)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType(""))
	assert.Equal(t, "image/svg+xml", ContentType("svg"))
}
