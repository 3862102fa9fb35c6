package handlers

import (
	geojson "github.com/paulmach/go.geojson"

	"tsp-search/internal/models"
	"tsp-search/internal/routing"
)

// RouteFeatureCollection exports the instance cities as points and the
// incumbent tour as a closed line string. Coordinates are the raw instance
// plane, not WGS84.
func RouteFeatureCollection(inst *models.Instance, snap models.Snapshot) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, c := range inst.Cities {
		f := geojson.NewPointFeature([]float64{c.X, c.Y})
		f.ID = c.ID
		f.SetProperty("kind", "city")
		f.SetProperty("city_id", c.ID)
		fc.AddFeature(f)
	}

	index := routing.CityIndex(inst.Cities)
	line := make([][]float64, 0, len(snap.Tour)+1)
	for _, id := range snap.Tour {
		if c, ok := index[id]; ok {
			line = append(line, []float64{c.X, c.Y})
		}
	}
	if len(line) > 1 {
		line = append(line, line[0])
	}

	tour := geojson.NewLineStringFeature(line)
	tour.SetProperty("kind", "tour")
	tour.SetProperty("name", inst.Name)
	tour.SetProperty("length", snap.Length)
	tour.SetProperty("iteration", snap.Iteration)
	tour.SetProperty("order", []int(snap.Tour))
	fc.AddFeature(tour)

	return fc
}
