package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"tsp-search/internal/distance"
	"tsp-search/internal/models"
	"tsp-search/internal/routing"
)

const mapPadding = 50

// MapPoint is a city marker on the instance map
type MapPoint struct {
	ID int
	X  float64
	Y  float64
}

// MapView is the SVG rendering of the instance and the incumbent tour
type MapView struct {
	ViewBox  string
	Radius   float64
	Points   []MapPoint
	Polyline string
}

// SearchView is the data behind the search status partial
type SearchView struct {
	Loaded    bool
	Running   bool
	RunID     string
	Instance  string
	CityCount int
	Summary   string
	Length    string
	Iteration string
	ShowPath  bool
	Map       *MapView
}

func (h *Handler) buildSearchView(snap models.Snapshot, loaded bool) SearchView {
	view := SearchView{
		Loaded:   loaded,
		Running:  h.Session.Running(),
		Summary:  "No data",
		Length:   formatLength(0),
		ShowPath: h.Session.ShowPath(),
	}

	if !loaded {
		return view
	}

	inst := h.Session.Instance()
	view.RunID = h.Session.RunID()
	view.CityCount = snap.CityCount
	view.Length = formatLength(snap.Length)
	view.Iteration = formatIteration(snap.Iteration)
	if len(snap.Tour) > 0 {
		view.Summary = snap.Tour.String()
	}
	if inst != nil {
		view.Instance = inst.Name
		view.Map = buildMapView(inst.Cities, snap.Tour, view.ShowPath)
	}
	return view
}

// buildMapView lays the cities out in their own coordinate plane with a
// fixed padding around the bounding box
func buildMapView(cities []models.City, tour models.Tour, showPath bool) *MapView {
	if len(cities) == 0 {
		return nil
	}

	bounds := distance.Bounds(cities)
	width := bounds.X.Length() + 2*mapPadding
	height := bounds.Y.Length() + 2*mapPadding

	view := &MapView{
		ViewBox: fmt.Sprintf("%g %g %g %g", bounds.X.Lo-mapPadding, bounds.Y.Lo-mapPadding, width, height),
		Radius:  width / 150,
		Points:  make([]MapPoint, len(cities)),
	}
	for i, c := range cities {
		view.Points[i] = MapPoint{ID: c.ID, X: c.X, Y: c.Y}
	}

	if showPath && len(tour) > 0 {
		index := routing.CityIndex(cities)
		coords := make([]string, 0, len(tour)+1)
		for _, id := range append(tour.Clone(), tour[0]) {
			if c, ok := index[id]; ok {
				coords = append(coords, fmt.Sprintf("%g,%g", c.X, c.Y))
			}
		}
		view.Polyline = strings.Join(coords, " ")
	}

	return view
}

// HandleIndexPage handles GET /
func (h *Handler) HandleIndexPage(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.Session.Snapshot()

	data := map[string]interface{}{
		"Title":      "Route Search",
		"ActivePage": "home",
		"Desktop":    h.Desktop,
		"Search":     h.buildSearchView(snap, ok),
	}

	h.renderTemplate(w, "index.html", data)
}

// HandleSearchStatus handles GET /partials/search-status for htmx polling
func (h *Handler) HandleSearchStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.Session.Snapshot()
	h.renderTemplate(w, "search_status.html", h.buildSearchView(snap, ok))
}

// HandleHistoryPage handles GET /history
func (h *Handler) HandleHistoryPage(w http.ResponseWriter, r *http.Request) {
	runs, total, err := h.DB.Runs().List(r.Context(), 20, 0)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data := map[string]interface{}{
		"Title":      "Run History",
		"ActivePage": "history",
		"Desktop":    h.Desktop,
		"Runs":       runs,
		"Total":      total,
	}

	h.renderTemplate(w, "history.html", data)
}

// HandleSettingsPage handles GET /settings
func (h *Handler) HandleSettingsPage(w http.ResponseWriter, r *http.Request) {
	settings, err := h.DB.Settings().Get(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data := map[string]interface{}{
		"Title":      "Settings",
		"ActivePage": "settings",
		"Desktop":    h.Desktop,
		"Settings":   settings,
	}

	h.renderTemplate(w, "settings.html", data)
}
