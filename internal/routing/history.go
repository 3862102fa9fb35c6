package routing

import "tsp-search/internal/models"

// history is the engine-owned convergence log. It only grows; readers get
// capped views, never the backing slice.
type history struct {
	points []models.HistoryPoint
}

func newHistory(first models.HistoryPoint) *history {
	points := make([]models.HistoryPoint, 1, 64)
	points[0] = first
	return &history{points: points}
}

func (h *history) append(p models.HistoryPoint) {
	h.points = append(h.points, p)
}

func (h *history) view() models.HistoryView {
	return models.NewHistoryView(h.points)
}
