// Package chart draws the distance-vs-iteration convergence chart.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"tsp-search/internal/models"
)

// ErrUnsupportedFormat is returned for image formats other than png and svg
var ErrUnsupportedFormat = errors.New("chart: unsupported format")

const (
	DefaultWidth  = 6 * vg.Inch
	DefaultHeight = 4 * vg.Inch
)

// Options controls the rendered image
type Options struct {
	Title  string
	Format string // "png" (default) or "svg"
	Width  vg.Length
	Height vg.Length
}

// ContentType returns the MIME type for a chart format
func ContentType(format string) string {
	if normalizeFormat(format) == "svg" {
		return "image/svg+xml"
	}
	return "image/png"
}

// Render writes the chart for points to w. Two series are drawn: the
// recorded distance of every iteration and the best distance seen up to
// that iteration.
func Render(w io.Writer, points []models.HistoryPoint, opts Options) error {
	format := normalizeFormat(opts.Format)
	if format != "png" && format != "svg" {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Distance"
	p.Add(plotter.NewGrid())

	if len(points) > 0 {
		recorded, best := series(points)

		recordedLine, err := plotter.NewLine(recorded)
		if err != nil {
			return fmt.Errorf("failed to build distance series: %w", err)
		}
		recordedLine.Color = color.RGBA{R: 70, G: 130, B: 180, A: 255}

		bestLine, err := plotter.NewLine(best)
		if err != nil {
			return fmt.Errorf("failed to build best series: %w", err)
		}
		bestLine.Color = color.RGBA{R: 220, G: 20, B: 60, A: 255}
		bestLine.Width = vg.Points(1.5)

		p.Add(recordedLine, bestLine)
		p.Legend.Add("distance", recordedLine)
		p.Legend.Add("best", bestLine)
		p.Legend.Top = true
	}

	wt, err := p.WriterTo(opts.Width, opts.Height, format)
	if err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	return nil
}

func series(points []models.HistoryPoint) (recorded, best plotter.XYs) {
	recorded = make(plotter.XYs, len(points))
	best = make(plotter.XYs, len(points))

	low := points[0].Distance
	for i, pt := range points {
		if pt.Distance < low {
			low = pt.Distance
		}
		recorded[i].X = float64(pt.Iteration)
		recorded[i].Y = pt.Distance
		best[i].X = float64(pt.Iteration)
		best[i].Y = low
	}
	return recorded, best
}

func normalizeFormat(format string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		return "png"
	}
	return f
}
