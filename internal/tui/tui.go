// Package tui draws the running search in a terminal: the cities, the
// incumbent tour and a status line, with keys to drive the session.
package tui

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"tsp-search/internal/distance"
	"tsp-search/internal/models"
	"tsp-search/internal/routing"
	"tsp-search/internal/session"
)

const (
	footerRows = 3
	helpLine   = "space start/stop  s step  p path  q quit"
)

var (
	cityStyle   = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	pathStyle   = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	statusStyle = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	errorStyle  = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	helpStyle   = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

// View renders a session on a tcell screen
type View struct {
	screen  tcell.Screen
	session *session.Session
	logger  *zap.Logger
	message string
}

// New creates a view on an initialized screen. Run finalizes the screen.
func New(screen tcell.Screen, sess *session.Session, logger *zap.Logger) *View {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &View{
		screen:  screen,
		session: sess,
		logger:  logger.Named("tui"),
	}
}

// Run processes input and snapshot updates until the user quits or ctx is
// cancelled
func (v *View) Run(ctx context.Context) error {
	defer v.screen.Fini()

	updates, unsubscribe := v.session.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	v.draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-updates:
			if !ok {
				return nil
			}
			v.draw()
		case ev := <-events:
			if !v.handleEvent(ev) {
				return nil
			}
			v.draw()
		}
	}
}

// handleEvent applies one input event and reports whether to keep running
func (v *View) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case ' ':
				running, err := v.session.Toggle()
				v.report(err)
				if err == nil {
					v.logger.Debug("toggled", zap.Bool("running", running))
				}
			case 's':
				_, err := v.session.Step()
				v.report(err)
			case 'p':
				v.session.TogglePath()
			}
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

func (v *View) report(err error) {
	if err != nil {
		v.message = err.Error()
		return
	}
	v.message = ""
}

func (v *View) draw() {
	v.screen.Clear()
	width, height := v.screen.Size()
	mapHeight := height - footerRows

	snap, loaded := v.session.Snapshot()
	inst := v.session.Instance()

	if loaded && inst != nil && mapHeight > 1 && width > 1 {
		plane := newProjection(inst.Cities, width, mapHeight)
		if v.session.ShowPath() && len(snap.Tour) > 1 {
			index := routing.CityIndex(inst.Cities)
			for i, id := range snap.Tour {
				next := snap.Tour[(i+1)%len(snap.Tour)]
				a, okA := index[id]
				b, okB := index[next]
				if !okA || !okB {
					continue
				}
				x0, y0 := plane.project(a)
				x1, y1 := plane.project(b)
				v.line(x0, y0, x1, y1)
			}
		}
		for _, c := range inst.Cities {
			x, y := plane.project(c)
			v.screen.SetContent(x, y, 'o', nil, cityStyle)
		}
	}

	v.text(0, height-3, statusLine(inst, snap, loaded, v.session.Running()), statusStyle)
	summary := "No data"
	if loaded && len(snap.Tour) > 0 {
		summary = snap.Tour.String()
	}
	if v.message != "" {
		v.text(0, height-2, v.message, errorStyle)
	} else {
		v.text(0, height-2, summary, tcell.StyleDefault)
	}
	v.text(0, height-1, helpLine, helpStyle)

	v.screen.Show()
}

func statusLine(inst *models.Instance, snap models.Snapshot, loaded, running bool) string {
	if !loaded || inst == nil {
		return "no instance loaded"
	}
	state := "stopped"
	if running {
		state = "running"
	}
	return fmt.Sprintf("%s  cities %d  iteration %s  length %.2f  [%s]",
		inst.Name, snap.CityCount, humanize.Comma(int64(snap.Iteration)), snap.Length, state)
}

func (v *View) text(x, y int, s string, style tcell.Style) {
	width, _ := v.screen.Size()
	for _, r := range s {
		if x >= width {
			return
		}
		v.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

// line draws a Bresenham segment between two cells
func (v *View) line(x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		v.screen.SetContent(x0, y0, '.', nil, pathStyle)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// projection maps the instance plane onto a grid of cells
type projection struct {
	minX, minY     float64
	scaleX, scaleY float64
	maxCol, maxRow int
}

func newProjection(cities []models.City, cols, rows int) projection {
	bounds := distance.Bounds(cities)
	p := projection{
		minX:   bounds.X.Lo,
		minY:   bounds.Y.Lo,
		maxCol: cols - 1,
		maxRow: rows - 1,
	}
	if w := bounds.X.Length(); w > 0 {
		p.scaleX = float64(p.maxCol) / w
	}
	if h := bounds.Y.Length(); h > 0 {
		p.scaleY = float64(p.maxRow) / h
	}
	return p
}

func (p projection) project(c models.City) (int, int) {
	col := int((c.X-p.minX)*p.scaleX + 0.5)
	row := int((c.Y-p.minY)*p.scaleY + 0.5)
	return clamp(col, p.maxCol), clamp(row, p.maxRow)
}

func clamp(n, hi int) int {
	if n < 0 {
		return 0
	}
	if n > hi {
		return hi
	}
	return n
}
