package tracker

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/samuelfneumann/sweeper/environment"
	"github.com/samuelfneumann/sweeper/timestep"
)

// Curve plots learning curves of the data tracked by a Return and an
// Outcome Tracker. On Save, the moving average of the episodic return
// is plotted to <prefix>_return.png and the moving win rate is plotted
// to <prefix>_winrate.png.
type Curve struct {
	returns  *Return
	outcomes *Outcome
	window   int
	prefix   string
}

// NewCurve returns a new Curve which plots the data of r and o using a
// moving average over window episodes
func NewCurve(prefix string, window int, r *Return, o *Outcome) *Curve {
	if window < 1 {
		window = 1
	}
	return &Curve{returns: r, outcomes: o, window: window, prefix: prefix}
}

// Track does nothing, the data is tracked by the wrapped Trackers
func (c *Curve) Track(timestep.TimeStep) {}

// EndEpisode does nothing, the data is tracked by the wrapped Trackers
func (c *Curve) EndEpisode(environment.Outcome) {}

// Save plots the learning curves
func (c *Curve) Save() error {
	curves := []struct {
		name, label string
		data        []float64
	}{
		{"return", "Return", c.returns.Data()},
		{"winrate", "Win rate", c.outcomes.Wins()},
	}

	for i, curve := range curves {
		if len(curve.data) == 0 {
			continue
		}

		p := plot.New()
		p.Title.Text = fmt.Sprintf("%v (moving average over %d episodes)",
			curve.label, c.window)
		p.X.Label.Text = "Episode"
		p.Y.Label.Text = curve.label

		line, err := plotter.NewLine(MovingAverage(curve.data, c.window))
		if err != nil {
			return fmt.Errorf("save: could not plot %v: %v", curve.name, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)

		filename := strings.Join([]string{c.prefix, curve.name}, "_") + ".png"
		if err := p.Save(8*vg.Inch, 4*vg.Inch, filename); err != nil {
			return fmt.Errorf("save: could not save %v: %v", filename, err)
		}
	}
	return nil
}

// MovingAverage returns the trailing moving average of data over
// window elements. The first window-1 points average over all
// available elements.
func MovingAverage(data []float64, window int) plotter.XYs {
	points := make(plotter.XYs, len(data))
	for i := range data {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		points[i] = plotter.XY{
			X: float64(i + 1),
			Y: stat.Mean(data[start:i+1], nil),
		}
	}
	return points
}
