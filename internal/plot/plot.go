// Package plot renders a run's compartment loadings as a PNG chart.
package plot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/chrissnell/divesync/internal/analysis"
	"github.com/chrissnell/divesync/pkg/deco"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Options controls chart size and content. Sizes are in inches.
type Options struct {
	Title   string
	Width   float64
	Height  float64
	Ceiling bool // add the controlling compartment's ceiling (ATA)
}

// DefaultOptions gives a 640x480 chart at the default 96 dpi
func DefaultOptions() Options {
	return Options{Title: "Compartment loading", Width: 640.0 / 96, Height: 480.0 / 96}
}

func (o Options) size() (vg.Length, vg.Length) {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	return vg.Length(o.Width) * vg.Inch, vg.Length(o.Height) * vg.Inch
}

// Build assembles the chart: one loading line per compartment against
// elapsed time
func Build(res *deco.RunResult, opts Options) (*plot.Plot, error) {
	if res == nil || len(res.Snapshots) == 0 || len(res.Snapshots[0]) == 0 {
		return nil, analysis.ErrEmptyResult
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Elapsed time (min)"
	p.Y.Label.Text = "Inert gas loading (ATA)"
	p.Add(plotter.NewGrid())

	times := analysis.ElapsedTimes(res)
	for i, first := range res.Snapshots[0] {
		loads := analysis.Series(res, first.Compartment, func(s deco.CompartmentSnapshot) float64 { return s.Loading() })

		line, err := plotter.NewLine(xys(times, loads))
		if err != nil {
			return nil, fmt.Errorf("compartment %d: %w", first.Compartment, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i / len(plotutil.DefaultColors))
		p.Add(line)
		p.Legend.Add(strconv.Itoa(first.Compartment+1), line)
	}

	if opts.Ceiling {
		sum, err := analysis.Summarize(res)
		if err != nil {
			return nil, err
		}
		ceilings := analysis.Series(res, sum.Controlling, func(s deco.CompartmentSnapshot) float64 { return s.Ceiling })
		line, err := plotter.NewLine(xys(times, ceilings))
		if err != nil {
			return nil, fmt.Errorf("ceiling: %w", err)
		}
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add("ceiling", line)
	}

	p.Legend.Top = true
	return p, nil
}

func xys(x, y []float64) plotter.XYs {
	pts := make(plotter.XYs, len(y))
	for i := range y {
		pts[i].X = x[i]
		pts[i].Y = y[i]
	}
	return pts
}

// WritePNG renders the chart to w
func WritePNG(w io.Writer, res *deco.RunResult, opts Options) error {
	p, err := Build(res, opts)
	if err != nil {
		return err
	}
	width, height := opts.size()
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// Render writes the chart to path, creating parent directories
func Render(res *deco.RunResult, path string, opts Options) error {
	if path == "" {
		return errors.New("plot path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}
	p, err := Build(res, opts)
	if err != nil {
		return err
	}
	width, height := opts.size()
	return p.Save(width, height, path)
}

// Path is the default plot location for a run written at t: <dir>/<unix ms>.png
func Path(dir string, t time.Time) string {
	return filepath.Join(dir, strconv.FormatInt(t.UnixMilli(), 10)+".png")
}
