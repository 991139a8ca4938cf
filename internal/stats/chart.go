package stats

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// NamedCurve labels a learning curve in a chart.
type NamedCurve struct {
	Name  string
	Curve []CurvePoint
}

// RenderCurveHTML writes a page with a fitness chart (mean and best per
// episode) and a graph size chart (mean state count per episode).
func RenderCurveHTML(w io.Writer, title string, curves ...NamedCurve) error {
	if len(curves) == 0 {
		return fmt.Errorf("at least one curve is required")
	}

	fitness := charts.NewLine()
	fitness.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "fitness per episode"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: "shine"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	states := charts.NewLine()
	states.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "mean states per episode"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: "shine"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	axis := episodeAxis(curves)
	fitness.SetXAxis(axis)
	states.SetXAxis(axis)
	for _, named := range curves {
		mean := make([]opts.LineData, 0, len(named.Curve))
		best := make([]opts.LineData, 0, len(named.Curve))
		size := make([]opts.LineData, 0, len(named.Curve))
		for _, point := range named.Curve {
			mean = append(mean, opts.LineData{Value: point.Mean})
			best = append(best, opts.LineData{Value: point.Best})
			size = append(size, opts.LineData{Value: point.MeanStates})
		}
		fitness.AddSeries(named.Name+" mean", mean)
		fitness.AddSeries(named.Name+" best", best)
		states.AddSeries(named.Name, size)
	}

	page := components.NewPage()
	page.AddCharts(fitness, states)
	return page.Render(w)
}

// WriteCurveHTML renders the chart page into path, creating parent
// directories as needed.
func WriteCurveHTML(path, title string, curves ...NamedCurve) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return RenderCurveHTML(file, title, curves...)
}

func episodeAxis(curves []NamedCurve) []string {
	longest := 0
	for _, named := range curves {
		longest = max(longest, len(named.Curve))
	}
	axis := make([]string, 0, longest)
	for i := 0; i < longest; i++ {
		axis = append(axis, strconv.Itoa(i))
	}
	return axis
}
