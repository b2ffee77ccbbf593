// Package report renders simulation results as interactive HTML charts.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/xtding233/wishsim/internal/gacha"
	"github.com/xtding233/wishsim/internal/sim"
)

// ChartConfig holds configuration shared by every chart on a page.
type ChartConfig struct {
	Title  string
	Width  string // e.g. "900px"
	Height string
	Theme  string
	Colors []string
}

func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Title:  "Wish plan",
		Width:  "900px",
		Height: "450px",
		Theme:  "light",
		Colors: []string{"#5470C6", "#91CC75", "#FAC858", "#EE6666", "#73C0DE", "#3BA272", "#FC8452"},
	}
}

func (c ChartConfig) globals(title, subtitle string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{Width: c.Width, Height: c.Height, Theme: c.Theme}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithColorsOpts(opts.Colors(c.Colors)),
	}
}

// Timeline charts the projected pull balance before each target.
func Timeline(res *sim.Result, cfg ChartConfig) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(cfg.globals(cfg.Title+": pull timeline", "projected pulls available at each banner")...)

	labels := make([]string, len(res.PullTimeline))
	data := make([]opts.LineData, len(res.PullTimeline))
	for i, p := range res.PullTimeline {
		labels[i] = p.Date
		data[i] = opts.LineData{Value: p.ProjectedPulls, Name: p.Event}
	}
	line.SetXAxis(labels).
		AddSeries("Projected pulls", data).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(true)}))
	return line
}

// Targets charts each target's success probability in percent.
func Targets(res *sim.Result, cfg ChartConfig) *charts.Bar {
	bar := charts.NewBar()
	subtitle := fmt.Sprintf("%d trials, all must-haves %.1f%%", res.CompletedIterations, 100*res.AllMustHavesProbability)
	if res.Partial {
		subtitle += " (partial)"
	}
	bar.SetGlobalOptions(cfg.globals(cfg.Title+": success probability", subtitle)...)

	labels := make([]string, len(res.PerCharacter))
	prob := make([]opts.BarData, len(res.PerCharacter))
	avg := make([]opts.BarData, len(res.PerCharacter))
	for i, tr := range res.PerCharacter {
		labels[i] = tr.CharacterKey
		prob[i] = opts.BarData{Value: round1(100 * tr.Probability)}
		avg[i] = opts.BarData{Value: round1(tr.AveragePullsUsed)}
	}
	bar.SetXAxis(labels).
		AddSeries("Probability %", prob).
		AddSeries("Average pulls used", avg)
	return bar
}

// Distribution charts the cumulative chance of the featured item by pull count.
func Distribution(points []gacha.Point, cfg ChartConfig) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(cfg.globals(cfg.Title+": pulls to featured", "cumulative probability")...)

	labels := make([]int, len(points))
	data := make([]opts.LineData, len(points))
	for i, p := range points {
		labels[i] = p.Pulls
		data[i] = opts.LineData{Value: p.Probability}
	}
	line.SetXAxis(labels).
		AddSeries("P(featured)", data).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	return line
}

// Render writes a page with the target and timeline charts, plus the
// distribution when points is non-empty.
func Render(w io.Writer, res *sim.Result, points []gacha.Point, cfg ChartConfig) error {
	if res == nil {
		return fmt.Errorf("no result to render")
	}
	page := components.NewPage()
	page.PageTitle = cfg.Title
	page.AddCharts(Targets(res, cfg), Timeline(res, cfg))
	if len(points) > 0 {
		page.AddCharts(Distribution(points, cfg))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// WriteFile renders to outputPath.
func WriteFile(outputPath string, res *sim.Result, points []gacha.Point, cfg ChartConfig) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	if err := Render(f, res, points, cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func round1(v float64) float64 { return float64(int(v*10+0.5)) / 10 }
