package simulation

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
	"github.com/Sumatoshi-tech/gcpacer/pkg/units"
)

const (
	chartWidth         = "100%"
	chartHeight        = "480px"
	lineWidth          = 2
	dataZoomEndPercent = 100
	markerSymbol       = "circle"
	emptyValue         = "-"
	colorAllocated     = "#5470c6"
	colorRSS           = "#91cc75"
	colorMinor         = "#fac858"
	colorMajor         = "#ee6666"
)

// RenderHTML writes one chart per trace: allocated bytes and RSS over
// virtual time, with markers where minor and major collections completed.
func RenderHTML(w io.Writer, traces ...*Trace) error {
	page := components.NewPage()
	page.PageTitle = "gcpacer simulation"

	for _, tr := range traces {
		page.AddCharts(buildChart(tr))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	return nil
}

func buildChart(tr *Trace) *charts.Line {
	labels, allocated, rss, minor, major := chartSeries(tr)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    tr.Scenario,
			Subtitle: fmt.Sprintf("minor=%d major=%d", tr.Metrics.MinorCount, tr.Metrics.MajorCount),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "8%"}),
		charts.WithDataZoomOpts(
			opts.DataZoom{Type: "slider", Start: 0, End: dataZoomEndPercent},
			opts.DataZoom{Type: "inside"},
		),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (ms)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "MiB"}),
	)
	line.SetXAxis(labels)
	line.AddSeries("Allocated", allocated,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorAllocated}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	line.AddSeries("RSS", rss,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorRSS}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	addMarkers(line, "Minor GC", minor, colorMinor)
	addMarkers(line, "Major GC", major, colorMajor)

	return line
}

func addMarkers(line *charts.Line, name string, data []opts.LineData, color string) {
	line.AddSeries(name, data,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: color}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: 0, Opacity: opts.Float(0)}),
	)
}

// chartSeries aligns collection events to the sample that follows them.
func chartSeries(tr *Trace) (labels []string, allocated, rss, minor, major []opts.LineData) {
	var minorSeen, majorSeen bool

	for _, rec := range tr.Records {
		if rec.Type == RecordEvent {
			if rec.Action == string(pacer.ActionCollected) {
				if rec.Kind == pacer.KindEden.String() {
					minorSeen = true
				} else {
					majorSeen = true
				}
			}

			continue
		}

		allocMiB := toMiB(rec.Allocated)

		labels = append(labels, strconv.FormatFloat(rec.AtMs, 'f', 0, 64))
		allocated = append(allocated, opts.LineData{Value: allocMiB})
		rss = append(rss, opts.LineData{Value: toMiB(rec.RSS)})
		minor = append(minor, marker(minorSeen, allocMiB))
		major = append(major, marker(majorSeen, allocMiB))

		minorSeen, majorSeen = false, false
	}

	return labels, allocated, rss, minor, major
}

func marker(seen bool, value float64) opts.LineData {
	if !seen {
		return opts.LineData{Value: emptyValue}
	}

	return opts.LineData{Value: value, Symbol: markerSymbol}
}

func toMiB(b uint64) float64 {
	return float64(b) / units.MiB
}
