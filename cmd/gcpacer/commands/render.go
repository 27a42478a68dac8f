package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/gcpacer/internal/simulation"
	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
	"github.com/Sumatoshi-tech/gcpacer/pkg/safeconv"
	"github.com/Sumatoshi-tech/gcpacer/pkg/units"
)

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Format.Footer = text.FormatDefault

	return tbl
}

func formatBytes(b uint64) string {
	return units.FormatSize(b)
}

func formatMs(ms float64) string {
	return strconv.FormatFloat(ms, 'f', 2, 64) + "ms"
}

// renderSummary prints one row per trace.
func renderSummary(w io.Writer, traces []*simulation.Trace) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{
		"Scenario", "Elapsed", "Minor", "Major", "Avg sweep", "Max sweep",
		"Peak heap", "Peak RSS", "Final heap", "Evictions", "Releases", "Safety timer",
	})

	for _, tr := range traces {
		tbl.AppendRow(table.Row{
			tr.Scenario,
			tr.Elapsed.String(),
			humanize.Comma(safeconv.SafeInt64(tr.Metrics.MinorCount)),
			humanize.Comma(safeconv.SafeInt64(tr.Metrics.MajorCount)),
			formatMs(tr.Metrics.AverageSweepTimeMs()),
			formatMs(tr.Metrics.MaxSweepTimeMs),
			formatBytes(tr.PeakAllocated),
			formatBytes(tr.PeakRSS),
			formatBytes(tr.FinalAllocated),
			tr.Evictions,
			tr.Releases,
			onOff(tr.SafetyTimerOn),
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d scenarios", len(traces))})
	tbl.Render()
}

// renderTimeline prints the controller events of tr.
func renderTimeline(w io.Writer, tr *simulation.Trace) {
	fmt.Fprintf(w, "\n%s timeline:\n", tr.Scenario)

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"At", "Kind", "Action", "Delay", "Defers", "Flags", "Sweep"})

	for _, rec := range tr.Events() {
		tbl.AppendRow(table.Row{
			formatMs(rec.AtMs),
			rec.Kind,
			actionLabel(rec.Action),
			delayLabel(rec),
			rec.DeferCount,
			flagsLabel(rec),
			sweepLabel(rec),
		})
	}

	tbl.Render()
}

// renderMetrics prints the cumulative controller metrics.
func renderMetrics(w io.Writer, m pacer.Metrics) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRows([]table.Row{
		{"Minor collections", m.MinorCount},
		{"Major collections", m.MajorCount},
		{"Sweeps", m.SweepCount},
		{"Total sweep time", formatMs(m.TotalSweepTimeMs)},
		{"Average sweep time", formatMs(m.AverageSweepTimeMs())},
		{"Max sweep time", formatMs(m.MaxSweepTimeMs)},
	})
	tbl.Render()
}

func actionLabel(action string) string {
	switch pacer.Action(action) {
	case pacer.ActionCollected:
		return color.GreenString(action)
	case pacer.ActionDeferred:
		return color.YellowString(action)
	case pacer.ActionCachesEvicted, pacer.ActionMemoryReleased:
		return color.CyanString(action)
	case pacer.ActionCancelled:
		return color.RedString(action)
	case pacer.ActionScheduled:
		return action
	}

	return action
}

func delayLabel(rec simulation.Record) string {
	if pacer.Action(rec.Action) != pacer.ActionScheduled {
		return ""
	}

	return formatMs(rec.DelayMs)
}

func sweepLabel(rec simulation.Record) string {
	if rec.SweepMs == 0 {
		return ""
	}

	return formatMs(rec.SweepMs)
}

func flagsLabel(rec simulation.Record) string {
	var flags string

	appendFlag := func(set bool, name string) {
		if !set {
			return
		}

		if flags != "" {
			flags += ","
		}

		flags += name
	}

	appendFlag(rec.Aggressive, "aggressive")
	appendFlag(rec.Pressure, color.RedString("pressure"))
	appendFlag(rec.Forced, "forced")

	return flags
}

func onOff(on bool) string {
	if on {
		return color.GreenString("on")
	}

	return color.YellowString("off")
}
