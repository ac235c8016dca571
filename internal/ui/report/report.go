// Package report renders analysis results for humans and as JSON for
// tooling.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"stalemap/internal/core/app"
	"stalemap/internal/data/history"
	"stalemap/internal/engine/impact"
	"stalemap/internal/engine/repair"
)

func JSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func ScanText(res *app.ScanResult) string {
	var buf strings.Builder
	g := res.Graph
	fmt.Fprintf(&buf, "Scanned %d files in %d modules (%d edges) in %s\n",
		len(g.Files), len(g.Modules), g.EdgeCount(), res.Duration.Round(time.Millisecond))
	if len(g.Cycles) > 0 {
		fmt.Fprintf(&buf, "Detected %d module cycle(s):\n", len(g.Cycles))
		for _, cycle := range g.Cycles {
			fmt.Fprintf(&buf, "  %s -> %s\n", strings.Join(cycle, " -> "), cycle[0])
		}
	}
	writeWarnings(&buf, res.Warnings)
	return buf.String()
}

func StatusText(res *app.StatusResult) string {
	var buf strings.Builder
	if len(res.Direct) == 0 {
		buf.WriteString("No stale files.\n")
		writeWarnings(&buf, res.Warnings)
		return buf.String()
	}

	fmt.Fprintf(&buf, "%d directly changed file(s):\n", len(res.Direct))
	for _, rec := range res.Direct {
		if rec.Mtime != nil {
			fmt.Fprintf(&buf, "  %s (modified %s)\n", rec.File, rec.Mtime.Format(time.RFC3339))
		} else {
			fmt.Fprintf(&buf, "  %s\n", rec.File)
		}
	}

	prop := res.Propagation
	if len(prop.Propagated) > 0 {
		fmt.Fprintf(&buf, "%d file(s) stale by propagation:\n", len(prop.Propagated))
		for _, rec := range prop.Propagated {
			fmt.Fprintf(&buf, "  L%d %s (via %s)\n", rec.Level, rec.File, rec.Source)
		}
		levels := make([]int, 0, len(prop.LevelCounts))
		for level := range prop.LevelCounts {
			levels = append(levels, level)
		}
		sort.Ints(levels)
		parts := make([]string, 0, len(levels))
		for _, level := range levels {
			parts = append(parts, fmt.Sprintf("L%d=%d", level, prop.LevelCounts[level]))
		}
		fmt.Fprintf(&buf, "By level: %s\n", strings.Join(parts, " "))
	}
	writeWarnings(&buf, res.Warnings)
	return buf.String()
}

func ImpactText(rep *impact.Report) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Impact of %d changed file(s): %d affected\n",
		len(rep.Changed), len(rep.Affected))

	if len(rep.DirectImporters) > 0 {
		buf.WriteString("Direct importers:\n")
		for _, file := range rep.DirectImporters {
			fmt.Fprintf(&buf, "  %s\n", file)
		}
	}
	if len(rep.TransitiveImporters) > 0 {
		buf.WriteString("Transitive importers:\n")
		for _, file := range rep.TransitiveImporters {
			fmt.Fprintf(&buf, "  %s\n", file)
		}
	}
	if len(rep.HighRisk) > 0 {
		buf.WriteString("High-risk changes:\n")
		for _, entry := range rep.HighRisk {
			fmt.Fprintf(&buf, "  %s (%d downstream files)\n", entry.File, entry.Affected)
		}
	}
	if len(rep.ByModule) > 0 {
		buf.WriteString("By module:\n")
		modules := make([]string, 0, len(rep.ByModule))
		for module := range rep.ByModule {
			modules = append(modules, module)
		}
		sort.Strings(modules)
		for _, module := range modules {
			fmt.Fprintf(&buf, "  %s: %d file(s)\n", module, len(rep.ByModule[module]))
		}
	}
	if len(rep.TestsToRun) > 0 {
		fmt.Fprintf(&buf, "Tests to run (%d):\n", len(rep.TestsToRun))
		for _, test := range rep.TestsToRun {
			fmt.Fprintf(&buf, "  %s\n", test)
		}
	}
	return buf.String()
}

func PlanText(plan *repair.Plan) string {
	var buf strings.Builder
	if len(plan.Involved) == 0 {
		buf.WriteString("No repair plan: failing tests map to no known files.\n")
		writeWarnings(&buf, plan.Warnings)
		return buf.String()
	}

	fmt.Fprintf(&buf, "Repair plan for %d failing test(s), %d file(s) involved\n",
		plan.TotalFailing, len(plan.Involved))
	fmt.Fprintf(&buf, "Root causes cover %d/%d failing tests.\n",
		plan.CoveredFailing, plan.TotalFailing)
	phase := 1
	fmt.Fprintf(&buf, "  phase %d  root causes: %s\n", phase, strings.Join(plan.RootCauses, ", "))
	for _, batch := range plan.Batches {
		phase++
		fmt.Fprintf(&buf, "  phase %d  in any order: %s\n", phase, strings.Join(batch, ", "))
	}
	if len(plan.Leaves) > 0 {
		phase++
		fmt.Fprintf(&buf, "  phase %d  leaves: %s\n", phase, strings.Join(plan.Leaves, ", "))
	}
	fmt.Fprintf(&buf, "Suggested order: %s\n", strings.Join(plan.SuggestedOrder, " -> "))
	writeWarnings(&buf, plan.Warnings)
	return buf.String()
}

func TraceText(chain []string) string {
	return strings.Join(chain, " -> ") + "\n"
}

func HistoryText(snapshots []history.Snapshot) string {
	var buf strings.Builder
	buf.WriteString("Timestamp\tFiles\tModules\tEdges\tCycles\tDirect\tPropagated\n")
	for _, snap := range snapshots {
		fmt.Fprintf(&buf, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			snap.Timestamp.Format(time.RFC3339),
			snap.FileCount,
			snap.ModuleCount,
			snap.EdgeCount,
			snap.CycleCount,
			snap.DirectStale,
			snap.PropagatedStale)
	}
	return buf.String()
}

func writeWarnings(buf *strings.Builder, warnings []string) {
	for _, warning := range warnings {
		fmt.Fprintf(buf, "warning: %s\n", warning)
	}
}
