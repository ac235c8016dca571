package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"stalemap/internal/core/app"
	"stalemap/internal/data/history"
	"stalemap/internal/engine/impact"
	"stalemap/internal/engine/repair"
	"stalemap/internal/engine/stale"
)

func TestStatusTextEmpty(t *testing.T) {
	out := StatusText(&app.StatusResult{Propagation: &stale.Propagation{}})
	if !strings.Contains(out, "No stale files") {
		t.Errorf("output = %q", out)
	}
}

func TestStatusTextLevels(t *testing.T) {
	mtime := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	out := StatusText(&app.StatusResult{
		Direct: []stale.StaleRecord{{File: "a.js", Mtime: &mtime}},
		Propagation: &stale.Propagation{
			Propagated: []stale.PropagatedRecord{
				{File: "b.js", Level: 1, Source: "a.js"},
				{File: "c.js", Level: 2, Source: "b.js"},
			},
			LevelCounts: map[int]int{1: 1, 2: 1},
		},
		Warnings: []string{"ghost.js is not in the graph"},
	})

	for _, want := range []string{
		"1 directly changed file(s)",
		"L1 b.js (via a.js)",
		"L2 c.js (via b.js)",
		"By level: L1=1 L2=1",
		"warning: ghost.js is not in the graph",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestImpactText(t *testing.T) {
	out := ImpactText(&impact.Report{
		Changed:             []string{"a.js"},
		DirectImporters:     []string{"b.js"},
		TransitiveImporters: []string{"c.js"},
		Affected:            []string{"b.js", "c.js"},
		HighRisk:            []impact.RiskEntry{{File: "a.js", Affected: 60}},
		ByModule:            map[string][]string{"utils": {"a.js", "b.js"}},
		TestsToRun:          []string{"a.test.js"},
	})

	for _, want := range []string{
		"Impact of 1 changed file(s): 2 affected",
		"Direct importers:",
		"Transitive importers:",
		"a.js (60 downstream files)",
		"utils: 2 file(s)",
		"Tests to run (1):",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestPlanText(t *testing.T) {
	out := PlanText(&repair.Plan{
		Involved:       []string{"a.js", "b.js", "c.js"},
		RootCauses:     []string{"a.js"},
		Batches:        [][]string{{"b.js"}},
		Leaves:         []string{"c.js"},
		SuggestedOrder: []string{"a.js", "b.js", "c.js"},
		TotalFailing:   3,
		CoveredFailing: 3,
	})

	for _, want := range []string{
		"phase 1  root causes: a.js",
		"phase 2  in any order: b.js",
		"phase 3  leaves: c.js",
		"Suggested order: a.js -> b.js -> c.js",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestPlanTextEmpty(t *testing.T) {
	out := PlanText(&repair.Plan{})
	if !strings.Contains(out, "No repair plan") {
		t.Errorf("output = %q", out)
	}
}

func TestHistoryText(t *testing.T) {
	out := HistoryText([]history.Snapshot{{
		Timestamp:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		FileCount:   10,
		ModuleCount: 3,
		EdgeCount:   14,
	}})
	if !strings.Contains(out, "2026-03-01T09:00:00Z\t10\t3\t14") {
		t.Errorf("output = %q", out)
	}
}

func TestJSONRoundTrips(t *testing.T) {
	data, err := JSON(&impact.Report{Changed: []string{"a.js"}})
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := decoded["changed"]; !ok {
		t.Error("missing changed key")
	}
}
