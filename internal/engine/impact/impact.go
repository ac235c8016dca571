package impact

import (
	"sort"

	"stalemap/internal/engine/graph"
)

// MaxDepth is the product limit for impact tiers: beyond two hops, impact
// sets are too diffuse to be actionable.
const MaxDepth = 2

// Report partitions the files affected by a change into exactly two named
// tiers. Changed files themselves are not part of either tier; the tiers
// are disjoint and Affected is exactly their union.
type Report struct {
	Changed             []string            `json:"changed"`
	DirectImporters     []string            `json:"directImporters"`
	TransitiveImporters []string            `json:"transitiveImporters"`
	Affected            []string            `json:"affected"`
	HighRisk            []RiskEntry         `json:"highRisk"`
	ByModule            map[string][]string `json:"byModule"`
	TestsToRun          []string            `json:"testsToRun,omitempty"`
}

// RiskEntry flags a changed file whose unbounded downstream reach exceeds
// the configured threshold.
type RiskEntry struct {
	File     string `json:"file"`
	Affected int    `json:"affected"`
}

// Thresholds carries the high-risk cutoffs.
type Thresholds struct {
	HighRisk int
	Limit    int
}

// DefaultThresholds matches the tuned production values.
func DefaultThresholds() Thresholds {
	return Thresholds{HighRisk: 50, Limit: 10}
}

// Analyze computes the two-tier impact report for the changed set. Depth is
// clamped to [0, MaxDepth]; depth 0 yields empty tiers, depth 1 only the
// direct tier.
func Analyze(g *graph.Graph, changed []string, depth int, th Thresholds) *Report {
	if depth < 0 {
		depth = 0
	}
	if depth > MaxDepth {
		depth = MaxDepth
	}

	changedSet := make(map[string]bool, len(changed))
	var changedKeys []string
	for _, key := range changed {
		if _, ok := g.Files[key]; !ok {
			continue
		}
		if !changedSet[key] {
			changedSet[key] = true
			changedKeys = append(changedKeys, key)
		}
	}
	sort.Strings(changedKeys)

	report := &Report{
		Changed:             changedKeys,
		DirectImporters:     []string{},
		TransitiveImporters: []string{},
		Affected:            []string{},
		ByModule:            map[string][]string{},
	}

	seen := make(map[string]bool, len(changedSet))
	for key := range changedSet {
		seen[key] = true
	}

	frontier := changedKeys
	var direct, transitive []string
	for level := 1; level <= depth; level++ {
		var next []string
		for _, key := range frontier {
			for _, dep := range g.Files[key].ImportedBy {
				if seen[dep] {
					continue
				}
				seen[dep] = true
				next = append(next, dep)
				if level == 1 {
					direct = append(direct, dep)
				} else {
					transitive = append(transitive, dep)
				}
			}
		}
		frontier = next
	}

	sort.Strings(direct)
	sort.Strings(transitive)
	report.DirectImporters = direct
	report.TransitiveImporters = transitive

	affected := make([]string, 0, len(direct)+len(transitive))
	affected = append(affected, direct...)
	affected = append(affected, transitive...)
	sort.Strings(affected)
	report.Affected = affected

	report.HighRisk = HighRisk(g, changedKeys, th)

	byModule := make(map[string][]string)
	for _, key := range append(append([]string(nil), changedKeys...), affected...) {
		mod := graph.ModuleOf(key)
		byModule[mod] = append(byModule[mod], key)
	}
	for mod := range byModule {
		sort.Strings(byModule[mod])
	}
	report.ByModule = byModule

	return report
}

// CountAllAffected performs an unbounded upward traversal from one file and
// returns its total downstream reach, the file itself excluded.
func CountAllAffected(g *graph.Graph, file string) int {
	node, ok := g.Files[file]
	if !ok {
		return 0
	}

	seen := map[string]bool{file: true}
	queue := append([]string(nil), node.ImportedBy...)
	count := 0
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		if seen[curr] {
			continue
		}
		seen[curr] = true
		count++
		queue = append(queue, g.Files[curr].ImportedBy...)
	}
	return count
}

// HighRisk surfaces changed files whose total reach exceeds the threshold,
// sorted by reach descending (name ascending on ties) and capped.
func HighRisk(g *graph.Graph, changed []string, th Thresholds) []RiskEntry {
	entries := []RiskEntry{}
	for _, key := range changed {
		count := CountAllAffected(g, key)
		if count > th.HighRisk {
			entries = append(entries, RiskEntry{File: key, Affected: count})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Affected != entries[j].Affected {
			return entries[i].Affected > entries[j].Affected
		}
		return entries[i].File < entries[j].File
	})
	if th.Limit > 0 && len(entries) > th.Limit {
		entries = entries[:th.Limit]
	}
	return entries
}

// TestsFor joins the affected set (changed plus impacted) against a
// source-to-tests lookup. It is a pure lookup join, not a traversal.
func TestsFor(lookup map[string][]string, files []string) []string {
	seen := make(map[string]bool)
	var tests []string
	for _, file := range files {
		for _, test := range lookup[file] {
			if !seen[test] {
				seen[test] = true
				tests = append(tests, test)
			}
		}
	}
	sort.Strings(tests)
	return tests
}
