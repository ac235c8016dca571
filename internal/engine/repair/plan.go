package repair

import (
	"fmt"
	"math"
	"sort"

	"stalemap/internal/engine/graph"
)

// Candidate carries the per-file statistics root-cause selection ranks on.
type Candidate struct {
	File string `json:"file"`
	// Dependents is the direct reverse-edge count in the full graph.
	Dependents int `json:"dependents"`
	// FailingTests are the failing tests mapped directly to this file.
	FailingTests []string `json:"failingTests"`
	// PotentialFixes are the failing tests reachable anywhere in this
	// file's downstream reverse-dependency closure. Overlap between
	// candidates is accepted; selection is a greedy cover, not an optimal
	// one.
	PotentialFixes []string `json:"potentialFixes"`
}

// Plan is the layered repair schedule.
type Plan struct {
	Involved       []string    `json:"involved"`
	RootCauses     []string    `json:"rootCauses"`
	Batches        [][]string  `json:"batches"`
	Leaves         []string    `json:"leaves"`
	SuggestedOrder []string    `json:"suggestedOrder"`
	Candidates     []Candidate `json:"candidates"`
	TotalFailing   int         `json:"totalFailing"`
	CoveredFailing int         `json:"coveredFailing"`
	Warnings       []string    `json:"warnings"`
}

// Heuristics holds the empirically tuned selection constants.
type Heuristics struct {
	CoverageTarget    float64
	MaxRootCauses     int
	CandidateFraction float64
}

func DefaultHeuristics() Heuristics {
	return Heuristics{
		CoverageTarget:    0.7,
		MaxRootCauses:     8,
		CandidateFraction: 0.25,
	}
}

// BuildPlan produces the repair plan for a set of failing tests.
// testSources maps each test file to the source files it exercises; when a
// test has no mapping the test file itself is used as its source if it is
// in the graph (degraded but still usable).
func BuildPlan(g *graph.Graph, failingTests []string, testSources map[string][]string, h Heuristics) *Plan {
	plan := &Plan{
		RootCauses:     []string{},
		Batches:        [][]string{},
		Leaves:         []string{},
		SuggestedOrder: []string{},
	}

	failing := dedupe(failingTests)
	plan.TotalFailing = len(failing)
	if len(failing) == 0 {
		plan.Involved = []string{}
		return plan
	}

	// Step 1: failing tests -> involved source set.
	involvedSet := make(map[string]bool)
	fileFailing := make(map[string]map[string]bool)
	for _, test := range failing {
		sources := testSources[test]
		if len(sources) == 0 {
			sources = []string{test}
		}
		matched := false
		for _, src := range sources {
			if _, ok := g.Files[src]; !ok {
				continue
			}
			matched = true
			involvedSet[src] = true
			if fileFailing[src] == nil {
				fileFailing[src] = make(map[string]bool)
			}
			fileFailing[src][test] = true
		}
		if !matched {
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("failing test %s maps to no file in the graph", test))
		}
	}

	involved := make([]string, 0, len(involvedSet))
	for key := range involvedSet {
		involved = append(involved, key)
	}
	sort.Strings(involved)
	plan.Involved = involved
	if len(involved) == 0 {
		return plan
	}

	// Step 2: candidate statistics.
	candidates := make([]Candidate, 0, len(involved))
	for _, file := range involved {
		candidates = append(candidates, Candidate{
			File:           file,
			Dependents:     len(g.Files[file].ImportedBy),
			FailingTests:   sortedSet(fileFailing[file]),
			PotentialFixes: potentialFixes(g, file, fileFailing),
		})
	}

	// Step 3: greedy root-cause selection.
	roots, covered := selectRootCauses(candidates, plan.TotalFailing, h)
	plan.RootCauses = roots
	plan.CoveredFailing = covered
	plan.Candidates = candidates

	// Steps 4-6: fix-order subgraph, SCC condensation, order and batches.
	sub := fixOrderSubgraph(g, involvedSet)
	plan.SuggestedOrder = sub.suggestedOrder()

	rootSet := make(map[string]bool, len(roots))
	for _, r := range roots {
		rootSet[r] = true
	}
	leaves := make([]string, 0)
	middle := make(map[string]bool)
	for _, file := range involved {
		switch {
		case rootSet[file]:
		case len(sub.edges[file]) == 0:
			leaves = append(leaves, file)
		default:
			middle[file] = true
		}
	}
	plan.Leaves = leaves
	plan.Batches = sub.layer(middle)

	return plan
}

// potentialFixes walks the entire downstream reverse-dependency closure of
// file (itself included) and collects every failing test mapped to any
// file it reaches.
func potentialFixes(g *graph.Graph, file string, fileFailing map[string]map[string]bool) []string {
	reach := make(map[string]bool)
	seen := map[string]bool{file: true}
	queue := []string{file}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for test := range fileFailing[curr] {
			reach[test] = true
		}
		for _, dep := range g.Files[curr].ImportedBy {
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return sortedSet(reach)
}

// selectRootCauses greedily picks high-leverage candidates until the item
// cap or the coverage target is reached, whichever comes first after at
// least two selections. Only candidates with at least one dependent are
// eligible; a file nothing depends on is a leaf, not a root cause. When
// nothing qualifies the single top candidate is forced.
func selectRootCauses(candidates []Candidate, totalFailing int, h Heuristics) ([]string, int) {
	if len(candidates) == 0 {
		return []string{}, 0
	}

	ranked := append([]Candidate(nil), candidates...)
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Dependents != b.Dependents {
			return a.Dependents > b.Dependents
		}
		if len(a.PotentialFixes) != len(b.PotentialFixes) {
			return len(a.PotentialFixes) > len(b.PotentialFixes)
		}
		if len(a.FailingTests) != len(b.FailingTests) {
			return len(a.FailingTests) > len(b.FailingTests)
		}
		return a.File < b.File
	})

	limit := int(math.Ceil(h.CandidateFraction * float64(len(ranked))))
	if limit < 2 {
		limit = 2
	}
	if limit > h.MaxRootCauses {
		limit = h.MaxRootCauses
	}

	target := int(math.Ceil(h.CoverageTarget * float64(totalFailing)))

	covered := make(map[string]bool)
	var selected []string
	for _, cand := range ranked {
		if len(selected) >= limit {
			break
		}
		if len(selected) >= 2 && len(covered) >= target {
			break
		}
		if cand.Dependents == 0 {
			continue
		}
		adds := false
		for _, test := range cand.PotentialFixes {
			if !covered[test] {
				adds = true
				break
			}
		}
		if !adds {
			continue
		}
		selected = append(selected, cand.File)
		for _, test := range cand.PotentialFixes {
			covered[test] = true
		}
	}

	if len(selected) == 0 {
		top := ranked[0]
		selected = []string{top.File}
		for _, test := range top.PotentialFixes {
			covered[test] = true
		}
	}

	sort.Strings(selected)
	return selected, len(covered)
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
