package stale

import (
	"sort"

	"stalemap/internal/engine/graph"
)

// PropagatedRecord is a file invalidated indirectly. Level is the BFS hop
// count from the nearest direct-stale file, clamped to [1, maxDepth].
// Source is the immediate upstream neighbor that caused the discovery, not
// necessarily a direct-stale file.
type PropagatedRecord struct {
	File   string `json:"file"`
	Level  int    `json:"level"`
	Source string `json:"source"`
}

// Propagation is the result of reverse-edge staleness propagation.
type Propagation struct {
	Propagated  []PropagatedRecord `json:"propagated"`
	LevelCounts map[int]int        `json:"levelCounts"`
}

// Propagate runs a multi-source breadth-first traversal over importedBy
// edges from the direct stale set. Each file is visited at most once, at
// its minimum level; expansion stops once maxDepth is reached. Depth 0
// yields no propagation.
func Propagate(g *graph.Graph, directKeys []string, maxDepth int) *Propagation {
	prop := &Propagation{LevelCounts: make(map[int]int)}
	if maxDepth <= 0 {
		return prop
	}

	visited := make(map[string]bool, len(directKeys))
	type item struct {
		key   string
		level int
	}
	var frontier []item
	for _, key := range directKeys {
		if _, ok := g.Files[key]; !ok {
			continue
		}
		if !visited[key] {
			visited[key] = true
			frontier = append(frontier, item{key: key, level: 0})
		}
	}

	for len(frontier) > 0 {
		curr := frontier[0]
		frontier = frontier[1:]
		if curr.level >= maxDepth {
			continue
		}

		dependents := append([]string(nil), g.Files[curr.key].ImportedBy...)
		sort.Strings(dependents)
		for _, dep := range dependents {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			level := curr.level + 1
			prop.Propagated = append(prop.Propagated, PropagatedRecord{
				File:   dep,
				Level:  level,
				Source: curr.key,
			})
			prop.LevelCounts[level]++
			frontier = append(frontier, item{key: dep, level: level})
		}
	}

	sort.Slice(prop.Propagated, func(i, j int) bool {
		a, b := prop.Propagated[i], prop.Propagated[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		return a.File < b.File
	})
	return prop
}
