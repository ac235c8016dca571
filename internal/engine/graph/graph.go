package graph

import (
	"sort"
	"strings"
	"time"
)

// SchemaVersion is the persisted graph artifact version.
const SchemaVersion = 1

// WildcardExport marks a file that re-exports everything from another
// module, so its individual export names are unknown.
const WildcardExport = "*"

// FileNode is one scanned file, keyed by a path relative to the graph root.
// Imports and ImportedBy hold graph keys, deduplicated and sorted.
type FileNode struct {
	Imports    []string `json:"imports"`
	ImportedBy []string `json:"importedBy"`
	Exports    []string `json:"exports"`
}

type ModuleStats struct {
	Files     int `json:"files"`
	InDegree  int `json:"inDegree"`
	OutDegree int `json:"outDegree"`
}

// Graph is the root artifact. It is a pure value: built once, never mutated
// in place. Any update regenerates the whole graph.
type Graph struct {
	Version   int                    `json:"version"`
	Generated time.Time              `json:"generated"`
	Root      string                 `json:"root"`
	Files     map[string]*FileNode   `json:"files"`
	Modules   map[string]ModuleStats `json:"modules"`
	Cycles    [][]string             `json:"cycles"`
}

func New(root string) *Graph {
	return &Graph{
		Version:   SchemaVersion,
		Generated: time.Now().UTC(),
		Root:      root,
		Files:     make(map[string]*FileNode),
		Modules:   make(map[string]ModuleStats),
	}
}

// ModuleOf collapse a file key to its containing module: the first path
// segment, or the key itself for root-level files.
func ModuleOf(key string) string {
	if i := strings.IndexByte(key, '/'); i >= 0 {
		return key[:i]
	}
	return key
}

// RebuildReverseIndex recomputes every ImportedBy set from the Imports sets
// in one pass. It is the only cross-file step of graph construction and runs
// after all forward edges are known.
func (g *Graph) RebuildReverseIndex() {
	importedBy := make(map[string][]string, len(g.Files))
	keys := g.SortedKeys()
	for _, from := range keys {
		for _, to := range g.Files[from].Imports {
			importedBy[to] = append(importedBy[to], from)
		}
	}
	for _, key := range keys {
		g.Files[key].ImportedBy = dedupeSorted(importedBy[key])
	}
}

// ModuleEdges collapses file-level edges to cross-module edges, excluding
// self-loops.
func (g *Graph) ModuleEdges() map[string]map[string]bool {
	edges := make(map[string]map[string]bool)
	for from, node := range g.Files {
		fromMod := ModuleOf(from)
		for _, to := range node.Imports {
			toMod := ModuleOf(to)
			if fromMod == toMod {
				continue
			}
			if edges[fromMod] == nil {
				edges[fromMod] = make(map[string]bool)
			}
			edges[fromMod][toMod] = true
		}
	}
	return edges
}

// ComputeModules derives the per-module aggregates from the current file
// set and module-level edges.
func (g *Graph) ComputeModules() {
	stats := make(map[string]ModuleStats)
	for key := range g.Files {
		mod := ModuleOf(key)
		s := stats[mod]
		s.Files++
		stats[mod] = s
	}

	edges := g.ModuleEdges()
	for from, targets := range edges {
		s := stats[from]
		s.OutDegree = len(targets)
		stats[from] = s
		for to := range targets {
			ts := stats[to]
			ts.InDegree++
			stats[to] = ts
		}
	}

	g.Modules = stats
}

func (g *Graph) SortedKeys() []string {
	keys := make([]string, 0, len(g.Files))
	for key := range g.Files {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// EdgeCount returns the total number of file-level import edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, node := range g.Files {
		count += len(node.Imports)
	}
	return count
}

// Normalize sorts and dedupes every per-file set so that serialization is
// deterministic regardless of construction order.
func (g *Graph) Normalize() {
	for _, node := range g.Files {
		node.Imports = dedupeSorted(node.Imports)
		node.ImportedBy = dedupeSorted(node.ImportedBy)
		node.Exports = dedupeSorted(node.Exports)
	}
}

func dedupeSorted(values []string) []string {
	if values == nil {
		return []string{}
	}
	sort.Strings(values)
	out := values[:0]
	prev := ""
	for i, v := range values {
		if i > 0 && v == prev {
			continue
		}
		out = append(out, v)
		prev = v
	}
	return out
}
