package scan

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"stalemap/internal/engine/graph"
	"stalemap/internal/shared/observability"
)

// Builder produces a dependency graph from a source tree. The graph is a
// pure function of the scanned file contents and the options at one point
// in time; updates regenerate it wholesale.
type Builder struct {
	Options Options
}

// Result carries the graph plus non-fatal warnings collected during the
// scan (unreadable files keep their node with empty edge sets).
type Result struct {
	Graph    *graph.Graph
	Warnings []string
}

func (b *Builder) Build(root string) (*Result, error) {
	start := time.Now()
	defer func() {
		observability.ScanDuration.Observe(time.Since(start).Seconds())
	}()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root %q: %w", root, err)
	}

	keys, err := Walk(absRoot, b.Options)
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", absRoot, err)
	}

	scanned := make(map[string]bool, len(keys))
	for _, key := range keys {
		scanned[key] = true
	}

	g := graph.New(absRoot)
	resolver := &Resolver{
		DefaultExtension: b.Options.DefaultExtension,
		IndexBasenames:   b.Options.IndexBasenames,
	}

	var warnings []string
	for _, key := range keys {
		node := &graph.FileNode{}
		g.Files[key] = node

		content, err := os.ReadFile(filepath.Join(absRoot, filepath.FromSlash(key)))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("read %s: %v", key, err))
			slog.Warn("skipping unreadable file", "path", key, "error", err)
			continue
		}

		ext := Extract(string(content))
		node.Exports = ext.Exports
		for _, spec := range ext.Specifiers {
			if resolved, ok := resolver.Resolve(spec, key, scanned); ok {
				node.Imports = append(node.Imports, resolved)
			}
		}
	}

	g.Normalize()
	g.RebuildReverseIndex()
	g.ComputeModules()
	g.Cycles = g.DetectCycles()

	observability.GraphFiles.Set(float64(len(g.Files)))
	observability.GraphEdges.Set(float64(g.EdgeCount()))
	observability.GraphCycles.Set(float64(len(g.Cycles)))

	slog.Info("graph built",
		"root", absRoot,
		"files", len(g.Files),
		"edges", g.EdgeCount(),
		"modules", len(g.Modules),
		"cycles", len(g.Cycles),
		"warnings", len(warnings))

	return &Result{Graph: g, Warnings: warnings}, nil
}
