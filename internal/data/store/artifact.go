// Package store persists and loads the graph artifact and the external
// test-map artifact.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"stalemap/internal/core/errors"
	"stalemap/internal/engine/graph"
)

// SaveGraph writes the graph artifact as indented JSON. The write goes
// through a temp file and a rename so a crash never leaves a truncated
// artifact behind.
func SaveGraph(path string, g *graph.Graph) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "encode graph artifact")
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.AddContext(
				errors.Wrap(err, errors.CodeInternal, "create artifact directory"),
				errors.CtxPath, dir)
		}
	}

	tmp, err := os.CreateTemp(dir, ".graph-*.tmp")
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "create temp artifact file")
	}
	tmpName := tmp.Name()

	writeErr := error(nil)
	if _, err := tmp.Write(data); err != nil {
		writeErr = fmt.Errorf("write temp artifact %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil && writeErr == nil {
		writeErr = fmt.Errorf("close temp artifact %q: %w", tmpName, err)
	}
	if writeErr != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(writeErr, errors.CodeInternal, "persist graph artifact")
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errors.AddContext(
			errors.Wrap(err, errors.CodeInternal, "replace graph artifact"),
			errors.CtxPath, path)
	}
	return nil
}

// LoadGraph reads and validates a persisted graph artifact. A missing file
// is NOT_FOUND (the caller should suggest a rescan), a version mismatch or
// malformed payload is VALIDATION_ERROR.
func LoadGraph(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.AddContext(
				errors.Wrap(err, errors.CodeNotFound,
					"graph artifact not found, run a scan to generate it"),
				errors.CtxPath, path)
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "read graph artifact")
	}

	var g graph.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeValidationError, "decode graph artifact"),
			errors.CtxPath, path)
	}
	if g.Version != graph.SchemaVersion {
		return nil, errors.AddContext(
			errors.New(errors.CodeValidationError,
				fmt.Sprintf("graph artifact version %d, expected %d; rescan to regenerate",
					g.Version, graph.SchemaVersion)),
			errors.CtxPath, path)
	}
	if g.Files == nil {
		g.Files = make(map[string]*graph.FileNode)
	}
	for key, node := range g.Files {
		if node == nil {
			g.Files[key] = &graph.FileNode{}
		}
	}
	g.Normalize()
	g.RebuildReverseIndex()
	return &g, nil
}
