package stale

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"stalemap/internal/engine/graph"
)

// StaleRecord is one directly changed file. Mtime is nil when the change
// was declared rather than observed on disk.
type StaleRecord struct {
	File  string     `json:"file"`
	Mtime *time.Time `json:"mtime"`
}

// Detection is the initial stale set plus warnings for entries that could
// not be matched against the graph.
type Detection struct {
	Direct   []StaleRecord `json:"direct"`
	Warnings []string      `json:"warnings"`
}

func (d *Detection) Keys() []string {
	keys := make([]string, 0, len(d.Direct))
	for _, rec := range d.Direct {
		keys = append(keys, rec.File)
	}
	return keys
}

// DetectExplicit builds the direct stale set from a caller-supplied change
// list. Paths are accepted either as graph keys or as paths relative to the
// process working directory; entries not present in the graph become
// warnings and are excluded from propagation.
func DetectExplicit(g *graph.Graph, changed []string) *Detection {
	det := &Detection{}
	seen := make(map[string]bool, len(changed))

	for _, raw := range changed {
		key, ok := normalizeKey(g, raw)
		if !ok {
			det.Warnings = append(det.Warnings, fmt.Sprintf("changed file not in graph: %s", raw))
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		rec := StaleRecord{File: key}
		if info, err := os.Stat(filepath.Join(g.Root, filepath.FromSlash(key))); err == nil {
			mtime := info.ModTime().UTC()
			rec.Mtime = &mtime
		}
		det.Direct = append(det.Direct, rec)
	}

	sortRecords(det.Direct)
	return det
}

// DetectModified builds the direct stale set from on-disk modification
// times: every file strictly newer than the graph's generation timestamp is
// direct stale.
func DetectModified(g *graph.Graph) *Detection {
	det := &Detection{}
	for _, key := range g.SortedKeys() {
		info, err := os.Stat(filepath.Join(g.Root, filepath.FromSlash(key)))
		if err != nil {
			continue // deleted since the scan; the next scan drops it
		}
		if info.ModTime().After(g.Generated) {
			mtime := info.ModTime().UTC()
			det.Direct = append(det.Direct, StaleRecord{File: key, Mtime: &mtime})
		}
	}
	return det
}

// normalizeKey maps a user-supplied path onto a graph key, trying the raw
// form, the slash-normalized form, and the form relative to the graph root.
func normalizeKey(g *graph.Graph, raw string) (string, bool) {
	candidate := filepath.ToSlash(strings.TrimSpace(raw))
	candidate = strings.TrimPrefix(candidate, "./")
	if _, ok := g.Files[candidate]; ok {
		return candidate, true
	}

	if abs, err := filepath.Abs(raw); err == nil {
		if rel, err := filepath.Rel(g.Root, abs); err == nil {
			key := filepath.ToSlash(rel)
			if _, ok := g.Files[key]; ok {
				return key, true
			}
		}
	}

	return "", false
}

func sortRecords(records []StaleRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].File < records[j].File
	})
}
