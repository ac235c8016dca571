package store

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"stalemap/internal/core/errors"
	"stalemap/internal/engine/graph"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	g := graph.New("/project")
	g.Files["a.js"] = &graph.FileNode{Imports: []string{"utils/b.js"}, Exports: []string{"run"}}
	g.Files["utils/b.js"] = &graph.FileNode{Exports: []string{"*"}}
	g.Normalize()
	g.RebuildReverseIndex()
	g.ComputeModules()

	path := filepath.Join(t.TempDir(), "state", "dependency-graph.json")
	if err := SaveGraph(path, g); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadGraph(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Version != graph.SchemaVersion || loaded.Root != "/project" {
		t.Errorf("header = version %d root %q", loaded.Version, loaded.Root)
	}
	if !reflect.DeepEqual(loaded.Files["utils/b.js"].ImportedBy, []string{"a.js"}) {
		t.Errorf("importedBy = %v", loaded.Files["utils/b.js"].ImportedBy)
	}
	if !reflect.DeepEqual(loaded.Files["a.js"].Exports, []string{"run"}) {
		t.Errorf("exports = %v", loaded.Files["a.js"].Exports)
	}
}

func TestLoadGraphMissing(t *testing.T) {
	_, err := LoadGraph(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if !strings.Contains(err.Error(), "scan") {
		t.Errorf("error should point at rescanning: %v", err)
	}
}

func TestLoadGraphVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	payload := `{"version": 99, "root": ".", "files": {}}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadGraph(path)
	if !errors.IsCode(err, errors.CodeValidationError) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestLoadGraphMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadGraph(path)
	if !errors.IsCode(err, errors.CodeValidationError) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestSaveGraphArtifactIsStable(t *testing.T) {
	g := graph.New(".")
	g.Files["b.js"] = &graph.FileNode{Imports: []string{"a.js"}}
	g.Files["a.js"] = &graph.FileNode{}
	g.Normalize()
	g.RebuildReverseIndex()

	dir := t.TempDir()
	first := filepath.Join(dir, "one.json")
	second := filepath.Join(dir, "two.json")
	if err := SaveGraph(first, g); err != nil {
		t.Fatal(err)
	}
	if err := SaveGraph(second, g); err != nil {
		t.Fatal(err)
	}

	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	if string(a) != string(b) {
		t.Error("two saves of the same graph produced different bytes")
	}
}

func TestLoadTestMap(t *testing.T) {
	payload := `{
  "version": 1,
  "modules": {
    "auth": [
      {"path": "auth/login.js", "testFiles": ["auth/login.test.js", "auth/session.test.js"]}
    ],
    "utils": [
      {"path": "utils/format.js", "testFiles": ["utils/format.test.js"]},
      {"path": "utils/shared.js", "testFiles": ["auth/login.test.js"]}
    ]
  }
}`
	path := filepath.Join(t.TempDir(), "testmap.json")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	tm, err := LoadTestMap(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := []string{"auth/login.test.js", "auth/session.test.js"}
	if !reflect.DeepEqual(tm.TestsFor("auth/login.js"), want) {
		t.Errorf("TestsFor = %v", tm.TestsFor("auth/login.js"))
	}
	wantSources := []string{"auth/login.js", "utils/shared.js"}
	if !reflect.DeepEqual(tm.SourcesFor("auth/login.test.js"), wantSources) {
		t.Errorf("SourcesFor = %v", tm.SourcesFor("auth/login.test.js"))
	}
	if tm.TestsFor("unknown.js") != nil {
		t.Error("unknown source should have no tests")
	}
}

func TestLoadTestMapVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "testmap.json")
	if err := os.WriteFile(path, []byte(`{"version": 2, "modules": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadTestMap(path)
	if !errors.IsCode(err, errors.CodeValidationError) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestLoadTestMapMissing(t *testing.T) {
	_, err := LoadTestMap(filepath.Join(t.TempDir(), "none.json"))
	if !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
