package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"stalemap/internal/core/errors"
)

// TestMapVersion is the supported test-map artifact version.
const TestMapVersion = 1

type testMapEntry struct {
	Path      string   `json:"path"`
	TestFiles []string `json:"testFiles"`
}

type testMapFile struct {
	Version int                       `json:"version"`
	Modules map[string][]testMapEntry `json:"modules"`
}

// TestMap is the loaded source-to-test association. It answers both
// directions: which tests cover a source file, and which source files a
// failing test exercises.
type TestMap struct {
	sourceTests map[string][]string
	testSources map[string][]string
}

// LoadTestMap reads a test-map artifact produced by an external test runner.
// A missing file is NOT_FOUND so callers can fall back to name-based
// matching; a malformed or wrong-version payload is VALIDATION_ERROR.
func LoadTestMap(path string) (*TestMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.AddContext(
				errors.Wrap(err, errors.CodeNotFound, "test map not found"),
				errors.CtxPath, path)
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "read test map")
	}

	var raw testMapFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeValidationError, "decode test map"),
			errors.CtxPath, path)
	}
	if raw.Version != TestMapVersion {
		return nil, errors.AddContext(
			errors.New(errors.CodeValidationError,
				fmt.Sprintf("test map version %d, expected %d", raw.Version, TestMapVersion)),
			errors.CtxPath, path)
	}

	tm := &TestMap{
		sourceTests: make(map[string][]string),
		testSources: make(map[string][]string),
	}
	for _, entries := range raw.Modules {
		for _, entry := range entries {
			if entry.Path == "" {
				continue
			}
			for _, test := range entry.TestFiles {
				tm.sourceTests[entry.Path] = append(tm.sourceTests[entry.Path], test)
				tm.testSources[test] = append(tm.testSources[test], entry.Path)
			}
		}
	}
	for key, values := range tm.sourceTests {
		tm.sourceTests[key] = sortUnique(values)
	}
	for key, values := range tm.testSources {
		tm.testSources[key] = sortUnique(values)
	}
	return tm, nil
}

// TestsFor returns the tests covering one source file, sorted.
func (tm *TestMap) TestsFor(source string) []string {
	if tm == nil {
		return nil
	}
	return tm.sourceTests[source]
}

// SourcesFor returns the source files a test exercises, sorted.
func (tm *TestMap) SourcesFor(test string) []string {
	if tm == nil {
		return nil
	}
	return tm.testSources[test]
}

// TestSources exposes the full test-to-sources lookup for repair planning.
func (tm *TestMap) TestSources() map[string][]string {
	if tm == nil {
		return nil
	}
	return tm.testSources
}

func sortUnique(values []string) []string {
	sort.Strings(values)
	out := make([]string, 0, len(values))
	for i, v := range values {
		if i == 0 || out[len(out)-1] != v {
			out = append(out, v)
		}
	}
	return out
}
