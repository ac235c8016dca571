package config

import (
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse(`version = 1`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Scan.Root != "." {
		t.Errorf("expected default scan root, got %q", cfg.Scan.Root)
	}
	if cfg.Scan.DefaultExtension != ".js" {
		t.Errorf("expected .js default extension, got %q", cfg.Scan.DefaultExtension)
	}
	if cfg.Propagation.MaxDepth != 10 {
		t.Errorf("expected max depth 10, got %d", cfg.Propagation.MaxDepth)
	}
	if cfg.Impact.HighRiskThreshold != 50 || cfg.Impact.HighRiskLimit != 10 {
		t.Errorf("unexpected impact defaults: %+v", cfg.Impact)
	}
	if cfg.Repair.CoverageTarget != 0.7 || cfg.Repair.MaxRootCauses != 8 || cfg.Repair.CandidateFraction != 0.25 {
		t.Errorf("unexpected repair defaults: %+v", cfg.Repair)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("unexpected watch debounce: %v", cfg.Watch.Debounce)
	}
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse(`
version = 1

[scan]
root = "src"
default_extension = ".ts"
exclude_dirs = ["vendor"]

[repair]
coverage_target = 0.9
max_root_causes = 4
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Scan.Root != "src" || cfg.Scan.DefaultExtension != ".ts" {
		t.Errorf("scan overrides lost: %+v", cfg.Scan)
	}
	if cfg.Repair.CoverageTarget != 0.9 || cfg.Repair.MaxRootCauses != 4 {
		t.Errorf("repair overrides lost: %+v", cfg.Repair)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		toml string
	}{
		{"bad version", `version = 3`},
		{"bad extension", "version = 1\n[scan]\ndefault_extension = \"js\""},
		{"bad depth", "version = 1\n[propagation]\nmax_depth = 200"},
		{"bad coverage", "version = 1\n[repair]\ncoverage_target = 1.5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.toml); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}
