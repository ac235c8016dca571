package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Version       int           `toml:"version"`
	Scan          Scan          `toml:"scan"`
	Artifacts     Artifacts     `toml:"artifacts"`
	Propagation   Propagation   `toml:"propagation"`
	Impact        Impact        `toml:"impact"`
	Repair        Repair        `toml:"repair"`
	History       History       `toml:"history"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Scan struct {
	Root             string   `toml:"root"`
	Extensions       []string `toml:"extensions"`
	DefaultExtension string   `toml:"default_extension"`
	IndexBasenames   []string `toml:"index_basenames"`
	ExcludeDirs      []string `toml:"exclude_dirs"`
	ExcludeFiles     []string `toml:"exclude_files"`
	UseGitignore     bool     `toml:"use_gitignore"`
}

type Artifacts struct {
	GraphFile   string `toml:"graph_file"`
	TestMapFile string `toml:"test_map_file"`
}

type Propagation struct {
	MaxDepth int `toml:"max_depth"`
}

type Impact struct {
	HighRiskThreshold int `toml:"high_risk_threshold"`
	HighRiskLimit     int `toml:"high_risk_limit"`
}

// Repair holds the root-cause selection heuristics. The defaults are the
// tuned production values; they are configurable because no derivation for
// them exists.
type Repair struct {
	CoverageTarget    float64 `toml:"coverage_target"`
	MaxRootCauses     int     `toml:"max_root_causes"`
	CandidateFraction float64 `toml:"candidate_fraction"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Watch struct {
	Debounce   time.Duration `toml:"debounce"`
	RescansPer time.Duration `toml:"rescans_per"`
}

type Observability struct {
	Address      string `toml:"address"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

func Parse(data string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateScan(&cfg); err != nil {
		return nil, err
	}
	if err := validatePropagation(&cfg); err != nil {
		return nil, err
	}
	if err := validateImpact(&cfg); err != nil {
		return nil, err
	}
	if err := validateRepair(&cfg); err != nil {
		return nil, err
	}
	if err := validateHistory(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file is supplied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Scan.Root) == "" {
		cfg.Scan.Root = "."
	}
	if len(cfg.Scan.Extensions) == 0 {
		cfg.Scan.Extensions = []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs"}
	}
	if strings.TrimSpace(cfg.Scan.DefaultExtension) == "" {
		cfg.Scan.DefaultExtension = ".js"
	}
	if len(cfg.Scan.IndexBasenames) == 0 {
		cfg.Scan.IndexBasenames = []string{"index.js", "index.ts"}
	}
	if len(cfg.Scan.ExcludeDirs) == 0 {
		cfg.Scan.ExcludeDirs = []string{".git", "node_modules", "dist", "build"}
	}

	if strings.TrimSpace(cfg.Artifacts.GraphFile) == "" {
		cfg.Artifacts.GraphFile = "data/state/dependency-graph.json"
	}
	if strings.TrimSpace(cfg.Artifacts.TestMapFile) == "" {
		cfg.Artifacts.TestMapFile = "data/state/test-map.json"
	}

	if cfg.Propagation.MaxDepth == 0 {
		cfg.Propagation.MaxDepth = 10
	}

	if cfg.Impact.HighRiskThreshold == 0 {
		cfg.Impact.HighRiskThreshold = 50
	}
	if cfg.Impact.HighRiskLimit == 0 {
		cfg.Impact.HighRiskLimit = 10
	}

	if cfg.Repair.CoverageTarget == 0 {
		cfg.Repair.CoverageTarget = 0.7
	}
	if cfg.Repair.MaxRootCauses == 0 {
		cfg.Repair.MaxRootCauses = 8
	}
	if cfg.Repair.CandidateFraction == 0 {
		cfg.Repair.CandidateFraction = 0.25
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "data/state/history.db"
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.RescansPer == 0 {
		cfg.Watch.RescansPer = 2 * time.Second
	}
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; only version 1 is supported", cfg.Version)
	}
	return nil
}

func validateScan(cfg *Config) error {
	if !strings.HasPrefix(cfg.Scan.DefaultExtension, ".") {
		return fmt.Errorf("scan.default_extension must start with a dot, got %q", cfg.Scan.DefaultExtension)
	}
	for _, ext := range cfg.Scan.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("scan.extensions entries must start with a dot, got %q", ext)
		}
	}
	return nil
}

func validatePropagation(cfg *Config) error {
	if cfg.Propagation.MaxDepth < 1 || cfg.Propagation.MaxDepth > 100 {
		return fmt.Errorf("propagation.max_depth must be in [1,100], got %d", cfg.Propagation.MaxDepth)
	}
	return nil
}

func validateImpact(cfg *Config) error {
	if cfg.Impact.HighRiskThreshold < 1 {
		return fmt.Errorf("impact.high_risk_threshold must be >= 1, got %d", cfg.Impact.HighRiskThreshold)
	}
	if cfg.Impact.HighRiskLimit < 1 {
		return fmt.Errorf("impact.high_risk_limit must be >= 1, got %d", cfg.Impact.HighRiskLimit)
	}
	return nil
}

func validateRepair(cfg *Config) error {
	if cfg.Repair.CoverageTarget <= 0 || cfg.Repair.CoverageTarget > 1 {
		return fmt.Errorf("repair.coverage_target must be in (0,1], got %v", cfg.Repair.CoverageTarget)
	}
	if cfg.Repair.MaxRootCauses < 1 {
		return fmt.Errorf("repair.max_root_causes must be >= 1, got %d", cfg.Repair.MaxRootCauses)
	}
	if cfg.Repair.CandidateFraction <= 0 || cfg.Repair.CandidateFraction > 1 {
		return fmt.Errorf("repair.candidate_fraction must be in (0,1], got %v", cfg.Repair.CandidateFraction)
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.Path) == "" {
		return fmt.Errorf("history.path must not be empty when history is enabled")
	}
	return nil
}
