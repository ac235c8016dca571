// Package app orchestrates the engine packages behind the CLI: it owns
// artifact paths, history recording, and the per-operation entry points.
package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stalemap/internal/core/config"
	"stalemap/internal/core/errors"
	"stalemap/internal/data/history"
	"stalemap/internal/data/store"
	"stalemap/internal/engine/graph"
	"stalemap/internal/engine/impact"
	"stalemap/internal/engine/repair"
	"stalemap/internal/engine/scan"
	"stalemap/internal/engine/stale"
	"stalemap/internal/shared/observability"
)

type Service struct {
	Config  *config.Config
	History *history.Store
}

func NewService(cfg *config.Config) (*Service, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeValidationError, "config is required")
	}
	svc := &Service{Config: cfg}
	if cfg.History.Enabled {
		hist, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "open history store")
		}
		svc.History = hist
	}
	return svc, nil
}

func (s *Service) Close() error {
	return s.History.Close()
}

type ScanResult struct {
	Graph    *graph.Graph
	Warnings []string
	Duration time.Duration
	RunID    string
}

// RunScan builds the dependency graph from the configured root and persists
// it as the graph artifact. A history snapshot is recorded when the store is
// enabled.
func (s *Service) RunScan(ctx context.Context) (*ScanResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "service.RunScan",
		trace.WithAttributes(attribute.String("root", s.Config.Scan.Root)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	builder := &scan.Builder{Options: scan.Options{
		Extensions:       s.Config.Scan.Extensions,
		DefaultExtension: s.Config.Scan.DefaultExtension,
		IndexBasenames:   s.Config.Scan.IndexBasenames,
		ExcludeDirs:      s.Config.Scan.ExcludeDirs,
		ExcludeFiles:     s.Config.Scan.ExcludeFiles,
		UseGitignore:     s.Config.Scan.UseGitignore,
	}}

	result, err := builder.Build(s.Config.Scan.Root)
	if err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeInternal, "build dependency graph"),
			errors.CtxOperation, "scan")
	}

	if err := store.SaveGraph(s.Config.Artifacts.GraphFile, result.Graph); err != nil {
		return nil, err
	}

	out := &ScanResult{
		Graph:    result.Graph,
		Warnings: result.Warnings,
		Duration: time.Since(start),
	}
	out.RunID = s.recordSnapshot(result.Graph, 0, 0)
	return out, nil
}

type StatusRequest struct {
	// Changed is an explicit change list; empty means detect by mtime.
	Changed []string
	// GitSince derives the change list from git when set. It wins over
	// Changed.
	GitSince string
	// Depth overrides the configured propagation depth when positive.
	Depth int
}

type StatusResult struct {
	Direct      []stale.StaleRecord
	Propagation *stale.Propagation
	Warnings    []string
}

// RunStatus computes the direct stale set and its propagation over the
// persisted graph.
func (s *Service) RunStatus(ctx context.Context, req StatusRequest) (*StatusResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "service.RunStatus")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err := s.loadGraph()
	if err != nil {
		return nil, err
	}

	timer := observability.AnalysisDuration.WithLabelValues("status")
	start := time.Now()
	defer func() { timer.Observe(time.Since(start).Seconds()) }()

	changed := req.Changed
	if req.GitSince != "" {
		changed, err = ChangedSince(s.Config.Scan.Root, req.GitSince)
		if err != nil {
			return nil, err
		}
	}

	var detection *stale.Detection
	if len(changed) > 0 {
		detection = stale.DetectExplicit(g, changed)
	} else {
		detection = stale.DetectModified(g)
	}

	depth := req.Depth
	if depth <= 0 {
		depth = s.Config.Propagation.MaxDepth
	}
	prop := stale.Propagate(g, detection.Keys(), depth)

	observability.DirectStaleFiles.Set(float64(len(detection.Direct)))
	observability.PropagatedStaleFiles.Set(float64(len(prop.Propagated)))
	s.recordSnapshot(g, len(detection.Direct), len(prop.Propagated))

	return &StatusResult{
		Direct:      detection.Direct,
		Propagation: prop,
		Warnings:    detection.Warnings,
	}, nil
}

// RunImpact produces the two-tier impact report for the changed files. When
// a test map artifact exists, the report also names the tests to run.
func (s *Service) RunImpact(ctx context.Context, changed []string, depth int) (*impact.Report, error) {
	ctx, span := observability.Tracer.Start(ctx, "service.RunImpact")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err := s.loadGraph()
	if err != nil {
		return nil, err
	}

	timer := observability.AnalysisDuration.WithLabelValues("impact")
	start := time.Now()
	defer func() { timer.Observe(time.Since(start).Seconds()) }()

	th := impact.Thresholds{
		HighRisk: s.Config.Impact.HighRiskThreshold,
		Limit:    s.Config.Impact.HighRiskLimit,
	}
	report := impact.Analyze(g, changed, depth, th)

	if tm := s.loadTestMap(); tm != nil {
		files := make([]string, 0, len(report.Changed)+len(report.Affected))
		files = append(files, report.Changed...)
		files = append(files, report.Affected...)
		lookup := make(map[string][]string, len(files))
		for _, file := range files {
			lookup[file] = tm.TestsFor(file)
		}
		report.TestsToRun = impact.TestsFor(lookup, files)
	}
	return report, nil
}

// RunPlan builds the repair plan for a set of failing tests.
func (s *Service) RunPlan(ctx context.Context, failing []string) (*repair.Plan, error) {
	ctx, span := observability.Tracer.Start(ctx, "service.RunPlan")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err := s.loadGraph()
	if err != nil {
		return nil, err
	}

	timer := observability.AnalysisDuration.WithLabelValues("plan")
	start := time.Now()
	defer func() { timer.Observe(time.Since(start).Seconds()) }()

	var testSources map[string][]string
	if tm := s.loadTestMap(); tm != nil {
		testSources = tm.TestSources()
	}

	h := repair.Heuristics{
		CoverageTarget:    s.Config.Repair.CoverageTarget,
		MaxRootCauses:     s.Config.Repair.MaxRootCauses,
		CandidateFraction: s.Config.Repair.CandidateFraction,
	}
	return repair.BuildPlan(g, failing, testSources, h), nil
}

// RunTrace finds the shortest forward import chain between two files.
func (s *Service) RunTrace(ctx context.Context, from, to string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err := s.loadGraph()
	if err != nil {
		return nil, err
	}

	chain, ok := g.FindChain(from, to)
	if !ok {
		return nil, errors.AddContext(errors.AddContext(
			errors.New(errors.CodeNotFound, "no import chain between files"),
			"from", from), "to", to)
	}
	return chain, nil
}

// RunHistory lists recorded snapshots, optionally restricted by since.
func (s *Service) RunHistory(ctx context.Context, since time.Time) ([]history.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.History == nil {
		return nil, errors.New(errors.CodeValidationError,
			"history is disabled; enable [history] in the config")
	}
	return s.History.LoadSnapshots("", since)
}

func (s *Service) loadGraph() (*graph.Graph, error) {
	return store.LoadGraph(s.Config.Artifacts.GraphFile)
}

// loadTestMap treats a missing artifact as "no mapping available"; any other
// failure only costs the test suggestions, so it is swallowed too.
func (s *Service) loadTestMap() *store.TestMap {
	tm, err := store.LoadTestMap(s.Config.Artifacts.TestMapFile)
	if err != nil {
		return nil
	}
	return tm
}

func (s *Service) recordSnapshot(g *graph.Graph, directStale, propagatedStale int) string {
	if s.History == nil {
		return ""
	}
	runID, err := s.History.SaveSnapshot(history.Snapshot{
		FileCount:       len(g.Files),
		ModuleCount:     len(g.Modules),
		EdgeCount:       g.EdgeCount(),
		CycleCount:      len(g.Cycles),
		DirectStale:     directStale,
		PropagatedStale: propagatedStale,
	})
	if err != nil {
		slog.Warn("history snapshot not recorded", "error", err)
		return ""
	}
	return runID
}
