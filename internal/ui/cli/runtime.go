package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	coreapp "stalemap/internal/core/app"
	"stalemap/internal/core/config"
	"stalemap/internal/core/errors"
	"stalemap/internal/shared/observability"
	"stalemap/internal/ui/report"
	"stalemap/internal/watcher"
)

func Run(args []string) int {
	opts, err := parseOptions(args)
	if err != nil {
		return 2
	}

	if opts.version {
		fmt.Printf("stalemap v%s\n", versionString)
		return 0
	}

	configureLogging(opts.verbose)

	if err := validateModes(opts); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Observability.OTLPEndpoint != "" {
		shutdown, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint)
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(flushCtx)
			}()
		}
	}

	if cfg.Observability.Address != "" {
		obs := NewObservabilityServer(cfg.Observability.Address, cfg.Artifacts.GraphFile)
		if err := obs.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			return 1
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = obs.Stop(stopCtx)
		}()
	}

	svc, err := coreapp.NewService(cfg)
	if err != nil {
		slog.Error("failed to initialize service", "error", err)
		return 1
	}
	defer svc.Close()

	return dispatch(ctx, svc, opts)
}

func dispatch(ctx context.Context, svc *coreapp.Service, opts cliOptions) int {
	switch {
	case opts.scan:
		return runScan(ctx, svc, opts)
	case opts.impact != "":
		return runImpact(ctx, svc, opts)
	case opts.plan:
		return runPlan(ctx, svc, opts)
	case opts.trace != "":
		return runTrace(ctx, svc, opts)
	case opts.history:
		return runHistory(ctx, svc, opts)
	case opts.watch:
		return runWatch(ctx, svc, opts)
	default:
		// -status is the default mode.
		return runStatus(ctx, svc, opts)
	}
}

func runScan(ctx context.Context, svc *coreapp.Service, opts cliOptions) int {
	result, err := svc.RunScan(ctx)
	if err != nil {
		return fail(err)
	}
	if opts.jsonOut {
		return emitJSON(result.Graph)
	}
	fmt.Print(report.ScanText(result))
	return 0
}

func runStatus(ctx context.Context, svc *coreapp.Service, opts cliOptions) int {
	result, err := svc.RunStatus(ctx, coreapp.StatusRequest{
		Changed:  splitList(opts.changed),
		GitSince: opts.gitSince,
		Depth:    opts.depth,
	})
	if err != nil {
		return fail(err)
	}
	if opts.jsonOut {
		return emitJSON(result)
	}
	fmt.Print(report.StatusText(result))
	return 0
}

func runImpact(ctx context.Context, svc *coreapp.Service, opts cliOptions) int {
	depth := opts.depth
	if depth == 0 {
		depth = 2
	}
	rep, err := svc.RunImpact(ctx, splitList(opts.impact), depth)
	if err != nil {
		return fail(err)
	}
	if opts.jsonOut {
		return emitJSON(rep)
	}
	fmt.Print(report.ImpactText(rep))
	return 0
}

func runPlan(ctx context.Context, svc *coreapp.Service, opts cliOptions) int {
	failing := splitList(opts.failing)
	if len(failing) == 0 {
		fmt.Fprintln(os.Stderr, "[VALIDATION_ERROR] -plan requires -failing with at least one test")
		return 1
	}
	plan, err := svc.RunPlan(ctx, failing)
	if err != nil {
		return fail(err)
	}
	if opts.jsonOut {
		return emitJSON(plan)
	}
	fmt.Print(report.PlanText(plan))
	return 0
}

func runTrace(ctx context.Context, svc *coreapp.Service, opts cliOptions) int {
	from, to, err := parseTracePair(opts.trace)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	chain, err := svc.RunTrace(ctx, from, to)
	if err != nil {
		return fail(err)
	}
	if opts.jsonOut {
		return emitJSON(chain)
	}
	fmt.Print(report.TraceText(chain))
	return 0
}

func runHistory(ctx context.Context, svc *coreapp.Service, opts cliOptions) int {
	since, err := parseSince(opts.since)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	snapshots, err := svc.RunHistory(ctx, since)
	if err != nil {
		return fail(err)
	}
	if opts.jsonOut {
		return emitJSON(snapshots)
	}
	fmt.Print(report.HistoryText(snapshots))
	return 0
}

func runWatch(ctx context.Context, svc *coreapp.Service, opts cliOptions) int {
	// Start from a fresh graph so the watch loop propagates against
	// current state.
	if _, err := svc.RunScan(ctx); err != nil {
		return fail(err)
	}

	cfg := svc.Config
	rescansPerSecond := 1.0
	if cfg.Watch.RescansPer > 0 {
		rescansPerSecond = 1.0 / cfg.Watch.RescansPer.Seconds()
	}

	w, err := watcher.New(watcher.Options{
		Debounce:         cfg.Watch.Debounce,
		Extensions:       cfg.Scan.Extensions,
		ExcludeDirs:      cfg.Scan.ExcludeDirs,
		RescansPerSecond: rescansPerSecond,
	}, func(paths []string) {
		result, err := svc.RunStatus(ctx, coreapp.StatusRequest{Changed: paths, Depth: opts.depth})
		if err != nil {
			slog.Error("incremental status failed", "error", err)
			return
		}
		if opts.jsonOut {
			data, err := report.JSON(result)
			if err == nil {
				fmt.Println(string(data))
			}
			return
		}
		fmt.Print(report.StatusText(result))
	})
	if err != nil {
		slog.Error("failed to create watcher", "error", err)
		return 1
	}
	defer w.Close()

	root, err := filepath.Abs(cfg.Scan.Root)
	if err != nil {
		slog.Error("failed to resolve scan root", "error", err)
		return 1
	}
	if err := w.Watch(root); err != nil {
		slog.Error("failed to start watcher", "error", err)
		return 1
	}

	slog.Info("watching for changes", "root", root)
	<-ctx.Done()
	return 0
}

func validateModes(opts cliOptions) error {
	modeCount := 0
	for _, active := range []bool{
		opts.scan,
		opts.status,
		opts.impact != "",
		opts.plan,
		opts.trace != "",
		opts.history,
		opts.watch,
	} {
		if active {
			modeCount++
		}
	}
	if modeCount > 1 {
		return errors.New(errors.CodeValidationError,
			"-scan, -status, -impact, -plan, -trace, -history, and -watch cannot be combined")
	}
	if (opts.changed != "" || opts.gitSince != "") && !opts.status && modeCount > 0 {
		return errors.New(errors.CodeValidationError,
			"-changed and -git-since only apply to -status")
	}
	if opts.changed != "" && opts.gitSince != "" {
		return errors.New(errors.CodeValidationError,
			"-changed and -git-since cannot be combined")
	}
	if opts.failing != "" && !opts.plan {
		return errors.New(errors.CodeValidationError, "-failing requires -plan")
	}
	if opts.since != "" && !opts.history {
		return errors.New(errors.CodeValidationError, "-since requires -history")
	}
	if opts.trace != "" {
		if _, _, err := parseTracePair(opts.trace); err != nil {
			return err
		}
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != defaultConfigPath {
		return config.Load(path)
	}
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func parseTracePair(raw string) (string, string, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", errors.New(errors.CodeValidationError,
			"-trace must be formatted as <from>:<to>")
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

func parseSince(value string) (time.Time, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return time.Time{}, nil
	}

	rfc3339, err := time.Parse(time.RFC3339, raw)
	if err == nil {
		return rfc3339.UTC(), nil
	}

	dateOnly, err := time.Parse("2006-01-02", raw)
	if err == nil {
		return dateOnly.UTC(), nil
	}

	return time.Time{}, errors.New(errors.CodeValidationError,
		fmt.Sprintf("-since must be RFC3339 or YYYY-MM-DD, got %q", value))
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func fail(err error) int {
	fmt.Fprintln(os.Stderr, err.Error())
	return 1
}

func emitJSON(v any) int {
	data, err := report.JSON(v)
	if err != nil {
		return fail(err)
	}
	fmt.Println(string(data))
	return 0
}

func configureLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}
