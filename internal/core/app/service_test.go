package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stalemap/internal/core/config"
	"stalemap/internal/core/errors"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, dir, "utils/format.js", "export const fmt = v => `${v}`\n")
	writeFile(t, dir, "auth/login.js", "import { fmt } from '../utils/format.js'\nexport function login() {}\n")
	writeFile(t, dir, "app.js", "import { login } from './auth/login.js'\nexport default login\n")

	cfg := config.Default()
	cfg.Scan.Root = dir
	cfg.Artifacts.GraphFile = filepath.Join(dir, "state", "graph.json")
	cfg.Artifacts.TestMapFile = filepath.Join(dir, "state", "test-map.json")
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(dir, "state", "history.db")

	svc, err := NewService(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, dir
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestServiceScanAndStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	scanResult, err := svc.RunScan(ctx)
	require.NoError(t, err)
	require.Len(t, scanResult.Graph.Files, 3)
	require.NotEmpty(t, scanResult.RunID)
	require.FileExists(t, svc.Config.Artifacts.GraphFile)

	status, err := svc.RunStatus(ctx, StatusRequest{Changed: []string{"utils/format.js"}})
	require.NoError(t, err)
	require.Len(t, status.Direct, 1)
	require.Equal(t, "utils/format.js", status.Direct[0].File)

	// format.js <- login.js <- app.js
	require.Len(t, status.Propagation.Propagated, 2)
	require.Equal(t, "auth/login.js", status.Propagation.Propagated[0].File)
	require.Equal(t, 1, status.Propagation.Propagated[0].Level)
	require.Equal(t, "app.js", status.Propagation.Propagated[1].File)
	require.Equal(t, 2, status.Propagation.Propagated[1].Level)
}

func TestServiceStatusUnknownChange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RunScan(ctx)
	require.NoError(t, err)

	status, err := svc.RunStatus(ctx, StatusRequest{Changed: []string{"ghost.js"}})
	require.NoError(t, err)
	require.Empty(t, status.Direct)
	require.Len(t, status.Warnings, 1)
}

func TestServiceStatusDepthOverride(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RunScan(ctx)
	require.NoError(t, err)

	status, err := svc.RunStatus(ctx, StatusRequest{
		Changed: []string{"utils/format.js"},
		Depth:   1,
	})
	require.NoError(t, err)
	require.Len(t, status.Propagation.Propagated, 1)
}

func TestServiceImpactWithTestMap(t *testing.T) {
	svc, dir := newTestService(t)
	ctx := context.Background()

	_, err := svc.RunScan(ctx)
	require.NoError(t, err)

	writeFile(t, dir, "state/test-map.json", `{
  "version": 1,
  "modules": {
    "auth": [{"path": "auth/login.js", "testFiles": ["auth/login.test.js"]}]
  }
}`)

	report, err := svc.RunImpact(ctx, []string{"utils/format.js"}, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"auth/login.js"}, report.DirectImporters)
	require.Equal(t, []string{"app.js"}, report.TransitiveImporters)
	require.Equal(t, []string{"auth/login.test.js"}, report.TestsToRun)
}

func TestServicePlan(t *testing.T) {
	svc, dir := newTestService(t)
	ctx := context.Background()

	_, err := svc.RunScan(ctx)
	require.NoError(t, err)

	writeFile(t, dir, "state/test-map.json", `{
  "version": 1,
  "modules": {
    "utils": [{"path": "utils/format.js", "testFiles": ["t1", "t2"]}],
    "auth": [{"path": "auth/login.js", "testFiles": ["t3"]}]
  }
}`)

	plan, err := svc.RunPlan(ctx, []string{"t1", "t2", "t3"})
	require.NoError(t, err)
	require.Equal(t, []string{"utils/format.js"}, plan.RootCauses)
	require.Equal(t, 3, plan.TotalFailing)
}

func TestServiceTrace(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RunScan(ctx)
	require.NoError(t, err)

	chain, err := svc.RunTrace(ctx, "app.js", "utils/format.js")
	require.NoError(t, err)
	require.Equal(t, []string{"app.js", "auth/login.js", "utils/format.js"}, chain)

	_, err = svc.RunTrace(ctx, "utils/format.js", "app.js")
	require.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestServiceHistory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RunScan(ctx)
	require.NoError(t, err)
	_, err = svc.RunStatus(ctx, StatusRequest{Changed: []string{"app.js"}})
	require.NoError(t, err)

	snapshots, err := svc.RunHistory(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	require.Equal(t, 3, snapshots[0].FileCount)
}

func TestServiceStatusWithoutGraph(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RunStatus(context.Background(), StatusRequest{})
	require.True(t, errors.IsCode(err, errors.CodeNotFound))
}
