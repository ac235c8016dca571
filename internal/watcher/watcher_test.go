package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	batches := make(chan []string, 4)
	w, err := New(Options{
		Debounce:         100 * time.Millisecond,
		Extensions:       []string{".js", ".jsx"},
		ExcludeDirs:      []string{"node_modules"},
		RescansPerSecond: 100,
	}, func(paths []string) {
		batches <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch(tmpDir); err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(tmpDir, "app.js")
	os.WriteFile(testFile, []byte("export const x = 1"), 0644)

	select {
	case paths := <-batches:
		found := false
		for _, p := range paths {
			if p == testFile {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected %s in changed batch %v", testFile, paths)
		}
	case <-time.After(2 * time.Second):
		t.Error("timed out waiting for file change event")
	}

	// Non-source extensions never reach the batch.
	readme := filepath.Join(tmpDir, "README.md")
	os.WriteFile(readme, []byte("docs"), 0644)

	select {
	case paths := <-batches:
		for _, p := range paths {
			if filepath.Base(p) == "README.md" {
				t.Error("filtered extension triggered a batch")
			}
		}
	case <-time.After(500 * time.Millisecond):
		// Expected
	}

	// New directory should be recursively watched after create.
	subdir := filepath.Join(tmpDir, "pages")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatal(err)
	}
	subFile := filepath.Join(subdir, "index.jsx")
	if err := os.WriteFile(subFile, []byte("export default null"), 0644); err != nil {
		t.Fatal(err)
	}

	foundNested := false
	timeout := time.After(2 * time.Second)
	for !foundNested {
		select {
		case paths := <-batches:
			for _, p := range paths {
				if p == subFile {
					foundNested = true
					break
				}
			}
		case <-timeout:
			t.Fatal("timed out waiting for nested file event in newly created directory")
		}
	}
}

func TestWatcherSkipsExcludedDirs(t *testing.T) {
	tmpDir := t.TempDir()
	skipped := filepath.Join(tmpDir, "node_modules", "lib")
	if err := os.MkdirAll(skipped, 0755); err != nil {
		t.Fatal(err)
	}

	batches := make(chan []string, 1)
	w, err := New(Options{
		Debounce:    50 * time.Millisecond,
		Extensions:  []string{".js"},
		ExcludeDirs: []string{"node_modules"},
	}, func(paths []string) {
		batches <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch(tmpDir); err != nil {
		t.Fatal(err)
	}

	os.WriteFile(filepath.Join(skipped, "dep.js"), []byte("module.exports = {}"), 0644)

	select {
	case paths := <-batches:
		t.Errorf("excluded directory produced batch %v", paths)
	case <-time.After(400 * time.Millisecond):
		// Expected
	}
}

func TestWatcherRequiresCallback(t *testing.T) {
	if _, err := New(Options{}, nil); err == nil {
		t.Fatal("expected error for nil callback")
	}
}
