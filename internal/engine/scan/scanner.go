package scan

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	gitignore "github.com/sabhiram/go-gitignore"
)

// Options controls which files under the root qualify for the graph.
type Options struct {
	Extensions       []string
	DefaultExtension string
	IndexBasenames   []string
	ExcludeDirs      []string
	ExcludeFiles     []string
	UseGitignore     bool
}

// Walk returns the qualifying file keys under root, normalized to
// forward-slash paths relative to root and sorted for determinism.
func Walk(root string, opts Options) ([]string, error) {
	dirGlobs, err := compileGlobs(opts.ExcludeDirs)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude dir pattern: %w", err)
	}
	fileGlobs, err := compileGlobs(opts.ExcludeFiles)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude file pattern: %w", err)
	}

	var ignore *gitignore.GitIgnore
	if opts.UseGitignore {
		// Missing .gitignore just disables the filter.
		if gi, err := gitignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
			ignore = gi
		}
	}

	extSet := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		extSet[ext] = true
	}

	var keys []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)

		base := filepath.Base(path)
		if d.IsDir() {
			if key == "." {
				return nil
			}
			for _, g := range dirGlobs {
				if g.Match(base) {
					return filepath.SkipDir
				}
			}
			if ignore != nil && ignore.MatchesPath(key+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !extSet[strings.ToLower(filepath.Ext(base))] {
			return nil
		}
		for _, g := range fileGlobs {
			if g.Match(base) {
				return nil
			}
		}
		if ignore != nil && ignore.MatchesPath(key) {
			return nil
		}

		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(keys)
	return keys, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}
