package scan

import (
	"path"
	"strings"
)

// Resolver maps relative dependency specifiers to graph keys. External
// specifiers (bare package names, absolute paths) and specifiers that do not
// land on a scanned file are dropped, not recorded.
type Resolver struct {
	// DefaultExtension is appended when the literal path does not exist.
	DefaultExtension string
	// IndexBasenames are tried inside a directory specifier, in order.
	IndexBasenames []string
}

// Resolve turns one specifier declared in importerKey into the graph key it
// refers to. scanned is the set of all graph keys. Resolution tries the
// literal path, the path with the default extension appended, and each
// directory-index fallback.
func (r *Resolver) Resolve(spec, importerKey string, scanned map[string]bool) (string, bool) {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return "", false
	}

	base := path.Join(path.Dir(importerKey), spec)
	if base == "" || strings.HasPrefix(base, "..") {
		return "", false
	}

	if scanned[base] {
		return base, true
	}

	if r.DefaultExtension != "" {
		withExt := base + r.DefaultExtension
		if scanned[withExt] {
			return withExt, true
		}
	}

	for _, index := range r.IndexBasenames {
		candidate := path.Join(base, index)
		if scanned[candidate] {
			return candidate, true
		}
	}

	return "", false
}
