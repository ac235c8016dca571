package app

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"stalemap/internal/core/errors"
)

// ChangedSince asks git for the files touched since ref, relative to root so
// the paths line up with graph keys.
func ChangedSince(root, ref string) ([]string, error) {
	out, err := runGit(root, "diff", "--name-only", "--relative", ref)
	if err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeValidationError, "git diff failed; is ref valid?"),
			"ref", ref)
	}

	var changed []string
	for _, line := range strings.Split(out, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			changed = append(changed, trimmed)
		}
	}
	return changed, nil
}

func runGit(root string, args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", root}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}
