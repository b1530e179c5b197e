package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscapes is returned when a requested path falls outside work_dir,
// either lexically or after symlink resolution.
var ErrPathEscapes = errors.New("access denied: path outside working directory")

// ResolvePath implements the path resolution discipline spec.md §4.3
// requires: resolve the requested path lexically against work_dir, then
// resolve symlinks, and require BOTH the lexical and the post-symlink
// resolved paths to remain within work_dir. A symlink that points outside
// work_dir is a hard-fail even if the lexical path looked contained.
//
// internal/tools/files/resolver.go only performs the lexical half of this
// check (filepath.Rel against the cleaned absolute path); it never calls
// filepath.EvalSymlinks, so a symlink planted inside work_dir that points
// outside it would resolve undetected. ResolvePath closes that gap.
func ResolvePath(workDir, requested string) (string, error) {
	workAbs, err := filepath.Abs(workDir)
	if err != nil {
		return "", err
	}
	workAbs = filepath.Clean(workAbs)

	var lexical string
	if filepath.IsAbs(requested) {
		lexical = filepath.Clean(requested)
	} else {
		lexical = filepath.Join(workAbs, requested)
	}
	if !withinRoot(workAbs, lexical) {
		return "", ErrPathEscapes
	}

	resolved, err := resolveSymlinksWithinExistingPrefix(lexical)
	if err != nil {
		return "", err
	}
	if !withinRoot(workAbs, resolved) {
		return "", ErrPathEscapes
	}

	return lexical, nil
}

// withinRoot reports whether target is root itself or a descendant of root,
// using filepath.Rel to defend against prefix-string false positives (e.g.
// "/work" being treated as a parent of "/workshop").
func withinRoot(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// resolveSymlinksWithinExistingPrefix resolves symlinks along path, tolerating
// the fact that the final path component (e.g. a file being created) may not
// exist yet: it walks from the longest existing prefix and resolves that,
// then rejoins the remaining (not-yet-existing) suffix lexically.
func resolveSymlinksWithinExistingPrefix(path string) (string, error) {
	cur := path
	var suffix []string
	for {
		if _, err := os.Lstat(cur); err == nil {
			resolved, err := filepath.EvalSymlinks(cur)
			if err != nil {
				return "", err
			}
			for i := len(suffix) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, suffix[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			// Reached filesystem root without finding an existing prefix.
			return path, nil
		}
		suffix = append(suffix, filepath.Base(cur))
		cur = parent
	}
}
