// Package pathmatch implements the kernel's path matcher (C1): glob
// normalization and the is_protected/collect_protected/collect_excluded
// queries the decision engine runs before anything else.
package pathmatch

import (
	"os"
	"path/filepath"
	"strings"
)

// Normalize resolves p to a clean, absolute, slash-separated path. Leading
// "~" expands against the user's home directory.
func Normalize(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}

	if !filepath.IsAbs(p) {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", err
		}
		p = abs
	}

	return filepath.ToSlash(filepath.Clean(p)), nil
}

// Match reports whether value matches a glob pattern that may contain a
// recursive "**" segment (matching zero or more path components) in
// addition to the usual single-segment "*"/"?"/"[...]" wildcards.
func Match(value, pattern string) bool {
	if !strings.Contains(pattern, "**") {
		matched, _ := filepath.Match(pattern, value)
		return matched
	}

	return globMatch(splitPath(value), splitPathPattern(pattern))
}

// MatchAny reports whether value matches any of patterns.
func MatchAny(value string, patterns []string) bool {
	for _, p := range patterns {
		if Match(value, p) {
			return true
		}
	}
	return false
}

// IsProtected reports whether path is governed by a policy's include/exclude
// glob sets: included and not excluded. Exclude takes precedence, per
// spec.md §4.1.
func IsProtected(path string, include, exclude []string) bool {
	norm, err := Normalize(path)
	if err != nil {
		norm = filepath.ToSlash(path)
	}

	if MatchAny(norm, exclude) {
		return false
	}
	return MatchAny(norm, include)
}

// CollectProtected filters paths down to those IsProtected reports true for.
func CollectProtected(paths []string, include, exclude []string) []string {
	var out []string
	for _, p := range paths {
		if IsProtected(p, include, exclude) {
			out = append(out, p)
		}
	}
	return out
}

// CollectExcluded filters paths down to those that match include but are
// carved back out by exclude.
func CollectExcluded(paths []string, include, exclude []string) []string {
	var out []string
	for _, p := range paths {
		norm, err := Normalize(p)
		if err != nil {
			norm = filepath.ToSlash(p)
		}
		if MatchAny(norm, include) && MatchAny(norm, exclude) {
			out = append(out, p)
		}
	}
	return out
}

func globMatch(value, pattern []string) bool {
	vi, pi := 0, 0
	for pi < len(pattern) {
		if pattern[pi] == "**" {
			pi++
			if pi >= len(pattern) {
				return true
			}
			for vi <= len(value) {
				if globMatch(value[vi:], pattern[pi:]) {
					return true
				}
				vi++
			}
			return false
		}

		if vi >= len(value) {
			return false
		}

		matched, _ := filepath.Match(pattern[pi], value[vi])
		if !matched {
			return false
		}
		vi++
		pi++
	}

	return vi == len(value)
}

func splitPath(p string) []string {
	p = filepath.Clean(filepath.FromSlash(p))
	if p == string(filepath.Separator) || p == "." {
		return nil
	}
	var parts []string
	for {
		dir, file := filepath.Split(p)
		if file != "" {
			parts = append([]string{file}, parts...)
		}
		dir = filepath.Clean(dir)
		if dir == p {
			break
		}
		p = dir
	}
	return parts
}

func splitPathPattern(pattern string) []string {
	pattern = strings.TrimPrefix(filepath.ToSlash(pattern), "/")
	if pattern == "" {
		return nil
	}
	return strings.Split(pattern, "/")
}
