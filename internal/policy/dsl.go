package policy

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyRestriction is returned when a .veto line has no restriction text.
var ErrEmptyRestriction = fmt.Errorf("empty restriction")

// RestrictionLine is one parsed, uncompiled entry from a .veto file: free
// text plus an optional author-supplied reason. The compiler (C6) turns
// these into Policies/Rules.
type RestrictionLine struct {
	Text   string
	Reason string
	File   string
	Line   int
}

// ParsedFile is the result of parsing a single .veto or YAML rule file.
type ParsedFile struct {
	Restrictions []RestrictionLine
	Extends      []string // rulepack references from `extend` directives
	Set          *Set     // populated only for YAML rule files
}

// DetectFormat implements the sniff spec.md §4.5 describes: read the first
// non-blank, non-comment line. If it looks like a YAML mapping key or a
// JSON-style brace, treat the whole file as YAML; otherwise it's the
// line-oriented .veto DSL.
func DetectFormat(r io.Reader) (isYAML bool, err error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "{") {
			return true, nil
		}
		if idx := strings.Index(line, ":"); idx > 0 && !strings.HasPrefix(line, "extend ") {
			key := strings.TrimSpace(line[:idx])
			if key != "" && !strings.ContainsAny(key, " \t") {
				return true, nil
			}
		}
		return false, nil
	}
	return false, scanner.Err()
}

// ParseFile reads path and dispatches to the .veto or YAML parser based on
// DetectFormat.
func ParseFile(path string) (*ParsedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	isYAML, err := DetectFormat(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("detect format of %s: %w", path, err)
	}

	if isYAML {
		var set Set
		if err := yaml.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("parse YAML rules in %s: %w", path, err)
		}
		return &ParsedFile{Set: &set}, nil
	}

	return parseVetoDSL(path, string(data))
}

// parseVetoDSL parses the line-oriented `.veto` format:
//
//	# comment
//	<restriction>
//	<restriction> - <reason>
//	extend <rulepack-ref>
func parseVetoDSL(path, contents string) (*ParsedFile, error) {
	pf := &ParsedFile{}

	lines := strings.Split(contents, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if rest, ok := strings.CutPrefix(line, "extend "); ok {
			ref := strings.TrimSpace(rest)
			if ref == "" {
				return nil, fmt.Errorf("%s:%d: empty extend directive", path, i+1)
			}
			pf.Extends = append(pf.Extends, ref)
			continue
		}

		text, reason := splitRestrictionReason(line)
		if text == "" {
			return nil, fmt.Errorf("%s:%d: %w", path, i+1, ErrEmptyRestriction)
		}

		pf.Restrictions = append(pf.Restrictions, RestrictionLine{
			Text:   text,
			Reason: reason,
			File:   path,
			Line:   i + 1,
		})
	}

	return pf, nil
}

// splitRestrictionReason splits "<restriction> - <reason>" on the first
// " - " separator. A bare restriction has no reason.
func splitRestrictionReason(line string) (text, reason string) {
	if idx := strings.Index(line, " - "); idx >= 0 {
		return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+3:])
	}
	return line, ""
}

// ResolveExtends loads rulepack references relative to baseDir. A reference
// with no extension is tried as "<ref>.veto" then "<ref>.yaml".
func ResolveExtends(baseDir string, refs []string) ([]*ParsedFile, error) {
	var out []*ParsedFile
	for _, ref := range refs {
		candidates := []string{ref}
		if filepath.Ext(ref) == "" {
			candidates = []string{ref + ".veto", ref + ".yaml", ref + ".yml"}
		}

		var lastErr error
		found := false
		for _, c := range candidates {
			path := filepath.Join(baseDir, c)
			if _, err := os.Stat(path); err != nil {
				lastErr = err
				continue
			}
			pf, err := ParseFile(path)
			if err != nil {
				return nil, err
			}
			out = append(out, pf)
			found = true
			break
		}
		if !found {
			return nil, fmt.Errorf("extend %q: %w", ref, lastErr)
		}
	}
	return out, nil
}
