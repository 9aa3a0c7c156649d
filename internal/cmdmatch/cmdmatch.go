// Package cmdmatch implements the kernel's command matcher (C2): shell
// command normalization, flag-alias expansion, and glob matching against a
// CommandRule's Block patterns.
package cmdmatch

import (
	"path/filepath"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Segment is one executable invocation extracted from a (possibly
// pipelined/chained) shell command line.
type Segment struct {
	Executable string
	SubCommand string
	Flags      map[string]string
	Args       []string
}

// Parsed is a full parse of a command line: its segments in order and the
// operators joining them ("|", "&&", "||", ";").
type Parsed struct {
	Segments  []Segment
	Operators []string
}

// Parse tokenizes command with mvdan.cc/sh/v3's bash grammar. A command the
// shell grammar can't parse (e.g. a bare fragment passed by an SDK caller)
// falls back to whitespace splitting into a single segment, never an error
// — C2 must never panic on malformed input.
func Parse(command string) *Parsed {
	reader := strings.NewReader(command)
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(reader, "")
	if err != nil {
		return fallbackParse(command)
	}

	p := &Parsed{}
	for _, stmt := range file.Stmts {
		walk(p, stmt)
	}
	if len(p.Segments) == 0 {
		return fallbackParse(command)
	}
	return p
}

func walk(p *Parsed, stmt *syntax.Stmt) {
	if stmt.Cmd == nil {
		return
	}
	switch cmd := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		p.Segments = append(p.Segments, toSegment(cmd))
	case *syntax.BinaryCmd:
		left, right := &Parsed{}, &Parsed{}
		walk(left, &syntax.Stmt{Cmd: cmd.X.Cmd})
		walk(right, &syntax.Stmt{Cmd: cmd.Y.Cmd})
		p.Segments = append(p.Segments, left.Segments...)
		p.Operators = append(p.Operators, binaryOpString(cmd.Op))
		p.Segments = append(p.Segments, right.Segments...)
	case *syntax.Subshell:
		for _, s := range cmd.Stmts {
			walk(p, s)
		}
	}
}

func toSegment(call *syntax.CallExpr) Segment {
	seg := Segment{Flags: make(map[string]string)}
	words := make([]string, 0, len(call.Args))
	for _, w := range call.Args {
		words = append(words, wordLit(w))
	}
	if len(words) == 0 {
		return seg
	}
	seg.Executable = words[0]

	rest := words[1:]
	argIdx := 0
	for _, w := range rest {
		switch {
		case strings.HasPrefix(w, "--"):
			name, val, _ := strings.Cut(strings.TrimPrefix(w, "--"), "=")
			seg.Flags[name] = val
		case strings.HasPrefix(w, "-") && len(w) > 1 && w != "-":
			for _, r := range w[1:] {
				seg.Flags[string(r)] = ""
			}
		default:
			if argIdx == 0 && seg.SubCommand == "" && !strings.Contains(w, "/") {
				seg.SubCommand = w
			}
			seg.Args = append(seg.Args, w)
			argIdx++
		}
	}
	return seg
}

func wordLit(w *syntax.Word) string {
	var b strings.Builder
	syntax.NewPrinter().Print(&b, w)
	return strings.Trim(b.String(), "\"'")
}

func binaryOpString(op syntax.BinCmdOperator) string {
	switch op {
	case syntax.Pipe, syntax.PipeAll:
		return "|"
	case syntax.AndStmt:
		return "&&"
	case syntax.OrStmt:
		return "||"
	default:
		return ";"
	}
}

func fallbackParse(command string) *Parsed {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return &Parsed{}
	}
	seg := Segment{Executable: fields[0], Flags: map[string]string{}}
	for _, f := range fields[1:] {
		if strings.HasPrefix(f, "-") {
			seg.Flags[strings.TrimLeft(f, "-")] = ""
		} else {
			seg.Args = append(seg.Args, f)
		}
	}
	return &Parsed{Segments: []Segment{seg}}
}

// flagAliases maps common short/long flag spellings onto each other so
// "rm -rf" and "rm --recursive --force" normalize identically.
var flagAliases = map[string][]string{
	"r": {"recursive", "R"}, "R": {"recursive", "r"}, "recursive": {"r", "R"},
	"f": {"force"}, "force": {"f"},
	"v": {"verbose"}, "verbose": {"v"},
	"n": {"dry-run"}, "dry-run": {"n"},
}

func canonicalFlag(f string) string {
	for canon, aliases := range flagAliases {
		if f == canon {
			continue
		}
		for _, a := range aliases {
			if a == f {
				return canon
			}
		}
	}
	return f
}

// Canonical renders a segment back into a normalized command string with
// flags alias-resolved and sorted, so glob patterns written against one
// flag spelling also match callers using an alias.
func (s Segment) Canonical() string {
	var b strings.Builder
	b.WriteString(s.Executable)

	flags := make([]string, 0, len(s.Flags))
	seen := make(map[string]bool)
	for f := range s.Flags {
		c := canonicalFlag(f)
		if !seen[c] {
			flags = append(flags, c)
			seen[c] = true
		}
	}
	sort.Strings(flags)
	for _, f := range flags {
		b.WriteByte(' ')
		if len(f) == 1 {
			b.WriteString("-" + f)
		} else {
			b.WriteString("--" + f)
		}
	}
	for _, a := range s.Args {
		b.WriteByte(' ')
		b.WriteString(a)
	}
	return b.String()
}

// Normalize collapses whitespace in a raw command line for glob matching.
func Normalize(command string) string {
	return strings.Join(strings.Fields(command), " ")
}

// Matches reports whether command matches any of the glob patterns in
// patterns, checking both the raw (whitespace-normalized) command and an
// alias-canonicalized rendering of each parsed segment so flag spelling
// doesn't let a restriction be trivially evaded.
func Matches(command string, patterns []string) bool {
	norm := Normalize(command)
	for _, pattern := range patterns {
		if globLike(norm, pattern) {
			return true
		}
	}

	parsed := Parse(command)
	for _, seg := range parsed.Segments {
		canon := seg.Canonical()
		for _, pattern := range patterns {
			if globLike(canon, pattern) {
				return true
			}
		}
	}
	return false
}

// globLike matches s against pattern, treating a leading/trailing "*" as an
// unanchored wildcard (filepath.Match anchors both ends, which a bare
// "*main" or "git push*" suffix/prefix pattern relies on not doing).
func globLike(s, pattern string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return s == pattern
	}
	matched, err := filepath.Match(pattern, s)
	return err == nil && matched
}
