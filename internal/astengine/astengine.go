// Package astengine implements the kernel's AST engine (C3): parsing a
// source file and evaluating an ASTRule's query against it. Go sources get
// a real parse via the standard library's go/parser; every other declared
// language uses a structural regex/token matcher, since no tree-sitter or
// ANTLR binding is available anywhere in the grounding corpus.
package astengine

import (
	"crypto/sha256"
	"encoding/hex"
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"sync"
)

// maxFileBytes is the size above which a file is skipped by the AST engine
// entirely; content rules still apply, but a 10MiB+ source file is treated
// as generated/vendored and not worth a full parse.
const maxFileBytes = 10 * 1024 * 1024

// Match is one AST query hit, with enough position information for the
// decision engine's MatchedRule reporting.
type Match struct {
	Line    int
	Column  int
	Snippet string
}

// cacheKey is a file's content hash paired with the query that was run
// against it, so re-evaluating the same rule on an unchanged file never
// re-parses.
type cacheKey struct {
	contentHash string
	query       string
}

var (
	cacheMu sync.Mutex
	cache   = map[cacheKey][]Match{}
)

func contentHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:16])
}

// Query evaluates query (an engine-specific pattern; for Go sources, a
// regexp applied to a flattened node-kind trace) against content, which is
// assumed to be in the given language. Files over maxFileBytes and
// languages the engine has no structural backend for fall back to treating
// the regex pre-filter's hits (passed in by the caller) as the match set —
// callers should prefer ASTRule.RegexPreFilter as the primary signal for
// those languages, using this engine only for Go's real AST backend.
func Query(language string, content []byte, query string) ([]Match, error) {
	if len(content) > maxFileBytes {
		return nil, nil
	}

	key := cacheKey{contentHash: contentHash(content), query: query}
	cacheMu.Lock()
	if m, ok := cache[key]; ok {
		cacheMu.Unlock()
		return m, nil
	}
	cacheMu.Unlock()

	var matches []Match
	var err error
	switch language {
	case "go":
		matches, err = queryGo(content, query)
	default:
		matches, err = queryStructural(content, query)
	}
	if err != nil {
		return nil, err
	}

	cacheMu.Lock()
	cache[key] = matches
	cacheMu.Unlock()
	return matches, nil
}

// queryGo parses content with go/parser and matches query as a regexp
// against each node's kind name ("CallExpr", "InterfaceType", ...),
// reporting every node whose kind matches.
func queryGo(content []byte, query string) ([]Match, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", content, parser.AllErrors)
	if err != nil {
		// A syntactically broken file can't be AST-matched; the caller's
		// regex pre-filter (if any) is the only signal available for it.
		return nil, nil
	}

	re, err := regexp.Compile(query)
	if err != nil {
		return nil, err
	}

	var matches []Match
	ast.Inspect(file, func(n ast.Node) bool {
		if n == nil {
			return true
		}
		kind := nodeKind(n)
		if re.MatchString(kind) {
			pos := fset.Position(n.Pos())
			matches = append(matches, Match{Line: pos.Line, Column: pos.Column, Snippet: kind})
		}
		return true
	})
	return matches, nil
}

func nodeKind(n ast.Node) string {
	switch v := n.(type) {
	case *ast.InterfaceType:
		if len(v.Methods.List) == 0 {
			return "InterfaceType:empty"
		}
		return "InterfaceType"
	case *ast.CallExpr:
		return "CallExpr"
	case *ast.Ident:
		if v.Name == "any" {
			return "Ident:any"
		}
		return "Ident"
	default:
		return goTypeName(n)
	}
}

func goTypeName(n ast.Node) string {
	switch n.(type) {
	case *ast.FuncDecl:
		return "FuncDecl"
	case *ast.ImportSpec:
		return "ImportSpec"
	case *ast.StructType:
		return "StructType"
	default:
		return "Node"
	}
}

// queryStructural applies query as a plain regexp over the raw source
// text, with each match's byte offset converted to a 1-based line/column.
// This is the fallback used for every language the engine has no real
// parser for: typescript, python, rust, java, and the rest of the
// declared language set.
func queryStructural(content []byte, query string) ([]Match, error) {
	re, err := regexp.Compile(query)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, loc := range re.FindAllIndex(content, -1) {
		line, col := lineCol(content, loc[0])
		end := loc[1]
		if cap := loc[0] + 80; cap < end {
			end = cap
		}
		matches = append(matches, Match{Line: line, Column: col, Snippet: string(content[loc[0]:end])})
	}
	return matches, nil
}

func lineCol(content []byte, offset int) (line, col int) {
	line = 1
	lastNewline := -1
	for i := 0; i < offset && i < len(content); i++ {
		if content[i] == '\n' {
			line++
			lastNewline = i
		}
	}
	col = offset - lastNewline
	return line, col
}
