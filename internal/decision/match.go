package decision

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/vetohq/veto/internal/policy"
)

// FileTypeFromPath derives the short file-type tag (ts, tsx, go, py, ...)
// a ContentRule/ASTRule's FileTypes/Languages list is written against, from
// a file path's extension. Callers that have a Target but no separately
// classified file type should populate Request.FileType with this.
func FileTypeFromPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return strings.TrimPrefix(ext, ".")
}

// languageAliases maps a short FileType tag to the longer language names an
// ASTRule's Languages list sometimes names instead (policies written by
// hand tend to say "typescript"; the engine derives "ts" from a path).
var languageAliases = map[string]string{
	"ts":  "typescript",
	"tsx": "typescript",
	"js":  "javascript",
	"jsx": "javascript",
	"py":  "python",
	"rb":  "ruby",
	"rs":  "rust",
}

// regexCache avoids recompiling a ContentRule/ASTRule pattern on every
// evaluation; policy Sets are immutable once loaded so a pattern's
// compiled form never changes for the engine's lifetime.
var (
	regexCacheMu sync.Mutex
	regexCache   = map[string]*regexp.Regexp{}
)

func compileCached(pattern string) *regexp.Regexp {
	regexCacheMu.Lock()
	defer regexCacheMu.Unlock()
	if re, ok := regexCache[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		regexCache[pattern] = nil
		return nil
	}
	regexCache[pattern] = re
	return re
}

func fileTypeMatches(fileType string, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		if w == "*" || strings.EqualFold(w, fileType) {
			return true
		}
	}
	return false
}

func languageMatches(fileType string, languages []string) bool {
	if fileTypeMatches(fileType, languages) {
		return true
	}
	if alias, ok := languageAliases[strings.ToLower(fileType)]; ok {
		return fileTypeMatches(alias, languages)
	}
	return false
}

func regexPreFilterHits(content, pattern string) bool {
	re := compileCached(pattern)
	if re == nil {
		return true // an invalid pre-filter pattern must never silently hide the rule
	}
	return re.MatchString(content)
}

func matchesRegex(value, pattern string) bool {
	re := compileCached(pattern)
	if re == nil {
		return false
	}
	return re.MatchString(value)
}

// contentMatches applies a ContentRule's pattern to content, honoring mode
// and exceptions. "fast" mode matches the raw text once, so a rule author
// who wants every literal occurrence (including ones in comments) gets it.
// "strict" and "semantic" both blank out comments and string literals
// before matching, line by line, so a pattern that only appears inside a
// comment or a log string never fires the rule; fileType picks which
// comment/string syntax to honor. The two modes differ in what a
// post-blanking hit means to the caller: evaluateContentRules denies on a
// strict hit but only asks on a semantic one, deferring the final call.
func contentMatches(content string, cr *policy.ContentRule, fileType string) bool {
	re := compileCached(cr.Pattern)
	if re == nil {
		return false
	}

	if cr.Mode != policy.ContentModeStrict && cr.Mode != policy.ContentModeSemantic {
		return re.MatchString(content)
	}

	scanned := strings.Split(blankCommentsAndStrings(content, fileType), "\n")
	original := strings.Split(content, "\n")
	for i, line := range scanned {
		if !re.MatchString(line) {
			continue
		}
		// Exception markers live in the source the rule author wrote (often
		// inside the very comment that got blanked above), so they're
		// checked against the original line, not the scanned one.
		src := line
		if i < len(original) {
			src = original[i]
		}
		if hasException(src, cr.Exceptions) {
			continue
		}
		return true
	}
	return false
}

func hasException(line string, exceptions []string) bool {
	for _, ex := range exceptions {
		if strings.Contains(line, ex) {
			return true
		}
	}
	return false
}

// commentMarkers returns the line-comment and block-comment delimiters to
// honor for fileType. Unrecognized file types fall back to the C-family
// rules (//, /* */), which cover most of the languages a policy's
// FileTypes list actually names.
func commentMarkers(fileType string) (lineComment, blockStart, blockEnd string) {
	switch strings.ToLower(fileType) {
	case "py", "python", "rb", "ruby", "sh", "bash", "yaml", "yml", "toml":
		return "#", "", ""
	case "html", "xml":
		return "", "<!--", "-->"
	case "sql":
		return "--", "/*", "*/"
	default:
		return "//", "/*", "*/"
	}
}

// blankCommentsAndStrings replaces the body of every comment and quoted
// string literal in content with spaces, preserving line structure (so
// line numbers and exception-marker matching still line up against the
// original source), per fileType's comment syntax.
func blankCommentsAndStrings(content, fileType string) string {
	lineComment, blockStart, blockEnd := commentMarkers(fileType)
	runes := []rune(content)
	n := len(runes)

	var out strings.Builder
	out.Grow(n)

	for i := 0; i < n; {
		if lineComment != "" && hasPrefixAt(runes, i, lineComment) {
			for i < n && runes[i] != '\n' {
				out.WriteRune(' ')
				i++
			}
			continue
		}

		if blockStart != "" && hasPrefixAt(runes, i, blockStart) {
			for i < n && !hasPrefixAt(runes, i, blockEnd) {
				if runes[i] == '\n' {
					out.WriteRune('\n')
				} else {
					out.WriteRune(' ')
				}
				i++
			}
			for j := 0; j < len(blockEnd) && i < n; j++ {
				out.WriteRune(' ')
				i++
			}
			continue
		}

		r := runes[i]
		if r == '"' || r == '\'' || r == '`' {
			out.WriteRune(r)
			i++
			for i < n && runes[i] != r {
				if runes[i] == '\\' && r != '`' && i+1 < n {
					out.WriteRune(' ')
					i++
				}
				if runes[i] == '\n' {
					out.WriteRune('\n')
				} else {
					out.WriteRune(' ')
				}
				i++
			}
			if i < n {
				out.WriteRune(runes[i])
				i++
			}
			continue
		}

		out.WriteRune(r)
		i++
	}
	return out.String()
}

func hasPrefixAt(runes []rune, i int, prefix string) bool {
	p := []rune(prefix)
	if i+len(p) > len(runes) {
		return false
	}
	for j, pr := range p {
		if runes[i+j] != pr {
			return false
		}
	}
	return true
}
