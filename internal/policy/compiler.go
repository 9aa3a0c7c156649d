package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Adjudicator turns a restriction phrase the builtin table couldn't match
// into a Policy. The compiler falls back to it only on a total builtin
// miss (spec.md §4.6 step 4). A real deployment wires an LLM-backed
// implementation here; NewNullAdjudicator is used when none is configured.
type Adjudicator interface {
	Compile(phrase string) (*Policy, error)
}

// NullAdjudicator always reports a miss. Compilation degrades to a typed
// error instead of a silent default when no real adjudicator is
// configured — LLM-backed compilation must never fail silently.
type NullAdjudicator struct{}

func (NullAdjudicator) Compile(phrase string) (*Policy, error) {
	return nil, fmt.Errorf("%w: %q", ErrNoAdjudicator, phrase)
}

// ErrNoAdjudicator is returned when a phrase misses every builtin and no
// adjudicator is configured to handle the fallback.
var ErrNoAdjudicator = fmt.Errorf("no builtin match and no adjudicator configured")

// Compiler turns restriction phrases into Policies using a builtin table
// first, falling back to an Adjudicator, then caching the adjudicator's
// result on disk keyed by the phrase's hash so repeated runs never re-pay
// the adjudication cost.
type Compiler struct {
	builtins    []builtin
	adjudicator Adjudicator
	cacheDir    string
}

type builtin struct {
	id    string
	match func(norm string) bool
	build func(phrase, reason string) Policy
}

// NewCompiler builds a Compiler with the standard builtin table. cacheDir
// may be empty to disable the on-disk adjudicator cache.
func NewCompiler(adjudicator Adjudicator, cacheDir string) *Compiler {
	if adjudicator == nil {
		adjudicator = NullAdjudicator{}
	}
	c := &Compiler{adjudicator: adjudicator, cacheDir: cacheDir}
	c.builtins = c.buildTable()
	return c
}

// Compile normalizes phrase and resolves it against the builtin table, then
// the cache, then the adjudicator, in that order.
func (c *Compiler) Compile(phrase, reason string) (*Policy, error) {
	norm := normalizePhrase(phrase)
	if norm == "" {
		return nil, fmt.Errorf("empty restriction")
	}

	for _, b := range c.builtins {
		if b.match(norm) {
			p := b.build(phrase, reason)
			if err := p.Validate(); err != nil {
				return nil, fmt.Errorf("builtin %s produced invalid policy: %w", b.id, err)
			}
			return &p, nil
		}
	}

	if cached, ok := c.readCache(norm); ok {
		return cached, nil
	}

	p, err := c.adjudicator.Compile(phrase)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: adjudicator returned no policy for %q", ErrNoAdjudicator, phrase)
	}

	c.writeCache(norm, p)
	return p, nil
}

func normalizePhrase(phrase string) string {
	return strings.ToLower(strings.TrimSpace(phrase))
}

func (c *Compiler) cachePath(norm string) string {
	if c.cacheDir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(norm))
	return filepath.Join(c.cacheDir, hex.EncodeToString(sum[:16])+".json")
}

func (c *Compiler) readCache(norm string) (*Policy, bool) {
	path := c.cachePath(norm)
	if path == "" {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false
	}
	return &p, true
}

func (c *Compiler) writeCache(norm string, p *Policy) {
	path := c.cachePath(norm)
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o600)
}

func reasonOrPhrase(phrase, reason string) string {
	if reason != "" {
		return reason
	}
	return phrase
}

func containsAny(norm string, substrs ...string) bool {
	for _, s := range substrs {
		if strings.Contains(norm, s) {
			return true
		}
	}
	return false
}

// buildTable maps well-known restriction phrasings directly onto Policy
// shapes, deterministically and without a network call. Phrases that miss
// every entry fall through to the configured Adjudicator.
func (c *Compiler) buildTable() []builtin {
	return []builtin{
		{
			id:    "env-files",
			match: func(n string) bool { return containsAny(n, "don't touch .env", "never edit .env", "don't edit .env", "no .env", "protect .env") },
			build: func(phrase, reason string) Policy {
				return Policy{Action: ActionModify, Include: []string{"**/.env", "**/.env.*"},
					Description: reasonOrPhrase(phrase, reason)}
			},
		},
		{
			id:    "env-files-delete",
			match: func(n string) bool { return containsAny(n, "don't delete .env", "never delete .env") },
			build: func(phrase, reason string) Policy {
				return Policy{Action: ActionDelete, Include: []string{"**/.env", "**/.env.*"},
					Description: reasonOrPhrase(phrase, reason)}
			},
		},
		{
			id:    "ssh-keys",
			match: func(n string) bool { return containsAny(n, "ssh key", "ssh keys", "id_rsa", "private key") },
			build: func(phrase, reason string) Policy {
				return Policy{Action: ActionModify, Include: []string{"**/.ssh/**", "**/*.pem", "**/id_rsa*"},
					Description: reasonOrPhrase(phrase, reason)}
			},
		},
		{
			id:    "force-push",
			match: func(n string) bool { return containsAny(n, "force push", "force-push", "git push --force") },
			build: func(phrase, reason string) Policy {
				return Policy{CommandRules: []CommandRule{{
					Block:  []string{"git push --force*", "git push -f*"},
					Reason: reasonOrPhrase(phrase, reason),
				}}}
			},
		},
		{
			id:    "rm-rf",
			match: func(n string) bool { return containsAny(n, "rm -rf", "recursive delete", "force delete") },
			build: func(phrase, reason string) Policy {
				return Policy{CommandRules: []CommandRule{{
					Block:  []string{"rm -rf*", "rm -fr*"},
					Reason: reasonOrPhrase(phrase, reason),
				}}}
			},
		},
		{
			id:    "sudo",
			match: func(n string) bool { return containsAny(n, "no sudo", "don't use sudo", "never run sudo") },
			build: func(phrase, reason string) Policy {
				return Policy{CommandRules: []CommandRule{{
					Block:  []string{"sudo *"},
					Reason: reasonOrPhrase(phrase, reason),
				}}}
			},
		},
		{
			id:    "drop-database",
			match: func(n string) bool { return containsAny(n, "drop database", "drop table", "truncate table") },
			build: func(phrase, reason string) Policy {
				return Policy{CommandRules: []CommandRule{{
					Block:  []string{"*drop database*", "*drop table*", "*truncate table*"},
					Reason: reasonOrPhrase(phrase, reason),
				}}}
			},
		},
		{
			id:    "prod-branch",
			match: func(n string) bool { return containsAny(n, "push to main", "push to prod", "push to production", "commit to main directly") },
			build: func(phrase, reason string) Policy {
				return Policy{CommandRules: []CommandRule{{
					Block:  []string{"git push*main", "git push*production", "git commit*--no-verify*main"},
					Reason: reasonOrPhrase(phrase, reason),
				}}}
			},
		},
		{
			id:    "lodash-import",
			match: func(n string) bool { return containsAny(n, "no lodash", "don't import lodash", "ban lodash") },
			build: func(phrase, reason string) Policy {
				return Policy{Action: ActionModify, Include: []string{"**/*.ts", "**/*.tsx", "**/*.js", "**/*.jsx"},
					Description: reasonOrPhrase(phrase, reason),
					ContentRules: []ContentRule{{
						Pattern:   `(?m)^\s*import .* from ['"]lodash['"]`,
						FileTypes: []string{"ts", "tsx", "js", "jsx"},
						Reason:    reasonOrPhrase(phrase, reason),
						// The signal this rule looks for is the module specifier
						// itself, a string literal — strict mode's comment/string
						// blanking would erase exactly the text being matched, so
						// this rule needs the raw, unblanked content.
						Mode: ContentModeFast,
					}},
				}
			},
		},
		{
			id:    "no-any-type",
			match: func(n string) bool { return containsAny(n, "no any type", "ban any type", "don't use any", "no explicit any") },
			build: func(phrase, reason string) Policy {
				return Policy{Action: ActionModify, Include: []string{"**/*.ts", "**/*.tsx"},
					Description: reasonOrPhrase(phrase, reason),
					ASTRules: []ASTRule{{
						ID: "no-any-type",
						// astengine has no typescript parser, so a typescript/tsx
						// query is evaluated structurally: a regexp over the raw
						// source. This is the same pattern as the pre-filter; the
						// pre-filter exists anyway so a Go-backed rule of the same
						// shape only pays for the pre-filter's cheap check.
						Query:          `:\s*any\b`,
						Languages:      []string{"typescript", "tsx"},
						Reason:         reasonOrPhrase(phrase, reason),
						RegexPreFilter: `:\s*any\b`,
					}},
				}
			},
		},
		{
			id:    "no-console-log",
			match: func(n string) bool { return containsAny(n, "no console.log", "remove console.log", "ban console.log") },
			build: func(phrase, reason string) Policy {
				return Policy{Action: ActionModify, Include: []string{"**/*.ts", "**/*.tsx", "**/*.js", "**/*.jsx"},
					Description: reasonOrPhrase(phrase, reason),
					ContentRules: []ContentRule{{
						Pattern:   `console\.log\(`,
						FileTypes: []string{"ts", "tsx", "js", "jsx"},
						Reason:    reasonOrPhrase(phrase, reason),
						Mode:      ContentModeFast,
					}},
				}
			},
		},
		{
			id:    "package-json",
			match: func(n string) bool { return containsAny(n, "don't edit package.json", "protect package.json", "no package.json changes") },
			build: func(phrase, reason string) Policy {
				return Policy{Action: ActionModify, Include: []string{"**/package.json", "**/package-lock.json"},
					Description: reasonOrPhrase(phrase, reason)}
			},
		},
		{
			id:    "no-secrets-in-code",
			match: func(n string) bool { return containsAny(n, "no hardcoded secrets", "no inline api keys", "don't hardcode credentials") },
			build: func(phrase, reason string) Policy {
				return Policy{Action: ActionModify, Include: []string{"**/*"},
					Description: reasonOrPhrase(phrase, reason),
					ContentRules: []ContentRule{{
						Pattern:   `(?i)(api[_-]?key|secret|password)\s*[:=]\s*['"][A-Za-z0-9+/=_-]{12,}['"]`,
						FileTypes: []string{"*"},
						Reason:    reasonOrPhrase(phrase, reason),
						Mode:      ContentModeStrict,
					}},
				}
			},
		},
		{
			id:    "ci-config",
			match: func(n string) bool { return containsAny(n, "don't touch ci", "protect github actions", "don't edit workflows") },
			build: func(phrase, reason string) Policy {
				return Policy{Action: ActionModify, Include: []string{"**/.github/workflows/**"},
					Description: reasonOrPhrase(phrase, reason)}
			},
		},
		{
			id:    "lockfiles",
			match: func(n string) bool { return containsAny(n, "don't edit lockfile", "protect lockfiles", "no lockfile changes") },
			build: func(phrase, reason string) Policy {
				return Policy{Action: ActionModify, Include: []string{"**/*.lock", "**/go.sum", "**/yarn.lock", "**/package-lock.json"},
					Description: reasonOrPhrase(phrase, reason)}
			},
		},
	}
}
