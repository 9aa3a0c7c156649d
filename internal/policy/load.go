package policy

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultSet is the Set used when no policy file exists yet: strict mode,
// no policies, no rules. Fail closed is the safer default for a tool whose
// entire purpose is gating destructive actions.
func DefaultSet() *Set {
	return &Set{Version: "1", Defaults: Defaults{Mode: ModeStrict}}
}

// Load reads a .veto or YAML policy file at path (and anything it
// transitively extends), compiling each DSL restriction line via compiler,
// and merges everything into a single Set. A missing file yields
// DefaultSet rather than an error, since a fresh checkout has no policy
// yet.
func Load(path string, compiler *Compiler) (*Set, error) {
	if path == "" {
		return DefaultSet(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultSet(), nil
	}

	pf, err := ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("load policy %s: %w", path, err)
	}

	result := DefaultSet()
	if err := mergeParsedFile(result, pf, filepath.Dir(path), compiler); err != nil {
		return nil, err
	}
	return result, nil
}

func mergeParsedFile(into *Set, pf *ParsedFile, baseDir string, compiler *Compiler) error {
	if pf.Set != nil {
		into.Policies = append(into.Policies, pf.Set.Policies...)
		into.Rules = append(into.Rules, pf.Set.Rules...)
		if pf.Set.Defaults.Mode != "" {
			into.Defaults.Mode = pf.Set.Defaults.Mode
		}
		into.Defaults.ProtectedPaths = append(into.Defaults.ProtectedPaths, pf.Set.Defaults.ProtectedPaths...)
		into.Defaults.DenyDomains = append(into.Defaults.DenyDomains, pf.Set.Defaults.DenyDomains...)
	}

	for _, rl := range pf.Restrictions {
		p, err := compiler.Compile(rl.Text, rl.Reason)
		if err != nil {
			return fmt.Errorf("%s:%d: compile %q: %w", rl.File, rl.Line, rl.Text, err)
		}
		into.Policies = append(into.Policies, *p)
	}

	if len(pf.Extends) > 0 {
		extended, err := ResolveExtends(baseDir, pf.Extends)
		if err != nil {
			return err
		}
		for _, epf := range extended {
			if err := mergeParsedFile(into, epf, baseDir, compiler); err != nil {
				return err
			}
		}
	}

	return nil
}
