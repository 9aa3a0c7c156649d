package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pack extends Set with metadata for policy packs.
// We avoid yaml:",inline" because Set also has a `version` field.
type Pack struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	PackVersion string   `yaml:"version"`
	Author      string   `yaml:"author"`
	Defaults    Defaults `yaml:"defaults"`
	Policies    []Policy `yaml:"policies"`
	Rules       []Rule   `yaml:"rules"`
}

// PackInfo is a summary of a pack for listing.
type PackInfo struct {
	Name        string
	Description string
	Version     string
	Author      string
	Enabled     bool
	Path        string
	RuleCount   int
	PolicyCount int
}

// LoadPacks reads all .yaml/.yml files from the packs directory and merges
// them into the base set. Pack policies and rules are appended after the
// base's. Protected paths are unioned. `_`-prefixed filenames are disabled
// but still reported (so `veto list` can show them as off).
func LoadPacks(packsDir string, base *Set) (*Set, []PackInfo, error) {
	var infos []PackInfo

	entries, err := os.ReadDir(packsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil, nil
		}
		return nil, nil, err
	}

	result := cloneSet(base)

	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}

		path := filepath.Join(packsDir, entry.Name())

		baseName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		enabled := !strings.HasPrefix(baseName, "_")

		pack, err := loadPack(path)
		if err != nil {
			infos = append(infos, PackInfo{
				Name:    baseName,
				Enabled: enabled,
				Path:    path,
			})
			continue
		}

		info := PackInfo{
			Name:        pack.Name,
			Description: pack.Description,
			Version:     pack.PackVersion,
			Author:      pack.Author,
			Enabled:     enabled,
			Path:        path,
			RuleCount:   len(pack.Rules),
			PolicyCount: len(pack.Policies),
		}
		if info.Name == "" {
			info.Name = baseName
		}
		infos = append(infos, info)

		if !enabled {
			continue
		}

		mergePackInto(result, pack)
	}

	return result, infos, nil
}

func loadPack(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse pack %s: %w", path, err)
	}

	return &pack, nil
}

// mergePackInto merges a pack's policies, rules, and protected paths into
// the target set.
func mergePackInto(target *Set, pack *Pack) {
	target.Policies = append(target.Policies, pack.Policies...)
	target.Rules = append(target.Rules, pack.Rules...)

	existingPaths := make(map[string]bool, len(target.Defaults.ProtectedPaths))
	for _, p := range target.Defaults.ProtectedPaths {
		existingPaths[p] = true
	}
	for _, p := range pack.Defaults.ProtectedPaths {
		if !existingPaths[p] {
			target.Defaults.ProtectedPaths = append(target.Defaults.ProtectedPaths, p)
			existingPaths[p] = true
		}
	}

	existingDomains := make(map[string]bool, len(target.Defaults.DenyDomains))
	for _, d := range target.Defaults.DenyDomains {
		existingDomains[d] = true
	}
	for _, d := range pack.Defaults.DenyDomains {
		if !existingDomains[d] {
			target.Defaults.DenyDomains = append(target.Defaults.DenyDomains, d)
			existingDomains[d] = true
		}
	}
}

func cloneSet(s *Set) *Set {
	clone := &Set{
		Version: s.Version,
		Defaults: Defaults{
			Mode: s.Defaults.Mode,
		},
	}

	clone.Defaults.ProtectedPaths = make([]string, len(s.Defaults.ProtectedPaths))
	copy(clone.Defaults.ProtectedPaths, s.Defaults.ProtectedPaths)

	clone.Defaults.DenyDomains = make([]string, len(s.Defaults.DenyDomains))
	copy(clone.Defaults.DenyDomains, s.Defaults.DenyDomains)

	clone.Policies = make([]Policy, len(s.Policies))
	copy(clone.Policies, s.Policies)

	clone.Rules = make([]Rule, len(s.Rules))
	copy(clone.Rules, s.Rules)

	return clone
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
