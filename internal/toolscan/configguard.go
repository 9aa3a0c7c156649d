package toolscan

import (
	"fmt"
	"os"
	"strings"

	"github.com/vetohq/veto/internal/pathmatch"
)

// ConfigGuardFinding records one attempted write to a protected config
// file, independent of whatever a policy says about the path — these
// patterns are always at least an ask, since losing them would disable
// the kernel itself or open a supply-chain foothold.
type ConfigGuardFinding struct {
	Path     string
	Pattern  string
	Category string
	Reason   string
	ArgName  string
}

type protectedConfig struct {
	pattern  string
	category string
	reason   string
}

// protectedConfigs is populated at init from protectedConfigTemplates,
// with "~" expanded against the running user's home directory.
var protectedConfigs []protectedConfig

func init() {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "/root"
	}
	for _, t := range protectedConfigTemplates {
		protectedConfigs = append(protectedConfigs, protectedConfig{
			pattern:  strings.Replace(t.pattern, "~", home, 1),
			category: t.category,
			reason:   t.reason,
		})
	}
}

var protectedConfigTemplates = []protectedConfig{
	// The kernel's own config and compiled policy cache: tampering here
	// disables every other protection.
	{"~/.veto/**", "kernel-config", "writing to the kernel's own config directory could disable all protections"},
	{"~/.veto/policy.veto", "kernel-config", "writing to the active policy file could disable or rewrite protections"},
	{"~/.veto/cache/**", "kernel-config", "writing to the compiled-policy cache could smuggle in a stale or malicious policy"},

	// IDE/agent hook wiring: removing or rewriting these disables command
	// interception entirely for that agent.
	{"~/.codeium/windsurf/hooks.json", "ide-hooks", "writing to Windsurf hooks could disable command interception"},
	{"~/.cursor/hooks.json", "ide-hooks", "writing to Cursor hooks could disable command interception"},
	{"~/.claude/settings.json", "ide-hooks", "writing to Claude Code settings could disable hook-based interception"},
	{"~/.claude/hooks/**", "ide-hooks", "writing to Claude Code hooks could disable command interception"},

	// IDE MCP configs: can inject an additional, unreviewed MCP server.
	{"~/.cursor/mcp.json", "ide-mcp-config", "writing to Cursor MCP config could inject an unreviewed MCP server"},
	{"~/Library/Application Support/Claude/claude_desktop_config.json", "ide-mcp-config", "writing to Claude Desktop config could inject an unreviewed MCP server"},

	// Shell startup files: arbitrary code on every new shell or login.
	{"~/.bashrc", "shell-config", "writing to a shell startup file could run arbitrary code on every new shell"},
	{"~/.bash_profile", "shell-config", "writing to a shell startup file could run arbitrary code on login"},
	{"~/.zshrc", "shell-config", "writing to a shell startup file could run arbitrary code on every new shell"},
	{"~/.zprofile", "shell-config", "writing to a shell startup file could run arbitrary code on login"},
	{"~/.profile", "shell-config", "writing to a shell startup file could run arbitrary code on login"},

	// Package manager configs: supply-chain redirection.
	{"~/.npmrc", "package-config", "writing to npm config could redirect installs to a malicious registry"},
	{"~/.pip/pip.conf", "package-config", "writing to pip config could redirect installs to a malicious registry"},
	{"~/.config/pip/pip.conf", "package-config", "writing to pip config could redirect installs to a malicious registry"},
	{"~/.pypirc", "package-config", "writing to PyPI config could leak credentials or redirect uploads"},
	{"~/.yarnrc", "package-config", "writing to yarn config could redirect installs to a malicious registry"},
	{"~/.yarnrc.yml", "package-config", "writing to yarn config could redirect installs to a malicious registry"},
	{"~/.cargo/config.toml", "package-config", "writing to cargo config could redirect crate installs"},
	{"~/.gemrc", "package-config", "writing to gem config could redirect installs to a malicious source"},

	// Git config: hooks and aliases that run on routine git commands.
	{"~/.gitconfig", "git-config", "writing to git config could set malicious hooks or aliases"},
	{"~/.config/git/config", "git-config", "writing to git config could set malicious hooks or aliases"},

	// SSH config: proxy redirection.
	{"~/.ssh/config", "ssh-config", "writing to SSH config could redirect connections through an attacker-controlled proxy"},

	// Container/orchestration configs.
	{"~/.docker/config.json", "docker-config", "writing to Docker config could leak registry credentials or add insecure registries"},
	{"~/.kube/config", "kube-config", "writing to kubeconfig could redirect cluster access"},
}

// IsProtectedConfigPath reports whether path itself (not a tool call's
// arguments, but a path a file-targeting action already resolved to) is a
// protected config file. Used by the decision engine for delete/modify
// requests that arrive via the shim or daemon rather than through an SDK
// tool call.
func IsProtectedConfigPath(path string) (ConfigGuardFinding, bool) {
	for _, cfg := range protectedConfigs {
		if matchConfigPath(path, cfg.pattern) {
			return ConfigGuardFinding{Path: path, Pattern: cfg.pattern, Category: cfg.category, Reason: cfg.reason}, true
		}
	}
	return ConfigGuardFinding{}, false
}

// CheckConfigGuard scans a tool call's arguments for any attempt to write
// to a protected config path. It runs ahead of and independently of
// policy rule evaluation: the decision engine treats any non-empty result
// as a mandatory floor of at least Ask, even if the matching policy rule
// would otherwise allow it.
func CheckConfigGuard(arguments map[string]interface{}) []ConfigGuardFinding {
	var findings []ConfigGuardFinding
	for argName, argValue := range arguments {
		for _, p := range extractPaths(argValue) {
			for _, cfg := range protectedConfigs {
				if matchConfigPath(p, cfg.pattern) {
					findings = append(findings, ConfigGuardFinding{
						Path:     p,
						Pattern:  cfg.pattern,
						Category: cfg.category,
						Reason:   cfg.reason,
						ArgName:  argName,
					})
				}
			}
		}
	}
	return findings
}

func extractPaths(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return extractPathsFromString(val)
	case map[string]interface{}:
		var paths []string
		for _, nested := range val {
			paths = append(paths, extractPaths(nested)...)
		}
		return paths
	case []interface{}:
		var paths []string
		for _, item := range val {
			paths = append(paths, extractPaths(item)...)
		}
		return paths
	default:
		return extractPathsFromString(fmt.Sprintf("%v", v))
	}
}

func extractPathsFromString(s string) []string {
	var paths []string
	if trimmed := strings.TrimSpace(s); looksLikePath(trimmed) {
		paths = append(paths, trimmed)
	}
	if strings.Contains(s, "\n") {
		for _, line := range strings.Split(s, "\n") {
			if line = strings.TrimSpace(line); looksLikePath(line) {
				paths = append(paths, line)
			}
		}
	}
	return paths
}

func looksLikePath(s string) bool {
	if s == "" || strings.Contains(s, "\n") || len(s) >= 512 {
		return false
	}
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "~/")
}

func matchConfigPath(path, pattern string) bool {
	norm, err := pathmatch.Normalize(path)
	if err != nil {
		norm = path
	}
	normPattern, err := pathmatch.Normalize(pattern)
	if err != nil {
		normPattern = pattern
	}
	return pathmatch.Match(norm, normPattern)
}
