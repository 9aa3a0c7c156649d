package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// hookTarget describes where a given IDE/agent keeps its hook
// configuration, grounded on the teacher's per-IDE setup commands.
type hookTarget struct {
	agent string
	path  string
}

func hookTargets(home string) []hookTarget {
	return []hookTarget{
		{"claude-code", filepath.Join(home, ".claude", "settings.json")},
		{"cursor", filepath.Join(home, ".cursor", "hooks.json")},
		{"windsurf", filepath.Join(home, ".codeium", "windsurf", "hooks.json")},
	}
}

var installCmd = &cobra.Command{
	Use:       "install <agent>",
	Short:     "Wire veto into an agent's pre-tool-call hook",
	ValidArgs: []string{"claude-code", "cursor", "windsurf"},
	Args:      cobra.ExactValidArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return installHook(args[0])
	},
}

var uninstallCmd = &cobra.Command{
	Use:       "uninstall <agent>",
	Short:     "Remove veto's hook from an agent",
	ValidArgs: []string{"claude-code", "cursor", "windsurf"},
	Args:      cobra.ExactValidArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return uninstallHook(args[0])
	},
}

func init() {
	rootCmd.AddCommand(installCmd, uninstallCmd)
}

// vetoHookEntry is the Claude Code PreToolUse hook object veto inserts.
var vetoHookEntry = map[string]interface{}{
	"matcher": "Bash",
	"hooks": []interface{}{
		map[string]interface{}{"type": "command", "command": "veto hook"},
	},
}

func installHook(agent string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	switch agent {
	case "claude-code":
		return installClaudeCodeHook(filepath.Join(home, ".claude", "settings.json"))
	case "cursor":
		return installJSONHookFile(filepath.Join(home, ".cursor", "hooks.json"), cursorHookDoc())
	case "windsurf":
		return installJSONHookFile(filepath.Join(home, ".codeium", "windsurf", "hooks.json"), windsurfHookDoc())
	default:
		return fmt.Errorf("unknown agent %q", agent)
	}
}

func uninstallHook(agent string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	switch agent {
	case "claude-code":
		return uninstallClaudeCodeHook(filepath.Join(home, ".claude", "settings.json"))
	case "cursor":
		return removeFile(filepath.Join(home, ".cursor", "hooks.json"))
	case "windsurf":
		return removeFile(filepath.Join(home, ".codeium", "windsurf", "hooks.json"))
	default:
		return fmt.Errorf("unknown agent %q", agent)
	}
}

func cursorHookDoc() map[string]interface{} {
	return map[string]interface{}{
		"version": 1,
		"hooks": map[string]interface{}{
			"beforeShellExecution": []interface{}{
				map[string]interface{}{"command": "veto hook"},
			},
		},
	}
}

func windsurfHookDoc() map[string]interface{} {
	return map[string]interface{}{
		"version": 1,
		"hooks": map[string]interface{}{
			"pre_run_command": []interface{}{
				map[string]interface{}{"command": "veto hook"},
			},
		},
	}
}

func installJSONHookFile(path string, doc map[string]interface{}) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("%s already exists — leaving it in place. Add a \"veto hook\" entry manually if it's missing.\n", path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("installed: %s\n", path)
	return nil
}

func installClaudeCodeHook(path string) error {
	settings, err := readJSONObject(path)
	if err != nil {
		return err
	}

	hooks := getOrCreateMap(settings, "hooks")
	preToolUse := getOrCreateSlice(hooks, "PreToolUse")
	for _, entry := range preToolUse {
		if isVetoHookEntry(entry) {
			fmt.Printf("already installed: %s\n", path)
			return nil
		}
	}
	hooks["PreToolUse"] = append(preToolUse, vetoHookEntry)
	settings["hooks"] = hooks

	if err := writeJSONObject(path, settings); err != nil {
		return err
	}
	fmt.Printf("installed PreToolUse hook: %s\n", path)
	return nil
}

func uninstallClaudeCodeHook(path string) error {
	settings, err := readJSONObject(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	hooks, _ := settings["hooks"].(map[string]interface{})
	if hooks == nil {
		return nil
	}
	preToolUse, _ := hooks["PreToolUse"].([]interface{})
	var filtered []interface{}
	for _, entry := range preToolUse {
		if !isVetoHookEntry(entry) {
			filtered = append(filtered, entry)
		}
	}
	if len(filtered) == 0 {
		delete(hooks, "PreToolUse")
	} else {
		hooks["PreToolUse"] = filtered
	}
	settings["hooks"] = hooks
	if err := writeJSONObject(path, settings); err != nil {
		return err
	}
	fmt.Printf("removed hook: %s\n", path)
	return nil
}

func isVetoHookEntry(entry interface{}) bool {
	m, ok := entry.(map[string]interface{})
	if !ok {
		return false
	}
	hooks, ok := m["hooks"].([]interface{})
	if !ok {
		return false
	}
	for _, h := range hooks {
		hm, ok := h.(map[string]interface{})
		if !ok {
			continue
		}
		if cmd, _ := hm["command"].(string); cmd == "veto hook" {
			return true
		}
	}
	return false
}

func readJSONObject(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

func writeJSONObject(path string, m map[string]interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func getOrCreateMap(parent map[string]interface{}, key string) map[string]interface{} {
	if v, ok := parent[key].(map[string]interface{}); ok {
		return v
	}
	return map[string]interface{}{}
}

func getOrCreateSlice(parent map[string]interface{}, key string) []interface{} {
	if v, ok := parent[key].([]interface{}); ok {
		return v
	}
	return nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	fmt.Printf("removed: %s\n", path)
	return nil
}
