package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vetohq/veto/internal/approval"
	"github.com/vetohq/veto/internal/audit"
	"github.com/vetohq/veto/internal/decision"
	"github.com/vetohq/veto/internal/policy"
)

// resolveAsk runs the interactive approval prompt for an Ask verdict when a
// human is actually at the terminal. IDE hooks almost never are — stdin is
// the hook's JSON payload, not a tty — so this resolves to deny without
// blocking in the common case; it only prompts when veto is invoked somewhere
// a person can answer it.
func resolveAsk(v policy.Verdict) bool {
	if !approval.IsInteractive() {
		return false
	}
	result := approval.Ask(approval.Prompt{Target: v.Reason, Reason: v.Reason, Suggest: v.Suggest}, false)
	return result.Approved
}

// hookInput represents the JSON structure sent by IDE hooks.
// Windsurf sends:    {"agent_action_name": "pre_run_command", "tool_info": {"command_line": "..."}}
// Cursor sends:      {"command": "...", "cwd": "..."}
// Claude Code sends: {"hook_event_name": "PreToolUse", "tool_name": "Bash", "tool_input": {"command": "..."}}
type hookInput struct {
	AgentActionName string   `json:"agent_action_name"`
	ToolInfo        toolInfo `json:"tool_info"`

	Command string `json:"command"`
	Cwd     string `json:"cwd"`

	HookEventName string          `json:"hook_event_name"`
	ToolName      string          `json:"tool_name"`
	ToolInput     claudeToolInput `json:"tool_input"`
}

type toolInfo struct {
	CommandLine string `json:"command_line"`
	Cwd         string `json:"cwd"`
}

type claudeToolInput struct {
	Command string `json:"command"`
}

// cursorHookOutput is the JSON response Cursor expects from hook scripts.
type cursorHookOutput struct {
	Continue     bool   `json:"continue"`
	Permission   string `json:"permission"`
	UserMessage  string `json:"user_message,omitempty"`
	AgentMessage string `json:"agent_message,omitempty"`
}

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "IDE hook handler for Windsurf, Cursor, and Claude Code",
	Long: `Reads an IDE hook JSON payload from stdin, runs it through the
decision engine, and responds in the format that IDE expects.

Auto-detects the IDE from the JSON input shape:
  Claude Code — exit code 2 blocks the tool call
  Windsurf    — exit code 2 blocks the action
  Cursor      — JSON response with permission: deny/allow

Install with:
  veto install claude-code
  veto install windsurf
  veto install cursor`,
	RunE: hookCommand,
}

func init() {
	rootCmd.AddCommand(hookCmd)
}

func hookCommand(cmd *cobra.Command, args []string) error {
	if os.Getenv("VETO_BYPASS") == "1" {
		data, _ := io.ReadAll(os.Stdin)
		var input hookInput
		if err := json.Unmarshal(data, &input); err == nil && input.Command != "" {
			outputCursorAllow()
		}
		return nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	var input hookInput
	if err := json.Unmarshal(data, &input); err != nil {
		fmt.Fprintf(os.Stderr, "veto: warning: could not parse hook input: %v\n", err)
		return nil
	}

	if input.HookEventName != "" {
		return handleClaudeCodeHook(input)
	}
	if input.Command != "" {
		return handleCursorHook(input)
	}
	switch input.AgentActionName {
	case "pre_run_command":
		return handleWindsurfHook(input)
	default:
		return nil
	}
}

// evaluateCommand is the shared policy evaluation logic for all IDE hooks.
func evaluateCommand(cmdStr, cwd, source string) (policy.Verdict, error) {
	cfg, err := loadConfig()
	if err != nil {
		return policy.Verdict{}, fmt.Errorf("config load failed: %w", err)
	}
	set, err := loadSet(cfg)
	if err != nil {
		return policy.Verdict{}, err
	}

	engine := decision.NewEngine(set)
	verdict := engine.Evaluate(decision.Request{Command: cmdStr})

	log, err := audit.Open(cfg.AuditLogPath)
	if err == nil {
		defer log.Close()
		action := audit.ActionAllowed
		switch verdict.Decision {
		case policy.DecisionDeny:
			action = audit.ActionBlocked
		case policy.DecisionAsk:
			action = audit.ActionAsked
		}
		_ = log.Write(audit.Event{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Action:    action,
			Event:     "hook",
			Target:    cmdStr,
			Agent:     source,
			Reason:    verdict.Reason,
		})
	}

	return verdict, nil
}

// handleWindsurfHook processes Windsurf Cascade Hooks (pre_run_command).
// Block = exit code 2, message on stderr.
func handleWindsurfHook(input hookInput) error {
	cmdStr := input.ToolInfo.CommandLine
	if cmdStr == "" {
		return nil
	}

	verdict, err := evaluateCommand(cmdStr, input.ToolInfo.Cwd, "windsurf-hook")
	if err != nil {
		fmt.Fprintf(os.Stderr, "veto: warning: %v\n", err)
		return nil
	}

	if verdict.Decision == policy.DecisionDeny {
		fmt.Fprintf(os.Stderr, "blocked by veto: %s\n", verdict.Reason)
		os.Exit(2)
	}
	if verdict.Decision == policy.DecisionAsk && !resolveAsk(verdict) {
		fmt.Fprintf(os.Stderr, "blocked by veto: %s\n", verdict.Reason)
		os.Exit(2)
	}
	return nil
}

// handleCursorHook processes Cursor hooks (beforeShellExecution).
// Block = JSON output with permission: "deny".
func handleCursorHook(input hookInput) error {
	cmdStr := input.Command
	if cmdStr == "" {
		outputCursorAllow()
		return nil
	}

	verdict, err := evaluateCommand(cmdStr, input.Cwd, "cursor-hook")
	if err != nil {
		fmt.Fprintf(os.Stderr, "veto: warning: %v\n", err)
		outputCursorAllow()
		return nil
	}

	if verdict.Decision == policy.DecisionDeny || verdict.Decision == policy.DecisionAsk {
		output := cursorHookOutput{
			Continue:     true,
			Permission:   "deny",
			UserMessage:  "blocked by veto: " + verdict.Reason,
			AgentMessage: verdict.Reason,
		}
		data, _ := json.Marshal(output)
		fmt.Println(string(data))
		return nil
	}

	outputCursorAllow()
	return nil
}

func outputCursorAllow() {
	output := cursorHookOutput{Continue: true, Permission: "allow"}
	data, _ := json.Marshal(output)
	fmt.Println(string(data))
}

// handleClaudeCodeHook processes Claude Code PreToolUse hooks.
// Only Bash tool calls are evaluated; other tools pass through.
func handleClaudeCodeHook(input hookInput) error {
	if input.ToolName != "Bash" {
		return nil
	}
	cmdStr := input.ToolInput.Command
	if cmdStr == "" {
		return nil
	}

	verdict, err := evaluateCommand(cmdStr, "", "claude-code-hook")
	if err != nil {
		fmt.Fprintf(os.Stderr, "veto: warning: %v\n", err)
		return nil
	}

	if verdict.Decision == policy.DecisionDeny {
		fmt.Printf("blocked by veto\n%s\n", verdict.Reason)
		os.Exit(2)
	}
	if verdict.Decision == policy.DecisionAsk {
		if resolveAsk(verdict) {
			return nil
		}
		fmt.Printf("veto wants confirmation\n%s\n", verdict.Reason)
		os.Exit(2)
	}
	return nil
}
