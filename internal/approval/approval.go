// Package approval implements the interactive `ask` prompt the decision
// engine falls back to for Ask verdicts when the calling session has a TTY.
package approval

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Result is the outcome of an interactive approval prompt.
type Result struct {
	Approved   bool
	UserAction string
}

// Prompt is the context shown to the user for an `ask` verdict.
type Prompt struct {
	Target  string
	Reason  string
	Suggest string
}

// IsInteractive reports whether stdin is attached to a terminal. A
// non-interactive caller (a CI job, an SDK-embedded agent with no console)
// can never be asked, so Ask immediately resolves against the configured
// non-interactive default.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Ask shows p and blocks for a y/n answer. When not interactive it resolves
// to nonInteractiveDefault without prompting.
func Ask(p Prompt, nonInteractiveDefault bool) Result {
	if !IsInteractive() {
		action := "auto_deny_non_interactive"
		if nonInteractiveDefault {
			action = "auto_allow_non_interactive"
		}
		return Result{Approved: nonInteractiveDefault, UserAction: action}
	}

	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║              APPROVAL REQUIRED                                ║")
	fmt.Fprintln(os.Stderr, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintf(os.Stderr, "Target: %s\n", p.Target)
	if p.Reason != "" {
		fmt.Fprintf(os.Stderr, "Reason: %s\n", p.Reason)
	}
	if p.Suggest != "" {
		fmt.Fprintf(os.Stderr, "Suggested alternative: %s\n", p.Suggest)
	}
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "  [a] Approve once")
	fmt.Fprintln(os.Stderr, "  [d] Deny")
	fmt.Fprintln(os.Stderr, "")

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Fprint(os.Stderr, "Your choice [a/d]: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return Result{Approved: false, UserAction: "error_reading_input"}
		}

		switch strings.TrimSpace(strings.ToLower(input)) {
		case "a", "approve", "yes", "y":
			return Result{Approved: true, UserAction: "approve_once"}
		case "d", "deny", "no", "n":
			return Result{Approved: false, UserAction: "deny"}
		default:
			fmt.Fprintln(os.Stderr, "Invalid input. Please enter 'a' to approve or 'd' to deny.")
		}
	}
}
