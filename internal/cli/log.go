package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vetohq/veto/internal/audit"
)

var (
	logFilterAction string
	logLast         int
	logSummary      bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter the audit log",
	Long: `View veto's audit log with filtering and summary options.

Examples:
  veto log                       # show all entries
  veto log --last 20             # show the last 20 entries
  veto log --action blocked      # show only blocked entries
  veto log --summary             # show summary statistics`,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().StringVar(&logFilterAction, "action", "", "Filter by action (blocked, allowed, asked, restored)")
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N entries")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	events, err := audit.ReadEvents(cfg.AuditLogPath)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}
	if len(events) == 0 {
		fmt.Println("no audit log entries found")
		return nil
	}

	filtered := audit.Filter(events, audit.Action(logFilterAction))
	if logLast > 0 && logLast < len(filtered) {
		filtered = filtered[len(filtered)-logLast:]
	}

	if logSummary {
		printLogSummary(events)
		return nil
	}
	printLogEvents(filtered)
	return nil
}

func printLogEvents(events []audit.Event) {
	for _, e := range events {
		fmt.Printf("%s %-9s %s\n", formatLogTimestamp(e.Timestamp), e.Action, e.Target)
		if e.Reason != "" {
			fmt.Printf("     reason: %s\n", e.Reason)
		}
		if e.Policy != "" {
			fmt.Printf("     policy: %s\n", e.Policy)
		}
		if e.Agent != "" {
			fmt.Printf("     agent:  %s\n", e.Agent)
		}
		fmt.Println()
	}
}

func printLogSummary(events []audit.Event) {
	summary := audit.Summarize(events)

	fmt.Println(strings.Repeat("=", 40))
	fmt.Println("veto audit summary")
	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("  total:    %d\n", summary.Total)
	fmt.Printf("  allowed:  %d\n", summary.Allowed)
	fmt.Printf("  asked:    %d\n", summary.Asked)
	fmt.Printf("  blocked:  %d\n", summary.Blocked)
	fmt.Printf("  restored: %d\n", summary.Restored)
	fmt.Println(strings.Repeat("=", 40))

	if len(events) > 0 {
		fmt.Printf("  first event: %s\n", formatLogTimestamp(events[0].Timestamp))
		fmt.Printf("  last event:  %s\n", formatLogTimestamp(events[len(events)-1].Timestamp))
	}

	blocked := audit.Filter(events, audit.ActionBlocked)
	if len(blocked) > 0 {
		fmt.Println()
		fmt.Println("  recent blocked:")
		limit := len(blocked)
		if limit > 10 {
			limit = 10
		}
		for _, e := range blocked[len(blocked)-limit:] {
			fmt.Printf("    %s %s\n", formatLogTimestamp(e.Timestamp), e.Target)
		}
	}
}

func formatLogTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
