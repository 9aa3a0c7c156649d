package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vetohq/veto/internal/audit"
	"github.com/vetohq/veto/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show veto's status: policy, active sessions, audit summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Println("veto status")
		fmt.Println("-----------")

		if bin, err := os.Executable(); err == nil {
			fmt.Printf("binary:        %s\n", bin)
		}
		fmt.Printf("policy file:   %s\n", cfg.PolicyPath)
		fmt.Printf("packs dir:     %s\n", cfg.PacksDir)
		fmt.Printf("audit log:     %s\n", cfg.AuditLogPath)

		set, err := loadSet(cfg)
		if err != nil {
			fmt.Printf("policy:        error loading (%v)\n", err)
		} else {
			fmt.Printf("policy:        %d restriction(s), %d rule(s), mode=%s\n", len(set.Policies), len(set.Rules), set.Defaults.Mode)
		}

		if reg, err := session.Open(cfg.SessionsPath); err == nil {
			sessions, err := reg.List()
			if err == nil {
				if len(sessions) == 0 {
					fmt.Println("sessions:      none active")
				} else {
					fmt.Printf("sessions:      %d active\n", len(sessions))
					for _, s := range sessions {
						fmt.Printf("  - %s agent=%s pid=%d started=%s\n", s.ID, s.AgentID, s.PID, s.Started.Format("15:04:05"))
					}
				}
			}
		}

		events, err := audit.ReadEvents(cfg.AuditLogPath)
		if err == nil {
			summary := audit.Summarize(events)
			fmt.Printf("audit:         %d event(s) — %d blocked, %d asked, %d allowed, %d restored\n",
				summary.Total, summary.Blocked, summary.Asked, summary.Allowed, summary.Restored)
		}

		printHookStatus()
		return nil
	},
}

func printHookStatus() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	fmt.Println("hooks:")
	for _, h := range hookTargets(home) {
		if _, err := os.Stat(h.path); err == nil {
			fmt.Printf("  - %-12s present: %s\n", h.agent, h.path)
		} else {
			fmt.Printf("  - %-12s not installed\n", h.agent)
		}
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
