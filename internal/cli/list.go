package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every restriction in the active policy set",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		set, err := loadSet(cfg)
		if err != nil {
			return err
		}

		if len(set.Policies) == 0 && len(set.Rules) == 0 {
			fmt.Println("no restrictions configured")
			return nil
		}

		for i, p := range set.Policies {
			fmt.Printf("[%d] %s — %s\n", i, p.Action, p.Description)
		}
		for i, r := range set.Rules {
			fmt.Printf("rule[%d] %s — %s (%s)\n", i, r.Name, r.Severity, r.RuleAction)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
