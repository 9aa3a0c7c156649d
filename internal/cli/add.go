package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add \"<restriction>\"",
	Short: "Append a restriction line to the active policy file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		f, err := os.OpenFile(cfg.PolicyPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open policy file %s: %w", cfg.PolicyPath, err)
		}
		defer f.Close()

		if _, err := fmt.Fprintf(f, "%s\n", args[0]); err != nil {
			return fmt.Errorf("append restriction: %w", err)
		}

		fmt.Printf("added to %s: %s\n", cfg.PolicyPath, args[0])
		fmt.Println("run `veto explain \"" + args[0] + "\"` to see how it compiles")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}
