package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vetohq/veto/internal/policy"
)

var explainCmd = &cobra.Command{
	Use:   "explain \"<restriction>\"",
	Short: "Show how a restriction phrase compiles, without saving it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		compiler := policy.NewCompiler(policy.NullAdjudicator{}, cfg.CacheDir)
		p, err := compiler.Compile(args[0], "")
		if err != nil {
			return fmt.Errorf("could not compile %q: %w", args[0], err)
		}
		printPolicy(*p)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(explainCmd)
}

func printPolicy(p policy.Policy) {
	fmt.Printf("action:      %s\n", p.Action)
	if p.Description != "" {
		fmt.Printf("description: %s\n", p.Description)
	}
	if len(p.Include) > 0 {
		fmt.Printf("include:     %v\n", p.Include)
	}
	if len(p.Exclude) > 0 {
		fmt.Printf("exclude:     %v\n", p.Exclude)
	}
	for i, cr := range p.CommandRules {
		fmt.Printf("command[%d]:  block=%v reason=%q\n", i, cr.Block, cr.Reason)
	}
	for i, cr := range p.ContentRules {
		fmt.Printf("content[%d]:  types=%v reason=%q\n", i, cr.FileTypes, cr.Reason)
	}
	for i, ar := range p.ASTRules {
		fmt.Printf("ast[%d]:      languages=%v reason=%q\n", i, ar.Languages, ar.Reason)
	}
}
