// Package cli implements the veto command surface: the agent-launching
// subcommands, policy authoring commands, and the hook/shim-helper entry
// points that the daemon and shim scripts call back into.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vetohq/veto/internal/config"
	"github.com/vetohq/veto/internal/policy"
)

var policyPath string

var rootCmd = &cobra.Command{
	Use:   "veto",
	Short: "veto — an authorization kernel for AI coding agents",
	Long: `veto sits between an AI coding agent and the tools it calls — a shell,
a filesystem, an MCP server — and enforces restrictions written in plain
English, compiled once into a deterministic policy.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "", "path to a .veto/YAML policy file (default: resolved config dir)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves the kernel's on-disk layout for this invocation.
func loadConfig() (*config.Config, error) {
	return config.Load(policyPath, "", "")
}

// loadSet loads and compiles the active policy set for cfg, printing a
// warning (not failing) if packs can't be merged in.
func loadSet(cfg *config.Config) (*policy.Set, error) {
	compiler := policy.NewCompiler(policy.NullAdjudicator{}, cfg.CacheDir)
	set, err := policy.Load(cfg.PolicyPath, compiler)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	set, _, err = policy.LoadPacks(cfg.PacksDir, set)
	if err != nil {
		fmt.Fprintf(os.Stderr, "veto: warning: failed to load packs: %v\n", err)
	}
	return set, nil
}
