package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the compiled-restriction cache",
	Long: `Remove every cached compiled-restriction entry, forcing the next
compile of each restriction phrase to re-run through the builtin table
(and adjudicator, if one is configured) instead of reusing a stale result.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		entries, err := os.ReadDir(cfg.CacheDir)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("cache is already empty")
				return nil
			}
			return fmt.Errorf("read cache dir: %w", err)
		}

		cleared := 0
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			if err := os.Remove(filepath.Join(cfg.CacheDir, e.Name())); err == nil {
				cleared++
			}
		}
		fmt.Printf("cleared %d cached compilation(s)\n", cleared)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
