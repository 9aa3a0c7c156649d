package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vetohq/veto/internal/policy"
	"github.com/vetohq/veto/internal/snapshot"
	"github.com/vetohq/veto/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch \"<restriction>\"",
	Short: "Watch files matched by a restriction and restore out-of-band edits",
	Long: `Watch, unlike running an agent under a restriction, never touches PATH
or spawns a daemon: it only watches the restriction's matched paths for
changes and restores them from a snapshot the instant they're edited
outside the shim.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		compiler := policy.NewCompiler(policy.NullAdjudicator{}, cfg.CacheDir)
		p, err := compiler.Compile(args[0], "")
		if err != nil {
			return fmt.Errorf("compile restriction %q: %w", args[0], err)
		}
		if len(p.Include) == 0 {
			return fmt.Errorf("restriction %q has no file targets to watch", args[0])
		}

		store, err := snapshot.Open(cfg.SnapshotsDir, 0)
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}

		w, err := watcher.New(store, p.Include, p.Exclude)
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer w.Close()

		cwd, err := os.Getwd()
		if err != nil {
			cwd = filepath.Dir(cfg.PolicyPath)
		}
		if err := w.AddRecursive(cwd); err != nil {
			return fmt.Errorf("watch %s: %w", cwd, err)
		}

		fmt.Printf("watching %s for: %s\n", cwd, p.Description)
		go w.Run()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs

		for _, ev := range w.Stats() {
			fmt.Printf("%s  %-10s %s\n", ev.Time.Format(time.RFC3339), ev.Kind, ev.Path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
