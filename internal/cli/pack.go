package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vetohq/veto/internal/policy"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Manage policy packs",
	Long: `Manage veto policy packs.

Policy packs are curated YAML policy files that target specific threat
domains. Packs live in the config dir's packs/ directory and are merged
with the base policy at load time.

Examples:
  veto pack list
  veto pack enable terminal-safety
  veto pack disable supply-chain
  veto pack show terminal-safety`,
}

var packListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed policy packs",
	RunE:  packList,
}

var packEnableCmd = &cobra.Command{
	Use:   "enable <pack-name>",
	Short: "Enable a disabled policy pack",
	Args:  cobra.ExactArgs(1),
	RunE:  packEnable,
}

var packDisableCmd = &cobra.Command{
	Use:   "disable <pack-name>",
	Short: "Disable a policy pack (prefix with underscore on disk)",
	Args:  cobra.ExactArgs(1),
	RunE:  packDisable,
}

var packShowCmd = &cobra.Command{
	Use:   "show <pack-name>",
	Short: "Show the raw YAML of a policy pack",
	Args:  cobra.ExactArgs(1),
	RunE:  packShow,
}

func init() {
	packCmd.AddCommand(packListCmd, packEnableCmd, packDisableCmd, packShowCmd)
	rootCmd.AddCommand(packCmd)
}

func packsDir() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.PacksDir, nil
}

func packList(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}

	_, infos, err := policy.LoadPacks(dir, &policy.Set{})
	if err != nil {
		return fmt.Errorf("load packs: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("no policy packs installed")
		fmt.Printf("\nto install a pack, copy a YAML file into: %s\n", dir)
		return nil
	}

	fmt.Println("installed policy packs:")
	fmt.Println(strings.Repeat("-", 60))
	for _, info := range infos {
		status := "enabled "
		if !info.Enabled {
			status = "disabled"
		}
		fmt.Printf("  [%s]  %-25s %s\n", status, info.Name, info.Description)
		if info.Version != "" {
			fmt.Printf("             v%s by %s  (%d rule(s))\n", info.Version, info.Author, info.RuleCount)
		}
	}
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("packs directory: %s\n", dir)
	return nil
}

func packEnable(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}

	name := args[0]
	disabledPath := filepath.Join(dir, "_"+name+".yaml")
	enabledPath := filepath.Join(dir, name+".yaml")

	if _, err := os.Stat(disabledPath); err == nil {
		if err := os.Rename(disabledPath, enabledPath); err != nil {
			return fmt.Errorf("enable pack: %w", err)
		}
		fmt.Printf("pack %q enabled\n", name)
		return nil
	}
	if _, err := os.Stat(enabledPath); err == nil {
		fmt.Printf("pack %q is already enabled\n", name)
		return nil
	}
	return fmt.Errorf("pack %q not found in %s", name, dir)
}

func packDisable(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}

	name := args[0]
	enabledPath := filepath.Join(dir, name+".yaml")
	disabledPath := filepath.Join(dir, "_"+name+".yaml")

	if _, err := os.Stat(enabledPath); err == nil {
		if err := os.Rename(enabledPath, disabledPath); err != nil {
			return fmt.Errorf("disable pack: %w", err)
		}
		fmt.Printf("pack %q disabled\n", name)
		return nil
	}
	if _, err := os.Stat(disabledPath); err == nil {
		fmt.Printf("pack %q is already disabled\n", name)
		return nil
	}
	return fmt.Errorf("pack %q not found in %s", name, dir)
}

func packShow(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}

	name := args[0]
	path := filepath.Join(dir, name+".yaml")
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(dir, "_"+name+".yaml")
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("pack %q not found in %s", name, dir)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
