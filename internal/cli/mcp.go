package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/vetohq/veto/internal/decision"
	"github.com/vetohq/veto/internal/mcp"
	"github.com/vetohq/veto/internal/validate"
)

var mcpProxyCmd = &cobra.Command{
	Use:   "mcp-proxy -- <mcp-server-command> [args...]",
	Short: "Run an MCP server under a stdio proxy that screens tools/call requests",
	Long: `Starts the given MCP server as a child process and sits between it
and the calling agent's stdio: every tools/call request is run through
the validation pipeline (policy rules plus tool-poisoning and argument
content scanning) before it reaches the server. A denied call gets a
synthetic JSON-RPC error instead of ever running.`,
	Args:               cobra.MinimumNArgs(1),
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		set, err := loadSet(cfg)
		if err != nil {
			return err
		}

		engine := decision.NewEngine(set)
		pipeline := validate.NewPipeline(engine, nil)

		sessionID, err := randomID()
		if err != nil {
			return fmt.Errorf("generate session id: %w", err)
		}

		child := exec.Command(args[0], args[1:]...)
		child.Stderr = os.Stderr

		stdin, err := child.StdinPipe()
		if err != nil {
			return fmt.Errorf("open server stdin: %w", err)
		}
		stdout, err := child.StdoutPipe()
		if err != nil {
			return fmt.Errorf("open server stdout: %w", err)
		}
		if err := child.Start(); err != nil {
			return fmt.Errorf("start mcp server: %w", err)
		}

		proxy := mcp.NewProxy(pipeline, sessionID)
		ctx := context.Background()

		errCh := make(chan error, 2)
		go func() { errCh <- proxy.Run(ctx, os.Stdin, stdin) }()
		go func() {
			_, err := io.Copy(os.Stdout, stdout)
			errCh <- err
		}()

		err = <-errCh
		_ = child.Wait()
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpProxyCmd)
}
