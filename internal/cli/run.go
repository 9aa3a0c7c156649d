package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/vetohq/veto/internal/daemon"
	"github.com/vetohq/veto/internal/decision"
	"github.com/vetohq/veto/internal/policy"
	"github.com/vetohq/veto/internal/session"
	"github.com/vetohq/veto/internal/shim"
)

// knownAgents are registered as their own subcommands, matching the
// `<agent> "<restriction>"` invocation shape spec.md's CLI table names.
// runAgent handles any of them identically; the name only picks the
// binary to exec.
var knownAgents = []string{"claude", "cursor-agent", "codex", "aider", "windsurf"}

func init() {
	rootCmd.AddCommand(runCmd)
	for _, name := range knownAgents {
		agent := name
		rootCmd.AddCommand(&cobra.Command{
			Use:                agent + ` ["restriction"] [-- args...]`,
			Short:              "Run " + agent + " under a fresh restriction, shimmed and watched",
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runAgent(agent, args)
			},
		})
	}
}

var runCmd = &cobra.Command{
	Use:                "run <agent> [\"restriction\"] [-- args...]",
	Short:              "Run an arbitrary agent binary under a fresh restriction",
	DisableFlagParsing: true,
	Args:               cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(args[0], args[1:])
	},
}

// runAgent compiles an optional inline restriction on top of the active
// policy, spawns a daemon and a session-scoped shim wrapper directory, and
// execs agentBin with the wrapper directory prepended to PATH. The daemon
// and wrapper directory are torn down when the agent exits.
func runAgent(agentBin string, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	set, err := loadSet(cfg)
	if err != nil {
		return err
	}

	var agentArgs []string
	for i, a := range args {
		if a == "--" {
			agentArgs = args[i+1:]
			args = args[:i]
			break
		}
	}
	if len(args) > 0 {
		compiler := policy.NewCompiler(policy.NullAdjudicator{}, cfg.CacheDir)
		p, err := compiler.Compile(args[0], "")
		if err != nil {
			return fmt.Errorf("compile restriction %q: %w", args[0], err)
		}
		set.Policies = append(set.Policies, *p)
	}

	engine := decision.NewEngine(set)
	d := daemon.New(engine)
	if err := d.Listen("127.0.0.1:0"); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	go d.Serve()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	}()

	sessionID, err := randomID()
	if err != nil {
		return fmt.Errorf("generate session id: %w", err)
	}
	wrapperDir := shim.NewWrapperDir(sessionID)
	vetoBin, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve veto binary: %w", err)
	}
	if err := shim.Build(wrapperDir, vetoBin, d.Addr().String(), nil); err != nil {
		return fmt.Errorf("build shim wrapper dir: %w", err)
	}
	defer shim.Teardown(wrapperDir)

	registry, err := session.Open(cfg.SessionsPath)
	if err == nil {
		_ = registry.Register(session.Session{
			ID:         sessionID,
			AgentID:    agentBin,
			PID:        os.Getpid(),
			WrapperDir: wrapperDir,
			Started:    time.Now(),
			DaemonPort: daemonPortNum(d),
		})
		defer registry.Unregister(sessionID)
	}

	cmd := exec.Command(agentBin, agentArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = shim.PrependPath(os.Environ(), wrapperDir)
	cmd.Env = append(cmd.Env,
		"VETO_ACTIVE=1",
		"VETO_SESSION_ID="+sessionID,
		"VETO_AGENT_ID="+agentBin,
		"VETO_PORT="+daemonPort(d),
		shim.DaemonAddrEnv+"="+d.Addr().String(),
	)

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return err
	}
	return nil
}

func daemonPort(d *daemon.Daemon) string {
	addr := d.Addr().String()
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[i+1:]
		}
	}
	return ""
}

func daemonPortNum(d *daemon.Daemon) int {
	port, err := strconv.Atoi(daemonPort(d))
	if err != nil {
		return 0
	}
	return port
}

func randomID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
