// Command veto is an authorization kernel for AI coding agents: it sits
// between an agent and the tools it calls, enforcing restrictions written
// in plain English and compiled once into a deterministic policy.
package main

import (
	"fmt"
	"os"

	"github.com/vetohq/veto/internal/cli"
	"github.com/vetohq/veto/internal/shim"
)

// shimHelperArg is the hidden entry point wrapper scripts built by
// internal/shim exec into: `veto __shim-helper <action> <command> --
// <args...>`. It's intercepted before cobra ever sees argv, since its
// contract is a bare process exit code, not cobra's command/flag model.
const shimHelperArg = "__shim-helper"

func main() {
	if len(os.Args) > 1 && os.Args[1] == shimHelperArg {
		os.Exit(shim.RunHelper(os.Args[2:]))
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "veto: %v\n", err)
		os.Exit(1)
	}
}
