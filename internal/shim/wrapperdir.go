package shim

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"

	"github.com/vetohq/veto/internal/policy"
)

// commandsFor maps each policy action category to the real binaries a
// session's wrapper directory should shadow, per spec.md's C11 command
// table.
var commandsFor = map[policy.PolicyActionKind][]string{
	policy.ActionDelete:  {"rm", "unlink", "rmdir"},
	policy.ActionModify:  {"mv", "cp", "touch", "chmod", "chown", "tee"},
	policy.ActionExecute: {"npm", "npx", "pnpm", "yarn", "pip", "pip3", "cargo", "gem"},
	policy.ActionRead:    {"less", "more", "bat"},
}

// Build writes a session's wrapper directory at dir: one thin script per
// shadowed command (plus a specially-handled git wrapper), all delegating
// the allow/deny decision to the `veto __shim-helper` subcommand of
// vetoBin, which talks to the daemon at daemonAddr. The directory is meant
// to be prepended to the child process's PATH.
func Build(dir, vetoBin, daemonAddr string, actions []policy.PolicyActionKind) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("shim: create wrapper dir: %w", err)
	}

	seen := map[policy.PolicyActionKind]bool{}
	for _, a := range actions {
		seen[a] = true
	}
	if len(actions) == 0 {
		for a := range commandsFor {
			seen[a] = true
		}
	}

	for action, cmds := range commandsFor {
		if !seen[action] {
			continue
		}
		for _, cmd := range cmds {
			if err := writeScript(dir, cmd, string(action), vetoBin, daemonAddr); err != nil {
				return err
			}
		}
	}

	if err := writeGitScript(dir, vetoBin, daemonAddr); err != nil {
		return err
	}

	return nil
}

type scriptData struct {
	Command    string
	Action     string
	VetoBin    string
	DaemonEnv  string
	DaemonAddr string
}

func scriptName(cmd string) string {
	if runtime.GOOS == "windows" {
		return cmd + ".ps1"
	}
	return cmd
}

var posixTemplate = template.Must(template.New("posix").Parse(`#!/bin/sh
# generated by veto — thin gate in front of the real {{.Command}}; never
# transforms argv, only decides whether to exec it.
self_dir=$(CDPATH= cd -- "$(dirname -- "$0")" && pwd)
real=""
IFS=:
for d in $PATH; do
  [ "$d" = "$self_dir" ] && continue
  if [ -x "$d/{{.Command}}" ]; then
    real="$d/{{.Command}}"
    break
  fi
done
unset IFS

if [ -z "$real" ]; then
  echo "veto: no real {{.Command}} found on PATH" >&2
  exit 127
fi

export {{.DaemonEnv}}="{{.DaemonAddr}}"
if "{{.VetoBin}}" __shim-helper {{.Action}} {{.Command}} -- "$@"; then
  exec "$real" "$@"
fi
exit 1
`))

var powershellTemplate = template.Must(template.New("ps1").Parse(`# generated by veto — thin gate in front of the real {{.Command}}
$selfDir = Split-Path -Parent $MyInvocation.MyCommand.Path
$real = Get-Command {{.Command}} -All | Where-Object { (Split-Path $_.Source -Parent) -ne $selfDir } | Select-Object -First 1
if (-not $real) {
  Write-Error "veto: no real {{.Command}} found on PATH"
  exit 127
}

$env:{{.DaemonEnv}} = "{{.DaemonAddr}}"
& "{{.VetoBin}}" __shim-helper {{.Action}} {{.Command}} -- @args
if ($LASTEXITCODE -eq 0) {
  & $real.Source @args
  exit $LASTEXITCODE
}
exit 1
`))

func writeScript(dir, cmd, action, vetoBin, daemonAddr string) error {
	data := scriptData{Command: cmd, Action: action, VetoBin: vetoBin, DaemonEnv: DaemonAddrEnv, DaemonAddr: daemonAddr}

	tmpl := posixTemplate
	mode := os.FileMode(0o755)
	if runtime.GOOS == "windows" {
		tmpl = powershellTemplate
	}

	f, err := os.OpenFile(filepath.Join(dir, scriptName(cmd)), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("shim: write %s wrapper: %w", cmd, err)
	}
	defer f.Close()

	return tmpl.Execute(f, data)
}

// gitTemplate special-cases the destructive git subcommands the spec
// names; every other subcommand passes through ungated, since most of
// git's surface (commit, diff, log, ...) isn't a file-deleting operation.
var gitTemplate = template.Must(template.New("git").Parse(`#!/bin/sh
# generated by veto — gates only the destructive git subcommands
self_dir=$(CDPATH= cd -- "$(dirname -- "$0")" && pwd)
real=""
IFS=:
for d in $PATH; do
  [ "$d" = "$self_dir" ] && continue
  if [ -x "$d/git" ]; then
    real="$d/git"
    break
  fi
done
unset IFS

if [ -z "$real" ]; then
  echo "veto: no real git found on PATH" >&2
  exit 127
fi

needs_gate=0
case "$1 $2" in
  "rm "*) needs_gate=1 ;;
  "clean "*) needs_gate=1 ;;
  "checkout .") needs_gate=1 ;;
  "reset --hard") needs_gate=1 ;;
esac

if [ "$needs_gate" = "1" ]; then
  export {{.DaemonEnv}}="{{.DaemonAddr}}"
  if ! "{{.VetoBin}}" __shim-helper delete "git $*" -- "$self_dir"; then
    exit 1
  fi
fi

exec "$real" "$@"
`))

func writeGitScript(dir, vetoBin, daemonAddr string) error {
	if runtime.GOOS == "windows" {
		// cmd/PowerShell git gating follows the same subcommand logic; the
		// generic powershellTemplate doesn't fit git's argv-inspection
		// needs, so git is only shimmed on POSIX for now.
		return nil
	}
	data := scriptData{VetoBin: vetoBin, DaemonEnv: DaemonAddrEnv, DaemonAddr: daemonAddr}
	f, err := os.OpenFile(filepath.Join(dir, "git"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("shim: write git wrapper: %w", err)
	}
	defer f.Close()
	return gitTemplate.Execute(f, data)
}
