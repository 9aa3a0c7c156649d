package mcp

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/vetohq/veto/internal/decision"
	"github.com/vetohq/veto/internal/policy"
	"github.com/vetohq/veto/internal/validate"
)

func testPipeline(t *testing.T) *validate.Pipeline {
	t.Helper()
	set := &policy.Set{
		Rules: []policy.Rule{
			{
				ID:         "deny-execute",
				Name:       "no shell execution via MCP",
				Enabled:    true,
				RuleAction: policy.ActionBlock,
				Tools:      []string{"execute_command"},
			},
		},
		Defaults: policy.Defaults{Mode: policy.ModeStrict},
	}
	return validate.NewPipeline(decision.NewEngine(set), nil)
}

func TestProxyHandleLineBlocksDeniedToolCall(t *testing.T) {
	proxy := NewProxy(testPipeline(t), "sess-1")
	line := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"execute_command","arguments":{"command":"ls"}}}`)

	out, err := proxy.handleLine(context.Background(), line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg, kind, err := ParseMessage(out)
	if err != nil {
		t.Fatalf("proxy emitted invalid JSON-RPC: %v", err)
	}
	if kind != KindResponse {
		t.Fatalf("expected a synthetic error response, got kind %v", kind)
	}
	if msg.Error == nil {
		t.Fatal("expected an error response for a denied tool call")
	}
}

func TestProxyHandleLinePassesThroughAllowedToolCall(t *testing.T) {
	proxy := NewProxy(testPipeline(t), "sess-1")
	line := []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"get_weather","arguments":{"location":"NYC"}}}`)

	out, err := proxy.handleLine(context.Background(), line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != string(line) {
		t.Errorf("expected allowed call forwarded unchanged, got %s", out)
	}
}

func TestProxyHandleLinePassesThroughNonToolCallMessages(t *testing.T) {
	proxy := NewProxy(testPipeline(t), "sess-1")
	line := []byte(`{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)

	out, err := proxy.handleLine(context.Background(), line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != string(line) {
		t.Errorf("expected tools/list forwarded unchanged, got %s", out)
	}
}

// TestProxyRunAgainstEchoServer drives the full Proxy.Run loop against the
// testdata echo server, the way an agent's stdio would feed a real MCP
// server: a blocked tools/call never reaches the server's stdin, while an
// allowed one gets echoed straight back.
func TestProxyRunAgainstEchoServer(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a go subprocess; skipped with -short")
	}

	server := exec.Command("go", "run", "./testdata/echo_server.go")
	serverIn, err := server.StdinPipe()
	if err != nil {
		t.Fatalf("open server stdin: %v", err)
	}
	serverOut, err := server.StdoutPipe()
	if err != nil {
		t.Fatalf("open server stdout: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Skipf("could not start echo server subprocess: %v", err)
	}
	defer server.Wait()
	defer server.Process.Kill()

	proxy := NewProxy(testPipeline(t), "sess-echo")
	agentIn := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"execute_command","arguments":{"command":"ls"}}}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"get_weather","arguments":{"location":"NYC"}}}` + "\n",
	)

	done := make(chan error, 1)
	go func() { done <- proxy.Run(context.Background(), agentIn, serverIn) }()

	scanner := bufio.NewScanner(serverOut)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) == 1 {
			break
		}
	}
	serverIn.Close()
	<-done

	if len(lines) != 1 {
		t.Fatalf("expected exactly one response from the echo server (the allowed call), got %d", len(lines))
	}
	if !strings.Contains(lines[0], "get_weather") {
		t.Errorf("expected the allowed get_weather call to reach the server, got %s", lines[0])
	}
}
