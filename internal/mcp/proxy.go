package mcp

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/vetohq/veto/internal/policy"
	"github.com/vetohq/veto/internal/validate"
)

// Proxy sits between an agent and an MCP server's stdio transport,
// line-delimited JSON-RPC in both directions. Every tools/call request
// from the agent is run through the validation pipeline before being
// forwarded; a deny verdict is answered locally with a synthetic
// JSON-RPC error and never reaches the server. Every other message
// (tools/list, resources/read, responses, notifications) passes through
// unexamined — interception only targets the one request type that can
// actually cause a tool to run.
type Proxy struct {
	pipeline  *validate.Pipeline
	sessionID string
}

// NewProxy builds a Proxy that checks tool calls against pipeline under
// sessionID.
func NewProxy(pipeline *validate.Pipeline, sessionID string) *Proxy {
	return &Proxy{pipeline: pipeline, sessionID: sessionID}
}

// Run reads newline-delimited JSON-RPC messages from agentIn (the agent's
// stdout, from the proxy's point of view) and writes either the original
// message (allowed) or a synthetic block response (denied) to serverOut
// (the MCP server's stdin). It returns when agentIn is exhausted or a
// write to serverOut fails.
func (p *Proxy) Run(ctx context.Context, agentIn io.Reader, serverOut io.Writer) error {
	scanner := bufio.NewScanner(agentIn)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		out, err := p.handleLine(ctx, line)
		if err != nil {
			// A message this proxy can't parse is forwarded as-is rather
			// than dropped — a strict protocol error here would break the
			// session over something the validation pipeline never needed
			// an opinion on.
			out = line
		}
		if _, err := serverOut.Write(append(out, '\n')); err != nil {
			return fmt.Errorf("write to mcp server: %w", err)
		}
	}
	return scanner.Err()
}

func (p *Proxy) handleLine(ctx context.Context, line []byte) ([]byte, error) {
	msg, kind, err := ParseMessage(line)
	if err != nil {
		return nil, err
	}
	if kind != KindToolCall {
		return line, nil
	}

	params, err := ExtractToolCall(msg)
	if err != nil {
		return line, nil
	}

	tc := policy.ToolCall{Name: params.Name, Arguments: params.Arguments}
	verdict, err := p.pipeline.Check(ctx, p.sessionID, tc)
	if err != nil {
		return line, nil
	}

	if verdict.Decision == policy.DecisionDeny {
		return NewBlockResponse(msg.ID, verdict.Reason)
	}
	return line, nil
}
