// Package validate implements the kernel's validation pipeline (C13): the
// SDK-facing wrapper that intercepts an agent's tool calls, keeps a bounded
// history for flow-aware rules, and routes to either the local decision
// engine or a remote adjudicator API.
package validate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vetohq/veto/internal/decision"
	"github.com/vetohq/veto/internal/policy"
	"github.com/vetohq/veto/internal/toolscan"
)

// historyDepth is the bounded tail of prior outcomes a ValidationContext
// carries, matching the teacher's in-memory session store's fixed-size
// FIFO.
const historyDepth = 100

// ErrToolCallDenied is the typed error a wrapped tool returns on a deny
// verdict, so SDK callers can distinguish "the kernel denied this" from an
// ordinary tool failure.
type ErrToolCallDenied struct {
	ToolName string
	Verdict  policy.Verdict
}

func (e *ErrToolCallDenied) Error() string {
	return fmt.Sprintf("tool call %q denied: %s", e.ToolName, e.Verdict.Reason)
}

func (e *ErrToolCallDenied) Unwrap() error { return errDenied }

var errDenied = errors.New("tool call denied")

// HistoryEntry records one past tool call's outcome.
type HistoryEntry struct {
	ToolCall policy.ToolCall
	Verdict  policy.Verdict
	At       time.Time
}

// ValidationContext is the bounded, per-session state the pipeline
// threads through each call: the last historyDepth outcomes, available to
// rules/adjudicators that need short-range context (e.g. "did we just read
// a credential file before this network call").
type ValidationContext struct {
	SessionID string
	mu        sync.Mutex
	history   []HistoryEntry
}

func (c *ValidationContext) record(entry HistoryEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, entry)
	if len(c.history) > historyDepth {
		c.history = c.history[len(c.history)-historyDepth:]
	}
}

// Tail returns up to historyDepth most recent entries, oldest first.
func (c *ValidationContext) Tail() []HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]HistoryEntry, len(c.history))
	copy(out, c.history)
	return out
}

// RemoteAdjudicator evaluates a ToolCall against a remote policy API,
// for deployments that centralize decisions instead of running the
// kernel's local engine. Only remote calls get retried with backoff: a
// local decision.Engine call can't fail transiently, so retrying it would
// only mask a bug.
type RemoteAdjudicator interface {
	Evaluate(ctx context.Context, tc policy.ToolCall, tail []HistoryEntry) (policy.Verdict, error)
}

// Pipeline wraps tool calls with kernel validation.
type Pipeline struct {
	engine *decision.Engine
	remote RemoteAdjudicator // nil means local-only
	ctxs   sync.Map          // sessionID -> *ValidationContext

	retryAttempts int
	retryBackoff  time.Duration

	descriptors sync.Map // tool name -> toolscan.ToolDescriptor
}

// NewPipeline builds a Pipeline. A nil remote disables remote routing
// entirely — every call resolves against the local engine.
func NewPipeline(engine *decision.Engine, remote RemoteAdjudicator) *Pipeline {
	return &Pipeline{engine: engine, remote: remote, retryAttempts: 3, retryBackoff: 200 * time.Millisecond}
}

func (p *Pipeline) contextFor(sessionID string) *ValidationContext {
	v, _ := p.ctxs.LoadOrStore(sessionID, &ValidationContext{SessionID: sessionID})
	return v.(*ValidationContext)
}

// DescribeTool records a tool's advertised description and input schema so
// Wrap can scan them for poisoning signals on every call. Callers pass
// whatever the agent SDK's tool registration exposed; a tool never
// described is simply skipped by the description scan.
func (p *Pipeline) DescribeTool(name string, descriptor toolscan.ToolDescriptor) {
	descriptor.Name = name
	p.descriptors.Store(name, descriptor)
}

// Tool is the function signature an SDK tool implements.
type Tool func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Wrap returns a Tool that validates each call before delegating to fn,
// per spec.md's `wrap(tools)` interception contract. A deny verdict short
// circuits fn entirely and returns ErrToolCallDenied.
func (p *Pipeline) Wrap(sessionID, toolName string, fn Tool) Tool {
	return func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		tc := policy.ToolCall{Name: toolName, Arguments: args}
		vctx := p.contextFor(sessionID)

		verdict, err := p.evaluate(ctx, tc, vctx)
		if err != nil {
			return nil, err
		}
		verdict = p.enrich(tc, verdict)

		vctx.record(HistoryEntry{ToolCall: tc, Verdict: verdict, At: time.Now()})

		if verdict.Decision == policy.DecisionDeny {
			return nil, &ErrToolCallDenied{ToolName: toolName, Verdict: verdict}
		}

		return fn(ctx, args)
	}
}

// Check runs tc through the same evaluate+enrich+record path as Wrap,
// without a fn to delegate to — for callers that intercept a tool call at
// the transport level (the MCP proxy) rather than by wrapping an SDK
// function.
func (p *Pipeline) Check(ctx context.Context, sessionID string, tc policy.ToolCall) (policy.Verdict, error) {
	vctx := p.contextFor(sessionID)
	verdict, err := p.evaluate(ctx, tc, vctx)
	if err != nil {
		return policy.Verdict{}, err
	}
	verdict = p.enrich(tc, verdict)
	vctx.record(HistoryEntry{ToolCall: tc, Verdict: verdict, At: time.Now()})
	return verdict, nil
}

func (p *Pipeline) evaluate(ctx context.Context, tc policy.ToolCall, vctx *ValidationContext) (policy.Verdict, error) {
	if p.remote == nil {
		return p.engine.Evaluate(decision.Request{Tool: &tc}), nil
	}

	var lastErr error
	backoff := p.retryBackoff
	for attempt := 0; attempt < p.retryAttempts; attempt++ {
		v, err := p.remote.Evaluate(ctx, tc, vctx.Tail())
		if err == nil {
			return v, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return policy.Verdict{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	// The remote adjudicator is unreachable after every retry: fall back to
	// the local engine rather than failing the call outright, so a
	// transient network issue never silently allows everything through.
	fmt.Printf("veto: remote adjudicator unreachable (%v), falling back to local policy\n", lastErr)
	return p.engine.Evaluate(decision.Request{Tool: &tc}), nil
}

// enrich runs the tool-surface scanners (C13's supplemented enrichment)
// over the call and its own description, independently of whatever the
// policy-driven verdict already says. None of these scanners can turn a
// deny into an allow; they can only push an allow up to at least ask.
func (p *Pipeline) enrich(tc policy.ToolCall, verdict policy.Verdict) policy.Verdict {
	if findings := toolscan.CheckConfigGuard(tc.Arguments); len(findings) > 0 {
		verdict = escalateToAsk(verdict, fmt.Sprintf("touches protected config (%s): %s", findings[0].Category, findings[0].Reason))
	}

	if d, ok := p.descriptors.Load(tc.Name); ok {
		if findings := toolscan.ScanDescription(d.(toolscan.ToolDescriptor)); len(findings) > 0 {
			verdict = escalateToAsk(verdict, fmt.Sprintf("tool description shows signs of %s: %s", findings[0].Signal, findings[0].Detail))
		}
	}

	for _, s := range flattenStrings(tc.Arguments) {
		if findings := toolscan.ScanContent(s); len(findings) > 0 {
			verdict = escalateToAsk(verdict, fmt.Sprintf("argument contains a likely %s", findings[0].Kind))
			break
		}
	}

	return verdict
}

// escalateToAsk raises v to at least DecisionAsk, leaving an existing deny
// or ask untouched.
func escalateToAsk(v policy.Verdict, reason string) policy.Verdict {
	if v.Decision == policy.DecisionDeny || v.Decision == policy.DecisionAsk {
		return v
	}
	return policy.Ask(reason, v.Matched)
}

// flattenStrings walks a tool call's arguments collecting every string
// value, nested inside maps/slices, so content scanning doesn't need to
// know each tool's argument shape in advance.
func flattenStrings(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case map[string]interface{}:
		var out []string
		for _, nested := range val {
			out = append(out, flattenStrings(nested)...)
		}
		return out
	case []interface{}:
		var out []string
		for _, item := range val {
			out = append(out, flattenStrings(item)...)
		}
		return out
	default:
		return nil
	}
}
