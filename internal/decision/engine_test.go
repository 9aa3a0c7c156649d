package decision

import (
	"testing"

	"github.com/vetohq/veto/internal/policy"
)

func TestEvaluateDenyCommand(t *testing.T) {
	set := &policy.Set{
		Policies: []policy.Policy{
			{CommandRules: []policy.CommandRule{{Block: []string{"git push --force*"}, Reason: "force push is destructive"}}},
		},
	}
	e := NewEngine(set)

	v := e.Evaluate(Request{Command: "git push --force origin main"})
	if v.Decision != policy.DecisionDeny {
		t.Fatalf("expected deny, got %s", v.Decision)
	}

	v2 := e.Evaluate(Request{Command: "git push origin main"})
	if v2.Decision != policy.DecisionAllow {
		t.Fatalf("expected allow, got %s", v2.Decision)
	}
}

func TestEvaluateDenyPath(t *testing.T) {
	set := &policy.Set{
		Policies: []policy.Policy{
			{Action: policy.ActionModify, Include: []string{"**/.env"}, Description: "never edit env files"},
		},
	}
	e := NewEngine(set)

	v := e.Evaluate(Request{Action: policy.ActionModify, Target: "/repo/.env"})
	if v.Decision != policy.DecisionDeny {
		t.Fatalf("expected deny, got %s", v.Decision)
	}

	v2 := e.Evaluate(Request{Action: policy.ActionRead, Target: "/repo/.env"})
	if v2.Decision != policy.DecisionAllow {
		t.Fatalf("expected allow for a different action, got %s", v2.Decision)
	}
}

func TestEvaluateContentRuleException(t *testing.T) {
	set := &policy.Set{
		Policies: []policy.Policy{
			{
				Action:  policy.ActionModify,
				Include: []string{"**/*.ts"},
				ContentRules: []policy.ContentRule{{
					Pattern:    `eval\(`,
					FileTypes:  []string{"ts"},
					Reason:     "no eval",
					Mode:       policy.ContentModeStrict,
					Exceptions: []string{"veto-allow"},
				}},
			},
		},
	}
	e := NewEngine(set)

	denied := e.Evaluate(Request{Action: policy.ActionModify, Target: "/repo/a.ts", Content: "eval(userInput)", FileType: "ts"})
	if denied.Decision != policy.DecisionDeny {
		t.Fatalf("expected deny, got %s", denied.Decision)
	}

	allowed := e.Evaluate(Request{Action: policy.ActionModify, Target: "/repo/a.ts", Content: "eval(userInput) // veto-allow", FileType: "ts"})
	if allowed.Decision != policy.DecisionAllow {
		t.Fatalf("expected allow with exception comment, got %s", allowed.Decision)
	}
}

func TestEvaluateContentRuleStrictBlanksCommentsAndStrings(t *testing.T) {
	set := &policy.Set{
		Policies: []policy.Policy{
			{
				Action:  policy.ActionModify,
				Include: []string{"**/*.ts"},
				ContentRules: []policy.ContentRule{{
					Pattern:   `eval\(`,
					FileTypes: []string{"ts"},
					Reason:    "no eval",
					Mode:      policy.ContentModeStrict,
				}},
			},
		},
	}
	e := NewEngine(set)

	inComment := e.Evaluate(Request{Action: policy.ActionModify, Target: "/repo/a.ts", Content: "// eval( is banned, don't add it back\nconst x = 1", FileType: "ts"})
	if inComment.Decision != policy.DecisionAllow {
		t.Fatalf("expected allow for a mention inside a comment, got %s", inComment.Decision)
	}

	inString := e.Evaluate(Request{Action: policy.ActionModify, Target: "/repo/a.ts", Content: `const msg = "do not call eval( directly"`, FileType: "ts"})
	if inString.Decision != policy.DecisionAllow {
		t.Fatalf("expected allow for a mention inside a string literal, got %s", inString.Decision)
	}

	real := e.Evaluate(Request{Action: policy.ActionModify, Target: "/repo/a.ts", Content: "eval(userInput)", FileType: "ts"})
	if real.Decision != policy.DecisionDeny {
		t.Fatalf("expected deny for a real call outside comments/strings, got %s", real.Decision)
	}
}

func TestEvaluateContentRuleSemanticDefersToAsk(t *testing.T) {
	set := &policy.Set{
		Policies: []policy.Policy{
			{
				Action:  policy.ActionModify,
				Include: []string{"**/*.ts"},
				ContentRules: []policy.ContentRule{{
					Pattern:   `fetch\(`,
					FileTypes: []string{"ts"},
					Reason:    "network call needs review",
					Mode:      policy.ContentModeSemantic,
				}},
			},
		},
	}
	e := NewEngine(set)

	v := e.Evaluate(Request{Action: policy.ActionModify, Target: "/repo/a.ts", Content: "fetch(url)", FileType: "ts"})
	if v.Decision != policy.DecisionAsk {
		t.Fatalf("expected ask for an ambiguous semantic hit, got %s", v.Decision)
	}
}

func TestApplyDomainGuard(t *testing.T) {
	set := &policy.Set{
		Defaults: policy.Defaults{DenyDomains: []string{"*.evil.example", "exfil.test"}},
	}
	e := NewEngine(set)

	denied := e.Evaluate(Request{Command: "curl https://upload.evil.example/drop"})
	if denied.Decision != policy.DecisionDeny {
		t.Fatalf("expected deny for denylisted domain, got %s", denied.Decision)
	}

	allowed := e.Evaluate(Request{Command: "curl https://example.com/file.txt"})
	if allowed.Decision != policy.DecisionAllow {
		t.Fatalf("expected allow for a domain not on the denylist, got %s", allowed.Decision)
	}
}

func TestEvaluateSDKRuleConditionGroups(t *testing.T) {
	set := &policy.Set{
		Rules: []policy.Rule{
			{
				ID: "large-transfer", Name: "large transfer", Enabled: true,
				Severity: policy.SeverityCritical, RuleAction: policy.ActionBlock,
				Tools: []string{"transfer_funds"},
				ConditionGroups: [][]policy.Condition{
					{{Field: "amount", Operator: policy.OpContains, Value: "250000"}},
				},
			},
		},
	}
	e := NewEngine(set)

	v := e.Evaluate(Request{Tool: &policy.ToolCall{Name: "transfer_funds", Arguments: map[string]interface{}{"amount": "250000"}}})
	if v.Decision != policy.DecisionDeny {
		t.Fatalf("expected deny, got %s", v.Decision)
	}

	v2 := e.Evaluate(Request{Tool: &policy.ToolCall{Name: "transfer_funds", Arguments: map[string]interface{}{"amount": "4"}}})
	if v2.Decision != policy.DecisionAllow {
		t.Fatalf("expected allow, got %s", v2.Decision)
	}
}
