// Package policy holds the kernel's typed policy representation (C4), the
// .veto/YAML parsers that build it (C5), and the restriction compiler (C6).
package policy

import "fmt"

// Decision is the kernel's three-valued verdict.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
	DecisionAsk   Decision = "ask"
)

// Severity classifies SDK-style rules (Rule.Severity).
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RuleAction is the SDK rule's declared effect, mapped to a Decision by the
// decision engine (§4.9 step 5 of the original spec).
type RuleAction string

const (
	ActionAllow RuleAction = "allow"
	ActionBlock RuleAction = "block"
	ActionWarn  RuleAction = "warn"
	ActionAsk   RuleAction = "ask"
)

// ToDecision maps an SDK rule action onto a Decision. `warn` allows but the
// caller is expected to annotate the verdict (handled by the decision
// engine, not here, since warn needs access to the rule that produced it).
func (a RuleAction) ToDecision() Decision {
	switch a {
	case ActionBlock:
		return DecisionDeny
	case ActionAsk:
		return DecisionAsk
	default:
		return DecisionAllow
	}
}

// PolicyActionKind is the file-action category a glob-based Policy governs.
type PolicyActionKind string

const (
	ActionDelete  PolicyActionKind = "delete"
	ActionModify  PolicyActionKind = "modify"
	ActionExecute PolicyActionKind = "execute"
	ActionRead    PolicyActionKind = "read"
)

// Policy is an executable glob/command/content rule bundle addressing one
// action category. See spec §3 "Policy".
type Policy struct {
	Action      PolicyActionKind `yaml:"action"`
	Include     []string         `yaml:"include"`
	Exclude     []string         `yaml:"exclude,omitempty"`
	Description string           `yaml:"description,omitempty"`
	CommandRules []CommandRule   `yaml:"command_rules,omitempty"`
	ContentRules []ContentRule   `yaml:"content_rules,omitempty"`
	ASTRules     []ASTRule       `yaml:"ast_rules,omitempty"`
}

// Validate enforces the invariant: include must be non-empty unless the
// policy is command-rules-only.
func (p *Policy) Validate() error {
	if len(p.Include) == 0 && len(p.CommandRules) == 0 {
		return fmt.Errorf("policy %q: include must be non-empty unless the policy has only command_rules", p.Description)
	}
	if p.Action == "" && len(p.CommandRules) == 0 {
		return fmt.Errorf("policy %q: action is required for file-targeting policies", p.Description)
	}
	return nil
}

// CommandRule blocks commands matching a glob against a normalized,
// alias-expanded command string. See spec §3 "CommandRule" and §4.2.
type CommandRule struct {
	Block   []string `yaml:"block"`
	Reason  string   `yaml:"reason"`
	Suggest string   `yaml:"suggest,omitempty"`
}

// ContentMode controls how a ContentRule treats comments/strings.
type ContentMode string

const (
	ContentModeFast     ContentMode = "fast"
	ContentModeStrict   ContentMode = "strict"
	ContentModeSemantic ContentMode = "semantic"
)

// ContentRule is a regex rule over file content. See spec §3 "ContentRule".
type ContentRule struct {
	Pattern    string      `yaml:"pattern"`
	FileTypes  []string    `yaml:"file_types"`
	Reason     string      `yaml:"reason"`
	Suggest    string      `yaml:"suggest,omitempty"`
	Mode       ContentMode `yaml:"mode,omitempty"`
	Exceptions []string    `yaml:"exceptions,omitempty"`
}

// ASTRule matches an S-expression tree query against a parsed source file.
// See spec §3 "ASTRule" and §4.3.
type ASTRule struct {
	ID             string   `yaml:"id"`
	Query          string   `yaml:"query"`
	Languages      []string `yaml:"languages"`
	Reason         string   `yaml:"reason"`
	Suggest        string   `yaml:"suggest,omitempty"`
	RegexPreFilter string   `yaml:"regex_pre_filter,omitempty"`
}

// ConditionOperator is the comparison applied to a dotted tool-argument path.
type ConditionOperator string

const (
	OpEquals     ConditionOperator = "equals"
	OpContains   ConditionOperator = "contains"
	OpStartsWith ConditionOperator = "starts_with"
	OpEndsWith   ConditionOperator = "ends_with"
	OpMatches    ConditionOperator = "matches"
)

// Condition addresses one field of a tool call's arguments. See spec §3.
type Condition struct {
	Field    string            `yaml:"field"`
	Operator ConditionOperator `yaml:"operator"`
	Value    interface{}       `yaml:"value"`
}

// Rule is the SDK-style, higher-level rule used by the validation pipeline
// (C13) and by YAML rule files (C5). See spec §3 "Rule (SDK variant)".
type Rule struct {
	ID              string        `yaml:"id"`
	Name            string        `yaml:"name"`
	Enabled         bool          `yaml:"enabled"`
	Severity        Severity      `yaml:"severity"`
	RuleAction      RuleAction    `yaml:"action"`
	Tools           []string      `yaml:"tools,omitempty"`
	Conditions      []Condition   `yaml:"conditions,omitempty"`
	ConditionGroups [][]Condition `yaml:"condition_groups,omitempty"`
}

// IsGlobal reports whether the rule applies to every tool (no Tools filter).
func (r Rule) IsGlobal() bool {
	return len(r.Tools) == 0
}

// AppliesToTool reports whether the rule is global or names toolName.
func (r Rule) AppliesToTool(toolName string) bool {
	if r.IsGlobal() {
		return true
	}
	for _, t := range r.Tools {
		if t == toolName {
			return true
		}
	}
	return false
}

// ToolCall is a structured request from an agent. See spec §3 "ToolCall".
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// MatchedRule records which rule/location produced a Verdict.
type MatchedRule struct {
	RuleID  string `json:"rule_id"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Verdict is the kernel's reply. See spec §3 "Verdict".
type Verdict struct {
	Decision Decision               `json:"decision"`
	Reason   string                 `json:"reason,omitempty"`
	Suggest  string                 `json:"suggest,omitempty"`
	Matched  *MatchedRule           `json:"matched,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Allow builds an allow verdict, optionally annotated (e.g. for `warn`).
func Allow(metadata map[string]interface{}) Verdict {
	return Verdict{Decision: DecisionAllow, Metadata: metadata}
}

// Deny builds a deny verdict with a reason and optional suggestion.
func Deny(reason, suggest string, matched *MatchedRule) Verdict {
	return Verdict{Decision: DecisionDeny, Reason: reason, Suggest: suggest, Matched: matched}
}

// Ask builds an ask verdict.
func Ask(reason string, matched *MatchedRule) Verdict {
	return Verdict{Decision: DecisionAsk, Reason: reason, Matched: matched}
}

// Set is a named, loaded collection of Policies and Rules plus the runtime
// defaults that govern fail-open/fail-closed behavior. Immutable once
// compiled — the decision engine never mutates it (spec §4.4).
type Set struct {
	Version  string    `yaml:"version"`
	Policies []Policy  `yaml:"policies,omitempty"`
	Rules    []Rule    `yaml:"rules,omitempty"`
	Defaults Defaults  `yaml:"defaults"`
}

// Defaults holds the kernel's operating mode and protected-path extras.
type Defaults struct {
	// Mode is "strict" (deny as-is, fail closed on adjudicator errors) or
	// "log" (downgrade deny to allow with metadata, fail open). Spec §4.9.
	Mode           string   `yaml:"mode"`
	ProtectedPaths []string `yaml:"protected_paths,omitempty"`
	// DenyDomains globs match against hosts extracted from a command's URLs
	// and SSH remotes (internal/normalize); a hit denies regardless of
	// which CommandRule, if any, the command also matches.
	DenyDomains []string `yaml:"deny_domains,omitempty"`
}

const (
	ModeStrict = "strict"
	ModeLog    = "log"
)
