// Package decision implements the kernel's decision engine (C9): the
// single evaluation pipeline every caller (hook script, daemon, shim,
// validation pipeline) ultimately runs a request through.
package decision

import (
	"fmt"
	"strings"

	"github.com/vetohq/veto/internal/astengine"
	"github.com/vetohq/veto/internal/cmdmatch"
	"github.com/vetohq/veto/internal/guardian"
	"github.com/vetohq/veto/internal/normalize"
	"github.com/vetohq/veto/internal/pathmatch"
	"github.com/vetohq/veto/internal/policy"
	"github.com/vetohq/veto/internal/redact"
	"github.com/vetohq/veto/internal/toolscan"
	"github.com/vetohq/veto/internal/unicode"
)

// heuristics is the engine's built-in guardian provider: a fixed, zero-
// dependency check for prompt-injection and obfuscation signals that no
// user-authored policy rule names explicitly. Package-level since it
// holds no per-engine state and compiling its patterns is pure overhead
// to repeat per Engine.
var heuristics = guardian.NewHeuristicProvider()

// Request is the union of everything the engine needs to evaluate a single
// action. Callers fill in only the fields relevant to what they're asking
// about; zero-value fields are skipped.
type Request struct {
	// File-targeting fields.
	Action policy.PolicyActionKind
	Target string // normalized or raw path

	// Command-targeting fields. Cwd resolves relative paths referenced as
	// command arguments; empty means the process's own working directory
	// would be assumed by a shell, so relative paths are left unresolved.
	Command string
	Cwd     string

	// Content-targeting fields (populated alongside Target/Action when the
	// caller has the file's post-change content available).
	Content  string
	FileType string

	// SDK/tool-call fields.
	Tool *policy.ToolCall
}

// severity orders the three decisions so the tie-break rule — explicit
// deny beats explicit ask beats explicit allow beats the configured
// default — can be expressed as a single max-by-severity reduction, the
// way the teacher's analyzer combiner picks the most restrictive finding.
func severity(d policy.Decision) int {
	switch d {
	case policy.DecisionDeny:
		return 3
	case policy.DecisionAsk:
		return 2
	case policy.DecisionAllow:
		return 1
	default:
		return 0
	}
}

// Engine evaluates Requests against an immutable, compiled policy Set.
// The Set is never mutated after construction — NewEngine takes it by
// value-semantics contract (callers must not mutate a Set they handed to
// an Engine), so concurrent Evaluate calls need no locking around it.
type Engine struct {
	set *policy.Set
}

// NewEngine wraps a compiled policy Set.
func NewEngine(set *policy.Set) *Engine {
	return &Engine{set: set}
}

// Evaluate runs req through every applicable rule category and returns the
// single most restrictive Verdict. Evaluation short-circuits as soon as a
// deny is found configured rules cannot be overridden by a later allow.
func (e *Engine) Evaluate(req Request) policy.Verdict {
	var best policy.Verdict
	hasBest := false

	consider := func(v policy.Verdict) bool {
		if !hasBest || severity(v.Decision) > severity(best.Decision) {
			best = v
			hasBest = true
		}
		return v.Decision == policy.DecisionDeny
	}

	for i := range e.set.Policies {
		p := &e.set.Policies[i]

		if req.Command != "" {
			for j := range p.CommandRules {
				cr := &p.CommandRules[j]
				if cmdmatch.Matches(req.Command, cr.Block) {
					if consider(policy.Deny(cr.Reason, cr.Suggest, &policy.MatchedRule{RuleID: policyRuleID(p, "command", j)})) {
						return best
					}
				}
			}
			if v, ok := e.evaluateCommandPaths(p, req); ok {
				if consider(v) {
					return best
				}
			}
		}

		if req.Target != "" && req.Action != "" && req.Action == p.Action {
			if pathmatch.IsProtected(req.Target, p.Include, p.Exclude) {
				if req.Content != "" {
					if v, ok := e.evaluateASTRules(p, req); ok {
						if consider(v) {
							return best
						}
						continue
					} else if v, ok := e.evaluateContentRules(p, req); ok {
						if consider(v) {
							return best
						}
						continue
					}
				}
				// A bare include match with no content/AST rules to narrow
				// it is itself the restriction: any targeted action denies.
				if len(p.ContentRules) == 0 && len(p.ASTRules) == 0 {
					if consider(policy.Deny(p.Description, "", &policy.MatchedRule{RuleID: policyRuleID(p, "path", 0)})) {
						return best
					}
				}
			}
		}
	}

	if req.Tool != nil {
		if v, matched := e.evaluateRules(req.Tool); matched {
			if consider(v) {
				return best
			}
		}
	}

	if !hasBest {
		best = policy.Allow(nil)
	}
	best = e.applyUnicodeScan(req, best)
	best = e.applyGuardian(req, best)
	best = e.applyDomainGuard(req, best)
	return e.applyConfigGuard(req, best)
}

// applyUnicodeScan floors a verdict against invisible-character smuggling
// (zero-width joiners, bidi overrides, Unicode tag characters, homoglyphs)
// in a command or file content string — the same class of attack as a
// prompt-injected instruction, but hidden in bytes rather than words, so it
// needs its own scanner rather than the guardian's pattern matching.
func (e *Engine) applyUnicodeScan(req Request, v policy.Verdict) policy.Verdict {
	if v.Decision == policy.DecisionDeny {
		return v
	}

	for _, input := range []string{req.Command, req.Content} {
		if input == "" {
			continue
		}
		result := unicode.Scan(input)
		if result.Clean {
			continue
		}
		// Sanitized/RawHex ride along as forensic metadata: an operator
		// reviewing an ask/deny needs the blanked text and the raw bytes of
		// whatever got smuggled, not just the category that tripped it.
		forensics := map[string]interface{}{
			"unicode_sanitized": result.Sanitized,
			"unicode_raw_hex":   result.RawHex,
		}
		for _, threat := range result.Threats {
			if threat.Severity == "block" {
				d := policy.Deny(fmt.Sprintf("unicode smuggling (%s): %s", threat.Category, threat.Description), "", &policy.MatchedRule{RuleID: "unicode-scan"})
				d.Metadata = forensics
				return d
			}
		}
		if v.Decision != policy.DecisionAsk {
			v = policy.Ask(fmt.Sprintf("unicode smuggling (%s)", result.Threats[0].Category), &policy.MatchedRule{RuleID: "unicode-scan"})
			v.Metadata = forensics
		}
	}
	return v
}

// applyDomainGuard floors a verdict against commands that reference a
// denylisted network domain (curl/wget/git-clone URLs, SSH remotes) via
// internal/normalize's domain extraction — the same shape as
// evaluateCommandPaths but for exfiltration destinations rather than
// filesystem paths, and global rather than scoped to one policy's Include.
func (e *Engine) applyDomainGuard(req Request, v policy.Verdict) policy.Verdict {
	if v.Decision == policy.DecisionDeny || req.Command == "" || len(e.set.Defaults.DenyDomains) == 0 {
		return v
	}

	fields := strings.Fields(req.Command)
	nc := normalize.Normalize(fields, req.Cwd)
	for _, domain := range nc.Domains {
		if pathmatch.MatchAny(domain, e.set.Defaults.DenyDomains) {
			return policy.Deny(fmt.Sprintf("command references denied domain %s", domain), "", &policy.MatchedRule{RuleID: "domain-guard"})
		}
	}
	return v
}

// applyGuardian runs the engine's built-in heuristic guardian over a
// command request and escalates the verdict if it fires — never
// downgrades, and never overrides an existing deny. This catches
// prompt-injection and obfuscation patterns no policy author wrote a
// CommandRule for.
func (e *Engine) applyGuardian(req Request, v policy.Verdict) policy.Verdict {
	if v.Decision == policy.DecisionDeny || req.Command == "" {
		return v
	}

	resp, err := heuristics.Analyze(guardian.GuardianRequest{RawCommand: req.Command})
	if err != nil || len(resp.Signals) == 0 {
		return v
	}

	switch resp.SuggestedDecision {
	case "BLOCK":
		return policy.Deny(resp.Explanation, "", &policy.MatchedRule{RuleID: "guardian-heuristic"})
	case "AUDIT":
		if v.Decision != policy.DecisionAsk {
			return policy.Ask(resp.Explanation, &policy.MatchedRule{RuleID: "guardian-heuristic"})
		}
	}
	return v
}

// applyConfigGuard floors a verdict at Ask when the request's target is a
// protected config file, independent of whatever policy rule produced the
// verdict — losing these files disables the kernel itself or opens a
// supply-chain foothold, so no policy gets to silently allow them.
func (e *Engine) applyConfigGuard(req Request, v policy.Verdict) policy.Verdict {
	if v.Decision == policy.DecisionDeny {
		return v
	}
	if req.Target != "" {
		if finding, ok := toolscan.IsProtectedConfigPath(req.Target); ok {
			if v.Decision != policy.DecisionAsk {
				return policy.Ask(fmt.Sprintf("touches protected config (%s): %s", finding.Category, finding.Reason), v.Matched)
			}
		}
	}
	return v
}

// evaluateCommandPaths extracts filesystem paths referenced as arguments of
// a shell command (cat ~/.ssh/id_rsa, cp secrets.env /tmp) and checks them
// against a policy's protected-path globs. A shell command that reads a
// protected file is as much a violation of a file-Action policy as an SDK
// tool call naming the same file directly — a policy shouldn't need a
// parallel CommandRule to say so.
func (e *Engine) evaluateCommandPaths(p *policy.Policy, req Request) (policy.Verdict, bool) {
	if p.Action == "" || (len(p.Include) == 0 && len(p.Exclude) == 0) {
		return policy.Verdict{}, false
	}

	fields := strings.Fields(req.Command)
	nc := normalize.Normalize(fields, req.Cwd)
	for _, path := range nc.Paths {
		if pathmatch.IsProtected(path, p.Include, p.Exclude) {
			d := policy.Deny(p.Description, "", &policy.MatchedRule{RuleID: policyRuleID(p, "command-path", 0)})
			// The raw command may carry a secret argument (a token passed as
			// -H "Authorization: ..."); the audit trail gets a redacted copy
			// rather than the verbatim command.
			d.Metadata = map[string]interface{}{"redacted_command": strings.Join(redact.RedactArgs(fields), " ")}
			return d, true
		}
	}
	return policy.Verdict{}, false
}

func (e *Engine) evaluateContentRules(p *policy.Policy, req Request) (policy.Verdict, bool) {
	for i := range p.ContentRules {
		cr := &p.ContentRules[i]
		if !fileTypeMatches(req.FileType, cr.FileTypes) {
			continue
		}
		if !contentMatches(req.Content, cr, req.FileType) {
			continue
		}
		// A semantic-mode hit is ambiguous by definition: the pattern fired
		// outside a comment or string literal, but only an adjudicator can
		// tell a real violation from a false positive. With no adjudicator
		// wired into the engine, the honest verdict is to defer rather than
		// silently deny or silently allow.
		if cr.Mode == policy.ContentModeSemantic {
			return policy.Ask(cr.Reason, &policy.MatchedRule{RuleID: policyRuleID(p, "content", i)}), true
		}
		return policy.Deny(cr.Reason, cr.Suggest, &policy.MatchedRule{RuleID: policyRuleID(p, "content", i)}), true
	}
	return policy.Verdict{}, false
}

func (e *Engine) evaluateASTRules(p *policy.Policy, req Request) (policy.Verdict, bool) {
	for i := range p.ASTRules {
		ar := &p.ASTRules[i]
		if !languageMatches(req.FileType, ar.Languages) {
			continue
		}
		// The regex pre-filter is a cheap necessary-condition gate: a file
		// that doesn't even contain the suspect token can't match the AST
		// query, so the (more expensive) tree walk is never invoked for it.
		// The pre-filter's absence means "always consult the AST engine".
		if ar.RegexPreFilter != "" && !regexPreFilterHits(req.Content, ar.RegexPreFilter) {
			continue
		}
		matches, err := astengine.Query(req.FileType, []byte(req.Content), ar.Query)
		if err != nil || len(matches) == 0 {
			continue
		}
		return policy.Deny(ar.Reason, ar.Suggest, &policy.MatchedRule{RuleID: ar.ID}), true
	}
	return policy.Verdict{}, false
}

// evaluateRules runs the SDK-style Rule set (condition/condition_groups)
// against a ToolCall. ConditionGroups is a disjunction of conjunctions:
// the rule fires if ANY group's conditions ALL hold.
func (e *Engine) evaluateRules(tc *policy.ToolCall) (policy.Verdict, bool) {
	var best policy.Verdict
	matched := false

	for i := range e.set.Rules {
		r := &e.set.Rules[i]
		if !r.Enabled || !r.AppliesToTool(tc.Name) {
			continue
		}
		if !ruleMatches(r, tc) {
			continue
		}

		v := verdictForRule(r)
		if !matched || severity(v.Decision) > severity(best.Decision) {
			best = v
			matched = true
		}
	}

	return best, matched
}

func verdictForRule(r *policy.Rule) policy.Verdict {
	d := r.RuleAction.ToDecision()
	switch d {
	case policy.DecisionDeny:
		return policy.Deny(fmt.Sprintf("rule %s (%s)", r.Name, r.Severity), "", &policy.MatchedRule{RuleID: r.ID})
	case policy.DecisionAsk:
		return policy.Ask(fmt.Sprintf("rule %s (%s)", r.Name, r.Severity), &policy.MatchedRule{RuleID: r.ID})
	default:
		meta := map[string]interface{}{}
		if r.RuleAction == policy.ActionWarn {
			meta["flagged"] = true
			meta["flagged_reason"] = fmt.Sprintf("rule %s (%s)", r.Name, r.Severity)
			meta["matched_rule"] = r.ID
		}
		return policy.Allow(meta)
	}
}

func ruleMatches(r *policy.Rule, tc *policy.ToolCall) bool {
	if len(r.ConditionGroups) > 0 {
		for _, group := range r.ConditionGroups {
			if allConditionsHold(group, tc) {
				return true
			}
		}
		return false
	}
	if len(r.Conditions) > 0 {
		return allConditionsHold(r.Conditions, tc)
	}
	// No conditions at all: a rule naming tools with no predicate matches
	// unconditionally (e.g. "always ask before calling this tool").
	return true
}

func allConditionsHold(conds []policy.Condition, tc *policy.ToolCall) bool {
	for _, c := range conds {
		if !conditionHolds(c, tc) {
			return false
		}
	}
	return true
}

func conditionHolds(c policy.Condition, tc *policy.ToolCall) bool {
	val := lookupField(tc.Arguments, c.Field)
	valStr := fmt.Sprintf("%v", val)
	wantStr := fmt.Sprintf("%v", c.Value)

	switch c.Operator {
	case policy.OpEquals:
		return val != nil && valStr == wantStr
	case policy.OpContains:
		return strings.Contains(valStr, wantStr)
	case policy.OpStartsWith:
		return strings.HasPrefix(valStr, wantStr)
	case policy.OpEndsWith:
		return strings.HasSuffix(valStr, wantStr)
	case policy.OpMatches:
		return matchesRegex(valStr, wantStr)
	default:
		return false
	}
}

// lookupField resolves a dotted path ("params.path") against nested maps.
func lookupField(args map[string]interface{}, field string) interface{} {
	parts := strings.Split(field, ".")
	var cur interface{} = args
	for _, part := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

func policyRuleID(p *policy.Policy, kind string, idx int) string {
	if p.Description != "" {
		return fmt.Sprintf("%s:%s:%d", p.Description, kind, idx)
	}
	return fmt.Sprintf("%s:%s:%d", p.Action, kind, idx)
}
