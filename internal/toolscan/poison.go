// Package toolscan implements the kernel's tool-surface enrichment layer:
// scanning a tool's own declared description for prompt-injection signals,
// scanning its call arguments for exfiltration signals, and hard-blocking
// writes to a fixed list of security-relevant dotfiles regardless of
// policy. These run ahead of the validation pipeline's normal rule
// evaluation (C13), independent of whatever a user's policy happens to
// say, since a tool-poisoning attack tries to disable the guardrail
// itself before a policy ever gets consulted.
package toolscan

import (
	"regexp"
	"strings"
)

// PoisonSignal identifies a specific type of tool description poisoning.
type PoisonSignal string

const (
	SignalHiddenInstructions PoisonSignal = "hidden_instructions"
	SignalCredentialHarvest  PoisonSignal = "credential_harvest"
	SignalExfiltrationIntent PoisonSignal = "exfiltration_intent"
	SignalCrossToolOverride  PoisonSignal = "cross_tool_override"
	SignalStealthInstruction PoisonSignal = "stealth_instruction"
)

// PoisonFinding records one detected poisoning signal in a tool description.
type PoisonFinding struct {
	Signal  PoisonSignal
	Detail  string
	Snippet string
}

// ToolDescriptor is the minimal shape a tool definition needs to be
// scanned: its advertised name, description, and raw input schema text.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema string
}

// ScanDescription checks a tool's own description and input schema for
// signals that it's trying to manipulate the calling agent rather than
// just describe itself — hidden instruction tags, coercive preconditions,
// instructions to exfiltrate data, or to hide behavior from the user.
func ScanDescription(tool ToolDescriptor) []PoisonFinding {
	text := tool.Description
	if tool.InputSchema != "" {
		text += " " + tool.InputSchema
	}
	if text == "" {
		return nil
	}

	lower := strings.ToLower(text)

	var findings []PoisonFinding
	for _, group := range []struct {
		signal   PoisonSignal
		patterns []signalPattern
	}{
		{SignalHiddenInstructions, hiddenInstructionPatterns},
		{SignalCredentialHarvest, credentialHarvestPatterns},
		{SignalExfiltrationIntent, exfiltrationPatterns},
		{SignalCrossToolOverride, crossToolPatterns},
		{SignalStealthInstruction, stealthPatterns},
	} {
		for _, pattern := range group.patterns {
			if loc := pattern.re.FindStringIndex(lower); loc != nil {
				findings = append(findings, PoisonFinding{
					Signal:  group.signal,
					Detail:  pattern.description,
					Snippet: safeSnippet(text, loc[0], 80),
				})
			}
		}
	}
	return findings
}

type signalPattern struct {
	re          *regexp.Regexp
	description string
}

var hiddenInstructionPatterns = []signalPattern{
	{regexp.MustCompile(`<important>`), "hidden <important> tag in description"},
	{regexp.MustCompile(`<system>`), "hidden <system> tag in description"},
	{regexp.MustCompile(`<instruction>`), "hidden <instruction> tag in description"},
	{regexp.MustCompile(`<cmd>`), "hidden <cmd> tag in description"},
	{regexp.MustCompile(`ignore\s+(all\s+)?previous\s+instructions`), "prompt injection: ignore previous instructions"},
	{regexp.MustCompile(`ignore\s+(all\s+)?safety`), "prompt injection: ignore safety"},
	{regexp.MustCompile(`override\s+(all\s+)?(previous|system)`), "prompt injection: override instructions"},
	{regexp.MustCompile(`you\s+must\s+(first|always)\s+read`), "coercive instruction to read files"},
	{regexp.MustCompile(`before\s+using\s+this\s+tool.*read`), "pre-condition instruction to read files"},
	{regexp.MustCompile(`otherwise\s+the\s+tool\s+will\s+not\s+work`), "fake pre-condition threat"},
}

var credentialHarvestPatterns = []signalPattern{
	{regexp.MustCompile(`~/?\.(ssh|aws|gnupg|kube|config/gcloud)`), "references sensitive dotfile directory"},
	{regexp.MustCompile(`id_rsa|id_ed25519|id_ecdsa`), "references SSH private key filename"},
	{regexp.MustCompile(`authorized_keys`), "references SSH authorized_keys"},
	{regexp.MustCompile(`credentials|access.?key|secret.?key`), "references credential keywords"},
	{regexp.MustCompile(`/etc/shadow|/etc/passwd`), "references system auth files"},
	{regexp.MustCompile(`\.env\b`), "references .env file"},
	{regexp.MustCompile(`api.?key|api.?token|bearer.?token`), "references API key/token"},
}

var exfiltrationPatterns = []signalPattern{
	{regexp.MustCompile(`pass\s+(it|its|the|this|that|them|their)?\s*(content|contents|data|value|result)?\s*as\b`), "instruction to pass data as parameter"},
	{regexp.MustCompile(`send\s+(it|the|this|all)?\s*(to|via)\b`), "instruction to send data somewhere"},
	{regexp.MustCompile(`(curl|wget|fetch|http|post)\s.*(attacker|evil|exfil|collect|receive)`), "exfiltration via HTTP"},
	{regexp.MustCompile(`encode\s+(it|the|this|data)?\s*(as|in|to|with)\s*(base64|hex)`), "instruction to encode data for exfiltration"},
	{regexp.MustCompile(`(include|embed|attach|append)\s+(it|the|this|all)?\s*(in|to|into)\s*(the\s+)?(response|output|result|argument|param)`), "instruction to embed data in output"},
}

var crossToolPatterns = []signalPattern{
	{regexp.MustCompile(`(side\s+effect|important\s+side\s+effect)\s+on\s+(the\s+)?(also\s+present\s+)?`), "describes side effects on other tools"},
	{regexp.MustCompile(`when\s+this\s+tool\s+is\s+available.*must\s+`), "conditional override when tool is present"},
	{regexp.MustCompile(`(mcp_tool_|tool_)\w+\s+must\s+`), "direct instruction to override another tool"},
	{regexp.MustCompile(`send\s+all\s+(emails|messages|requests|data)\s+to\b`), "instruction to redirect all data"},
}

var stealthPatterns = []signalPattern{
	{regexp.MustCompile(`do\s+not\s+(mention|tell|inform|reveal|show|display|say)`), "instruction to hide behavior from user"},
	{regexp.MustCompile(`don'?t\s+(mention|tell|inform|reveal|show|display|say)`), "instruction to hide behavior from user"},
	{regexp.MustCompile(`(could|might|will)\s+(upset|scare|confuse|alarm|worry)\s+the\s+user`), "social engineering: user emotional manipulation"},
	{regexp.MustCompile(`implementation\s+detail`), "disguising malicious behavior as implementation detail"},
	{regexp.MustCompile(`very\s+very\s+(very\s+)?important`), "emphatic coercion (repeated emphasis)"},
	{regexp.MustCompile(`the\s+application\s+will\s+crash`), "fake crash threat to coerce behavior"},
	{regexp.MustCompile(`all\s+data\s+will\s+be\s+lost`), "fake data loss threat to coerce behavior"},
}

func safeSnippet(text string, idx, maxLen int) string {
	start := idx - 20
	if start < 0 {
		start = 0
	}
	end := idx + maxLen
	if end > len(text) {
		end = len(text)
	}
	snippet := text[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet = snippet + "..."
	}
	return snippet
}
