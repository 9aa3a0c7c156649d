package toolscan

import (
	"encoding/base64"
	"math"
	"regexp"
	"strings"
)

// SecretKind identifies the category of a secret found in a tool call's
// arguments.
type SecretKind string

const (
	SecretPrivateKey    SecretKind = "private_key"
	SecretAWSKey        SecretKind = "aws_key"
	SecretGitHubToken   SecretKind = "github_token"
	SecretSlackToken    SecretKind = "slack_token"
	SecretStripeKey     SecretKind = "stripe_key"
	SecretGenericAPIKey SecretKind = "generic_api_key"
	SecretHighEntropy   SecretKind = "high_entropy_string"
	SecretDotenvContent SecretKind = "dotenv_content"
)

// SecretFinding records one detected secret-shaped string in tool call
// content, along with enough of a redacted snippet to explain the hit
// without logging the secret itself.
type SecretFinding struct {
	Kind     SecretKind
	Snippet  string
	Entropy  float64
}

type secretPattern struct {
	kind SecretKind
	re   *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{SecretPrivateKey, regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH |DSA |PGP )?PRIVATE KEY-----`)},
	{SecretAWSKey, regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{SecretAWSKey, regexp.MustCompile(`\b(?i)aws_secret_access_key\b\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`)},
	{SecretGitHubToken, regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,255}\b`)},
	{SecretGitHubToken, regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{22,255}\b`)},
	{SecretSlackToken, regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,72}\b`)},
	{SecretStripeKey, regexp.MustCompile(`\b(sk|rk|pk)_(live|test)_[A-Za-z0-9]{16,99}\b`)},
	{SecretGenericAPIKey, regexp.MustCompile(`(?i)(api[_-]?key|secret|token|password|passwd)['"]?\s*[:=]\s*['"][A-Za-z0-9_\-/+=]{16,}['"]`)},
}

// ScanContent inspects a tool call argument's text content for secrets and
// exfiltration-shaped payloads: known credential formats, high-entropy
// strings that look like keys, and raw .env-file content pasted through as
// an argument.
func ScanContent(content string) []SecretFinding {
	if content == "" {
		return nil
	}

	var findings []SecretFinding
	for _, p := range secretPatterns {
		if loc := p.re.FindStringIndex(content); loc != nil {
			findings = append(findings, SecretFinding{
				Kind:    p.kind,
				Snippet: redactedSnippet(content, loc[0], loc[1]),
			})
		}
	}

	findings = append(findings, scanHighEntropyTokens(content)...)

	if looksLikeDotenv(content) {
		findings = append(findings, SecretFinding{Kind: SecretDotenvContent, Snippet: "(dotenv-shaped content, redacted)"})
	}

	return findings
}

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9+/_=-]{24,}`)

// entropyThreshold is the Shannon-entropy-per-character cutoff above which
// a token is treated as key-shaped rather than prose or an identifier.
const entropyThreshold = 4.3

func scanHighEntropyTokens(content string) []SecretFinding {
	var findings []SecretFinding
	for _, tok := range tokenPattern.FindAllString(content, -1) {
		if len(tok) > 4096 {
			continue // base64 blob of a whole file body, not a discrete secret
		}
		e := shannonEntropy(tok)
		if e < entropyThreshold {
			continue
		}
		if isLikelyBase64Blob(tok) && len(tok) > 200 {
			continue // large encoded payloads are flagged separately, not as "a secret"
		}
		findings = append(findings, SecretFinding{
			Kind:    SecretHighEntropy,
			Snippet: redactToken(tok),
			Entropy: e,
		})
	}
	return findings
}

func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	counts := make(map[rune]int)
	for _, r := range s {
		counts[r]++
	}
	n := float64(len(s))
	var entropy float64
	for _, c := range counts {
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func isLikelyBase64Blob(s string) bool {
	if len(s)%4 != 0 {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(s)
	return err == nil
}

var dotenvLinePattern = regexp.MustCompile(`(?m)^[A-Z][A-Z0-9_]*=.+$`)

func looksLikeDotenv(content string) bool {
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return false
	}
	matches := dotenvLinePattern.FindAllString(content, -1)
	return len(matches) >= 2 && float64(len(matches)) >= float64(len(lines))*0.5
}

func redactToken(tok string) string {
	if len(tok) <= 8 {
		return "****"
	}
	return tok[:4] + strings.Repeat("*", len(tok)-8) + tok[len(tok)-4:]
}

func redactedSnippet(content string, start, end int) string {
	lineStart := strings.LastIndexByte(content[:start], '\n') + 1
	lineEnd := strings.IndexByte(content[end:], '\n')
	if lineEnd == -1 {
		lineEnd = len(content)
	} else {
		lineEnd += end
	}
	matched := content[start:end]
	line := content[lineStart:lineEnd]
	return strings.Replace(line, matched, redactToken(matched), 1)
}
