// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

// Package scanner inspects tool output before it reaches the model. It
// looks for text that tries to steer the model (prompt injection) and for
// credentials that should not be echoed into a conversation.
package scanner

import (
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

// Category groups rules by what they detect.
type Category string

const (
	CategoryInjection Category = "injection"
	CategorySecret    Category = "secret"
)

// Severity is how much weight a match carries.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rule is a single named pattern.
type Rule struct {
	Name     string
	Pattern  *regexp.Regexp
	Category Category
	Severity Severity
}

// Match is one rule hit. Location and Length are byte offsets into
// Result.Content.
type Match struct {
	Rule     string
	Category Category
	Severity Severity
	Location int
	Length   int
}

// Result is the outcome of a scan. Content is the normalized text the
// offsets refer to.
type Result struct {
	Threat  bool
	Content string
	Matches []Match
}

// Rules returns the distinct rule names that matched, in first-hit order.
func (r Result) Rules() []string {
	var names []string
	for _, m := range r.Matches {
		if !slices.Contains(names, m.Rule) {
			names = append(names, m.Rule)
		}
	}
	return names
}

// Has reports whether any match belongs to category c.
func (r Result) Has(c Category) bool {
	return slices.ContainsFunc(r.Matches, func(m Match) bool { return m.Category == c })
}

// Scanner checks text against a fixed rule set. It is safe for concurrent
// use.
type Scanner struct {
	rules []Rule
}

// New creates a Scanner. Rules need a name, a pattern and a category.
func New(rules []Rule) (*Scanner, error) {
	for i, r := range rules {
		if r.Name == "" {
			return nil, mosaicerr.Errorf(mosaicerr.CodeScannerRuleInvalid, "rule %d has no name", i)
		}
		if r.Pattern == nil {
			return nil, mosaicerr.Errorf(mosaicerr.CodeScannerRuleInvalid, "rule %q has no pattern", r.Name)
		}
		if r.Category != CategoryInjection && r.Category != CategorySecret {
			return nil, mosaicerr.Errorf(mosaicerr.CodeScannerRuleInvalid, "rule %q has unknown category %q", r.Name, r.Category)
		}
	}
	return &Scanner{rules: slices.Clone(rules)}, nil
}

// Default returns a Scanner with DefaultRules.
func Default() *Scanner {
	s, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return s
}

// invisible strips zero-width and formatting characters often used to
// split trigger phrases.
var invisible = strings.NewReplacer(
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\ufeff", "",
	"\u00ad", "",
	"\u034f", "",
	"\u061c", "",
	"\u180e", "",
	"\u2060", "",
	"\u2061", "",
	"\u2062", "",
	"\u2063", "",
	"\u2064", "",
)

func normalize(s string) string {
	return norm.NFKC.String(invisible.Replace(s))
}

// Scan normalizes content and reports every rule hit.
func (s *Scanner) Scan(content string) Result {
	content = normalize(content)
	result := Result{Content: content}

	for _, rule := range s.rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(content, -1) {
			result.Threat = true
			result.Matches = append(result.Matches, Match{
				Rule:     rule.Name,
				Category: rule.Category,
				Severity: rule.Severity,
				Location: loc[0],
				Length:   loc[1] - loc[0],
			})
		}
	}
	return result
}

// DefaultRules returns the built-in injection and credential rules.
func DefaultRules() []Rule {
	return slices.Concat(InjectionRules(), SecretRules())
}

// InjectionRules returns patterns for text that addresses the model
// instead of the user.
func InjectionRules() []Rule {
	return []Rule{
		{
			Name:     "instruction_override",
			Pattern:  regexp.MustCompile(`(?i)(ignore|disregard|override|forget|do\s+not\s+follow)\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|rules)`),
			Category: CategoryInjection,
			Severity: SeverityHigh,
		},
		{
			Name:     "role_confusion",
			Pattern:  regexp.MustCompile(`(?i)you\s+are\s+now\s+\w+[,.]?\s*(do|ignore|forget|disregard)`),
			Category: CategoryInjection,
			Severity: SeverityHigh,
		},
		{
			Name:     "new_task_injection",
			Pattern:  regexp.MustCompile(`(?i)(new\s+task\s*:|pretend\s+(?:the\s+)?(?:above|previous)\s+(?:rules?|instructions?)\s+(?:do\s+not|don'?t)\s+exist)`),
			Category: CategoryInjection,
			Severity: SeverityMedium,
		},
		{
			Name:     "system_block_injection",
			Pattern:  regexp.MustCompile(`(?i)(?:<\|?system\|?>|\[system\]|<<SYS>>|` + "```system\\b" + `)`),
			Category: CategoryInjection,
			Severity: SeverityHigh,
		},
		{
			Name:     "system_prompt_leak",
			Pattern:  regexp.MustCompile(`(?m)^SYSTEM:\s`),
			Category: CategoryInjection,
			Severity: SeverityHigh,
		},
		{
			Name:     "role_impersonation",
			Pattern:  regexp.MustCompile(`(?is)\[INST\].{0,1000}?\[/INST\]`),
			Category: CategoryInjection,
			Severity: SeverityHigh,
		},
	}
}

// SecretRules returns credential patterns.
func SecretRules() []Rule {
	secret := func(name, pattern string, sev Severity) Rule {
		return Rule{Name: name, Pattern: regexp.MustCompile(pattern), Category: CategorySecret, Severity: sev}
	}
	return []Rule{
		secret("aws_access_key", `AKIA[0-9A-Z]{16}`, SeverityHigh),
		secret("anthropic_api_key", `sk-ant-api\d{2}-[A-Za-z0-9_-]{20,}`, SeverityHigh),
		secret("openai_api_key", `sk-proj-[A-Za-z0-9_-]{20,}`, SeverityHigh),
		secret("openai_legacy_key", `sk-[A-Za-z0-9]{40,}`, SeverityMedium),
		secret("google_api_key", `AIza[0-9A-Za-z_-]{35}`, SeverityHigh),
		secret("github_pat", `ghp_[A-Za-z0-9]{36}`, SeverityHigh),
		secret("github_fine_grained_pat", `github_pat_[A-Za-z0-9_]{22,}`, SeverityHigh),
		secret("slack_token", `xox[bpas]-[A-Za-z0-9-]{10,}`, SeverityHigh),
		secret("npm_token", `npm_[A-Za-z0-9]{36}`, SeverityHigh),
		secret("vault_token", `hvs\.[A-Za-z0-9_-]{24,}`, SeverityHigh),
		secret("bearer_token", `(?i)bearer\s+[A-Za-z0-9_\-.]{20,}`, SeverityHigh),
		secret("pem_private_key", `-----BEGIN\s+(RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`, SeverityHigh),
		secret("database_connection_string", `(?i)(postgres(?:ql)?|mysql|mongodb|redis)://[^\s:@]+:[^\s@]+@[^\s/]+`, SeverityHigh),
		secret("keyring_uri", `keyring://[^\s"']+`, SeverityMedium),
	}
}
