package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DefaultRedaction replaces detected credentials.
const DefaultRedaction = "[REDACTED]"

// Config configures a Scanner.
type Config struct {
	Enabled bool
	// Redaction replaces each detected credential. Defaults to DefaultRedaction.
	Redaction string
	// Rules defaults to DefaultRules.
	Rules []Rule
}

// Finding is a detected credential. The matched text is not retained.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Line        int    `json:"line"`
	start, end  int
}

// Scanner finds and redacts credentials.
type Scanner struct {
	enabled   bool
	redaction string
	rules     []compiledRule
}

type compiledRule struct {
	Rule
	pattern  *regexp.Regexp
	keywords []string
}

// New compiles cfg into a Scanner.
func New(cfg Config) (*Scanner, error) {
	s := &Scanner{
		enabled:   cfg.Enabled,
		redaction: cfg.Redaction,
	}
	if s.redaction == "" {
		s.redaction = DefaultRedaction
	}

	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	for _, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("secret rule: ID is required")
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("secret rule %s: %w", r.ID, err)
		}
		kws := make([]string, len(r.Keywords))
		for i, kw := range r.Keywords {
			kws[i] = strings.ToLower(kw)
		}
		s.rules = append(s.rules, compiledRule{Rule: r, pattern: re, keywords: kws})
	}
	return s, nil
}

// Enabled reports whether the scanner is active.
func (s *Scanner) Enabled() bool {
	return s != nil && s.enabled
}

// Scan returns the credentials found in content, ordered by position.
// A disabled scanner finds nothing.
func (s *Scanner) Scan(content string) []Finding {
	if !s.Enabled() || content == "" {
		return nil
	}

	lower := strings.ToLower(content)
	var findings []Finding
	for _, r := range s.rules {
		if !r.applies(lower) {
			continue
		}
		for _, m := range r.pattern.FindAllStringIndex(content, -1) {
			findings = append(findings, Finding{
				RuleID:      r.ID,
				Description: r.Description,
				Line:        strings.Count(content[:m[0]], "\n") + 1,
				start:       m[0],
				end:         m[1],
			})
		}
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].start < findings[j].start
	})
	return findings
}

// Redact replaces every detected credential in content and reports how
// many were found.
func (s *Scanner) Redact(content string) (string, int) {
	findings := s.Scan(content)
	if len(findings) == 0 {
		return content, 0
	}

	var sb strings.Builder
	pos := 0
	for _, f := range findings {
		if f.end <= pos {
			continue
		}
		start := f.start
		if start < pos {
			start = pos
		} else {
			sb.WriteString(content[pos:start])
			sb.WriteString(s.redaction)
		}
		pos = f.end
	}
	sb.WriteString(content[pos:])
	return sb.String(), len(findings)
}

// RuleIDs returns the distinct rule ids of findings in order of appearance.
func RuleIDs(findings []Finding) []string {
	seen := make(map[string]bool, len(findings))
	var ids []string
	for _, f := range findings {
		if !seen[f.RuleID] {
			seen[f.RuleID] = true
			ids = append(ids, f.RuleID)
		}
	}
	return ids
}

func (r compiledRule) applies(lower string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
