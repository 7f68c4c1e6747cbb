package secrets

// Rule is a credential detection pattern.
type Rule struct {
	ID          string
	Description string
	Pattern     string
	// Keywords, when set, must appear somewhere in the content (case
	// insensitive) for the rule to run.
	Keywords []string
}

// DefaultRules returns the rules for credentials commonly hardcoded in
// source files.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "aws-access-key-id",
			Description: "AWS Access Key ID",
			Pattern:     `\b(?:A3T[A-Z0-9]|AKIA|ASIA|AGPA|AIDA|AROA)[A-Z0-9]{16}\b`,
		},
		{
			ID:          "aws-secret-access-key",
			Description: "AWS Secret Access Key",
			Pattern:     `(?i)aws_?secret_?(?:access_?)?key\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`,
			Keywords:    []string{"aws"},
		},
		{
			ID:          "private-key",
			Description: "PEM Private Key",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP |ENCRYPTED )?PRIVATE KEY(?: BLOCK)?-----`,
		},
		{
			ID:          "github-token",
			Description: "GitHub Token",
			Pattern:     `\b(?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{36}\b|\bgithub_pat_[A-Za-z0-9_]{22,}`,
		},
		{
			ID:          "gitlab-token",
			Description: "GitLab Personal Access Token",
			Pattern:     `\bglpat-[A-Za-z0-9\-]{20,}`,
		},
		{
			ID:          "slack-token",
			Description: "Slack Token",
			Pattern:     `\bxox[baprs]-[A-Za-z0-9\-]{10,}`,
		},
		{
			ID:          "stripe-key",
			Description: "Stripe API Key",
			Pattern:     `\b(?:sk|rk)_(?:live|test)_[A-Za-z0-9]{24,}`,
		},
		{
			ID:          "openai-api-key",
			Description: "OpenAI API Key",
			Pattern:     `\bsk-(?:proj-)?[A-Za-z0-9_\-]{40,}`,
		},
		{
			ID:          "google-api-key",
			Description: "Google API Key",
			Pattern:     `\bAIza[A-Za-z0-9_\-]{35}\b`,
		},
		{
			ID:          "jwt",
			Description: "JSON Web Token",
			Pattern:     `\beyJ[A-Za-z0-9_-]{5,}\.eyJ[A-Za-z0-9_-]{5,}\.[A-Za-z0-9_-]+`,
		},
		{
			ID:          "connection-string",
			Description: "Connection URL with embedded password",
			Pattern:     `(?i)\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp|mssql)://[^:\s/'"]+:[^@\s'"]+@[^\s'"]+`,
		},
		{
			ID:          "password-literal",
			Description: "Password assigned from a string literal",
			Pattern:     `(?i)\b[a-z_]*(?:password|passwd|pwd|secret|api_?key|token)[a-z_]*['"]?\s*(?:=|:|:=|=>)\s*['"][^'"\s]{6,}['"]`,
			Keywords:    []string{"pass", "pwd", "secret", "key", "token"},
		},
	}
}
