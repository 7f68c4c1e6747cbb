package retrieval

import "fmt"

// fallbackTemplates holds the static guidance used when no recipe is
// retrieved, keyed by canonical CWE id.
var fallbackTemplates = map[string]string{
	"CWE-89":  "SQL Injection - Use parameterized queries or prepared statements",
	"CWE-79":  "Cross-Site Scripting (XSS) - Sanitize and escape user input",
	"CWE-78":  "OS Command Injection - Avoid shell execution, use safe APIs",
	"CWE-798": "Hardcoded Credentials - Use environment variables or secret managers",
	"CWE-862": "Missing Authorization - Implement proper access control checks",
	"CWE-918": "SSRF - Validate and whitelist URLs before making requests",
	"CWE-502": "Deserialization - Validate input, use safe deserialization",
	"CWE-327": "Broken Crypto - Use strong, modern cryptographic algorithms",
	"CWE-22":  "Path Traversal - Validate and sanitize file paths",
	"CWE-352": "CSRF - Implement anti-CSRF tokens",
}

// defaultTemplate applies to categories without an entry.
const defaultTemplate = "%s - Apply security best practices"

// FallbackGuidance returns the static guidance for a normalized CWE tag.
func FallbackGuidance(tag string) string {
	if t, ok := fallbackTemplates[tag]; ok {
		return t
	}
	return fmt.Sprintf(defaultTemplate, tag)
}
