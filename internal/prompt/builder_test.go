package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/fixd/internal/recipes"
	"github.com/fyrsmithlabs/fixd/internal/remediation"
)

func newRequest(t *testing.T) remediation.Request {
	t.Helper()
	req, err := remediation.NewRequest("python", "CWE-89", `cursor.execute("SELECT * FROM users WHERE id=" + user_input)`, nil)
	require.NoError(t, err)
	return req
}

func TestBuildRemediation(t *testing.T) {
	b := NewBuilder()
	req := newRequest(t)
	recipe := &recipes.Recipe{Category: "CWE-89", Text: "Use parameterized queries."}

	p := b.BuildRemediation(req, remediation.RetrievalResult{
		Recipe:   recipe,
		Guidance: recipe.Text,
		Source:   remediation.SourceExact,
	})

	assert.Contains(t, p, "following python code")
	assert.Contains(t, p, "**Vulnerability Type**: CWE-89 (SQL Injection)")
	assert.Contains(t, p, "```python\ncursor.execute(\"SELECT * FROM users WHERE id=\" + user_input)\n```\n")
	assert.Contains(t, p, "**Security Guidelines**:\nUse parameterized queries.\n")
	assert.Contains(t, p, "1. Provide ONLY the fixed code without explanations")
	assert.True(t, strings.HasSuffix(p, "**Fixed Code**:\n```"), p)
}

func TestBuildRemediation_FallbackAndEmptyGuidance(t *testing.T) {
	b := NewBuilder()
	req := newRequest(t)

	p := b.BuildRemediation(req, remediation.RetrievalResult{
		UsedFallback: true,
		Guidance:     "SQL Injection - Use parameterized queries or prepared statements",
		Source:       remediation.SourceFallback,
	})
	assert.Contains(t, p, "**Security Guidelines**:\nSQL Injection - Use parameterized queries")

	p = b.BuildRemediation(req, remediation.RetrievalResult{UsedFallback: true})
	assert.NotContains(t, p, "Security Guidelines")
}

func TestBuildRemediation_Deterministic(t *testing.T) {
	b := NewBuilder()
	req := newRequest(t)
	r := remediation.RetrievalResult{Guidance: "g"}
	assert.Equal(t, b.BuildRemediation(req, r), b.BuildRemediation(req, r))
}

func TestBuildExplanation(t *testing.T) {
	b := NewBuilder()
	req := newRequest(t)
	fixed := `cursor.execute("SELECT * FROM users WHERE id=?", (user_input,))`

	p := b.BuildExplanation(req, fixed, true)
	assert.Contains(t, p, "(python, CWE-89 (SQL Injection))")
	assert.Contains(t, p, "**Fixed Secure Code**:\n```python\n"+fixed+"\n```")
	assert.Contains(t, p, "one-paragraph")
	assert.True(t, strings.HasSuffix(p, "**Explanation**:"))

	p = b.BuildExplanation(req, req.Code(), false)
	assert.NotContains(t, p, "Fixed Secure Code")
	assert.Contains(t, p, "No automated change was produced")
}
