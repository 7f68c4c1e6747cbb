// Package prompt renders the remediation and explanation prompts and
// extracts code from model output.
package prompt

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/fixd/internal/cwe"
	"github.com/fyrsmithlabs/fixd/internal/remediation"
)

// Builder renders prompts. The zero value is ready to use.
type Builder struct{}

// NewBuilder returns a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildRemediation renders the fix prompt. It ends with an opening code
// fence so that completion models continue with code.
func (b *Builder) BuildRemediation(req remediation.Request, r remediation.RetrievalResult) string {
	var sb strings.Builder

	sb.WriteString("You are a security expert specialized in fixing vulnerable code.\n\n")
	fmt.Fprintf(&sb, "**Task**: Fix the security vulnerability in the following %s code.\n\n", req.Language())
	fmt.Fprintf(&sb, "**Vulnerability Type**: %s\n\n", cwe.Describe(req.CWE()))

	sb.WriteString("**Vulnerable Code**:\n")
	writeFence(&sb, req.Language(), req.Code())

	if guidance := strings.TrimSpace(r.Guidance); guidance != "" {
		sb.WriteString("\n**Security Guidelines**:\n")
		sb.WriteString(guidance)
		sb.WriteString("\n")
	}

	sb.WriteString("\n**Instructions**:\n")
	sb.WriteString("1. Provide ONLY the fixed code without explanations\n")
	sb.WriteString("2. Maintain the original code structure and variable names\n")
	sb.WriteString("3. Fix the security vulnerability completely\n")
	sb.WriteString("4. Ensure the code is production-ready\n\n")
	sb.WriteString("**Fixed Code**:\n```")

	return sb.String()
}

// BuildExplanation renders the prompt asking for a rationale of the fix.
// changed is false when the model produced no usable change, in which case
// the prompt asks what a fix would need instead.
func (b *Builder) BuildExplanation(req remediation.Request, fixedCode string, changed bool) string {
	var sb strings.Builder

	sb.WriteString("You are a security expert. Explain the security fix applied to the code.\n\n")
	fmt.Fprintf(&sb, "**Original Vulnerable Code** (%s, %s):\n", req.Language(), cwe.Describe(req.CWE()))
	writeFence(&sb, req.Language(), req.Code())

	if changed {
		sb.WriteString("\n**Fixed Secure Code**:\n")
		writeFence(&sb, req.Language(), fixedCode)
		sb.WriteString("\n**Instructions**:\n")
		sb.WriteString("Provide a concise one-paragraph explanation of:\n")
		sb.WriteString("1. What vulnerability existed\n")
		sb.WriteString("2. How the fix addresses it\n")
		sb.WriteString("3. Why this approach is secure\n\n")
	} else {
		sb.WriteString("\nNo automated change was produced for this code.\n\n")
		sb.WriteString("**Instructions**:\n")
		sb.WriteString("In one paragraph, explain the vulnerability and what a correct fix must change.\n\n")
	}
	sb.WriteString("**Explanation**:")

	return sb.String()
}

// ExtractCode returns the code in a model response. See ExtractCode.
func (b *Builder) ExtractCode(output, language string) string {
	return ExtractCode(output, language)
}

// ExtractFix extracts the fixed code from a response to BuildRemediation.
//
// Because that prompt ends inside an open fence, a completion model's
// output may be the fence body followed by a closing fence. Output that
// does not start with a fence and has an odd number of fence lines is read
// that way; everything else goes through ExtractCode.
func (b *Builder) ExtractFix(output, language string) string {
	trimmed := strings.TrimSpace(output)
	if strings.HasPrefix(trimmed, fence) {
		return ExtractCode(trimmed, language)
	}

	lines := strings.Split(trimmed, "\n")
	first := -1
	count := 0
	for i, line := range lines {
		if isFenceLine(line) {
			if first < 0 {
				first = i
			}
			count++
		}
	}
	if count%2 == 0 {
		return ExtractCode(trimmed, language)
	}

	body := lines[:first]
	if len(body) > 0 && isLanguageTag(body[0], language) {
		body = body[1:]
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}

func writeFence(sb *strings.Builder, language, code string) {
	sb.WriteString(fence)
	sb.WriteString(language)
	sb.WriteString("\n")
	sb.WriteString(strings.TrimRight(code, "\n"))
	sb.WriteString("\n")
	sb.WriteString(fence)
	sb.WriteString("\n")
}

func isLanguageTag(line, language string) bool {
	tag := strings.TrimSpace(line)
	return tag != "" && strings.EqualFold(tag, language)
}
