// Package cwe normalizes weakness category tags and maps them to names
// and corpus file slugs.
package cwe

import (
	"errors"
	"regexp"
	"strings"
)

// ErrZeroID is returned for numeric tags whose id is zero ("0", "CWE-000").
var ErrZeroID = errors.New("cwe id must be positive")

// Weakness describes a known CWE entry.
type Weakness struct {
	ID      string
	Name    string
	Aliases []string
}

var idPattern = regexp.MustCompile(`(?i)^\s*(?:cwe)?[\s_-]*(\d{1,5})\s*$`)

// known lists the weaknesses the service has curated guidance for.
var known = []Weakness{
	{ID: "CWE-22", Name: "Path Traversal", Aliases: []string{"path_traversal", "directory_traversal"}},
	{ID: "CWE-78", Name: "OS Command Injection", Aliases: []string{"command_injection", "os_command_injection", "shell_injection"}},
	{ID: "CWE-79", Name: "Cross-Site Scripting (XSS)", Aliases: []string{"xss", "cross_site_scripting"}},
	{ID: "CWE-89", Name: "SQL Injection", Aliases: []string{"sql_injection", "sqli"}},
	{ID: "CWE-94", Name: "Code Injection", Aliases: []string{"code_injection", "eval_injection"}},
	{ID: "CWE-327", Name: "Broken or Risky Cryptographic Algorithm", Aliases: []string{"broken_crypto", "weak_crypto", "weak_cryptography"}},
	{ID: "CWE-352", Name: "Cross-Site Request Forgery (CSRF)", Aliases: []string{"csrf", "cross_site_request_forgery"}},
	{ID: "CWE-502", Name: "Deserialization of Untrusted Data", Aliases: []string{"deserialization", "insecure_deserialization"}},
	{ID: "CWE-611", Name: "XML External Entity (XXE)", Aliases: []string{"xxe", "xml_external_entity"}},
	{ID: "CWE-798", Name: "Hardcoded Credentials", Aliases: []string{"hardcoded_credentials", "hardcoded_secrets", "hardcoded_password"}},
	{ID: "CWE-862", Name: "Missing Authorization", Aliases: []string{"missing_authorization", "broken_access_control"}},
	{ID: "CWE-918", Name: "Server-Side Request Forgery (SSRF)", Aliases: []string{"ssrf", "server_side_request_forgery"}},
}

var (
	byID    = make(map[string]Weakness, len(known))
	byAlias = make(map[string]string)
)

func init() {
	for _, w := range known {
		byID[w.ID] = w
		for _, a := range w.Aliases {
			byAlias[a] = w.ID
		}
	}
}

// number returns the id digits of a numeric tag without leading zeros.
// It is empty for non-numeric tags and for a zero id.
func number(tag string) string {
	m := idPattern.FindStringSubmatch(tag)
	if m == nil {
		return ""
	}
	return strings.TrimLeft(m[1], "0")
}

// Validate rejects numeric tags with a zero id. Free-form tags pass.
func Validate(tag string) error {
	if idPattern.MatchString(tag) && number(tag) == "" {
		return ErrZeroID
	}
	return nil
}

// Normalize converts "cwe-89", "89" or "CWE 89" to "CWE-89".
// Anything that is not a CWE number, including a zero id, is returned
// trimmed and unchanged.
func Normalize(tag string) string {
	if n := number(tag); n != "" {
		return "CWE-" + n
	}
	return strings.TrimSpace(tag)
}

// Resolve maps a tag or corpus slug to a canonical CWE id.
// Slugs are matched case-insensitively with '-' and ' ' treated as '_'.
// ok is false when the tag is neither a CWE number nor a known slug.
func Resolve(tag string) (id string, ok bool) {
	if n := number(tag); n != "" {
		return "CWE-" + n, true
	}
	slug := strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToLower(strings.TrimSpace(tag)))
	id, ok = byAlias[slug]
	return id, ok
}

// Lookup returns the known weakness for a tag.
func Lookup(tag string) (Weakness, bool) {
	id, ok := Resolve(tag)
	if !ok {
		return Weakness{}, false
	}
	w, ok := byID[id]
	return w, ok
}

// Describe returns "CWE-89 (SQL Injection)" for known ids and the normalized
// tag otherwise.
func Describe(tag string) string {
	if w, ok := Lookup(tag); ok {
		return w.ID + " (" + w.Name + ")"
	}
	return Normalize(tag)
}
