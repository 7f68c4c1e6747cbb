package remediation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/fixd/internal/cwe"
)

const (
	// MaxCodeBytes bounds the submitted snippet.
	MaxCodeBytes = 64 * 1024
	maxTagLen    = 64
)

var languagePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9+#._-]{0,31}$`)

// Request is a validated remediation request.
type Request struct {
	language string
	cwe      string
	code     string
	useRAG   bool
}

// NewRequest validates the inputs and returns an immutable Request.
// language is lower-cased and the CWE tag normalized ("cwe-89" and "89"
// become "CWE-89"). A nil useRAG defaults to true.
func NewRequest(language, cweTag, code string, useRAG *bool) (Request, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return Request{}, fmt.Errorf("%w: language is required", ErrInvalidRequest)
	}
	if !languagePattern.MatchString(language) {
		return Request{}, fmt.Errorf("%w: invalid language %q", ErrInvalidRequest, language)
	}

	if err := cwe.Validate(cweTag); err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	tag := cwe.Normalize(cweTag)
	if tag == "" {
		return Request{}, fmt.Errorf("%w: cwe is required", ErrInvalidRequest)
	}
	if len(tag) > maxTagLen {
		return Request{}, fmt.Errorf("%w: cwe exceeds %d characters", ErrInvalidRequest, maxTagLen)
	}

	if strings.TrimSpace(code) == "" {
		return Request{}, fmt.Errorf("%w: code is required", ErrInvalidRequest)
	}
	if len(code) > MaxCodeBytes {
		return Request{}, fmt.Errorf("%w: code exceeds %d bytes", ErrInvalidRequest, MaxCodeBytes)
	}

	rag := true
	if useRAG != nil {
		rag = *useRAG
	}

	return Request{
		language: language,
		cwe:      tag,
		code:     code,
		useRAG:   rag,
	}, nil
}

// Language returns the lower-cased source language.
func (r Request) Language() string { return r.language }

// CWE returns the normalized weakness tag.
func (r Request) CWE() string { return r.cwe }

// Code returns the submitted snippet unchanged.
func (r Request) Code() string { return r.code }

// UseRAG reports whether retrieval was requested.
func (r Request) UseRAG() bool { return r.useRAG }

// valid reports whether r was built by NewRequest.
func (r Request) valid() bool {
	return r.language != "" && r.cwe != "" && r.code != ""
}
