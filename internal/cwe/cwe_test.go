package cwe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"CWE-89":   "CWE-89",
		"cwe-89":   "CWE-89",
		"89":       "CWE-89",
		" CWE 798": "CWE-798",
		"cwe_022":  "CWE-22",
		"custom":   "custom",
		"  xss  ":  "xss",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestZeroID(t *testing.T) {
	for _, tag := range []string{"0", "CWE-0", "cwe-000", " 00 "} {
		assert.ErrorIs(t, Validate(tag), ErrZeroID, tag)
		assert.NotEqual(t, "CWE-", Normalize(tag), tag)
		_, ok := Resolve(tag)
		assert.False(t, ok, tag)
	}
	for _, tag := range []string{"CWE-89", "007", "custom"} {
		assert.NoError(t, Validate(tag), tag)
	}
	assert.Equal(t, "CWE-7", Normalize("007"))
}

func TestResolve(t *testing.T) {
	tests := []struct {
		tag    string
		want   string
		wantOK bool
	}{
		{"sql_injection", "CWE-89", true},
		{"SQL-Injection", "CWE-89", true},
		{"hardcoded secrets", "CWE-798", true},
		{"CWE-1234", "CWE-1234", true},
		{"race_condition", "", false},
	}
	for _, tt := range tests {
		got, ok := Resolve(tt.tag)
		assert.Equal(t, tt.wantOK, ok, tt.tag)
		assert.Equal(t, tt.want, got, tt.tag)
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "CWE-89 (SQL Injection)", Describe("cwe-89"))
	assert.Equal(t, "CWE-4242", Describe("CWE-4242"))
}

func TestKnown_AliasesUnique(t *testing.T) {
	seen := map[string]string{}
	for _, w := range known {
		for _, a := range w.Aliases {
			prev, dup := seen[a]
			assert.False(t, dup, "alias %q used by %s and %s", a, prev, w.ID)
			seen[a] = w.ID
		}
	}
}
