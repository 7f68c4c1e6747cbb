package recipes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		file         string
		data         string
		wantCategory string
		wantBody     string
	}{
		{
			name:         "front matter category",
			file:         "anything.md",
			data:         "---\ncategory: cwe-79\n---\nEscape output.\n",
			wantCategory: "CWE-79",
			wantBody:     "Escape output.",
		},
		{
			name:         "front matter cwe key",
			file:         "anything.md",
			data:         "---\ncwe: 798\ntitle: secrets\n---\n\nLoad secrets from the environment.",
			wantCategory: "CWE-798",
			wantBody:     "Load secrets from the environment.",
		},
		{
			name:         "marker line",
			file:         "notes.txt",
			data:         "CWE: CWE-78\nNever pass user input to a shell.",
			wantCategory: "CWE-78",
			wantBody:     "Never pass user input to a shell.",
		},
		{
			name:         "category marker with alias",
			file:         "notes.txt",
			data:         "Category: ssrf\nAllow-list outbound hosts.",
			wantCategory: "CWE-918",
			wantBody:     "Allow-list outbound hosts.",
		},
		{
			name:         "marker below a title",
			file:         "notes.txt",
			data:         "Hardcoded secrets\nCWE: CWE-798\n\nLoad secrets from a vault.",
			wantCategory: "CWE-798",
			wantBody:     "Hardcoded secrets\n\nLoad secrets from a vault.",
		},
		{
			name:         "marker past the scan window stays in body",
			file:         "notes.txt",
			data:         "a\nb\nc\nd\ne\nCWE: CWE-78",
			wantCategory: "notes",
			wantBody:     "a\nb\nc\nd\ne\nCWE: CWE-78",
		},
		{
			name:         "file name alias",
			file:         "sql_injection.txt",
			data:         "  Use parameterized queries.  \r\n",
			wantCategory: "CWE-89",
			wantBody:     "Use parameterized queries.",
		},
		{
			name:         "file name cwe id",
			file:         "CWE-22.txt",
			data:         "Canonicalize paths.",
			wantCategory: "CWE-22",
			wantBody:     "Canonicalize paths.",
		},
		{
			name:         "unknown stem kept",
			file:         "logging_hygiene.md",
			data:         "Do not log tokens.",
			wantCategory: "logging_hygiene",
			wantBody:     "Do not log tokens.",
		},
		{
			name:         "byte order mark",
			file:         "xss.txt",
			data:         "\ufeffEncode HTML.",
			wantCategory: "CWE-79",
			wantBody:     "Encode HTML.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, body, err := parse(tt.file, []byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantCategory, category)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestParse_InvalidFrontMatter(t *testing.T) {
	_, _, err := parse("bad.md", []byte("---\ncategory: [unclosed\n---\nbody"))
	assert.Error(t, err)
}

func TestSplitFrontMatter_Unterminated(t *testing.T) {
	_, rest, ok := splitFrontMatter("---\ncategory: x\nno end")
	assert.False(t, ok)
	assert.Equal(t, "---\ncategory: x\nno end", rest)
}
