package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnified(t *testing.T) {
	original := "import sqlite3\ncursor.execute(\"SELECT * FROM users WHERE id=\" + user_input)\nrows = cursor.fetchall()\n"
	fixed := "import sqlite3\ncursor.execute(\"SELECT * FROM users WHERE id=?\", (user_input,))\nrows = cursor.fetchall()\n"

	out := Unified(original, fixed)

	assert.True(t, strings.HasPrefix(out, "--- original\n+++ fixed\n"), out)
	assert.Contains(t, out, "@@ -1,3 +1,3 @@")
	assert.Contains(t, out, "-cursor.execute(\"SELECT * FROM users WHERE id=\" + user_input)\n")
	assert.Contains(t, out, "+cursor.execute(\"SELECT * FROM users WHERE id=?\", (user_input,))\n")
	assert.Contains(t, out, " import sqlite3\n")

	added, removed := ChangedLines(out)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)
}

func TestUnified_Pure(t *testing.T) {
	a := "a\nb\nc\n"
	b := "a\nB\nc\nd"
	assert.Equal(t, Unified(a, b), Unified(a, b))
}

func TestUnified_NoChanges(t *testing.T) {
	tests := []struct {
		name     string
		original string
		fixed    string
	}{
		{name: "identical", original: "x = 1\ny = 2\n", fixed: "x = 1\ny = 2\n"},
		{name: "both empty", original: "", fixed: ""},
		{name: "trailing newline only", original: "x = 1", fixed: "x = 1\n"},
		{name: "crlf only", original: "x = 1\r\n", fixed: "x = 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Unified(tt.original, tt.fixed)
			assert.Equal(t, "--- original\n+++ fixed\n", out)
			added, removed := ChangedLines(out)
			assert.Zero(t, added)
			assert.Zero(t, removed)
		})
	}
}

func TestUnified_FromEmpty(t *testing.T) {
	out := Unified("", "print('hi')\n")
	added, removed := ChangedLines(out)
	assert.Equal(t, 1, added)
	assert.Zero(t, removed)
	assert.Contains(t, out, "+print('hi')\n")
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(""))
	assert.Equal(t, []string{"a\n", "b\n"}, splitLines("a\nb"))
	assert.Equal(t, []string{"a\n", "\n"}, splitLines("a\n\n"))
}
