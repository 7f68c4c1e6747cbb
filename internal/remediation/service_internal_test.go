package remediation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestLoggable_CutsOnRuneBoundary(t *testing.T) {
	s := &Service{}
	prefix := strings.Repeat("a", maxLoggedCode-1)

	// "é" spans the cut: its first byte is the last one allowed.
	got := s.loggable(prefix + "é = 1")
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, prefix+"...", got)

	short := "naïve = True"
	assert.Equal(t, short, s.loggable(short))
}
