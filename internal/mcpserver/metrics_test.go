package mcpserver

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateForAttribute(t *testing.T) {
	short := `{"location":"NY"}`
	assert.Equal(t, short, truncateForAttribute(short))

	ascii := strings.Repeat("a", maxAttributeLength+10)
	assert.Equal(t, strings.Repeat("a", maxAttributeLength)+"...", truncateForAttribute(ascii))

	// Two leading bytes put the cut inside a three-byte rune.
	multi := "xy" + strings.Repeat("東", maxAttributeLength)
	got := truncateForAttribute(multi)
	assert.True(t, utf8.ValidString(got), "truncated attribute must stay valid UTF-8")
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Len(t, got, maxAttributeLength-2+len("..."))
	assert.True(t, strings.HasPrefix(multi, strings.TrimSuffix(got, "...")))
}
