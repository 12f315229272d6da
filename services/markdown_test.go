package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, "plain text", EscapeMarkdown("plain text"))
	assert.Equal(t, "\\+1/\\-2 \\(3 files\\)", EscapeMarkdown("+1/-2 (3 files)"))
	assert.Equal(t, "a\\_b\\*c\\[d\\]e\\.f\\!", EscapeMarkdown("a_b*c[d]e.f!"))
	assert.Equal(t, "back\\\\slash", EscapeMarkdown("back\\slash"))
}

func TestEscapeCode(t *testing.T) {
	assert.Equal(t, "feature/login-2", EscapeCode("feature/login-2"))
	assert.Equal(t, "odd\\`tick", EscapeCode("odd`tick"))
	assert.Equal(t, "back\\\\slash", EscapeCode("back\\slash"))
}
