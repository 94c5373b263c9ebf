package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollatorOrdersNordicLettersLast(t *testing.T) {
	words := []string{"åpen", "ørret", "zulu", "ærlig", "alfa", "Beta"}
	NewCollator().SortStrings(words)
	assert.Equal(t, []string{"alfa", "Beta", "zulu", "ærlig", "ørret", "åpen"}, words)
}
