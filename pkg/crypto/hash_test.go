package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashKey(t *testing.T) {
	full := HashKey("https://docs.google.com/spreadsheets/d/abc", 0)
	assert.Len(t, full, 64)

	short := HashKey("https://docs.google.com/spreadsheets/d/abc", 12)
	assert.Len(t, short, 24)
	assert.Equal(t, full[:24], short)

	assert.Equal(t, full, HashKey("https://docs.google.com/spreadsheets/d/abc", 99))
	assert.NotEqual(t, short, HashKey("https://docs.google.com/spreadsheets/d/abd", 12))
}
