package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatWL(t *testing.T) {
	assert.Equal(t, "0", FormatWL(0))
	assert.Equal(t, "999", FormatWL(999))
	assert.Equal(t, "1.000", FormatWL(1000))
	assert.Equal(t, "1.234.567", FormatWL(1234567))
	assert.Equal(t, "-12.500", FormatWL(-12500))
}
