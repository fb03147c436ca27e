package conv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueOrDefault(t *testing.T) {
	assert.Equal(t, "all", ValueOrDefault("", "all"))
	assert.Equal(t, "history", ValueOrDefault("history", "all"))
	assert.Equal(t, 8, ValueOrDefault(0, 8))
}

func TestPtr(t *testing.T) {
	p := Ptr(3)
	*p = 4
	assert.Equal(t, 4, *Ptr(*p))
}
