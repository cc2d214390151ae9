package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	c := New()
	assert.Equal(t, 4, c.BoardSize())
	assert.Equal(t, float32(0.1), c.P4())
	assert.Equal(t, "memory", c.StoreKind())
	assert.Equal(t, 0, c.MaxDepth())
}

func TestEnvOverride(t *testing.T) {
	os.Setenv("TB2048_BOARD_SIZE", "6")
	defer os.Unsetenv("TB2048_BOARD_SIZE")

	c := New()
	assert.Equal(t, 6, c.BoardSize())
}

func TestSetOverridesDefault(t *testing.T) {
	c := New()
	c.Set(KeyStoreKind, "sqlite")
	assert.Equal(t, "sqlite", c.StoreKind())
}
