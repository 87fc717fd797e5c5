package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefreshTestMode(t *testing.T) {
	t.Cleanup(func() { RefreshTestMode() })
	t.Setenv(TestModeEnv, "true")
	assert.True(t, RefreshTestMode())
	assert.True(t, InTestMode())

	t.Setenv(TestModeEnv, "0")
	assert.True(t, InTestMode(), "cached until refreshed")
	assert.False(t, RefreshTestMode())
	assert.False(t, InTestMode())
}
