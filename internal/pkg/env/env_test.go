package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvPrefersLoadedFile(t *testing.T) {
	t.Cleanup(func() { Env = nil })
	t.Setenv("NOTEFOX_TEST_KEY", "from-os")

	Env = map[string]string{"NOTEFOX_TEST_KEY": "from-file"}
	assert.Equal(t, "from-file", GetEnv("NOTEFOX_TEST_KEY", "default"))

	Env = nil
	assert.Equal(t, "from-os", GetEnv("NOTEFOX_TEST_KEY", "default"))
	assert.Equal(t, "default", GetEnv("NOTEFOX_TEST_MISSING", "default"))
}

func TestIsDev(t *testing.T) {
	t.Cleanup(func() { Env = nil })
	Env = map[string]string{"APP_ENV": "dev"}
	assert.True(t, IsDev())
	Env = map[string]string{"APP_ENV": "prod"}
	assert.False(t, IsDev())
}
