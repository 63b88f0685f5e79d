package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withEnv(t *testing.T, values map[string]string) {
	t.Helper()
	prev := Env
	Env = values
	t.Cleanup(func() { Env = prev })
}

func TestGetEnvPrefersLoadedMap(t *testing.T) {
	withEnv(t, map[string]string{"PIXELMARKET_TEST_KEY": "from-map"})
	t.Setenv("PIXELMARKET_TEST_KEY", "from-os")

	assert.Equal(t, "from-map", GetEnv("PIXELMARKET_TEST_KEY", "def"))
}

func TestGetEnvFallsBackToOS(t *testing.T) {
	withEnv(t, map[string]string{})
	t.Setenv("PIXELMARKET_TEST_KEY", "from-os")

	assert.Equal(t, "from-os", GetEnv("PIXELMARKET_TEST_KEY", "def"))
	assert.Equal(t, "def", GetEnv("PIXELMARKET_MISSING_KEY", "def"))
}

func TestGetEnvInt(t *testing.T) {
	withEnv(t, map[string]string{"WORKERS": "8", "BROKEN": "eight"})

	assert.Equal(t, 8, GetEnvInt("WORKERS", 4))
	assert.Equal(t, 4, GetEnvInt("BROKEN", 4))
	assert.Equal(t, 4, GetEnvInt("UNSET_WORKERS", 4))
}

func TestGetEnvDuration(t *testing.T) {
	withEnv(t, map[string]string{"A": "45s", "B": "12", "C": "soon"})

	assert.Equal(t, 45*time.Second, GetEnvDuration("A", time.Second))
	assert.Equal(t, 12*time.Second, GetEnvDuration("B", time.Second))
	assert.Equal(t, time.Second, GetEnvDuration("C", time.Second))
}

func TestEnvironmentFlags(t *testing.T) {
	withEnv(t, map[string]string{"APP_ENV": "dev"})
	assert.True(t, IsDev())
	assert.False(t, IsProd())

	withEnv(t, map[string]string{"APP_ENV": "prod"})
	assert.False(t, IsDev())
	assert.True(t, IsProd())
}
