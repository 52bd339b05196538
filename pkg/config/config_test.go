package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonkit/lessonkit/pkg/config"
)

type testConfig struct {
	Addr    string        `env:"TEST_ADDR" envDefault:":8080"`
	Timeout time.Duration `env:"TEST_TIMEOUT" envDefault:"5s"`
	Secret  string        `env:"TEST_SECRET,required"`
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TEST_SECRET", "hunter2")

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "hunter2", cfg.Secret)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TEST_ADDR", ":9999")
	t.Setenv("TEST_TIMEOUT", "30s")
	t.Setenv("TEST_SECRET", "hunter2")

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestLoadMissingRequired(t *testing.T) {
	var cfg testConfig
	err := config.Load(&cfg)

	assert.ErrorIs(t, err, config.ErrParseFailure)
}

func TestLoadNilPointer(t *testing.T) {
	t.Parallel()

	var cfg *testConfig
	assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
}
