package logger

import (
	"testing"

	"github.com/dmi-project/dmi-gateway/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerByEnvironment(t *testing.T) {
	for _, env := range []string{"prod", "test", "dev", ""} {
		l, err := NewLogger(&config.Config{Environment: env})
		require.NoError(t, err, env)
		assert.NotNil(t, l, env)
	}
}

func TestGetLogger(t *testing.T) {
	logger = nil
	assert.Panics(t, func() { GetLogger() })

	l, err := InitLogger(&config.Config{Environment: "test"})
	require.NoError(t, err)
	assert.Same(t, l, GetLogger())
}
