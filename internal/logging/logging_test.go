package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	for _, env := range []string{"development", "production"} {
		l, err := New("debug", env)
		require.NoError(t, err)
		require.True(t, l.Core().Enabled(zapcore.DebugLevel))
	}

	l, err := New("warn", "production")
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zapcore.InfoLevel))
	require.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestNewBadLevel(t *testing.T) {
	_, err := New("loud", "production")
	require.ErrorContains(t, err, "LOG_LEVEL")
}
