package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	l, err := New("warn", false)
	require.NoError(t, err)
	assert.True(t, l.Desugar().Core().Enabled(zapcore.WarnLevel))
	assert.False(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))

	_, err = New("loud", false)
	assert.Error(t, err)
}

func TestNew_Development(t *testing.T) {
	l, err := New("DEBUG", true)
	require.NoError(t, err)
	assert.True(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
}
