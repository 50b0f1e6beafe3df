package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m4xw311/mcpchat/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mcpchat.log")

	l, err := New(config.Log{Level: "info", File: path})
	require.NoError(t, err)
	l.Info().Str("session", "abc").Msg("session ready")
	l.Debug().Msg("hidden at info level")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session":"abc"`)
	assert.Contains(t, string(data), "session ready")
	assert.NotContains(t, string(data), "hidden at info level")
}

func TestNewFallsBackToWarn(t *testing.T) {
	l, err := New(config.Log{Level: "loud"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, l.GetLevel())
	assert.NoError(t, l.Close())
}
