package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves the test into dir and isolates HOME so user-level config on the
// machine running the tests cannot leak in.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "groq", cfg.LLMClient)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Model)
	assert.Equal(t, 15, cfg.MaxSteps)
	assert.True(t, cfg.MemoryEnabled)
	assert.Equal(t, time.Duration(0), cfg.TurnTimeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ":8501", cfg.Web.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Web.IdleTimeout)
	assert.Equal(t, 64, cfg.Web.MaxSessions)
}

func TestLoadConfigLayering(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	home := os.Getenv("HOME")
	writeFile(t, filepath.Join(home, DirName, "config.yaml"), "llm: openai\nmodel: gpt-4o-mini\nmax_steps: 5\n")
	writeFile(t, filepath.Join(dir, DirName, "config.yaml"), "model: gpt-4o\nmemory_enabled: false\nturn_timeout: 45s\n")

	explicit := filepath.Join(dir, "override.yaml")
	writeFile(t, explicit, "disallowed_tools: [\"browser.*\"]\nweb:\n  addr: \":9000\"\n  max_sessions: 4\n")

	cfg, err := LoadConfig(explicit)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLMClient)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, 5, cfg.MaxSteps)
	assert.False(t, cfg.MemoryEnabled)
	assert.Equal(t, 45*time.Second, cfg.TurnTimeout)
	assert.Equal(t, []string{"browser.*"}, cfg.DisallowedTools)
	assert.Equal(t, ":9000", cfg.Web.Addr)
	assert.Equal(t, DefaultWebTitle, cfg.Web.Title)
	assert.Equal(t, 4, cfg.Web.MaxSessions)
	assert.Equal(t, DefaultWebIdleTimeout, cfg.Web.IdleTimeout)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	explicit := filepath.Join(dir, "bad.yaml")
	writeFile(t, explicit, "max_steps: 0\n")

	_, err := LoadConfig(explicit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_steps")

	writeFile(t, explicit, "web:\n  max_sessions: -1\n")
	_, err = LoadConfig(explicit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "web.max_sessions")

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	t.Setenv("MCPCHAT_PRESET", "from-env")
	writeFile(t, filepath.Join(dir, ".env"), "GROQ_API_KEY=gsk_test\nMCPCHAT_PRESET=from-file\n")
	t.Cleanup(func() { _ = os.Unsetenv("GROQ_API_KEY") })

	require.NoError(t, LoadEnv())
	assert.Equal(t, "gsk_test", os.Getenv("GROQ_API_KEY"))
	assert.Equal(t, "from-env", os.Getenv("MCPCHAT_PRESET"))

	require.NoError(t, LoadEnv(filepath.Join(dir, "absent.env")))
}
