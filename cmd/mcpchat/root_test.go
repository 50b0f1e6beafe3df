package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m4xw311/mcpchat/config"
	"github.com/m4xw311/mcpchat/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFixtures writes a config selecting the mock model and an MCP servers
// file with no servers, and returns the config path.
func writeFixtures(t *testing.T) (cfgPath, sessionsDir string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	mcpPath := filepath.Join(dir, "servers.json")
	require.NoError(t, os.WriteFile(mcpPath, []byte(`{"mcpServers":{}}`), 0644))

	sessionsDir = filepath.Join(dir, "sessions")
	cfgPath = filepath.Join(dir, "config.yaml")
	yaml := "llm: mock\nmodel: none\nsessions_dir: " + sessionsDir + "\nmcp_config: " + mcpPath + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0644))
	return cfgPath, sessionsDir
}

func execute(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootHasSubcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "chat")
	assert.Contains(t, names, "serve")

	for _, flag := range []string{"config", "log-level", "env-file"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}

	chat, _, err := root.Find([]string{"chat"})
	require.NoError(t, err)
	assert.Equal(t, defaultConsoleMCPConfig, chat.Flags().Lookup("mcp-config").DefValue)

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "", serve.Flags().Lookup("mcp-config").DefValue)
}

func TestChatWithMockModel(t *testing.T) {
	cfgPath, _ := writeFixtures(t)

	out, err := execute(t, "\nhello\nQUIT\n", "chat", "--config", cfgPath, "--env-file", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Starting MCP Server...")
	assert.Contains(t, out, "MCP Server started successfully.")
	assert.Contains(t, out, "I am a mock LLM. You said: 'hello'.")
	assert.Contains(t, out, "Exiting chat...")
}

func TestChatSessionCanBeResumed(t *testing.T) {
	cfgPath, sessionsDir := writeFixtures(t)

	_, err := execute(t, "remember me\nexit\n", "chat", "--config", cfgPath, "--session", "demo")
	require.NoError(t, err)

	tr, err := session.Load(sessionsDir, "demo")
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Len())

	out, err := execute(t, "exit\n", "chat", "--config", cfgPath, "--resume", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "remember me")
	assert.Contains(t, out, "I am a mock LLM. You said: 'remember me'.")
}

func TestChatResumeUnknownSession(t *testing.T) {
	cfgPath, _ := writeFixtures(t)

	_, err := execute(t, "", "chat", "--config", cfgPath, "--resume", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error resuming session 'missing'")
}

func TestChatFailsWithoutMCPConfig(t *testing.T) {
	cfgPath, _ := writeFixtures(t)

	out, err := execute(t, "", "chat", "--config", cfgPath, "--mcp-config", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, out, "Failed to initialize agent:")
}

func TestSetupAppliesLogLevel(t *testing.T) {
	cfgPath, _ := writeFixtures(t)

	g := &globalFlags{configFile: cfgPath, logLevel: "debug"}
	cfg, logger, err := g.setup()
	require.NoError(t, err)
	defer logger.Close()
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "mock", cfg.LLMClient)
	assert.Equal(t, config.DefaultWebAddr, cfg.Web.Addr)
}

func TestDisplayAddr(t *testing.T) {
	assert.Equal(t, "localhost:8501", displayAddr(":8501"))
	assert.Equal(t, "127.0.0.1:9000", displayAddr("127.0.0.1:9000"))
}
