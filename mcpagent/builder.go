package mcpagent

import (
	"context"
	"strings"

	"github.com/m4xw311/mcpchat/agent"
	"github.com/m4xw311/mcpchat/config"
	"github.com/m4xw311/mcpchat/errors"
	"github.com/m4xw311/mcpchat/llm"
	"github.com/m4xw311/mcpchat/session"
	"github.com/m4xw311/mcpchat/tools/mcp"
	"github.com/rs/zerolog"
)

type buildOptions struct {
	history []session.Turn
}

type BuildOption func(*buildOptions)

// WithHistory seeds the agent's memory with turns from an earlier
// conversation.
func WithHistory(turns []session.Turn) BuildOption {
	return func(o *buildOptions) { o.history = turns }
}

// NewBuilder returns the BuildFunc that wires a protocol client, a model
// client and an Agent from cfg. An empty cfg.MCPConfig yields a client with
// no servers. The protocol client is connected on the first query.
func NewBuilder(cfg *config.Config, log zerolog.Logger, opts ...BuildOption) agent.BuildFunc {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	return func(ctx context.Context) (*agent.Handle, error) {
		client, err := newMCPClient(cfg.MCPConfig, log)
		if err != nil {
			return nil, err
		}

		model, err := llm.New(ctx, cfg.LLMClient, cfg.Model)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create %s client", cfg.LLMClient)
		}

		a, err := New(model, client, Options{
			MaxSteps:        cfg.MaxSteps,
			MemoryEnabled:   cfg.MemoryEnabled,
			History:         messagesFromTurns(bo.history),
			SystemPrompt:    cfg.SystemPrompt,
			DisallowedTools: cfg.DisallowedTools,
			Logger:          log.With().Str("component", "mcpagent").Logger(),
		})
		if err != nil {
			return nil, err
		}
		return &agent.Handle{Agent: a, Conn: client}, nil
	}
}

func newMCPClient(path string, log zerolog.Logger) (*mcp.Client, error) {
	opts := []mcp.Option{
		mcp.WithLogger(log.With().Str("component", "mcp").Logger()),
		mcp.WithStderr(stderrLog{log: log.With().Str("component", "mcp-server").Logger()}),
	}
	if path == "" {
		return mcp.NewClient(opts...), nil
	}
	return mcp.FromConfigFile(path, opts...)
}

func messagesFromTurns(turns []session.Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		role := llm.RoleUser
		if turn.Role == session.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Text})
	}
	return messages
}

// stderrLog logs server subprocess stderr at debug level, one event per
// line, so it stays out of the console conversation.
type stderrLog struct {
	log zerolog.Logger
}

func (w stderrLog) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			w.log.Debug().Msg(line)
		}
	}
	return len(p), nil
}
