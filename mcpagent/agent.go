package mcpagent

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/m4xw311/mcpchat/errors"
	"github.com/m4xw311/mcpchat/llm"
	"github.com/m4xw311/mcpchat/tools"
	"github.com/rs/zerolog"
)

const DefaultMaxSteps = 15

// ToolSource supplies the tools offered to the model. Connect is called
// before the first query and must be safe to call again.
type ToolSource interface {
	Connect(ctx context.Context) error
	Tools() []tools.Tool
}

type Options struct {
	// MaxSteps bounds the model calls made for one query.
	MaxSteps int
	// MemoryEnabled sends earlier queries and answers along with each new
	// query.
	MemoryEnabled bool
	// History seeds the remembered exchanges, for a resumed conversation.
	// It is ignored unless MemoryEnabled is set.
	History      []llm.Message
	SystemPrompt string
	// DisallowedTools are glob patterns matched against tool names and
	// "<server>.<tool>" names. Matching tools are hidden from the model.
	DisallowedTools []string
	Logger          zerolog.Logger
}

// Agent answers queries by letting the model call tools from its source
// until it produces a plain reply.
type Agent struct {
	client llm.LLMClient
	source ToolSource
	opts   Options
	log    zerolog.Logger

	mu       sync.Mutex
	registry *tools.Registry
	history  []llm.Message
}

// New creates an agent. Invalid disallowed patterns are reported here.
func New(client llm.LLMClient, source ToolSource, opts Options) (*Agent, error) {
	if client == nil {
		return nil, errors.New("agent requires an llm client")
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	// Validate patterns up front; the registry itself is filled on connect.
	if _, err := tools.NewRegistry(opts.DisallowedTools); err != nil {
		return nil, err
	}
	a := &Agent{
		client: client,
		source: source,
		opts:   opts,
		log:    opts.Logger,
	}
	if opts.MemoryEnabled {
		a.history = slices.Clone(opts.History)
	}
	return a, nil
}

// Run answers query. Errors from the model or the tool source are returned;
// errors from individual tools are shown to the model instead.
func (a *Agent) Run(ctx context.Context, query string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.connect(ctx); err != nil {
		return "", err
	}

	var messages []llm.Message
	if a.opts.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.opts.SystemPrompt})
	}
	if a.opts.MemoryEnabled {
		messages = append(messages, a.history...)
	}
	userMsg := llm.Message{Role: llm.RoleUser, Content: query}
	messages = append(messages, userMsg)

	available := a.registry.Tools()
	for step := 1; step <= a.opts.MaxSteps; step++ {
		resp, err := a.client.Chat(ctx, messages, available)
		if err != nil {
			return "", err
		}
		messages = append(messages, *resp)

		if len(resp.ToolCalls) == 0 {
			a.remember(userMsg, resp.Content)
			return resp.Content, nil
		}

		for _, tc := range resp.ToolCalls {
			messages = append(messages, llm.Message{
				Role:      llm.RoleTool,
				Content:   a.execute(ctx, step, tc),
				ToolCalls: []llm.ToolCall{tc},
			})
		}
	}

	reply := fmt.Sprintf("Agent stopped after reaching the maximum number of steps (%d).", a.opts.MaxSteps)
	a.remember(userMsg, reply)
	return reply, nil
}

func (a *Agent) connect(ctx context.Context) error {
	if a.registry != nil {
		return nil
	}
	registry, err := tools.NewRegistry(a.opts.DisallowedTools)
	if err != nil {
		return err
	}
	if a.source != nil {
		if err := a.source.Connect(ctx); err != nil {
			return err
		}
		for _, t := range a.source.Tools() {
			if !registry.Register(t) {
				a.log.Debug().Str("tool", t.Name()).Msg("tool disallowed")
			}
		}
	}
	a.registry = registry
	a.log.Info().Int("tools", len(registry.Tools())).Msg("agent connected")
	return nil
}

func (a *Agent) execute(ctx context.Context, step int, tc llm.ToolCall) string {
	log := a.log.With().Int("step", step).Str("tool", tc.Name).Logger()

	tool, ok := a.registry.GetTool(tc.Name)
	if !ok {
		log.Warn().Msg("model requested an unavailable tool")
		return fmt.Sprintf("Error: tool '%s' is not available", tc.Name)
	}
	log.Debug().Interface("args", tc.Args).Msg("executing tool")
	result, err := tool.Execute(ctx, tc.Args)
	if err != nil {
		log.Warn().Err(err).Msg("tool failed")
		return fmt.Sprintf("Error executing tool '%s': %v", tc.Name, err)
	}
	return result
}

func (a *Agent) remember(userMsg llm.Message, reply string) {
	if !a.opts.MemoryEnabled {
		return
	}
	a.history = append(a.history, userMsg, llm.Message{Role: llm.RoleAssistant, Content: reply})
}

// History returns the remembered exchanges.
func (a *Agent) History() []llm.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.history)
}

