package llm

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/m4xw311/mcpchat/errors"
	"github.com/m4xw311/mcpchat/tools"
)

// Message roles exchanged with the model.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of the conversation sent to the model. Tool results
// carry the call they answer as their single ToolCall.
type Message struct {
	Role      string
	Content   string
	ToolCalls []ToolCall
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ToolCallID string
	Name       string
	Args       map[string]any
}

// LLMClient is the interface for interacting with a Large Language Model.
type LLMClient interface {
	Chat(ctx context.Context, messages []Message, availableTools []tools.Tool) (*Message, error)
}

// New creates the client for the named provider.
func New(ctx context.Context, provider, model string) (LLMClient, error) {
	switch strings.ToLower(provider) {
	case "groq":
		return NewGroqLLMClient(ctx, model)
	case "gemini":
		return NewGeminiLLMClient(ctx, model)
	case "openai":
		return NewOpenAILLMClient(ctx, model)
	case "bedrock":
		return NewBedrockLLMClient(ctx, model)
	case "anthropic":
		return NewAnthropicLLMClient(ctx, model)
	case "mock":
		return &MockLLMClient{}, nil
	default:
		return nil, errors.New("unknown llm client '%s'", provider)
	}
}

// MockLLMClient parrots back the last user message. It never calls tools.
type MockLLMClient struct{}

func (m *MockLLMClient) Chat(ctx context.Context, messages []Message, availableTools []tools.Tool) (*Message, error) {
	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			last = messages[i].Content
			break
		}
	}
	return &Message{
		Role:    RoleAssistant,
		Content: fmt.Sprintf("I am a mock LLM. You said: '%s'.", last),
	}, nil
}

// toolSchema returns the tool's parameter schema, defaulting to an empty
// object schema.
func toolSchema(t tools.Tool) map[string]any {
	params := t.Parameters()
	if len(params) == 0 {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	if _, ok := params["type"]; ok {
		return params
	}
	schema := maps.Clone(params)
	schema["type"] = "object"
	return schema
}
