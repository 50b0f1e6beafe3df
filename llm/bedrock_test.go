package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/m4xw311/mcpchat/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockTool is a simple mock tool for testing
type MockTool struct {
	name        string
	description string
	params      map[string]any
}

func (m *MockTool) Name() string {
	return m.name
}

func (m *MockTool) Description() string {
	return m.description
}

func (m *MockTool) Parameters() map[string]any {
	return m.params
}

func (m *MockTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return "mock result", nil
}

func TestConvertMessagesToAnthropicFormat(t *testing.T) {
	// Test user message
	result, system := convertMessagesToAnthropicFormat([]Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "Hello, world!"},
	})
	require.Len(t, result, 1)
	assert.Equal(t, "user", result[0]["role"])
	assert.Equal(t, "be brief", system)

	// Test assistant message with content
	result, _ = convertMessagesToAnthropicFormat([]Message{
		{Role: RoleAssistant, Content: "Hello! How can I help you?"},
	})
	require.Len(t, result, 1)
	assert.Equal(t, "assistant", result[0]["role"])

	// Test assistant message with tool calls
	result, _ = convertMessagesToAnthropicFormat([]Message{
		{
			Role: RoleAssistant,
			ToolCalls: []ToolCall{
				{ToolCallID: "call_1", Name: "test_tool", Args: map[string]any{"param1": "value1"}},
			},
		},
	})
	require.Len(t, result, 1)
	content := result[0]["content"].([]map[string]any)
	assert.Equal(t, "tool_use", content[0]["type"])
	assert.Equal(t, "call_1", content[0]["id"])

	// Test tool response message
	result, _ = convertMessagesToAnthropicFormat([]Message{
		{
			Role:      RoleTool,
			Content:   "Tool result",
			ToolCalls: []ToolCall{{ToolCallID: "call_1", Name: "test_tool"}},
		},
	})
	require.Len(t, result, 1)
	assert.Equal(t, "user", result[0]["role"])
}

func TestCreateAnthropicRequest(t *testing.T) {
	messages := []map[string]any{
		{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": "Hello!"},
			},
		},
	}

	// Test with no tools
	body, err := createAnthropicRequest(messages, "", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, body)

	// Test with tools
	ts := []tools.Tool{
		&MockTool{
			name:        "test_tool",
			description: "A test tool",
			params: map[string]any{
				"type":       "object",
				"properties": map[string]any{"url": map[string]any{"type": "string"}},
				"required":   []any{"url"},
			},
		},
	}

	body, err = createAnthropicRequest(messages, "system text", ts)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "system text", decoded["system"])
	tool := decoded["tools"].([]any)[0].(map[string]any)
	schema := tool["input_schema"].(map[string]any)
	assert.Equal(t, []any{"url"}, schema["required"])
}

func TestProcessBedrockResponse(t *testing.T) {
	body := []byte(`{"content":[{"type":"text","text":"checking "},{"type":"tool_use","id":"tu_1","name":"browser_navigate","input":{"url":"https://example.com"}}]}`)
	msg, err := processBedrockResponse(body, nil)
	require.NoError(t, err)
	assert.Equal(t, "checking ", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "tu_1", msg.ToolCalls[0].ToolCallID)
	assert.Equal(t, "https://example.com", msg.ToolCalls[0].Args["url"])

	_, err = processBedrockResponse([]byte(`{"error":"throttled"}`), nil)
	assert.Error(t, err)
}
