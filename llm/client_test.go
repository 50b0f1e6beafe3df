package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/m4xw311/mcpchat/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsProvider(t *testing.T) {
	c, err := New(context.Background(), "Mock", "")
	require.NoError(t, err)
	assert.IsType(t, &MockLLMClient{}, c)

	_, err = New(context.Background(), "nope", "")
	assert.ErrorContains(t, err, "unknown llm client 'nope'")

	t.Setenv("GROQ_API_KEY", "")
	_, err = New(context.Background(), "groq", testModel)
	assert.ErrorContains(t, err, "GROQ_API_KEY")
}

const testModel = "llama-3.1-8b-instant"

func TestMockEchoesLastUserMessage(t *testing.T) {
	msg, err := (&MockLLMClient{}).Chat(context.Background(), []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "second"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Equal(t, "I am a mock LLM. You said: 'second'.", msg.Content)
	assert.Empty(t, msg.ToolCalls)
}

func TestToolSchemaDefaults(t *testing.T) {
	empty := toolSchema(&MockTool{name: "a"})
	assert.Equal(t, "object", empty["type"])

	params := map[string]any{"properties": map[string]any{}}
	filled := toolSchema(&MockTool{name: "b", params: params})
	assert.Equal(t, "object", filled["type"])
	_, mutated := params["type"]
	assert.False(t, mutated)
}

func TestGroqChatRoundTrip(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "cmpl-1",
			"object": "chat.completion",
			"model": "llama-3.1-8b-instant",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_9",
						"type": "function",
						"function": {"name": "browser_navigate", "arguments": "{\"url\":\"https://go.dev\"}"}
					}]
				}
			}]
		}`)
	}))
	defer srv.Close()

	t.Setenv("GROQ_API_KEY", "test-key")
	t.Setenv("GROQ_BASE_URL", srv.URL)

	c, err := NewGroqLLMClient(context.Background(), testModel)
	require.NoError(t, err)

	msg, err := c.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "open go.dev"},
	}, []tools.Tool{&MockTool{name: "browser_navigate", description: "navigate"}})
	require.NoError(t, err)

	assert.Equal(t, testModel, got["model"])
	assert.Len(t, got["messages"], 2)
	assert.Len(t, got["tools"], 1)

	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "call_9", msg.ToolCalls[0].ToolCallID)
	assert.Equal(t, "browser_navigate", msg.ToolCalls[0].Name)
	assert.Equal(t, "https://go.dev", msg.ToolCalls[0].Args["url"])
}

func TestConvertMessagesToGroqToolResult(t *testing.T) {
	out := convertMessagesToGroq([]Message{
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ToolCallID: "c1", Name: "t", Args: map[string]any{"a": 1}}}},
		{Role: RoleTool, Content: "ok", ToolCalls: []ToolCall{{ToolCallID: "c1", Name: "t"}}},
		{Role: RoleTool, Content: "orphan"},
	})
	require.Len(t, out, 2)
	assert.Equal(t, `{"a":1}`, out[0].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "c1", out[1].ToolCallID)
}

func TestConvertMessagesToGeminiContent(t *testing.T) {
	contents, system := convertMessagesToGeminiContent([]Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{Name: "a"}, {Name: "b"}}},
		{Role: RoleTool, Content: "ra", ToolCalls: []ToolCall{{Name: "a"}}},
		{Role: RoleTool, Content: "rb", ToolCalls: []ToolCall{{Name: "b"}}},
	})
	assert.Equal(t, "sys", system)
	require.Len(t, contents, 3)
	assert.Equal(t, "model", contents[1].Role)
	assert.Len(t, contents[1].Parts, 2)
	assert.Equal(t, "user", contents[2].Role)
	assert.Len(t, contents[2].Parts, 2)
}

func TestConvertSchemaToGemini(t *testing.T) {
	s := convertSchemaToGemini(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url":  map[string]any{"type": "string", "description": "target"},
			"tabs": map[string]any{"type": "array"},
		},
		"required": []any{"url"},
	})
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, genai.TypeString, s.Properties["url"].Type)
	assert.Equal(t, "target", s.Properties["url"].Description)
	assert.NotNil(t, s.Properties["tabs"].Items)
	assert.Equal(t, []string{"url"}, s.Required)
}
