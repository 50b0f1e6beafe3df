package llm

import (
	"context"
	"encoding/json"
	"os"

	"github.com/m4xw311/mcpchat/errors"
	"github.com/m4xw311/mcpchat/tools"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const defaultGroqBaseURL = "https://api.groq.com/openai/v1"

// GroqLLMClient talks to Groq's OpenAI compatible chat completion endpoint.
type GroqLLMClient struct {
	client *openai.Client
	model  string
}

// NewGroqLLMClient creates a new GroqLLMClient. It requires the GROQ_API_KEY
// environment variable to be set. GROQ_BASE_URL overrides the endpoint.
func NewGroqLLMClient(ctx context.Context, modelName string) (*GroqLLMClient, error) {
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		return nil, errors.New("GROQ_API_KEY environment variable not set")
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = defaultGroqBaseURL
	if baseURL := os.Getenv("GROQ_BASE_URL"); baseURL != "" {
		config.BaseURL = baseURL
	}

	return &GroqLLMClient{
		client: openai.NewClientWithConfig(config),
		model:  modelName,
	}, nil
}

// Chat sends a chat completion request to Groq.
func (g *GroqLLMClient) Chat(ctx context.Context, messages []Message, availableTools []tools.Tool) (*Message, error) {
	req := openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: convertMessagesToGroq(messages),
	}
	if groqTools := convertToolsToGroq(availableTools); len(groqTools) > 0 {
		req.Tools = groqTools
		req.ToolChoice = "auto"
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send message to Groq")
	}
	if len(resp.Choices) == 0 {
		return &Message{Role: RoleAssistant, Content: ""}, nil
	}
	return processGroqMessage(resp.Choices[0].Message)
}

func convertMessagesToGroq(messages []Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		out := openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
		switch msg.Role {
		case RoleTool:
			if len(msg.ToolCalls) != 1 {
				log.Warn().Int("tool_calls", len(msg.ToolCalls)).Msg("malformed tool message, expected exactly one ToolCall")
				continue
			}
			out.ToolCallID = msg.ToolCalls[0].ToolCallID
			out.Name = msg.ToolCalls[0].Name
		case RoleAssistant:
			for _, tc := range msg.ToolCalls {
				argsBytes, err := json.Marshal(tc.Args)
				if err != nil {
					log.Warn().Err(err).Str("tool", tc.Name).Msg("could not marshal tool call arguments, skipping")
					continue
				}
				out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
					ID:   tc.ToolCallID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(argsBytes),
					},
				})
			}
		}
		result = append(result, out)
	}
	return result
}

func convertToolsToGroq(ts []tools.Tool) []openai.Tool {
	result := make([]openai.Tool, 0, len(ts))
	for _, t := range ts {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  toolSchema(t),
			},
		})
	}
	return result
}

func processGroqMessage(msg openai.ChatCompletionMessage) (*Message, error) {
	out := &Message{Role: RoleAssistant, Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, errors.Wrapf(err, "failed to unmarshal function call arguments from Groq")
			}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ToolCallID: tc.ID,
			Name:       tc.Function.Name,
			Args:       args,
		})
	}
	return out, nil
}
