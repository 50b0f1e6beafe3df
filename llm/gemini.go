package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"github.com/m4xw311/mcpchat/errors"
	"github.com/m4xw311/mcpchat/tools"
	"google.golang.org/api/option"
)

// GeminiLLMClient is a client for the Google Gemini API.
type GeminiLLMClient struct {
	model *genai.GenerativeModel
}

// NewGeminiLLMClient creates a new GeminiLLMClient.
// It requires the GEMINI_API_KEY environment variable to be set.
func NewGeminiLLMClient(ctx context.Context, modelName string) (*GeminiLLMClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create genai client")
	}

	return &GeminiLLMClient{
		model: client.GenerativeModel(modelName),
	}, nil
}

// Chat sends a chat request to the Gemini API. Function calls in the
// response are returned as ToolCalls for the caller to execute.
func (g *GeminiLLMClient) Chat(ctx context.Context, messages []Message, availableTools []tools.Tool) (*Message, error) {
	history, system := convertMessagesToGeminiContent(messages)
	if len(history) == 0 {
		return nil, errors.New("no messages to send to Gemini")
	}

	g.model.Tools = convertToolsToGeminiTools(availableTools)
	g.model.SystemInstruction = nil
	if system != "" {
		g.model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	// The last entry is the new prompt.
	last := history[len(history)-1]

	chatSession := g.model.StartChat()
	chatSession.History = history[:len(history)-1]
	resp, err := chatSession.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send message to Gemini")
	}

	return processGeminiResponse(resp)
}

// convertMessagesToGeminiContent converts our internal message format to
// Gemini's. System messages are returned separately as the system
// instruction; consecutive tool results are merged into one turn.
func convertMessagesToGeminiContent(messages []Message) ([]*genai.Content, string) {
	var contents []*genai.Content
	var system string
	lastWasTool := false

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = msg.Content
			continue
		case RoleTool:
			if len(msg.ToolCalls) == 0 {
				continue
			}
			part := genai.FunctionResponse{
				Name:     msg.ToolCalls[0].Name,
				Response: map[string]any{"result": msg.Content},
			}
			if lastWasTool {
				prev := contents[len(contents)-1]
				prev.Parts = append(prev.Parts, part)
			} else {
				contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{part}})
			}
			lastWasTool = true
			continue
		case RoleAssistant:
			var parts []genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: tc.Args})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: "model", Parts: parts})
			}
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		}
		lastWasTool = false
	}
	return contents, system
}

// convertToolsToGeminiTools converts our Tool interface to Gemini's FunctionDeclaration format.
func convertToolsToGeminiTools(ts []tools.Tool) []*genai.Tool {
	if len(ts) == 0 {
		return nil
	}
	var funcDecls []*genai.FunctionDeclaration
	for _, tool := range ts {
		funcDecls = append(funcDecls, &genai.FunctionDeclaration{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  convertSchemaToGemini(toolSchema(tool)),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: funcDecls}}
}

// convertSchemaToGemini maps a decoded JSON schema onto genai.Schema. Only
// the subset Gemini understands is carried over.
func convertSchemaToGemini(schema map[string]any) *genai.Schema {
	out := &genai.Schema{}
	switch schema["type"] {
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	default:
		out.Type = genai.TypeObject
	}
	if d, ok := schema["description"].(string); ok {
		out.Description = d
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = convertSchemaToGemini(items)
	}
	if props, ok := schema["properties"].(map[string]any); ok && len(props) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if ps, ok := p.(map[string]any); ok {
				out.Properties[name] = convertSchemaToGemini(ps)
			}
		}
	}
	out.Required = requiredFields(schema)
	if out.Type == genai.TypeArray && out.Items == nil {
		out.Items = &genai.Schema{Type: genai.TypeString}
	}
	return out
}

// processGeminiResponse converts a Gemini API response into our internal Message format.
func processGeminiResponse(resp *genai.GenerateContentResponse) (*Message, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("received an empty response from Gemini")
	}

	msg := &Message{Role: RoleAssistant}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			msg.Content += string(v)
		case genai.FunctionCall:
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				// Gemini does not issue call IDs.
				ToolCallID: fmt.Sprintf("call_%d_%s", len(msg.ToolCalls), v.Name),
				Name:       v.Name,
				Args:       v.Args,
			})
		default:
			return nil, errors.New("unsupported part type in Gemini response: %T", v)
		}
	}
	return msg, nil
}
