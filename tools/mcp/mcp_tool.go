package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m4xw311/mcpchat/errors"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool is a tool offered by one MCP server. It satisfies tools.Tool.
type Tool struct {
	serverName  string
	toolName    string
	description string
	params      map[string]any
	session     *serverSession
}

func newTool(s *serverSession, t *mcpsdk.Tool) *Tool {
	return &Tool{
		serverName:  s.name,
		toolName:    t.Name,
		description: t.Description,
		params:      schemaMap(t.InputSchema),
		session:     s,
	}
}

// schemaMap decodes an input schema into a plain JSON object.
func schemaMap(schema any) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// Name returns the tool's own name. Some providers reject separators, so
// the server name is left out.
func (t *Tool) Name() string {
	return t.toolName
}

// QualifiedName returns "<server>.<tool>".
func (t *Tool) QualifiedName() string {
	return fmt.Sprintf("%s.%s", t.serverName, t.toolName)
}

func (t *Tool) Description() string {
	return t.description
}

func (t *Tool) Parameters() map[string]any {
	return t.params
}

// Execute calls the tool on its server and returns the text content of the
// result.
func (t *Tool) Execute(ctx context.Context, args map[string]any) (string, error) {
	result, err := t.session.conn.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.toolName,
		Arguments: args,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to call tool '%s'", t.QualifiedName())
	}

	var sb strings.Builder
	for _, c := range result.Content {
		switch v := c.(type) {
		case *mcpsdk.TextContent:
			sb.WriteString(v.Text)
		default:
			fmt.Fprintf(&sb, "[%T]", v)
		}
	}
	if result.IsError {
		return "", errors.New("tool '%s' failed: %s", t.QualifiedName(), sb.String())
	}
	return sb.String(), nil
}
