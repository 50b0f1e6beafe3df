package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Tool defines the interface for any action the agent can take.
type Tool interface {
	// Name is the name the model calls the tool by.
	Name() string
	Description() string
	// Parameters is the JSON schema of the tool's arguments, as a decoded
	// object. It may be nil.
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Qualified is implemented by tools that belong to a named server. Their
// qualified name "<server>.<tool>" is what disallow patterns match against.
type Qualified interface {
	QualifiedName() string
}

// Registry holds the tools offered to the model.
type Registry struct {
	tools      map[string]Tool
	disallowed []string
}

// NewRegistry creates an empty registry. Tools whose name or qualified name
// matches one of the disallowed glob patterns are refused by Register.
func NewRegistry(disallowed []string) (*Registry, error) {
	for _, pattern := range disallowed {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid disallowed tool pattern '%s'", pattern)
		}
	}
	return &Registry{
		tools:      make(map[string]Tool),
		disallowed: disallowed,
	}, nil
}

// Register adds t unless it is disallowed. It reports whether t was added.
// A later tool with the same name replaces the earlier one.
func (r *Registry) Register(t Tool) bool {
	if r.isDisallowed(t) {
		return false
	}
	r.tools[t.Name()] = t
	return true
}

func (r *Registry) GetTool(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns the registered tools sorted by name.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (r *Registry) isDisallowed(t Tool) bool {
	names := []string{t.Name()}
	if q, ok := t.(Qualified); ok {
		names = append(names, q.QualifiedName())
	}
	for _, pattern := range r.disallowed {
		for _, name := range names {
			// Patterns were validated in NewRegistry.
			if match, _ := doublestar.Match(pattern, name); match {
				return true
			}
		}
	}
	return false
}
