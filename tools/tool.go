// Package tools implements the agent's callable-action catalogue: a
// registry of named Tools plus two concrete tools: send_message_to_user,
// which every registry is seeded with, and the generic HTTP RequestTool.
package tools

import (
	"context"
	"fmt"
)

// Parameter describes one JSON-schema-shaped tool parameter.
type Parameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Default     any
	Enum        []string
}

// Info is the metadata a Tool exposes to the LLM's function-calling catalogue.
type Info struct {
	Name        string
	Description string
	Parameters  []Parameter
}

// Result is what a Tool.Execute call returns to the caller.
type Result struct {
	Success bool
	Content string
	Output  map[string]any
	Error   string
}

// Tool is anything an agent can invoke by name with a set of arguments.
type Tool interface {
	Info() Info
	Execute(ctx context.Context, args map[string]any) (Result, error)
}

// ToolExecutionError wraps a failure raised while running a Tool, keeping
// the offending tool name and arguments for diagnostics.
type ToolExecutionError struct {
	ToolName string
	Args     map[string]any
	Err      error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tools: executing %q: %v", e.ToolName, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// DuplicateToolNameError is raised when two tools register under the same
// name in one Registry.
type DuplicateToolNameError struct {
	Name string
}

func (e *DuplicateToolNameError) Error() string {
	return fmt.Sprintf("tools: duplicate tool name %q", e.Name)
}

// ToDefinition converts Info into the llms.ToolDefinition JSON-schema shape.
func (i Info) ToDefinition() map[string]any {
	properties := map[string]any{}
	var required []string
	for _, p := range i.Parameters {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}
