package tools

import (
	"context"

	"github.com/kadirpekel/agentstep/registry"
)

// Registry holds the set of Tools available to an agent, always seeded with
// send_message_to_user so every agent can address the user even with no
// other tools configured.
type Registry struct {
	base *registry.BaseRegistry[Tool]
}

// NewRegistry returns a Registry pre-populated with SendMessageToUser.
func NewRegistry() *Registry {
	r := &Registry{base: registry.NewBaseRegistry[Tool]()}
	_ = r.base.Register("send_message_to_user", NewSendMessageToUser())
	return r
}

// Register adds a tool, returning DuplicateToolNameError if the name is taken.
func (r *Registry) Register(t Tool) error {
	name := t.Info().Name
	if err := r.base.Register(name, t); err != nil {
		return &DuplicateToolNameError{Name: name}
	}
	return nil
}

// WithTools returns a copy of the registry with per-request tools added on
// top of the registered set, failing with DuplicateToolNameError when an
// extra's name collides with a registered tool or repeats within extras.
// The receiver is left untouched, so one base registry serves many
// concurrent requests.
func (r *Registry) WithTools(extras []Tool) (*Registry, error) {
	clone := &Registry{base: registry.NewBaseRegistry[Tool]()}
	for _, name := range r.base.List() {
		if t, ok := r.base.Get(name); ok {
			_ = clone.base.Register(name, t)
		}
	}
	for _, t := range extras {
		if err := clone.Register(t); err != nil {
			return nil, err
		}
	}
	return clone, nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	return r.base.Get(name)
}

// List returns the Info of every registered tool, for building the
// function-calling catalogue sent with an LLM request.
func (r *Registry) List() []Info {
	names := r.base.List()
	infos := make([]Info, 0, len(names))
	for _, name := range names {
		if t, ok := r.base.Get(name); ok {
			infos = append(infos, t.Info())
		}
	}
	return infos
}

// Execute runs the named tool with args, wrapping any failure in
// ToolExecutionError.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (Result, error) {
	t, ok := r.base.Get(name)
	if !ok {
		return Result{}, &ToolExecutionError{ToolName: name, Args: args, Err: errUnknownTool(name)}
	}
	res, err := t.Execute(ctx, args)
	if err != nil {
		return Result{}, &ToolExecutionError{ToolName: name, Args: args, Err: err}
	}
	return res, nil
}

type unknownToolError string

func (e unknownToolError) Error() string { return "unknown tool: " + string(e) }

func errUnknownTool(name string) error { return unknownToolError(name) }
