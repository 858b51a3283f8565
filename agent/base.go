// Package agent implements the per-name agent singleton: one Base instance
// per agent name shared by every caller in the process, so swapping its LLM
// engine takes effect everywhere at once.
package agent

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/kadirpekel/agentstep/aicontext"
	"github.com/kadirpekel/agentstep/llms"
)

var (
	registryMu sync.Mutex
	instances  = map[string]*Base{}
)

// MissingTemplateVariableError is raised when RenderUserPrompt is called
// without a value for every variable referenced in the user template.
type MissingTemplateVariableError struct {
	AgentName string
	Missing   []string
}

func (e *MissingTemplateVariableError) Error() string {
	return fmt.Sprintf("agent %q: missing template variables: %s", e.AgentName, strings.Join(e.Missing, ", "))
}

// Base is one named agent's prompt configuration and LLM engine. Base
// instances are singletons keyed by Name: the first Get call for a name
// wins, and later Get calls for the same name return the existing instance
// regardless of the prompts passed in (mirroring the corpus's "first
// construction initializes, later ones are no-ops" singleton rule).
type Base struct {
	mu sync.RWMutex

	Name         string
	llmEngine    llms.Client
	systemPrompt string
	userTemplate string
	templateVars map[string]struct{}
}

var templateVarRe = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

func discoverTemplateVars(template string) map[string]struct{} {
	vars := map[string]struct{}{}
	for _, m := range templateVarRe.FindAllStringSubmatch(template, -1) {
		vars[m[1]] = struct{}{}
	}
	return vars
}

// Get returns the singleton Base for name, constructing it with llmEngine,
// systemPrompt and userTemplate the first time name is seen.
func Get(name string, llmEngine llms.Client, systemPrompt, userTemplate string) *Base {
	registryMu.Lock()
	defer registryMu.Unlock()

	if b, ok := instances[name]; ok {
		return b
	}

	b := &Base{
		Name:         name,
		llmEngine:    llmEngine,
		systemPrompt: systemPrompt,
		userTemplate: userTemplate,
		templateVars: discoverTemplateVars(userTemplate),
	}
	instances[name] = b
	return b
}

// Reset clears the singleton registry. Exposed for tests that need a clean
// slate between agent constructions with the same name.
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	instances = map[string]*Base{}
}

// SystemPrompt returns the agent's current system prompt.
func (b *Base) SystemPrompt() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.systemPrompt
}

// UpdateSystemPrompt replaces the agent's system prompt.
func (b *Base) UpdateSystemPrompt(prompt string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.systemPrompt = prompt
}

// UpdateUserTemplate replaces the agent's user prompt template and
// re-discovers its required variables.
func (b *Base) UpdateUserTemplate(template string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userTemplate = template
	b.templateVars = discoverTemplateVars(template)
}

// RenderUserPrompt substitutes vars into the user template, returning
// MissingTemplateVariableError if any referenced variable is absent.
func (b *Base) RenderUserPrompt(vars map[string]string) (string, error) {
	b.mu.RLock()
	template := b.userTemplate
	required := b.templateVars
	b.mu.RUnlock()

	var missing []string
	for name := range required {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", &MissingTemplateVariableError{AgentName: b.Name, Missing: missing}
	}

	rendered := templateVarRe.ReplaceAllStringFunc(template, func(match string) string {
		name := templateVarRe.FindStringSubmatch(match)[1]
		return vars[name]
	})
	return rendered, nil
}

// PrepareContext assembles the conversation a step sends to the LLM: when
// convo is nil a fresh AIContext is created and seeded with the system
// prompt, and the user prompt rendered from vars is appended either way.
// Callers hand the result's ToWireFormat() to the engine.
func (b *Base) PrepareContext(convo *aicontext.Context, vars map[string]string) (*aicontext.Context, error) {
	rendered, err := b.RenderUserPrompt(vars)
	if err != nil {
		return nil, err
	}
	if convo == nil {
		convo = aicontext.New()
		convo.AddSystemPrompt(b.SystemPrompt())
	}
	convo.AddUserPrompt(rendered)
	return convo, nil
}

// LLM returns the agent's current LLM engine.
func (b *Base) LLM() llms.Client {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.llmEngine
}

// UpdateLLM hot-swaps this agent's LLM engine.
func (b *Base) UpdateLLM(client llms.Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.llmEngine = client
}

// UpdateAllEngines swaps the LLM engine on every live agent singleton,
// used when an operator rotates credentials or switches models mid-process.
func UpdateAllEngines(client llms.Client) int {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, b := range instances {
		b.UpdateLLM(client)
	}
	return len(instances)
}
