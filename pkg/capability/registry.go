package capability

import (
	"fmt"
	"log/slog"
	"strings"
)

// Registry holds the registered capabilities for one process. Kind A
// actions are keyed "namespace/name"; tools and agents by name.
type Registry struct {
	logger  *slog.Logger
	actions map[string]Action
	tools   map[string]*ToolDefinition
	agents  map[string]*AgentDefinition
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:  logger,
		actions: make(map[string]Action),
		tools:   make(map[string]*ToolDefinition),
		agents:  make(map[string]*AgentDefinition),
	}
}

// RegisterAction registers a direct action under "namespace/name".
func (r *Registry) RegisterAction(identifier string, action Action) error {
	if strings.Count(identifier, "/") != 1 {
		return fmt.Errorf("action identifier %q must be namespace/name", identifier)
	}

	r.actions[identifier] = action
	r.logger.Debug("Registered action", "identifier", identifier)

	return nil
}

// RegisterTool registers a composed multi-action tool.
func (r *Registry) RegisterTool(tool *ToolDefinition) error {
	if err := tool.validate(r); err != nil {
		return err
	}

	r.tools[tool.Name] = tool
	r.logger.Debug("Registered tool", "name", tool.Name)

	return nil
}

// RegisterAgent registers an LLM-driven agent tool.
func (r *Registry) RegisterAgent(agent *AgentDefinition) error {
	if agent.Name == "" {
		return fmt.Errorf("agent name is required")
	}

	r.agents[agent.Name] = agent
	r.logger.Debug("Registered agent", "name", agent.Name)

	return nil
}

// Action looks up a direct action.
func (r *Registry) Action(identifier string) (Action, bool) {
	action, ok := r.actions[identifier]

	return action, ok
}

// Tool looks up a composed tool.
func (r *Registry) Tool(name string) (*ToolDefinition, bool) {
	tool, ok := r.tools[name]

	return tool, ok
}

// Agent looks up an agent tool.
func (r *Registry) Agent(name string) (*AgentDefinition, bool) {
	agent, ok := r.agents[name]

	return agent, ok
}

// ActionIdentifiers returns the registered action identifiers, for
// diagnostics and CLI listings.
func (r *Registry) ActionIdentifiers() []string {
	identifiers := make([]string, 0, len(r.actions))
	for identifier := range r.actions {
		identifiers = append(identifiers, identifier)
	}

	return identifiers
}
