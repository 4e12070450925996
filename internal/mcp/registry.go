package mcp

import "sync"

// Registry holds every tool, prompt, and resource manifoldmcp exposes over
// MCP — the manifest, module, rule, and record tools in cmd/manifoldmcp's
// wiring, plus whatever prompts and resources internal/content registers.
// Each section (tools, prompts, resources) keeps its own name-keyed map and
// registration-order slice so List*/Has* reproduce a stable wire order.
type Registry struct {
	mu            sync.RWMutex
	tools         map[string]Tool
	toolOrder     []string
	prompts       map[string]Prompt
	promptOrder   []string
	resources     map[string]Resource // keyed by URI
	resourceOrder []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]Tool),
		prompts:   make(map[string]Prompt),
		resources: make(map[string]Resource),
	}
}
