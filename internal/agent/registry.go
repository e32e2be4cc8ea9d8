// Package agent defines the fixed set of CareerForge agents and the runner
// that drives them against an LLM provider.
package agent

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/careerforge/careerforge/internal/tools"
)

// ErrUnknownAgent is returned by Resolve for names outside the fixed set.
var ErrUnknownAgent = errors.New("unknown agent")

// Agent names. Orchestrator classifies; the other five handle messages.
const (
	Orchestrator = "Orchestrator"
	Mentor       = "Mentor"
	Manager      = "Manager"
	Reviewer     = "Reviewer"
	Executor     = "Executor"
	Advisor      = "Advisor"
)

// Names lists every agent in registry order.
var Names = []string{Orchestrator, Mentor, Manager, Reviewer, Executor, Advisor}

// AgentConfig is one immutable agent definition.
type AgentConfig struct {
	Name         string
	SystemPrompt string
	Tool         tools.Tool // only the Executor binds one
}

// Tools returns a registry holding the bound tool, or nil.
func (c *AgentConfig) Tools() *tools.Registry {
	if c.Tool == nil {
		return nil
	}
	return tools.NewRegistry(c.Tool)
}

// Registry holds the six agent configs. It has no mutation API.
type Registry struct {
	agents map[string]*AgentConfig
}

// NewRegistry builds the registry from the default prompts, applying any
// overrides keyed by agent name (case-insensitive). executorTool is bound to
// the Executor and may be nil.
func NewRegistry(overrides map[string]string, executorTool tools.Tool) (*Registry, error) {
	prompts := make(map[string]string, len(defaultPrompts))
	for name, p := range defaultPrompts {
		prompts[name] = p
	}
	for name, p := range overrides {
		canonical, ok := canonicalName(name)
		if !ok {
			return nil, fmt.Errorf("prompt override: %w: %q", ErrUnknownAgent, name)
		}
		if strings.TrimSpace(p) == "" {
			continue
		}
		prompts[canonical] = strings.TrimSpace(p)
	}

	r := &Registry{agents: make(map[string]*AgentConfig, len(Names))}
	for _, name := range Names {
		cfg := &AgentConfig{Name: name, SystemPrompt: prompts[name]}
		if name == Executor {
			cfg.Tool = executorTool
		}
		r.agents[strings.ToLower(name)] = cfg
	}
	return r, nil
}

// Resolve returns the config for name, matched case-insensitively.
func (r *Registry) Resolve(name string) (*AgentConfig, error) {
	cfg, ok := r.agents[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, name)
	}
	return cfg, nil
}

// MustResolve is Resolve for names known at compile time.
func (r *Registry) MustResolve(name string) *AgentConfig {
	cfg, err := r.Resolve(name)
	if err != nil {
		panic(err)
	}
	return cfg
}

func canonicalName(name string) (string, bool) {
	for _, n := range Names {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return n, true
		}
	}
	return "", false
}

// LoadPrompts reads a YAML mapping of agent name to system prompt.
func LoadPrompts(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	var prompts map[string]string
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("parse prompts file %s: %w", path, err)
	}
	var unknown []string
	for name := range prompts {
		if _, ok := canonicalName(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("prompts file %s: %w: %s", path, ErrUnknownAgent, strings.Join(unknown, ", "))
	}
	return prompts, nil
}
