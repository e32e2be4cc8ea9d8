package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type stubTool struct{ name string }

func (s stubTool) Name() string               { return s.name }
func (s stubTool) Description() string        { return "stub" }
func (s stubTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (s stubTool) Execute(_ context.Context, params map[string]any) (string, error) {
	return "ran " + s.name, nil
}

func TestRegistryResolve(t *testing.T) {
	reg, err := NewRegistry(nil, stubTool{name: "execute_python_code"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	for _, name := range Names {
		cfg, err := reg.Resolve(strings.ToUpper(name))
		if err != nil {
			t.Fatalf("Resolve(%s): %v", name, err)
		}
		if cfg.Name != name {
			t.Errorf("Resolve(%s) returned %s", name, cfg.Name)
		}
		if cfg.SystemPrompt == "" {
			t.Errorf("%s has empty prompt", name)
		}
		if (cfg.Tool != nil) != (name == Executor) {
			t.Errorf("%s tool binding = %v", name, cfg.Tool != nil)
		}
	}

	if _, err := reg.Resolve("Planner"); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestRegistryExecutorToolsRegistry(t *testing.T) {
	reg, _ := NewRegistry(nil, stubTool{name: "execute_python_code"})
	if reg.MustResolve(Executor).Tools().Len() != 1 {
		t.Fatal("executor should expose one tool")
	}
	if reg.MustResolve(Mentor).Tools() != nil {
		t.Fatal("mentor should expose no tools")
	}
}

func TestRegistryPromptOverrides(t *testing.T) {
	reg, err := NewRegistry(map[string]string{"mentor": "  Be brief.  ", "Advisor": ""}, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if got := reg.MustResolve(Mentor).SystemPrompt; got != "Be brief." {
		t.Errorf("override not applied: %q", got)
	}
	if got := reg.MustResolve(Advisor).SystemPrompt; !strings.Contains(got, "Advisor") {
		t.Errorf("empty override should keep default, got %q", got)
	}

	if _, err := NewRegistry(map[string]string{"Planner": "x"}, nil); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent for unknown override, got %v", err)
	}
}

func TestOrchestratorPromptNamesEveryHandler(t *testing.T) {
	p := defaultPrompts[Orchestrator]
	for _, name := range []string{"MENTOR", "MANAGER", "REVIEWER", "EXECUTOR", "ADVISOR"} {
		if !strings.Contains(p, name) {
			t.Errorf("orchestrator prompt missing %s", name)
		}
	}
}

func TestLoadPrompts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	content := "Mentor: |\n  Explain with a cooking analogy.\nreviewer: Only say APPROVED.\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write prompts: %v", err)
	}

	prompts, err := LoadPrompts(path)
	if err != nil {
		t.Fatalf("LoadPrompts: %v", err)
	}
	reg, err := NewRegistry(prompts, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if got := reg.MustResolve(Mentor).SystemPrompt; got != "Explain with a cooking analogy." {
		t.Errorf("unexpected mentor prompt %q", got)
	}
	if got := reg.MustResolve(Reviewer).SystemPrompt; got != "Only say APPROVED." {
		t.Errorf("unexpected reviewer prompt %q", got)
	}
}

func TestLoadPromptsRejectsUnknownNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	if err := os.WriteFile(path, []byte("Mentor: ok\nPlanner: nope\n"), 0o600); err != nil {
		t.Fatalf("write prompts: %v", err)
	}
	_, err := LoadPrompts(path)
	if !errors.Is(err, ErrUnknownAgent) || !strings.Contains(err.Error(), "Planner") {
		t.Fatalf("expected unknown agent error naming Planner, got %v", err)
	}
}

func TestLoadPromptsMissingFile(t *testing.T) {
	if _, err := LoadPrompts(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
