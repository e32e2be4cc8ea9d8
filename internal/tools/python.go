package tools

import (
	"context"

	"github.com/careerforge/careerforge/internal/sandbox"
)

// PythonToolName is the function name the Executor agent calls.
const PythonToolName = "execute_python_code"

// Runner is the sandbox capability the Python tool needs.
type Runner interface {
	ExecuteAs(ctx context.Context, agent, code string) sandbox.Result
}

// PythonTool runs code through the sandbox and returns the flattened result.
type PythonTool struct {
	runner Runner
	agent  string
}

// NewPythonTool creates the code execution tool. agent is recorded on every
// policy check.
func NewPythonTool(runner Runner, agent string) *PythonTool {
	return &PythonTool{runner: runner, agent: agent}
}

func (t *PythonTool) Name() string {
	return PythonToolName
}

func (t *PythonTool) Description() string {
	return "Executes the given Python code and returns the output (stdout) or error (stderr)."
}

func (t *PythonTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "The Python source code to run",
			},
		},
		"required": []string{"code"},
	}
}

// Execute never returns an error; failures come back as "Error..." text so the
// model can relay them.
func (t *PythonTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	code := GetString(params, "code", "")
	if code == "" {
		return "Error: code is required", nil
	}
	return t.runner.ExecuteAs(ctx, t.agent, code).String(), nil
}
