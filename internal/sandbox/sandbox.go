// Package sandbox runs untrusted code snippets in a short-lived interpreter
// process with a hard wall-clock limit.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/careerforge/careerforge/internal/policy"
)

const (
	// DefaultInterpreter is invoked as `<interpreter> -c <code>`.
	DefaultInterpreter = "python3"
	// DefaultTimeout bounds every execution.
	DefaultTimeout = 10 * time.Second

	failurePrefix = "Error:"
	waitDelay     = 500 * time.Millisecond
)

// Result is the outcome of one execution. Timeouts and crashes are reported
// here as values; Execute never returns an error.
type Result struct {
	Stdout      string
	Stderr      string
	Failed      bool
	TimedOut    bool
	ErrorDetail string

	limit       time.Duration
	startFailed bool
	denied      string
}

// String flattens the result into the single text form handed back to the
// model and to HTTP callers.
func (r Result) String() string {
	switch {
	case r.denied != "":
		return failurePrefix + " " + r.denied
	case r.TimedOut:
		limit := r.limit
		if limit <= 0 {
			limit = DefaultTimeout
		}
		return fmt.Sprintf("Error: Execution timed out (%s limit).", formatLimit(limit))
	case r.startFailed:
		return "Error executing code: " + r.ErrorDetail
	}
	out := r.Stdout
	if r.Stderr != "" {
		out += "\nError:\n" + r.Stderr
	}
	return strings.TrimSpace(out)
}

// IsFailureText reports whether a flattened result signals failure.
func IsFailureText(s string) bool {
	return strings.HasPrefix(s, failurePrefix)
}

func formatLimit(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return d.String()
}

// Executor runs snippets. The zero value is not usable; call New.
type Executor struct {
	interpreter string
	timeout     time.Duration
	policy      policy.Engine
}

// New returns an Executor. Empty interpreter and non-positive timeout fall
// back to the defaults. A nil policy allows everything.
func New(interpreter string, timeout time.Duration, pol policy.Engine) *Executor {
	if strings.TrimSpace(interpreter) == "" {
		interpreter = DefaultInterpreter
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{interpreter: interpreter, timeout: timeout, policy: pol}
}

// Execute runs code once. It is safe for concurrent use.
func (e *Executor) Execute(ctx context.Context, code string) Result {
	return e.ExecuteAs(ctx, "", code)
}

// ExecuteAs is Execute with the requesting agent recorded for the policy check.
func (e *Executor) ExecuteAs(ctx context.Context, agent, code string) Result {
	res := Result{limit: e.timeout}

	if e.policy != nil {
		d := e.policy.Evaluate(policy.Context{Agent: agent, Tool: "sandbox", Code: code})
		if !d.Allow {
			slog.Warn("Sandbox execution denied", "agent", agent, "reason", d.Reason)
			res.Failed = true
			res.ErrorDetail = d.Reason
			res.denied = fmt.Sprintf("Import of module %q is not allowed in the sandbox.", d.Module)
			if d.Module == "" {
				res.denied = "Execution denied by sandbox policy: " + d.Reason
			}
			return res
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.interpreter, "-c", code)
	setProcAttr(cmd)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		res.Failed = true
		res.startFailed = true
		res.ErrorDetail = err.Error()
		return res
	}
	err := cmd.Wait()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		slog.Warn("Sandbox execution timed out", "agent", agent, "limit", e.timeout)
		res.Failed = true
		res.TimedOut = true
		res.ErrorDetail = "timeout"
		return res
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if res.Stderr != "" {
		res.Failed = true
		res.ErrorDetail = res.Stderr
	}
	if err != nil {
		res.Failed = true
		if res.ErrorDetail == "" {
			res.ErrorDetail = err.Error()
		}
	}
	slog.Debug("Sandbox execution finished", "agent", agent, "failed", res.Failed, "elapsed", time.Since(start))
	return res
}
