// Package policy decides whether a code snippet may be handed to the sandbox.
package policy

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	ModeAllow = "allow"
	ModeDeny  = "deny"
)

// DefaultDeniedModules is the module list used when deny mode is enabled
// without an explicit list.
var DefaultDeniedModules = []string{"os", "subprocess"}

// Context holds information about a pending code execution.
type Context struct {
	Agent string
	Tool  string
	Code  string
}

// Decision is the result of a policy evaluation.
type Decision struct {
	Allow  bool
	Reason string
	Module string // blocked module, when denied by import rule
	Ts     time.Time
}

// Engine evaluates whether a code execution should proceed.
type Engine interface {
	Evaluate(ctx Context) Decision
}

// ImportPolicy is the default engine. In allow mode every snippet passes.
// In deny mode snippets importing any of Modules are rejected.
type ImportPolicy struct {
	Mode    string
	Modules []string
}

// NewImportPolicy builds a policy from config values. Unknown modes fall back
// to allow; deny mode with no modules uses DefaultDeniedModules.
func NewImportPolicy(mode string, modules []string) *ImportPolicy {
	p := &ImportPolicy{Mode: ModeAllow}
	if strings.EqualFold(strings.TrimSpace(mode), ModeDeny) {
		p.Mode = ModeDeny
	}
	for _, m := range modules {
		if m = strings.TrimSpace(m); m != "" {
			p.Modules = append(p.Modules, m)
		}
	}
	if p.Mode == ModeDeny && len(p.Modules) == 0 {
		p.Modules = append([]string(nil), DefaultDeniedModules...)
	}
	return p
}

// Evaluate checks the snippet's imports against the policy.
func (p *ImportPolicy) Evaluate(ctx Context) Decision {
	d := Decision{Ts: time.Now()}

	if p == nil || p.Mode != ModeDeny {
		d.Allow = true
		d.Reason = "allow_mode"
		return d
	}

	denied := make(map[string]bool, len(p.Modules))
	for _, m := range p.Modules {
		denied[m] = true
	}
	for _, mod := range ImportedModules(ctx.Code) {
		if denied[mod] {
			d.Allow = false
			d.Module = mod
			d.Reason = fmt.Sprintf("import_denied: %s", mod)
			return d
		}
	}

	d.Allow = true
	d.Reason = "no_denied_imports"
	return d
}

var (
	importLine   = regexp.MustCompile(`^\s*import\s+(.+)$`)
	fromLine     = regexp.MustCompile(`^\s*from\s+([A-Za-z_][\w.]*)\s+import\b`)
	dynamicCall  = regexp.MustCompile(`(?:__import__|import_module)\(\s*['"]([A-Za-z_][\w.]*)['"]`)
	trailingNote = regexp.MustCompile(`\s*#.*$`)
)

// ImportedModules returns the top-level module names a Python snippet imports,
// in order of first appearance. Only static import statements and literal
// __import__/import_module calls are recognised.
func ImportedModules(code string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(name string) {
		name = strings.TrimSpace(name)
		if i := strings.IndexByte(name, '.'); i >= 0 {
			name = name[:i]
		}
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}

	for _, raw := range strings.Split(code, "\n") {
		for _, stmt := range strings.Split(raw, ";") {
			stmt = trailingNote.ReplaceAllString(stmt, "")
			if m := fromLine.FindStringSubmatch(stmt); m != nil {
				add(m[1])
				continue
			}
			if m := importLine.FindStringSubmatch(stmt); m != nil {
				for _, part := range strings.Split(m[1], ",") {
					fields := strings.Fields(part)
					if len(fields) > 0 {
						add(fields[0])
					}
				}
			}
		}
		for _, m := range dynamicCall.FindAllStringSubmatch(raw, -1) {
			add(m[1])
		}
	}
	return out
}
