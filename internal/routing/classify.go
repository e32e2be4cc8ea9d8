package routing

import (
	"strings"

	"github.com/careerforge/careerforge/internal/agent"
)

// Route maps a keyword in the orchestrator's answer to a handler agent.
type Route struct {
	Keyword string
	Agent   string
}

// Routes is the classification table in priority order. An answer that
// mentions several handlers goes to the first listed.
var Routes = []Route{
	{Keyword: "MENTOR", Agent: agent.Mentor},
	{Keyword: "MANAGER", Agent: agent.Manager},
	{Keyword: "REVIEWER", Agent: agent.Reviewer},
	{Keyword: "EXECUTOR", Agent: agent.Executor},
	{Keyword: "ADVISOR", Agent: agent.Advisor},
}

// DefaultHandler receives anything the table does not match.
const DefaultHandler = agent.Mentor

// Classify returns the handler agent name for an orchestrator answer.
func Classify(text string) string {
	t := strings.ToUpper(strings.TrimSpace(text))
	for _, r := range Routes {
		if strings.Contains(t, r.Keyword) {
			return r.Agent
		}
	}
	return DefaultHandler
}

// HandlerID is the upper-case form reported to clients, e.g. "MENTOR".
func HandlerID(agentName string) string {
	return strings.ToUpper(agentName)
}
