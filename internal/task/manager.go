// Package task generates coding tasks from a topic's learning context and
// reviews submissions against them.
package task

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/careerforge/careerforge/internal/agent"
	"github.com/careerforge/careerforge/internal/audit"
	"github.com/careerforge/careerforge/internal/session"
	"github.com/careerforge/careerforge/internal/store"
)

// ErrTopicRequired is returned by GenerateTask for an empty topic id.
var ErrTopicRequired = errors.New("topic_id is required")

// historyWindow is how many recent messages feed task generation.
const historyWindow = 10

// Generator runs an agent turn on a session.
type Generator interface {
	GenerateAsync(ctx context.Context, cfg *agent.AgentConfig, sessionID, message string) iter.Seq2[agent.TextChunk, error]
}

// SessionEnsurer creates a session if it is missing.
type SessionEnsurer interface {
	Ensure(key string) error
}

// Manager drives the task lifecycle through the Manager and Reviewer agents.
type Manager struct {
	store    store.Store
	sessions SessionEnsurer
	agents   *agent.Registry
	gen      Generator
	audit    *audit.Logger
}

// NewManager wires a Manager. auditLog may be nil.
func NewManager(st store.Store, sessions SessionEnsurer, agents *agent.Registry, gen Generator, auditLog *audit.Logger) *Manager {
	return &Manager{store: st, sessions: sessions, agents: agents, gen: gen, audit: auditLog}
}

// GenerateTask asks the Manager agent for a new task based on the topic's
// title, recent history and earlier tasks, and stores it as Pending.
func (m *Manager) GenerateTask(ctx context.Context, topicID string) (*store.Task, error) {
	topicID = strings.TrimSpace(topicID)
	if topicID == "" {
		return nil, ErrTopicRequired
	}

	learning, err := m.learningContext(topicID)
	if err != nil {
		return nil, err
	}
	response, err := m.run(ctx, agent.Manager, topicID, generatePrompt(learning))
	if err != nil {
		return nil, err
	}

	title, description := ParseTask(response)
	t := store.Task{
		ID:          uuid.NewString(),
		TopicID:     topicID,
		Title:       title,
		Description: description,
		Status:      store.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.store.AddTask(t); err != nil {
		return nil, fmt.Errorf("store task: %w", err)
	}
	slog.Info("Generated task", "topic", topicID, "task", t.ID, "title", t.Title)
	m.audit.Logf(ctx, agent.Manager, audit.TypeOutput, "Generated task %s: %s", t.ID, t.Title)
	return &t, nil
}

// ReviewSubmission has the Reviewer judge code against a stored task and
// returns its answer unmodified. Unknown tasks yield store.ErrNotFound.
func (m *Manager) ReviewSubmission(ctx context.Context, taskID, code, topicID string) (string, error) {
	t, err := m.store.GetTask(taskID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(topicID) == "" {
		topicID = t.TopicID
	}
	if topicID == "" {
		topicID = store.DefaultTopicID
	}

	response, err := m.run(ctx, agent.Reviewer, topicID, reviewPrompt(t, code))
	if err != nil {
		return "", err
	}
	verdict := ExtractVerdict(response)
	slog.Info("Reviewed submission", "task", taskID, "verdict", verdict)
	m.audit.Logf(ctx, agent.Reviewer, audit.TypeOutput, "Review of task %s: %s", taskID, verdict)
	return response, nil
}

func (m *Manager) run(ctx context.Context, agentName, topicID, prompt string) (string, error) {
	sessionID := session.Key(topicID)
	if err := m.sessions.Ensure(sessionID); err != nil {
		return "", fmt.Errorf("ensure session: %w", err)
	}
	cfg, err := m.agents.Resolve(agentName)
	if err != nil {
		return "", err
	}
	m.audit.Log(ctx, agentName, audit.TypeInput, prompt)
	out, err := agent.CollectText(m.gen.GenerateAsync(ctx, cfg, sessionID, prompt))
	if err != nil {
		m.audit.Logf(ctx, agentName, audit.TypeError, "%v", err)
		return "", err
	}
	return out, nil
}

// learningContext renders the topic title, the last few messages and the
// topic's earlier tasks.
func (m *Manager) learningContext(topicID string) (string, error) {
	topics, err := m.store.GetTopics()
	if err != nil {
		return "", fmt.Errorf("load topics: %w", err)
	}
	title, ok := topics[topicID]
	if !ok {
		title = "General"
	}
	history, err := m.store.GetHistory(topicID)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	tasks, err := m.store.GetTasks()
	if err != nil {
		return "", fmt.Errorf("load tasks: %w", err)
	}
	previous := store.FilterTasks(tasks, topicID)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\nChat History:\n", title)
	for _, msg := range history {
		fmt.Fprintf(&sb, "%s: %s\n", msg.Role, msg.Content)
	}
	if len(previous) > 0 {
		sb.WriteString("\nPrevious Tasks:\n")
		for _, t := range previous {
			fmt.Fprintf(&sb, "- %s: %s\n", t.Title, t.Description)
		}
	}
	return sb.String(), nil
}

func generatePrompt(learning string) string {
	return "Based on the following learning context, generate a new, unique coding task for the user.\n" +
		"The task should be relevant to what they have recently discussed or learned.\n" +
		"Do not repeat previous tasks.\n\n" +
		learning +
		"\nFormat the output exactly as:\n" +
		"Title: [Task Title]\n" +
		"Description: [Task Description]\n"
}

func reviewPrompt(t *store.Task, code string) string {
	return fmt.Sprintf("Please review the following code submission.\n\n"+
		"Task: %s\nDescription: %s\n\n"+
		"Submitted code:\n```python\n%s\n```\n\n"+
		"Start your answer with APPROVED if the code solves the task correctly, "+
		"or CHANGES REQUESTED followed by specific, actionable feedback.", t.Title, t.Description, code)
}
