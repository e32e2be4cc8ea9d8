// Package routing sends each chat message through the orchestrator and on
// to exactly one handler agent.
package routing

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/careerforge/careerforge/internal/agent"
	"github.com/careerforge/careerforge/internal/audit"
	"github.com/careerforge/careerforge/internal/session"
	"github.com/careerforge/careerforge/internal/store"
)

// UnknownTopicTitle names topics first seen through chat.
const UnknownTopicTitle = "Unknown Topic"

// State is a step of a single chat request.
type State string

const (
	StateReceived    State = "Received"
	StateClassifying State = "Classifying"
	StateRouted      State = "Routed"
	StateResponding  State = "Responding"
	StateCompleted   State = "Completed"
	StateFailed      State = "Failed"
)

// Stage names where a failed request stopped.
type Stage string

const (
	StageSession  Stage = "session"
	StagePersist  Stage = "persist"
	StageClassify Stage = "classify"
	StageRespond  Stage = "respond"
)

// StageError wraps a failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Generator runs an agent turn on a session.
type Generator interface {
	GenerateAsync(ctx context.Context, cfg *agent.AgentConfig, sessionID, message string) iter.Seq2[agent.TextChunk, error]
}

// SessionEnsurer creates a session if it is missing.
type SessionEnsurer interface {
	Ensure(key string) error
}

// Request is an inbound chat message.
type Request struct {
	TopicID string
	Message string
}

// Result is the handler's reply and the handler that produced it.
type Result struct {
	Response  string
	AgentType string
}

// Engine routes chat messages.
type Engine struct {
	store    store.Store
	sessions SessionEnsurer
	agents   *agent.Registry
	gen      Generator
	audit    *audit.Logger
}

// NewEngine wires an Engine. auditLog may be nil.
func NewEngine(st store.Store, sessions SessionEnsurer, agents *agent.Registry, gen Generator, auditLog *audit.Logger) *Engine {
	return &Engine{store: st, sessions: sessions, agents: agents, gen: gen, audit: auditLog}
}

// Chat classifies req.Message with the orchestrator, has the chosen handler
// answer it on the topic's session, and records both turns in the topic
// history. Any failure is returned as a *StageError; nothing partial is
// returned.
func (e *Engine) Chat(ctx context.Context, req Request) (*Result, error) {
	topicID := strings.TrimSpace(req.TopicID)
	if topicID == "" {
		topicID = store.DefaultTopicID
	}
	sessionID := session.Key(topicID)
	e.transition(topicID, StateReceived, "")
	e.audit.Log(ctx, agent.Orchestrator, audit.TypeInput, req.Message)

	ok, err := e.store.HasTopic(topicID)
	if err != nil {
		return nil, e.fail(ctx, topicID, StagePersist, err)
	}
	if !ok {
		if err := e.store.AddTopic(topicID, UnknownTopicTitle); err != nil {
			return nil, e.fail(ctx, topicID, StagePersist, err)
		}
	}
	if err := e.sessions.Ensure(sessionID); err != nil {
		return nil, e.fail(ctx, topicID, StageSession, err)
	}

	if err := e.store.AppendMessage(topicID, store.Message{Role: store.RoleUser, Content: req.Message}); err != nil {
		return nil, e.fail(ctx, topicID, StagePersist, err)
	}

	e.transition(topicID, StateClassifying, "")
	orchestrator, err := e.agents.Resolve(agent.Orchestrator)
	if err != nil {
		return nil, e.fail(ctx, topicID, StageClassify, err)
	}
	decision, err := agent.CollectText(e.gen.GenerateAsync(ctx, orchestrator, sessionID, req.Message))
	if err != nil {
		return nil, e.fail(ctx, topicID, StageClassify, err)
	}

	handlerName := Classify(decision)
	handlerID := HandlerID(handlerName)
	e.transition(topicID, StateRouted, handlerID)
	slog.Info("Routed message", "topic", topicID, "agent", handlerID, "decision", strings.TrimSpace(decision))
	e.audit.Logf(ctx, agent.Orchestrator, audit.TypeRouting, "Routed to %s", handlerID)

	handler, err := e.agents.Resolve(handlerName)
	if err != nil {
		return nil, e.fail(ctx, topicID, StageRespond, err)
	}
	e.transition(topicID, StateResponding, handlerID)
	response, err := agent.CollectText(e.gen.GenerateAsync(ctx, handler, sessionID, req.Message))
	if err != nil {
		return nil, e.fail(ctx, topicID, StageRespond, err)
	}

	if err := e.store.AppendMessage(topicID, store.Message{Role: store.RoleAgent, Content: response}); err != nil {
		return nil, e.fail(ctx, topicID, StagePersist, err)
	}
	e.audit.Log(ctx, handler.Name, audit.TypeOutput, response)
	e.transition(topicID, StateCompleted, handlerID)

	return &Result{Response: response, AgentType: handlerID}, nil
}

func (e *Engine) transition(topicID string, state State, handler string) {
	slog.Debug("Chat state", "topic", topicID, "state", state, "handler", handler)
}

func (e *Engine) fail(ctx context.Context, topicID string, stage Stage, err error) error {
	e.transition(topicID, StateFailed, "")
	slog.Error("Chat failed", "topic", topicID, "stage", stage, "error", err)
	e.audit.Logf(ctx, agent.Orchestrator, audit.TypeError, "%s: %v", stage, err)
	return &StageError{Stage: stage, Err: err}
}
