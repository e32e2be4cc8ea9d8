package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/careerforge/careerforge/internal/provider"
	"github.com/careerforge/careerforge/internal/session"
	"github.com/careerforge/careerforge/internal/tools"
)

// ErrMaxToolIterations is returned when an agent keeps calling tools past
// the configured limit.
var ErrMaxToolIterations = errors.New("max tool iterations reached")

const (
	defaultHistoryLimit      = 40
	defaultMaxToolIterations = 5
)

// TextChunk is one piece of agent output.
type TextChunk struct {
	Agent   string
	Content string
}

// Text returns the chunk's text.
func (c TextChunk) Text() string { return c.Content }

// RunnerOptions tunes the provider calls made by a Runner.
type RunnerOptions struct {
	Model             string
	MaxTokens         int
	Temperature       float64
	HistoryLimit      int
	MaxToolIterations int
}

// Runner invokes agents against a provider, reading and extending the
// session that backs a topic.
type Runner struct {
	provider provider.LLMProvider
	sessions *session.Manager
	opts     RunnerOptions
}

// NewRunner creates a Runner. Zero limits fall back to 40 history messages
// and 5 tool rounds.
func NewRunner(p provider.LLMProvider, sessions *session.Manager, opts RunnerOptions) *Runner {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.MaxToolIterations <= 0 {
		opts.MaxToolIterations = defaultMaxToolIterations
	}
	if opts.Model == "" {
		opts.Model = p.DefaultModel()
	}
	return &Runner{provider: p, sessions: sessions, opts: opts}
}

// GenerateAsync sends message to the agent on the given session and yields
// each piece of assistant text. The session must already exist. On success
// the user message, any tool exchanges and the replies are appended to the
// session and saved.
func (r *Runner) GenerateAsync(ctx context.Context, cfg *AgentConfig, sessionID, message string) iter.Seq2[TextChunk, error] {
	return func(yield func(TextChunk, error) bool) {
		sess, err := r.sessions.Get(sessionID)
		if err != nil {
			yield(TextChunk{}, err)
			return
		}

		pending := []session.Message{{Role: "user", Content: message}}
		messages := buildMessages(cfg.SystemPrompt, sess.GetHistory(r.opts.HistoryLimit), message)
		registry := cfg.Tools()
		toolDefs := buildToolDefinitions(registry)

		commit := func() {
			sess.AddMessage(pending...)
			if err := r.sessions.Save(sess); err != nil {
				slog.Warn("Failed to save session", "session", sessionID, "error", err)
			}
		}

		for round := 0; ; round++ {
			llmStart := time.Now()
			resp, err := r.provider.Chat(ctx, &provider.ChatRequest{
				Messages:    messages,
				Tools:       toolDefs,
				Model:       r.opts.Model,
				MaxTokens:   r.opts.MaxTokens,
				Temperature: r.opts.Temperature,
			})
			if err != nil {
				yield(TextChunk{}, fmt.Errorf("%s: LLM call failed: %w", cfg.Name, err))
				return
			}
			slog.Debug("LLM call", "agent", cfg.Name, "model", r.opts.Model,
				"tokens", resp.Usage.TotalTokens, "duration", time.Since(llmStart), "tool_calls", len(resp.ToolCalls))

			pending = append(pending, session.Message{
				Role:      "assistant",
				Agent:     cfg.Name,
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			})
			if resp.Content != "" {
				if !yield(TextChunk{Agent: cfg.Name, Content: resp.Content}, nil) {
					commit()
					return
				}
			}

			if len(resp.ToolCalls) == 0 {
				commit()
				return
			}
			if round >= r.opts.MaxToolIterations {
				yield(TextChunk{}, fmt.Errorf("%s: %w (%d)", cfg.Name, ErrMaxToolIterations, r.opts.MaxToolIterations))
				return
			}

			messages = append(messages, provider.Message{
				Role:      "assistant",
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			})
			for _, tc := range resp.ToolCalls {
				result, err := registry.Execute(ctx, tc.Name, tc.Arguments)
				if err != nil {
					result = fmt.Sprintf("Error: %v", err)
				}
				slog.Debug("Tool executed", "agent", cfg.Name, "name", tc.Name, "result_length", len(result))
				messages = append(messages, provider.Message{Role: "tool", Content: result, ToolCallID: tc.ID})
				pending = append(pending, session.Message{Role: "tool", Content: result, ToolCallID: tc.ID})
			}
		}
	}
}

// CollectText drains seq and concatenates the chunk texts.
func CollectText(seq iter.Seq2[TextChunk, error]) (string, error) {
	var sb strings.Builder
	for chunk, err := range seq {
		if err != nil {
			return "", err
		}
		sb.WriteString(chunk.Text())
	}
	return sb.String(), nil
}

// buildMessages constructs the provider message list: system prompt, session
// history, then the new user message.
func buildMessages(systemPrompt string, history []session.Message, current string) []provider.Message {
	messages := make([]provider.Message, 0, len(history)+2)
	messages = append(messages, provider.Message{Role: "system", Content: systemPrompt})
	for _, msg := range history {
		messages = append(messages, provider.Message{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCalls:  msg.ToolCalls,
			ToolCallID: msg.ToolCallID,
		})
	}
	return append(messages, provider.Message{Role: "user", Content: current})
}

func buildToolDefinitions(registry *tools.Registry) []provider.ToolDefinition {
	if registry.Len() == 0 {
		return nil
	}
	defs := make([]provider.ToolDefinition, registry.Len())
	for i, tool := range registry.List() {
		defs[i] = provider.ToolDefinition{
			Type: "function",
			Function: provider.FunctionDef{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		}
	}
	return defs
}
