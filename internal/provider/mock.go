package provider

import (
	"context"
	"fmt"
	"strings"
)

// MockProvider answers without any network access. It echoes the last user
// message, and when tools are offered it calls the first one once with the
// message (minus code fences) as "code", then relays the tool result.
type MockProvider struct {
	model string
}

// NewMockProvider returns an offline provider.
func NewMockProvider(model string) *MockProvider {
	if model == "" {
		model = "echo"
	}
	return &MockProvider{model: model}
}

func (p *MockProvider) DefaultModel() string {
	return p.model
}

func (p *MockProvider) Chat(_ context.Context, req *ChatRequest) (*ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("mock provider: no messages")
	}
	last := req.Messages[len(req.Messages)-1]

	if last.Role == "tool" {
		return &ChatResponse{Content: last.Content, FinishReason: "stop"}, nil
	}

	var user string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			user = req.Messages[i].Content
			break
		}
	}

	if len(req.Tools) > 0 {
		name := req.Tools[0].Function.Name
		return &ChatResponse{
			ToolCalls: []ToolCall{{
				ID:        "mock_" + name,
				Name:      name,
				Arguments: map[string]any{"code": StripCodeFence(user)},
			}},
			FinishReason: "tool_calls",
		}, nil
	}

	return &ChatResponse{Content: "[mock] " + user, FinishReason: "stop"}, nil
}

// StripCodeFence returns the body of the first ``` fenced block in s, or s
// trimmed when there is none.
func StripCodeFence(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return strings.TrimSpace(s)
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
