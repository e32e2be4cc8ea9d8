package task

import (
	"context"
	"errors"
	"iter"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerforge/careerforge/internal/agent"
	"github.com/careerforge/careerforge/internal/session"
	"github.com/careerforge/careerforge/internal/store"
	"github.com/careerforge/careerforge/internal/store/jsonstore"
)

type call struct {
	agent, session, message string
}

type fakeGen struct {
	reply string
	err   error
	calls []call
}

func (g *fakeGen) GenerateAsync(_ context.Context, cfg *agent.AgentConfig, sessionID, message string) iter.Seq2[agent.TextChunk, error] {
	return func(yield func(agent.TextChunk, error) bool) {
		g.calls = append(g.calls, call{cfg.Name, sessionID, message})
		if g.err != nil {
			yield(agent.TextChunk{}, g.err)
			return
		}
		yield(agent.TextChunk{Agent: cfg.Name, Content: g.reply}, nil)
	}
}

func setup(t *testing.T, gen *fakeGen) (*Manager, store.Store, *session.Manager) {
	t.Helper()
	st, err := jsonstore.Open(filepath.Join(t.TempDir(), "storage.json"))
	require.NoError(t, err)
	sessions, err := session.NewManager("")
	require.NoError(t, err)
	reg, err := agent.NewRegistry(nil, nil)
	require.NoError(t, err)
	return NewManager(st, sessions, reg, gen, nil), st, sessions
}

func TestGenerateTaskStoresPendingTask(t *testing.T) {
	gen := &fakeGen{reply: "Title: FizzBuzz\nDescription: Print 1..100 with fizz and buzz."}
	m, st, sessions := setup(t, gen)
	require.NoError(t, st.AddTopic("py", "Python"))

	got, err := m.GenerateTask(context.Background(), "py")
	require.NoError(t, err)
	assert.Equal(t, "FizzBuzz", got.Title)
	assert.Equal(t, "Print 1..100 with fizz and buzz.", got.Description)
	assert.Equal(t, store.StatusPending, got.Status)
	assert.Equal(t, "py", got.TopicID)
	_, err = uuid.Parse(got.ID)
	assert.NoError(t, err)

	stored, err := st.GetTask(got.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Title, stored.Title)

	require.Len(t, gen.calls, 1)
	assert.Equal(t, agent.Manager, gen.calls[0].agent)
	assert.Equal(t, "session_py", gen.calls[0].session)
	_, err = sessions.Get("session_py")
	assert.NoError(t, err, "session ensured")
}

func TestGenerateTaskContext(t *testing.T) {
	gen := &fakeGen{reply: "Title: Next\nDescription: d"}
	m, st, _ := setup(t, gen)
	require.NoError(t, st.AddTopic("py", "Python"))
	for i := 0; i < 12; i++ {
		role := store.RoleUser
		if i%2 == 1 {
			role = store.RoleAgent
		}
		require.NoError(t, st.AppendMessage("py", store.Message{Role: role, Content: string(rune('a' + i))}))
	}
	require.NoError(t, st.AddTask(store.Task{ID: "old", TopicID: "py", Title: "Loops", Description: "Write a loop", CreatedAt: time.Now()}))
	require.NoError(t, st.AddTask(store.Task{ID: "other", TopicID: "js", Title: "Promises", Description: "x", CreatedAt: time.Now()}))

	_, err := m.GenerateTask(context.Background(), "py")
	require.NoError(t, err)

	prompt := gen.calls[0].message
	assert.Contains(t, prompt, "Topic: Python\nChat History:\n")
	assert.NotContains(t, prompt, "user: a\n", "only the last 10 messages")
	assert.NotContains(t, prompt, "agent: b\n")
	assert.Contains(t, prompt, "user: c\nagent: d\n")
	assert.Contains(t, prompt, "agent: l\n")
	assert.Contains(t, prompt, "\nPrevious Tasks:\n- Loops: Write a loop\n")
	assert.NotContains(t, prompt, "Promises")
	assert.Contains(t, prompt, "Title: [Task Title]\nDescription: [Task Description]")
}

func TestGenerateTaskUnknownTopicIsGeneral(t *testing.T) {
	gen := &fakeGen{reply: "Just practise recursion."}
	m, _, _ := setup(t, gen)

	got, err := m.GenerateTask(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Contains(t, gen.calls[0].message, "Topic: General\n")
	assert.NotContains(t, gen.calls[0].message, "Previous Tasks:")
	assert.Equal(t, DefaultTitle, got.Title)
	assert.Equal(t, "Just practise recursion.", got.Description)
}

func TestGenerateTaskErrors(t *testing.T) {
	m, st, _ := setup(t, &fakeGen{})
	_, err := m.GenerateTask(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrTopicRequired)

	boom := errors.New("quota exceeded")
	m, st, _ = setup(t, &fakeGen{err: boom})
	_, err = m.GenerateTask(context.Background(), "py")
	assert.ErrorIs(t, err, boom)
	tasks, _ := st.GetTasks()
	assert.Empty(t, tasks)
}

func TestReviewSubmission(t *testing.T) {
	gen := &fakeGen{reply: "CHANGES REQUESTED: handle empty lists."}
	m, st, _ := setup(t, gen)
	require.NoError(t, st.AddTask(store.Task{ID: "t1", TopicID: "py", Title: "Sum", Description: "Sum a list", Status: store.StatusPending}))

	out, err := m.ReviewSubmission(context.Background(), "t1", "def s(x): return sum(x)", "")
	require.NoError(t, err)
	assert.Equal(t, "CHANGES REQUESTED: handle empty lists.", out)

	require.Len(t, gen.calls, 1)
	c := gen.calls[0]
	assert.Equal(t, agent.Reviewer, c.agent)
	assert.Equal(t, "session_py", c.session, "falls back to the task's topic")
	assert.Contains(t, c.message, "Task: Sum\nDescription: Sum a list")
	assert.Contains(t, c.message, "def s(x): return sum(x)")
	assert.Contains(t, c.message, "APPROVED")
	assert.Contains(t, c.message, "CHANGES REQUESTED")

	_, err = m.ReviewSubmission(context.Background(), "t1", "code", "other")
	require.NoError(t, err)
	assert.Equal(t, "session_other", gen.calls[1].session)
}

func TestReviewSubmissionUnknownTask(t *testing.T) {
	gen := &fakeGen{reply: "APPROVED"}
	m, _, _ := setup(t, gen)

	_, err := m.ReviewSubmission(context.Background(), "missing", "print(1)", "py")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, gen.calls)
}
