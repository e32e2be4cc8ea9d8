package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerforge/careerforge/internal/routing"
	"github.com/careerforge/careerforge/internal/sandbox"
	"github.com/careerforge/careerforge/internal/store"
	"github.com/careerforge/careerforge/internal/store/jsonstore"
)

type fakeChat struct {
	got routing.Request
	err error
}

func (f *fakeChat) Chat(_ context.Context, req routing.Request) (*routing.Result, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &routing.Result{Response: "answer to " + req.Message, AgentType: "MENTOR"}, nil
}

type fakeTasks struct {
	st store.Store
}

func (f *fakeTasks) GenerateTask(_ context.Context, topicID string) (*store.Task, error) {
	t := store.Task{ID: "generated", TopicID: topicID, Title: "FizzBuzz", Description: "d", Status: store.StatusPending}
	return &t, f.st.AddTask(t)
}

func (f *fakeTasks) ReviewSubmission(_ context.Context, taskID, code, _ string) (string, error) {
	if _, err := f.st.GetTask(taskID); err != nil {
		return "", err
	}
	return "APPROVED: " + code, nil
}

type countingRunner struct {
	calls  atomic.Int32
	result sandbox.Result
}

func (c *countingRunner) ExecuteAs(context.Context, string, string) sandbox.Result {
	c.calls.Add(1)
	return c.result
}

type recordingSessions struct{ deleted []string }

func (r *recordingSessions) Delete(key string) bool {
	r.deleted = append(r.deleted, key)
	return true
}

type fixture struct {
	srv      *httptest.Server
	st       store.Store
	chat     *fakeChat
	runner   *countingRunner
	sessions *recordingSessions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := jsonstore.Open(filepath.Join(t.TempDir(), "storage.json"))
	require.NoError(t, err)
	f := &fixture{
		st:       st,
		chat:     &fakeChat{},
		runner:   &countingRunner{result: sandbox.Result{Stdout: "15"}},
		sessions: &recordingSessions{},
	}
	s := New(Deps{
		Store:        st,
		Chat:         f.chat,
		Tasks:        &fakeTasks{st: st},
		Sandbox:      f.runner,
		Sessions:     f.sessions,
		AllowOrigins: []string{"*"},
	})
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (f *fixture) doList(t *testing.T, path string) []map[string]any {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRoot(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CareerForge AI Backend is running", body["message"])
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestTopicLifecycle(t *testing.T) {
	f := newFixture(t)

	topics := f.doList(t, "/topics")
	require.Len(t, topics, 1)
	assert.Equal(t, "default", topics[0]["id"])
	assert.Equal(t, "General Chat", topics[0]["title"])

	resp, created := f.do(t, http.MethodPost, "/topics?title=Python%20Basics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "Python Basics", created["title"])
	assert.Len(t, f.doList(t, "/topics"), 2)

	require.NoError(t, f.st.AppendMessage(id, store.Message{Role: store.RoleUser, Content: "hi"}))
	assert.Len(t, f.doList(t, "/history/"+id), 1)

	resp, body := f.do(t, http.MethodDelete, "/topics/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Topic deleted", body["message"])
	assert.Equal(t, []string{"session_" + id}, f.sessions.deleted)
	assert.Empty(t, f.doList(t, "/history/"+id))
}

func TestCreateTopicRequiresTitle(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodPost, "/topics", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["detail"])
}

func TestHistoryUnknownTopicIsEmptyArray(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/history/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, "[]", string(raw))
}

func TestTasksEndpoints(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/tasks/generate", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, task := f.do(t, http.MethodPost, "/tasks/generate?topic_id=py", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "generated", task["id"])
	assert.Equal(t, "Pending", task["status"])

	require.NoError(t, f.st.AddTask(store.Task{ID: "js-task", TopicID: "js", Title: "x"}))
	assert.Len(t, f.doList(t, "/tasks"), 2)
	assert.Len(t, f.doList(t, "/tasks?topic_id=py"), 1)

	resp, updated := f.do(t, http.MethodPut, "/tasks/generated",
		`{"id":"generated","topic_id":"py","title":"changed","description":"changed","status":"Completed","code":"print(1)","feedback":"APPROVED"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "FizzBuzz", updated["title"], "title is not mutable")
	assert.Equal(t, "Completed", updated["status"])
	assert.Equal(t, "print(1)", updated["code"])
	assert.Equal(t, "APPROVED", updated["feedback"])

	resp, body := f.do(t, http.MethodPut, "/tasks/missing", `{"status":"Completed"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Task not found", body["detail"])

	resp, _ = f.do(t, http.MethodPut, "/tasks/generated", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExecute(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/execute", `{"code":"print(5 + 10)"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "15", body["output"])
	assert.Equal(t, "", body["error"])

	f.runner.result = sandbox.Result{Failed: true, TimedOut: true}
	_, body = f.do(t, http.MethodPost, "/execute", `{"code":"while True: pass","language":"Python"}`)
	assert.Equal(t, "", body["output"])
	assert.True(t, strings.HasPrefix(body["error"].(string), "Error:"))
	assert.EqualValues(t, 2, f.runner.calls.Load())
}

func TestExecuteRejectsOtherLanguagesWithoutRunning(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/execute", `{"code":"puts 1","language":"ruby"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", body["output"])
	assert.Equal(t, "Only Python is supported for now.", body["error"])
	assert.EqualValues(t, 0, f.runner.calls.Load())
}

func TestReview(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.st.AddTask(store.Task{ID: "t1", TopicID: "py", Title: "Sum"}))

	resp, body := f.do(t, http.MethodPost, "/review", `{"code":"sum(x)","task_id":"t1","topic_id":"py"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "APPROVED: sum(x)", body["response"])
	assert.Equal(t, "REVIEWER", body["agent_type"])

	resp, body = f.do(t, http.MethodPost, "/review", `{"code":"x","task_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Task not found", body["detail"])
}

func TestChat(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/chat", `{"user_id":"u1","message":"What is a list?","topic_id":"py","history":[]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "answer to What is a list?", body["response"])
	assert.Equal(t, "MENTOR", body["agent_type"])
	assert.Equal(t, routing.Request{TopicID: "py", Message: "What is a list?"}, f.chat.got)

	resp, _ = f.do(t, http.MethodPost, "/chat", `{"user_id":"u1","message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/chat", `{"message":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	f.chat.err = &routing.StageError{Stage: routing.StageClassify, Err: errors.New("quota exceeded")}
	resp, body = f.do(t, http.MethodPost, "/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "classify: quota exceeded", body["detail"])
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodOptions, "/chat", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "PUT")
}

func TestCORSRestrictedOrigins(t *testing.T) {
	st, err := jsonstore.Open(filepath.Join(t.TempDir(), "storage.json"))
	require.NoError(t, err)
	s := New(Deps{Store: st, AllowOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodGet, "/topics", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/topics", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
