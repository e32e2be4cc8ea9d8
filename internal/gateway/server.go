// Package gateway serves the CareerForge HTTP API.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/careerforge/careerforge/internal/routing"
	"github.com/careerforge/careerforge/internal/sandbox"
	"github.com/careerforge/careerforge/internal/session"
	"github.com/careerforge/careerforge/internal/store"
)

const (
	maxBodyBytes = 1 << 20

	unsupportedLanguage = "Only Python is supported for now."
	taskNotFound        = "Task not found"
)

// Chatter answers chat messages.
type Chatter interface {
	Chat(ctx context.Context, req routing.Request) (*routing.Result, error)
}

// TaskService generates and reviews tasks.
type TaskService interface {
	GenerateTask(ctx context.Context, topicID string) (*store.Task, error)
	ReviewSubmission(ctx context.Context, taskID, code, topicID string) (string, error)
}

// CodeRunner runs code in the sandbox.
type CodeRunner interface {
	ExecuteAs(ctx context.Context, agent, code string) sandbox.Result
}

// SessionDeleter drops a topic's model session.
type SessionDeleter interface {
	Delete(key string) bool
}

// Deps are the services behind the API. Sessions may be nil.
type Deps struct {
	Store        store.Store
	Chat         Chatter
	Tasks        TaskService
	Sandbox      CodeRunner
	Sessions     SessionDeleter
	AllowOrigins []string
}

// Server is the HTTP API.
type Server struct {
	deps Deps
	mux  *http.ServeMux
}

// New builds the server and its routes.
func New(deps Deps) *Server {
	s := &Server{deps: deps, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /topics", s.handleListTopics)
	s.mux.HandleFunc("POST /topics", s.handleCreateTopic)
	s.mux.HandleFunc("DELETE /topics/{topicId}", s.handleDeleteTopic)
	s.mux.HandleFunc("GET /history/{topicId}", s.handleHistory)
	s.mux.HandleFunc("POST /tasks/generate", s.handleGenerateTask)
	s.mux.HandleFunc("GET /tasks", s.handleListTasks)
	s.mux.HandleFunc("PUT /tasks/{taskId}", s.handleUpdateTask)
	s.mux.HandleFunc("POST /execute", s.handleExecute)
	s.mux.HandleFunc("POST /review", s.handleReview)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	return s
}

// Handler returns the routed handler wrapped with CORS and request logging.
func (s *Server) Handler() http.Handler {
	return s.withCORS(s.withLogging(s.mux))
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	allowAll := len(s.deps.AllowOrigins) == 0
	allowed := map[string]bool{}
	for _, o := range s.deps.AllowOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "CareerForge AI Backend is running"})
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.deps.Store.GetTopics()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, store.SortedTopics(topics))
}

func (s *Server) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if strings.TrimSpace(title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	topic := store.Topic{ID: uuid.NewString(), Title: title}
	if err := s.deps.Store.AddTopic(topic.ID, topic.Title); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("Created topic", "topic", topic.ID, "title", topic.Title)
	writeJSON(w, http.StatusOK, topic)
}

func (s *Server) handleDeleteTopic(w http.ResponseWriter, r *http.Request) {
	topicID := r.PathValue("topicId")
	if err := s.deps.Store.DeleteTopic(topicID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.deps.Sessions != nil {
		s.deps.Sessions.Delete(session.Key(topicID))
	}
	slog.Info("Deleted topic", "topic", topicID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Topic deleted"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.deps.Store.GetHistory(r.PathValue("topicId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []store.Message{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleGenerateTask(w http.ResponseWriter, r *http.Request) {
	topicID := r.URL.Query().Get("topic_id")
	if strings.TrimSpace(topicID) == "" {
		writeError(w, http.StatusBadRequest, "topic_id is required")
		return
	}
	t, err := s.deps.Tasks.GenerateTask(r.Context(), topicID)
	if err != nil {
		slog.Error("Error generating task", "topic", topicID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.deps.Store.GetTasks()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, store.FilterTasks(tasks, r.URL.Query().Get("topic_id")))
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var body store.Task
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Status == "" {
		body.Status = store.StatusPending
	}
	t, err := s.deps.Store.UpdateTask(r.PathValue("taskId"), store.TaskUpdate{
		Status:   body.Status,
		Code:     body.Code,
		Feedback: body.Feedback,
	})
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, taskNotFound)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type executeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type executeResponse struct {
	Output string `json:"output"`
	Error  string `json:"error"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	req := executeRequest{Language: "python"}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !strings.EqualFold(req.Language, "python") {
		writeJSON(w, http.StatusOK, executeResponse{Error: unsupportedLanguage})
		return
	}
	out := s.deps.Sandbox.ExecuteAs(r.Context(), "", req.Code).String()
	if sandbox.IsFailureText(out) {
		writeJSON(w, http.StatusOK, executeResponse{Error: out})
		return
	}
	writeJSON(w, http.StatusOK, executeResponse{Output: out})
}

type reviewRequest struct {
	Code    string `json:"code"`
	TaskID  string `json:"task_id"`
	TopicID string `json:"topic_id"`
}

type agentResponse struct {
	Response  string `json:"response"`
	AgentType string `json:"agent_type"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := s.deps.Tasks.ReviewSubmission(r.Context(), req.TaskID, req.Code, req.TopicID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, taskNotFound)
		return
	}
	if err != nil {
		slog.Error("Error reviewing submission", "task", req.TaskID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agentResponse{Response: out, AgentType: "REVIEWER"})
}

type chatRequest struct {
	UserID  string            `json:"user_id"`
	Message string            `json:"message"`
	TopicID string            `json:"topic_id"`
	History []json.RawMessage `json:"history"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	res, err := s.deps.Chat.Chat(r.Context(), routing.Request{TopicID: req.TopicID, Message: req.Message})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, agentResponse{Response: res.Response, AgentType: res.AgentType})
}
