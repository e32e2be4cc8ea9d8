// Package store defines the conversation store: topics, per-topic message
// history and tasks.
package store

import (
	"errors"
	"sort"
	"time"
)

// ErrNotFound is returned when a task does not exist.
var ErrNotFound = errors.New("not found")

const (
	// DefaultTopicID is the topic used when a request names none.
	DefaultTopicID = "default"
	// DefaultTopicTitle seeds a fresh store.
	DefaultTopicTitle = "General Chat"

	RoleUser  = "user"
	RoleAgent = "agent"

	StatusPending   = "Pending"
	StatusCompleted = "Completed"
)

// Message is one entry of a topic's history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Topic is a conversation thread.
type Topic struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Task is a generated coding exercise. Only Status, Code and Feedback change
// after creation.
type Task struct {
	ID          string    `json:"id"`
	TopicID     string    `json:"topic_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Code        string    `json:"code"`
	Feedback    string    `json:"feedback"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// TaskUpdate carries the mutable task fields. They replace the stored values
// wholesale.
type TaskUpdate struct {
	Status   string
	Code     string
	Feedback string
}

// Apply merges u into t and returns the result.
func (u TaskUpdate) Apply(t Task) Task {
	t.Status = u.Status
	t.Code = u.Code
	t.Feedback = u.Feedback
	return t
}

// Store is the durable conversation state.
type Store interface {
	// GetHistory returns a topic's messages in insertion order; an unknown
	// topic yields an empty slice.
	GetHistory(topicID string) ([]Message, error)
	// AppendMessage adds msg to the end of the topic's history.
	AppendMessage(topicID string, msg Message) error

	GetTopics() (map[string]string, error)
	HasTopic(topicID string) (bool, error)
	AddTopic(topicID, title string) error
	// DeleteTopic removes the topic and its history. Tasks are kept.
	DeleteTopic(topicID string) error

	// GetTasks returns all tasks ordered by creation.
	GetTasks() ([]Task, error)
	AddTask(task Task) error
	GetTask(taskID string) (*Task, error)
	UpdateTask(taskID string, update TaskUpdate) (*Task, error)

	Close() error
}

// SortedTopics converts a topic map into a slice ordered by id.
func SortedTopics(topics map[string]string) []Topic {
	out := make([]Topic, 0, len(topics))
	for id, title := range topics {
		out = append(out, Topic{ID: id, Title: title})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FilterTasks returns the tasks belonging to topicID, or all tasks when
// topicID is empty.
func FilterTasks(tasks []Task, topicID string) []Task {
	if topicID == "" {
		return tasks
	}
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.TopicID == topicID {
			out = append(out, t)
		}
	}
	return out
}

// SortTasks orders tasks by creation time, then id.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}
