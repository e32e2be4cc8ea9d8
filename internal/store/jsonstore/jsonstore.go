// Package jsonstore keeps the conversation state in a single JSON document
// that is rewritten after every mutation.
//
// Mutations within one Store are serialised, but the document is always
// written whole: two Stores (or processes) sharing a file overwrite each
// other's changes.
package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/careerforge/careerforge/internal/store"
)

type document struct {
	Topics  map[string]string          `json:"topics"`
	History map[string][]store.Message `json:"history"`
	Tasks   map[string]store.Task      `json:"tasks"`
}

// Store is a store.Store backed by one JSON file.
type Store struct {
	path string
	mu   sync.Mutex
	doc  document
}

var _ store.Store = (*Store)(nil)

// Open loads path, or seeds a new document with the default topic when the
// file does not exist yet.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.doc = document{Topics: map[string]string{store.DefaultTopicID: store.DefaultTopicTitle}}
		s.normalize()
		s.save()
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read storage: %w", err)
	}

	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("parse storage %s: %w", path, err)
	}
	s.normalize()
	return s, nil
}

func (s *Store) normalize() {
	if s.doc.Topics == nil {
		s.doc.Topics = map[string]string{}
	}
	if s.doc.History == nil {
		s.doc.History = map[string][]store.Message{}
	}
	if s.doc.Tasks == nil {
		s.doc.Tasks = map[string]store.Task{}
	}
}

// save writes the whole document. Failures are logged, not returned.
// Caller holds s.mu.
func (s *Store) save() {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		slog.Warn("Error encoding storage", "path", s.path, "error", err)
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		slog.Warn("Error saving storage", "path", s.path, "error", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		slog.Warn("Error saving storage", "path", s.path, "error", err)
	}
}

func (s *Store) GetHistory(topicID string) ([]store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.doc.History[topicID]
	out := make([]store.Message, len(h))
	copy(out, h)
	return out, nil
}

func (s *Store) AppendMessage(topicID string, msg store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.History[topicID] = append(s.doc.History[topicID], msg)
	s.save()
	return nil
}

func (s *Store) GetTopics() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.doc.Topics))
	for id, title := range s.doc.Topics {
		out[id] = title
	}
	return out, nil
}

func (s *Store) HasTopic(topicID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.doc.Topics[topicID]
	return ok, nil
}

func (s *Store) AddTopic(topicID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Topics[topicID] = title
	s.save()
	return nil
}

func (s *Store) DeleteTopic(topicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.doc.Topics, topicID)
	delete(s.doc.History, topicID)
	s.save()
	return nil
}

func (s *Store) GetTasks() ([]store.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.Task, 0, len(s.doc.Tasks))
	for _, t := range s.doc.Tasks {
		out = append(out, t)
	}
	store.SortTasks(out)
	return out, nil
}

func (s *Store) AddTask(task store.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	s.doc.Tasks[task.ID] = task
	s.save()
	return nil
}

func (s *Store) GetTask(taskID string) (*store.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.doc.Tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, store.ErrNotFound)
	}
	return &t, nil
}

func (s *Store) UpdateTask(taskID string, update store.TaskUpdate) (*store.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.doc.Tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, store.ErrNotFound)
	}
	t = update.Apply(t)
	s.doc.Tasks[taskID] = t
	s.save()
	return &t, nil
}

// Close is a no-op; every mutation is already on disk.
func (s *Store) Close() error { return nil }
