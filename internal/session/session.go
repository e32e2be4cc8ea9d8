// Package session holds the per-topic model context shared by the
// orchestrator and the handler agents.
package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/careerforge/careerforge/internal/provider"
)

var (
	// ErrSessionExists is returned by Create when the key is already taken.
	ErrSessionExists = errors.New("session already exists")
	// ErrSessionNotFound is returned by Get for unknown keys.
	ErrSessionNotFound = errors.New("session not found")
)

// Key derives the session key for a topic.
func Key(topicID string) string {
	return "session_" + topicID
}

// Message is one entry of the model context. Tool exchanges are kept so they
// can be replayed to the provider verbatim.
type Message struct {
	Role       string              `json:"role"`
	Content    string              `json:"content"`
	Agent      string              `json:"agent,omitempty"`
	ToolCalls  []provider.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string              `json:"tool_call_id,omitempty"`
	Timestamp  time.Time           `json:"timestamp,omitempty"`
}

// Session represents a conversation session.
type Session struct {
	Key       string    `json:"key"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	mu        sync.RWMutex
}

// NewSession creates a new session with the given key.
func NewSession(key string) *Session {
	now := time.Now()
	return &Session{
		Key:       key,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddMessage appends messages to the session.
func (s *Session) AddMessage(msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, m := range msgs {
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		s.Messages = append(s.Messages, m)
	}
	s.UpdatedAt = now
}

// GetHistory returns up to maxMessages of the most recent messages. The
// window never starts on a tool result whose call was cut off.
func (s *Session) GetHistory(maxMessages int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.Messages
	if maxMessages >= 0 && len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}
	for len(msgs) > 0 && msgs[0].Role == "tool" {
		msgs = msgs[1:]
	}
	result := make([]Message, len(msgs))
	copy(result, msgs)
	return result
}

// Len returns the number of stored messages.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Messages)
}

// Manager creates, caches and persists sessions. With an empty directory it
// keeps sessions in memory only.
type Manager struct {
	sessionsDir string
	cache       map[string]*Session
	mu          sync.RWMutex
}

// NewManager creates a session manager rooted at sessionsDir.
func NewManager(sessionsDir string) (*Manager, error) {
	if sessionsDir != "" {
		if err := os.MkdirAll(sessionsDir, 0755); err != nil {
			return nil, fmt.Errorf("create sessions dir: %w", err)
		}
	}
	return &Manager{
		sessionsDir: sessionsDir,
		cache:       make(map[string]*Session),
	}, nil
}

// Create makes a new empty session. It returns ErrSessionExists, and leaves
// the stored session untouched, if key is already known.
func (m *Manager) Create(key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cache[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, key)
	}
	if existing, err := m.load(key); err != nil {
		return nil, err
	} else if existing != nil {
		m.cache[key] = existing
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, key)
	}

	s := NewSession(key)
	m.cache[key] = s
	if err := m.write(s); err != nil {
		delete(m.cache, key)
		return nil, err
	}
	return s, nil
}

// Ensure creates the session for key unless it already exists.
func (m *Manager) Ensure(key string) error {
	if _, err := m.Create(key); err != nil && !errors.Is(err, ErrSessionExists) {
		return err
	}
	return nil
}

// Get returns an existing session, loading it from disk if needed.
func (m *Manager) Get(key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.cache[key]; ok {
		return s, nil
	}
	s, err := m.load(key)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, key)
	}
	m.cache[key] = s
	return s, nil
}

// Save persists a session to disk.
func (m *Manager) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache[s.Key] = s
	return m.write(s)
}

// Delete removes a session. It reports whether anything was removed.
func (m *Manager) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, cached := m.cache[key]
	delete(m.cache, key)
	if m.sessionsDir == "" {
		return cached
	}
	return os.Remove(m.sessionPath(key)) == nil || cached
}

// SessionInfo contains metadata about a session.
type SessionInfo struct {
	Key       string
	Messages  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// List returns information about all known sessions, sorted by key.
func (m *Manager) List() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionsDir != "" {
		entries, _ := os.ReadDir(m.sessionsDir)
		for _, entry := range entries {
			if !strings.HasSuffix(entry.Name(), ".jsonl") {
				continue
			}
			key := strings.TrimSuffix(entry.Name(), ".jsonl")
			if _, ok := m.cache[key]; ok {
				continue
			}
			if s, err := m.load(key); err == nil && s != nil {
				if _, ok := m.cache[s.Key]; !ok {
					m.cache[s.Key] = s
				}
			}
		}
	}

	infos := make([]SessionInfo, 0, len(m.cache))
	for _, s := range m.cache {
		s.mu.RLock()
		infos = append(infos, SessionInfo{
			Key:       s.Key,
			Messages:  len(s.Messages),
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
		s.mu.RUnlock()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos
}

func (m *Manager) sessionPath(key string) string {
	safeKey := strings.ReplaceAll(key, ":", "_")
	// Strip path separators and traversal components to prevent path injection.
	safeKey = strings.ReplaceAll(safeKey, "/", "_")
	safeKey = strings.ReplaceAll(safeKey, "\\", "_")
	safeKey = strings.ReplaceAll(safeKey, "..", "_")
	return filepath.Join(m.sessionsDir, filepath.Base(safeKey)+".jsonl")
}

type metaLine struct {
	Type      string    `json:"_type"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// write stores the session as JSONL: a metadata line followed by one line
// per message. Caller holds m.mu.
func (m *Manager) write(s *Session) error {
	if m.sessionsDir == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	path := m.sessionPath(s.Key)
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	if err := enc.Encode(metaLine{Type: "metadata", Key: s.Key, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}); err != nil {
		file.Close()
		return fmt.Errorf("write session metadata: %w", err)
	}
	for _, msg := range s.Messages {
		if err := enc.Encode(msg); err != nil {
			file.Close()
			return fmt.Errorf("write session message: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flush session file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	return os.Rename(tmp, path)
}

// load reads a session from disk. It returns (nil, nil) when no file exists.
// Caller holds m.mu.
func (m *Manager) load(key string) (*Session, error) {
	if m.sessionsDir == "" {
		return nil, nil
	}
	file, err := os.Open(m.sessionPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer file.Close()

	s := NewSession(key)
	decoder := json.NewDecoder(file)
	for decoder.More() {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			break
		}

		var meta metaLine
		if json.Unmarshal(raw, &meta) == nil && meta.Type == "metadata" {
			if meta.Key != "" {
				s.Key = meta.Key
			}
			s.CreatedAt = meta.CreatedAt
			s.UpdatedAt = meta.UpdatedAt
			continue
		}

		var msg Message
		if json.Unmarshal(raw, &msg) == nil {
			s.Messages = append(s.Messages, msg)
		}
	}
	return s, nil
}
