// Package audit records agent activity as an append-only trace.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record types.
const (
	TypeInput   = "Input"
	TypeRouting = "Routing"
	TypeOutput  = "Output"
	TypeError   = "Error"
)

// Record is one trace line.
type Record struct {
	Timestamp string `json:"timestamp"`
	Agent     string `json:"agent"`
	Type      string `json:"type"`
	Details   string `json:"details"`
}

// NewRecord stamps a record with the current time.
func NewRecord(agent, typ, details string) Record {
	return Record{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Agent:     agent,
		Type:      typ,
		Details:   details,
	}
}

// Sink persists records.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

// Logger fans records out to its sinks. Sink failures are logged and
// swallowed; auditing never fails the caller. A nil Logger discards.
type Logger struct {
	sinks []Sink
}

// NewLogger returns a Logger writing to every non-nil sink.
func NewLogger(sinks ...Sink) *Logger {
	l := &Logger{}
	for _, s := range sinks {
		if s != nil {
			l.sinks = append(l.sinks, s)
		}
	}
	return l
}

// Log writes a record built from agent, typ and details.
func (l *Logger) Log(ctx context.Context, agent, typ, details string) {
	if l == nil {
		return
	}
	rec := NewRecord(agent, typ, details)
	for _, s := range l.sinks {
		if err := s.Write(ctx, rec); err != nil {
			slog.Warn("Audit write failed", "agent", agent, "type", typ, "error", err)
		}
	}
}

// Logf is Log with a formatted details string.
func (l *Logger) Logf(ctx context.Context, agent, typ, format string, args ...any) {
	l.Log(ctx, agent, typ, fmt.Sprintf(format, args...))
}

// Close closes every sink.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var errs []error
	for _, s := range l.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FileSink appends JSON lines to a file.
type FileSink struct {
	mu sync.Mutex
	f  *os.File
}

// NewFileSink opens path for appending, creating parent directories.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &FileSink{f: f}, nil
}

func (s *FileSink) Write(_ context.Context, rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.f.Write(line)
	return err
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
