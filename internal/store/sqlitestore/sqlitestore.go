// Package sqlitestore is the transactional conversation store. Every
// mutation is its own statement, so concurrent writers never lose rows.
package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/careerforge/careerforge/internal/store"
)

const (
	// DriverModernc is the pure-Go driver and the default.
	DriverModernc = "sqlite"
	// DriverCGO is github.com/mattn/go-sqlite3.
	DriverCGO = "sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS topics (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	topic_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(topic_id, seq)
);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	topic_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'Pending',
	code TEXT NOT NULL DEFAULT '',
	feedback TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_topic ON messages(topic_id, seq);
CREATE INDEX IF NOT EXISTS idx_tasks_topic ON tasks(topic_id);
`

// Store is a store.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database at dbPath with the given driver
// name. The default topic is seeded on first open.
func Open(driver, dbPath string) (*Store, error) {
	if driver == "" {
		driver = DriverModernc
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn(driver, dbPath))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO topics (id, title) VALUES (?, ?)`,
		store.DefaultTopicID, store.DefaultTopicTitle); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed default topic: %w", err)
	}
	return &Store{db: db}, nil
}

func dsn(driver, dbPath string) string {
	if dbPath == ":memory:" {
		return dbPath
	}
	if driver == DriverCGO {
		return "file:" + dbPath + "?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000"
	}
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) GetHistory(topicID string) ([]store.Message, error) {
	rows, err := s.db.Query(`SELECT role, content FROM messages WHERE topic_id = ? ORDER BY seq`, topicID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := []store.Message{}
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) AppendMessage(topicID string, msg store.Message) error {
	_, err := s.db.Exec(`
		INSERT INTO messages (topic_id, seq, role, content)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ? FROM messages WHERE topic_id = ?`,
		topicID, msg.Role, msg.Content, topicID)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *Store) GetTopics() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT id, title FROM topics`)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var id, title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		out[id] = title
	}
	return out, rows.Err()
}

func (s *Store) HasTopic(topicID string) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM topics WHERE id = ?`, topicID).Scan(&n); err != nil {
		return false, fmt.Errorf("query topic: %w", err)
	}
	return n > 0, nil
}

func (s *Store) AddTopic(topicID, title string) error {
	_, err := s.db.Exec(`INSERT INTO topics (id, title) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title`, topicID, title)
	if err != nil {
		return fmt.Errorf("add topic: %w", err)
	}
	return nil
}

func (s *Store) DeleteTopic(topicID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE topic_id = ?`, topicID); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM topics WHERE id = ?`, topicID); err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	return tx.Commit()
}

const taskColumns = `id, topic_id, title, description, status, code, feedback, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*store.Task, error) {
	var t store.Task
	var created int64
	if err := row.Scan(&t.ID, &t.TopicID, &t.Title, &t.Description, &t.Status, &t.Code, &t.Feedback, &created); err != nil {
		return nil, err
	}
	t.CreatedAt = time.Unix(0, created).UTC()
	return &t, nil
}

func (s *Store) GetTasks() ([]store.Task, error) {
	rows, err := s.db.Query(`SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	out := []store.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) AddTask(task store.Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if task.Status == "" {
		task.Status = store.StatusPending
	}
	_, err := s.db.Exec(`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.TopicID, task.Title, task.Description, task.Status, task.Code, task.Feedback, task.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("add task: %w", err)
	}
	return nil
}

func (s *Store) GetTask(taskID string) (*store.Task, error) {
	t, err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", taskID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *Store) UpdateTask(taskID string, update store.TaskUpdate) (*store.Task, error) {
	res, err := s.db.Exec(`UPDATE tasks SET status = ?, code = ?, feedback = ? WHERE id = ?`,
		update.Status, update.Code, update.Feedback, taskID)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("task %s: %w", taskID, store.ErrNotFound)
	}
	return s.GetTask(taskID)
}
