package store

import (
	"testing"
	"time"
)

func TestTaskUpdateApplyKeepsImmutableFields(t *testing.T) {
	orig := Task{ID: "t1", TopicID: "topic", Title: "Loops", Description: "Write a loop", Status: StatusPending}
	got := TaskUpdate{Status: StatusCompleted, Code: "for x in y: pass"}.Apply(orig)

	if got.ID != "t1" || got.TopicID != "topic" || got.Title != "Loops" || got.Description != "Write a loop" {
		t.Fatalf("immutable fields changed: %+v", got)
	}
	if got.Status != StatusCompleted || got.Code != "for x in y: pass" || got.Feedback != "" {
		t.Fatalf("mutable fields not replaced: %+v", got)
	}
}

func TestSortedTopics(t *testing.T) {
	got := SortedTopics(map[string]string{"b": "B", "a": "A", "default": "General Chat"})
	if len(got) != 3 || got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "default" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestFilterAndSortTasks(t *testing.T) {
	now := time.Now()
	tasks := []Task{
		{ID: "3", TopicID: "x", CreatedAt: now.Add(2 * time.Second)},
		{ID: "1", TopicID: "y", CreatedAt: now},
		{ID: "2", TopicID: "x", CreatedAt: now},
	}
	SortTasks(tasks)
	if tasks[0].ID != "1" || tasks[1].ID != "2" || tasks[2].ID != "3" {
		t.Fatalf("unexpected sort: %+v", tasks)
	}
	if got := FilterTasks(tasks, "x"); len(got) != 2 || got[0].ID != "2" {
		t.Fatalf("unexpected filter: %+v", got)
	}
	if got := FilterTasks(tasks, ""); len(got) != 3 {
		t.Fatalf("empty filter should return all, got %d", len(got))
	}
}
