package domain

import (
	"strings"
	"time"
)

// Status is the workflow stage of a task. Each status owns one board column.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// Statuses lists the board columns in display order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusReview, StatusDone}

var statusLabels = map[Status]string{
	StatusTodo:       "To Do",
	StatusInProgress: "In Progress",
	StatusReview:     "In Testing",
	StatusDone:       "Production Ready",
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the column heading shown for the status.
func (s Status) Label() string {
	return statusLabels[s]
}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task represents a single card on the board.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	AssignedTo  string    `json:"assignedTo"`
	DueDate     Date      `json:"dueDate"`
	Tags        []string  `json:"tags"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Overdue reports whether the task is past its due date and not yet done.
func (t Task) Overdue(now time.Time) bool {
	if t.DueDate.IsZero() || t.Status == StatusDone {
		return false
	}
	return t.DueDate.Before(DateOf(now))
}

func (t Task) clone() Task {
	if t.Tags != nil {
		t.Tags = append(make([]string, 0, len(t.Tags)), t.Tags...)
	}
	return t
}

// TaskFields carries the user editable part of a task.
type TaskFields struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	AssignedTo  string   `json:"assignedTo"`
	DueDate     Date     `json:"dueDate"`
	Tags        []string `json:"tags"`
	Status      Status   `json:"status"`
}

// Validate checks the required fields. An empty priority defaults to medium
// and an empty status to todo.
func (f *TaskFields) Validate() error {
	f.Title = strings.TrimSpace(f.Title)
	if f.Title == "" {
		return ErrTitleRequired
	}
	if f.Priority == "" {
		f.Priority = PriorityMedium
	}
	if !f.Priority.Valid() {
		return ErrInvalidPriority
	}
	if f.Status == "" {
		f.Status = StatusTodo
	}
	if !f.Status.Valid() {
		return ErrInvalidStatus
	}
	f.Tags = NormalizeTags(f.Tags)
	return nil
}

// ParseTags splits a comma separated tag list.
func ParseTags(raw string) []string {
	return NormalizeTags(strings.Split(raw, ","))
}

// NormalizeTags trims tags, drops empty entries and duplicates while keeping
// the first occurrence order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
