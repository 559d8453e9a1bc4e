// Package project defines the project and task-tree model and the in-memory
// store that owns it.
package project

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

var (
	// ErrEmptyTitle is returned when a project or task title is blank.
	ErrEmptyTitle = errors.New("title must not be empty")
	// ErrInvalidStatus is returned for a status outside Statuses.
	ErrInvalidStatus = errors.New("invalid task status")
	// ErrInvalidDates is returned when a project starts after it ends.
	ErrInvalidDates = errors.New("start date must not be after end date")
	// ErrNegativeValue is returned when a project or task value is below zero.
	ErrNegativeValue = errors.New("value must not be negative")
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// ParseStatus accepts the canonical labels as well as snake, kebab and camel
// case spellings ("in_progress", "in-progress", "InProgress").
func ParseStatus(raw string) (Status, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalidStatus
	}
	s = splitCamel(s)
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	// Casers carry state, so one is built per call.
	st := Status(cases.Title(language.English).String(s))
	if !st.Valid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// splitCamel inserts a space at lower-to-upper transitions.
func splitCamel(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		isUpper := r >= 'A' && r <= 'Z'
		if isUpper && prevLower {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prevLower = r >= 'a' && r <= 'z'
	}
	return b.String()
}

// Task is a node in a project's task tree.
type Task struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Status      Status    `json:"status" yaml:"status"`
	LastUpdated time.Time `json:"last_updated" yaml:"last_updated"`
	Value       float64   `json:"value" yaml:"value"`
	SubTasks    []Task    `json:"sub_tasks" yaml:"sub_tasks"`
}

// IsLeaf reports whether the task has no subtasks.
func (t Task) IsLeaf() bool { return len(t.SubTasks) == 0 }

// Clone returns a deep copy of the task and its subtree.
func (t Task) Clone() Task {
	t.SubTasks = cloneTasks(t.SubTasks)
	return t
}

// Project is a construction project with its ordered root tasks.
type Project struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	StartDate   time.Time `json:"start_date" yaml:"start_date"`
	EndDate     time.Time `json:"end_date" yaml:"end_date"`
	Value       float64   `json:"value" yaml:"value"`
	Tasks       []Task    `json:"tasks" yaml:"tasks"`
}

// Clone returns a deep copy of the project.
func (p Project) Clone() Project {
	p.Tasks = cloneTasks(p.Tasks)
	return p
}

// ProjectInput carries the caller-supplied fields of a new project.
type ProjectInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Value       float64   `json:"value"`
}

// TaskInput carries the caller-supplied fields of a new task.
type TaskInput struct {
	Title string  `json:"title"`
	Value float64 `json:"value"`
}

// cloneTasks deep-copies a task slice. Empty input yields an empty, non-nil
// slice so JSON renders [] rather than null.
func cloneTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
