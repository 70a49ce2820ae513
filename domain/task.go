package domain

import (
	"time"
)

// Status determines which board column a task belongs to.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// ValidStatus reports whether s is one of the three board columns.
func ValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Priority is the task urgency class.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriority reports whether p is a known priority class.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task represents a single board item. The position of a task inside the
// global task slice is significant: it determines render order within its
// status column.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	Assignee    string     `json:"assignee,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TaskPatch carries a partial task update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	Assignee    *string    `json:"assignee,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// Apply copies the non-nil patch fields onto t and stamps updatedAt.
func (p TaskPatch) Apply(t Task, now time.Time) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Assignee != nil {
		t.Assignee = *p.Assignee
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate
	}
	t.UpdatedAt = now
	return t
}

// KanbanFilters controls which tasks are visible on the board, not which
// exist. The zero value of either field means "all".
type KanbanFilters struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// VisibleTasks returns the tasks matching f, preserving global order.
func VisibleTasks(tasks []Task, f KanbanFilters) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Status != "" && f.Status != "all" && string(t.Status) != f.Status {
			continue
		}
		if f.Priority != "" && f.Priority != "all" && string(t.Priority) != f.Priority {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ColumnTasks returns the ordered sub-list of tasks in the given column.
func ColumnTasks(tasks []Task, status Status) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}
