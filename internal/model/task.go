package model

import "time"

type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
	TaskBacklog    TaskStatus = "BACKLOG"
	TaskCanSolve   TaskStatus = "CAN_SOLVE"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone, TaskBacklog, TaskCanSolve:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Task mirrors the `tasks` table.  ProjectID never changes after creation
// and is what indirect role resolution keys on.
type Task struct {
	ID           string       `json:"id"`
	ProjectID    string       `json:"projectId"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Status       TaskStatus   `json:"status"`
	Priority     TaskPriority `json:"priority"`
	AssignedToID string       `json:"assignedToId,omitempty"`
	DueDate      *time.Time   `json:"dueDate,omitempty"`
	IsDeleted    bool         `json:"-"`
	DeletedAt    *time.Time   `json:"-"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// TaskFilter narrows a project task listing.  Zero values disable a filter.
type TaskFilter struct {
	Status   TaskStatus
	Priority TaskPriority
	Search   string
}

// IsDefault reports whether no filter is applied.
func (f TaskFilter) IsDefault() bool {
	return f.Status == "" && f.Priority == "" && f.Search == ""
}
