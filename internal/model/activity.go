package model

import "time"

// ActivityAction is the closed set of audited domain events.
type ActivityAction string

const (
	ActionProjectCreated     ActivityAction = "PROJECT_CREATED"
	ActionProjectUpdated     ActivityAction = "PROJECT_UPDATED"
	ActionProjectDeleted     ActivityAction = "PROJECT_DELETED"
	ActionTaskCreated        ActivityAction = "TASK_CREATED"
	ActionTaskUpdated        ActivityAction = "TASK_UPDATED"
	ActionTaskStatusUpdated  ActivityAction = "TASK_STATUS_UPDATED"
	ActionTaskDeleted        ActivityAction = "TASK_DELETED"
	ActionMemberAdded        ActivityAction = "MEMBER_ADDED"
	ActionMemberRemoved      ActivityAction = "MEMBER_REMOVED"
	ActionMemberRoleChanged  ActivityAction = "MEMBER_ROLE_CHANGED"
	ActionInvitationSent     ActivityAction = "INVITATION_SENT"
	ActionInvitationAccepted ActivityAction = "INVITATION_ACCEPTED"
)

// ActivityLog mirrors the append-only `activity_logs` table.
type ActivityLog struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"projectId"`
	UserID    string         `json:"userId"`
	Action    ActivityAction `json:"action"`
	Details   string         `json:"details"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Page is the paginated envelope shared by every listing endpoint.
type Page[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}

// PageMeta describes the position of a page within the full result set.
type PageMeta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	LastPage int `json:"lastPage"`
}

// NewPage builds a page envelope; LastPage is ceil(total/limit).
func NewPage[T any](data []T, total, page, limit int) Page[T] {
	if data == nil {
		data = []T{}
	}
	last := 0
	if limit > 0 {
		last = (total + limit - 1) / limit
	}
	return Page[T]{Data: data, Meta: PageMeta{Total: total, Page: page, LastPage: last}}
}

// Pagination holds a normalised page request.
type Pagination struct {
	Page  int
	Limit int
}

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// NewPagination clamps page and limit to sane bounds.
func NewPagination(page, limit int) Pagination {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Pagination{Page: page, Limit: limit}
}

// Offset returns the row offset of the page.
func (p Pagination) Offset() int { return (p.Page - 1) * p.Limit }
