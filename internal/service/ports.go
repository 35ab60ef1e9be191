// Package service holds the authorization core (tokens, the auth gate,
// membership resolution and the role gate) and the business operations
// that run behind it.  Services depend on the narrow store interfaces
// below, never on each other's concrete types.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/taskflow/internal/apperr"
	"github.com/iliyamo/taskflow/internal/events"
	"github.com/iliyamo/taskflow/internal/model"
	"github.com/iliyamo/taskflow/internal/repository"
)

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	UpdateName(ctx context.Context, id, name string) error
	UpdatePassword(ctx context.Context, id, hash string) error
	SetStatus(ctx context.Context, id string, status model.UserStatus) error
	MarkVerified(ctx context.Context, email string) error
}

// RefreshStore holds the single refresh-token slot per user.
type RefreshStore interface {
	StoreRefresh(ctx context.Context, userID, hash string) error
	RefreshHash(ctx context.Context, userID string) (string, error)
	SwapRefresh(ctx context.Context, userID, oldHash, newHash string) (bool, error)
	ClearRefresh(ctx context.Context, userID string) error
}

type OTPStore interface {
	Upsert(ctx context.Context, o model.OTP) error
	Get(ctx context.Context, email string) (model.OTP, error)
	IncrementAttempts(ctx context.Context, email string) error
	Delete(ctx context.Context, email string) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type ProjectStore interface {
	Create(ctx context.Context, p *model.Project) error
	GetByID(ctx context.Context, id string) (model.Project, error)
	ListVisible(ctx context.Context, userID string, pg model.Pagination) ([]model.Project, int, error)
	Update(ctx context.Context, p *model.Project) error
	SoftDelete(ctx context.Context, id string) error
	PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error)
}

type MemberStore interface {
	Get(ctx context.Context, projectID, userID string) (model.Membership, error)
	Add(ctx context.Context, m *model.Membership) error
	UpdateRole(ctx context.Context, projectID, userID string, role model.Role) error
	Remove(ctx context.Context, projectID, userID string) error
	List(ctx context.Context, projectID string, pg model.Pagination) ([]model.MemberView, int, error)
	UserIDs(ctx context.Context, projectID string) ([]string, error)
	ProjectIDs(ctx context.Context, userID string) ([]string, error)
}

type TaskStore interface {
	Create(ctx context.Context, t *model.Task) error
	GetByID(ctx context.Context, id string) (model.Task, error)
	Update(ctx context.Context, t *model.Task) error
	SoftDelete(ctx context.Context, id string) error
	ListByProject(ctx context.Context, projectID string, f model.TaskFilter, pg model.Pagination) ([]model.Task, int, error)
	ListByAssignee(ctx context.Context, userID string, pg model.Pagination) ([]model.Task, int, error)
	RefsByProject(ctx context.Context, projectID string) ([]repository.TaskRef, error)
	PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error)
}

type ActivityStore interface {
	Append(ctx context.Context, l model.ActivityLog) error
	ListByProject(ctx context.Context, projectID string, pg model.Pagination) ([]model.ActivityLog, int, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Emitter accepts domain events without blocking.  A false return means
// the event was dropped; callers never act on it.
type Emitter interface {
	Emit(e events.Event) bool
}

// Mailer sends a plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ProjectMembershipPort answers whether userID is a member of a live
// project.  ok is false when the project exists but userID has no row.
type ProjectMembershipPort interface {
	Membership(ctx context.Context, projectID, userID string) (m model.Membership, ok bool, err error)
}

// TaskLookupPort maps a live task to its project.
type TaskLookupPort interface {
	TaskProjectID(ctx context.Context, taskID string) (string, error)
}

// storeErr classifies a repository error.  Not found and conflict map to
// caller-facing kinds with msg; everything else is Internal.
func storeErr(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.Wrap(err, apperr.KindNotFound, msg)
	case errors.Is(err, repository.ErrConflict):
		return apperr.Wrap(err, apperr.KindConflict, msg)
	case apperr.KindOf(err) != apperr.KindInternal:
		return err
	default:
		return apperr.NewInternal("storage failure", err)
	}
}

func emit(bus Emitter, projectID, userID string, action model.ActivityAction, details string) {
	if bus == nil {
		return
	}
	bus.Emit(events.Event{ProjectID: projectID, UserID: userID, Action: action, Details: details})
}
