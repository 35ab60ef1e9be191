package service

import (
	"context"
	"slices"

	"github.com/iliyamo/taskflow/internal/apperr"
	"github.com/iliyamo/taskflow/internal/model"
)

// ErrMissingReference is returned when a request names neither a project
// nor a task.
var ErrMissingReference = apperr.NewBadRequest("project or task reference required")

// ErrProjectMismatch is returned when a request names a project other
// than the one its task belongs to.
var ErrProjectMismatch = apperr.NewForbidden("task does not belong to this project")

// Reference is the project locator taken from a request.  A task always
// decides the project it belongs to: when both are set they must agree.
type Reference struct {
	ProjectID string
	TaskID    string
}

// MembershipResolver finds the caller's membership in the project a
// request targets, deriving the project from a task when needed.  Task
// derived access always requires membership, even for PUBLIC projects.
type MembershipResolver struct {
	members ProjectMembershipPort
	tasks   TaskLookupPort
}

func NewMembershipResolver(members ProjectMembershipPort, tasks TaskLookupPort) *MembershipResolver {
	return &MembershipResolver{members: members, tasks: tasks}
}

// Resolve fails with NotFound for an absent project or task, Forbidden
// when the caller is not a member or names a project the task is not in,
// and BadRequest without a reference.
func (r *MembershipResolver) Resolve(ctx context.Context, userID string, ref Reference) (model.Membership, error) {
	projectID := ref.ProjectID
	if ref.TaskID != "" {
		id, err := r.tasks.TaskProjectID(ctx, ref.TaskID)
		if err != nil {
			return model.Membership{}, err
		}
		if projectID != "" && projectID != id {
			return model.Membership{}, ErrProjectMismatch
		}
		projectID = id
	}
	if projectID == "" {
		return model.Membership{}, ErrMissingReference
	}
	m, ok, err := r.members.Membership(ctx, projectID, userID)
	if err != nil {
		return model.Membership{}, err
	}
	if !ok {
		return model.Membership{}, apperr.NewForbidden("not a member of this project")
	}
	return m, nil
}

// Allow reports whether resolved satisfies required.  An empty list means
// any authenticated caller.  Roles are matched exactly: listing LEAD does
// not admit ADMIN.
func Allow(required []model.Role, resolved model.Role) bool {
	return len(required) == 0 || slices.Contains(required, resolved)
}

// ErrRoleDenied is the RoleGate rejection, distinct from the not-a-member
// Forbidden returned by Resolve.
func ErrRoleDenied(resolved model.Role) error {
	return apperr.NewForbidden("role " + string(resolved) + " may not perform this action")
}
