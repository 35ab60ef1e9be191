package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/taskflow/internal/apperr"
	"github.com/iliyamo/taskflow/internal/cache"
	"github.com/iliyamo/taskflow/internal/model"
)

// TaskInput is the payload of task creation.
type TaskInput struct {
	ProjectID    string
	Title        string
	Description  string
	Status       model.TaskStatus
	Priority     model.TaskPriority
	AssignedToID string
	DueDate      *time.Time
}

// TaskPatch holds the fields of an update; nil fields are unchanged.  An
// empty AssignedToID unassigns the task.
type TaskPatch struct {
	Title        *string
	Description  *string
	Priority     *model.TaskPriority
	AssignedToID *string
	DueDate      *time.Time
}

// ProjectReader returns a project the actor may read.
type ProjectReader interface {
	Get(ctx context.Context, actor, id string) (model.Project, error)
}

// statusRoles may change any task's status; other members only their own.
var statusRoles = []model.Role{model.RoleAdmin, model.RoleProjectManager, model.RoleLead}

// TaskService owns tasks and implements TaskLookupPort.
type TaskService struct {
	tasks    TaskStore
	members  MemberStore
	projects ProjectReader
	cache    *cache.Layer
	events   Emitter
	log      *zap.Logger
}

func NewTaskService(tasks TaskStore, members MemberStore, projects ProjectReader, c *cache.Layer, bus Emitter, log *zap.Logger) *TaskService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskService{tasks: tasks, members: members, projects: projects, cache: c, events: bus, log: log.Named("tasks")}
}

// Create adds a task to in.ProjectID.  An assignee must be a member.
func (s *TaskService) Create(ctx context.Context, actor string, in TaskInput) (model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Task{}, apperr.NewBadRequest("title is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return model.Task{}, apperr.NewBadRequest("unknown status")
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return model.Task{}, apperr.NewBadRequest("unknown priority")
	}
	if err := s.checkAssignee(ctx, in.ProjectID, in.AssignedToID); err != nil {
		return model.Task{}, err
	}
	t := model.Task{
		ProjectID:    in.ProjectID,
		Title:        title,
		Description:  in.Description,
		Status:       in.Status,
		Priority:     in.Priority,
		AssignedToID: in.AssignedToID,
		DueDate:      in.DueDate,
	}
	if err := s.tasks.Create(ctx, &t); err != nil {
		return model.Task{}, storeErr(err, "task already exists")
	}
	s.cache.Invalidate(ctx, cache.TaskChanged(t.ProjectID, t.ID, t.AssignedToID))
	emit(s.events, t.ProjectID, actor, model.ActionTaskCreated, fmt.Sprintf("task %q created", t.Title))
	return t, nil
}

// Get returns a live task.
func (s *TaskService) Get(ctx context.Context, id string) (model.Task, error) {
	t, err := cache.GetOrLoad(ctx, s.cache, cache.TaskDetail(id), func(ctx context.Context) (model.Task, error) {
		return s.tasks.GetByID(ctx, id)
	})
	return t, storeErr(err, "task not found")
}

// TaskProjectID implements TaskLookupPort.
func (s *TaskService) TaskProjectID(ctx context.Context, taskID string) (string, error) {
	t, err := s.Get(ctx, taskID)
	if err != nil {
		return "", err
	}
	return t.ProjectID, nil
}

// Update applies patch to a task.
func (s *TaskService) Update(ctx context.Context, actor, id string, patch TaskPatch) (model.Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return model.Task{}, storeErr(err, "task not found")
	}
	prevAssignee := t.AssignedToID
	var changed []string
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return model.Task{}, apperr.NewBadRequest("title cannot be empty")
		}
		if title != t.Title {
			t.Title = title
			changed = append(changed, "title")
		}
	}
	if patch.Description != nil && *patch.Description != t.Description {
		t.Description = *patch.Description
		changed = append(changed, "description")
	}
	if patch.Priority != nil && *patch.Priority != t.Priority {
		if !patch.Priority.Valid() {
			return model.Task{}, apperr.NewBadRequest("unknown priority")
		}
		t.Priority = *patch.Priority
		changed = append(changed, "priority")
	}
	if patch.AssignedToID != nil && *patch.AssignedToID != t.AssignedToID {
		if err := s.checkAssignee(ctx, t.ProjectID, *patch.AssignedToID); err != nil {
			return model.Task{}, err
		}
		t.AssignedToID = *patch.AssignedToID
		changed = append(changed, "assignee")
	}
	if patch.DueDate != nil && (t.DueDate == nil || !patch.DueDate.Equal(*t.DueDate)) {
		d := patch.DueDate.UTC()
		t.DueDate = &d
		changed = append(changed, "due date")
	}
	if len(changed) == 0 {
		return t, nil
	}
	if err := s.tasks.Update(ctx, &t); err != nil {
		return model.Task{}, storeErr(err, "task not found")
	}
	s.cache.Invalidate(ctx, cache.TaskChanged(t.ProjectID, t.ID, prevAssignee, t.AssignedToID))
	emit(s.events, t.ProjectID, actor, model.ActionTaskUpdated,
		fmt.Sprintf("task %q updated: %s", t.Title, strings.Join(changed, ", ")))
	return t, nil
}

// UpdateStatus changes the status.  ADMIN, PROJECT_MANAGER and LEAD may
// change any task; anyone else only a task assigned to them.
func (s *TaskService) UpdateStatus(ctx context.Context, actor string, role model.Role, id string, status model.TaskStatus) (model.Task, error) {
	if !status.Valid() {
		return model.Task{}, apperr.NewBadRequest("unknown status")
	}
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return model.Task{}, storeErr(err, "task not found")
	}
	if !Allow(statusRoles, role) && (t.AssignedToID == "" || t.AssignedToID != actor) {
		return model.Task{}, apperr.NewForbidden("only ADMIN, PROJECT_MANAGER, LEAD or the assignee may change the status")
	}
	if t.Status == status {
		return t, nil
	}
	old := t.Status
	t.Status = status
	if err := s.tasks.Update(ctx, &t); err != nil {
		return model.Task{}, storeErr(err, "task not found")
	}
	s.cache.Invalidate(ctx, cache.TaskChanged(t.ProjectID, t.ID, t.AssignedToID))
	emit(s.events, t.ProjectID, actor, model.ActionTaskStatusUpdated,
		fmt.Sprintf("task %q status changed from %s to %s", t.Title, old, status))
	return t, nil
}

// Delete soft-deletes a task.
func (s *TaskService) Delete(ctx context.Context, actor, id string) error {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return storeErr(err, "task not found")
	}
	if err := s.tasks.SoftDelete(ctx, id); err != nil {
		return storeErr(err, "task not found")
	}
	s.cache.Invalidate(ctx, cache.TaskChanged(t.ProjectID, t.ID, t.AssignedToID))
	emit(s.events, t.ProjectID, actor, model.ActionTaskDeleted, fmt.Sprintf("task %q deleted", t.Title))
	return nil
}

// ListByProject returns a filtered page of a project's tasks.  PRIVATE
// projects require membership.
func (s *TaskService) ListByProject(ctx context.Context, actor, projectID string, f model.TaskFilter, pg model.Pagination) (model.Page[model.Task], error) {
	if f.Status != "" && !f.Status.Valid() {
		return model.Page[model.Task]{}, apperr.NewBadRequest("unknown status")
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return model.Page[model.Task]{}, apperr.NewBadRequest("unknown priority")
	}
	if _, err := s.projects.Get(ctx, actor, projectID); err != nil {
		return model.Page[model.Task]{}, err
	}
	return cache.GetOrLoad(ctx, s.cache, cache.ProjectTasks(projectID, f, pg), func(ctx context.Context) (model.Page[model.Task], error) {
		rows, total, err := s.tasks.ListByProject(ctx, projectID, f, pg)
		if err != nil {
			return model.Page[model.Task]{}, storeErr(err, "")
		}
		return model.NewPage(rows, total, pg.Page, pg.Limit), nil
	})
}

// ListMine returns a page of the tasks assigned to actor.
func (s *TaskService) ListMine(ctx context.Context, actor string, pg model.Pagination) (model.Page[model.Task], error) {
	return cache.GetOrLoad(ctx, s.cache, cache.UserTasks(actor, pg), func(ctx context.Context) (model.Page[model.Task], error) {
		rows, total, err := s.tasks.ListByAssignee(ctx, actor, pg)
		if err != nil {
			return model.Page[model.Task]{}, storeErr(err, "")
		}
		return model.NewPage(rows, total, pg.Page, pg.Limit), nil
	})
}

func (s *TaskService) checkAssignee(ctx context.Context, projectID, userID string) error {
	if userID == "" {
		return nil
	}
	if _, err := s.members.Get(ctx, projectID, userID); err != nil {
		if apperr.KindOf(storeErr(err, "")) == apperr.KindNotFound {
			return apperr.NewBadRequest("assignee must be a project member")
		}
		return storeErr(err, "")
	}
	return nil
}
