package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/taskflow/internal/apperr"
	"github.com/iliyamo/taskflow/internal/cache"
	"github.com/iliyamo/taskflow/internal/model"
	"github.com/iliyamo/taskflow/internal/repository"
)

// ProjectInput is the payload of project creation.
type ProjectInput struct {
	Name        string
	Description string
	Visibility  model.Visibility
}

// ProjectPatch holds the fields of an update; nil fields are unchanged.
type ProjectPatch struct {
	Name        *string
	Description *string
	Visibility  *model.Visibility
}

// ProjectService owns projects and answers membership questions for the
// resolver.
type ProjectService struct {
	projects ProjectStore
	members  MemberStore
	tasks    TaskStore
	cache    *cache.Layer
	events   Emitter
	log      *zap.Logger
}

func NewProjectService(projects ProjectStore, members MemberStore, tasks TaskStore, c *cache.Layer, bus Emitter, log *zap.Logger) *ProjectService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProjectService{projects: projects, members: members, tasks: tasks, cache: c, events: bus, log: log.Named("projects")}
}

// Create stores the project with the creator as its ADMIN member.
func (s *ProjectService) Create(ctx context.Context, actor string, in ProjectInput) (model.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Project{}, apperr.NewBadRequest("name is required")
	}
	if in.Visibility == "" {
		in.Visibility = model.Public
	}
	if !in.Visibility.Valid() {
		return model.Project{}, apperr.NewBadRequest("visibility must be PUBLIC or PRIVATE")
	}
	p := model.Project{Name: name, Description: in.Description, Visibility: in.Visibility, OwnerID: actor}
	if err := s.projects.Create(ctx, &p); err != nil {
		return model.Project{}, storeErr(err, "project already exists")
	}
	s.cache.Invalidate(ctx, cache.ProjectChanged(p.ID, p.Visibility == model.Public, actor).
		Merge(cache.MembershipChanged(p.ID, actor)))
	emit(s.events, p.ID, actor, model.ActionProjectCreated, fmt.Sprintf("project %q created", p.Name))
	return p, nil
}

// Get returns a project the actor may read: any PUBLIC project, or a
// PRIVATE one the actor is a member of.
func (s *ProjectService) Get(ctx context.Context, actor, id string) (model.Project, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return model.Project{}, err
	}
	if p.Visibility == model.Private {
		_, ok, err := s.Membership(ctx, id, actor)
		if err != nil {
			return model.Project{}, err
		}
		if !ok {
			return model.Project{}, apperr.NewForbidden("project is private")
		}
	}
	return p, nil
}

// List returns the page of projects visible to actor.
func (s *ProjectService) List(ctx context.Context, actor string, pg model.Pagination) (model.Page[model.Project], error) {
	return cache.GetOrLoad(ctx, s.cache, cache.UserProjects(actor, pg), func(ctx context.Context) (model.Page[model.Project], error) {
		rows, total, err := s.projects.ListVisible(ctx, actor, pg)
		if err != nil {
			return model.Page[model.Project]{}, storeErr(err, "")
		}
		return model.NewPage(rows, total, pg.Page, pg.Limit), nil
	})
}

// Update applies patch.  Role checks happen at the gate.
func (s *ProjectService) Update(ctx context.Context, actor, id string, patch ProjectPatch) (model.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return model.Project{}, storeErr(err, "project not found")
	}
	wasPublic := p.Visibility == model.Public
	var changed []string
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return model.Project{}, apperr.NewBadRequest("name cannot be empty")
		}
		if name != p.Name {
			p.Name = name
			changed = append(changed, "name")
		}
	}
	if patch.Description != nil && *patch.Description != p.Description {
		p.Description = *patch.Description
		changed = append(changed, "description")
	}
	if patch.Visibility != nil && *patch.Visibility != p.Visibility {
		if !patch.Visibility.Valid() {
			return model.Project{}, apperr.NewBadRequest("visibility must be PUBLIC or PRIVATE")
		}
		p.Visibility = *patch.Visibility
		changed = append(changed, "visibility")
	}
	if len(changed) == 0 {
		return p, nil
	}
	if err := s.projects.Update(ctx, &p); err != nil {
		return model.Project{}, storeErr(err, "project not found")
	}
	s.cache.Invalidate(ctx, s.projectInvalidation(ctx, p, wasPublic || p.Visibility == model.Public, actor))
	emit(s.events, p.ID, actor, model.ActionProjectUpdated, "updated "+strings.Join(changed, ", "))
	return p, nil
}

// Delete soft-deletes the project and its tasks.
func (s *ProjectService) Delete(ctx context.Context, actor, id string) error {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return storeErr(err, "project not found")
	}
	// Collected before the delete: soft-deleted tasks drop out of the query.
	refs, err := s.tasks.RefsByProject(ctx, id)
	if err != nil {
		return storeErr(err, "")
	}
	if err := s.projects.SoftDelete(ctx, id); err != nil {
		return storeErr(err, "project not found")
	}
	inv := s.projectInvalidation(ctx, p, p.Visibility == model.Public, actor)
	inv = inv.Merge(cache.TaskChanged(id, ""))
	for _, ref := range refs {
		inv = inv.Merge(cache.TaskChanged(id, ref.ID, ref.AssignedToID))
	}
	s.cache.Invalidate(ctx, inv)
	emit(s.events, id, actor, model.ActionProjectDeleted, fmt.Sprintf("project %q deleted", p.Name))
	return nil
}

// Membership implements ProjectMembershipPort.  A missing or deleted
// project is NotFound; an existing project without a row for userID
// yields ok == false.
func (s *ProjectService) Membership(ctx context.Context, projectID, userID string) (model.Membership, bool, error) {
	if _, err := s.load(ctx, projectID); err != nil {
		return model.Membership{}, false, err
	}
	m, err := cache.GetOrLoad(ctx, s.cache, cache.Membership(projectID, userID), func(ctx context.Context) (model.Membership, error) {
		return s.members.Get(ctx, projectID, userID)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return model.Membership{}, false, nil
	}
	if err != nil {
		return model.Membership{}, false, storeErr(err, "")
	}
	return m, true, nil
}

func (s *ProjectService) load(ctx context.Context, id string) (model.Project, error) {
	p, err := cache.GetOrLoad(ctx, s.cache, cache.ProjectDetail(id), func(ctx context.Context) (model.Project, error) {
		return s.projects.GetByID(ctx, id)
	})
	return p, storeErr(err, "project not found")
}

// projectInvalidation covers the detail entry, the member and membership
// entries and the listings of the owner, the actor and every member.
func (s *ProjectService) projectInvalidation(ctx context.Context, p model.Project, public bool, actor string) cache.Invalidation {
	viewers := []string{p.OwnerID, actor}
	ids, err := s.members.UserIDs(ctx, p.ID)
	if err != nil {
		// Owner and actor are still covered; TTL bounds the rest.
		s.log.Warn("list members for invalidation", zap.String("project_id", p.ID), zap.Error(err))
	}
	viewers = append(viewers, ids...)
	inv := cache.ProjectChanged(p.ID, public, viewers...)
	for _, id := range ids {
		inv = inv.Merge(cache.MembershipChanged(p.ID, id))
	}
	return inv
}
