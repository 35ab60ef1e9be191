package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/taskflow/internal/apperr"
	"github.com/iliyamo/taskflow/internal/model"
)

func TestMyTasksReflectStatusChange(t *testing.T) {
	h := newHarness(t)
	owner, dev := h.user(t, "Owner"), h.user(t, "Dev")
	p := h.project(t, owner, model.Public, map[string]model.Role{dev.ID: model.RoleMember})
	ctx := context.Background()
	pg := model.NewPagination(0, 0)

	task, err := h.tasks.Create(ctx, owner.ID, TaskInput{ProjectID: p.ID, Title: "Write docs", AssignedToID: dev.ID})
	require.NoError(t, err)

	mine, err := h.tasks.ListMine(ctx, dev.ID, pg)
	require.NoError(t, err)
	require.Len(t, mine.Data, 1)
	assert.Equal(t, model.TaskTodo, mine.Data[0].Status)

	_, err = h.tasks.UpdateStatus(ctx, dev.ID, model.RoleMember, task.ID, model.TaskInProgress)
	require.NoError(t, err)

	mine, err = h.tasks.ListMine(ctx, dev.ID, pg)
	require.NoError(t, err)
	require.Len(t, mine.Data, 1)
	assert.Equal(t, model.TaskInProgress, mine.Data[0].Status)

	got, err := h.tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskInProgress, got.Status)

	last := h.bus.got[len(h.bus.got)-1]
	assert.Equal(t, model.ActionTaskStatusUpdated, last.Action)
	assert.Equal(t, `task "Write docs" status changed from TODO to IN_PROGRESS`, last.Details)
}

func TestUpdateStatusPermissions(t *testing.T) {
	h := newHarness(t)
	owner, dev, other := h.user(t, "Owner"), h.user(t, "Dev"), h.user(t, "Other")
	p := h.project(t, owner, model.Public, map[string]model.Role{
		dev.ID: model.RoleMember, other.ID: model.RoleMember,
	})
	ctx := context.Background()
	task, err := h.tasks.Create(ctx, owner.ID, TaskInput{ProjectID: p.ID, Title: "T", AssignedToID: dev.ID})
	require.NoError(t, err)

	_, err = h.tasks.UpdateStatus(ctx, other.ID, model.RoleMember, task.ID, model.TaskDone)
	assert.ErrorIs(t, err, apperr.Forbidden)

	for _, role := range []model.Role{model.RoleAdmin, model.RoleProjectManager, model.RoleLead} {
		_, err = h.tasks.UpdateStatus(ctx, other.ID, role, task.ID, model.TaskInProgress)
		assert.NoError(t, err, role)
	}
	_, err = h.tasks.UpdateStatus(ctx, dev.ID, model.RoleMember, task.ID, model.TaskDone)
	assert.NoError(t, err)

	_, err = h.tasks.UpdateStatus(ctx, dev.ID, model.RoleMember, task.ID, "FINISHED")
	assert.ErrorIs(t, err, apperr.BadRequest)
}

func TestUnassignedTaskStatusNeedsElevatedRole(t *testing.T) {
	h := newHarness(t)
	owner, dev := h.user(t, "Owner"), h.user(t, "Dev")
	p := h.project(t, owner, model.Public, map[string]model.Role{dev.ID: model.RoleUser})
	task, err := h.tasks.Create(context.Background(), owner.ID, TaskInput{ProjectID: p.ID, Title: "T"})
	require.NoError(t, err)

	_, err = h.tasks.UpdateStatus(context.Background(), dev.ID, model.RoleUser, task.ID, model.TaskDone)
	assert.ErrorIs(t, err, apperr.Forbidden)
}

func TestAssigneeMustBeMember(t *testing.T) {
	h := newHarness(t)
	owner, outsider := h.user(t, "Owner"), h.user(t, "Outsider")
	p := h.project(t, owner, model.Public, nil)
	ctx := context.Background()

	_, err := h.tasks.Create(ctx, owner.ID, TaskInput{ProjectID: p.ID, Title: "T", AssignedToID: outsider.ID})
	assert.ErrorIs(t, err, apperr.BadRequest)
	assert.Equal(t, "assignee must be a project member", apperr.Message(err))

	task, err := h.tasks.Create(ctx, owner.ID, TaskInput{ProjectID: p.ID, Title: "T"})
	require.NoError(t, err)
	_, err = h.tasks.Update(ctx, owner.ID, task.ID, TaskPatch{AssignedToID: &outsider.ID})
	assert.ErrorIs(t, err, apperr.BadRequest)
}

func TestReassignRefreshesBothAssignees(t *testing.T) {
	h := newHarness(t)
	owner, a, b := h.user(t, "Owner"), h.user(t, "Alice"), h.user(t, "Bob")
	p := h.project(t, owner, model.Public, map[string]model.Role{a.ID: model.RoleMember, b.ID: model.RoleMember})
	ctx := context.Background()
	pg := model.NewPagination(1, 10)

	task, err := h.tasks.Create(ctx, owner.ID, TaskInput{ProjectID: p.ID, Title: "T", AssignedToID: a.ID})
	require.NoError(t, err)
	for _, u := range []string{a.ID, b.ID} {
		_, err := h.tasks.ListMine(ctx, u, pg)
		require.NoError(t, err)
	}

	_, err = h.tasks.Update(ctx, owner.ID, task.ID, TaskPatch{AssignedToID: &b.ID})
	require.NoError(t, err)

	mineA, err := h.tasks.ListMine(ctx, a.ID, pg)
	require.NoError(t, err)
	mineB, err := h.tasks.ListMine(ctx, b.ID, pg)
	require.NoError(t, err)
	assert.Zero(t, mineA.Meta.Total)
	assert.Equal(t, 1, mineB.Meta.Total)
}

func TestFilteredProjectListingsRefreshOnCreate(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, "Owner")
	p := h.project(t, owner, model.Public, nil)
	ctx := context.Background()
	pg := model.NewPagination(1, 10)
	urgent := model.TaskFilter{Priority: model.PriorityHigh}

	for _, f := range []model.TaskFilter{{}, urgent} {
		page, err := h.tasks.ListByProject(ctx, owner.ID, p.ID, f, pg)
		require.NoError(t, err)
		require.Zero(t, page.Meta.Total)
	}
	_, err := h.tasks.Create(ctx, owner.ID, TaskInput{ProjectID: p.ID, Title: "Hot", Priority: model.PriorityHigh})
	require.NoError(t, err)

	for _, f := range []model.TaskFilter{{}, urgent} {
		page, err := h.tasks.ListByProject(ctx, owner.ID, p.ID, f, pg)
		require.NoError(t, err)
		assert.Equal(t, 1, page.Meta.Total, "filter %+v", f)
	}

	_, err = h.tasks.ListByProject(ctx, owner.ID, p.ID, model.TaskFilter{Status: "LATER"}, pg)
	assert.ErrorIs(t, err, apperr.BadRequest)
}

func TestPrivateProjectTasksNeedMembership(t *testing.T) {
	h := newHarness(t)
	owner, stranger := h.user(t, "Owner"), h.user(t, "Stranger")
	p := h.project(t, owner, model.Private, nil)

	_, err := h.tasks.ListByProject(context.Background(), stranger.ID, p.ID, model.TaskFilter{}, model.NewPagination(1, 10))
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, err = h.tasks.ListByProject(context.Background(), owner.ID, p.ID, model.TaskFilter{}, model.NewPagination(1, 10))
	assert.NoError(t, err)
}

func TestDeleteTaskDropsDetail(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, "Owner")
	p := h.project(t, owner, model.Public, nil)
	ctx := context.Background()
	task, err := h.tasks.Create(ctx, owner.ID, TaskInput{ProjectID: p.ID, Title: "T"})
	require.NoError(t, err)
	_, err = h.tasks.Get(ctx, task.ID)
	require.NoError(t, err)

	require.NoError(t, h.tasks.Delete(ctx, owner.ID, task.ID))
	_, err = h.tasks.Get(ctx, task.ID)
	assert.ErrorIs(t, err, apperr.NotFound)
	assert.ErrorIs(t, h.tasks.Delete(ctx, owner.ID, task.ID), apperr.NotFound)
}
