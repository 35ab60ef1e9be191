package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/taskflow/internal/model"
)

func TestSweepRemovesExpiredRows(t *testing.T) {
	db := newFakeDB()
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	db.activity = []model.ActivityLog{
		{ID: "a1", ProjectID: "p1", CreatedAt: old},
		{ID: "a2", ProjectID: "p1", CreatedAt: recent},
	}
	db.projects["p1"] = model.Project{ID: "p1"}
	db.projects["p2"] = model.Project{ID: "p2", IsDeleted: true, DeletedAt: &old}
	db.tasks["t1"] = model.Task{ID: "t1", ProjectID: "p2", IsDeleted: true, DeletedAt: &old}
	db.tasks["t2"] = model.Task{ID: "t2", ProjectID: "p1", IsDeleted: true, DeletedAt: &recent}
	db.otps["x@example.com"] = model.OTP{Email: "x@example.com", ExpiresAt: recent}
	db.otps["y@example.com"] = model.OTP{Email: "y@example.com", ExpiresAt: now.Add(time.Minute)}

	s := NewSweeper(fakeProjects{db}, fakeTasks{db}, fakeActivity{db}, fakeOTPs{db}, 30, nil)
	s.now = func() time.Time { return now }
	require.NoError(t, s.Sweep(ctx))

	require.Len(t, db.activity, 1)
	assert.Equal(t, "a2", db.activity[0].ID)
	assert.Contains(t, db.projects, "p1")
	assert.NotContains(t, db.projects, "p2")
	assert.NotContains(t, db.tasks, "t1")
	assert.Contains(t, db.tasks, "t2")
	assert.NotContains(t, db.otps, "x@example.com")
	assert.Contains(t, db.otps, "y@example.com")
}

func TestSweeperSchedule(t *testing.T) {
	s := NewSweeper(fakeProjects{newFakeDB()}, fakeTasks{newFakeDB()}, fakeActivity{newFakeDB()}, fakeOTPs{newFakeDB()}, 0, nil)
	assert.Equal(t, 30*24*time.Hour, s.retention)
	assert.Error(t, s.Start("not a schedule"))

	<-s.Stop().Done()
	require.NoError(t, s.Start("@every 1h"))
	<-s.Stop().Done()
}
