package cache

import (
	"crypto/sha1"
	"fmt"
	"strings"

	"github.com/iliyamo/taskflow/internal/model"
)

// Key kinds double as the metric label for lookups.
const (
	KindProjectDetail  = "project_detail"
	KindUserProjects   = "user_projects"
	KindProjectMembers = "project_members"
	KindMembership     = "membership"
	KindTaskDetail     = "task_detail"
	KindProjectTasks   = "project_tasks"
	KindUserTasks      = "user_tasks_assigned"
	KindUserProfile    = "user_profile"
)

// Key addresses one cache entry.  A key is recorded in the index of each
// of its Scopes so the whole family can be invalidated without knowing
// which pages or filters were read.
type Key struct {
	Kind   string
	Name   string
	Scopes []Scope
}

// Scope names a family of listing keys.
type Scope string

func ProjectDetail(projectID string) Key {
	return Key{Kind: KindProjectDetail, Name: "project:detail:" + projectID}
}

func UserProjectsScope(userID string) Scope { return Scope("user:projects:" + userID) }

// AllUserProjectsScope lists every user's project listing.  A PUBLIC
// project appears in all of them.
const AllUserProjectsScope Scope = "user:projects:*"

// UserProjects is one page of the projects visible to userID.
func UserProjects(userID string, pg model.Pagination) Key {
	s := UserProjectsScope(userID)
	return Key{Kind: KindUserProjects, Name: pageName(s, pg), Scopes: []Scope{s, AllUserProjectsScope}}
}

func ProjectMembersScope(projectID string) Scope { return Scope("project:members:" + projectID) }

func ProjectMembers(projectID string, pg model.Pagination) Key {
	s := ProjectMembersScope(projectID)
	return Key{Kind: KindProjectMembers, Name: pageName(s, pg), Scopes: []Scope{s}}
}

// Membership holds the role of userID in projectID for the resolver.
func Membership(projectID, userID string) Key {
	return Key{Kind: KindMembership, Name: "project:member:" + projectID + ":" + userID}
}

func TaskDetail(taskID string) Key {
	return Key{Kind: KindTaskDetail, Name: "task:detail:" + taskID}
}

func ProjectTasksScope(projectID string) Scope { return Scope("project:tasks:" + projectID) }

// ProjectTasks is one filtered page of a project's tasks.  The filter is
// folded into a short fingerprint so arbitrary search text stays out of the
// key.
func ProjectTasks(projectID string, f model.TaskFilter, pg model.Pagination) Key {
	s := ProjectTasksScope(projectID)
	name := pageName(s, pg)
	if !f.IsDefault() {
		name += ":f" + filterFingerprint(f)
	}
	return Key{Kind: KindProjectTasks, Name: name, Scopes: []Scope{s}}
}

func UserTasksScope(userID string) Scope { return Scope("user:tasks:" + userID) }

// UserTasks is one page of the tasks assigned to userID.
func UserTasks(userID string, pg model.Pagination) Key {
	s := UserTasksScope(userID)
	return Key{Kind: KindUserTasks, Name: pageName(s, pg), Scopes: []Scope{s}}
}

func UserProfile(userID string) Key {
	return Key{Kind: KindUserProfile, Name: "user:profile:" + userID}
}

func pageName(s Scope, pg model.Pagination) string {
	return fmt.Sprintf("%s:p%d:l%d", s, pg.Page, pg.Limit)
}

func filterFingerprint(f model.TaskFilter) string {
	raw := strings.Join([]string{string(f.Status), string(f.Priority), strings.TrimSpace(f.Search)}, "\x1f")
	sum := sha1.Sum([]byte(raw))
	return fmt.Sprintf("%x", sum[:8])
}
