package cache

// Invalidation accumulates the keys and scopes a mutation could have
// staled.  Duplicates are harmless.
type Invalidation struct {
	keys   []Key
	scopes []Scope
}

// Keys adds individual entries.
func (inv Invalidation) Keys(k ...Key) Invalidation {
	inv.keys = append(inv.keys[:len(inv.keys):len(inv.keys)], k...)
	return inv
}

// Scopes adds listing families.
func (inv Invalidation) Scopes(s ...Scope) Invalidation {
	inv.scopes = append(inv.scopes[:len(inv.scopes):len(inv.scopes)], s...)
	return inv
}

// Merge combines two invalidations.
func (inv Invalidation) Merge(other Invalidation) Invalidation {
	return inv.Keys(other.keys...).Scopes(other.scopes...)
}

func (inv Invalidation) Empty() bool { return len(inv.keys) == 0 && len(inv.scopes) == 0 }

// KeyNames and ScopeNames expose the contents for assertions.
func (inv Invalidation) KeyNames() []string {
	out := make([]string, len(inv.keys))
	for i, k := range inv.keys {
		out[i] = k.Name
	}
	return out
}

func (inv Invalidation) ScopeNames() []Scope { return append([]Scope(nil), inv.scopes...) }

// ProjectChanged covers a project create, update or delete: the detail
// entry and the listing of every user whose view of the project could
// change.  When the project is or was PUBLIC that is every user.
func ProjectChanged(projectID string, public bool, viewerIDs ...string) Invalidation {
	inv := Invalidation{}.Keys(ProjectDetail(projectID))
	if public {
		inv = inv.Scopes(AllUserProjectsScope)
	}
	for _, id := range viewerIDs {
		if id != "" {
			inv = inv.Scopes(UserProjectsScope(id))
		}
	}
	return inv
}

// MembershipChanged covers add, remove and role change of userID in
// projectID.  The member's own project listing changes too because PRIVATE
// projects appear in it only while they are a member.
func MembershipChanged(projectID, userID string) Invalidation {
	return Invalidation{}.
		Keys(ProjectDetail(projectID), Membership(projectID, userID)).
		Scopes(ProjectMembersScope(projectID), UserProjectsScope(userID))
}

// TaskChanged covers create, update, status change and delete of a task.
// assignees should hold the assignee before and after the mutation; an
// unassigned slot is passed as "".
func TaskChanged(projectID, taskID string, assignees ...string) Invalidation {
	inv := Invalidation{}.Scopes(ProjectTasksScope(projectID))
	if taskID != "" {
		inv = inv.Keys(TaskDetail(taskID))
	}
	seen := map[string]bool{}
	for _, a := range assignees {
		if a != "" && !seen[a] {
			seen[a] = true
			inv = inv.Scopes(UserTasksScope(a))
		}
	}
	return inv
}

// ProfileChanged covers profile, password and verification updates.
func ProfileChanged(userID string) Invalidation {
	return Invalidation{}.Keys(UserProfile(userID))
}
