package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/taskflow/internal/model"
)

const taskColumns = "id,project_id,title,description,status,priority,assigned_to_id,due_date,created_at,updated_at"

// TaskRef is the minimal projection needed to invalidate a task's cache
// entries.
type TaskRef struct {
	ID           string
	AssignedToID string
}

// TaskRepo persists the `tasks` table.  Reads never return soft-deleted
// rows.
type TaskRepo struct{ DB *sql.DB }

func NewTaskRepo(db *sql.DB) *TaskRepo { return &TaskRepo{DB: db} }

// Create inserts t with defaults for status and priority.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = model.TaskTodo
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO tasks ("+taskColumns+") VALUES (?,?,?,?,?,?,?,?,?,?)",
		t.ID, t.ProjectID, t.Title, nullString(t.Description), t.Status, t.Priority,
		nullString(t.AssignedToID), t.DueDate, now, now)
	return err
}

// GetByID returns the non-deleted task with id.
func (r *TaskRepo) GetByID(ctx context.Context, id string) (model.Task, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id=? AND is_deleted=FALSE LIMIT 1", id)
	t, err := scanTask(row)
	return t, notFound(err)
}

// Update writes every mutable column of t.
func (r *TaskRepo) Update(ctx context.Context, t *model.Task) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tasks SET title=?, description=?, status=?, priority=?, assigned_to_id=?, due_date=?, updated_at=?
		 WHERE id=? AND is_deleted=FALSE`,
		t.Title, nullString(t.Description), t.Status, t.Priority, nullString(t.AssignedToID), t.DueDate, t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SoftDelete flags the task as deleted.
func (r *TaskRepo) SoftDelete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE tasks SET is_deleted=TRUE, deleted_at=? WHERE id=? AND is_deleted=FALSE", time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ListByProject returns a filtered page of a project's tasks, most
// recently updated first.
func (r *TaskRepo) ListByProject(ctx context.Context, projectID string, f model.TaskFilter, pg model.Pagination) ([]model.Task, int, error) {
	where := []string{"project_id=?", "is_deleted=FALSE"}
	args := []any{projectID}
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		where = append(where, "priority=?")
		args = append(args, f.Priority)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "title LIKE ?")
		args = append(args, "%"+escapeLike(s)+"%")
	}
	return r.list(ctx, strings.Join(where, " AND "), args, pg)
}

// ListByAssignee returns a page of tasks assigned to userID across every
// non-deleted project.
func (r *TaskRepo) ListByAssignee(ctx context.Context, userID string, pg model.Pagination) ([]model.Task, int, error) {
	return r.list(ctx, "assigned_to_id=? AND is_deleted=FALSE", []any{userID}, pg)
}

// RefsByProject returns id and assignee of every live task in projectID.
func (r *TaskRepo) RefsByProject(ctx context.Context, projectID string) ([]TaskRef, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, assigned_to_id FROM tasks WHERE project_id=? AND is_deleted=FALSE", projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []TaskRef
	for rows.Next() {
		var (
			ref      TaskRef
			assignee sql.NullString
		)
		if err := rows.Scan(&ref.ID, &assignee); err != nil {
			return nil, err
		}
		ref.AssignedToID = assignee.String
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// PurgeDeleted hard-deletes tasks soft-deleted before cutoff.
func (r *TaskRepo) PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM tasks WHERE is_deleted=TRUE AND deleted_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *TaskRepo) list(ctx context.Context, where string, args []any, pg model.Pagination) ([]model.Task, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	pageArgs := append(append([]any{}, args...), pg.Limit, pg.Offset())
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE "+where+" ORDER BY updated_at DESC, id LIMIT ? OFFSET ?", pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func scanTask(s rowScanner) (model.Task, error) {
	var (
		t        model.Task
		desc     sql.NullString
		assignee sql.NullString
		due      sql.NullTime
	)
	err := s.Scan(&t.ID, &t.ProjectID, &t.Title, &desc, &t.Status, &t.Priority, &assignee, &due, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return model.Task{}, err
	}
	t.Description = desc.String
	t.AssignedToID = assignee.String
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	return t, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
