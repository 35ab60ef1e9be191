package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/taskflow/internal/model"
)

// ActivityRepo is the only writer of the `activity_logs` table.  Rows are
// never updated.
type ActivityRepo struct{ DB *sql.DB }

func NewActivityRepo(db *sql.DB) *ActivityRepo { return &ActivityRepo{DB: db} }

// Append inserts l.  The id comes from the event, so a redelivered event
// is ignored instead of producing a duplicate row.
func (r *ActivityRepo) Append(ctx context.Context, l model.ActivityLog) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO activity_logs (id,project_id,user_id,action,details,created_at) VALUES (?,?,?,?,?,?)",
		l.ID, l.ProjectID, l.UserID, l.Action, l.Details, l.CreatedAt.UTC())
	return err
}

// ListByProject returns a page of a project's activity, newest first.
func (r *ActivityRepo) ListByProject(ctx context.Context, projectID string, pg model.Pagination) ([]model.ActivityLog, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM activity_logs WHERE project_id=?", projectID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,project_id,user_id,action,details,created_at FROM activity_logs WHERE project_id=? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		projectID, pg.Limit, pg.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.ActivityLog
	for rows.Next() {
		var l model.ActivityLog
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.UserID, &l.Action, &l.Details, &l.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

// PurgeBefore deletes entries created before cutoff.
func (r *ActivityRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM activity_logs WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
