package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/taskflow/internal/model"
)

// MemberRepo persists the `project_members` table.
type MemberRepo struct{ DB *sql.DB }

func NewMemberRepo(db *sql.DB) *MemberRepo { return &MemberRepo{DB: db} }

// Get returns the membership of userID in projectID.
func (r *MemberRepo) Get(ctx context.Context, projectID, userID string) (model.Membership, error) {
	var m model.Membership
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,project_id,role,created_at,updated_at FROM project_members WHERE project_id=? AND user_id=? LIMIT 1",
		projectID, userID).Scan(&m.ID, &m.UserID, &m.ProjectID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return model.Membership{}, notFound(err)
	}
	return m, nil
}

// Add inserts m.  A second row for the same pair yields ErrConflict.
func (r *MemberRepo) Add(ctx context.Context, m *model.Membership) error {
	return insertMember(ctx, r.DB, m)
}

// UpdateRole sets the role of an existing membership.  Concurrent updates
// to the same row are last-write-wins.
func (r *MemberRepo) UpdateRole(ctx context.Context, projectID, userID string, role model.Role) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE project_members SET role=?, updated_at=? WHERE project_id=? AND user_id=?",
		role, time.Now().UTC(), projectID, userID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Remove deletes the membership row.
func (r *MemberRepo) Remove(ctx context.Context, projectID, userID string) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM project_members WHERE project_id=? AND user_id=?", projectID, userID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// List returns a page of members joined with their user fields, oldest
// membership first.
func (r *MemberRepo) List(ctx context.Context, projectID string, pg model.Pagination) ([]model.MemberView, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM project_members WHERE project_id=?", projectID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT m.id,m.user_id,m.project_id,m.role,m.created_at,m.updated_at,u.name,u.email
		FROM project_members m JOIN users u ON u.id = m.user_id
		WHERE m.project_id=? ORDER BY m.created_at, m.id LIMIT ? OFFSET ?`,
		projectID, pg.Limit, pg.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.MemberView
	for rows.Next() {
		var v model.MemberView
		if err := rows.Scan(&v.ID, &v.UserID, &v.ProjectID, &v.Role, &v.CreatedAt, &v.UpdatedAt, &v.Name, &v.Email); err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

// UserIDs returns the ids of every member of projectID.
func (r *MemberRepo) UserIDs(ctx context.Context, projectID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT user_id FROM project_members WHERE project_id=?", projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func insertMember(ctx context.Context, q querier, m *model.Membership) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	_, err := q.ExecContext(ctx,
		"INSERT INTO project_members (id,user_id,project_id,role,created_at,updated_at) VALUES (?,?,?,?,?,?)",
		m.ID, m.UserID, m.ProjectID, m.Role, now, now)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// ProjectIDs returns the ids of every project userID belongs to.
func (r *MemberRepo) ProjectIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT project_id FROM project_members WHERE user_id=?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
