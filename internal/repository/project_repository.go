package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/taskflow/internal/model"
)

const projectColumns = "p.id,p.name,p.description,p.visibility,p.owner_id,p.created_at,p.updated_at"

// ProjectRepo persists the `projects` table.  Every read filters out
// soft-deleted rows.
type ProjectRepo struct{ DB *sql.DB }

func NewProjectRepo(db *sql.DB) *ProjectRepo { return &ProjectRepo{DB: db} }

// Create inserts p and the owner's ADMIN membership in one transaction, so
// a project never exists without its owner membership.
func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Visibility == "" {
		p.Visibility = model.Public
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO projects (id,name,description,visibility,owner_id,created_at,updated_at) VALUES (?,?,?,?,?,?,?)",
			p.ID, p.Name, nullString(p.Description), p.Visibility, p.OwnerID, now, now); err != nil {
			return err
		}
		return insertMember(ctx, tx, &model.Membership{
			UserID: p.OwnerID, ProjectID: p.ID, Role: model.RoleAdmin,
		})
	})
}

// GetByID returns the non-deleted project with id.
func (r *ProjectRepo) GetByID(ctx context.Context, id string) (model.Project, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects p WHERE p.id=? AND p.is_deleted=FALSE LIMIT 1", id)
	p, err := scanProject(row)
	return p, notFound(err)
}

// ListVisible returns the page of non-deleted projects that are PUBLIC or
// have userID as a member, newest first, plus the total count.
func (r *ProjectRepo) ListVisible(ctx context.Context, userID string, pg model.Pagination) ([]model.Project, int, error) {
	const where = ` FROM projects p
		LEFT JOIN project_members m ON m.project_id = p.id AND m.user_id = ?
		WHERE p.is_deleted = FALSE AND (p.visibility = 'PUBLIC' OR m.user_id IS NOT NULL)`
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(DISTINCT p.id)"+where, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT DISTINCT "+projectColumns+where+" ORDER BY p.created_at DESC, p.id LIMIT ? OFFSET ?",
		userID, pg.Limit, pg.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// Update writes name, description and visibility.
func (r *ProjectRepo) Update(ctx context.Context, p *model.Project) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		"UPDATE projects SET name=?, description=?, visibility=?, updated_at=? WHERE id=? AND is_deleted=FALSE",
		p.Name, nullString(p.Description), p.Visibility, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SoftDelete flags the project and all of its tasks as deleted in one
// transaction.
func (r *ProjectRepo) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE projects SET is_deleted=TRUE, deleted_at=? WHERE id=? AND is_deleted=FALSE", now, id)
		if err != nil {
			return err
		}
		if err := expectOne(res); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE tasks SET is_deleted=TRUE, deleted_at=? WHERE project_id=? AND is_deleted=FALSE", now, id)
		return err
	})
}

// PurgeDeleted hard-deletes projects soft-deleted before cutoff.
func (r *ProjectRepo) PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM projects WHERE is_deleted=TRUE AND deleted_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanProject(s rowScanner) (model.Project, error) {
	var (
		p    model.Project
		desc sql.NullString
	)
	err := s.Scan(&p.ID, &p.Name, &desc, &p.Visibility, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	p.Description = desc.String
	return p, err
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
