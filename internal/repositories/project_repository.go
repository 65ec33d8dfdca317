package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// ProjectRepository exposes the minimal project reads the linking flow needs.
type ProjectRepository interface {
	HasManageRights(ctx context.Context, projectID string, userID int64) (bool, error)
}

// ProjectRepo is a sqlx implementation of ProjectRepository.
type ProjectRepo struct {
	db *sqlx.DB
}

// NewProjectRepo constructs a ProjectRepo.
func NewProjectRepo(db *sqlx.DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

// HasManageRights reports whether the user owns the project or holds an
// owner/admin membership in it.
func (r *ProjectRepo) HasManageRights(ctx context.Context, projectID string, userID int64) (bool, error) {
	var allowed bool
	err := r.db.GetContext(ctx, &allowed,
		`SELECT EXISTS(
            SELECT 1 FROM projects pr
            LEFT JOIN project_members pm
                ON pm.project_id = pr.id AND pm.user_id = $2 AND pm.role IN ('owner', 'admin')
            WHERE pr.id = $1 AND pr.is_active AND (pr.owner_id = $2 OR pm.user_id IS NOT NULL)
        )`,
		projectID, userID)
	return allowed, err
}
