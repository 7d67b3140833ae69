package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/util"
)

// CreateProject inserts a new project with a fresh server-side id.
func (s *Store) CreateProject(ctx context.Context, name, description string) (*model.Project, error) {
	if name == "" {
		return nil, util.NewValidationError("project name is required")
	}
	now := time.Now().UTC()
	p := &model.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, util.NewStorageError("create project", err)
	}
	return p, nil
}

// GetProject fetches one project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*model.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM projects WHERE id = ?`, id)
	p := &model.Project{}
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, util.NewNotFoundError("project", id)
	}
	if err != nil {
		return nil, util.NewStorageError("get project", err)
	}
	return p, nil
}

// ListProjects returns all projects ordered by creation time.
func (s *Store) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, util.NewStorageError("list projects", err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, util.NewStorageError("list projects", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project and, via cascade, every owned row.
// It returns the credential refs of all owned devices so the caller can
// revoke the vault entries.
func (s *Store) DeleteProject(ctx context.Context, id string) ([]string, error) {
	lock := s.lockProject(id)
	lock.Lock()
	defer lock.Unlock()

	var refs []string
	err := s.txn(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT credential_ref FROM devices WHERE project_id = ? AND credential_ref != ''`, id)
		if err != nil {
			return util.NewStorageError("delete project", err)
		}
		defer rows.Close()
		for rows.Next() {
			var ref string
			if err := rows.Scan(&ref); err != nil {
				return util.NewStorageError("delete project", err)
			}
			refs = append(refs, ref)
		}
		if err := rows.Err(); err != nil {
			return util.NewStorageError("delete project", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
		if err != nil {
			return util.NewStorageError("delete project", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return util.NewNotFoundError("project", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// touchProject refreshes a project's updated_at stamp inside a write.
func touchProject(ctx context.Context, tx *sql.Tx, projectID string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE projects SET updated_at = ? WHERE id = ?`, time.Now().UTC(), projectID)
	if err != nil {
		return util.NewStorageError("touch project", err)
	}
	return nil
}
