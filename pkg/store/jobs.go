package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/util"
)

// CreateJob persists a new queued job for a project.
func (s *Store) CreateJob(ctx context.Context, projectID string, kind model.JobKind) (*model.Job, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	j := &model.Job{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Kind:      kind,
		Status:    model.JobQueued,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, project_id, kind, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		j.ID, j.ProjectID, j.Kind, j.Status, j.CreatedAt)
	if err != nil {
		return nil, util.NewStorageError("create job", err)
	}
	return j, nil
}

// GetJob fetches one job row, terminal result included.
func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, kind, status, result, error, started_at, completed_at, created_at
		 FROM jobs WHERE id = ?`, id)
	j := &model.Job{}
	var result sql.NullString
	var started, completed sql.NullTime
	err := row.Scan(&j.ID, &j.ProjectID, &j.Kind, &j.Status, &result, &j.Error,
		&started, &completed, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, util.NewNotFoundError("job", id)
	}
	if err != nil {
		return nil, util.NewStorageError("get job", err)
	}
	if result.Valid {
		j.Result = json.RawMessage(result.String)
	}
	if started.Valid {
		t := started.Time
		j.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		j.CompletedAt = &t
	}
	return j, nil
}

// LatestCompletedJob returns the newest complete job of a kind for a
// project. The remediation planner reads the last simulation's findings
// through this.
func (s *Store) LatestCompletedJob(ctx context.Context, projectID string, kind model.JobKind) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id FROM jobs
		 WHERE project_id = ? AND kind = ? AND status = ?
		 ORDER BY completed_at DESC, id DESC LIMIT 1`,
		projectID, kind, model.JobComplete)
	var id string
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return nil, util.NewNotFoundError("completed "+string(kind)+" job for project", projectID)
	}
	if err != nil {
		return nil, util.NewStorageError("latest completed job", err)
	}
	return s.GetJob(ctx, id)
}

// StartJob marks a queued job running.
func (s *Store) StartJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		model.JobRunning, time.Now().UTC(), id, model.JobQueued)
	if err != nil {
		return util.NewStorageError("start job", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return util.NewNotFoundError("queued job", id)
	}
	return nil
}

// CompleteJob records the terminal result payload. Jobs are immutable once
// terminal.
func (s *Store) CompleteJob(ctx context.Context, id string, result json.RawMessage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, result = ?, completed_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		model.JobComplete, string(result), time.Now().UTC(), id, model.JobQueued, model.JobRunning)
	if err != nil {
		return util.NewStorageError("complete job", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return util.NewNotFoundError("live job", id)
	}
	return nil
}

// FailJob records failure with a message.
func (s *Store) FailJob(ctx context.Context, id, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, completed_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		model.JobFailed, message, time.Now().UTC(), id, model.JobQueued, model.JobRunning)
	if err != nil {
		return util.NewStorageError("fail job", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return util.NewNotFoundError("live job", id)
	}
	return nil
}

// FailRunningJobs marks every queued or running job failed, used on
// graceful shutdown.
func (s *Store) FailRunningJobs(ctx context.Context, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, completed_at = ? WHERE status IN (?, ?)`,
		model.JobFailed, message, time.Now().UTC(), model.JobQueued, model.JobRunning)
	if err != nil {
		return util.NewStorageError("fail running jobs", err)
	}
	return nil
}
