package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/util"
)

// CreatePlan persists a new remediation plan in pending status.
func (s *Store) CreatePlan(ctx context.Context, projectID string, items []model.RemediationItem) (*model.RemediationPlan, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, util.NewValidationError("remediation plan has no items")
	}

	p := &model.RemediationPlan{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Items:     items,
		Status:    model.PlanPending,
		CreatedAt: time.Now().UTC(),
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, util.NewStorageError("create plan", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO remediation_plans (id, project_id, items, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.ProjectID, string(itemsJSON), p.Status, p.CreatedAt)
	if err != nil {
		return nil, util.NewStorageError("create plan", err)
	}
	return p, nil
}

func scanPlan(scan func(dest ...any) error) (*model.RemediationPlan, error) {
	p := &model.RemediationPlan{}
	var itemsJSON string
	var applied sql.NullTime
	err := scan(&p.ID, &p.ProjectID, &itemsJSON, &p.Status, &p.CreatedAt, &applied)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(itemsJSON), &p.Items); err != nil {
		return nil, err
	}
	if applied.Valid {
		t := applied.Time
		p.AppliedAt = &t
	}
	return p, nil
}

const planColumns = `id, project_id, items, status, created_at, applied_at`

// GetPlan fetches one plan by id.
func (s *Store) GetPlan(ctx context.Context, id string) (*model.RemediationPlan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM remediation_plans WHERE id = ?`, id)
	p, err := scanPlan(row.Scan)
	if err == sql.ErrNoRows {
		return nil, util.NewNotFoundError("remediation plan", id)
	}
	if err != nil {
		return nil, util.NewStorageError("get plan", err)
	}
	return p, nil
}

// LatestPlan returns the newest plan for a project.
func (s *Store) LatestPlan(ctx context.Context, projectID string) (*model.RemediationPlan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM remediation_plans
		 WHERE project_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, projectID)
	p, err := scanPlan(row.Scan)
	if err == sql.ErrNoRows {
		return nil, util.NewNotFoundError("remediation plan for project", projectID)
	}
	if err != nil {
		return nil, util.NewStorageError("latest plan", err)
	}
	return p, nil
}

// TransitionPlan moves a plan through its state machine; illegal
// transitions fail with ValidationError. Reaching applied stamps
// applied_at and supersedes any earlier applied plan in the project, so
// only the most recent successful apply stays rollbackable.
func (s *Store) TransitionPlan(ctx context.Context, id string, next model.PlanStatus) (*model.RemediationPlan, error) {
	p, err := s.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanTransition(next) {
		return nil, util.NewValidationError(
			fmt.Sprintf("plan cannot move from %s to %s", p.Status, next))
	}

	lock := s.lockProject(p.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	p.Status = next
	var appliedAt any
	if next == model.PlanApplied {
		t := time.Now().UTC()
		p.AppliedAt = &t
		appliedAt = t
	} else if p.AppliedAt != nil {
		appliedAt = *p.AppliedAt
	}
	err = s.txn(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE remediation_plans SET status = ?, applied_at = ? WHERE id = ?`,
			p.Status, appliedAt, id)
		if err != nil {
			return util.NewStorageError("transition plan", err)
		}
		if next == model.PlanApplied {
			_, err = tx.ExecContext(ctx,
				`UPDATE remediation_plans SET status = ?
				 WHERE project_id = ? AND status = ? AND id <> ?`,
				model.PlanSuperseded, p.ProjectID, model.PlanApplied, id)
			if err != nil {
				return util.NewStorageError("supersede plans", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SetPlanItemApproved toggles approval of one item. Allowed only while the
// plan is pending or approved.
func (s *Store) SetPlanItemApproved(ctx context.Context, id string, index int, approved bool) (*model.RemediationPlan, error) {
	p, err := s.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.AcceptsApprovalToggle() {
		return nil, util.NewValidationError(
			fmt.Sprintf("plan in status %s no longer accepts approval changes", p.Status))
	}
	if index < 0 || index >= len(p.Items) {
		return nil, util.NewValidationError("item index out of range")
	}

	lock := s.lockProject(p.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	p.Items[index].Approved = approved
	itemsJSON, err := json.Marshal(p.Items)
	if err != nil {
		return nil, util.NewStorageError("approve item", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE remediation_plans SET items = ? WHERE id = ?`, string(itemsJSON), id)
	if err != nil {
		return nil, util.NewStorageError("approve item", err)
	}
	return p, nil
}
