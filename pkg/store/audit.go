package store

import (
	"context"
	"time"

	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/util"
)

// AppendAudit appends one row to the audit log. The log is append-only;
// rows survive even after the entities they mention are gone.
func (s *Store) AppendAudit(ctx context.Context, e model.AuditEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Actor == "" {
		e.Actor = "netval"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (project_id, device_id, actor, action, detail, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ProjectID, e.DeviceID, e.Actor, e.Action, e.Detail, e.Timestamp)
	if err != nil {
		return util.NewStorageError("append audit", err)
	}
	return nil
}

// ListAudit returns a project's audit trail, oldest first, capped at limit
// (0 = no cap).
func (s *Store) ListAudit(ctx context.Context, projectID string, limit int) ([]model.AuditEntry, error) {
	q := `SELECT id, project_id, device_id, actor, action, detail, timestamp
		 FROM audit_log WHERE project_id = ? ORDER BY id`
	args := []any{projectID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, util.NewStorageError("list audit", err)
	}
	defer rows.Close()

	entries := []model.AuditEntry{}
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.DeviceID, &e.Actor, &e.Action, &e.Detail, &e.Timestamp); err != nil {
			return nil, util.NewStorageError("list audit", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
