package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/util"
)

// AddSnapshot appends an immutable config snapshot for a device. For
// sources other than pre_push the device's config_hash is updated to the
// snapshot's hash, preserving the config_hash invariant.
func (s *Store) AddSnapshot(ctx context.Context, deviceID, rawConfig string, source model.SnapshotSource) (*model.ConfigSnapshot, error) {
	switch source {
	case model.SourceManual, model.SourceUpload, model.SourceSSH, model.SourcePrePush:
	default:
		return nil, util.NewValidationError("unknown snapshot source '" + string(source) + "'")
	}

	d, err := s.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	lock := s.lockProject(d.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	snap := &model.ConfigSnapshot{
		ID:         uuid.NewString(),
		DeviceID:   deviceID,
		RawConfig:  rawConfig,
		ConfigHash: util.ConfigHash(rawConfig),
		Source:     source,
		TakenAt:    time.Now().UTC(),
	}
	err = s.txn(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO config_snapshots (id, device_id, raw_config, config_hash, source, taken_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			snap.ID, snap.DeviceID, snap.RawConfig, snap.ConfigHash, snap.Source, snap.TakenAt)
		if err != nil {
			return util.NewStorageError("add snapshot", err)
		}
		if source.CountsTowardHash() {
			_, err = tx.ExecContext(ctx,
				`UPDATE devices SET config_hash = ?, updated_at = ? WHERE id = ?`,
				snap.ConfigHash, time.Now().UTC(), deviceID)
			if err != nil {
				return util.NewStorageError("add snapshot", err)
			}
		}
		return touchProject(ctx, tx, d.ProjectID)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

const snapshotColumns = `id, device_id, raw_config, config_hash, source, taken_at`

func scanSnapshot(scan func(dest ...any) error) (*model.ConfigSnapshot, error) {
	snap := &model.ConfigSnapshot{}
	err := scan(&snap.ID, &snap.DeviceID, &snap.RawConfig, &snap.ConfigHash, &snap.Source, &snap.TakenAt)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// LatestSnapshot returns the newest snapshot for a device, optionally
// restricted to sources that count toward the config hash.
func (s *Store) LatestSnapshot(ctx context.Context, deviceID string, includePrePush bool) (*model.ConfigSnapshot, error) {
	q := `SELECT ` + snapshotColumns + ` FROM config_snapshots WHERE device_id = ?`
	if !includePrePush {
		q += ` AND source != 'pre_push'`
	}
	q += ` ORDER BY taken_at DESC, id DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, q, deviceID)
	snap, err := scanSnapshot(row.Scan)
	if err == sql.ErrNoRows {
		return nil, util.NewNotFoundError("config snapshot for device", deviceID)
	}
	if err != nil {
		return nil, util.NewStorageError("latest snapshot", err)
	}
	return snap, nil
}

// LatestPrePushSnapshot returns the newest pre_push capture for a device;
// this is the rollback target after a push.
func (s *Store) LatestPrePushSnapshot(ctx context.Context, deviceID string) (*model.ConfigSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM config_snapshots
		 WHERE device_id = ? AND source = 'pre_push'
		 ORDER BY taken_at DESC, id DESC LIMIT 1`, deviceID)
	snap, err := scanSnapshot(row.Scan)
	if err == sql.ErrNoRows {
		return nil, util.NewNotFoundError("pre-push snapshot for device", deviceID)
	}
	if err != nil {
		return nil, util.NewStorageError("latest pre-push snapshot", err)
	}
	return snap, nil
}

// ListSnapshots returns all snapshots for a device, newest first.
func (s *Store) ListSnapshots(ctx context.Context, deviceID string) ([]model.ConfigSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM config_snapshots
		 WHERE device_id = ? ORDER BY taken_at DESC, id DESC`, deviceID)
	if err != nil {
		return nil, util.NewStorageError("list snapshots", err)
	}
	defer rows.Close()

	snaps := []model.ConfigSnapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, util.NewStorageError("list snapshots", err)
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}
