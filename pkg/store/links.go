package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/util"
)

// LinkCreate carries client-supplied fields for a new link.
type LinkCreate struct {
	SourceDeviceID  string           `json:"source_device_id"`
	SourceInterface string           `json:"source_interface"`
	TargetDeviceID  string           `json:"target_device_id"`
	TargetInterface string           `json:"target_interface"`
	Medium          model.LinkMedium `json:"medium"`
	VlanAllowList   []int            `json:"vlan_allow_list"`
}

// CreateLink inserts a link. Both endpoint devices must exist and belong
// to the same project as the link; orphan links are rejected at write time.
func (s *Store) CreateLink(ctx context.Context, projectID string, in LinkCreate) (*model.Link, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	vb := &util.ValidationBuilder{}
	vb.Add(in.SourceDeviceID != "", "source_device_id is required")
	vb.Add(in.TargetDeviceID != "", "target_device_id is required")
	vb.Add(in.SourceDeviceID != in.TargetDeviceID, "link endpoints must be distinct devices")
	for _, id := range in.VlanAllowList {
		vb.Add(util.ValidVLANID(id), "vlan allow-list entry out of 1-4094")
	}
	switch in.Medium {
	case "", model.MediumEthernet, model.MediumFiber:
	default:
		vb.AddErrorf("unknown medium '%s'", in.Medium)
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}
	if in.Medium == "" {
		in.Medium = model.MediumEthernet
	}

	src, err := s.GetDevice(ctx, in.SourceDeviceID)
	if err != nil {
		return nil, err
	}
	dst, err := s.GetDevice(ctx, in.TargetDeviceID)
	if err != nil {
		return nil, err
	}
	if src.ProjectID != projectID || dst.ProjectID != projectID {
		return nil, util.NewValidationError("link endpoints must belong to the link's project")
	}

	lock := s.lockProject(projectID)
	lock.Lock()
	defer lock.Unlock()

	allow := in.VlanAllowList
	if allow == nil {
		allow = []int{}
	}
	allowJSON, err := json.Marshal(allow)
	if err != nil {
		return nil, util.NewStorageError("create link", err)
	}

	l := &model.Link{
		ID:              uuid.NewString(),
		ProjectID:       projectID,
		SourceDeviceID:  in.SourceDeviceID,
		SourceInterface: in.SourceInterface,
		TargetDeviceID:  in.TargetDeviceID,
		TargetInterface: in.TargetInterface,
		Medium:          in.Medium,
		VlanAllowList:   allow,
		State:           model.LinkPending,
	}
	err = s.txn(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO links (id, project_id, source_device_id, source_interface,
				target_device_id, target_interface, medium, vlan_allow_list, state)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.ProjectID, l.SourceDeviceID, l.SourceInterface,
			l.TargetDeviceID, l.TargetInterface, l.Medium, string(allowJSON), l.State)
		if err != nil {
			return util.NewStorageError("create link", err)
		}
		return touchProject(ctx, tx, projectID)
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

const linkColumns = `id, project_id, source_device_id, source_interface,
	target_device_id, target_interface, medium, vlan_allow_list, state`

func scanLink(scan func(dest ...any) error) (*model.Link, error) {
	l := &model.Link{}
	var allowJSON string
	err := scan(&l.ID, &l.ProjectID, &l.SourceDeviceID, &l.SourceInterface,
		&l.TargetDeviceID, &l.TargetInterface, &l.Medium, &allowJSON, &l.State)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(allowJSON), &l.VlanAllowList); err != nil {
		l.VlanAllowList = []int{}
	}
	if l.VlanAllowList == nil {
		l.VlanAllowList = []int{}
	}
	return l, nil
}

// GetLink fetches one link by id.
func (s *Store) GetLink(ctx context.Context, id string) (*model.Link, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE id = ?`, id)
	l, err := scanLink(row.Scan)
	if err == sql.ErrNoRows {
		return nil, util.NewNotFoundError("link", id)
	}
	if err != nil {
		return nil, util.NewStorageError("get link", err)
	}
	return l, nil
}

// ListLinks returns all links of a project.
func (s *Store) ListLinks(ctx context.Context, projectID string) ([]model.Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, util.NewStorageError("list links", err)
	}
	defer rows.Close()

	links := []model.Link{}
	for rows.Next() {
		l, err := scanLink(rows.Scan)
		if err != nil {
			return nil, util.NewStorageError("list links", err)
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

// UpdateLinkState moves a link between pending/connected/misconfigured.
func (s *Store) UpdateLinkState(ctx context.Context, id string, state model.LinkState) error {
	switch state {
	case model.LinkPending, model.LinkConnected, model.LinkMisconfigured:
	default:
		return util.NewValidationError("unknown link state '" + string(state) + "'")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE links SET state = ? WHERE id = ?`, state, id)
	if err != nil {
		return util.NewStorageError("update link", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return util.NewNotFoundError("link", id)
	}
	return nil
}

// DeleteLink removes one link.
func (s *Store) DeleteLink(ctx context.Context, id string) error {
	l, err := s.GetLink(ctx, id)
	if err != nil {
		return err
	}

	lock := s.lockProject(l.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	return s.txn(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id); err != nil {
			return util.NewStorageError("delete link", err)
		}
		return touchProject(ctx, tx, l.ProjectID)
	})
}
