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

// DeviceCreate carries client-supplied fields for a new device. Ids are
// always assigned server-side.
type DeviceCreate struct {
	Hostname     string           `json:"hostname"`
	Role         model.DeviceRole `json:"role"`
	Vendor       string           `json:"vendor"`
	Platform     string           `json:"platform"`
	ManagementIP string           `json:"management_ip"`
	CanvasX      float64          `json:"canvas_x"`
	CanvasY      float64          `json:"canvas_y"`
}

// CreateDevice inserts a device under a project. The project must exist.
func (s *Store) CreateDevice(ctx context.Context, projectID string, in DeviceCreate) (*model.Device, error) {
	vb := &util.ValidationBuilder{}
	vb.Add(in.Hostname != "", "hostname is required")
	vb.Add(model.ValidRole(in.Role), "unknown device role '"+string(in.Role)+"'")
	if err := vb.Build(); err != nil {
		return nil, err
	}
	if in.Vendor == "" {
		in.Vendor = "cisco"
	}
	if in.Platform == "" {
		in.Platform = "ios-xe"
	}

	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	lock := s.lockProject(projectID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	d := &model.Device{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		Hostname:     in.Hostname,
		Role:         in.Role,
		Vendor:       in.Vendor,
		Platform:     in.Platform,
		ManagementIP: in.ManagementIP,
		CanvasX:      in.CanvasX,
		CanvasY:      in.CanvasY,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.txn(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO devices (id, project_id, hostname, role, vendor, platform, management_ip,
				canvas_x, canvas_y, credential_ref, config_hash, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', ?, ?)`,
			d.ID, d.ProjectID, d.Hostname, d.Role, d.Vendor, d.Platform, d.ManagementIP,
			d.CanvasX, d.CanvasY, d.CreatedAt, d.UpdatedAt)
		if err != nil {
			return util.NewStorageError("create device", err)
		}
		return touchProject(ctx, tx, projectID)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

const deviceColumns = `id, project_id, hostname, role, vendor, platform, management_ip,
	canvas_x, canvas_y, credential_ref, config_hash, created_at, updated_at`

func scanDevice(scan func(dest ...any) error) (*model.Device, error) {
	d := &model.Device{}
	err := scan(&d.ID, &d.ProjectID, &d.Hostname, &d.Role, &d.Vendor, &d.Platform,
		&d.ManagementIP, &d.CanvasX, &d.CanvasY, &d.CredentialRef, &d.ConfigHash,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetDevice fetches one device with its interfaces and VLAN database.
func (s *Store) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row.Scan)
	if err == sql.ErrNoRows {
		return nil, util.NewNotFoundError("device", id)
	}
	if err != nil {
		return nil, util.NewStorageError("get device", err)
	}
	if err := s.loadDeviceChildren(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ListDevices returns all devices of a project, interfaces and VLANs
// included, ordered by creation time.
func (s *Store) ListDevices(ctx context.Context, projectID string) ([]model.Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE project_id = ? ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, util.NewStorageError("list devices", err)
	}
	defer rows.Close()

	devices := []model.Device{}
	for rows.Next() {
		d, err := scanDevice(rows.Scan)
		if err != nil {
			return nil, util.NewStorageError("list devices", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, util.NewStorageError("list devices", err)
	}
	for i := range devices {
		if err := s.loadDeviceChildren(ctx, &devices[i]); err != nil {
			return nil, err
		}
	}
	return devices, nil
}

func (s *Store) loadDeviceChildren(ctx context.Context, d *model.Device) error {
	ifaces, err := s.ListInterfaces(ctx, d.ID)
	if err != nil {
		return err
	}
	vlans, err := s.ListDeviceVlans(ctx, d.ID)
	if err != nil {
		return err
	}
	d.Interfaces = ifaces
	d.Vlans = vlans
	return nil
}

// DeviceUpdate carries mutable device fields. Nil pointers leave the
// column untouched.
type DeviceUpdate struct {
	Hostname     *string  `json:"hostname,omitempty"`
	ManagementIP *string  `json:"management_ip,omitempty"`
	CanvasX      *float64 `json:"canvas_x,omitempty"`
	CanvasY      *float64 `json:"canvas_y,omitempty"`
}

// UpdateDevice applies a partial update and refreshes updated_at.
func (s *Store) UpdateDevice(ctx context.Context, id string, in DeviceUpdate) (*model.Device, error) {
	d, err := s.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	lock := s.lockProject(d.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	if in.Hostname != nil {
		d.Hostname = *in.Hostname
	}
	if in.ManagementIP != nil {
		d.ManagementIP = *in.ManagementIP
	}
	if in.CanvasX != nil {
		d.CanvasX = *in.CanvasX
	}
	if in.CanvasY != nil {
		d.CanvasY = *in.CanvasY
	}
	d.UpdatedAt = time.Now().UTC()

	err = s.txn(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE devices SET hostname = ?, management_ip = ?, canvas_x = ?, canvas_y = ?, updated_at = ?
			 WHERE id = ?`,
			d.Hostname, d.ManagementIP, d.CanvasX, d.CanvasY, d.UpdatedAt, id)
		if err != nil {
			return util.NewStorageError("update device", err)
		}
		return touchProject(ctx, tx, d.ProjectID)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// SetDeviceCredentialRef records (or clears) the opaque vault reference.
func (s *Store) SetDeviceCredentialRef(ctx context.Context, id, ref string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET credential_ref = ?, updated_at = ? WHERE id = ?`,
		ref, time.Now().UTC(), id)
	if err != nil {
		return util.NewStorageError("set credential ref", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return util.NewNotFoundError("device", id)
	}
	return nil
}

// DeleteDevice removes a device, its interfaces, VLANs, snapshots and any
// link referencing it. Returns the credential ref (if any) for revocation.
func (s *Store) DeleteDevice(ctx context.Context, id string) (string, error) {
	d, err := s.GetDevice(ctx, id)
	if err != nil {
		return "", err
	}

	lock := s.lockProject(d.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	err = s.txn(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id); err != nil {
			return util.NewStorageError("delete device", err)
		}
		return touchProject(ctx, tx, d.ProjectID)
	})
	if err != nil {
		return "", err
	}
	return d.CredentialRef, nil
}

// ListInterfaces returns a device's interfaces ordered by name.
func (s *Store) ListInterfaces(ctx context.Context, deviceID string) ([]model.Interface, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device_id, name, description, mode, vlan_access, vlan_trunk_allowed,
			native_vlan, duplex, ip_address, ip_mask, state
		 FROM interfaces WHERE device_id = ? ORDER BY name`, deviceID)
	if err != nil {
		return nil, util.NewStorageError("list interfaces", err)
	}
	defer rows.Close()

	ifaces := []model.Interface{}
	for rows.Next() {
		var i model.Interface
		var trunkJSON string
		err := rows.Scan(&i.ID, &i.DeviceID, &i.Name, &i.Description, &i.Mode, &i.VlanAccess,
			&trunkJSON, &i.NativeVlan, &i.Duplex, &i.IPAddress, &i.IPMask, &i.State)
		if err != nil {
			return nil, util.NewStorageError("list interfaces", err)
		}
		if err := json.Unmarshal([]byte(trunkJSON), &i.VlanTrunkAllowed); err != nil {
			i.VlanTrunkAllowed = nil
		}
		ifaces = append(ifaces, i)
	}
	return ifaces, rows.Err()
}

// ReplaceDeviceInterfaces swaps a device's interface rows for the given
// set in one transaction, as happens when a parsed config is materialized.
func (s *Store) ReplaceDeviceInterfaces(ctx context.Context, deviceID string, ifaces []model.Interface) error {
	d, err := s.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}

	lock := s.lockProject(d.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	seen := make(map[string]bool, len(ifaces))
	for _, i := range ifaces {
		if seen[i.Name] {
			return util.NewValidationError("duplicate interface name '" + i.Name + "'")
		}
		seen[i.Name] = true
	}

	return s.txn(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM interfaces WHERE device_id = ?`, deviceID); err != nil {
			return util.NewStorageError("replace interfaces", err)
		}
		for _, i := range ifaces {
			trunkJSON, err := json.Marshal(i.VlanTrunkAllowed)
			if err != nil {
				return util.NewStorageError("replace interfaces", err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO interfaces (id, device_id, name, description, mode, vlan_access,
					vlan_trunk_allowed, native_vlan, duplex, ip_address, ip_mask, state)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), deviceID, i.Name, i.Description, i.Mode, i.VlanAccess,
				string(trunkJSON), i.NativeVlan, i.Duplex, i.IPAddress, i.IPMask, i.State)
			if err != nil {
				return util.NewStorageError("replace interfaces", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE devices SET updated_at = ? WHERE id = ?`, time.Now().UTC(), deviceID); err != nil {
			return util.NewStorageError("replace interfaces", err)
		}
		return touchProject(ctx, tx, d.ProjectID)
	})
}

// ListDeviceVlans returns a device's VLAN database ordered by id.
func (s *Store) ListDeviceVlans(ctx context.Context, deviceID string) ([]model.DeviceVlan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT device_id, vlan_id, name FROM device_vlans WHERE device_id = ? ORDER BY vlan_id`, deviceID)
	if err != nil {
		return nil, util.NewStorageError("list device vlans", err)
	}
	defer rows.Close()

	vlans := []model.DeviceVlan{}
	for rows.Next() {
		var v model.DeviceVlan
		if err := rows.Scan(&v.DeviceID, &v.VlanID, &v.Name); err != nil {
			return nil, util.NewStorageError("list device vlans", err)
		}
		vlans = append(vlans, v)
	}
	return vlans, rows.Err()
}

// ReplaceDeviceVlans swaps a device's VLAN database for the given records.
// Ids outside 1..4094 are rejected.
func (s *Store) ReplaceDeviceVlans(ctx context.Context, deviceID string, vlans []model.VlanRecord) error {
	d, err := s.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}

	vb := &util.ValidationBuilder{}
	for _, v := range vlans {
		vb.Add(util.ValidVLANID(v.ID), "vlan id out of range")
	}
	if err := vb.Build(); err != nil {
		return err
	}

	lock := s.lockProject(d.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	return s.txn(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM device_vlans WHERE device_id = ?`, deviceID); err != nil {
			return util.NewStorageError("replace device vlans", err)
		}
		for _, v := range vlans {
			_, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO device_vlans (device_id, vlan_id, name) VALUES (?, ?, ?)`,
				deviceID, v.ID, v.Name)
			if err != nil {
				return util.NewStorageError("replace device vlans", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE devices SET updated_at = ? WHERE id = ?`, time.Now().UTC(), deviceID); err != nil {
			return util.NewStorageError("replace device vlans", err)
		}
		return touchProject(ctx, tx, d.ProjectID)
	})
}
