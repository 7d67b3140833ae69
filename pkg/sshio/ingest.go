package sshio

import (
	"context"
	"fmt"
	"net"

	"github.com/netval-app/netval/pkg/confparse"
	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/store"
	"github.com/netval-app/netval/pkg/util"
	"github.com/netval-app/netval/pkg/vault"
)

// IngestCommands is the fixed command set captured from every device
// during an ingest. The running config drives parsing; the rest is kept
// as raw evidence in the job result.
var IngestCommands = []string{
	"show running-config",
	"show vlan",
	"show ip interface brief",
	"show cdp neighbors detail",
	"show version",
}

// Service performs device I/O against the topology store using vaulted
// credentials.
type Service struct {
	store *store.Store
	vault vault.Vault
	pool  *Pool
}

// NewService wires a Service over the store, vault, and session pool.
func NewService(st *store.Store, v vault.Vault, pool *Pool) *Service {
	return &Service{store: st, vault: v, pool: pool}
}

// IngestResult is the outcome of ingesting one device.
type IngestResult struct {
	DeviceID       string               `json:"device_id"`
	Hostname       string               `json:"hostname"`
	SnapshotID     string               `json:"snapshot_id"`
	ConfigHash     string               `json:"config_hash"`
	InterfaceCount int                  `json:"interface_count"`
	VlanCount      int                  `json:"vlan_count"`
	Warnings       []model.ParseWarning `json:"warnings,omitempty"`
	Outputs        map[string]string    `json:"outputs,omitempty"`
}

// credential resolves a device's vault material, mapping the common
// preconditions to validation errors the API layer can report cleanly.
func (s *Service) credential(ctx context.Context, deviceID string) (*model.Device, vault.Material, error) {
	d, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, vault.Material{}, err
	}
	if d.ManagementIP == "" {
		return nil, vault.Material{}, util.NewValidationError(
			fmt.Sprintf("device %s has no management IP", d.Hostname))
	}
	if d.CredentialRef == "" {
		return nil, vault.Material{}, util.NewValidationError(
			fmt.Sprintf("device %s has no stored credentials", d.Hostname))
	}
	cred, err := s.vault.Load(d.CredentialRef)
	if err != nil {
		return nil, vault.Material{}, util.NewSSHError(d.Hostname, "auth", err)
	}
	return d, cred, nil
}

// Ingest pulls the fixed command set from a live device, snapshots the
// running config (source=ssh), and materializes parsed interfaces and
// VLANs into the store.
func (s *Service) Ingest(ctx context.Context, deviceID string) (*IngestResult, error) {
	d, cred, err := s.credential(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	log := util.WithDevice(d.Hostname)

	outputs := make(map[string]string, len(IngestCommands))
	err = s.pool.WithConn(ctx, d.Hostname, net.JoinHostPort(d.ManagementIP, "22"), cred, func(conn Conn) error {
		for _, cmd := range IngestCommands {
			out, err := conn.Run(ctx, cmd)
			if err != nil {
				return util.NewSSHError(d.Hostname, "exec", err)
			}
			outputs[cmd] = out
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	running := outputs["show running-config"]
	snap, err := s.store.AddSnapshot(ctx, d.ID, running, model.SourceSSH)
	if err != nil {
		return nil, err
	}

	dc := confparse.Parse(running)
	ifaces, vlans := confparse.Materialize(d.ID, dc)
	if err := s.store.ReplaceDeviceInterfaces(ctx, d.ID, ifaces); err != nil {
		return nil, err
	}
	if err := s.store.ReplaceDeviceVlans(ctx, d.ID, vlans); err != nil {
		return nil, err
	}
	if err := s.store.AppendAudit(ctx, model.AuditEntry{
		ProjectID: d.ProjectID,
		DeviceID:  d.ID,
		Action:    "ssh_ingest",
		Detail:    fmt.Sprintf("captured %d commands, hash %s", len(outputs), snap.ConfigHash[:12]),
	}); err != nil {
		return nil, err
	}

	log.Infof("ingested config (%d interfaces, %d vlans)", len(ifaces), len(vlans))
	return &IngestResult{
		DeviceID:       d.ID,
		Hostname:       d.Hostname,
		SnapshotID:     snap.ID,
		ConfigHash:     snap.ConfigHash,
		InterfaceCount: len(ifaces),
		VlanCount:      len(vlans),
		Warnings:       dc.Warnings,
		Outputs:        outputs,
	}, nil
}

// TestConnection opens a session and runs a trivial command, verifying
// reachability and credentials without touching stored state.
func (s *Service) TestConnection(ctx context.Context, deviceID string) error {
	d, cred, err := s.credential(ctx, deviceID)
	if err != nil {
		return err
	}
	return s.pool.WithConn(ctx, d.Hostname, net.JoinHostPort(d.ManagementIP, "22"), cred, func(conn Conn) error {
		if _, err := conn.Run(ctx, "show version"); err != nil {
			return util.NewSSHError(d.Hostname, "exec", err)
		}
		return nil
	})
}
