package sshio

import (
	"context"
	"fmt"
	"net"

	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/util"
)

// PushResult is the outcome of pushing config lines to one device.
type PushResult struct {
	DeviceID          string `json:"device_id"`
	Hostname          string `json:"hostname"`
	PrePushSnapshotID string `json:"pre_push_snapshot_id"`
	LinesApplied      int    `json:"lines_applied"`
}

// Push applies config lines to a live device. Before any session is
// opened the caller must have confirmed; before any line is sent the
// current running config is captured as a pre_push snapshot so the
// change can be rolled back.
func (s *Service) Push(ctx context.Context, deviceID string, lines []string, confirm bool, onLine func(string)) (*PushResult, error) {
	if !confirm {
		return nil, util.ErrConfirmationRequired
	}
	if len(lines) == 0 {
		return nil, util.NewValidationError("no config lines to push")
	}

	d, cred, err := s.credential(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	log := util.WithDevice(d.Hostname)

	var result *PushResult
	err = s.pool.WithConn(ctx, d.Hostname, net.JoinHostPort(d.ManagementIP, "22"), cred, func(conn Conn) error {
		running, err := conn.Run(ctx, "show running-config")
		if err != nil {
			return util.NewSSHError(d.Hostname, "exec", err)
		}
		snap, err := s.store.AddSnapshot(ctx, d.ID, running, model.SourcePrePush)
		if err != nil {
			return err
		}

		if err := conn.Configure(ctx, lines, onLine); err != nil {
			return util.NewSSHError(d.Hostname, "push", err)
		}
		result = &PushResult{
			DeviceID:          d.ID,
			Hostname:          d.Hostname,
			PrePushSnapshotID: snap.ID,
			LinesApplied:      len(lines),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.AppendAudit(ctx, model.AuditEntry{
		ProjectID: d.ProjectID,
		DeviceID:  d.ID,
		Action:    "config_push",
		Detail:    fmt.Sprintf("applied %d lines", len(lines)),
	}); err != nil {
		return nil, err
	}
	log.Infof("pushed %d config lines", len(lines))
	return result, nil
}
