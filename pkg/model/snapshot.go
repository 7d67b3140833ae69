package model

import "time"

// SnapshotSource records how a config snapshot was captured
type SnapshotSource string

const (
	SourceManual  SnapshotSource = "manual"
	SourceUpload  SnapshotSource = "upload"
	SourceSSH     SnapshotSource = "ssh"
	SourcePrePush SnapshotSource = "pre_push"
)

// ConfigSnapshot is an immutable copy of a device's full running
// configuration. A pre_push snapshot is written before any push and is the
// rollback target for that push.
type ConfigSnapshot struct {
	ID         string         `json:"id"`
	DeviceID   string         `json:"device_id"`
	RawConfig  string         `json:"raw_config"`
	ConfigHash string         `json:"config_hash"`
	Source     SnapshotSource `json:"source"`
	TakenAt    time.Time      `json:"taken_at"`
}

// CountsTowardHash reports whether snapshots from this source participate
// in the device config_hash invariant (pre_push captures do not).
func (s SnapshotSource) CountsTowardHash() bool {
	return s != SourcePrePush
}
