// Package model defines the canonical topology entities and the parsed
// device configuration sub-model shared by the store, the validation
// engine, the parser and the renderer.
package model

import "time"

// Project is the root of the ownership tree. Deleting a project cascades
// to every child entity and revokes associated credential references.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AuditEntry is one row of the append-only audit log.
type AuditEntry struct {
	ID        int64     `json:"id"`
	ProjectID string    `json:"project_id"`
	DeviceID  string    `json:"device_id,omitempty"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
