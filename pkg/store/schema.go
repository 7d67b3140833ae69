package store

// schema is the full DDL, applied idempotently on open. Cascade rules
// mirror the ownership tree: project -> device -> (interface, vlan,
// snapshot), project -> link -> (device, device).
const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS devices (
	id             TEXT PRIMARY KEY,
	project_id     TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	hostname       TEXT NOT NULL,
	role           TEXT NOT NULL,
	vendor         TEXT NOT NULL DEFAULT 'cisco',
	platform       TEXT NOT NULL DEFAULT 'ios-xe',
	management_ip  TEXT NOT NULL DEFAULT '',
	canvas_x       REAL NOT NULL DEFAULT 0,
	canvas_y       REAL NOT NULL DEFAULT 0,
	credential_ref TEXT NOT NULL DEFAULT '',
	config_hash    TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_devices_project ON devices(project_id);

CREATE TABLE IF NOT EXISTS interfaces (
	id          TEXT PRIMARY KEY,
	device_id   TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	mode        TEXT NOT NULL DEFAULT 'unknown',
	vlan_access INTEGER NOT NULL DEFAULT 0,
	vlan_trunk_allowed TEXT NOT NULL DEFAULT '[]',
	native_vlan INTEGER NOT NULL DEFAULT 0,
	duplex      TEXT NOT NULL DEFAULT '',
	ip_address  TEXT NOT NULL DEFAULT '',
	ip_mask     TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL DEFAULT 'unknown',
	UNIQUE (device_id, name)
);

CREATE TABLE IF NOT EXISTS device_vlans (
	device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
	vlan_id   INTEGER NOT NULL,
	name      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (device_id, vlan_id)
);

CREATE TABLE IF NOT EXISTS links (
	id               TEXT PRIMARY KEY,
	project_id       TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	source_device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
	source_interface TEXT NOT NULL,
	target_device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
	target_interface TEXT NOT NULL,
	medium           TEXT NOT NULL DEFAULT 'ethernet',
	vlan_allow_list  TEXT NOT NULL DEFAULT '[]',
	state            TEXT NOT NULL DEFAULT 'pending'
);
CREATE INDEX IF NOT EXISTS idx_links_project ON links(project_id);

CREATE TABLE IF NOT EXISTS config_snapshots (
	id          TEXT PRIMARY KEY,
	device_id   TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
	raw_config  TEXT NOT NULL,
	config_hash TEXT NOT NULL,
	source      TEXT NOT NULL,
	taken_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_device ON config_snapshots(device_id, taken_at);

CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	kind         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	result       TEXT,
	error        TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMP,
	completed_at TIMESTAMP,
	created_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS remediation_plans (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	items      TEXT NOT NULL DEFAULT '[]',
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMP NOT NULL,
	applied_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL,
	device_id  TEXT NOT NULL DEFAULT '',
	actor      TEXT NOT NULL,
	action     TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	timestamp  TIMESTAMP NOT NULL
);
`
