package sshio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/netval-app/netval/internal/testutil"
	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/store"
	"github.com/netval-app/netval/pkg/util"
	"github.com/netval-app/netval/pkg/vault"
)

// fakeConn is a scripted device conversation. Run answers from outputs;
// Configure records the applied lines.
type fakeConn struct {
	mu         sync.Mutex
	outputs    map[string]string
	ran        []string
	configured [][]string
	confErr    error
}

func (c *fakeConn) Run(_ context.Context, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ran = append(c.ran, cmd)
	return c.outputs[cmd], nil
}

func (c *fakeConn) Configure(_ context.Context, lines []string, onLine func(string)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.confErr != nil {
		return c.confErr
	}
	c.configured = append(c.configured, lines)
	for _, l := range lines {
		if onLine != nil {
			onLine(l)
		}
	}
	return nil
}

func (c *fakeConn) Close() error { return nil }

type fakeDialer struct {
	mu      sync.Mutex
	conn    *fakeConn
	dialErr error
	dials   int
}

func (d *fakeDialer) dial(_ context.Context, _ string, _ vault.Material) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return d.conn, nil
}

// harness wires a Service over the fixture store, an in-memory vault, and
// the fake dialer, with credentials stored for the core switch.
func harness(t *testing.T, dialer *fakeDialer) (*Service, *store.Store, *testutil.Campus) {
	t.Helper()
	st := testutil.OpenStore(t)
	ctx := testutil.Context(t)
	c := testutil.SeedCampus(t, st)

	v := vault.NewMemory()
	ref, err := v.Store(c.ProjectID, c.Core.ID, vault.Material{Username: "admin", Password: "secret"})
	if err != nil {
		t.Fatalf("storing credential: %v", err)
	}
	if err := st.SetDeviceCredentialRef(ctx, c.Core.ID, ref); err != nil {
		t.Fatalf("setting ref: %v", err)
	}

	svc := NewService(st, v, NewPool(2, dialer.dial))
	return svc, st, c
}

func TestIngest(t *testing.T) {
	dialer := &fakeDialer{conn: &fakeConn{outputs: map[string]string{
		"show running-config": testutil.CoreConfig,
		"show version":        "Cisco IOS XE",
	}}}
	svc, st, c := harness(t, dialer)
	ctx := testutil.Context(t)

	res, err := svc.Ingest(ctx, c.Core.ID)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Hostname != "core1" || res.InterfaceCount != 3 || res.VlanCount != 2 {
		t.Errorf("result = %+v", res)
	}
	if res.ConfigHash != util.ConfigHash(testutil.CoreConfig) {
		t.Error("result hash mismatch")
	}
	if len(res.Outputs) != len(IngestCommands) {
		t.Errorf("outputs = %d, want one per command", len(res.Outputs))
	}

	// Every fixed command ran, in order.
	if len(dialer.conn.ran) != len(IngestCommands) {
		t.Fatalf("ran %v", dialer.conn.ran)
	}
	for i, cmd := range IngestCommands {
		if dialer.conn.ran[i] != cmd {
			t.Errorf("command %d = %q, want %q", i, dialer.conn.ran[i], cmd)
		}
	}

	snap, err := st.LatestSnapshot(ctx, c.Core.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Source != model.SourceSSH || snap.ID != res.SnapshotID {
		t.Errorf("snapshot = %+v", snap)
	}
	d, _ := st.GetDevice(ctx, c.Core.ID)
	if d.ConfigHash != res.ConfigHash {
		t.Error("device config_hash not updated")
	}
	if len(d.Interfaces) != 3 || len(d.Vlans) != 2 {
		t.Errorf("materialized %d interfaces, %d vlans", len(d.Interfaces), len(d.Vlans))
	}

	audit, _ := st.ListAudit(ctx, c.ProjectID, 0)
	if len(audit) != 1 || audit[0].Action != "ssh_ingest" {
		t.Errorf("audit = %+v", audit)
	}
}

func TestIngestPreconditions(t *testing.T) {
	dialer := &fakeDialer{conn: &fakeConn{}}
	svc, _, c := harness(t, dialer)
	ctx := testutil.Context(t)

	// No credentials stored for the access switch.
	if _, err := svc.Ingest(ctx, c.Access.ID); !errors.Is(err, util.ErrValidationFailed) {
		t.Errorf("no credentials: err = %v", err)
	}
	// The AP has no management IP at all.
	if _, err := svc.Ingest(ctx, c.AP.ID); !errors.Is(err, util.ErrValidationFailed) {
		t.Errorf("no management IP: err = %v", err)
	}
	if dialer.dials != 0 {
		t.Errorf("dialed %d times before preconditions held", dialer.dials)
	}
}

func TestIngestDanglingCredentialRef(t *testing.T) {
	dialer := &fakeDialer{conn: &fakeConn{}}
	svc, st, c := harness(t, dialer)
	ctx := testutil.Context(t)

	if err := st.SetDeviceCredentialRef(ctx, c.Core.ID, "gone"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Ingest(ctx, c.Core.ID)
	if !errors.Is(err, util.ErrAuthFailed) {
		t.Errorf("dangling ref: err = %v, want auth failure", err)
	}
}

func TestPushConfirmGate(t *testing.T) {
	dialer := &fakeDialer{conn: &fakeConn{}}
	svc, _, c := harness(t, dialer)
	ctx := testutil.Context(t)

	if _, err := svc.Push(ctx, c.Core.ID, []string{"vlan 20"}, false, nil); !errors.Is(err, util.ErrConfirmationRequired) {
		t.Errorf("unconfirmed push: err = %v", err)
	}
	if _, err := svc.Push(ctx, c.Core.ID, nil, true, nil); !errors.Is(err, util.ErrValidationFailed) {
		t.Errorf("empty push: err = %v", err)
	}
	if dialer.dials != 0 {
		t.Errorf("dialed %d times before the gate", dialer.dials)
	}
}

func TestPushCapturesPrePushSnapshot(t *testing.T) {
	dialer := &fakeDialer{conn: &fakeConn{outputs: map[string]string{
		"show running-config": testutil.CoreConfig,
	}}}
	svc, st, c := harness(t, dialer)
	ctx := testutil.Context(t)

	var streamed []string
	lines := []string{"vlan 20", " name VOICE"}
	res, err := svc.Push(ctx, c.Core.ID, lines, true, func(l string) { streamed = append(streamed, l) })
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if res.LinesApplied != 2 || res.Hostname != "core1" {
		t.Errorf("result = %+v", res)
	}

	// The running config was captured before any line went out.
	if len(dialer.conn.ran) != 1 || dialer.conn.ran[0] != "show running-config" {
		t.Errorf("ran = %v", dialer.conn.ran)
	}
	pre, err := st.LatestPrePushSnapshot(ctx, c.Core.ID)
	if err != nil {
		t.Fatalf("pre-push snapshot: %v", err)
	}
	if pre.ID != res.PrePushSnapshotID || pre.RawConfig != testutil.CoreConfig {
		t.Errorf("snapshot = %+v", pre)
	}
	// A pre_push capture never moves the device hash.
	d, _ := st.GetDevice(ctx, c.Core.ID)
	if d.ConfigHash != "" {
		t.Errorf("device hash = %q, want untouched", d.ConfigHash)
	}

	if len(dialer.conn.configured) != 1 || strings.Join(dialer.conn.configured[0], ";") != "vlan 20; name VOICE" {
		t.Errorf("configured = %v", dialer.conn.configured)
	}
	if len(streamed) != 2 {
		t.Errorf("streamed = %v", streamed)
	}

	audit, _ := st.ListAudit(ctx, c.ProjectID, 0)
	if len(audit) != 1 || audit[0].Action != "config_push" {
		t.Errorf("audit = %+v", audit)
	}
}

func TestDialErrorPhases(t *testing.T) {
	tests := []struct {
		name    string
		dialErr error
		want    error
	}{
		{"auth rejected", fmt.Errorf("ssh: unable to authenticate, attempted methods [password]"), util.ErrAuthFailed},
		{"unreachable", fmt.Errorf("dial tcp 10.0.0.1:22: i/o timeout"), util.ErrDeviceUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialer := &fakeDialer{dialErr: tt.dialErr}
			svc, _, c := harness(t, dialer)
			err := svc.TestConnection(testutil.Context(t), c.Core.ID)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPoolBoundsConcurrentSessions(t *testing.T) {
	block := make(chan struct{})
	dialer := &fakeDialer{conn: &fakeConn{}}
	pool := NewPool(1, dialer.dial)

	started := make(chan struct{})
	go pool.WithConn(context.Background(), "d1", "10.0.0.1:22", vault.Material{}, func(Conn) error {
		close(started)
		<-block
		return nil
	})
	<-started

	// The only slot is held; a caller with an expired context must give up.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := pool.WithConn(ctx, "d2", "10.0.0.2:22", vault.Material{}, func(Conn) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	close(block)
}
