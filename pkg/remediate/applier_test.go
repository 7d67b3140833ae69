package remediate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/netval-app/netval/internal/testutil"
	"github.com/netval-app/netval/pkg/checks"
	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/sshio"
	"github.com/netval-app/netval/pkg/store"
	"github.com/netval-app/netval/pkg/util"
	"github.com/netval-app/netval/pkg/vault"
)

// fakeConn answers every show command with a canned running config and
// records configured lines.
type fakeConn struct {
	configured [][]string
}

func (c *fakeConn) Run(context.Context, string) (string, error) {
	return testutil.CoreConfig, nil
}

func (c *fakeConn) Configure(_ context.Context, lines []string, onLine func(string)) error {
	c.configured = append(c.configured, lines)
	for _, l := range lines {
		if onLine != nil {
			onLine(l)
		}
	}
	return nil
}

func (c *fakeConn) Close() error { return nil }

// fakeFleet hands out one fakeConn per address, failing addresses listed
// in down.
type fakeFleet struct {
	conns map[string]*fakeConn
	down  map[string]bool
}

func newFleet() *fakeFleet {
	return &fakeFleet{conns: make(map[string]*fakeConn), down: make(map[string]bool)}
}

func (f *fakeFleet) dial(_ context.Context, addr string, _ vault.Material) (sshio.Conn, error) {
	if f.down[addr] {
		return nil, errors.New("dial tcp: connection refused")
	}
	conn, ok := f.conns[addr]
	if !ok {
		conn = &fakeConn{}
		f.conns[addr] = conn
	}
	return conn, nil
}

// applyHarness seeds the campus, stores credentials for the core and
// access switches, and builds an Engine over the fake fleet.
func applyHarness(t *testing.T, fleet *fakeFleet, retention time.Duration) (*Engine, *store.Store, *testutil.Campus) {
	t.Helper()
	st := testutil.OpenStore(t)
	ctx := testutil.Context(t)
	c := testutil.SeedCampus(t, st)

	v := vault.NewMemory()
	for _, d := range []*model.Device{c.Core, c.Access} {
		ref, err := v.Store(c.ProjectID, d.ID, vault.Material{Username: "admin", Password: "secret"})
		if err != nil {
			t.Fatal(err)
		}
		if err := st.SetDeviceCredentialRef(ctx, d.ID, ref); err != nil {
			t.Fatal(err)
		}
	}

	svc := sshio.NewService(st, v, sshio.NewPool(2, fleet.dial))
	return NewEngine(st, svc, retention), st, c
}

func campusPlan(t *testing.T, st *store.Store, c *testutil.Campus) *model.RemediationPlan {
	t.Helper()
	findings := []checks.CheckResult{
		{CheckID: checks.CheckVlanContinuity, Passed: false, DeviceID: c.Access.ID,
			Interface: "GigabitEthernet1/0/1", SuggestedFix: "vlan 20\n name VLAN20"},
		{CheckID: checks.CheckDuplexMismatch, Passed: false, DeviceID: c.Core.ID,
			Interface: "GigabitEthernet1/0/1", SuggestedFix: "duplex auto"},
	}
	plan, err := Plan(testutil.Context(t), st, c.ProjectID, findings)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	return plan
}

func TestApply(t *testing.T) {
	fleet := newFleet()
	eng, st, c := applyHarness(t, fleet, 0)
	ctx := testutil.Context(t)
	plan := campusPlan(t, st, c)

	if _, err := eng.Apply(ctx, plan.ID, false, Progress{}); !errors.Is(err, util.ErrConfirmationRequired) {
		t.Errorf("unconfirmed apply: err = %v", err)
	}
	if _, err := eng.Apply(ctx, plan.ID, true, Progress{}); !errors.Is(err, util.ErrValidationFailed) {
		t.Errorf("apply of pending plan: err = %v", err)
	}

	if _, err := st.TransitionPlan(ctx, plan.ID, model.PlanApproved); err != nil {
		t.Fatal(err)
	}

	var lines []string
	var completed []DeviceOutcome
	res, err := eng.Apply(ctx, plan.ID, true, Progress{
		Line:           func(_ string, line string) { lines = append(lines, line) },
		DeviceComplete: func(o DeviceOutcome) { completed = append(completed, o) },
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Status != model.PlanApplied || len(res.Devices) != 2 {
		t.Fatalf("result = %+v", res)
	}
	for _, o := range res.Devices {
		if o.Error != "" || o.LinesApplied == 0 {
			t.Errorf("outcome = %+v", o)
		}
	}
	if len(completed) != 2 || len(lines) == 0 {
		t.Errorf("progress: %d completions, %d lines", len(completed), len(lines))
	}

	// The access switch received the VLAN declaration at global scope,
	// not nested under the interface the finding was detected on.
	access := fleet.conns["10.0.0.2:22"]
	if access == nil || len(access.configured) != 1 {
		t.Fatalf("access pushes = %+v", fleet.conns)
	}
	script := strings.Join(access.configured[0], "\n")
	if !strings.Contains(script, "vlan 20") || strings.Contains(script, "interface") {
		t.Errorf("access script:\n%s", script)
	}

	// The core's duplex patch is interface-scoped and stays wrapped.
	core := fleet.conns["10.0.0.1:22"]
	if core == nil || len(core.configured) != 1 {
		t.Fatalf("core pushes = %+v", fleet.conns)
	}
	coreScript := strings.Join(core.configured[0], "\n")
	if !strings.Contains(coreScript, "interface GigabitEthernet1/0/1") || !strings.Contains(coreScript, "duplex auto") {
		t.Errorf("core script:\n%s", coreScript)
	}

	// Pre-push snapshots exist for both devices.
	for _, d := range []*model.Device{c.Core, c.Access} {
		if _, err := st.LatestPrePushSnapshot(ctx, d.ID); err != nil {
			t.Errorf("pre-push snapshot for %s: %v", d.Hostname, err)
		}
	}

	got, _ := st.GetPlan(ctx, plan.ID)
	if got.Status != model.PlanApplied || got.AppliedAt == nil {
		t.Errorf("stored plan = %+v", got)
	}
}

func TestApplySkipsUnapprovedItems(t *testing.T) {
	fleet := newFleet()
	eng, st, c := applyHarness(t, fleet, 0)
	ctx := testutil.Context(t)
	plan := campusPlan(t, st, c)

	// Untick whichever item targets the core.
	for i, it := range plan.Items {
		if it.DeviceID == c.Core.ID {
			if _, err := st.SetPlanItemApproved(ctx, plan.ID, i, false); err != nil {
				t.Fatal(err)
			}
		}
	}
	if _, err := st.TransitionPlan(ctx, plan.ID, model.PlanApproved); err != nil {
		t.Fatal(err)
	}

	res, err := eng.Apply(ctx, plan.ID, true, Progress{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(res.Devices) != 1 || res.Devices[0].DeviceID != c.Access.ID {
		t.Errorf("devices = %+v, want access only", res.Devices)
	}
	if fleet.conns["10.0.0.1:22"] != nil {
		t.Error("core was dialed for an unapproved item")
	}
}

func TestApplyContinuesPastDeviceFailure(t *testing.T) {
	fleet := newFleet()
	fleet.down["10.0.0.2:22"] = true
	eng, st, c := applyHarness(t, fleet, 0)
	ctx := testutil.Context(t)
	plan := campusPlan(t, st, c)
	if _, err := st.TransitionPlan(ctx, plan.ID, model.PlanApproved); err != nil {
		t.Fatal(err)
	}

	res, err := eng.Apply(ctx, plan.ID, true, Progress{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Status != model.PlanFailed {
		t.Errorf("status = %q, want failed", res.Status)
	}
	if len(res.Devices) != 2 {
		t.Fatalf("devices = %+v", res.Devices)
	}
	var failed, ok int
	for _, o := range res.Devices {
		if o.Error != "" {
			failed++
		} else {
			ok++
		}
	}
	if failed != 1 || ok != 1 {
		t.Errorf("outcomes = %+v", res.Devices)
	}
	// The healthy device still received its push.
	if fleet.conns["10.0.0.1:22"] == nil || len(fleet.conns["10.0.0.1:22"].configured) != 1 {
		t.Error("healthy device skipped after peer failure")
	}
}

func TestRollback(t *testing.T) {
	fleet := newFleet()
	eng, st, c := applyHarness(t, fleet, time.Hour)
	ctx := testutil.Context(t)
	plan := campusPlan(t, st, c)
	if _, err := st.TransitionPlan(ctx, plan.ID, model.PlanApproved); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Apply(ctx, plan.ID, true, Progress{}); err != nil {
		t.Fatal(err)
	}

	if _, err := eng.Rollback(ctx, plan.ID, false, Progress{}); !errors.Is(err, util.ErrConfirmationRequired) {
		t.Errorf("unconfirmed rollback: err = %v", err)
	}

	res, err := eng.Rollback(ctx, plan.ID, true, Progress{})
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if res.Status != model.PlanRolledBack {
		t.Errorf("status = %q", res.Status)
	}

	// The access switch received the inverse of its VLAN patch.
	access := fleet.conns["10.0.0.2:22"]
	if access == nil || len(access.configured) != 2 {
		t.Fatalf("access pushes = %d, want apply then rollback", len(access.configured))
	}
	script := strings.Join(access.configured[1], "\n")
	if !strings.Contains(script, "no vlan 20") {
		t.Errorf("rollback script:\n%s", script)
	}

	got, _ := st.GetPlan(ctx, plan.ID)
	if got.Status != model.PlanRolledBack {
		t.Errorf("stored status = %q", got.Status)
	}

	// A second rollback has nothing applied to undo.
	if _, err := eng.Rollback(ctx, plan.ID, true, Progress{}); !errors.Is(err, util.ErrValidationFailed) {
		t.Errorf("double rollback: err = %v", err)
	}
}

func TestRollbackRejectsSupersededPlan(t *testing.T) {
	fleet := newFleet()
	eng, st, c := applyHarness(t, fleet, time.Hour)
	ctx := testutil.Context(t)

	first := campusPlan(t, st, c)
	if _, err := st.TransitionPlan(ctx, first.ID, model.PlanApproved); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Apply(ctx, first.ID, true, Progress{}); err != nil {
		t.Fatal(err)
	}

	// A second successful apply takes over the rollback window.
	second := campusPlan(t, st, c)
	if _, err := st.TransitionPlan(ctx, second.ID, model.PlanApproved); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Apply(ctx, second.ID, true, Progress{}); err != nil {
		t.Fatal(err)
	}

	if _, err := eng.Rollback(ctx, first.ID, true, Progress{}); !errors.Is(err, util.ErrValidationFailed) {
		t.Errorf("rollback of superseded plan: err = %v", err)
	}
	if _, err := eng.Rollback(ctx, second.ID, true, Progress{}); err != nil {
		t.Errorf("rollback of newest plan: %v", err)
	}
}

func TestRollbackRetentionWindow(t *testing.T) {
	fleet := newFleet()
	eng, st, c := applyHarness(t, fleet, time.Nanosecond)
	ctx := testutil.Context(t)
	plan := campusPlan(t, st, c)
	if _, err := st.TransitionPlan(ctx, plan.ID, model.PlanApproved); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Apply(ctx, plan.ID, true, Progress{}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)
	_, err := eng.Rollback(ctx, plan.ID, true, Progress{})
	if !errors.Is(err, util.ErrValidationFailed) {
		t.Errorf("expired rollback: err = %v", err)
	}
}
