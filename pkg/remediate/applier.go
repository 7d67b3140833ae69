package remediate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/netval-app/netval/pkg/checks"
	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/sshio"
	"github.com/netval-app/netval/pkg/store"
	"github.com/netval-app/netval/pkg/util"
)

// DefaultRetention is how long after apply a plan may still be rolled back.
const DefaultRetention = 24 * time.Hour

// Engine applies and rolls back remediation plans against live devices.
type Engine struct {
	store     *store.Store
	ssh       *sshio.Service
	retention time.Duration
}

// NewEngine wires an Engine; retention <= 0 uses the default window.
func NewEngine(st *store.Store, ssh *sshio.Service, retention time.Duration) *Engine {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Engine{store: st, ssh: ssh, retention: retention}
}

// DeviceOutcome is the apply/rollback result for one device.
type DeviceOutcome struct {
	DeviceID     string `json:"device_id"`
	LinesApplied int    `json:"lines_applied"`
	Error        string `json:"error,omitempty"`
}

// ApplyResult is the terminal payload of a remediation job.
type ApplyResult struct {
	PlanID  string           `json:"plan_id"`
	Status  model.PlanStatus `json:"status"`
	Devices []DeviceOutcome  `json:"devices"`
}

// Progress receives per-line and per-device events during apply.
type Progress struct {
	Line           func(deviceID, line string)
	DeviceComplete func(outcome DeviceOutcome)
}

// Apply executes a plan's approved items device by device. A device
// failure is recorded and the remaining devices still run; any failure
// leaves the plan failed. The confirm flag must already have been
// checked by the caller's API layer, and is enforced again here before
// any session is opened.
func (e *Engine) Apply(ctx context.Context, planID string, confirm bool, progress Progress) (*ApplyResult, error) {
	if !confirm {
		return nil, util.ErrConfirmationRequired
	}
	plan, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != model.PlanApproved {
		return nil, util.NewValidationError(
			fmt.Sprintf("plan is %s, only approved plans can be applied", plan.Status))
	}
	if _, err := e.store.TransitionPlan(ctx, planID, model.PlanApplying); err != nil {
		return nil, err
	}

	scripts := scriptsByDevice(plan.Items, func(it model.RemediationItem) string { return it.CLIPatch })
	result := &ApplyResult{PlanID: planID}
	anyFailed := false
	for _, deviceID := range sortedKeys(scripts) {
		lines := scripts[deviceID]
		outcome := DeviceOutcome{DeviceID: deviceID}
		onLine := func(line string) {
			if progress.Line != nil {
				progress.Line(deviceID, line)
			}
		}
		pr, err := e.ssh.Push(ctx, deviceID, lines, true, onLine)
		if err != nil {
			outcome.Error = err.Error()
			anyFailed = true
			util.WithDevice(deviceID).Errorf("remediation push failed: %v", err)
		} else {
			outcome.LinesApplied = pr.LinesApplied
		}
		if progress.DeviceComplete != nil {
			progress.DeviceComplete(outcome)
		}
		result.Devices = append(result.Devices, outcome)
	}

	final := model.PlanApplied
	if anyFailed {
		final = model.PlanFailed
	}
	if _, err := e.store.TransitionPlan(ctx, planID, final); err != nil {
		return nil, err
	}
	result.Status = final
	return result, nil
}

// Rollback pushes every applied item's inverse CLI, in reverse order,
// while the plan is still inside the retention window.
func (e *Engine) Rollback(ctx context.Context, planID string, confirm bool, progress Progress) (*ApplyResult, error) {
	if !confirm {
		return nil, util.ErrConfirmationRequired
	}
	plan, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != model.PlanApplied || plan.AppliedAt == nil {
		return nil, util.NewValidationError(
			fmt.Sprintf("plan is %s, only applied plans can be rolled back", plan.Status))
	}
	if time.Since(*plan.AppliedAt) > e.retention {
		return nil, util.NewValidationError(
			fmt.Sprintf("plan applied %s ago, past the %s rollback window",
				time.Since(*plan.AppliedAt).Round(time.Minute), e.retention))
	}

	reversed := make([]model.RemediationItem, len(plan.Items))
	for i, it := range plan.Items {
		reversed[len(plan.Items)-1-i] = it
	}
	scripts := scriptsByDevice(reversed, func(it model.RemediationItem) string { return it.RollbackCLI })

	result := &ApplyResult{PlanID: planID}
	var firstErr error
	for _, deviceID := range sortedKeys(scripts) {
		outcome := DeviceOutcome{DeviceID: deviceID}
		onLine := func(line string) {
			if progress.Line != nil {
				progress.Line(deviceID, line)
			}
		}
		pr, err := e.ssh.Push(ctx, deviceID, scripts[deviceID], true, onLine)
		if err != nil {
			outcome.Error = err.Error()
			if firstErr == nil {
				firstErr = err
			}
		} else {
			outcome.LinesApplied = pr.LinesApplied
		}
		if progress.DeviceComplete != nil {
			progress.DeviceComplete(outcome)
		}
		result.Devices = append(result.Devices, outcome)
	}
	if firstErr != nil {
		return result, firstErr
	}

	plan, err = e.store.TransitionPlan(ctx, planID, model.PlanRolledBack)
	if err != nil {
		return nil, err
	}
	result.Status = plan.Status
	return result, nil
}

// interfaceScoped reports whether a check's CLI belongs inside the
// target interface stanza. Other checks patch global configuration even
// when the finding names an interface, so their lines must not be
// nested under it.
func interfaceScoped(checkID string) bool {
	switch checkID {
	case checks.CheckWLCJoinChain, checks.CheckTrunkNativeMismatch, checks.CheckDuplexMismatch:
		return true
	}
	return false
}

// scriptsByDevice flattens approved items into per-device CLI scripts.
// Interface-scoped patches are wrapped in their interface stanza, global
// ones are emitted as-is; comment-only rollback lines are skipped.
func scriptsByDevice(items []model.RemediationItem, cli func(model.RemediationItem) string) map[string][]string {
	scripts := make(map[string][]string)
	for _, it := range items {
		if !it.Approved {
			continue
		}
		text := cli(it)
		if text == "" || strings.HasPrefix(text, "! ") {
			continue
		}
		lines := strings.Split(text, "\n")
		if it.Interface != "" && interfaceScoped(it.SourceCheckID) {
			wrapped := make([]string, 0, len(lines)+2)
			wrapped = append(wrapped, "interface "+it.Interface)
			for _, l := range lines {
				wrapped = append(wrapped, " "+strings.TrimRight(l, " "))
			}
			wrapped = append(wrapped, "exit")
			lines = wrapped
		}
		scripts[it.DeviceID] = append(scripts[it.DeviceID], lines...)
	}
	return scripts
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
