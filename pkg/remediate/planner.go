// Package remediate turns failed validation findings into approvable
// per-device CLI patch plans and drives their application and rollback.
package remediate

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/netval-app/netval/pkg/checks"
	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/store"
	"github.com/netval-app/netval/pkg/util"
)

var vlanIDRe = regexp.MustCompile(`vlan (\d+)`)

// Plan builds a pending remediation plan from failed findings. Only
// findings that carry a suggested fix become items; items start approved
// so the reviewer unticks rather than re-approves one by one.
func Plan(ctx context.Context, st *store.Store, projectID string, findings []checks.CheckResult) (*model.RemediationPlan, error) {
	var items []model.RemediationItem
	for _, f := range findings {
		if f.Passed || f.SuggestedFix == "" || f.DeviceID == "" {
			continue
		}
		items = append(items, model.RemediationItem{
			DeviceID:      f.DeviceID,
			Interface:     f.Interface,
			SourceCheckID: f.CheckID,
			CLIPatch:      f.SuggestedFix,
			RollbackCLI:   rollbackFor(f.CheckID, f.SuggestedFix),
			Approved:      true,
		})
	}
	if len(items) == 0 {
		return nil, util.NewValidationError("no remediable findings")
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].DeviceID != items[j].DeviceID {
			return items[i].DeviceID < items[j].DeviceID
		}
		if items[i].SourceCheckID != items[j].SourceCheckID {
			return items[i].SourceCheckID < items[j].SourceCheckID
		}
		return items[i].Interface < items[j].Interface
	})
	return st.CreatePlan(ctx, projectID, items)
}

// rollbackFor derives the CLI that undoes a patch. The inverse is exact
// where the patch is additive; where the prior value is unknowable from
// the finding it falls back to the platform default.
func rollbackFor(checkID, patch string) string {
	switch checkID {
	case checks.CheckVlanContinuity, checks.CheckVlanOrphanSVI:
		if m := vlanIDRe.FindStringSubmatch(patch); m != nil {
			return "no vlan " + m[1]
		}
	case checks.CheckWLCJoinChain:
		if strings.HasPrefix(patch, "switchport trunk allowed vlan add ") {
			return "switchport trunk allowed vlan remove " +
				strings.TrimPrefix(patch, "switchport trunk allowed vlan add ")
		}
	case checks.CheckTrunkNativeMismatch:
		return "no switchport trunk native vlan"
	case checks.CheckRoutingBlackhole:
		if strings.HasPrefix(patch, "no ") {
			return strings.TrimPrefix(patch, "no ")
		}
	case checks.CheckDuplexMismatch:
		return "duplex auto"
	}
	return fmt.Sprintf("! no automatic rollback for %s", checkID)
}
