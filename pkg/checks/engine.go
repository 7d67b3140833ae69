package checks

import (
	"fmt"
	"sort"
	"time"

	"github.com/netval-app/netval/pkg/topology"
	"github.com/netval-app/netval/pkg/util"
)

// DefaultCheckBudget bounds one check's run time. A check exceeding it is
// reported as an internal-error finding; the remaining checks still run.
const DefaultCheckBudget = 10 * time.Second

// Progress receives check lifecycle notifications between checks.
type Progress func(event string, checkID string)

// Engine runs the registry against an assembled graph.
type Engine struct {
	registry []Check
	budget   time.Duration
}

// NewEngine creates an engine over the fixed registry.
func NewEngine() *Engine {
	return &Engine{registry: Registry(), budget: DefaultCheckBudget}
}

// Run executes every registered check in registry order and aggregates a
// deterministic AuditResult. A panicking or overrunning check becomes a
// severity=error finding with check_id "<id>_INTERNAL"; it never aborts
// the pipeline.
func (e *Engine) Run(g *topology.Graph, progress Progress) *AuditResult {
	result := &AuditResult{
		Findings:     []CheckResult{},
		Reachability: g.Reachability(),
	}

	for _, id := range g.SortedDeviceIDs() {
		result.Devices = append(result.Devices, g.Nodes[id].Hostname)
	}
	sort.Strings(result.Devices)

	for _, chk := range e.registry {
		if progress != nil {
			progress("check_start", chk.ID())
		}
		findings := e.runOne(chk, g)
		result.Findings = append(result.Findings, findings...)
		if progress != nil {
			progress("check_complete", chk.ID())
		}
	}

	result.Summary.TotalChecks = len(e.registry)
	for _, f := range result.Findings {
		if f.Passed {
			result.Summary.Passed++
			continue
		}
		result.Summary.Failed++
		switch f.Severity {
		case SeverityError:
			result.Summary.Errors++
		case SeverityWarning:
			result.Summary.Warnings++
		}
	}
	return result
}

// runOne executes a single check under the budget, converting panics and
// overruns into internal-error findings.
func (e *Engine) runOne(chk Check, g *topology.Graph) []CheckResult {
	type outcome struct {
		findings []CheckResult
		err      error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%v", r)}
			}
		}()
		done <- outcome{findings: chk.Run(g)}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			util.WithField("check", chk.ID()).Errorf("check panicked: %v", out.err)
			return []CheckResult{{
				CheckID:  chk.ID() + "_INTERNAL",
				Severity: SeverityError,
				Passed:   false,
				Detail:   out.err.Error(),
			}}
		}
		return out.findings
	case <-time.After(e.budget):
		util.WithField("check", chk.ID()).Errorf("check exceeded budget %s", e.budget)
		return []CheckResult{{
			CheckID:  chk.ID() + "_INTERNAL",
			Severity: SeverityError,
			Passed:   false,
			Detail:   fmt.Sprintf("check exceeded %s budget", e.budget),
		}}
	}
}

// pass builds the single info finding a check emits when everything it
// inspected was healthy.
func pass(checkID, detail string) []CheckResult {
	return []CheckResult{{
		CheckID:  checkID,
		Severity: SeverityInfo,
		Passed:   true,
		Detail:   detail,
	}}
}
