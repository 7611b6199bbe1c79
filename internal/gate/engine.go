package gate

import (
	"fmt"

	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/tradedoc"
)

// Run evaluates every registered check against the given document snapshot
// and aggregates the verdict. The overall Passed flag follows the literal
// product rule: any FAIL blocks passage regardless of severity, while
// NEED_USER_CONFIRM never does.
//
// A check whose Evaluate panics is recorded as a FAIL carrying the panic
// message in its details; the remaining checks still run, and the run as a
// whole can never turn an evaluation error into a pass.
func Run(docs []tradedoc.Document) Result {
	results := make([]CheckResult, 0, len(Registry))
	passed := true
	passedChecks := 0

	for _, check := range Registry {
		outcome := evaluate(check, docs)
		if outcome.Status == StatusFail {
			passed = false
		}
		if outcome.Status == StatusPass {
			passedChecks++
		}
		results = append(results, CheckResult{
			ID:        check.ID,
			Title:     check.Title,
			TitleEn:   check.TitleEn,
			Severity:  check.Severity,
			Rule:      check.Rule,
			FixAction: check.FixAction,
			Status:    outcome.Status,
			Details:   outcome.Details,
		})
	}

	return Result{
		Passed:         passed,
		PassedChecks:   passedChecks,
		RequiredChecks: len(Registry),
		Results:        results,
	}
}

func evaluate(check Check, docs []tradedoc.Document) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = fail(fmt.Sprintf("check %s crashed: %v", check.ID, r))
		}
	}()
	return check.Evaluate(docs)
}

// BlockingFindings returns the rows a stage controller should surface when a
// run does not pass: every FAIL, highest severity first in registry order.
func (r Result) BlockingFindings() []CheckResult {
	var findings []CheckResult
	for _, severity := range []Severity{SeverityHigh, SeverityMed, SeverityLow} {
		for _, row := range r.Results {
			if row.Status == StatusFail && row.Severity == severity {
				findings = append(findings, row)
			}
		}
	}
	return findings
}
