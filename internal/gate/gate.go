// Package gate runs the cross-document consistency checks that guard stage
// advancement. The engine is a pure, synchronous projection over a snapshot
// of a project's current document set: it never mutates documents and never
// retains state between runs.
package gate

import (
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/tradedoc"
)

// Status is the three-state outcome of a single check. NeedConfirm marks
// conditions that cannot be decided automatically (a comparison document is
// missing, or a difference is ambiguous rather than provably wrong) and
// never blocks advancement on its own.
type Status string

const (
	StatusPass        Status = "PASS"
	StatusFail        Status = "FAIL"
	StatusNeedConfirm Status = "NEED_USER_CONFIRM"
)

// Severity classifies how a failing check affects the overall verdict in the
// UI. High failures are blocking; med and low are advisory badges.
type Severity string

const (
	SeverityHigh Severity = "HIGH"
	SeverityMed  Severity = "MED"
	SeverityLow  Severity = "LOW"
)

// AmountTolerance is the absolute tolerance applied to every currency and
// quantity equality check. Line amounts are rounded to 2 decimal places, so
// qty*price products can carry representation error below that granularity.
const AmountTolerance = 0.01

// Outcome is the result of evaluating one check against a document set.
type Outcome struct {
	Status  Status `json:"status"`
	Details string `json:"details,omitempty"`
}

func pass() Outcome { return Outcome{Status: StatusPass} }

func fail(details string) Outcome { return Outcome{Status: StatusFail, Details: details} }

func needConfirm(details string) Outcome {
	return Outcome{Status: StatusNeedConfirm, Details: details}
}

// Check is one registry entry. Evaluate must be pure: same documents in,
// same outcome out, no I/O, no mutation of the input slice.
type Check struct {
	ID        string
	Title     string
	TitleEn   string
	Severity  Severity
	Rule      string
	FixAction string
	Evaluate  func(docs []tradedoc.Document) Outcome
}

// CheckResult is one row of a gate run: the check's identity plus its
// outcome, in registry order.
type CheckResult struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	TitleEn   string   `json:"titleEn"`
	Severity  Severity `json:"severity"`
	Rule      string   `json:"rule"`
	FixAction string   `json:"fixAction"`
	Status    Status   `json:"status"`
	Details   string   `json:"details,omitempty"`
}

// Result is the aggregate verdict of one gate run. Results always holds
// exactly one entry per registered check, in registry order, so the UI table
// and snapshot tests stay deterministic.
type Result struct {
	Passed         bool          `json:"passed"`
	PassedChecks   int           `json:"passedChecks"`
	RequiredChecks int           `json:"requiredChecks"`
	Results        []CheckResult `json:"results"`
}
