// Package pipeline owns the deal stages a project moves through and the
// gate guard that protects the sample-review to bulk-contract transition.
package pipeline

import (
	"fmt"

	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/gate"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/tradedoc"
)

// Stage is a project's position in the export deal pipeline.
type Stage string

const (
	StageLead         Stage = "lead"
	StageSampleReview Stage = "sample_review"
	StageBulkContract Stage = "bulk_contract"
	StageShipping     Stage = "shipping"
	StageClosed       Stage = "closed"
)

// order fixes the forward progression; advancing skips no stages.
var order = []Stage{StageLead, StageSampleReview, StageBulkContract, StageShipping, StageClosed}

// Normalize returns the canonical stage for a raw string, defaulting to lead.
func Normalize(raw string) Stage {
	for _, stage := range order {
		if Stage(raw) == stage {
			return stage
		}
	}
	return StageLead
}

// Next returns the stage after current, or current itself at the end of the
// pipeline.
func Next(current Stage) Stage {
	for i, stage := range order {
		if stage == current && i+1 < len(order) {
			return order[i+1]
		}
	}
	return current
}

// BlockedError reports a refused advancement together with the findings the
// user must resolve. Gate is the full run so the UI can render the table.
type BlockedError struct {
	From     Stage
	Gate     gate.Result
	Findings []gate.CheckResult
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("stage advance from %s blocked: %d of %d checks passed",
		e.From, e.Gate.PassedChecks, e.Gate.RequiredChecks)
}

// Advance computes the next stage for a project, running the gate over the
// current document snapshot when leaving sample review. On a failed gate it
// returns a *BlockedError and the project stays put. The gate result is
// returned for passing transitions too, so callers can show advisory
// confirmations alongside the new stage.
func Advance(current Stage, docs []tradedoc.Document) (Stage, *gate.Result, error) {
	next := Next(current)
	if next == current {
		return current, nil, fmt.Errorf("project already at final stage %s", current)
	}

	if current != StageSampleReview {
		return next, nil, nil
	}

	result := gate.Run(docs)
	if !result.Passed {
		return current, &result, &BlockedError{
			From:     current,
			Gate:     result,
			Findings: result.BlockingFindings(),
		}
	}
	return next, &result, nil
}
