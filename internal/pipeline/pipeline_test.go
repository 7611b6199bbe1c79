package pipeline

import (
	"errors"
	"testing"

	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/tradedoc"
)

func consistentDocuments() []tradedoc.Document {
	items := []tradedoc.LineItem{
		{SKU: "KB-CREAM-50", Qty: 4000, UnitPrice: 4.25, Amount: 17000},
	}
	shared := tradedoc.Fields{
		CompanyName:  "Dahlia Beauty Lab",
		Incoterms:    "CIF",
		PaymentTerms: "L/C at sight",
		Currency:     "USD",
	}

	pi := shared
	pi.Items = items
	pi.TotalAmount = 17000

	contract := shared
	contract.Clauses = []string{"All claims subject to arbitration in Seoul"}

	invoice := shared
	invoice.HSCode = "330499"

	return []tradedoc.Document{
		{Key: tradedoc.KeyFinalPI, Fields: pi},
		{Key: tradedoc.KeyContract, Fields: contract},
		{Key: tradedoc.KeyCommercialInvoice, Fields: invoice},
		{Key: tradedoc.KeyPackingList, Fields: tradedoc.Fields{Items: items}},
		{Key: tradedoc.KeyComplianceSnapshot, Fields: tradedoc.Fields{
			RulePacks: []tradedoc.RulePack{{Country: "JP", Items: []tradedoc.RuleItem{
				{Name: "Quasi-drug check", Status: "pass"},
			}}},
		}},
	}
}

func TestAdvanceWithoutGateBeforeSampleReview(t *testing.T) {
	next, result, err := Advance(StageLead, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != StageSampleReview {
		t.Fatalf("next = %s, want sample_review", next)
	}
	if result != nil {
		t.Fatal("gate must not run before sample review")
	}
}

func TestAdvanceRunsGateLeavingSampleReview(t *testing.T) {
	next, result, err := Advance(StageSampleReview, consistentDocuments())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != StageBulkContract {
		t.Fatalf("next = %s, want bulk_contract", next)
	}
	if result == nil || !result.Passed {
		t.Fatalf("expected a passing gate result, got %+v", result)
	}
}

func TestAdvanceBlockedOnFailingGate(t *testing.T) {
	docs := consistentDocuments()
	tradedoc.Find(docs, tradedoc.KeyCommercialInvoice).Fields.HSCode = "33"

	next, result, err := Advance(StageSampleReview, docs)
	if next != StageSampleReview {
		t.Fatalf("blocked advance must not move the stage, got %s", next)
	}
	if result == nil || result.Passed {
		t.Fatalf("expected failing gate result, got %+v", result)
	}

	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected *BlockedError, got %v", err)
	}
	if len(blocked.Findings) == 0 {
		t.Fatal("blocked error must carry findings")
	}
	if blocked.Findings[0].ID != "G5" {
		t.Fatalf("first finding = %s, want G5", blocked.Findings[0].ID)
	}
}

func TestAdvancePastFinalStage(t *testing.T) {
	if _, _, err := Advance(StageClosed, nil); err == nil {
		t.Fatal("expected an error at the final stage")
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("bulk_contract"); got != StageBulkContract {
		t.Fatalf("Normalize(bulk_contract) = %s", got)
	}
	if got := Normalize("nonsense"); got != StageLead {
		t.Fatalf("Normalize(nonsense) = %s, want lead", got)
	}
}
