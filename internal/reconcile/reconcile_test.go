package reconcile

import (
	"reflect"
	"testing"

	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/tradedoc"
)

func TestExtractProjectsFieldBag(t *testing.T) {
	fields := tradedoc.Fields{
		Currency:     "USD",
		Incoterms:    "FOB",
		PaymentTerms: "T/T 30/70",
		LeadTime:     "45 days",
		MOQ:          3000,
		Items: []tradedoc.LineItem{
			{SKU: "KB-TONER-200", Qty: 3000, UnitPrice: 2.10, Amount: 6300},
			{SKU: "", Qty: 1, UnitPrice: 1, Amount: 1},
		},
	}

	values := Extract(RolePI, fields)
	if values.Currency != "USD" || values.MOQ != 3000 {
		t.Fatalf("unexpected projection: %+v", values)
	}
	if len(values.SKUs) != 1 {
		t.Fatalf("blank SKU rows must be skipped, got %d entries", len(values.SKUs))
	}
	if got := values.SKUs["KB-TONER-200"]; got.Amount != 6300 {
		t.Fatalf("SKU values not carried: %+v", got)
	}
}

func TestValidateSingleDocumentIsNoOp(t *testing.T) {
	docs := map[Role]DocumentValues{
		RolePI: {Currency: "USD", Incoterms: "FOB"},
	}
	if warnings := Validate(docs); len(warnings) != 0 {
		t.Fatalf("expected no warnings for a single document, got %v", warnings)
	}
}

func TestValidateIncotermsRoundTrip(t *testing.T) {
	docs := map[Role]DocumentValues{
		RolePI:       {Incoterms: "FOB"},
		RoleContract: {Incoterms: "CIF"},
	}

	warnings := Validate(docs)
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %d: %v", len(warnings), warnings)
	}
	w := warnings[0]
	if w.Field != "incoterms" {
		t.Fatalf("field = %q, want incoterms", w.Field)
	}
	if !reflect.DeepEqual(w.Documents, []string{"pi", "contract"}) {
		t.Fatalf("documents = %v, want [pi contract]", w.Documents)
	}
	if w.Values["pi"] != "FOB" || w.Values["contract"] != "CIF" {
		t.Fatalf("values = %v", w.Values)
	}

	unified := Unify(docs, "incoterms", RoleContract)
	if unified[RolePI].Incoterms != "CIF" {
		t.Fatalf("unify did not propagate: %+v", unified[RolePI])
	}
	if docs[RolePI].Incoterms != "FOB" {
		t.Fatal("unify mutated its input")
	}
	if warnings := Validate(unified); len(warnings) != 0 {
		t.Fatalf("expected no warnings after unify, got %v", warnings)
	}
}

func TestValidateSKUMismatchesAreIndependent(t *testing.T) {
	docs := map[Role]DocumentValues{
		RolePI: {
			Currency: "USD",
			SKUs: map[string]SKUValues{
				"SKU123": {Qty: 5000, UnitPrice: 3.50, Amount: 17500},
				"ONLYPI": {Qty: 10, UnitPrice: 1, Amount: 10},
			},
		},
		RoleContract: {
			Currency: "USD",
			SKUs: map[string]SKUValues{
				"SKU123": {Qty: 5000, UnitPrice: 3.75, Amount: 18750},
			},
		},
	}

	warnings := Validate(docs)
	if len(warnings) != 2 {
		t.Fatalf("expected unitPrice and amount warnings, got %v", warnings)
	}
	if warnings[0].ID != "qty_mismatch_SKU123" && warnings[0].ID != "unitPrice_mismatch_SKU123" {
		t.Fatalf("unexpected first warning id %q", warnings[0].ID)
	}
	for _, w := range warnings {
		if w.Field != "SKU123.unitPrice" && w.Field != "SKU123.amount" {
			t.Fatalf("unexpected warning field %q", w.Field)
		}
	}
}

func TestValidateCatalogJoinsScalarComparisonOnly(t *testing.T) {
	docs := map[Role]DocumentValues{
		RolePI: {
			Currency: "USD",
			SKUs:     map[string]SKUValues{"A": {Qty: 1, UnitPrice: 2, Amount: 2}},
		},
		RoleCatalog: {
			Currency: "KRW",
			SKUs:     map[string]SKUValues{"A": {Qty: 9, UnitPrice: 9, Amount: 81}},
		},
	}

	warnings := Validate(docs)
	if len(warnings) != 1 {
		t.Fatalf("catalog SKUs must not be compared, got %v", warnings)
	}
	if warnings[0].Field != "currency" {
		t.Fatalf("field = %q, want currency", warnings[0].Field)
	}
}

func TestSummarizeCountsCriticalFields(t *testing.T) {
	warnings := []Warning{
		{Field: "currency"},
		{Field: "leadTime"},
		{Field: "SKU123.unitPrice"},
	}

	summary := Summarize(warnings)
	if summary.TotalWarnings != 3 {
		t.Fatalf("totalWarnings = %d", summary.TotalWarnings)
	}
	if summary.CriticalCount != 1 {
		t.Fatalf("criticalCount = %d, want 1 (currency only)", summary.CriticalCount)
	}
	want := []string{"currency", "leadTime", "SKU123.unitPrice"}
	if !reflect.DeepEqual(summary.Fields, want) {
		t.Fatalf("fields = %v, want %v", summary.Fields, want)
	}
}
