package history

import (
	"testing"

	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/tradedoc"
)

func testDoc(price float64) tradedoc.Document {
	return tradedoc.Document{
		Key: tradedoc.KeyFinalPI,
		Fields: tradedoc.Fields{
			Currency:  "USD",
			Incoterms: "FOB",
			Items: []tradedoc.LineItem{
				{SKU: "KB-SERUM-30", Qty: 5000, UnitPrice: price, Amount: 5000 * price},
			},
			TotalAmount: 5000 * price,
		},
	}
}

func TestEnsureProjectRepoIdempotent(t *testing.T) {
	svc := New(t.TempDir())

	if err := svc.EnsureProjectRepo("prj-1", "Jiyoon Park"); err != nil {
		t.Fatalf("EnsureProjectRepo: %v", err)
	}
	if err := svc.EnsureProjectRepo("prj-1", "Jiyoon Park"); err != nil {
		t.Fatalf("EnsureProjectRepo second call: %v", err)
	}

	commits, err := svc.ProjectHistory("prj-1", 0)
	if err != nil {
		t.Fatalf("ProjectHistory: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("expected 1 init commit, got %d", len(commits))
	}
}

func TestCommitAndReadBack(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.EnsureProjectRepo("prj-1", "Jiyoon Park"); err != nil {
		t.Fatalf("EnsureProjectRepo: %v", err)
	}

	first, err := svc.CommitDocument("prj-1", testDoc(3.50), "Jiyoon Park", "Initial PI")
	if err != nil {
		t.Fatalf("CommitDocument: %v", err)
	}

	if _, err := svc.CommitDocument("prj-1", testDoc(3.75), "Jiyoon Park", "Reprice after freight change"); err != nil {
		t.Fatalf("CommitDocument second: %v", err)
	}

	// Old revision still readable at the old hash.
	old, err := svc.GetDocumentAt("prj-1", tradedoc.KeyFinalPI, first.Hash)
	if err != nil {
		t.Fatalf("GetDocumentAt: %v", err)
	}
	if old.Fields.Items[0].UnitPrice != 3.50 {
		t.Errorf("old unit price = %v, want 3.50", old.Fields.Items[0].UnitPrice)
	}

	history, err := svc.DocumentHistory("prj-1", tradedoc.KeyFinalPI, 0)
	if err != nil {
		t.Fatalf("DocumentHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(history))
	}
	if history[0].Message != "Reprice after freight change" {
		t.Errorf("newest first: got %q", history[0].Message)
	}
}

func TestDocumentHistoryFiltersByKey(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.EnsureProjectRepo("prj-1", "Jiyoon Park"); err != nil {
		t.Fatalf("EnsureProjectRepo: %v", err)
	}

	if _, err := svc.CommitDocument("prj-1", testDoc(3.50), "Jiyoon Park", ""); err != nil {
		t.Fatalf("commit pi: %v", err)
	}

	contract := tradedoc.Document{
		Key:    tradedoc.KeyContract,
		Fields: tradedoc.Fields{Incoterms: "FOB", Currency: "USD"},
	}
	if _, err := svc.CommitDocument("prj-1", contract, "Jiyoon Park", ""); err != nil {
		t.Fatalf("commit contract: %v", err)
	}

	piHistory, err := svc.DocumentHistory("prj-1", tradedoc.KeyFinalPI, 0)
	if err != nil {
		t.Fatalf("DocumentHistory: %v", err)
	}
	if len(piHistory) != 1 {
		t.Errorf("pi history = %d commits, want 1", len(piHistory))
	}

	all, err := svc.ProjectHistory("prj-1", 0)
	if err != nil {
		t.Fatalf("ProjectHistory: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("project history = %d commits, want 3 (init + 2 docs)", len(all))
	}
}

func TestHistoryLimit(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.EnsureProjectRepo("prj-1", "Jiyoon Park"); err != nil {
		t.Fatalf("EnsureProjectRepo: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := svc.CommitDocument("prj-1", testDoc(3.50+float64(i)), "Jiyoon Park", ""); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}

	commits, err := svc.ProjectHistory("prj-1", 3)
	if err != nil {
		t.Fatalf("ProjectHistory: %v", err)
	}
	if len(commits) != 3 {
		t.Errorf("expected limit 3, got %d", len(commits))
	}
}

func TestGetDocumentAtMissingFile(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.EnsureProjectRepo("prj-1", "Jiyoon Park"); err != nil {
		t.Fatalf("EnsureProjectRepo: %v", err)
	}
	commit, err := svc.CommitDocument("prj-1", testDoc(3.50), "Jiyoon Park", "")
	if err != nil {
		t.Fatalf("CommitDocument: %v", err)
	}
	if _, err := svc.GetDocumentAt("prj-1", tradedoc.KeyContract, commit.Hash); err == nil {
		t.Error("expected error for document absent at commit")
	}
}
