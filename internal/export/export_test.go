package export

import (
	"strings"
	"testing"

	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/tradedoc"
)

func sampleDocument() tradedoc.Document {
	return tradedoc.Document{
		Key: tradedoc.KeyCommercialInvoice,
		Fields: tradedoc.Fields{
			CompanyName:   "Hanbit Cosmetics Co., Ltd.",
			Address:       "12 Teheran-ro, Gangnam-gu, Seoul",
			Contact:       "export@hanbit.example",
			BuyerName:     "Pacific Beauty Trading LLC",
			Currency:      "USD",
			Incoterms:     "FOB",
			PortLoading:   "Busan",
			PortDischarge: "Long Beach",
			PaymentTerms:  "T/T 30 days",
			HSCode:        "330499",
			Origin:        "KR",
			Items: []tradedoc.LineItem{
				{SKU: "KB-SERUM-30", Qty: 5000, UnitPrice: 3.50, Amount: 17500},
				{SKU: "KB-MASK-10", Qty: 2000, UnitPrice: 1.25, Amount: 2500},
			},
			TotalAmount: 20000,
			Clauses:     []string{"Any dispute shall be settled by arbitration in Seoul."},
		},
	}
}

func TestBuildTemplateData(t *testing.T) {
	project := ProjectInfo{ID: "prj-1", Name: "Pacific 2026 Q1", BuyerID: "byr-1", Currency: "USD"}
	buyer := BuyerInfo{ID: "byr-1", Company: "Pacific Beauty Trading LLC", Country: "US"}

	data := BuildTemplateData(project, buyer, sampleDocument())

	if data.DocTitle != "Commercial Invoice" {
		t.Errorf("DocTitle = %q", data.DocTitle)
	}
	if data.BuyerName != "Pacific Beauty Trading LLC" {
		t.Errorf("BuyerName = %q", data.BuyerName)
	}
	if len(data.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(data.Items))
	}
	if data.TotalAmount != 20000 {
		t.Errorf("TotalAmount = %v", data.TotalAmount)
	}
}

func TestBuildTemplateDataFallsBackToBuyerAndCurrency(t *testing.T) {
	project := ProjectInfo{ID: "prj-1", Name: "Pacific 2026 Q1", BuyerID: "byr-1", Currency: "EUR"}
	buyer := BuyerInfo{ID: "byr-1", Company: "Nordlicht Kosmetik GmbH"}

	doc := sampleDocument()
	doc.Fields.BuyerName = ""
	doc.Fields.Currency = ""

	data := BuildTemplateData(project, buyer, doc)
	if data.BuyerName != "Nordlicht Kosmetik GmbH" {
		t.Errorf("expected buyer company fallback, got %q", data.BuyerName)
	}
	if data.Currency != "EUR" {
		t.Errorf("expected project currency fallback, got %q", data.Currency)
	}
}

func TestRenderDocumentHTML(t *testing.T) {
	project := ProjectInfo{ID: "prj-1", Name: "Pacific 2026 Q1", BuyerID: "byr-1", Currency: "USD"}
	buyer := BuyerInfo{ID: "byr-1", Company: "Pacific Beauty Trading LLC"}

	html, err := RenderDocumentHTML(BuildTemplateData(project, buyer, sampleDocument()))
	if err != nil {
		t.Fatalf("RenderDocumentHTML: %v", err)
	}

	for _, want := range []string{
		"Commercial Invoice",
		"Hanbit Cosmetics Co., Ltd.",
		"Pacific Beauty Trading LLC",
		"KB-SERUM-30",
		"5000",
		"3.50",
		"17500.00",
		"20000.00",
		"arbitration in Seoul",
		"FOB",
		"Busan",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
}

func TestRenderDocumentHTMLEscapesFieldValues(t *testing.T) {
	doc := sampleDocument()
	doc.Fields.BuyerName = `<script>alert("x")</script>`

	html, err := RenderDocumentHTML(BuildTemplateData(ProjectInfo{}, BuyerInfo{}, doc))
	if err != nil {
		t.Fatalf("RenderDocumentHTML: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("buyer name was not escaped")
	}
}

func TestDocTitle(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"final_pi", "Proforma Invoice"},
		{"sample_pi", "Proforma Invoice (Sample)"},
		{"packing_list", "Packing List"},
		{"compliance_snapshot", "Compliance Snapshot"},
		{"unknown_doc", "Unknown Doc"},
	}
	for _, tt := range tests {
		if got := DocTitle(tt.key); got != tt.want {
			t.Errorf("DocTitle(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Pacific 2026 Q1 Commercial Invoice", "Pacific-2026-Q1-Commercial-Invoice"},
		{"견적서 / Invoice #3", "--Invoice-3"},
		{"", "document"},
		{strings.Repeat("a", 60), strings.Repeat("a", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.input); got != tt.expected {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"a+b", "a%2Bb"},
		{"safe-chars_.~", "safe-chars_.~"},
	}
	for _, tt := range tests {
		if got := percentEncodeForDataURL(tt.input); got != tt.expected {
			t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
