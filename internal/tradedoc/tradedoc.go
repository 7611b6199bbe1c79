// Package tradedoc defines the trade document field bag shared by the gate
// engine, reconciliation, export, and the document store.
package tradedoc

import "strings"

// Key names the role a document plays inside a project. A project holds at
// most one current document per key; older revisions live in the project's
// history repository and are never seen by validation.
type Key string

const (
	KeySamplePI           Key = "sample_pi"
	KeyFinalPI            Key = "final_pi"
	KeyContract           Key = "contract"
	KeyCommercialInvoice  Key = "commercial_invoice"
	KeyPackingList        Key = "packing_list"
	KeyComplianceSnapshot Key = "compliance_snapshot"
	KeyCatalog            Key = "catalog"
)

// Keys lists every recognized document role in display order.
var Keys = []Key{
	KeySamplePI,
	KeyFinalPI,
	KeyContract,
	KeyCommercialInvoice,
	KeyPackingList,
	KeyComplianceSnapshot,
	KeyCatalog,
}

// NormalizeKey returns the canonical Key for a raw role string, or "" if the
// role is not recognized.
func NormalizeKey(raw string) Key {
	k := Key(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Keys {
		if k == known {
			return known
		}
	}
	return ""
}

// LineItem is one SKU row on an invoice-like document.
type LineItem struct {
	SKU       string  `json:"sku"`
	Qty       float64 `json:"qty"`
	UnitPrice float64 `json:"unitPrice"`
	Amount    float64 `json:"amount"`
}

// RuleItem is one regulatory check inside a country rule pack.
type RuleItem struct {
	Name   string `json:"name"`
	Status string `json:"status"` // pass, warn, fail, pending
}

// RulePack groups the regulatory checks for one destination country.
type RulePack struct {
	Country string     `json:"country"`
	Items   []RuleItem `json:"items"`
}

// Fields is the structured field bag of a trade document. Only the subset
// relevant to a given role is populated; absent lists stay nil and are
// treated as empty by every consumer.
type Fields struct {
	CompanyName   string     `json:"companyName,omitempty"`
	Address       string     `json:"address,omitempty"`
	Contact       string     `json:"contact,omitempty"`
	BuyerName     string     `json:"buyerName,omitempty"`
	Incoterms     string     `json:"incoterms,omitempty"`
	PortLoading   string     `json:"portLoading,omitempty"`
	PortDischarge string     `json:"portDischarge,omitempty"`
	PaymentTerms  string     `json:"paymentTerms,omitempty"`
	LeadTime      string     `json:"leadTime,omitempty"`
	MOQ           int        `json:"moq,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	Items         []LineItem `json:"items,omitempty"`
	TotalAmount   float64    `json:"totalAmount,omitempty"`
	HSCode        string     `json:"hsCode,omitempty"`
	Origin        string     `json:"origin,omitempty"`
	Clauses       []string   `json:"clauses,omitempty"`
	RulePacks     []RulePack `json:"rulePacks,omitempty"`
}

// Document is one current trade document inside a project's document set.
type Document struct {
	Key    Key    `json:"key"`
	Fields Fields `json:"fields"`
}

// Find returns the document with the given key, or nil when the role has no
// current instance in the set.
func Find(docs []Document, key Key) *Document {
	for i := range docs {
		if docs[i].Key == key {
			return &docs[i]
		}
	}
	return nil
}

// ItemsBySKU indexes a document's line items by SKU. Later duplicates win,
// matching how the authoring UI overwrites rows.
func ItemsBySKU(items []LineItem) map[string]LineItem {
	out := make(map[string]LineItem, len(items))
	for _, item := range items {
		if item.SKU == "" {
			continue
		}
		out[item.SKU] = item
	}
	return out
}
