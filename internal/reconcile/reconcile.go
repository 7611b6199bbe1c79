// Package reconcile detects and resolves disagreements in shared trade-term
// fields across the PI, contract, and catalog documents. It runs earlier and
// more often than the gate engine, before documents are finalized, so its
// warnings carry no severity; callers decide what blocks.
package reconcile

import (
	"fmt"
	"math"
	"sort"

	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/tradedoc"
)

// Role names a document in the three-way comparison.
type Role string

const (
	RolePI       Role = "pi"
	RoleContract Role = "contract"
	RoleCatalog  Role = "catalog"
)

// roleOrder fixes the iteration order so warning output is deterministic.
var roleOrder = []Role{RolePI, RoleContract, RoleCatalog}

// scalarFields are the five shared trade terms compared across every
// present role.
var scalarFields = []string{"currency", "incoterms", "paymentTerms", "leadTime", "moq"}

// criticalFields is the subset whose disagreement should nag the user
// before export.
var criticalFields = map[string]struct{}{
	"currency":     {},
	"incoterms":    {},
	"paymentTerms": {},
}

// amountTolerance matches the gate engine's numeric comparison policy.
const amountTolerance = 0.01

// SKUValues is the per-SKU triple compared between PI and contract.
type SKUValues struct {
	Qty       float64 `json:"qty"`
	UnitPrice float64 `json:"unitPrice"`
	Amount    float64 `json:"amount"`
}

// DocumentValues is the comparable projection of one document's field bag.
type DocumentValues struct {
	Currency     string               `json:"currency,omitempty"`
	Incoterms    string               `json:"incoterms,omitempty"`
	PaymentTerms string               `json:"paymentTerms,omitempty"`
	LeadTime     string               `json:"leadTime,omitempty"`
	MOQ          int                  `json:"moq,omitempty"`
	SKUs         map[string]SKUValues `json:"skus,omitempty"`
}

// Warning reports one cross-document disagreement.
type Warning struct {
	ID        string            `json:"id"`
	Field     string            `json:"field"`
	Message   string            `json:"message"`
	Documents []string          `json:"documents"`
	Values    map[string]string `json:"values"`
}

// Summary aggregates a warning list for the export nag banner.
type Summary struct {
	TotalWarnings int      `json:"totalWarnings"`
	CriticalCount int      `json:"criticalCount"`
	Fields        []string `json:"fields"`
}

// Extract pulls the comparable trade-term values out of a document's field
// bag. The role parameter is accepted for symmetry with the validation API;
// every role projects the same subset today.
func Extract(role Role, fields tradedoc.Fields) DocumentValues {
	values := DocumentValues{
		Currency:     fields.Currency,
		Incoterms:    fields.Incoterms,
		PaymentTerms: fields.PaymentTerms,
		LeadTime:     fields.LeadTime,
		MOQ:          fields.MOQ,
	}
	if len(fields.Items) > 0 {
		values.SKUs = make(map[string]SKUValues, len(fields.Items))
		for _, item := range fields.Items {
			if item.SKU == "" {
				continue
			}
			values.SKUs[item.SKU] = SKUValues{
				Qty:       item.Qty,
				UnitPrice: item.UnitPrice,
				Amount:    item.Amount,
			}
		}
	}
	return values
}

// Validate compares every present role pairwise on the five scalar fields,
// and the PI against the contract per SKU. Fewer than two present roles is a
// no-op. Warnings come back in a deterministic order: scalar fields first in
// declaration order, then SKU warnings sorted by SKU and field.
func Validate(docs map[Role]DocumentValues) []Warning {
	if len(docs) < 2 {
		return nil
	}

	var warnings []Warning
	for _, field := range scalarFields {
		if w := compareScalar(docs, field); w != nil {
			warnings = append(warnings, *w)
		}
	}

	pi, hasPI := docs[RolePI]
	contract, hasContract := docs[RoleContract]
	if hasPI && hasContract {
		warnings = append(warnings, compareSKUs(pi, contract)...)
	}
	return warnings
}

func compareScalar(docs map[Role]DocumentValues, field string) *Warning {
	values := make(map[string]string)
	distinct := make(map[string]struct{})
	var roles []string

	for _, role := range roleOrder {
		doc, ok := docs[role]
		if !ok {
			continue
		}
		value := scalarValue(doc, field)
		if value == "" {
			continue
		}
		roles = append(roles, string(role))
		values[string(role)] = value
		distinct[value] = struct{}{}
	}

	if len(distinct) <= 1 {
		return nil
	}
	return &Warning{
		ID:        field + "_mismatch",
		Field:     field,
		Message:   fmt.Sprintf("%s differs across documents", field),
		Documents: roles,
		Values:    values,
	}
}

func scalarValue(doc DocumentValues, field string) string {
	switch field {
	case "currency":
		return doc.Currency
	case "incoterms":
		return doc.Incoterms
	case "paymentTerms":
		return doc.PaymentTerms
	case "leadTime":
		return doc.LeadTime
	case "moq":
		if doc.MOQ == 0 {
			return ""
		}
		return fmt.Sprintf("%d", doc.MOQ)
	default:
		return ""
	}
}

func compareSKUs(pi, contract DocumentValues) []Warning {
	skus := make([]string, 0, len(pi.SKUs))
	for sku := range pi.SKUs {
		if _, ok := contract.SKUs[sku]; ok {
			skus = append(skus, sku)
		}
	}
	sort.Strings(skus)

	var warnings []Warning
	for _, sku := range skus {
		a := pi.SKUs[sku]
		b := contract.SKUs[sku]
		checks := []struct {
			field string
			pi    float64
			con   float64
		}{
			{"qty", a.Qty, b.Qty},
			{"unitPrice", a.UnitPrice, b.UnitPrice},
			{"amount", a.Amount, b.Amount},
		}
		for _, check := range checks {
			if math.Abs(check.pi-check.con) <= amountTolerance {
				continue
			}
			warnings = append(warnings, Warning{
				ID:        fmt.Sprintf("%s_mismatch_%s", check.field, sku),
				Field:     fmt.Sprintf("%s.%s", sku, check.field),
				Message:   fmt.Sprintf("%s %s: PI %g vs contract %g", sku, check.field, check.pi, check.con),
				Documents: []string{string(RolePI), string(RoleContract)},
				Values: map[string]string{
					string(RolePI):       fmt.Sprintf("%g", check.pi),
					string(RoleContract): fmt.Sprintf("%g", check.con),
				},
			})
		}
	}
	return warnings
}

// Unify copies sourceRole's value for the given scalar field onto every other
// present role and returns a new map; the input is left untouched so the
// caller decides when to commit.
func Unify(docs map[Role]DocumentValues, field string, sourceRole Role) map[Role]DocumentValues {
	source, ok := docs[sourceRole]
	if !ok {
		return cloneAll(docs)
	}

	out := make(map[Role]DocumentValues, len(docs))
	for role, doc := range docs {
		clone := cloneValues(doc)
		if role != sourceRole {
			applyScalar(&clone, field, source)
		}
		out[role] = clone
	}
	return out
}

func applyScalar(target *DocumentValues, field string, source DocumentValues) {
	switch field {
	case "currency":
		target.Currency = source.Currency
	case "incoterms":
		target.Incoterms = source.Incoterms
	case "paymentTerms":
		target.PaymentTerms = source.PaymentTerms
	case "leadTime":
		target.LeadTime = source.LeadTime
	case "moq":
		target.MOQ = source.MOQ
	}
}

func cloneAll(docs map[Role]DocumentValues) map[Role]DocumentValues {
	out := make(map[Role]DocumentValues, len(docs))
	for role, doc := range docs {
		out[role] = cloneValues(doc)
	}
	return out
}

func cloneValues(doc DocumentValues) DocumentValues {
	clone := doc
	if doc.SKUs != nil {
		clone.SKUs = make(map[string]SKUValues, len(doc.SKUs))
		for sku, values := range doc.SKUs {
			clone.SKUs[sku] = values
		}
	}
	return clone
}

// Summarize condenses a warning list into the counts the export banner
// shows. Critical means one of the fixed critical scalar fields disagrees.
func Summarize(warnings []Warning) Summary {
	summary := Summary{TotalWarnings: len(warnings), Fields: []string{}}
	seen := make(map[string]struct{})
	for _, warning := range warnings {
		if _, ok := seen[warning.Field]; !ok {
			seen[warning.Field] = struct{}{}
			summary.Fields = append(summary.Fields, warning.Field)
		}
		if _, critical := criticalFields[warning.Field]; critical {
			summary.CriticalCount++
		}
	}
	return summary
}
