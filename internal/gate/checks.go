package gate

import (
	"fmt"
	"math"
	"strings"

	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/tradedoc"
)

// requiredAttachmentKeys are the roles check G9 demands before a deal can
// move to bulk order.
var requiredAttachmentKeys = []tradedoc.Key{
	tradedoc.KeyFinalPI,
	tradedoc.KeyContract,
	tradedoc.KeyCommercialInvoice,
	tradedoc.KeyPackingList,
}

// clauseKeywords are the substrings G10 accepts as evidence that a contract
// carries dispute/claim/governing-law language.
var clauseKeywords = []string{
	"dispute", "claim", "governing law", "arbitration",
	"분쟁", "클레임", "준거법", "중재",
}

// Registry is the fixed, ordered list of gate checks. It is defined once at
// process start and never mutated; Run iterates it in order.
var Registry = []Check{
	{
		ID:        "G1",
		Title:     "거래처 정보 불일치",
		TitleEn:   "Party information mismatch",
		Severity:  SeverityHigh,
		Rule:      "The PI and the sales contract must name the same company.",
		FixAction: "Edit party information",
		Evaluate:  checkPartyMismatch,
	},
	{
		ID:        "G2",
		Title:     "인코텀즈/항구 불일치",
		TitleEn:   "Incoterms or port mismatch",
		Severity:  SeverityHigh,
		Rule:      "Incoterms and loading/discharge ports must match between PI and contract.",
		FixAction: "Align trade terms",
		Evaluate:  checkIncotermsMismatch,
	},
	{
		ID:        "G3",
		Title:     "결제조건 불일치",
		TitleEn:   "Payment terms mismatch",
		Severity:  SeverityHigh,
		Rule:      "Payment terms must match between PI and contract.",
		FixAction: "Align payment terms",
		Evaluate:  checkPaymentTermsMismatch,
	},
	{
		ID:        "G4",
		Title:     "수량/단가/금액 계산 오류",
		TitleEn:   "Line item calculation error",
		Severity:  SeverityHigh,
		Rule:      "On the final PI, qty x unit price must equal each line amount, and line amounts must sum to the declared total.",
		FixAction: "Recalculate line items",
		Evaluate:  checkLineCalculation,
	},
	{
		ID:        "G5",
		Title:     "HS코드 누락",
		TitleEn:   "HS code missing or too short",
		Severity:  SeverityHigh,
		Rule:      "The commercial invoice must carry an HS code of at least 6 digits.",
		FixAction: "Enter HS code",
		Evaluate:  checkHSCode,
	},
	{
		ID:        "G6",
		Title:     "규제 대응 필요",
		TitleEn:   "Compliance action required",
		Severity:  SeverityHigh,
		Rule:      "No compliance rule-pack item may remain pending or failed.",
		FixAction: "Open compliance checklist",
		Evaluate:  checkCompliance,
	},
	{
		ID:        "G7",
		Title:     "샘플→본오더 변경사항",
		TitleEn:   "Sample to bulk price change",
		Severity:  SeverityMed,
		Rule:      "Unit price changes between the sample PI and the final PI must be acknowledged.",
		FixAction: "Review price changes",
		Evaluate:  checkSampleToBulk,
	},
	{
		ID:        "G8",
		Title:     "패킹리스트 수량 불일치",
		TitleEn:   "Packing list quantity mismatch",
		Severity:  SeverityMed,
		Rule:      "For every SKU on both the packing list and the final PI, quantities must match.",
		FixAction: "Fix packing list quantities",
		Evaluate:  checkPackingList,
	},
	{
		ID:        "G9",
		Title:     "필수 서류 누락",
		TitleEn:   "Required attachments incomplete",
		Severity:  SeverityMed,
		Rule:      "Final PI, sales contract, commercial invoice, and packing list must all exist.",
		FixAction: "Generate missing documents",
		Evaluate:  checkRequiredAttachments,
	},
	{
		ID:        "G10",
		Title:     "계약 필수 조항 누락",
		TitleEn:   "Contract required clauses",
		Severity:  SeverityMed,
		Rule:      "The sales contract must contain dispute, claim, or governing-law clauses.",
		FixAction: "Add standard clauses",
		Evaluate:  checkContractClauses,
	},
}

// A misconfigured registry is a programming error; fail loudly at startup
// rather than producing ambiguous verdicts.
func init() {
	seen := make(map[string]struct{}, len(Registry))
	for _, check := range Registry {
		if check.ID == "" || check.Evaluate == nil {
			panic(fmt.Sprintf("gate: check %q incompletely defined", check.ID))
		}
		if _, dup := seen[check.ID]; dup {
			panic(fmt.Sprintf("gate: duplicate check id %q", check.ID))
		}
		seen[check.ID] = struct{}{}
	}
}

func amountsEqual(a, b float64) bool {
	return math.Abs(a-b) <= AmountTolerance
}

func checkPartyMismatch(docs []tradedoc.Document) Outcome {
	pi := tradedoc.Find(docs, tradedoc.KeyFinalPI)
	contract := tradedoc.Find(docs, tradedoc.KeyContract)
	if pi == nil || contract == nil {
		return needConfirm("PI or contract not generated yet")
	}
	if pi.Fields.CompanyName != contract.Fields.CompanyName {
		return fail(fmt.Sprintf("company name differs: PI %q vs contract %q",
			pi.Fields.CompanyName, contract.Fields.CompanyName))
	}
	return pass()
}

func checkIncotermsMismatch(docs []tradedoc.Document) Outcome {
	pi := tradedoc.Find(docs, tradedoc.KeyFinalPI)
	contract := tradedoc.Find(docs, tradedoc.KeyContract)
	if pi == nil || contract == nil {
		return needConfirm("PI or contract not generated yet")
	}
	if pi.Fields.Incoterms != contract.Fields.Incoterms {
		return fail(fmt.Sprintf("incoterms differ: PI %q vs contract %q",
			pi.Fields.Incoterms, contract.Fields.Incoterms))
	}
	if pi.Fields.PortLoading != contract.Fields.PortLoading {
		return fail(fmt.Sprintf("port of loading differs: PI %q vs contract %q",
			pi.Fields.PortLoading, contract.Fields.PortLoading))
	}
	if pi.Fields.PortDischarge != contract.Fields.PortDischarge {
		return fail(fmt.Sprintf("port of discharge differs: PI %q vs contract %q",
			pi.Fields.PortDischarge, contract.Fields.PortDischarge))
	}
	return pass()
}

func checkPaymentTermsMismatch(docs []tradedoc.Document) Outcome {
	pi := tradedoc.Find(docs, tradedoc.KeyFinalPI)
	contract := tradedoc.Find(docs, tradedoc.KeyContract)
	if pi == nil || contract == nil {
		return needConfirm("PI or contract not generated yet")
	}
	if pi.Fields.PaymentTerms != contract.Fields.PaymentTerms {
		return fail(fmt.Sprintf("payment terms differ: PI %q vs contract %q",
			pi.Fields.PaymentTerms, contract.Fields.PaymentTerms))
	}
	return pass()
}

func checkLineCalculation(docs []tradedoc.Document) Outcome {
	pi := tradedoc.Find(docs, tradedoc.KeyFinalPI)
	if pi == nil {
		return needConfirm("PI not generated yet")
	}
	sum := 0.0
	for _, item := range pi.Fields.Items {
		computed := item.Qty * item.UnitPrice
		if !amountsEqual(computed, item.Amount) {
			return fail(fmt.Sprintf("%s: %g x %g = %g, amount says %g",
				item.SKU, item.Qty, item.UnitPrice, computed, item.Amount))
		}
		sum += item.Amount
	}
	if !amountsEqual(sum, pi.Fields.TotalAmount) {
		return fail(fmt.Sprintf("line amounts sum to %g, total says %g",
			sum, pi.Fields.TotalAmount))
	}
	return pass()
}

func checkHSCode(docs []tradedoc.Document) Outcome {
	invoice := tradedoc.Find(docs, tradedoc.KeyCommercialInvoice)
	if invoice == nil {
		return needConfirm("commercial invoice not generated yet")
	}
	code := strings.TrimSpace(invoice.Fields.HSCode)
	if len(code) < 6 {
		return fail(fmt.Sprintf("HS code %q is shorter than the 6-digit minimum", code))
	}
	return pass()
}

func checkCompliance(docs []tradedoc.Document) Outcome {
	snapshot := tradedoc.Find(docs, tradedoc.KeyComplianceSnapshot)
	if snapshot == nil {
		return needConfirm("compliance snapshot not generated yet")
	}
	open := 0
	for _, pack := range snapshot.Fields.RulePacks {
		for _, item := range pack.Items {
			if item.Status == "pending" || item.Status == "fail" {
				open++
			}
		}
	}
	if open > 0 {
		return fail(fmt.Sprintf("%d compliance items still pending or failed", open))
	}
	return pass()
}

func checkSampleToBulk(docs []tradedoc.Document) Outcome {
	sample := tradedoc.Find(docs, tradedoc.KeySamplePI)
	final := tradedoc.Find(docs, tradedoc.KeyFinalPI)
	if sample == nil || final == nil {
		// No sample order happened, nothing to compare.
		return pass()
	}
	sampleItems := tradedoc.ItemsBySKU(sample.Fields.Items)
	for _, item := range final.Fields.Items {
		prev, ok := sampleItems[item.SKU]
		if !ok {
			continue
		}
		if !amountsEqual(prev.UnitPrice, item.UnitPrice) {
			return needConfirm(fmt.Sprintf("%s unit price changed from %g to %g since the sample order",
				item.SKU, prev.UnitPrice, item.UnitPrice))
		}
	}
	return pass()
}

func checkPackingList(docs []tradedoc.Document) Outcome {
	packing := tradedoc.Find(docs, tradedoc.KeyPackingList)
	pi := tradedoc.Find(docs, tradedoc.KeyFinalPI)
	if packing == nil || pi == nil {
		return needConfirm("packing list or PI not generated yet")
	}
	piItems := tradedoc.ItemsBySKU(pi.Fields.Items)
	for _, item := range packing.Fields.Items {
		ref, ok := piItems[item.SKU]
		if !ok {
			continue
		}
		if !amountsEqual(ref.Qty, item.Qty) {
			return fail(fmt.Sprintf("%s quantity: packing list %g vs PI %g",
				item.SKU, item.Qty, ref.Qty))
		}
	}
	return pass()
}

func checkRequiredAttachments(docs []tradedoc.Document) Outcome {
	missing := 0
	var names []string
	for _, key := range requiredAttachmentKeys {
		if tradedoc.Find(docs, key) == nil {
			missing++
			names = append(names, string(key))
		}
	}
	if missing > 0 {
		return fail(fmt.Sprintf("%d required documents missing: %s",
			missing, strings.Join(names, ", ")))
	}
	return pass()
}

func checkContractClauses(docs []tradedoc.Document) Outcome {
	contract := tradedoc.Find(docs, tradedoc.KeyContract)
	if contract == nil {
		return fail("sales contract is missing")
	}
	for _, clause := range contract.Fields.Clauses {
		lower := strings.ToLower(clause)
		for _, keyword := range clauseKeywords {
			if strings.Contains(lower, keyword) {
				return pass()
			}
		}
	}
	return needConfirm("no dispute, claim, or governing-law clause found; wording may differ")
}
