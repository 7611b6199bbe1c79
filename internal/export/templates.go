package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var documentTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"money": func(v float64) string {
			return fmt.Sprintf("%.2f", v)
		},
		"qty": func(v float64) string {
			if v == float64(int64(v)) {
				return fmt.Sprintf("%d", int64(v))
			}
			return fmt.Sprintf("%g", v)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/document.html")
	if err != nil {
		// Fallback to built-in template if file not found
		documentTemplate = template.Must(template.New("document").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	documentTemplate = template.Must(template.New("document").Funcs(funcMap).Parse(string(templateContent)))
}

// docTitles maps document keys to printed titles.
var docTitles = map[string]string{
	"sample_pi":           "Proforma Invoice (Sample)",
	"final_pi":            "Proforma Invoice",
	"contract":            "Sales Contract",
	"commercial_invoice":  "Commercial Invoice",
	"packing_list":        "Packing List",
	"compliance_snapshot": "Compliance Snapshot",
	"catalog":             "Product Catalog",
}

// DocTitle returns the printed title for a document key.
func DocTitle(key string) string {
	if t, ok := docTitles[key]; ok {
		return t
	}
	parts := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// TemplateItem is one line item row.
type TemplateItem struct {
	SKU       string
	Qty       float64
	UnitPrice float64
	Amount    float64
}

// TemplateData holds data for document template rendering
type TemplateData struct {
	DocTitle      string
	DocKey        string
	ProjectName   string
	Exporter      ExporterInfo
	BuyerName     string
	Currency      string
	Incoterms     string
	PortLoading   string
	PortDischarge string
	PaymentTerms  string
	LeadTime      string
	HSCode        string
	Origin        string
	Items         []TemplateItem
	TotalAmount   float64
	Clauses       []string
	GeneratedAt   time.Time
}

// RenderDocumentHTML renders the document template with provided data
func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.DocTitle}}</title>
</head>
<body>
  <h1>{{.DocTitle}}</h1>
  <p>{{.Exporter.CompanyName}} → {{.BuyerName}}</p>
  {{if .Items}}
  <table>
    {{range .Items}}<tr><td>{{.SKU}}</td><td>{{qty .Qty}}</td><td>{{money .UnitPrice}}</td><td>{{money .Amount}}</td></tr>{{end}}
  </table>
  <p>Total: {{.Currency}} {{money .TotalAmount}}</p>
  {{end}}
</body>
</html>`
