package export

import (
	"context"
	"fmt"
	"time"

	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/tradedoc"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetProject(ctx context.Context, id string) (ProjectInfo, error)
	GetBuyer(ctx context.Context, id string) (BuyerInfo, error)
	GetTradeDocument(ctx context.Context, projectID, docKey string) (tradedoc.Document, error)
}

// ProjectInfo holds project metadata for the export header
type ProjectInfo struct {
	ID       string
	Name     string
	BuyerID  string
	Currency string
}

// BuyerInfo holds buyer metadata
type BuyerInfo struct {
	ID      string
	Company string
	Country string
}

// Service provides trade document export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	project, err := s.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	buyer, err := s.store.GetBuyer(ctx, project.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("get buyer: %w", err)
	}

	doc, err := s.store.GetTradeDocument(ctx, req.ProjectID, req.DocKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentMissing, req.DocKey)
	}

	data := BuildTemplateData(project, buyer, doc)

	html, err := RenderDocumentHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	filename := data.DocTitle
	if project.Name != "" {
		filename = project.Name + " " + data.DocTitle
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, filename)
	case FormatDOCX:
		return exportDOCX(html, filename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

// BuildTemplateData maps a stored trade document onto the print template.
// Field values in the document win over project and buyer metadata.
func BuildTemplateData(project ProjectInfo, buyer BuyerInfo, doc tradedoc.Document) TemplateData {
	f := doc.Fields

	data := TemplateData{
		DocTitle:    DocTitle(string(doc.Key)),
		DocKey:      string(doc.Key),
		ProjectName: project.Name,
		Exporter: ExporterInfo{
			CompanyName: f.CompanyName,
			Address:     f.Address,
			Contact:     f.Contact,
		},
		BuyerName:     f.BuyerName,
		Currency:      f.Currency,
		Incoterms:     f.Incoterms,
		PortLoading:   f.PortLoading,
		PortDischarge: f.PortDischarge,
		PaymentTerms:  f.PaymentTerms,
		LeadTime:      f.LeadTime,
		HSCode:        f.HSCode,
		Origin:        f.Origin,
		TotalAmount:   f.TotalAmount,
		Clauses:       f.Clauses,
		GeneratedAt:   time.Now(),
	}

	if data.BuyerName == "" {
		data.BuyerName = buyer.Company
	}
	if data.Currency == "" {
		data.Currency = project.Currency
	}

	for _, item := range f.Items {
		data.Items = append(data.Items, TemplateItem{
			SKU:       item.SKU,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			Amount:    item.Amount,
		})
	}

	return data
}
