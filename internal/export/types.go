// Package export renders trade documents to PDF and DOCX.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request contains parameters for an export operation
type Request struct {
	ProjectID string
	DocKey    string
	Format    Format
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ExporterInfo is the seller block printed on every document.
type ExporterInfo struct {
	CompanyName string
	Address     string
	Contact     string
	GeneratedAt time.Time
}

var (
	// ErrDocumentMissing indicates the requested document has not been created yet.
	ErrDocumentMissing = errors.New("export document missing")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
